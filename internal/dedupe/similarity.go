// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package dedupe

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Similarity scores how alike two strings are, in [0, 1]. Implementations
// must be symmetric: Similarity(a, b) == Similarity(b, a). The matcher
// thresholds (0.85 title, 0.90 venue) are tuned against TokenSetSimilarity;
// swapping in another implementation may require re-calibration.
type Similarity func(a, b string) float64

// foldTransformer strips diacritics after NFD decomposition, so "título"
// and "titulo" normalize identically.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, removes diacritics, and collapses punctuation to
// spaces. Both the matcher and the result cache key text this way.
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize splits a normalized string into its word tokens.
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// tokenMatchThreshold is the per-token Jaro-Winkler score at or above which
// two tokens count as the same word. Short spelling variants score low under
// this kernel ("night"/"nite" is 0.7067: the Jaro match window of max/2-1
// drops the trailing "t"), so the bar sits just below them.
const tokenMatchThreshold = 0.70

// TokenSetSimilarity is the default Similarity. It tokenizes both inputs
// after case and diacritic folding, pairs tokens greedily by Jaro-Winkler
// score, and returns 2*matched / (len(a) + len(b)).
//
// The greedy pairing iterates candidate pairs in a deterministic order
// (score descending, then lexicographic on the smaller token) so the score
// is independent of argument order.
func TokenSetSimilarity(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		if len(ta) == 0 && len(tb) == 0 {
			return 1
		}
		return 0
	}

	type pair struct {
		score float64
		lo    string
		hi    string
		ia    int
		ib    int
	}

	var pairs []pair
	for i, x := range ta {
		for j, y := range tb {
			score := jaroWinkler(x, y)
			if score < tokenMatchThreshold {
				continue
			}
			lo, hi := x, y
			if lo > hi {
				lo, hi = hi, lo
			}
			pairs = append(pairs, pair{score: score, lo: lo, hi: hi, ia: i, ib: j})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		if pairs[i].lo != pairs[j].lo {
			return pairs[i].lo < pairs[j].lo
		}
		return pairs[i].hi < pairs[j].hi
	})

	usedA := make([]bool, len(ta))
	usedB := make([]bool, len(tb))
	matched := 0
	for _, p := range pairs {
		if usedA[p.ia] || usedB[p.ib] {
			continue
		}
		usedA[p.ia] = true
		usedB[p.ib] = true
		matched++
	}

	return 2 * float64(matched) / float64(len(ta)+len(tb))
}

// jaroWinkler computes the Jaro-Winkler similarity of two strings.
// Symmetric by construction.
func jaroWinkler(a, b string) float64 {
	j := jaro(a, b)
	if j == 0 {
		return 0
	}

	// Winkler prefix bonus: up to 4 leading characters in common.
	prefix := 0
	ra, rb := []rune(a), []rune(b)
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

// jaro computes the Jaro similarity of two strings.
func jaro(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	matchA := make([]bool, la)
	matchB := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		lowBound := max(0, i-window)
		high := min(lb-1, i+window)
		for j := lowBound; j <= high; j++ {
			if matchB[j] || ra[i] != rb[j] {
				continue
			}
			matchA[i] = true
			matchB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := 0; i < la; i++ {
		if !matchA[i] {
			continue
		}
		for !matchB[j] {
			j++
		}
		if ra[i] != rb[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions)/2)/m) / 3
}
