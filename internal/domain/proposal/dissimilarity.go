package proposal

import (
	"strings"
	"unicode"
)

// Dissimilarity computes the reference measure Δ(old, new) ∈ [0,1]: the
// token-level edit distance between old and new, normalized by the longer
// token sequence. Δ(x, x) = 0; Δ(x, y) = 1 when the two share no tokens at
// all. Deterministic and symmetric for inputs of equal token length.
func Dissimilarity(oldBody, newBody string) float64 {
	oldTokens := tokenize(oldBody)
	newTokens := tokenize(newBody)

	if len(oldTokens) == 0 && len(newTokens) == 0 {
		return 0
	}

	dist := editDistance(oldTokens, newTokens)
	denom := len(oldTokens)
	if len(newTokens) > denom {
		denom = len(newTokens)
	}
	if denom == 0 {
		return 0
	}

	delta := float64(dist) / float64(denom)
	if delta > 1 {
		delta = 1
	}
	if delta < 0 {
		delta = 0
	}
	return delta
}

// tokenize splits on whitespace and punctuation boundaries and case-folds,
// so "Fix Bug" and "fix, bug!" tokenize identically.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '_')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// editDistance is the classic Levenshtein distance over token sequences
// (insert/delete/substitute all cost 1).
func editDistance(a, b []string) int {
	n, m := len(a), len(b)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[m]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
