// Package fuzzy implements the permissive name matching used by autocomplete,
// get-or-create flows and community search. A query matches a candidate when
// it appears as a substring or as an in-order subsequence, both
// case-insensitive. Matching is deliberately typo- and abbreviation-tolerant;
// callers truncate result lists and no relevance ranking is applied.
package fuzzy

import "strings"

// Matches reports whether query matches candidate. An empty query matches
// everything, mirroring an empty autocomplete box showing all entries.
func Matches(query, candidate string) bool {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)
	if strings.Contains(c, q) {
		return true
	}
	return subsequence(q, c)
}

// subsequence reports whether every rune of q occurs in c in order,
// not necessarily contiguously.
func subsequence(q, c string) bool {
	rc := []rune(c)
	i := 0
	for _, qr := range q {
		found := false
		for ; i < len(rc); i++ {
			if rc[i] == qr {
				found = true
				i++
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Filter returns the candidates matching query, preserving input order and
// truncated to limit when limit is positive.
func Filter(query string, candidates []string, limit int) []string {
	var out []string
	for _, c := range candidates {
		if Matches(query, c) {
			out = append(out, c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
