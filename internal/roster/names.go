// Package roster resolves the identity written on a paper form to an
// enrolled user, optionally provisioning an account when none matches.
package roster

import "strings"

// NamesMatch reports whether a free-text name from a form ("First [Middle]
// Last") matches a directory record's last/first names. All inputs are
// stripped of non-letter, non-space characters and uppercased before
// comparison.
//
// When the candidate has exactly three words and the directory first name
// has exactly two (first + middle), all of first, middle and last must
// match. Otherwise only the candidate's first and final words are compared
// against the directory first and last names; a middle name present on one
// side only is ignored.
//
// This is a deliberately permissive heuristic with known false negatives
// (reordered names, multi-word surnames). Keep it stable: imported
// historical data depends on its exact behavior.
func NamesMatch(candidate, last, first string) bool {
	cand := nameWords(candidate)
	lastW := nameWords(last)
	firstW := nameWords(first)

	if len(cand) < 2 || len(lastW) < 1 || len(firstW) < 1 {
		return false
	}

	if len(cand) == 3 && len(firstW) == 2 {
		return firstW[0] == cand[0] && firstW[1] == cand[1] && lastW[0] == cand[2]
	}
	return firstW[0] == cand[0] && lastW[0] == cand[len(cand)-1]
}

func nameWords(s string) []string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteRune(' ')
		}
	}
	return strings.Fields(strings.ToUpper(b.String()))
}
