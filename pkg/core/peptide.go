package core

import (
	"strings"
	"unicode"
)

// PeptideKey is a flank- and modification-free peptide, optionally with
// isoleucine collapsed to leucine. Spectra with equal keys carry the same peptide.
type PeptideKey string

// modRunes are the characters used by either PTM notation.
const modRunes = "0123456789.[]+-"

// StripFlanks removes the flanking residues of a peptide. The dotted form
// "K.PEPTIDE.R" loses the flank and its dot on each side; otherwise the first and
// last residue (with any attached mass token) are removed.
func StripFlanks(peptide string) string {
	n := len(peptide)
	if n >= 4 && peptide[1] == '.' && peptide[n-2] == '.' {
		return peptide[2 : n-2]
	}

	first := -1
	for i, r := range peptide {
		if unicode.IsLetter(r) {
			first = i
			break
		}
	}
	if first < 0 {
		return ""
	}
	end := first + 1
	for end < n && peptide[end] == '[' {
		closing := strings.IndexByte(peptide[end:], ']')
		if closing < 0 {
			end = n
			break
		}
		end += closing + 1
	}

	last := strings.LastIndexFunc(peptide, unicode.IsLetter)
	if last < end {
		return ""
	}
	return peptide[end:last]
}

// StripMods removes all modification notation (digits, decimal points, brackets
// and signs) from a peptide.
func StripMods(peptide string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(modRunes, r) {
			return -1
		}
		return r
	}, peptide)
}

// NewPeptideKey normalizes a flank-stripped peptide in either notation.
func NewPeptideKey(peptide string, collapseIL bool) PeptideKey {
	key := StripMods(peptide)
	if collapseIL {
		key = strings.ReplaceAll(key, "I", "L")
	}
	return PeptideKey(key)
}
