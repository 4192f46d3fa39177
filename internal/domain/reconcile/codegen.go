package reconcile

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	journalCodeLength = 5
	journalCodeStem   = 4
	fallbackCodeBase  = "JRNL"
)

var codeUpper = cases.Upper(language.Turkish)

// JournalCodeBase derives the preferred code for a journal name: spaces are
// stripped, the first five characters kept and upper-cased
func JournalCodeBase(name string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)

	runes := []rune(stripped)
	if len(runes) > journalCodeLength {
		runes = runes[:journalCodeLength]
	}
	base := codeUpper.String(string(runes))
	if base == "" {
		return fallbackCodeBase
	}
	return base
}

// GenerateJournalCode returns a code absent from existing and the number of
// candidates tried. The base code is tried first, then the four-character
// stem with an increasing numeric suffix. Every suffix yields a distinct
// candidate, so len(existing)+1 attempts always find a free code.
func GenerateJournalCode(name string, existing map[string]struct{}) (string, int) {
	base := JournalCodeBase(name)
	attempts := 1
	if _, taken := existing[base]; !taken {
		return base, attempts
	}

	stem := []rune(base)
	if len(stem) > journalCodeStem {
		stem = stem[:journalCodeStem]
	}
	prefix := string(stem)

	limit := len(existing) + 1
	for counter := 1; attempts < limit; counter++ {
		candidate := prefix + strconv.Itoa(counter)
		if candidate == base {
			continue
		}
		attempts++
		if _, taken := existing[candidate]; !taken {
			return candidate, attempts
		}
	}
	return "", attempts
}

// CodeSet builds a lookup set from a code list
func CodeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}
