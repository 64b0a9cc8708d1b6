// Package textmatch provides cheap lexical normalization used to shortlist
// candidate records before asking the semantic matcher. It is deliberately
// crude: recall matters more than precision here, because the matcher makes
// the final call and an over-wide shortlist only costs tokens.
package textmatch

import (
	"strings"
	"unicode"
)

// stopTokens are generic words that carry no identity signal and would
// otherwise make every lab or test name overlap with every other one.
var stopTokens = map[string]bool{
	"the": true, "and": true, "of": true, "for": true,
	"de": true, "di": true, "srl": true, "ltd": true, "llc": true,
	"inc": true, "sa": true, "gmbh": true,
}

// Tokens splits a name into normalized comparison tokens: lowercased runs of
// letters and digits, with single characters and generic filler words dropped.
func Tokens(value string) []string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	if lowered == "" {
		return nil
	}

	var tokens []string
	var current strings.Builder
	flush := func() {
		token := current.String()
		current.Reset()
		if len(token) < 2 || stopTokens[token] {
			return
		}
		tokens = append(tokens, token)
	}

	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// Key collapses a name into a deterministic identifier: normalized tokens
// joined by underscores. Used as the serialization key for entity creation
// so that two concurrent sightings of the same name contend on one lock.
func Key(value string) string {
	return strings.Join(Tokens(value), "_")
}

// Overlap returns the number of tokens the two token sets share. Token
// prefixes of at least four characters also count, so "laboratory" still
// overlaps "laboratories" and "lab" stays distinct from "label".
func Overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	count := 0
	for _, ta := range a {
		for _, tb := range b {
			if tokensMatch(ta, tb) {
				count++
				break
			}
		}
	}
	return count
}

// AnyOverlap reports whether the two names share at least one normalized token.
func AnyOverlap(a, b string) bool {
	return Overlap(Tokens(a), Tokens(b)) > 0
}

func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return len(shorter) >= 4 && strings.HasPrefix(longer, shorter)
}
