package search

import (
	"strings"
	"unicode"
)

// tokenize lowercases text and splits it on non-alphanumeric runes,
// dropping empty tokens. Used both to derive query keywords and to test
// whole-token membership in a candidate's name.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0:0]
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// keywordBoost implements §4.7 step 6's boost formula: for every query
// keyword, accumulate a weighted hit indicator against content, name and
// signature, plus a bonus when the keyword is a whole token of name.
func keywordBoost(keywords []string, content, name, signature string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	lowerContent := strings.ToLower(content)
	lowerSignature := strings.ToLower(signature)
	lowerName := strings.ToLower(name)
	nameTokens := tokenize(name)
	nameTokenSet := make(map[string]bool, len(nameTokens))
	for _, t := range nameTokens {
		nameTokenSet[t] = true
	}

	var boost float64
	for _, kw := range keywords {
		if strings.Contains(lowerContent, kw) {
			boost += 0.10
		}
		if strings.Contains(lowerName, kw) {
			boost += 0.20
		}
		if strings.Contains(lowerSignature, kw) {
			boost += 0.15
		}
		if nameTokenSet[kw] {
			boost += 0.25
		}
	}
	return boost
}
