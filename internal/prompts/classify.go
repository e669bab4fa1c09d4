package prompts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Classify returns the guidance id of the first rule with a keyword that
// occurs in input (case-insensitive), or the table's fallback.
func (t RuleTable) Classify(input string) string {
	lower := strings.ToLower(input)
	if strings.TrimSpace(lower) == "" {
		return t.Fallback
	}
	for _, r := range t.Rules {
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if t.WholeWords && containsWord(lower, kw) || !t.WholeWords && strings.Contains(lower, kw) {
				return r.Guidance
			}
		}
	}
	return t.Fallback
}

// GuidanceFor returns the guidance text selected for input.
func (t RuleTable) GuidanceFor(input string) string {
	return strings.TrimSpace(t.Guidance[t.Classify(input)])
}

func containsWord(s, word string) bool {
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		i = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
