package pipeline

import (
	"regexp"
	"strings"
)

// sentenceBuffer accumulates streamed tokens and releases text at sentence
// boundaries so synthesis can start before the model finishes.
type sentenceBuffer struct {
	buf strings.Builder
}

// Add appends a token and returns any complete sentences, or "".
func (s *sentenceBuffer) Add(token string) string {
	s.buf.WriteString(token)
	complete, rest := splitAtSentence(s.buf.String())
	if complete == "" {
		return ""
	}
	s.buf.Reset()
	s.buf.WriteString(rest)
	return complete
}

// Flush returns whatever is left.
func (s *sentenceBuffer) Flush() string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return text
}

// splitAtSentence cuts text after the last ".", "!" or "?" that is followed
// by whitespace.
func splitAtSentence(text string) (string, string) {
	cut := -1
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if isSpace(text[i+1]) {
				cut = i + 1
			}
		}
	}
	if cut < 0 {
		return "", text
	}
	return strings.TrimSpace(text[:cut]), text[cut:]
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\t'
}

// codeFilter drops fenced code blocks from a token stream. Fences may be split
// across tokens.
type codeFilter struct {
	inFence bool
	pending string
}

func (c *codeFilter) Filter(token string) string {
	text := c.pending + token
	c.pending = ""

	var out strings.Builder
	for {
		idx := strings.Index(text, "```")
		if idx < 0 {
			break
		}
		if !c.inFence {
			out.WriteString(text[:idx])
		}
		c.inFence = !c.inFence
		text = text[idx+3:]
	}

	// hold back a possible partial fence
	if n := trailingBackticks(text); n > 0 {
		c.pending = text[len(text)-n:]
		text = text[:len(text)-n]
	}
	if !c.inFence {
		out.WriteString(text)
	}
	return out.String()
}

func trailingBackticks(s string) int {
	n := 0
	for n < len(s) && n < 2 && s[len(s)-1-n] == '`' {
		n++
	}
	return n
}

var (
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdEmphasis = regexp.MustCompile("[*_`#]+")
	mdBullet   = regexp.MustCompile(`(?m)^\s*(?:[-•]|\d+\.)\s+`)
	spaces     = regexp.MustCompile(`\s+`)
)

// speakable strips markdown so a sentence reads naturally when synthesized.
func speakable(s string) string {
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdBullet.ReplaceAllString(s, "")
	s = mdEmphasis.ReplaceAllString(s, "")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
