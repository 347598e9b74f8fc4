// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"strings"
	"unicode"
)

// Censor decides whether relayed text must be blocked. Matching normalizes
// case, strips non-alphanumeric characters, applies a bypass-character
// substitution table and then tests prefix and whole-word block lists.
type Censor struct {
	prefixes []string
	words    map[string]struct{}
	bypass   map[rune]rune
}

// NewCensor builds a filter from the configured block lists. The bypass
// table maps look-alike characters to the letters they stand in for
// (e.g. "3" -> "e").
func NewCensor(prefixes, words []string, bypass map[string]string) *Censor {
	c := &Censor{
		prefixes: make([]string, 0, len(prefixes)),
		words:    make(map[string]struct{}, len(words)),
		bypass:   make(map[rune]rune, len(bypass)),
	}
	for _, p := range prefixes {
		c.prefixes = append(c.prefixes, strings.ToLower(p))
	}
	for _, w := range words {
		c.words[strings.ToLower(w)] = struct{}{}
	}
	for from, to := range bypass {
		fr := []rune(from)
		tr := []rune(to)
		if len(fr) == 1 && len(tr) == 1 {
			c.bypass[fr[0]] = tr[0]
		}
	}
	return c
}

// ShouldBlock reports whether text hits the block lists after normalization.
func (c *Censor) ShouldBlock(text string) bool {
	for _, word := range strings.Fields(strings.ToLower(text)) {
		normalized := c.normalizeWord(word)
		if normalized == "" {
			continue
		}
		for _, prefix := range c.prefixes {
			if strings.HasPrefix(normalized, prefix) {
				return true
			}
		}
		if _, ok := c.words[normalized]; ok {
			return true
		}
	}
	return false
}

func (c *Censor) normalizeWord(word string) string {
	var b strings.Builder
	for _, r := range word {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if sub, ok := c.bypass[r]; ok {
			r = sub
		}
		b.WriteRune(r)
	}
	return b.String()
}
