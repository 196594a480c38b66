package handler

import (
	"math/rand/v2"
	"strings"
)

// Default win sentence halves around the winner mention.
const (
	defaultWinPrefix = "Bravo "
	defaultWinSuffix = ", à vous la main."
)

// SplitSentence splits a win sentence template around its "{}" placeholder.
// Templates without a placeholder fall back to the default sentence.
func SplitSentence(template string) (prefix, suffix string) {
	parts := strings.SplitN(template, "{}", 3)
	if len(parts) < 2 {
		return defaultWinPrefix, defaultWinSuffix
	}
	return parts[0], parts[1]
}

// WinSentences picks the sentence announcing a winner.
type WinSentences struct {
	templates []string
	pick      func(n int) int
}

// NewWinSentences creates a picker over the configured templates.
func NewWinSentences(templates []string) *WinSentences {
	return &WinSentences{templates: templates, pick: rand.IntN}
}

// Format renders a random sentence around the winner mention.
// The mention is HTML already; the template halves are escaped.
func (w *WinSentences) Format(mention string) string {
	prefix, suffix := defaultWinPrefix, defaultWinSuffix
	if len(w.templates) > 0 {
		prefix, suffix = SplitSentence(w.templates[w.pick(len(w.templates))])
	}
	return escape(prefix) + mention + escape(suffix)
}
