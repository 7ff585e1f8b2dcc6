package textutil

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func getTokenizer() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			// english.NewSentenceTokenizer only fails on corrupt embedded
			// training data.
			panic(err)
		}
		tokenizer = t
	})
	return tokenizer
}

// Snippet returns the leading sentences of text, up to maxSentences and
// maxChars, for previews shown to the oracle and in tool results. Falls
// back to a hard character cut when the text has no sentence boundaries.
func Snippet(text string, maxSentences, maxChars int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if maxSentences <= 0 {
		maxSentences = 2
	}
	if maxChars <= 0 {
		maxChars = 280
	}

	var b strings.Builder
	for i, s := range getTokenizer().Tokenize(text) {
		if i >= maxSentences {
			break
		}
		chunk := strings.TrimSpace(s.Text)
		if chunk == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(chunk)
		if b.Len() >= maxChars {
			break
		}
	}

	out := b.String()
	if out == "" {
		out = text
	}
	if len(out) > maxChars {
		// Never cut mid-rune: the result feeds prompts and JSON.
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimSpace(out[:cut]) + "…"
	}
	return out
}
