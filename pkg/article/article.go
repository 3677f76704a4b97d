// Package article normalizes submitted article text before it is adapted for
// a platform: rich-text HTML is flattened and long text is cut at sentence
// boundaries.
package article

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Ellipsis is appended when no whole sentence fits the limit.
const Ellipsis = "..."

// blockElements end a line in the flattened text.
const blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr, section, article"

// PlainText flattens editor HTML into plain text, one block element per line.
// Input without markup is returned trimmed.
func PlainText(html string) (string, error) {
	if !strings.Contains(html, "<") {
		return strings.TrimSpace(html), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, svg, img, video, audio, form").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

// Truncate shortens text to at most max runes, keeping whole sentences.
//
// Sentences are accumulated greedily from the start while they fit. When not
// even the first sentence fits, the text is cut so that it ends in Ellipsis
// and stays within max runes. max <= 0 disables truncation.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}

	var b strings.Builder
	n := 0
	for _, sentence := range Sentences(text) {
		if n+utf8.RuneCountInString(strings.TrimRightFunc(sentence, unicode.IsSpace)) > max {
			break
		}
		b.WriteString(sentence)
		n += utf8.RuneCountInString(sentence)
	}

	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	keep := max - utf8.RuneCountInString(Ellipsis)
	if keep <= 0 {
		return string([]rune(text)[:max])
	}
	return strings.TrimRightFunc(string([]rune(text)[:keep]), unicode.IsSpace) + Ellipsis
}

// Sentences splits text after each run of sentence terminators. Trailing
// whitespace stays with the sentence it follows, so joining the parts yields
// the input.
func Sentences(text string) []string {
	var parts []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminator(runes[j]) || isClosing(runes[j])) {
			j++
		}
		// ASCII terminators need a following space or the end ("3.14", "e.g").
		if runes[i] < utf8.RuneSelf && j < len(runes) && !unicode.IsSpace(runes[j]) {
			i = j - 1
			continue
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		parts = append(parts, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', '”', '’', '）', '」', '』':
		return true
	}
	return false
}
