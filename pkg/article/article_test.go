package article

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate_ShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "Short.", Truncate("Short.", 100))
	assert.Equal(t, "Anything goes", Truncate("Anything goes", 0))
}

func TestTruncate_KeepsWholeSentences(t *testing.T) {
	text := "Hello world. This is the second sentence. And a third!"

	got := Truncate(text, 45)
	assert.Equal(t, "Hello world. This is the second sentence.", got)

	got = Truncate(text, 12)
	assert.Equal(t, "Hello world.", got)
}

func TestTruncate_HardCutWhenNoSentenceFits(t *testing.T) {
	text := "A single very long sentence without any early terminator at all."

	got := Truncate(text, 10)
	assert.Equal(t, "A singl"+Ellipsis, got)
	assert.Equal(t, 10, utf8.RuneCountInString(got))

	// no room for the ellipsis
	assert.Equal(t, "A s", Truncate(text, 3))
}

func TestTruncate_CJK(t *testing.T) {
	text := "今天天气很好。我们去公园散步吧！然后回家。"

	got := Truncate(text, 16)
	assert.Equal(t, "今天天气很好。我们去公园散步吧！", got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 16)
}

func TestSentences_RoundTrip(t *testing.T) {
	text := `Pi is 3.14 roughly. He said "stop!" Then left... Fine`

	parts := Sentences(text)
	assert.Equal(t, text, strings.Join(parts, ""))
	assert.Equal(t, []string{
		"Pi is 3.14 roughly. ",
		`He said "stop!" `,
		"Then left... ",
		"Fine",
	}, parts)
}

func TestPlainText(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head><body>
		<h1>Launch   notes</h1>
		<p>First <b>bold</b> line.<br>Second line.</p>
		<script>alert(1)</script>
		<ul><li>one</li><li>two</li></ul>
	</body></html>`

	got, err := PlainText(html)
	require.NoError(t, err)

	assert.Equal(t, "Launch notes\nFirst bold line.\nSecond line.\none\ntwo", got)
}

func TestPlainText_NoMarkup(t *testing.T) {
	got, err := PlainText("  plain text 1 > 0  ")
	require.NoError(t, err)
	assert.Equal(t, "plain text 1 > 0", got)
}
