package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlightBoldsOnlyConfirmedMentions(t *testing.T) {
	segs := Highlight("hi @Ann and @Zed", []string{"Ann"})

	assert.Equal(t, []Segment{
		{Text: "hi "},
		{Text: "@Ann", Bold: true},
		{Text: " and @Zed"},
	}, segs)
}

func TestHighlightNoMentions(t *testing.T) {
	assert.Equal(t, []Segment{{Text: "plain"}}, Highlight("plain", nil))
	assert.Nil(t, Highlight("", []string{"Ann"}))
}

func TestHighlightMultiWordName(t *testing.T) {
	segs := Highlight("@John Doe ok", []string{"John", "John Doe"})

	assert.Equal(t, []Segment{
		{Text: "@John Doe", Bold: true},
		{Text: " ok"},
	}, segs)
}

func TestHTMLSanitizes(t *testing.T) {
	out := HTML(Highlight("hey @Ann <script>alert(1)</script>", []string{"Ann"}))

	assert.Contains(t, out, "<strong>@Ann</strong>")
	assert.NotContains(t, out, "<script>")
}
