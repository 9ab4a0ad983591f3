package mention

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Segment is a run of message text. Bold segments are confirmed mentions.
type Segment struct {
	Text string
	Bold bool
}

// Highlight splits sent content into segments. An @Token is bold only when it names a
// user in mentionBy; any other @word stays plain text.
func Highlight(content string, mentionBy []string) []Segment {
	var (
		segs  []Segment
		plain strings.Builder
	)
	flush := func() {
		if plain.Len() > 0 {
			segs = append(segs, Segment{Text: plain.String()})
			plain.Reset()
		}
	}

	for i := 0; i < len(content); i++ {
		if content[i] == '@' {
			if name, ok := longestAt(content, i+1, mentionBy); ok {
				flush()
				segs = append(segs, Segment{Text: "@" + name, Bold: true})
				i += len(name)
				continue
			}
		}
		plain.WriteByte(content[i])
	}
	flush()
	return segs
}

var strict = bluemonday.StrictPolicy()

// HTML renders segments with sanitized text, wrapping mentions in <strong>.
func HTML(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		text := strict.Sanitize(s.Text)
		if s.Bold {
			b.WriteString("<strong>")
			b.WriteString(text)
			b.WriteString("</strong>")
			continue
		}
		b.WriteString(text)
	}
	return b.String()
}
