package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"chat-client/internal/conversation"
	"chat-client/internal/mention"
	"chat-client/internal/models"
)

const (
	bold  = "\x1b[1m"
	reset = "\x1b[0m"
)

// console prints confirmed messages once, and again when they are edited.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	shown  map[string]string
	typing bool
}

func newConsole(out io.Writer, color bool) *console {
	return &console{out: out, color: color, shown: make(map[string]string)}
}

func (c *console) OnChange(msgs []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		if m.Pending {
			continue
		}
		stamp := ""
		if m.EditedAt != nil {
			stamp = m.EditedAt.Format(time.RFC3339Nano)
		}
		prev, seen := c.shown[m.ID]
		if seen && prev == stamp {
			continue
		}
		c.shown[m.ID] = stamp
		fmt.Fprintln(c.out, c.format(m, seen))
	}
}

func (c *console) OnTyping(typing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if typing && !c.typing {
		fmt.Fprintln(c.out, "... someone is typing")
	}
	c.typing = typing
}

func (c *console) Notify(n conversation.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n.Err != nil {
		fmt.Fprintf(c.out, "! %s: %v\n", n.Text, n.Err)
		return
	}
	fmt.Fprintf(c.out, "* %s\n", n.Text)
}

func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) format(m models.Message, edited bool) string {
	name := m.Author.Name
	if name == "" {
		name = m.Author.ID
	}

	var body string
	if m.IsFile() {
		f := m.Body.(models.FileBody)
		label := f.OriginalFilename
		if label == "" {
			label = "file"
		}
		body = fmt.Sprintf("[%s] %s", label, f.URL)
	} else {
		body = c.highlight(m.Text(), m.MentionNames())
	}

	line := fmt.Sprintf("[%s] %s: %s  (%s)", m.CreatedAt.Local().Format("15:04"), name, body, m.ID)
	if edited {
		line += " (edited)"
	}
	return line
}

func (c *console) highlight(text string, names []string) string {
	if !c.color {
		return text
	}
	var b strings.Builder
	for _, seg := range mention.Highlight(text, names) {
		if seg.Bold {
			b.WriteString(bold + seg.Text + reset)
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

var _ conversation.Notifier = (*console)(nil)
