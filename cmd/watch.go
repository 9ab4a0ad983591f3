package cmd

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chat-client/internal/conversation"
)

const watchHelp = `commands:
  /more              load older messages
  /edit <id> <text>  edit one of your messages
  /file <path> [text] send a file, then optional text
  /seen <id>         report whether everyone has read a message
  /members           list participants
  /quit              leave
anything else is sent as a message
`

func newWatchCmd() *cobra.Command {
	var (
		t     target
		plain bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open a conversation and chat interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := t.ref()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := newConsole(cmd.OutOrStdout(), !plain)
			s, closeFn, err := openSession(cmd.Context(), cfg, ref, out, true)
			if err != nil {
				return err
			}
			defer closeFn()

			out.Printf("opened %s, /help for commands\n", ref)
			return repl(cmd.Context(), s, out, cmd.InOrStdin())
		},
	}
	t.bind(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "disable bold mention highlighting")
	return cmd
}

// repl reads lines until EOF, /quit or ctx is done.
func repl(ctx context.Context, s *conversation.Session, out *console, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if quit := handleLine(ctx, s, out, line); quit {
				return nil
			}
		}
	}
}

// handleLine runs one input line and reports whether the user asked to quit. Send
// and edit failures are already shown through the notifier.
func handleLine(ctx context.Context, s *conversation.Session, out *console, line string) bool {
	text := strings.TrimSpace(line)
	if text == "" {
		return false
	}
	if !strings.HasPrefix(text, "/") {
		s.Keystroke()
		report(out, s.Submit(ctx, text))
		return false
	}

	name, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		out.Printf("%s", watchHelp)
	case "/more":
		added, err := s.LoadMore(ctx)
		if err == nil {
			out.Printf("* loaded %d older messages\n", added)
		} else if !errors.Is(err, conversation.ErrNoMoreMessages) {
			out.Printf("! load more: %v\n", err)
		}
	case "/edit":
		id, content, ok := strings.Cut(rest, " ")
		if !ok {
			out.Printf("usage: /edit <id> <text>\n")
			return false
		}
		report(out, s.Edit(ctx, id, content))
	case "/file":
		path, caption, _ := strings.Cut(rest, " ")
		if path == "" {
			out.Printf("usage: /file <path> [text]\n")
			return false
		}
		f, err := os.Open(path)
		if err != nil {
			out.Printf("! %v\n", err)
			return false
		}
		defer f.Close()
		report(out, s.Submit(ctx, caption, conversation.Attachment{Name: filepath.Base(path), Content: f}))
	case "/seen":
		if err := s.RefreshMembers(ctx); err != nil {
			out.Printf("! %v\n", err)
			return false
		}
		out.Printf("* %s seen by everyone: %t\n", rest, s.SeenByAll(rest))
	case "/members":
		for _, m := range s.Members() {
			out.Printf("  %s (%s)\n", m.Name, m.ID)
		}
	default:
		out.Printf("unknown command %s, /help for commands\n", name)
	}
	return false
}

// report prints errors the notifier has not shown.
func report(out *console, err error) {
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrSubmitInProgress),
		errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrMessageNotFound),
		errors.Is(err, conversation.ErrNotEditable),
		errors.Is(err, conversation.ErrSessionClosed):
		out.Printf("! %v\n", err)
	}
}
