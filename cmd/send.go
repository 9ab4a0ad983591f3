package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chat-client/internal/conversation"
	"chat-client/internal/models"
)

func newSendCmd() *cobra.Command {
	var (
		t     target
		files []string
	)
	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send one message, with optional files, and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := t.ref()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := newConsole(cmd.ErrOrStderr(), false)
			s, closeFn, err := openSession(cmd.Context(), cfg, ref, out, false)
			if err != nil {
				return err
			}
			defer closeFn()

			attachments := make([]conversation.Attachment, 0, len(files))
			for _, path := range files {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				attachments = append(attachments, conversation.Attachment{Name: filepath.Base(path), Content: f})
			}

			before := idSet(s.Messages())
			if err := s.Submit(cmd.Context(), strings.Join(args, " "), attachments...); err != nil {
				return err
			}
			for _, m := range s.Messages() {
				if !before[m.ID] && m.Author.ID == cfg.User.ID {
					fmt.Fprintln(cmd.OutOrStdout(), m.ID)
				}
			}
			return nil
		},
	}
	t.bind(cmd)
	cmd.Flags().StringArrayVar(&files, "file", nil, "file to send ahead of the text (repeatable)")
	return cmd
}

func idSet(msgs []models.Message) map[string]bool {
	set := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		set[m.ID] = true
	}
	return set
}
