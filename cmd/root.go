package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chat-client/internal/config"
	"chat-client/internal/models"
)

var rootCmd = &cobra.Command{
	Use:           "chat-client",
	Short:         "Terminal client for task comments and group chats",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newWatchCmd(), newSendCmd())
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// target holds the --task/--group pair shared by subcommands.
type target struct {
	task  string
	group string
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.task, "task", "", "task id whose comments to open")
	cmd.Flags().StringVar(&t.group, "group", "", "group chat id to open")
	cmd.MarkFlagsMutuallyExclusive("task", "group")
	cmd.MarkFlagsOneRequired("task", "group")
}

func (t *target) ref() (models.ConversationRef, error) {
	ref := models.TaskChat(t.task)
	if t.group != "" {
		ref = models.GroupChat(t.group)
	}
	if !ref.Valid() {
		return ref, errors.New("a non-empty --task or --group id is required")
	}
	return ref, nil
}

// loadConfig is swapped in tests.
var loadConfig = config.Load
