package cmd

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"chat-client/internal/app"
	"chat-client/internal/config"
	"chat-client/internal/conversation"
	"chat-client/internal/models"
)

// openSession starts the application graph and opens ref. The returned func closes
// the session and stops the graph.
func openSession(ctx context.Context, cfg *config.Config, ref models.ConversationRef, out *console, live bool) (*conversation.Session, func(), error) {
	var (
		deps conversation.Deps
		self models.Self
	)
	fxApp := app.New(cfg,
		fx.Provide(func() conversation.Notifier { return out }),
		fx.Populate(&deps, &self),
	)
	if err := fxApp.Err(); err != nil {
		return nil, nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	stopApp := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), fxApp.StopTimeout())
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	}

	opts := conversation.Options{
		Conversation:  ref,
		Self:          self,
		PageLimit:     cfg.Chat.PageLimit,
		TypingTimeout: cfg.Chat.TypingTimeout,
		TypingRate:    cfg.Chat.TypingRate,
		Notifier:      out,
	}
	if live {
		opts.OnChange = out.OnChange
		opts.OnTyping = out.OnTyping
	}

	s, err := conversation.Open(ctx, deps, opts)
	if err != nil {
		stopApp()
		return nil, nil, err
	}
	return s, func() {
		_ = s.Close()
		stopApp()
	}, nil
}
