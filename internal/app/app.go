package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chat-client/internal/api"
	"chat-client/internal/config"
	"chat-client/internal/conversation"
	"chat-client/internal/logger"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

// New builds the client application. The caller supplies a conversation.Notifier and
// its own fx.Invoke or fx.Populate options.
func New(cfg *config.Config, opts ...fx.Option) *fx.App {
	return fx.New(Options(cfg, opts...))
}

// Options is the full dependency graph, exposed for validation in tests.
func Options(cfg *config.Config, opts ...fx.Option) fx.Option {
	return fx.Options(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newSugared,
			newSelf,
			newAPIClient,
			newSocketManager,
			newPublisher,
			newAuditEmitter,
			newMetricsServer,
			newNotificationRelay,
			newDeps,
		),
		fx.Invoke(startTracing),
		fx.Invoke(startMetrics),
		fx.Invoke(startRelay),
		fx.Options(opts...),
	)
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func newSugared(log *zap.Logger) *zap.SugaredLogger {
	return log.Sugar()
}

func newSelf(cfg *config.Config) models.Self {
	return models.Self{ID: cfg.User.ID, Name: cfg.User.Name, Role: cfg.User.Role}
}

func newAPIClient(cfg *config.Config, log *zap.Logger) *api.Client {
	return api.NewClient(cfg.API, logger.Named(log, "api"))
}

func newSocketManager(cfg *config.Config, self models.Self, log *zap.Logger) *ws.Manager {
	return ws.NewManager(cfg.Socket, cfg.API.Token, self, logger.Named(log, "ws"))
}

func newPublisher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) rabbitmq.Publisher {
	l := logger.Named(log, "rabbitmq")
	p := rabbitmq.NewPublisher(cfg.AMQP, l)
	l.Infow("publisher ready", "mode", rabbitmq.PublisherMode(p), "noop_reason", rabbitmq.PublisherNoopReason(p))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return p.Close()
		},
	})
	return p
}

func newAuditEmitter(cfg *config.Config, p rabbitmq.Publisher, self models.Self, log *zap.Logger) *telemetry.AuditEmitter {
	return telemetry.NewAuditEmitter(p, cfg.AMQP.AuditKey, cfg.AMQP.Service, cfg.AMQP.Env, self.ID, logger.Named(log, "audit"))
}

func newMetricsServer(cfg *config.Config, log *zap.Logger) *observability.MetricsServer {
	return observability.NewMetricsServer(cfg.MetricsAddr, logger.Named(log, "metrics"))
}

func newNotificationRelay(
	cfg *config.Config,
	mgr *ws.Manager,
	notifier conversation.Notifier,
	p rabbitmq.Publisher,
	audit *telemetry.AuditEmitter,
	self models.Self,
	log *zap.Logger,
) *conversation.NotificationRelay {
	return conversation.NewNotificationRelay(mgr, notifier, p, cfg.AMQP.NotifyKey, audit, self, logger.Named(log, "notifications"))
}

func newDeps(client *api.Client, mgr *ws.Manager, audit *telemetry.AuditEmitter, log *zap.Logger) conversation.Deps {
	return conversation.Deps{
		API:       client,
		Transport: mgr,
		Audit:     audit,
		Log:       logger.Named(log, "conversation"),
	}
}

func startTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	_, shutdown, err := telemetry.SetupTracing(context.Background(), cfg.Telemetry, logger.Named(log, "tracing"))
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return nil
}

func startMetrics(lc fx.Lifecycle, srv *observability.MetricsServer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			srv.Start()
			return nil
		},
		OnStop: srv.Stop,
	})
}

// startRelay keeps the app usable over REST when the socket is down.
func startRelay(lc fx.Lifecycle, relay *conversation.NotificationRelay, log *zap.Logger) {
	l := logger.Named(log, "notifications")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := relay.Start(ctx); err != nil {
				l.Warnw("notifications unavailable", "error", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return relay.Stop()
		},
	})
}
