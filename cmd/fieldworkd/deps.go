package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	audithook "github.com/garagescholars/garage-tech-stack-sub001/audit_hook"
	"github.com/garagescholars/garage-tech-stack-sub001/engine"
	"github.com/garagescholars/garage-tech-stack-sub001/generate"
	"github.com/garagescholars/garage-tech-stack-sub001/generate/claude"
	"github.com/garagescholars/garage-tech-stack-sub001/generate/remote"
	"github.com/garagescholars/garage-tech-stack-sub001/media"
	"github.com/garagescholars/garage-tech-stack-sub001/media/s3"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/notify/sendgrid"
	"github.com/garagescholars/garage-tech-stack-sub001/notify/webhook"
	"github.com/garagescholars/garage-tech-stack-sub001/observability"
	"github.com/garagescholars/garage-tech-stack-sub001/store"
	"github.com/garagescholars/garage-tech-stack-sub001/store/memory"
	"github.com/garagescholars/garage-tech-stack-sub001/store/mongo"
	"github.com/garagescholars/garage-tech-stack-sub001/store/postgres"
	"github.com/garagescholars/garage-tech-stack-sub001/store/redis"
)

// newLogger builds the process logger from the log section.
func newLogger(cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// openStore connects the configured backend. The returned cleanup releases
// client resources the store does not own and must run after the store is
// closed.
func openStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case "memory":
		return memory.New(), noop, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close failed", "error", err)
			}
		}
		return redis.New(client, redis.WithLogger(logger)), cleanup, nil

	case "postgres":
		s, err := postgres.New(ctx, cfg.Postgres.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case "mongo":
		client, err := mongod.Connect(mongoopts.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		cleanup := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		}
		return mongo.New(client.Database(cfg.Mongo.Database), mongo.WithLogger(logger)), cleanup, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// newGenerator returns nil for the "none" driver so the engine reports
// generation as unavailable.
func newGenerator(cfg GeneratorConfig, jobs store.Store, logger *slog.Logger) generate.Generator {
	switch cfg.Driver {
	case "claude":
		reqOpts := []option.RequestOption{option.WithAPIKey(cfg.Claude.APIKey)}
		if cfg.Claude.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.Claude.BaseURL))
		}
		opts := []claude.Option{claude.WithLogger(logger)}
		if cfg.Claude.Model != "" {
			opts = append(opts, claude.WithModel(cfg.Claude.Model))
		}
		if cfg.Claude.MaxTokens > 0 {
			opts = append(opts, claude.WithMaxTokens(cfg.Claude.MaxTokens))
		}
		return claude.New(jobs, reqOpts, opts...)
	case "remote":
		var opts []remote.Option
		if cfg.Remote.Token != "" {
			opts = append(opts, remote.WithToken(cfg.Remote.Token))
		}
		return remote.New(cfg.Remote.URL, opts...)
	}
	return nil
}

// newNotifier routes email through SendGrid and SMS through the webhook
// gateway. Unconfigured channels log instead of sending.
func newNotifier(cfg NotifyConfig, logger *slog.Logger) (notify.Notifier, error) {
	r := notify.Router{
		Email: notify.Log{Logger: logger.With("channel", "email")},
		SMS:   notify.Log{Logger: logger.With("channel", "sms")},
	}
	if cfg.SendGrid.APIKey != "" {
		sg, err := sendgrid.New(sendgrid.Config{
			APIKey:   cfg.SendGrid.APIKey,
			From:     cfg.SendGrid.From,
			FromName: cfg.SendGrid.FromName,
			Subject:  cfg.SendGrid.Subject,
		}, sendgrid.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		r.Email = sg
	}
	if cfg.SMS.WebhookURL != "" {
		opts := []webhook.Option{webhook.WithLogger(logger)}
		if cfg.SMS.Token != "" {
			opts = append(opts, webhook.WithToken(cfg.SMS.Token))
		}
		r.SMS = webhook.New(cfg.SMS.WebhookURL, opts...)
	}
	return r, nil
}

func newMedia(ctx context.Context, cfg MediaConfig) (media.Storage, error) {
	if cfg.Driver != "s3" {
		return media.NewMemory(), nil
	}
	return s3.New(ctx, s3.Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		URLExpiry:       cfg.S3.URLExpiry,
	})
}

// auditRecorder writes audit events to the process log.
func auditRecorder(logger *slog.Logger) audithook.Recorder {
	logger = logger.With("component", "audit")
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		logger.LogAttrs(ctx, slog.LevelInfo, ev.Action,
			slog.String("actor_id", ev.ActorID),
			slog.String("actor_role", ev.ActorRole),
			slog.String("resource", ev.Resource),
			slog.String("resource_id", ev.ResourceID),
			slog.String("category", ev.Category),
			slog.String("outcome", ev.Outcome),
			slog.String("severity", ev.Severity),
			slog.String("reason", ev.Reason),
			slog.Any("metadata", ev.Metadata),
		)
		return nil
	})
}

// engineOptions assembles the collaborators the engine is built with.
func engineOptions(ctx context.Context, cfg *Config, st store.Store, logger *slog.Logger) ([]engine.Option, error) {
	n, err := newNotifier(cfg.Notify, logger)
	if err != nil {
		return nil, err
	}
	m, err := newMedia(ctx, cfg.Media)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithNotifier(n),
		engine.WithMediaStorage(m),
		engine.WithExtension(observability.NewMetricsExtension()),
	}
	if g := newGenerator(cfg.Generator, st, logger); g != nil {
		opts = append(opts, engine.WithGenerator(g))
	}
	if cfg.Audit.Enabled {
		auditOpts := []audithook.Option{audithook.WithLogger(logger)}
		if len(cfg.Audit.Actions) > 0 {
			auditOpts = append(auditOpts, audithook.WithActions(cfg.Audit.Actions...))
		}
		opts = append(opts, engine.WithExtension(audithook.New(auditRecorder(logger), auditOpts...)))
	}
	return opts, nil
}
