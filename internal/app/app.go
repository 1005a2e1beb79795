// Package app assembles the bot: config, logging, storage, transport, parser,
// router, and the reminder service, plus hot reload and ordered shutdown.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calbot/internal/bot"
	"calbot/internal/config"
	"calbot/internal/parser"
	"calbot/internal/runtime/supervisor"
	"calbot/internal/services/reminder"
	"calbot/internal/storage"
	"calbot/internal/transport/telegram"
	logx "calbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter
	store   storage.Store
	router  *bot.Router
	rem     *reminder.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	sc, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	pending, err := storage.OpenPending(sc, store, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	parseTimeout, err := config.ParseDurationOrDefault("parser.timeout", cfg.Parser.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	parse := parser.New(parser.Config{
		APIKey:  cfg.Parser.APIKey,
		BaseURL: cfg.Parser.BaseURL,
		Model:   cfg.Parser.Model,
		Timeout: parseTimeout,
		Demo:    cfg.Parser.Demo,
	}, log.With(logx.String("comp", "parser")))

	defaultPolicy, err := cfg.DefaultPolicy()
	if err != nil {
		return nil, err
	}

	router := bot.New(bot.Config{OwnerUserIDs: cfg.Telegram.OwnerUserIDs},
		adapter, store, pending, parse, defaultPolicy,
		log.With(logx.String("comp", "bot")))

	rem := reminder.New(reminder.Config{
		Enabled:    cfg.Reminder.Enabled,
		Cron:       cfg.Reminder.Cron,
		RatePerSec: cfg.Reminder.RatePerSec,
	}, store, adapter, log.With(logx.String("comp", "reminder")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		adapter: adapter,
		store:   store,
		router:  router,
		rem:     rem,
	}, nil
}

// Done is closed when the run context is canceled, including on fatal errors.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	if err := a.adapter.Start(a.sup.Context(), a.router.Updates()); err != nil {
		return err
	}
	a.router.Start(a.sup.Context())
	if err := a.rem.Start(a.sup.Context()); err != nil {
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: only the newest config matters.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							cfg = newer
						}
					default:
						goto apply
					}
				}
			apply:
				a.applyReload(last, cfg)
				last = cfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

// applyReload pushes a committed config into the running services. Sections
// that cannot change live are logged as restart-required.
func (a *App) applyReload(old, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(old, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload with no effective changes")
		return
	}

	a.logs.Apply(logConfig(cfg))

	defaultPolicy, err := cfg.DefaultPolicy()
	if err != nil {
		a.log.Warn("invalid scheduling config; keeping previous", logx.Err(err))
		defaultPolicy, _ = old.DefaultPolicy()
	}
	a.router.Apply(bot.Config{OwnerUserIDs: cfg.Telegram.OwnerUserIDs}, defaultPolicy)

	if err := a.rem.Apply(reminder.Config{
		Enabled:    cfg.Reminder.Enabled,
		Cron:       cfg.Reminder.Cron,
		RatePerSec: cfg.Reminder.RatePerSec,
	}); err != nil {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	}

	for _, s := range sections {
		switch s {
		case "telegram", "storage", "parser":
			a.log.Warn("config section needs a restart to take effect", logx.String("section", s))
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	a.step(ctx, "router", 2*time.Second, func(c context.Context) error { a.router.Stop(c); return nil })
	a.step(ctx, "reminder", 2*time.Second, func(c context.Context) error { a.rem.Stop(c); return nil })
	a.step(ctx, "adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "storage", time.Second, func(c context.Context) error { return a.store.Close() })
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

// step bounds one shutdown stage so a stuck component can't stall the rest.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step failed", logx.String("name", name), logx.Err(err))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached", logx.String("name", name))
	}
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
