package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"screen-bot/api/internal/config"
	"screen-bot/api/internal/httpserver"
	"screen-bot/api/internal/supervisor"
	"screen-bot/api/internal/telegram"
)

func serveCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Telegram and serve until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, err := supervisor.Connect(ctx, cfg.TelegramBotToken, cfg.StartupRetries, cfg.StartupBackoff, a.log)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil // signalled before we got connected
		}
		return err
	}

	r := &telegram.Router{
		Bot:            bot,
		Allowed:        cfg.IsAllowed,
		Store:          a.store,
		Pipeline:       a.pipeline,
		Capturer:       a.capturer,
		Metrics:        a.metrics,
		Log:            a.log.With("component", "router"),
		SessionTimeout: cfg.SessionTimeout,
	}
	if a.runs != nil {
		r.History = a.runs
	}

	var pinger httpserver.Pinger
	if a.db != nil {
		pinger = a.db
	}

	sv := &supervisor.Supervisor{
		Updates:    bot,
		Dispatcher: telegram.NewDispatcher(ctx, r.HandleUpdate, a.log),
		Sweeper: &supervisor.Sweeper{
			Store:    a.store,
			Timeout:  cfg.SessionTimeout,
			Interval: cfg.SweepInterval,
			Metrics:  a.metrics,
			Log:      a.log.With("component", "sweeper"),
		},
		HTTP:          httpserver.New("0.0.0.0:"+cfg.Port, httpserver.Handler(a.metrics.Registry, pinger)),
		ShutdownGrace: cfg.ShutdownGrace,
		Log:           a.log,
	}
	return sv.Run(ctx)
}
