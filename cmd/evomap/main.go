package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtzanidakis/evomap/internal/activity"
	"github.com/mtzanidakis/evomap/internal/config"
	"github.com/mtzanidakis/evomap/internal/dashboard"
	"github.com/mtzanidakis/evomap/internal/fleet"
	"github.com/mtzanidakis/evomap/internal/natsbus"
	"github.com/mtzanidakis/evomap/internal/telegram"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("evomap %s\n", version)
	case "watch":
		if err := runWatch(); err != nil {
			slog.Error("watch failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: evomap <command>\n\nCommands:\n  watch      Follow the fleet event stream and log activity\n  version    Print version\n")
}

func runWatch() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting evomap watch", "version", version, "url", cfg.Stream.Endpoint())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []dashboard.Option

	// NATS event sink
	if cfg.NATS.URL != "" {
		client, err := natsbus.NewClient(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer client.Close()
		opts = append(opts, dashboard.WithSink(natsbus.NewSink(client)))
		slog.Info("nats sink enabled", "url", cfg.NATS.URL)
	}

	// Telegram notifier
	if cfg.Telegram.Token != "" {
		notifier, err := telegram.NewNotifier(cfg.Telegram)
		if err != nil {
			return fmt.Errorf("init telegram notifier: %w", err)
		}
		opts = append(opts, dashboard.WithSink(notifier))
		slog.Info("telegram notifier enabled")
	} else {
		slog.Warn("telegram token not set, notifier disabled")
	}

	// Metrics
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("metrics server started", "addr", cfg.Metrics.Addr)
	}

	session := dashboard.New(cfg, opts...)
	session.OnConnection(func(connected bool) {
		slog.Info("stream connection changed", "session", session.ID(), "connected", connected)
	})
	session.OnActivity(func(m activity.Message) {
		level := slog.LevelInfo
		if m.Status == fleet.StatusError {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "agent activity",
			"agent", m.AgentName,
			"status", m.Status,
			"previous", m.Previous,
			"text", m.Text,
			"active", session.ActiveCount(),
		)
	})

	err = session.Run(ctx)
	slog.Info("shutting down")
	return err
}
