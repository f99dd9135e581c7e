package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"GameStateServer/internal/config"
	"GameStateServer/internal/service/events"
	"GameStateServer/internal/service/events/csgo"
	"GameStateServer/internal/service/state"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "gsi-server",
		Short: "CS:GO Game State Integration receiver",
		Long: `gsi-server installs a game state integration config into the CS:GO cfg folder,
listens on 127.0.0.1 for state snapshots pushed by the game and logs
notable changes (round phases, bomb, score, deaths).`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLogger(cfg, func(logger *zap.SugaredLogger) error {
				return runServer(cmd.Context(), cfg, logger)
			})
		},
	}
	config.BindFlags(root.PersistentFlags(), cfg)

	root.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Write the integration config into the game's cfg folder and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			folder, err := csgo.ResolveCfgFolder(cfg.GSI)
			if err != nil {
				return err
			}
			path, err := csgo.WriteConfig(folder, cfg.GSI, cfg.Server.Port)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return root
}

// withLogger создаёт логгер под режим работы и сбрасывает буфер по завершении.
func withLogger(cfg *config.Config, fn func(*zap.SugaredLogger) error) error {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	sugar := logger.Sugar()
	defer func() {
		_ = logger.Sync()
	}()
	return fn(sugar)
}

func runServer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []csgo.Option{
		csgo.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		csgo.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if cfg.Server.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, csgo.WithMetrics(reg))
	}

	srv := csgo.New(cfg.GSI, cfg.Server.Port, logger, opts...)
	st := state.New(cfg.StateMax)

	logger.Infow("Starting app", "DebugMode", cfg.DebugMode, "port", cfg.Server.Port)

	if err := srv.AddEventListener(func(ev events.Event) {
		logger.Debugw("GSI event", "summary", csgo.Summarize(ev).String())
	}); err != nil {
		return err
	}
	if err := srv.AddAsyncEventListener(func(_ context.Context, ev events.Event) error {
		st.Observe(csgo.Summarize(ev))
		return nil
	}); err != nil {
		return err
	}

	h, err := srv.Run()
	if err != nil {
		return fmt.Errorf("start gsi server: %w", err)
	}

	// Лента изменений читается отдельно от цикла рассылки, чтобы не тормозить его.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-st.NotifyCh():
				for _, c := range st.Drain() {
					logger.Infow("Game state changed", "change", c.Text, "at", c.At)
				}
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infow("Shutting down")
	case <-h.Done():
		logger.Warnw("Dispatcher stopped unexpectedly", "listenErr", h.ListenErr())
	}

	if err := h.Stop(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("stop gsi server: %w", err)
	}
	if err := h.ListenErr(); err != nil {
		return fmt.Errorf("gsi server listen: %w", err)
	}
	logger.Infow("Server stopped")
	return nil
}
