package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abraxas0001/Caption-Master-Pro/internal/bus"
	"github.com/abraxas0001/Caption-Master-Pro/internal/caption"
	"github.com/abraxas0001/Caption-Master-Pro/internal/channels"
	"github.com/abraxas0001/Caption-Master-Pro/internal/config"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
	"github.com/abraxas0001/Caption-Master-Pro/internal/engine"
	"github.com/abraxas0001/Caption-Master-Pro/internal/sched"
	"github.com/abraxas0001/Caption-Master-Pro/internal/sweep"
	"github.com/abraxas0001/Caption-Master-Pro/internal/translate"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfgPath, _ := cmd.Flags().GetString("config")
			var cfg *config.Config
			var err error
			if cfgPath != "" {
				cfg, err = config.LoadFromFile(cfgPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("config", "", "config file path (default ~/.captionbot/config.json)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	events := bus.NewEventBus(cfg.Engine.BusBuffer)
	convs := conv.NewStore(cfg.DataDir)

	translator, err := translate.New(cfg.Translator.Backend, translate.Config{
		APIKey:  cfg.Translator.APIKey,
		BaseURL: cfg.Translator.BaseURL,
		Model:   cfg.Translator.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to build translator: %w", err)
	}

	rawTG, ok := cfg.Channels["telegram"]
	if !ok {
		return errors.New("no telegram channel configured (set channels.telegram or CAPTIONBOT_TELEGRAM_TOKEN)")
	}
	for name := range cfg.Channels {
		if _, ok := channels.GetFactory(name); !ok {
			slog.Warn("ignoring unknown channel in config", "channel", name)
		}
	}
	factory, ok := channels.GetFactory("telegram")
	if !ok {
		return errors.New("telegram channel not registered")
	}
	ch, err := factory(rawTG, events)
	if err != nil {
		return fmt.Errorf("failed to create telegram channel: %w", err)
	}
	transport, ok := ch.(engine.Transport)
	if !ok {
		return fmt.Errorf("channel %q does not provide outbound transport", ch.Name())
	}

	eng := engine.New(engine.Config{
		Bus:       events,
		Scheduler: sched.NewBusScheduler(events),
		Store:     convs,
		Transport: transport,
		Chain:     caption.NewChain(translator),
		Options:   engineOptions(cfg.Engine),
	})

	sweeper, err := sweep.New(
		cfg.Sweep.Schedule,
		time.Duration(cfg.Sweep.IdleTTLMinutes)*time.Minute,
		convs, events,
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start telegram channel: %w", err)
	}
	sweeper.Start()
	slog.Info("caption bot running",
		"channel", ch.Name(),
		"translator", cfg.Translator.Backend,
		"dataDir", cfg.DataDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := eng.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	sweeper.Stop()
	if stopErr := ch.Stop(); stopErr != nil {
		slog.Warn("failed to stop channel cleanly", "err", stopErr)
	}
	slog.Info("caption bot stopped")
	return err
}

// engineOptions maps config integers onto engine tuning, leaving zeros for
// the engine's own defaults.
func engineOptions(ec config.EngineConfig) engine.Options {
	return engine.Options{
		QuietInterval:  time.Duration(ec.QuietIntervalSeconds) * time.Second,
		ItemChunkSize:  ec.ItemChunkSize,
		GroupChunkSize: ec.GroupChunkSize,
		GroupThreshold: ec.GroupThreshold,
		RetryCap:       time.Duration(ec.RetryCapSeconds) * time.Second,
	}
}
