package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayusman/gesturecast/internal/broadcast"
	"github.com/ayusman/gesturecast/internal/classifier"
	"github.com/ayusman/gesturecast/internal/config"
	"github.com/ayusman/gesturecast/internal/extractor"
	"github.com/ayusman/gesturecast/internal/intake"
	"github.com/ayusman/gesturecast/internal/pipeline"
	"github.com/ayusman/gesturecast/internal/server"
	"github.com/ayusman/gesturecast/internal/statemachine"
)

var (
	configPath   string
	extractorCmd string
	logLevelFlag string
)

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file (required)")
	runCmd.Flags().StringVar(&extractorCmd, "extractor-cmd", "", "external landmark extractor process to launch; if empty, frames are read from stdin")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", "info", "log level: debug, info, warn, error")
	_ = runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gesture recognition daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func setupLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevelFlag)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func runDaemon() error {
	log := setupLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	metrics := broadcast.NewMetrics()
	bcast := broadcast.New(cfg.ResolveBroadcast(), log, metrics)

	var ext pipeline.Extractor
	if extractorCmd != "" {
		ext = extractor.NewSubprocess(extractorCmd, nil, log)
	} else {
		ext = extractor.NewStream(os.Stdin)
	}

	in := intake.New(cfg.ResolveIntake())
	cl := classifier.New(cfg.ResolveClassifier())
	mach := statemachine.New(cfg.ResolveStateMachine())

	pl := pipeline.New(cfg.Pipeline(), log, ext, in, cl, mach, bcast, metrics)

	httpSrv := server.New(server.Config{Broadcaster: bcast}, log)
	addr := fmt.Sprintf("%s:%d", cfg.Broadcaster.Host, cfg.Broadcaster.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting subscriber server")
		if err := httpSrv.ListenAndServe(addr); err != nil {
			serverErrCh <- fmt.Errorf("startup: bind %s: %w", addr, err)
		}
	}()

	pipelineErrCh := make(chan error, 1)
	go func() {
		pipelineErrCh <- pl.Run(ctx)
	}()

	select {
	case err := <-serverErrCh:
		return err
	case err := <-pipelineErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("vision loop terminated with a fatal error")
			bcast.Shutdown()
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		<-pipelineErrCh
		bcast.Shutdown()
	}

	return nil
}
