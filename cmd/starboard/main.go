package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/starboard/internal/config"
	"github.com/friendsincode/starboard/internal/logbuffer"
	"github.com/friendsincode/starboard/internal/logging"
	"github.com/friendsincode/starboard/internal/server"
	"github.com/friendsincode/starboard/internal/telemetry"
	"github.com/friendsincode/starboard/internal/version"
)

var (
	logger  zerolog.Logger
	cfg     *config.Config
	logBuf  *logbuffer.Buffer
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "starboard",
	Short: "Starboard - live scoreboard overlay",
	Long:  "Starboard drives a broadcast scoreboard overlay: rotating subbar lines, fades and competitor color animations.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the overlay server",
	Long:  "Mount the overlay, follow scoreboard updates and serve frames over HTTP and websocket",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of ./.env")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}

	var err error
	cfg, err = config.Load(files...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.LogBufferSize > 0 {
		logBuf = logbuffer.New(cfg.LogBufferSize)
		logger = logging.SetupWithWriter(cfg.Environment, cfg.LogLevel, logBuf)
		return nil
	}
	logger = logging.Setup(cfg.Environment, cfg.LogLevel)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Bool("preview", cfg.Preview).Msg("Starboard starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "starboard",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, logBuf, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Starboard stopped")
	return nil
}
