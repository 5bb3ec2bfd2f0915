// Command pulseagent runs the PulseAgent probe scheduler in either File
// mode (reading a TOML monitor list from disk) or Server mode (receiving
// its monitor list over a control channel).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulseagent/pulseagent/internal/config"
	"github.com/pulseagent/pulseagent/internal/diag"
	"github.com/pulseagent/pulseagent/internal/mode"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath    = flag.String("c", "config.toml", "path to the monitor configuration file (File mode)")
		diagAddr      = flag.String("diag-addr", "127.0.0.1:9090", "address for the local diagnostics HTTP server")
		maxConcurrent = flag.Int("max-concurrent", 50, "maximum number of probes running at once")
		dumpConfig    = flag.Bool("dump-config", false, "print an example configuration document and exit")
		dumpFormat    = flag.String("dump-format", "toml", "format for --dump-config: toml or yaml")
		showVersion   = flag.Bool("version", false, "print the version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pulseagent %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: pulseagent [flags]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("pulseagent", version)
		return 0
	}
	if *dumpConfig {
		if err := config.DumpExampleConfig(os.Stdout, *dumpFormat); err != nil {
			fmt.Fprintln(os.Stderr, "dump-config:", err)
			return 1
		}
		return 0
	}

	logger := initLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	agent, err := mode.Run(ctx, *configPath, *maxConcurrent)
	if err != nil {
		logger.Error("failed to start agent", "error", err)
		return 1
	}
	logger.Info("pulseagent started", "mode", mode.Select().String())

	diagServer := &http.Server{
		Addr:    *diagAddr,
		Handler: diag.NewRouter(agent),
	}
	go func() {
		if err := diagServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("diagnostics server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = diagServer.Shutdown(shutdownCtx)

	agent.Stop()
	return 0
}

// initLogger builds the default slog.Logger: level and handler format
// read from PULSE_LOG_LEVEL/PULSE_LOG_FORMAT, defaulting to info/json.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("PULSE_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if os.Getenv("PULSE_LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
