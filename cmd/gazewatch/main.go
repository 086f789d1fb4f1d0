package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gazewatch/gazewatch/internal/api"
	"github.com/gazewatch/gazewatch/internal/calibration"
	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/dispatcher"
	"github.com/gazewatch/gazewatch/internal/logging"
	"github.com/gazewatch/gazewatch/internal/monitor"
	intOtel "github.com/gazewatch/gazewatch/internal/otel"
	"github.com/gazewatch/gazewatch/internal/session"
	"github.com/gazewatch/gazewatch/internal/storage"
	"github.com/gazewatch/gazewatch/pkg/core"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "gazewatch"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	shutdownWait = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	os.Exit(code)
}

// run wires the application together and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	fs, opts := newFlagSet(stdout)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if opts.ShowVersion {
		fmt.Fprintf(stdout, "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return exitOK
	}

	configErr := config.Load(opts.ConfigDir)
	if err := config.BindFlags(fs); err != nil {
		fmt.Fprintln(stdout, err)
		return exitUsage
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintln(stdout, err)
		return exitUsage
	}

	startTime := time.Now()
	logLevel := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")
	logFilePath := logging.LogFilePath(logsDir, AppName, startTime)

	// Prompts own stdout; logs go to the file when it can be opened.
	var logWriter io.Writer
	logFile, logFileErr := logging.OpenLogFile(logsDir, logFilePath)
	if logFileErr == nil {
		defer logFile.Close()
		logWriter = logFile
	}

	sessCtx := session.NewContext()
	slogManager := logging.NewSlogManager()
	slogManager.SetContextProvider(sessCtx.LogAttrs)
	slogManager.Setup(logWriter, logLevel, nil)
	logger := slogManager.Logger()

	if logFileErr != nil {
		logger.Error("Failed to create/open log file!", "error", logFileErr, "path", logFilePath)
	} else {
		logger.Info("Begin logging in logs directory", "path", logFilePath)
	}
	if configErr != nil {
		logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		logger.Info("Loaded config", "path", config.ConfigFilePath(opts.ConfigDir))
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelProvider := setupOTel(logWriter, logger)
	if otelProvider != nil {
		slogManager.Setup(logWriter, logLevel, otelProvider.LoggerProvider())
		logger = slogManager.Logger()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
			defer cancel()
			if err := otelProvider.Shutdown(sctx); err != nil {
				fmt.Fprintln(os.Stderr, "OTel shutdown failed:", err)
			}
		}()
	}
	defer func() { _ = slogManager.Flush(context.Background()) }()

	logger.Info("Starting up", "version", CurrentVersion, "build", BuildDate)

	zlog := newZeroLogger(logWriter, logLevel)

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		logger.Error("Failed to create dispatcher", "error", err)
		return exitFailure
	}

	storageCfg := config.GetStorageConfig()
	apiCfg := config.GetAPIConfig()
	backends, err := createStorageBackends(storageCfg, storageDeps{
		Logger:    logger,
		ZeroLog:   zlog,
		Version:   CurrentVersion,
		ServerURL: apiCfg.ServerURL,
		APIKey:    apiCfg.APIKey,
	})
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		eventDispatcher.Close()
		return exitFailure
	}
	storageBackends := initStorage(eventDispatcher, backends, storageCfg.BufferSize, logger)

	// shutdown drains the dispatcher before closing backends so every queued
	// status reaches storage.
	shutdown := func() {
		eventDispatcher.Close()
		if dropped := eventDispatcher.Dropped(); dropped > 0 {
			logger.Warn("Status events dropped by slow storage backends", "dropped", dropped)
		}
	}

	pipe, err := openPipeline(ctx, config.GetSourceConfig(), config.GetDetectorConfig(), stdin, logger)
	if err != nil {
		logger.Error("Failed to open frame source", "error", err)
		fmt.Fprintln(stdout, "ERROR:", err)
		shutdown()
		closeStorage(storageBackends, logger)
		return exitFailure
	}

	gazeCfg := config.GetGazeConfig()
	sess, err := session.New(session.Dependencies{
		Source:     pipe.Source,
		Detector:   pipe.Detector,
		Triggers:   pipe.Triggers,
		Recorder:   storage.NewPublisher(eventDispatcher),
		Context:    sessCtx,
		Logger:     logger,
		Prompt:     stdout,
		Margin:     gazeCfg.Margin,
		Subject:    config.GetString("subject"),
		SourceName: pipe.Name,
		Version:    CurrentVersion,
	})
	if err != nil {
		logger.Error("Failed to create session", "error", err)
		_ = pipe.Source.Close()
		_ = pipe.Close()
		shutdown()
		closeStorage(storageBackends, logger)
		return exitFailure
	}

	if gazeCfg.StatusFile != "" {
		statusFile := monitor.NewStatusFile(monitor.StatusFileDependencies{
			Path:     gazeCfg.StatusFile,
			Interval: gazeCfg.StatusInterval,
			Loop:     sess.Loop(),
			Phase:    sessCtx.Describe,
			Logger:   logger,
		})
		if err := statusFile.Start(); err != nil {
			logger.Warn("Failed to start status file writer", "error", err)
		} else {
			defer statusFile.Stop()
		}
	}

	summary, runErr := sess.Run(ctx)

	if err := pipe.Close(); err != nil {
		logger.Warn("Failed to finish landmark recording", "error", err)
	}
	shutdown()

	if apiCfg.Upload {
		// ctx is already canceled when the operator interrupted the session.
		uctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		uploadReports(uctx, api.New(apiCfg.ServerURL, apiCfg.APIKey), storageBackends, logger)
		cancel()
	}
	closeStorage(storageBackends, logger)

	fmt.Fprintln(stdout, summaryLine(summary))

	var incomplete *calibration.IncompleteError
	switch {
	case errors.As(runErr, &incomplete):
		logger.Error("Calibration incomplete", "captured", incomplete.Captured, "reason", incomplete.Reason)
		fmt.Fprintln(stdout, "ERROR:", incomplete)
		return exitFailure
	case runErr != nil:
		logger.Error("Session failed", "error", runErr)
		fmt.Fprintln(stdout, "ERROR:", runErr)
		return exitFailure
	}
	return exitOK
}

func setupOTel(logWriter io.Writer, logger *slog.Logger) *intOtel.Provider {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return nil
	}
	provider, err := intOtel.New(intOtel.Config{
		Enabled:         otelCfg.Enabled,
		ServiceName:     otelCfg.ServiceName,
		ServiceVersion:  CurrentVersion,
		BatchTimeout:    otelCfg.BatchTimeout,
		MetricsInterval: otelCfg.MetricsInterval,
		LogWriter:       logWriter,
		MetricWriter:    logWriter,
		Endpoint:        otelCfg.Endpoint,
		Insecure:        otelCfg.Insecure,
	})
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		return nil
	}
	if otelCfg.Endpoint != "" {
		logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	} else {
		logger.Info("OTel provider initialized")
	}
	return provider
}

// newZeroLogger builds the structured logger used by the database and
// InfluxDB managers, writing next to the slog output.
func newZeroLogger(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("app", AppName).Logger()
}

func uploadReports(ctx context.Context, client *api.Client, backends storage.Multi, logger *slog.Logger) {
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("Proctoring server is offline, skipping upload", "error", err)
		return
	}
	for _, u := range backends.Uploadables() {
		path := u.GetExportedFilePath()
		if path == "" {
			continue
		}
		if err := client.Upload(ctx, path, u.GetExportMetadata()); err != nil {
			logger.Error("Failed to upload session report", "path", path, "error", err)
			continue
		}
		logger.Info("Uploaded session report", "path", path)
	}
}

func closeStorage(backends storage.Multi, logger *slog.Logger) {
	if err := backends.Close(); err != nil {
		logger.Error("Failed to close storage backends", "error", err)
	}
}

// summaryLine is printed when the session ends.
func summaryLine(s core.SessionSummary) string {
	return fmt.Sprintf("SESSION END | %s | frames %d | inside %.1f%% | outside %d | no face %d",
		s.EndReason, s.Frames, 100*s.InsideFraction(), s.Counts[core.Outside], s.Counts[core.NoFace])
}
