package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/transcript-flow/internal/config"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/internal/media"
	"github.com/nguyentantai21042004/transcript-flow/internal/metrics"
	"github.com/nguyentantai21042004/transcript-flow/internal/model"
	"github.com/nguyentantai21042004/transcript-flow/internal/processor"
	"github.com/nguyentantai21042004/transcript-flow/pkg/executor"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Recorder
	proc    processor.Processor
}

// setup loads config, builds the logger and returns a context that is
// cancelled on SIGINT/SIGTERM
func setup(cmd *cobra.Command, configPath string) (context.Context, *app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewWithOptions(cfg.Logging.Level, logger.Options{File: cfg.Logging.File})
	ctx := logger.WithRunID(cmd.Context(), uuid.NewString())
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)

	cleanup := func() {
		stop()
		_ = logger.Close(log)
	}

	log.Info(ctx, "========================================")
	log.Info(ctx, "Transcript Pipeline")
	log.Info(ctx, "========================================")
	log.Info(ctx, "System: %s/%s, %d CPU cores", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	log.Info(ctx, "Configuration loaded from %s", configPath)

	return ctx, &app{cfg: cfg, log: log}, cleanup, nil
}

// wirePipeline builds the transcoder, model manager and processor
func (a *app) wirePipeline(ctx context.Context) {
	cfg := a.cfg
	exec := executor.New()

	transcoder := media.New(exec, a.log, media.Options{
		FFmpegPath: cfg.FFmpeg.BinaryPath,
		ProbePath:  cfg.FFmpeg.ProbePath,
		AudioCodec: cfg.FFmpeg.AudioCodec,
	})

	a.metrics = metrics.New()
	policy := model.PolicyFor(cfg.PerTask())
	manager := model.NewManager(newLoader(cfg, exec, a.log), policy, a.log, model.WithHooks(model.Hooks{
		OnLoad:    a.metrics.ModelLoad,
		OnRelease: a.metrics.ModelRelease,
	}))

	a.log.Info(ctx, "Model: %s (%s backend, %s policy, language %s)",
		cfg.ModelFile(), cfg.Whisper.Backend, policy, cfg.Whisper.Language)
	a.log.Info(ctx, "Chunking: files above %d MB split into %d minute chunks",
		cfg.Chunking.MaxSizeMB, cfg.Chunking.ChunkMinutes)

	a.proc = processor.New(cfg, transcoder, manager, a.metrics, a.log)
}

func newLoader(cfg *config.Config, exec executor.Executor, log logger.Logger) model.Loader {
	if cfg.Whisper.Backend == config.BackendServer {
		return model.NewServerLoader(model.ServerConfig{
			BinaryPath:     cfg.Whisper.ServerBinaryPath,
			ModelPath:      cfg.ModelFile(),
			Addr:           net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Whisper.ServerPort)),
			Threads:        cfg.Whisper.Threads,
			UseGPU:         cfg.Whisper.UseGPU,
			StartupTimeout: cfg.Whisper.StartupTimeout,
		}, exec, log)
	}
	return model.NewCLILoader(model.CLIConfig{
		BinaryPath: cfg.Whisper.BinaryPath,
		ModelPath:  cfg.ModelFile(),
		Threads:    cfg.Whisper.Threads,
		UseGPU:     cfg.Whisper.UseGPU,
		TempDir:    cfg.Paths.Work,
	}, exec, log)
}

// batch runs the processor once and reports the outcome
func (a *app) batch(ctx context.Context) error {
	sum, err := a.proc.Run(ctx)
	sum.Log(ctx, a.log)

	if path := a.cfg.Metrics.Textfile; path != "" {
		if werr := a.metrics.WriteTextfile(path, time.Now()); werr != nil {
			a.log.Warn(ctx, "Failed to write metrics to %s: %v", path, werr)
		}
	}

	if err != nil {
		return err
	}
	if sum.Failed() {
		return errBatchFailed
	}
	return nil
}
