package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/pkg/executor"
)

// CLIConfig configures the whisper.cpp command-line backend
type CLIConfig struct {
	BinaryPath string
	ModelPath  string
	Threads    int
	UseGPU     bool
	// TempDir hosts per-call output; "" means the OS default.
	TempDir string
}

// CLILoader runs whisper-cli once per transcription. The weights live in the
// child process, so a handle holds no model memory between calls.
type CLILoader struct {
	cfg      CLIConfig
	executor executor.Executor
	logger   logger.Logger
}

// NewCLILoader creates a loader for the whisper-cli binary
func NewCLILoader(cfg CLIConfig, exec executor.Executor, log logger.Logger) *CLILoader {
	return &CLILoader{cfg: cfg, executor: exec, logger: log}
}

// Check verifies the binary resolves and the weights file exists
func (l *CLILoader) Check(ctx context.Context) error {
	if _, err := l.executor.LookPath(l.cfg.BinaryPath); err != nil {
		return fmt.Errorf("%w: whisper binary %s: %v", ErrModelUnavailable, l.cfg.BinaryPath, err)
	}
	return checkWeights(l.cfg.ModelPath)
}

// Load returns a handle bound to the configured model
func (l *CLILoader) Load(ctx context.Context) (Handle, error) {
	if err := l.Check(ctx); err != nil {
		return nil, err
	}
	return &cliHandle{loader: l}, nil
}

type cliHandle struct {
	loader *CLILoader
	closed bool
}

func (h *cliHandle) Name() string {
	return "whisper-cli:" + filepath.Base(h.loader.cfg.ModelPath)
}

func (h *cliHandle) Close() error {
	h.closed = true
	return nil
}

// Transcribe writes whisper's txt output into a scratch dir and returns it
func (h *cliHandle) Transcribe(ctx context.Context, audioPath string, opts Options) (string, error) {
	if h.closed {
		return "", errors.New("transcribe on closed model handle")
	}
	cfg := h.loader.cfg

	scratch, err := os.MkdirTemp(cfg.TempDir, "whisper-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	outBase := filepath.Join(scratch, "out")
	args := buildCLIArgs(cfg, audioPath, outBase, opts)

	h.loader.logger.Debug(ctx, "whisper-cli %s", strings.Join(args, " "))
	if _, err := h.loader.executor.Execute(ctx, cfg.BinaryPath, args...); err != nil {
		return "", fmt.Errorf("whisper-cli: %w", err)
	}

	data, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("whisper-cli completed but transcript is missing: %w", err)
	}
	return string(data), nil
}

// buildCLIArgs pins decoding to greedy single-candidate search with no
// temperature fallback.
func buildCLIArgs(cfg CLIConfig, audioPath, outBase string, opts Options) []string {
	args := []string{
		"-m", cfg.ModelPath,
		"-f", audioPath,
		"-otxt",
		"-of", outBase,
		"-bs", strconv.Itoa(BeamSize),
		"-bo", strconv.Itoa(BestOf),
		"-nf",
		"-np",
	}
	if cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(cfg.Threads))
	}
	if lang := opts.LanguageFlag(); lang != "" {
		args = append(args, "-l", lang)
	}
	if !cfg.UseGPU {
		args = append(args, "-ng")
	}
	return args
}

func checkWeights(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: model path is empty", ErrModelUnavailable)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: model weights %s: %v", ErrModelUnavailable, path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: model weights %s are not a usable file", ErrModelUnavailable, path)
	}
	return nil
}
