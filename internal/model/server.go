package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/pkg/executor"
)

const readyPollInterval = 250 * time.Millisecond

// ServerConfig configures the whisper.cpp HTTP server backend
type ServerConfig struct {
	BinaryPath     string
	ModelPath      string
	Addr           string
	Threads        int
	UseGPU         bool
	StartupTimeout time.Duration
}

// ServerLoader keeps the model resident inside a whisper-server child
// process. Loading starts the process; closing the handle stops it, which is
// what actually returns the model's memory to the OS.
type ServerLoader struct {
	cfg      ServerConfig
	executor executor.Executor
	logger   logger.Logger
	client   *http.Client
}

// NewServerLoader creates a loader for whisper-server
func NewServerLoader(cfg ServerConfig, exec executor.Executor, log logger.Logger) *ServerLoader {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 2 * time.Minute
	}
	return &ServerLoader{
		cfg:      cfg,
		executor: exec,
		logger:   log,
		client:   &http.Client{},
	}
}

// Check verifies the server binary and the weights file
func (l *ServerLoader) Check(ctx context.Context) error {
	if _, err := l.executor.LookPath(l.cfg.BinaryPath); err != nil {
		return fmt.Errorf("%w: whisper server binary %s: %v", ErrModelUnavailable, l.cfg.BinaryPath, err)
	}
	return checkWeights(l.cfg.ModelPath)
}

// Load starts whisper-server and waits until it reports ready
func (l *ServerLoader) Load(ctx context.Context) (Handle, error) {
	if err := l.Check(ctx); err != nil {
		return nil, err
	}

	args, err := buildServerArgs(l.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	proc, err := l.executor.Start(ctx, l.cfg.BinaryPath, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	h := &serverHandle{
		loader:  l,
		proc:    proc,
		baseURL: "http://" + l.cfg.Addr,
	}
	if err := h.waitReady(ctx); err != nil {
		_ = proc.Stop()
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return h, nil
}

func buildServerArgs(cfg ServerConfig) ([]string, error) {
	host, port, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("server address %q: %w", cfg.Addr, err)
	}

	args := []string{
		"-m", cfg.ModelPath,
		"--host", host,
		"--port", port,
		"-bs", strconv.Itoa(BeamSize),
		"-bo", strconv.Itoa(BestOf),
		"-nf",
	}
	if cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(cfg.Threads))
	}
	if !cfg.UseGPU {
		args = append(args, "-ng")
	}
	return args, nil
}

type serverHandle struct {
	loader  *ServerLoader
	proc    executor.Process
	baseURL string
}

func (h *serverHandle) Name() string {
	return "whisper-server:" + filepath.Base(h.loader.cfg.ModelPath)
}

func (h *serverHandle) Close() error {
	return h.proc.Stop()
}

// waitReady polls /health. 503 means the model is still loading; any other
// answer means the server is serving.
func (h *serverHandle) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.loader.cfg.StartupTimeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := h.loader.client.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusServiceUnavailable {
				return nil
			}
		}

		select {
		case <-h.proc.Exited():
			return errors.New("whisper-server exited during startup")
		case <-ctx.Done():
			return fmt.Errorf("whisper-server not ready after %s: %w", h.loader.cfg.StartupTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// running reports whether the resident process is still alive. Once it is
// gone every later call would fail the same way, so callers see
// ErrModelUnavailable.
func (h *serverHandle) running() bool {
	select {
	case <-h.proc.Exited():
		return false
	default:
		return true
	}
}

// Transcribe uploads audioPath to /inference and returns the plain-text body
func (h *serverHandle) Transcribe(ctx context.Context, audioPath string, opts Options) (string, error) {
	if !h.running() {
		return "", fmt.Errorf("%w: whisper-server is not running", ErrModelUnavailable)
	}

	body, contentType, err := inferenceForm(audioPath, opts)
	if err != nil {
		return "", err
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := h.loader.client.Do(req)
	if err != nil {
		if !h.running() {
			return "", fmt.Errorf("%w: whisper-server exited during inference: %v", ErrModelUnavailable, err)
		}
		return "", fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}

// inferenceForm streams the multipart upload so a whole chunk never sits in
// memory at once.
func inferenceForm(audioPath string, opts Options) (io.ReadCloser, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}

	lang := opts.LanguageFlag()
	if lang == "" {
		lang = "auto"
	}

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		pw.CloseWithError(writeInferenceForm(w, f, filepath.Base(audioPath), lang))
	}()
	return pr, w.FormDataContentType(), nil
}

func writeInferenceForm(w *multipart.Writer, audio io.Reader, name, lang string) error {
	for _, field := range [][2]string{
		{"response_format", "text"},
		{"temperature", "0.0"},
		{"language", lang},
	} {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	return w.Close()
}
