package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultModelSize     = "tiny"
	DefaultLanguage      = "es"
	DefaultMaxSizeMB     = 50
	DefaultChunkMinutes  = 30
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultServerPort    = 8178
	DefaultStartupWindow = 2 * time.Minute

	BackendCLI    = "cli"
	BackendServer = "server"
)

type Config struct {
	Whisper  WhisperConfig  `yaml:"whisper"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Paths    PathsConfig    `yaml:"paths"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Gemini   GeminiConfig   `yaml:"gemini"`
}

type WhisperConfig struct {
	Backend          string `yaml:"backend"`
	BinaryPath       string `yaml:"binary_path"`
	ServerBinaryPath string `yaml:"server_binary_path"`
	ModelsDir        string `yaml:"models_dir"`
	ModelSize        string `yaml:"model_size"`
	ModelPath        string `yaml:"model_path"`
	Language         string `yaml:"language"`
	Threads          int    `yaml:"threads"`
	UseGPU           bool   `yaml:"use_gpu"`
	// LoadPerFile is a pointer so an explicit false in YAML survives defaulting.
	LoadPerFile    *bool         `yaml:"load_per_file"`
	ServerPort     int           `yaml:"server_port"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	AudioCodec string `yaml:"audio_codec"`
	AudioExt   string `yaml:"audio_ext"`
}

type ChunkingConfig struct {
	MaxSizeMB    int64 `yaml:"max_size_mb"`
	ChunkMinutes int   `yaml:"chunk_minutes"`
}

type PathsConfig struct {
	Videos    string `yaml:"videos"`
	Audio     string `yaml:"audio"`
	Output    string `yaml:"output"`
	Work      string `yaml:"work"`
	Summaries string `yaml:"summaries"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type GeminiConfig struct {
	Model   string   `yaml:"model"`
	APIKeys []string `yaml:"api_keys"`
}

// Default returns a fully defaulted configuration
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Validate()
	return cfg
}

// Validate fills defaults and rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Whisper.Backend == "" {
		c.Whisper.Backend = BackendCLI
	}
	c.Whisper.Backend = strings.ToLower(c.Whisper.Backend)
	if c.Whisper.Backend != BackendCLI && c.Whisper.Backend != BackendServer {
		return fmt.Errorf("whisper.backend must be %q or %q, got %q", BackendCLI, BackendServer, c.Whisper.Backend)
	}
	if c.Whisper.BinaryPath == "" {
		c.Whisper.BinaryPath = "whisper-cli"
	}
	if c.Whisper.ServerBinaryPath == "" {
		c.Whisper.ServerBinaryPath = "whisper-server"
	}
	if c.Whisper.ModelsDir == "" {
		c.Whisper.ModelsDir = "models"
	}
	if c.Whisper.ModelSize == "" {
		c.Whisper.ModelSize = DefaultModelSize
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = DefaultLanguage
	}
	if c.Whisper.Threads < 0 {
		return fmt.Errorf("whisper.threads must be >= 0, got %d", c.Whisper.Threads)
	}
	if c.Whisper.Threads == 0 {
		c.Whisper.Threads = 4
	}
	if c.Whisper.LoadPerFile == nil {
		enabled := true
		c.Whisper.LoadPerFile = &enabled
	}
	if c.Whisper.ServerPort == 0 {
		c.Whisper.ServerPort = DefaultServerPort
	}
	if c.Whisper.StartupTimeout <= 0 {
		c.Whisper.StartupTimeout = DefaultStartupWindow
	}

	if c.FFmpeg.BinaryPath == "" {
		c.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.FFmpeg.ProbePath == "" {
		c.FFmpeg.ProbePath = "ffprobe"
	}
	if c.FFmpeg.AudioCodec == "" {
		c.FFmpeg.AudioCodec = "libmp3lame"
	}
	if c.FFmpeg.AudioExt == "" {
		c.FFmpeg.AudioExt = ".mp3"
	}
	if !strings.HasPrefix(c.FFmpeg.AudioExt, ".") {
		c.FFmpeg.AudioExt = "." + c.FFmpeg.AudioExt
	}

	if c.Chunking.MaxSizeMB < 0 {
		return fmt.Errorf("chunking.max_size_mb must be > 0, got %d", c.Chunking.MaxSizeMB)
	}
	if c.Chunking.MaxSizeMB == 0 {
		c.Chunking.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Chunking.ChunkMinutes < 0 {
		return fmt.Errorf("chunking.chunk_minutes must be > 0, got %d", c.Chunking.ChunkMinutes)
	}
	if c.Chunking.ChunkMinutes == 0 {
		c.Chunking.ChunkMinutes = DefaultChunkMinutes
	}

	if c.Paths.Videos == "" {
		c.Paths.Videos = "videos"
	}
	if c.Paths.Audio == "" {
		c.Paths.Audio = "mp3"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "txt"
	}
	if c.Paths.Work == "" {
		c.Paths.Work = "work"
	}
	if c.Paths.Summaries == "" {
		c.Paths.Summaries = "summaries"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultGeminiModel
	}

	return nil
}

// ModelFile resolves the whisper.cpp weights for the configured model size
func (c *Config) ModelFile() string {
	if c.Whisper.ModelPath != "" {
		return c.Whisper.ModelPath
	}
	return filepath.Join(c.Whisper.ModelsDir, "ggml-"+c.Whisper.ModelSize+".bin")
}

// MaxSizeBytes is the split threshold in bytes
func (c *Config) MaxSizeBytes() int64 {
	return c.Chunking.MaxSizeMB * 1024 * 1024
}

// ChunkDuration is the per-chunk length used when splitting
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Chunking.ChunkMinutes) * time.Minute
}

// PerTask reports whether the model is loaded and released around every transcription
func (c *Config) PerTask() bool {
	return c.Whisper.LoadPerFile == nil || *c.Whisper.LoadPerFile
}
