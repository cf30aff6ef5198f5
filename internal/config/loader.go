package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads the YAML file and applies environment overrides. Tests can
// override Lookup and ReadFile to inject deterministic inputs.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load reads path with the process environment. A missing file is not an
// error: defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	return Loader{}.Load(path)
}

// Load builds the configuration from path (optional) and the environment
func (l Loader) Load(path string) (*Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := &Config{}
	if path != "" {
		data, err := l.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (l Loader) applyEnv(cfg *Config) error {
	overrideString(l.Lookup, "WHISPER_MODEL", &cfg.Whisper.ModelSize)
	overrideString(l.Lookup, "WHISPER_MODEL_PATH", &cfg.Whisper.ModelPath)
	overrideString(l.Lookup, "WHISPER_LANGUAGE", &cfg.Whisper.Language)
	overrideString(l.Lookup, "WHISPER_BACKEND", &cfg.Whisper.Backend)
	overrideString(l.Lookup, "LOG_LEVEL", &cfg.Logging.Level)

	if v, ok := lookupTrimmed(l.Lookup, "WHISPER_LOAD_PER_FILE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WHISPER_LOAD_PER_FILE: %w", err)
		}
		cfg.Whisper.LoadPerFile = &b
	}
	if v, ok := lookupTrimmed(l.Lookup, "WHISPER_USE_GPU"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WHISPER_USE_GPU: %w", err)
		}
		cfg.Whisper.UseGPU = b
	}
	if v, ok := lookupTrimmed(l.Lookup, "MAX_FILE_SIZE_MB"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("MAX_FILE_SIZE_MB must be a positive integer, got %q", v)
		}
		cfg.Chunking.MaxSizeMB = n
	}
	if v, ok := lookupTrimmed(l.Lookup, "CHUNK_DURATION_MINUTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("CHUNK_DURATION_MINUTES must be a positive integer, got %q", v)
		}
		cfg.Chunking.ChunkMinutes = n
	}
	if v, ok := lookupTrimmed(l.Lookup, "GEMINI_API_KEYS"); ok {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		cfg.Gemini.APIKeys = keys
	}
	return nil
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if v, ok := lookupTrimmed(lookup, key); ok {
		*target = v
	}
}
