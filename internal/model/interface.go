// Package model owns the speech-recognition model lifecycle. A Loader brings a
// whisper.cpp model into memory and hands back a Handle; the Manager decides
// whether that handle stays resident for the whole batch or is released after
// every transcription.
package model

import (
	"context"
	"errors"
	"strings"
)

// ErrModelUnavailable means the model cannot be obtained at all (missing
// weights, missing binary, backend failed to start). It is fatal to a batch.
var ErrModelUnavailable = errors.New("model unavailable")

// Decoding parameters are pinned to the lowest-memory settings: one
// candidate, no beam search.
const (
	BeamSize = 1
	BestOf   = 1
)

// Handle is a loaded model. It is shared by transcription calls while
// resident and never mutated; only the Manager closes it.
type Handle interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (string, error)
	Close() error
	Name() string
}

// Loader brings a model into memory
type Loader interface {
	// Check is a cheap preflight that fails with ErrModelUnavailable when
	// Load could never succeed.
	Check(ctx context.Context) error
	Load(ctx context.Context) (Handle, error)
}

// Options are per-call recognition settings
type Options struct {
	// Language is an ISO code or "auto" for detection.
	Language string
}

// LanguageFlag maps "auto" and "" to no explicit language
func (o Options) LanguageFlag() string {
	lang := strings.TrimSpace(o.Language)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// Policy selects how long a loaded model stays resident
type Policy string

const (
	// PolicyPerTask loads before and releases after every transcription.
	PolicyPerTask Policy = "per-task"
	// PolicyPersistent loads once per batch.
	PolicyPersistent Policy = "persistent"
)

// PolicyFor maps the load-per-file switch to a Policy
func PolicyFor(loadPerFile bool) Policy {
	if loadPerFile {
		return PolicyPerTask
	}
	return PolicyPersistent
}
