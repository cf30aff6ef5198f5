package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

// ErrNotAcquired is returned when releasing a handle the Manager did not hand out.
var ErrNotAcquired = errors.New("model handle not acquired")

// Hooks lets callers observe lifecycle events (metrics, tests)
type Hooks struct {
	OnLoad    func(elapsed time.Duration, err error)
	OnRelease func(closed bool)
}

// Manager owns load and release of the model under one Policy. At most one
// handle is in flight at a time.
type Manager struct {
	loader  Loader
	policy  Policy
	logger  logger.Logger
	reclaim func()
	hooks   Hooks
	sem     *semaphore

	mu       sync.Mutex
	resident Handle
	inFlight Handle
	loads    int
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithReclaim replaces the memory-reclamation step
func WithReclaim(fn func()) ManagerOption {
	return func(m *Manager) {
		m.reclaim = fn
	}
}

// WithHooks installs lifecycle observers
func WithHooks(h Hooks) ManagerOption {
	return func(m *Manager) {
		m.hooks = h
	}
}

// NewManager creates a Manager; nothing is loaded until Start or Acquire
func NewManager(loader Loader, policy Policy, log logger.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		loader:  loader,
		policy:  policy,
		logger:  log,
		reclaim: Reclaim,
		sem:     newSemaphore(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the lifecycle policy in effect
func (m *Manager) Policy() Policy {
	return m.policy
}

// Loads counts successful model loads so far
func (m *Manager) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Start prepares the batch. Persistent loads the model now; per-task runs
// the loader preflight so a missing model halts before the first file.
func (m *Manager) Start(ctx context.Context) error {
	if m.policy != PolicyPersistent {
		if err := m.loader.Check(ctx); err != nil {
			return wrapUnavailable(err)
		}
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resident != nil {
		return nil
	}
	h, err := m.load(ctx)
	if err != nil {
		return err
	}
	m.resident = h
	return nil
}

// Acquire returns a handle ready for one transcription
func (m *Manager) Acquire(ctx context.Context) (Handle, error) {
	if err := m.sem.acquire(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.resident
	if h == nil {
		loaded, err := m.load(ctx)
		if err != nil {
			m.sem.release()
			return nil, err
		}
		h = loaded
		if m.policy == PolicyPersistent {
			m.resident = h
		}
	}

	m.inFlight = h
	return h, nil
}

// Release ends one transcription. Per-task closes the handle; both policies
// reclaim memory afterwards.
func (m *Manager) Release(h Handle) error {
	m.mu.Lock()
	if h == nil || h != m.inFlight {
		m.mu.Unlock()
		return ErrNotAcquired
	}
	m.inFlight = nil

	var closeErr error
	closed := false
	if m.policy != PolicyPersistent {
		closeErr = h.Close()
		closed = true
		m.logger.Debug(context.Background(), "Released model %s", h.Name())
	}
	m.mu.Unlock()

	m.reclaim()
	m.sem.release()

	if m.hooks.OnRelease != nil {
		m.hooks.OnRelease(closed)
	}
	if closeErr != nil {
		return fmt.Errorf("close model %s: %w", h.Name(), closeErr)
	}
	return nil
}

// Do runs fn with an acquired handle and releases it on every exit path,
// including panics inside fn. A release failure after a successful fn is
// logged, not returned, since fn's output is already complete.
func (m *Manager) Do(ctx context.Context, fn func(Handle) error) error {
	h, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := m.Release(h); rerr != nil {
			m.logger.Warn(ctx, "Model release failed: %v", rerr)
		}
	}()
	return fn(h)
}

// Close releases the resident model, if any
func (m *Manager) Close() error {
	m.mu.Lock()
	h := m.resident
	m.resident = nil
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	err := h.Close()
	m.reclaim()
	m.logger.Info(context.Background(), "Unloaded model %s", h.Name())
	if err != nil {
		return fmt.Errorf("close model %s: %w", h.Name(), err)
	}
	return nil
}

// load must be called with mu held
func (m *Manager) load(ctx context.Context) (Handle, error) {
	start := time.Now()
	h, err := m.loader.Load(ctx)
	elapsed := time.Since(start)
	if m.hooks.OnLoad != nil {
		m.hooks.OnLoad(elapsed, err)
	}
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	m.loads++
	m.logger.Info(ctx, "Loaded model %s in %s (%s policy)", h.Name(), elapsed.Round(time.Millisecond), m.policy)
	return h, nil
}

func wrapUnavailable(err error) error {
	if errors.Is(err, ErrModelUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
}
