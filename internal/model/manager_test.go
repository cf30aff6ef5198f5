package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

// fakeHandle counts calls and can be told to fail.
type fakeHandle struct {
	id       int
	closed   bool
	closeErr error
}

func (h *fakeHandle) Transcribe(ctx context.Context, audioPath string, opts Options) (string, error) {
	if h.closed {
		return "", errors.New("closed")
	}
	return "text of " + audioPath, nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return h.closeErr
}

func (h *fakeHandle) Name() string { return "fake" }

// fakeLoader hands out fresh fakeHandles.
type fakeLoader struct {
	loadErr  error
	checkErr error
	handles  []*fakeHandle
	checks   int
}

func (l *fakeLoader) Check(ctx context.Context) error {
	l.checks++
	return l.checkErr
}

func (l *fakeLoader) Load(ctx context.Context) (Handle, error) {
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	h := &fakeHandle{id: len(l.handles) + 1}
	l.handles = append(l.handles, h)
	return h, nil
}

func newTestManager(loader Loader, policy Policy, reclaims *int) *Manager {
	return NewManager(loader, policy, logger.New("error"), WithReclaim(func() { *reclaims++ }))
}

func TestPerTaskLoadsAndReleasesEveryCall(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{}
	reclaims := 0
	m := newTestManager(loader, PolicyPerTask, &reclaims)

	require.NoError(t, m.Start(ctx))
	assert.Equal(t, 1, loader.checks)
	assert.Empty(t, loader.handles, "per-task must not load at start")

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Do(ctx, func(h Handle) error {
			_, err := h.Transcribe(ctx, "a.mp3", Options{})
			return err
		}))
	}

	require.Len(t, loader.handles, 3)
	for _, h := range loader.handles {
		assert.True(t, h.closed)
	}
	assert.Equal(t, 3, m.Loads())
	assert.Equal(t, 3, reclaims)
}

func TestPersistentLoadsOnce(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{}
	reclaims := 0
	m := newTestManager(loader, PolicyPersistent, &reclaims)

	require.NoError(t, m.Start(ctx))
	require.Len(t, loader.handles, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Do(ctx, func(h Handle) error { return nil }))
	}

	assert.Equal(t, 1, m.Loads())
	assert.False(t, loader.handles[0].closed, "resident handle stays open between tasks")
	assert.Equal(t, 3, reclaims, "decoding buffers are reclaimed after every task")

	require.NoError(t, m.Close())
	assert.True(t, loader.handles[0].closed)
}

func TestReleaseRunsOnErrorAndPanic(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{}
	reclaims := 0
	m := newTestManager(loader, PolicyPerTask, &reclaims)

	boom := errors.New("decode failed")
	err := m.Do(ctx, func(h Handle) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, loader.handles[0].closed)

	assert.Panics(t, func() {
		_ = m.Do(ctx, func(h Handle) error { panic("model crashed") })
	})
	assert.True(t, loader.handles[1].closed)
	assert.Equal(t, 2, reclaims)

	// the admission slot must be free again
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	h, err := m.Acquire(waitCtx)
	require.NoError(t, err)
	require.NoError(t, m.Release(h))
}

func TestLoadFailureIsModelUnavailable(t *testing.T) {
	ctx := context.Background()
	reclaims := 0

	persistent := newTestManager(&fakeLoader{loadErr: errors.New("no weights")}, PolicyPersistent, &reclaims)
	err := persistent.Start(ctx)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	perTask := newTestManager(&fakeLoader{loadErr: errors.New("out of memory")}, PolicyPerTask, &reclaims)
	_, err = perTask.Acquire(ctx)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	// a failed load must not hold the admission slot
	perTask.loader = &fakeLoader{}
	h, err := perTask.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, perTask.Release(h))
}

func TestStartPreflightFailure(t *testing.T) {
	reclaims := 0
	m := newTestManager(&fakeLoader{checkErr: errors.New("missing binary")}, PolicyPerTask, &reclaims)

	assert.ErrorIs(t, m.Start(context.Background()), ErrModelUnavailable)
}

func TestReleaseUnknownHandle(t *testing.T) {
	reclaims := 0
	m := newTestManager(&fakeLoader{}, PolicyPerTask, &reclaims)

	assert.ErrorIs(t, m.Release(&fakeHandle{}), ErrNotAcquired)
	assert.ErrorIs(t, m.Release(nil), ErrNotAcquired)
}

func TestReleaseReportsCloseError(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{}
	reclaims := 0
	m := newTestManager(loader, PolicyPerTask, &reclaims)

	h, err := m.Acquire(ctx)
	require.NoError(t, err)
	h.(*fakeHandle).closeErr = errors.New("stuck")

	assert.Error(t, m.Release(h))
	assert.Equal(t, 1, reclaims)
}

func TestAcquireRespectsCancellation(t *testing.T) {
	reclaims := 0
	m := newTestManager(&fakeLoader{}, PolicyPersistent, &reclaims)

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, m.Release(h))
}

func TestHooks(t *testing.T) {
	var loads, releases int
	m := NewManager(&fakeLoader{}, PolicyPerTask, logger.New("error"),
		WithReclaim(func() {}),
		WithHooks(Hooks{
			OnLoad:    func(time.Duration, error) { loads++ },
			OnRelease: func(closed bool) { assert.True(t, closed); releases++ },
		}),
	)

	require.NoError(t, m.Do(context.Background(), func(Handle) error { return nil }))
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, releases)
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, PolicyPerTask, PolicyFor(true))
	assert.Equal(t, PolicyPersistent, PolicyFor(false))
}

func TestLanguageFlag(t *testing.T) {
	assert.Equal(t, "", Options{Language: "auto"}.LanguageFlag())
	assert.Equal(t, "", Options{Language: " AUTO "}.LanguageFlag())
	assert.Equal(t, "", Options{}.LanguageFlag())
	assert.Equal(t, "es", Options{Language: "es"}.LanguageFlag())
}
