package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentantai21042004/transcript-flow/internal/chunk"
	"github.com/nguyentantai21042004/transcript-flow/internal/config"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/internal/media"
	"github.com/nguyentantai21042004/transcript-flow/internal/merge"
	"github.com/nguyentantai21042004/transcript-flow/internal/metrics"
	"github.com/nguyentantai21042004/transcript-flow/internal/model"
)

type extractedRange struct {
	dst          string
	start, width time.Duration
}

// fakeTranscoder writes small marker files instead of running ffmpeg.
type fakeTranscoder struct {
	mu        sync.Mutex
	checkErr  error
	durations map[string]time.Duration
	failChunk map[string]bool
	ranges    []extractedRange
	audio     []string
}

func newFakeTranscoder() *fakeTranscoder {
	return &fakeTranscoder{
		durations: map[string]time.Duration{},
		failChunk: map[string]bool{},
	}
}

func (t *fakeTranscoder) Check(ctx context.Context) error { return t.checkErr }

func (t *fakeTranscoder) ExtractAudio(ctx context.Context, src, dst string) error {
	t.mu.Lock()
	t.audio = append(t.audio, dst)
	t.mu.Unlock()
	return os.WriteFile(dst, []byte("audio of "+filepath.Base(src)), 0644)
}

func (t *fakeTranscoder) ExtractRange(ctx context.Context, src, dst string, start, length time.Duration) error {
	t.mu.Lock()
	t.ranges = append(t.ranges, extractedRange{dst: dst, start: start, width: length})
	fail := t.failChunk[filepath.Base(dst)]
	t.mu.Unlock()
	if fail {
		return errors.New("ffmpeg exited with status 1")
	}
	content := fmt.Sprintf("%s[%d-%d]", filepath.Base(src), int(start.Minutes()), int((start + length).Minutes()))
	return os.WriteFile(dst, []byte(content), 0644)
}

func (t *fakeTranscoder) Duration(ctx context.Context, path string) (time.Duration, error) {
	d, ok := t.durations[filepath.Base(path)]
	if !ok {
		return 0, errors.New("no duration")
	}
	return d, nil
}

// fakeHandle "recognizes" the bytes of the audio file it is given.
type fakeHandle struct {
	loader *fakeLoader
}

func (h *fakeHandle) Transcribe(ctx context.Context, audioPath string, opts model.Options) (string, error) {
	if h.loader.failAudio[filepath.Base(audioPath)] {
		return "", errors.New("decoder error")
	}
	if h.loader.lostAt[filepath.Base(audioPath)] {
		return "", fmt.Errorf("%w: whisper-server is not running", model.ErrModelUnavailable)
	}
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", err
	}
	// surrounding whitespace is normalized away
	return "  text(" + string(data) + ")\n\n", nil
}

func (h *fakeHandle) Close() error { return nil }

func (h *fakeHandle) Name() string { return "fake" }

type fakeLoader struct {
	checkErr  error
	loadErr   error
	failAudio map[string]bool
	lostAt    map[string]bool
}

func (l *fakeLoader) Check(ctx context.Context) error { return l.checkErr }

func (l *fakeLoader) Load(ctx context.Context) (model.Handle, error) {
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	return &fakeHandle{loader: l}, nil
}

type fixture struct {
	cfg        *config.Config
	transcoder *fakeTranscoder
	loader     *fakeLoader
	manager    *model.Manager
	proc       Processor
}

func newFixture(t *testing.T, policy model.Policy) *fixture {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.Videos = filepath.Join(root, "videos")
	cfg.Paths.Audio = filepath.Join(root, "mp3")
	cfg.Paths.Output = filepath.Join(root, "txt")
	cfg.Paths.Work = filepath.Join(root, "work")
	for _, dir := range []string{cfg.Paths.Videos, cfg.Paths.Audio} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}

	f := &fixture{
		cfg:        cfg,
		transcoder: newFakeTranscoder(),
		loader:     &fakeLoader{failAudio: map[string]bool{}, lostAt: map[string]bool{}},
	}
	f.rebuild(policy)
	return f
}

// rebuild starts a fresh process lifetime over the same directories
func (f *fixture) rebuild(policy model.Policy) {
	log := logger.New("error")
	f.manager = model.NewManager(f.loader, policy, log, model.WithReclaim(func() {}))
	f.proc = New(f.cfg, f.transcoder, f.manager, nil, log)
}

func (f *fixture) addAudio(t *testing.T, name, content string, size int64) string {
	t.Helper()
	path := filepath.Join(f.cfg.Paths.Audio, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	if size > 0 {
		require.NoError(t, os.Truncate(path, size))
	}
	return path
}

func (f *fixture) final(base string) string {
	return filepath.Join(f.cfg.Paths.Output, base+".txt")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func workEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

const mib = 1024 * 1024

func TestRun_DirectFile(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "lecture.mp3", "hello", 0)

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)

	res := sum.Files[0]
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, 0, res.Chunks)
	assert.Equal(t, []State{StateDiscovered, StateSizeChecked, StateDirect, StateTranscribing, StateDone}, res.History)
	assert.Equal(t, "text(hello)\n", readFile(t, f.final("lecture")))
	assert.Equal(t, 1, f.manager.Loads())
	assert.False(t, sum.Failed())
}

func TestRun_ExactLimitIsNotSplit(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "edge.mp3", "x", 50*mib)

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)
	assert.Equal(t, StateDone, sum.Files[0].State)
	assert.Contains(t, sum.Files[0].History, StateDirect)
	assert.Empty(t, f.transcoder.ranges)
}

func TestRun_SkipsExistingTranscript(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "done.mp3", "fresh audio", 0)
	require.NoError(t, os.MkdirAll(f.cfg.Paths.Output, 0755))
	require.NoError(t, os.WriteFile(f.final("done"), []byte("old transcript\n"), 0644))
	before, err := os.Stat(f.final("done"))
	require.NoError(t, err)

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)
	assert.Equal(t, OutcomeSkipped, sum.Files[0].Outcome)
	assert.Equal(t, []State{StateDiscovered, StateSkipped}, sum.Files[0].History)

	after, err := os.Stat(f.final("done"))
	require.NoError(t, err)
	assert.Equal(t, "old transcript\n", readFile(t, f.final("done")))
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, 0, f.manager.Loads())
	assert.Empty(t, workEntries(t, f.cfg.Paths.Work))
}

func TestRun_ChunkedLongRecording(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "talk.mp3", "x", 120*mib)
	f.transcoder.durations["talk.mp3"] = 95 * time.Minute

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)

	res := sum.Files[0]
	require.NoError(t, res.Err)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, []State{
		StateDiscovered, StateSizeChecked, StateChunked, StateTranscribing, StateMerging, StateDone,
	}, res.History)

	// contiguous windows, last one shorter
	require.Len(t, f.transcoder.ranges, 4)
	var next time.Duration
	for i, r := range f.transcoder.ranges {
		assert.Equal(t, next, r.start, "chunk %d start", i+1)
		assert.Equal(t, filepath.Join(f.cfg.Paths.Work, fmt.Sprintf("talk_part%d.mp3", i+1)), r.dst)
		next = r.start + r.width
	}
	assert.Equal(t, 95*time.Minute, next)
	assert.Equal(t, 5*time.Minute, f.transcoder.ranges[3].width)

	want := "text(talk.mp3[0-30])\n" +
		"text(talk.mp3[30-60])\n" +
		"text(talk.mp3[60-90])\n" +
		"text(talk.mp3[90-95])\n"
	assert.Equal(t, want, readFile(t, f.final("talk")))

	assert.Equal(t, 4, f.manager.Loads())
	assert.Empty(t, workEntries(t, f.cfg.Paths.Work))
}

func TestRun_PersistentLoadsOnce(t *testing.T) {
	f := newFixture(t, model.PolicyPersistent)
	f.addAudio(t, "a.mp3", "a", 0)
	f.addAudio(t, "b.mp3", "b", 0)
	f.addAudio(t, "long.mp3", "x", 60*mib)
	f.transcoder.durations["long.mp3"] = 61 * time.Minute

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count(OutcomeDone))
	assert.Equal(t, 1, f.manager.Loads())
}

func TestRun_ResumesOnlyFailedChunk(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "talk.mp3", "x", 120*mib)
	f.transcoder.durations["talk.mp3"] = 95 * time.Minute
	f.transcoder.failChunk["talk_part3.mp3"] = true

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)

	res := sum.Files[0]
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, merge.ErrIncompleteChunkSet)
	assert.ErrorIs(t, res.Err, chunk.ErrChunkExtractionFailed)
	assert.Contains(t, res.Err.Error(), "3")
	assert.NoFileExists(t, f.final("talk"))
	assert.True(t, sum.Failed())

	for _, i := range []int{1, 2, 4} {
		assert.FileExists(t, filepath.Join(f.cfg.Paths.Work, fmt.Sprintf("talk_part%d.txt", i)))
	}
	assert.Equal(t, 3, f.manager.Loads())

	// second run: only chunk 3 is extracted and transcribed
	delete(f.transcoder.failChunk, "talk_part3.mp3")
	f.transcoder.ranges = nil
	f.rebuild(model.PolicyPerTask)

	sum, err = f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)
	assert.Equal(t, OutcomeDone, sum.Files[0].Outcome)
	require.Len(t, f.transcoder.ranges, 1)
	assert.Equal(t, 60*time.Minute, f.transcoder.ranges[0].start)
	assert.Equal(t, 1, f.manager.Loads())

	merged := readFile(t, f.final("talk"))
	assert.True(t, strings.HasPrefix(merged, "text(talk.mp3[0-30])\n"))
	assert.Contains(t, merged, "text(talk.mp3[60-90])\n")
	assert.Empty(t, workEntries(t, f.cfg.Paths.Work))
}

func TestRun_ResumeAfterChunkDurationChange(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "talk.mp3", "x", 120*mib)
	f.transcoder.durations["talk.mp3"] = 95 * time.Minute
	f.transcoder.failChunk["talk_part4.mp3"] = true

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, sum.Files[0].Outcome)
	assert.FileExists(t, filepath.Join(f.cfg.Paths.Work, "talk_part3.txt"))

	// interrupted run resumed with a different chunk length
	delete(f.transcoder.failChunk, "talk_part4.mp3")
	f.transcoder.ranges = nil
	f.cfg.Chunking.ChunkMinutes = 20
	f.rebuild(model.PolicyPerTask)

	sum, err = f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)
	require.NoError(t, sum.Files[0].Err)
	assert.Equal(t, 5, sum.Files[0].Chunks)
	assert.Len(t, f.transcoder.ranges, 5)

	want := "text(talk.mp3[0-20])\n" +
		"text(talk.mp3[20-40])\n" +
		"text(talk.mp3[40-60])\n" +
		"text(talk.mp3[60-80])\n" +
		"text(talk.mp3[80-95])\n"
	assert.Equal(t, want, readFile(t, f.final("talk")))
	assert.Empty(t, workEntries(t, f.cfg.Paths.Work))
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "a.mp3", "a", 0)
	f.addAudio(t, "talk.mp3", "x", 120*mib)
	f.transcoder.durations["talk.mp3"] = 95 * time.Minute

	_, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	first := map[string]string{
		"a":    readFile(t, f.final("a")),
		"talk": readFile(t, f.final("talk")),
	}

	f.loader.loadErr = errors.New("must not load")
	f.loader.checkErr = errors.New("must not check")
	f.rebuild(model.PolicyPerTask)

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count(OutcomeSkipped))
	assert.Equal(t, 0, f.manager.Loads())
	for base, text := range first {
		assert.Equal(t, text, readFile(t, f.final(base)))
	}
}

func TestRun_ModelUnavailableHaltsBatch(t *testing.T) {
	tests := []struct {
		name   string
		policy model.Policy
		loader fakeLoader
	}{
		{
			name:   "per-task preflight",
			policy: model.PolicyPerTask,
			loader: fakeLoader{checkErr: fmt.Errorf("%w: ggml-tiny.bin not found", model.ErrModelUnavailable)},
		},
		{
			name:   "persistent load",
			policy: model.PolicyPersistent,
			loader: fakeLoader{loadErr: errors.New("out of memory")},
		},
		{
			name:   "per-task load",
			policy: model.PolicyPerTask,
			loader: fakeLoader{loadErr: errors.New("out of memory")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.policy)
			f.loader.checkErr = tc.loader.checkErr
			f.loader.loadErr = tc.loader.loadErr
			f.addAudio(t, "a.mp3", "a", 0)
			f.addAudio(t, "b.mp3", "b", 0)

			sum, err := f.proc.Run(context.Background())
			require.ErrorIs(t, err, model.ErrModelUnavailable)
			assert.ErrorIs(t, sum.Fatal, model.ErrModelUnavailable)
			assert.Equal(t, 0, sum.Count(OutcomeDone))
			assert.LessOrEqual(t, len(sum.Files), 1)
			assert.NoFileExists(t, f.final("a"))
			assert.NoFileExists(t, f.final("b"))
		})
	}
}

func TestRun_ModelLostMidBatchHalts(t *testing.T) {
	f := newFixture(t, model.PolicyPersistent)
	f.addAudio(t, "a.mp3", "a", 0)
	f.addAudio(t, "b.mp3", "b", 0)
	f.addAudio(t, "c.mp3", "c", 0)
	f.loader.lostAt["b.mp3"] = true

	sum, err := f.proc.Run(context.Background())
	require.ErrorIs(t, err, model.ErrModelUnavailable)
	require.Len(t, sum.Files, 2)
	assert.Equal(t, OutcomeDone, sum.Files[0].Outcome)
	assert.Equal(t, OutcomeFailed, sum.Files[1].Outcome)
	assert.NoFileExists(t, f.final("c"))
}

func TestRun_TranscoderUnavailable(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.transcoder.checkErr = fmt.Errorf("%w: ffmpeg not found", media.ErrTranscoderUnavailable)
	f.addAudio(t, "a.mp3", "a", 0)

	sum, err := f.proc.Run(context.Background())
	require.ErrorIs(t, err, media.ErrTranscoderUnavailable)
	assert.Empty(t, sum.Files)
	assert.Equal(t, 0, f.manager.Loads())
}

func TestRun_FileFailureDoesNotStopBatch(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "a.mp3", "a", 0)
	f.addAudio(t, "b.mp3", "b", 0)
	f.loader.failAudio["a.mp3"] = true

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 2)

	assert.Equal(t, OutcomeFailed, sum.Files[0].Outcome)
	assert.Equal(t, StateFailed, sum.Files[0].State)
	assert.NoFileExists(t, f.final("a"))
	assert.Equal(t, OutcomeDone, sum.Files[1].Outcome)
	assert.Equal(t, "text(b)\n", readFile(t, f.final("b")))
	assert.Equal(t, 1, sum.Count(OutcomeFailed))
}

func TestRun_ZeroDurationFailsFile(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "empty.mp3", "x", 60*mib)
	f.transcoder.durations["empty.mp3"] = 0

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)
	assert.Equal(t, OutcomeFailed, sum.Files[0].Outcome)
	assert.ErrorIs(t, sum.Files[0].Err, chunk.ErrChunkExtractionFailed)
	assert.Equal(t, []State{StateDiscovered, StateSizeChecked, StateChunked, StateFailed}, sum.Files[0].History)
}

func TestRun_ConvertsVideosFirst(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.Paths.Videos, "clip.mp4"), []byte("video"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.Paths.Videos, "notes.pdf"), []byte("pdf"), 0644))

	sum, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Conversions, 1)
	assert.False(t, sum.Conversions[0].Skipped)
	assert.Equal(t, "text(audio of clip.mp4)\n", readFile(t, f.final("clip")))

	// no re-conversion once the transcript exists
	require.NoError(t, os.Remove(filepath.Join(f.cfg.Paths.Audio, "clip.mp3")))
	f.rebuild(model.PolicyPerTask)
	sum, err = f.proc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Conversions, 1)
	assert.True(t, sum.Conversions[0].Skipped)
	assert.Len(t, f.transcoder.audio, 1)
}

func TestRun_RemovesStalePartials(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	require.NoError(t, os.MkdirAll(f.cfg.Paths.Work, 0755))
	stale := filepath.Join(f.cfg.Paths.Work, ".talk_part2.partial.mp3")
	require.NoError(t, os.WriteFile(stale, []byte("half"), 0644))

	_, err := f.proc.Run(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestRun_RecordsMetrics(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	rec := metrics.New()
	f.proc = New(f.cfg, f.transcoder, f.manager, rec, logger.New("error"))
	f.addAudio(t, "a.mp3", "a", 0)

	_, err := f.proc.Run(context.Background())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "tf.prom")
	require.NoError(t, rec.WriteTextfile(out, time.Now()))
	assert.Contains(t, readFile(t, out), `transcript_flow_files_total{outcome="done"} 1`)
}

func TestRun_CancelledContextStops(t *testing.T) {
	f := newFixture(t, model.PolicyPerTask)
	f.addAudio(t, "a.mp3", "a", 0)
	f.addAudio(t, "b.mp3", "b", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := f.proc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, len(sum.Files), 1)
	assert.NoFileExists(t, f.final("b"))
}
