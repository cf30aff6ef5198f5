package processor

import (
	"context"
	"fmt"

	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

// State is where a source file is in the pipeline
type State string

const (
	StateDiscovered   State = "discovered"
	StateSizeChecked  State = "size_checked"
	StateDirect       State = "direct"
	StateChunked      State = "chunked"
	StateTranscribing State = "transcribing"
	StateMerging      State = "merging"
	StateDone         State = "done"
	StateSkipped      State = "skipped"
	StateFailed       State = "failed"
)

// isValidTransition enforces the per-file state machine edges
func isValidTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateDone && from != StateSkipped && from != StateFailed
	}
	switch from {
	case StateDiscovered:
		return to == StateSizeChecked || to == StateSkipped
	case StateSizeChecked:
		return to == StateDirect || to == StateChunked
	case StateDirect, StateChunked:
		return to == StateTranscribing
	case StateTranscribing:
		return to == StateDone || to == StateMerging
	case StateMerging:
		return to == StateDone
	default:
		return false
	}
}

// tracker follows one file through the state machine. An invalid edge is
// recorded and turns the file's outcome into a failure.
type tracker struct {
	ctx     context.Context
	logger  logger.Logger
	path    string
	state   State
	history []State
	err     error
}

func newTracker(ctx context.Context, log logger.Logger, path string) *tracker {
	return &tracker{
		ctx:     ctx,
		logger:  log,
		path:    path,
		state:   StateDiscovered,
		history: []State{StateDiscovered},
	}
}

func (t *tracker) to(next State) {
	if !isValidTransition(t.state, next) {
		if t.err == nil {
			t.err = fmt.Errorf("invalid state transition for %s: %s -> %s", t.path, t.state, next)
		}
		t.logger.Error(t.ctx, "%v", t.err)
		return
	}
	t.logger.Debug(t.ctx, "%s: %s -> %s", t.path, t.state, next)
	t.state = next
	t.history = append(t.history, next)
}
