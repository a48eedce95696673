package progress

import (
	"sync"

	"github.com/invoicevault/invoicevault/constants"
)

// Callback receives progress updates for one file's pipeline. It may be
// invoked any number of times; the last call before the pipeline resolves
// reports COMPLETED or FAILED.
type Callback func(status constants.UploadStatus, progress int, message string)

// Tracker keeps one file's client-visible state monotonic: overall progress
// never decreases while the status is non-terminal, and nothing changes after
// COMPLETED or FAILED. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	fileID   string
	status   constants.UploadStatus
	progress int
	errMsg   string
	cb       Callback
}

func NewTracker(fileID string, cb Callback) *Tracker {
	return &Tracker{
		fileID: fileID,
		status: constants.StatusNotUploaded,
		cb:     cb,
	}
}

// Stage moves the tracker into a stage and reports intra-stage progress
// (0-100 within that stage). Updates after a terminal status are dropped.
func (t *Tracker) Stage(status constants.UploadStatus, withinStage int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	overall := ForStatus(status, withinStage)
	if status == constants.StatusCompleted {
		overall = 100
	}
	if overall < t.progress && status != constants.StatusFailed {
		overall = t.progress
	}
	t.status = status
	t.progress = overall
	t.notify(message)
}

// Fail moves the tracker to FAILED with the given message. Progress is left
// where it was. No-op if already terminal.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	t.status = constants.StatusFailed
	t.errMsg = message
	t.notify(message)
}

// Complete moves the tracker to COMPLETED at progress 100.
func (t *Tracker) Complete(message string) {
	t.Stage(constants.StatusCompleted, 100, message)
}

func (t *Tracker) notify(message string) {
	if t.cb != nil {
		t.cb(t.status, t.progress, message)
	}
}

// Snapshot returns the tracker's current client-visible state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		FileID:   t.fileID,
		Status:   t.status,
		Progress: t.progress,
		Error:    t.errMsg,
	}
}
