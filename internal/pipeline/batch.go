package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/invoicevault/invoicevault/constants"
	"github.com/invoicevault/invoicevault/internal/progress"
)

// BatchResult reports a batch run. Individual files may fail without failing
// the batch.
type BatchResult struct {
	Results      []*Result
	SuccessCount int
	FailureCount int
}

// FileProgressCallback receives per-file progress updates during a batch.
type FileProgressCallback func(index int, name string, status constants.UploadStatus, prog int, message string)

// OverallProgressCallback receives the aggregate after every per-file update.
type OverallProgressCallback func(summary progress.Summary)

// RunBatchUpload runs each file's pipeline as an independent task behind a
// fixed-width concurrency window. Files do not observe or affect each other;
// one file's failure never aborts its siblings.
func (c *Coordinator) RunBatchUpload(ctx context.Context, files []File, userID uuid.UUID, onFile FileProgressCallback, onOverall OverallProgressCallback) *BatchResult {
	res := &BatchResult{Results: make([]*Result, len(files))}
	if len(files) == 0 {
		return res
	}

	var mu sync.Mutex
	snapshots := make([]progress.Snapshot, len(files))
	for i, f := range files {
		snapshots[i] = progress.Snapshot{FileID: f.Name, Status: constants.StatusNotUploaded}
	}

	report := func(index int, name string, status constants.UploadStatus, prog int, message string) {
		mu.Lock()
		snapshots[index] = progress.Snapshot{
			FileID:   name,
			Status:   status,
			Progress: prog,
			Error:    errorMessageFor(status, message),
		}
		summary := progress.Aggregate(snapshots)
		mu.Unlock()
		if onFile != nil {
			onFile(index, name, status, prog, message)
		}
		if onOverall != nil {
			onOverall(summary)
		}
	}

	sem := make(chan struct{}, c.cfg.BatchConcurrency)
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(index int, file File) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r := c.RunSingleFileUpload(ctx, file, userID,
				func(status constants.UploadStatus, prog int, message string) {
					report(index, file.Name, status, prog, message)
				})
			mu.Lock()
			res.Results[index] = r
			mu.Unlock()
		}(i, f)
	}
	wg.Wait()

	for _, r := range res.Results {
		if r != nil && r.Success {
			res.SuccessCount++
		} else {
			res.FailureCount++
		}
	}
	c.logger.Info("pipeline.batch.done",
		"total", len(files),
		"succeeded", res.SuccessCount,
		"failed", res.FailureCount,
	)
	return res
}

func errorMessageFor(status constants.UploadStatus, message string) string {
	if status == constants.StatusFailed {
		return message
	}
	return ""
}
