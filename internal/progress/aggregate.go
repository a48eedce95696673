package progress

import "github.com/invoicevault/invoicevault/constants"

// Snapshot is the client-visible state of one file's pipeline.
type Snapshot struct {
	FileID   string                   `json:"file_id"`
	Status   constants.UploadStatus   `json:"status"`
	Progress int                      `json:"progress"`
	Error    string                   `json:"error,omitempty"`
}

// Summary aggregates progress across any number of tracked files.
type Summary struct {
	OverallProgress int                            `json:"overall_progress"`
	Total           int                            `json:"total"`
	IdleCount       int                            `json:"idle_count"`
	ProcessingCount int                            `json:"processing_count"`
	CompletedCount  int                            `json:"completed_count"`
	FailedCount     int                            `json:"failed_count"`
	ByStatus        map[constants.UploadStatus]int `json:"by_status"`
}

// Aggregate computes mean progress and per-status counts. An empty input
// yields an all-zero summary, not an error.
func Aggregate(snapshots []Snapshot) Summary {
	s := Summary{ByStatus: make(map[constants.UploadStatus]int)}
	if len(snapshots) == 0 {
		return s
	}
	sum := 0
	for _, snap := range snapshots {
		s.Total++
		s.ByStatus[snap.Status]++
		sum += snap.Progress
		switch {
		case snap.Status == constants.StatusNotUploaded:
			s.IdleCount++
		case snap.Status == constants.StatusCompleted:
			s.CompletedCount++
		case snap.Status == constants.StatusFailed:
			s.FailedCount++
		default:
			s.ProcessingCount++
		}
	}
	s.OverallProgress = sum / len(snapshots)
	return s
}
