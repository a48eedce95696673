package constants

// UploadStatus is the canonical status for one file's upload pipeline.
type UploadStatus string

// Stable values (reported to clients as these exact strings).
const (
	StatusNotUploaded      UploadStatus = "NOT_UPLOADED"       // created, nothing moved yet
	StatusProcessingPDF    UploadStatus = "PROCESSING_PDF"     // rasterizing PDF pages
	StatusCompressingImage UploadStatus = "COMPRESSING_IMAGE"  // shrinking to byte budget
	StatusUploadingToStore UploadStatus = "UPLOADING_TO_STORE" // transfer to archive store
	StatusAIProcessing     UploadStatus = "AI_PROCESSING"      // extraction in flight
	StatusCompleted        UploadStatus = "COMPLETED"          // terminal success
	StatusFailed           UploadStatus = "FAILED"             // terminal failure
)

// IsTerminal reports whether no further transition may leave s.
func (s UploadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsRetryable reports whether a new pipeline run may be started for a file
// currently in status s.
func (s UploadStatus) IsRetryable() bool {
	return s == StatusNotUploaded || s == StatusFailed
}
