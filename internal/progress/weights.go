package progress

import "github.com/invoicevault/invoicevault/constants"

// stageSpan maps a status to the slice of overall progress it occupies.
// Weights reflect the expected relative latency of each stage; the store
// transfer and the AI call dominate.
type stageSpan struct {
	base int // overall progress when the stage begins
	span int // overall progress points the stage occupies
}

var spans = map[constants.UploadStatus]stageSpan{
	constants.StatusNotUploaded:      {base: 0, span: 0},
	constants.StatusProcessingPDF:    {base: 0, span: 20},
	constants.StatusCompressingImage: {base: 20, span: 15},
	constants.StatusUploadingToStore: {base: 35, span: 35},
	constants.StatusAIProcessing:     {base: 70, span: 30},
	constants.StatusCompleted:        {base: 100, span: 0},
}

// ForStatus maps a status plus 0-100 intra-stage progress to overall 0-100
// progress. FAILED has no span of its own: the overall value is whatever the
// caller last reported, so it returns the clamped input unchanged.
func ForStatus(status constants.UploadStatus, withinStage int) int {
	if withinStage < 0 {
		withinStage = 0
	}
	if withinStage > 100 {
		withinStage = 100
	}
	if status == constants.StatusFailed {
		return withinStage
	}
	s, ok := spans[status]
	if !ok {
		return 0
	}
	return s.base + s.span*withinStage/100
}
