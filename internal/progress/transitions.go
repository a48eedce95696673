// Package progress models the upload status machine: legal transitions,
// stage-weighted overall progress and multi-file aggregation.
package progress

import "github.com/invoicevault/invoicevault/constants"

// transitions is the fixed table of legal status moves. FAILED is reachable
// from every non-terminal state; COMPRESSING_IMAGE is reachable directly from
// NOT_UPLOADED because non-PDF inputs skip the rasterization stage.
var transitions = map[constants.UploadStatus][]constants.UploadStatus{
	constants.StatusNotUploaded: {
		constants.StatusProcessingPDF,
		constants.StatusCompressingImage,
		constants.StatusFailed,
	},
	constants.StatusProcessingPDF: {
		constants.StatusCompressingImage,
		constants.StatusFailed,
	},
	constants.StatusCompressingImage: {
		constants.StatusUploadingToStore,
		constants.StatusFailed,
	},
	constants.StatusUploadingToStore: {
		constants.StatusAIProcessing,
		constants.StatusFailed,
	},
	constants.StatusAIProcessing: {
		constants.StatusCompleted,
		constants.StatusFailed,
	},
	constants.StatusCompleted: {},
	constants.StatusFailed:    {},
}

// IsValidTransition reports whether moving from one status to the other is
// legal. Purely advisory: callers enforce it.
func IsValidTransition(from, to constants.UploadStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
