package strategist

import "errors"

// Stage-level failure sentinels. Each one marks which phase of the pipeline
// gave up, which in turn decides the degradation step taken.
var (
	// ErrConfiguration marks invalid setup detected before any work runs.
	ErrConfiguration = errors.New("configuration error")

	// ErrSegmentation marks a failure to split the document.
	ErrSegmentation = errors.New("segmentation failure")

	// ErrConsolidation marks a failure while evolving the belief state.
	ErrConsolidation = errors.New("consolidation failure")

	// ErrSynthesis marks a failure to produce the final schema.
	ErrSynthesis = errors.New("synthesis failure")
)
