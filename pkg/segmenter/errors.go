package segmenter

import "errors"

// ErrInvalidConfig marks configuration bounds rejected before any processing.
var ErrInvalidConfig = errors.New("invalid segmenter configuration")

// ErrUnparseable marks input that cannot be split under the given bounds.
var ErrUnparseable = errors.New("unparseable document")
