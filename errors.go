package gohomework

import "errors"

var (
	// ErrUnsupportedFormat is returned for documents no extractor
	// handles.
	ErrUnsupportedFormat = errors.New("gohomework: unsupported document format")

	// ErrInvalidConfig is returned for configuration the processor
	// cannot start with.
	ErrInvalidConfig = errors.New("gohomework: invalid configuration")

	// ErrNoElements means extraction produced nothing usable (step 1).
	ErrNoElements = errors.New("gohomework: no elements extracted")

	// ErrNoProblems means structure inference recognized no problems
	// (step 2).
	ErrNoProblems = errors.New("gohomework: no problems recognized")

	// ErrNoMatches means no problems survived element matching (step 3).
	ErrNoMatches = errors.New("gohomework: no problems matched")
)
