package subtitle

import "errors"

var (
	// ErrNotFound is returned when an operation names an unknown cue id.
	ErrNotFound = errors.New("cue not found")
	// ErrNotAdjacent is returned when merging cues that are not neighbors.
	ErrNotAdjacent = errors.New("cues are not adjacent")
	// ErrInvalidTimecode is returned for time values that cannot be normalized.
	ErrInvalidTimecode = errors.New("invalid timecode")
	// ErrInvalidRange is returned when an edit would put a cue's start after its end.
	ErrInvalidRange = errors.New("start time after end time")
	// ErrInvalidField is returned for update requests naming an unknown field.
	ErrInvalidField = errors.New("invalid cue field")
)
