package engine

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned when a compose call was cancelled because a
// newer frame replaced it. The partial result must not be drawn.
var ErrSuperseded = errors.New("compose superseded by a newer frame")

// DecodeError reports an unreadable template image. It is fatal for the
// frame: no partial render is attempted.
type DecodeError struct {
	TemplateID string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode template '%s': %v", e.TemplateID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InvalidGeometryError reports a layout whose computed ticket size is not
// positive. Rendering is aborted with zero cells drawn.
type InvalidGeometryError struct {
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid sheet geometry: %s", e.Reason)
}

// SizeMismatchError reports a pixel buffer whose byte length does not
// match width*height*4. It indicates a rounding or configuration bug and
// is never silently corrected.
type SizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("buffer size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}
