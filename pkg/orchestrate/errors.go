package orchestrate

import (
	"errors"

	"github.com/visionkit/describe-client/pkg/vision"
)

// ErrNoResults is returned by Run when every field failed across every
// chunk and no descriptions could be produced at all. It is distinct
// from a partial-success run, which returns a nil error together with a
// populated FieldErrors list.
var ErrNoResults = errors.New("no descriptions produced")

// FieldError records one failed (field, chunk) submission or poll.
type FieldError struct {
	Field   vision.Field
	Chunk   int
	Message string
}

// Warning records a field-level condition that is not a hard failure,
// such as a field whose calls succeeded but yielded no usable text.
type Warning struct {
	Field   vision.Field
	Message string
}
