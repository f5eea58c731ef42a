package pipeline

import (
	"errors"
	"fmt"

	"projectarchitect/internal/extract"
	llmclient "projectarchitect/internal/llm/client"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("pipeline: run not found")

// ValidationError rejects caller input before any stage runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StageError is the single wrapper the orchestrator applies to whatever
// stopped a stage.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// CancellationError marks a run ended by cooperative cancellation. Stage is
// the state that would have run next.
type CancellationError struct {
	Stage State
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("run cancelled before %s", e.Stage)
}

// ErrorKind names the cause class of err for snapshots and API responses.
func ErrorKind(err error) string {
	var (
		ve *ValidationError
		ce *CancellationError
		ge *llmclient.GenerationError
		ee *extract.ExtractionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ce):
		return "cancelled"
	case errors.As(err, &ge):
		return "generation_" + ge.Kind.String()
	case errors.As(err, &ee):
		return "extraction"
	}
	return "internal"
}
