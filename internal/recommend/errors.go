package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/artifact"
)

var (
	// ErrInputData marks a profile or posting field that was missing or
	// unreadable and fell back to its default.
	ErrInputData = errors.New("input data defaulted")
	// ErrEmptyCandidateSet is reported when the corpus leaves nothing to rank.
	ErrEmptyCandidateSet = errors.New("empty candidate set")
	ErrModelUnavailable  = ai.ErrUnavailable
	ErrTimeout           = errors.New("stage timed out")
	ErrIndexBuild        = artifact.ErrBuild
)

// StageError ties a failure to the pipeline stage it happened in. Kind is one
// of the sentinel errors above, so errors.Is works on both.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// stageError classifies err. Deadlines become ErrTimeout, everything else
// coming out of a model stage is ErrModelUnavailable.
func stageError(stage string, err error) *StageError {
	kind := ErrModelUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
