package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNoInputs          = errors.New("no inputs")
	ErrNoUsableInputs    = errors.New("no valid image or pdf input")
	ErrTooManyPDFs       = errors.New("only a single pdf is supported")
	ErrEmptyDirectory    = errors.New("no images found in directory")
	ErrNoPages           = errors.New("no valid image or pdf content")
	ErrEngineUnavailable = errors.New("recognition engine unavailable")
	ErrNotJSONArray      = errors.New("json document must be an array")
)

// Stage names a pipeline state.
type Stage string

const (
	StageClassified Stage = "classified"
	StageRecognized Stage = "recognized"
	StageAggregated Stage = "aggregated"
	StageExtracted  Stage = "extracted"
	StageInlined    Stage = "inlined"
	StageCleanedUp  Stage = "cleaned_up"
)

// StageError is the Failed(stage, cause) terminal state of a pipeline run.
// Stage is the last state the run was trying to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
