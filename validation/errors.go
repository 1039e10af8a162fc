package validation

import (
	"errors"
	"fmt"
)

// ErrSetup matches every *SetupError.
var ErrSetup = errors.New("validation: setup failed")

// Stage names a step of the validator build.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageLoad     Stage = "load"
	StageAssemble Stage = "assemble"
	StageEngine   Stage = "engine"
)

// SetupError reports a failed validator build. No validator is produced
// when one is returned.
type SetupError struct {
	Stage Stage
	Key   Key
	Err   error
}

func (e *SetupError) Error() string {
	if e.Key == (Key{}) {
		return fmt.Sprintf("validation setup failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("validation setup failed at %s for %s: %v", e.Stage, e.Key, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

func (e *SetupError) Is(target error) bool { return target == ErrSetup }

func setupError(stage Stage, key Key, err error) error {
	var se *SetupError
	if errors.As(err, &se) {
		return err
	}
	return &SetupError{Stage: stage, Key: key, Err: err}
}
