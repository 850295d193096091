package pipeline

import "fmt"

type ValidationError struct {
	Stage  string
	Action string
	Reason string
}

func (ve ValidationError) Error() string {
	switch {
	case ve.Stage == "":
		return fmt.Sprintf("pipeline: %s", ve.Reason)
	case ve.Action == "":
		return fmt.Sprintf("stage %q: %s", ve.Stage, ve.Reason)
	default:
		return fmt.Sprintf("stage %q action %q: %s", ve.Stage, ve.Action, ve.Reason)
	}
}

func newValidationError(stage, action, format string, args ...any) *ValidationError {
	return &ValidationError{Stage: stage, Action: action, Reason: fmt.Sprintf(format, args...)}
}
