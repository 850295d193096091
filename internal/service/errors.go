package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStackNotFound = errors.New("stack not found")
	ErrOutputMissing = errors.New("stack output missing")
	ErrWatchInterval = errors.New("watch interval must be positive")
)

type StageMismatchError struct {
	Expected []string
	Actual   []string
}

func (e StageMismatchError) Error() string {
	return fmt.Sprintf(
		"deployed stages [%s] do not match declared stages [%s]",
		strings.Join(e.Actual, ", "),
		strings.Join(e.Expected, ", "),
	)
}
