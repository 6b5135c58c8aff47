package dag

import (
	"fmt"
	"strings"

	"weave/internal/core"
)

// CycleError reports a cycle found during resolution, naming the on-stack
// path that closes the loop.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Unwrap() error { return core.ErrCycle }

// MissingInputError reports a dependency name that is neither a registered
// target nor present on disk.
type MissingInputError struct {
	Name string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: %q is not a registered target and does not exist on disk", e.Name)
}

func (e *MissingInputError) Unwrap() error { return core.ErrMissingInput }

// UnknownGoalError reports a requested goal name that resolves to nothing.
type UnknownGoalError struct {
	Name string
}

func (e *UnknownGoalError) Error() string {
	return fmt.Sprintf("unknown goal: %q", e.Name)
}

func (e *UnknownGoalError) Unwrap() error { return core.ErrUnknownGoal }

// OutputMissingError reports a file target whose action returned success
// without producing every declared output.
type OutputMissingError struct {
	Target string
	Output string
}

func (e *OutputMissingError) Error() string {
	return fmt.Sprintf("target %q: declared output %q does not exist after action returned", e.Target, e.Output)
}

func (e *OutputMissingError) Unwrap() error { return core.ErrOutputMissing }
