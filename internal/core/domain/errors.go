package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRuntimeUnavailable wraps failures of the container runtime itself.
	// No tunnel data from the failed query can be trusted.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrInvalidTarget is returned for malformed lifecycle targets.
	ErrInvalidTarget = errors.New("invalid tunnel target")
)

// CommandResult is the captured outcome of an external command.
type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// ReplaceResult carries the output of both halves of a replace.
type ReplaceResult struct {
	Stop  CommandResult `json:"stop"`
	Start CommandResult `json:"start"`
}

// CommandError reports a lifecycle command that exited non-zero.
type CommandError struct {
	Op string
	CommandResult
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Op, e.ExitCode, msg)
}
