// Package validator runs an external Ethdebug analyzer, ethdebug-stats by
// default, over a written document and reports whether it accepted it.
package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

var DefaultCommand = []string{"ethdebug-stats"}

var ErrValidatorNotFound = errors.New("validator not found")

type Result struct {
	Passed bool
	// Output is everything the validator wrote to stdout and stderr.
	Output string
}

// Run invokes command with path appended to its arguments. A validator that
// runs and exits non-zero is a failed Result, not an error.
func Run(ctx context.Context, command []string, path string) (Result, error) {
	if len(command) == 0 || command[0] == "" {
		return Result{}, errors.New("empty validator command")
	}
	args := append(append([]string{}, command...), path)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return Result{Passed: true, Output: out.String()}, nil
	case errors.As(err, &exitErr):
		return Result{Passed: false, Output: out.String()}, nil
	case errors.Is(err, exec.ErrNotFound):
		return Result{}, fmt.Errorf("%w: %s", ErrValidatorNotFound, args[0])
	default:
		return Result{}, err
	}
}
