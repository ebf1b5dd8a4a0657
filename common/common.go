package common

import (
	"errors"
	"fmt"
	"os"
)

// Each conversion failure matches exactly one of these with errors.Is.
var (
	ErrMalformedSourceMap       = errors.New("malformed source map")
	ErrTruncatedBytecode        = errors.New("truncated bytecode")
	ErrInstructionCountMismatch = errors.New("instruction count mismatch")
	ErrUnresolvedFileIndex      = errors.New("unresolved file index")
	ErrEmptyBytecode            = errors.New("empty bytecode")
)

// ExitCode is what the process exits with when an error reaches main.
type ExitCode int

const (
	ExitOK ExitCode = iota
	ExitUsage
	ExitConversion
	ExitValidation
)

// HasExitCode is an error that knows how the process should exit.
type HasExitCode interface {
	error
	ExitCode() ExitCode
}

type withExitCode struct {
	error
	code ExitCode
}

func (e withExitCode) Unwrap() error      { return e.error }
func (e withExitCode) ExitCode() ExitCode { return e.code }

// WithExitCode attaches code to err unless err already carries one.
func WithExitCode(err error, code ExitCode) error {
	if err == nil {
		return nil
	}
	var ec HasExitCode
	if errors.As(err, &ec) {
		return err
	}
	return withExitCode{err, code}
}

// ExitCodeOf returns the exit code attached to err. Conversion errors that
// were never tagged map to ExitConversion, anything else to ExitUsage.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	var ec HasExitCode
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if IsConversionError(err) {
		return ExitConversion
	}
	return ExitUsage
}

// IsConversionError reports whether err is one of the data-integrity failures.
func IsConversionError(err error) bool {
	for _, target := range []error{
		ErrMalformedSourceMap,
		ErrTruncatedBytecode,
		ErrInstructionCountMismatch,
		ErrUnresolvedFileIndex,
		ErrEmptyBytecode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Check exits the process on setup errors that leave nothing to recover.
func Check(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v: %v\n", msg, err)
		os.Exit(int(ExitCodeOf(err)))
	}
}
