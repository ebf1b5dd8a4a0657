// Package srcmap decodes the compressed instruction source maps that solc
// writes into combined-json under "srcmap" and "srcmap-runtime".
//
// A source map is a list of s:l:f:j:m entries separated by ';', one per
// instruction. Empty or missing fields repeat the value of the previous entry.
package srcmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reserve-protocol/ethdebug/common"
)

type JumpType int

const (
	Regular JumpType = iota
	Into
	Out
)

func (j JumpType) String() string {
	switch j {
	case Into:
		return "into"
	case Out:
		return "out"
	default:
		return "regular"
	}
}

// Symbol is the single character solc uses for j.
func (j JumpType) Symbol() string {
	switch j {
	case Into:
		return "i"
	case Out:
		return "o"
	default:
		return "-"
	}
}

// ParseJumpType accepts both solc's characters and the long names.
func ParseJumpType(s string) (JumpType, error) {
	switch s {
	case "i", "into":
		return Into, nil
	case "o", "out":
		return Out, nil
	case "-", "regular":
		return Regular, nil
	}
	return Regular, fmt.Errorf("unknown jump type %q", s)
}

// Entry is the fully resolved mapping of one instruction. Start, Length and
// FileIndex are -1 when solc has no source for the instruction.
type Entry struct {
	Start         int
	Length        int
	FileIndex     int
	Jump          JumpType
	ModifierDepth int
}

// HasSource reports whether the entry points into a source file.
func (e Entry) HasSource() bool {
	return e.FileIndex >= 0 && e.Start >= 0 && e.Length >= 0
}

func (e Entry) String() string {
	return fmt.Sprintf("%d:%d:%d:%s:%d", e.Start, e.Length, e.FileIndex, e.Jump.Symbol(), e.ModifierDepth)
}

var fieldNames = [...]string{"start", "length", "file index", "jump type", "modifier depth"}

// MalformedError describes the first field that failed to parse.
type MalformedError struct {
	Entry int
	Field string
	Value string
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed source map: entry %d: %s %q: %v", e.Entry, e.Field, e.Value, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == common.ErrMalformedSourceMap }

// Decode expands raw into one Entry per instruction, in instruction order.
func Decode(raw string) ([]Entry, error) {
	if raw == "" {
		return nil, nil
	}

	tuples := strings.Split(raw, ";")
	entries := make([]Entry, 0, len(tuples))

	var current Entry
	for i, tuple := range tuples {
		if tuple == "" {
			entries = append(entries, current)
			continue
		}

		fields := strings.Split(tuple, ":")
		if len(fields) > len(fieldNames) {
			return nil, &MalformedError{
				Entry: i,
				Field: "entry",
				Value: tuple,
				Err:   fmt.Errorf("%d fields, at most %d allowed", len(fields), len(fieldNames)),
			}
		}

		for j, val := range fields {
			// Trailing fields may be absent and any field may be empty; both inherit.
			if val == "" {
				continue
			}
			var err error
			switch j {
			case 0:
				current.Start, err = parseLocation(val)
			case 1:
				current.Length, err = parseLocation(val)
			case 2:
				current.FileIndex, err = parseLocation(val)
			case 3:
				current.Jump, err = ParseJumpTypeSymbol(val)
			case 4:
				current.ModifierDepth, err = parseDepth(val)
			}
			if err != nil {
				return nil, &MalformedError{Entry: i, Field: fieldNames[j], Value: val, Err: err}
			}
		}
		entries = append(entries, current)
	}
	return entries, nil
}

// ParseJumpTypeSymbol only accepts the characters found in source maps.
func ParseJumpTypeSymbol(s string) (JumpType, error) {
	if len(s) != 1 {
		return Regular, fmt.Errorf("unknown jump type %q", s)
	}
	return ParseJumpType(s)
}

// solc writes -1 for compiler-generated code with no source.
func parseLocation(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < -1 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func parseDepth(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}
