package srclocation

import (
	"errors"
	"fmt"
	"sort"
)

// A particular range of bytes in a source file.
type SourceLocation struct {
	ByteOffset     int
	ByteLength     int
	SourceFileName string
}

func (location SourceLocation) End() int {
	return location.ByteOffset + location.ByteLength
}

func (location SourceLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", location.SourceFileName, location.ByteOffset, location.ByteLength)
}

// It can be the case that srcloc1.Overlaps(srcloc2) AND srcloc2.Overlaps(srcloc1),
// if they're the same size.
func (location1 SourceLocation) Overlaps(location2 SourceLocation) bool {
	return location1.SourceFileName == location2.SourceFileName &&
		location1.ByteOffset <= location2.ByteOffset &&
		location2.End() <= location1.End()
}

// Enclosing returns the candidates that contain location and are larger than
// it, without duplicates, innermost first.
func (location SourceLocation) Enclosing(candidates []SourceLocation) []SourceLocation {
	var enclosing []SourceLocation
	for _, candidate := range candidates {
		if candidate == location || !candidate.Overlaps(location) || contains(enclosing, candidate) {
			continue
		}
		enclosing = append(enclosing, candidate)
	}
	sort.SliceStable(enclosing, func(i, j int) bool {
		return enclosing[i].ByteLength < enclosing[j].ByteLength
	})
	return enclosing
}

func contains(locations []SourceLocation, location SourceLocation) bool {
	for _, l := range locations {
		if l == location {
			return true
		}
	}
	return false
}

var ErrOutOfRange = errors.New("source location is past the end of the file")

// SnippetFrom returns the 1-based line and column where the location starts
// in source along with the bytes it covers.
func (location SourceLocation) SnippetFrom(source []byte) (int, int, []byte, error) {
	if location.ByteOffset < 0 || location.ByteLength < 0 || location.End() > len(source) {
		return 0, 0, nil, ErrOutOfRange
	}

	lineNumber := 1
	columnNumber := 1
	for _, sourceByte := range source[:location.ByteOffset] {
		columnNumber += 1
		if sourceByte == '\n' {
			lineNumber += 1
			columnNumber = 1
		}
	}
	return lineNumber, columnNumber, source[location.ByteOffset:location.End()], nil
}
