package convert

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/reserve-protocol/ethdebug/ethdebug"
	"github.com/reserve-protocol/ethdebug/evmbytecode"
	"github.com/reserve-protocol/ethdebug/solc"
	"github.com/reserve-protocol/ethdebug/srclocation"
)

var ErrNoSourceContent = errors.New("source file content is not available")

// Location is what Locate knows about the instruction at a program counter.
type Location struct {
	Index       int
	Instruction ethdebug.Instruction
	// Source is nil for instructions without source.
	Source  *srclocation.SourceLocation
	Line    int
	Column  int
	Snippet []byte
	// Scopes are the source ranges of other instructions that contain Source,
	// innermost first. For solc output these are the function and contract.
	Scopes []Scope
}

type Scope struct {
	Source srclocation.SourceLocation
	Line   int
	Column int
	// Header is the first line of the scope's source.
	Header string
}

// Locate converts the named contract and finds the source of the instruction
// starting at pc.
func (c *Converter) Locate(bundle *solc.CombinedJSON, name string, variant solc.Variant, pc int) (*Location, error) {
	contract, err := bundle.Contract(name)
	if err != nil {
		return nil, err
	}
	doc, instructions, err := c.convert(bundle, contract, variant, c.Sources(bundle))
	if err != nil {
		return nil, err
	}

	opIndex, ok := evmbytecode.PcToOpIndex(instructions)[pc]
	if !ok {
		return nil, fmt.Errorf("no instruction starts at pc %d in %s (%s)", pc, contract.Name, variant)
	}

	location := &Location{Index: opIndex, Instruction: doc.Instructions[opIndex]}
	ref := location.Instruction.SourceRef()
	if ref == nil {
		return location, nil
	}

	source := doc.Sources[ref.ID]
	location.Source = &srclocation.SourceLocation{
		ByteOffset:     ref.Range.Start,
		ByteLength:     ref.Range.Length,
		SourceFileName: source.Path,
	}

	if !source.Content.Valid {
		return location, fmt.Errorf("%s: %w", location.Source, ErrNoSourceContent)
	}
	content := []byte(source.Content.String)
	location.Line, location.Column, location.Snippet, err = location.Source.SnippetFrom(content)
	if err != nil {
		return location, fmt.Errorf("%s: %w", location.Source, err)
	}

	for _, enclosing := range location.Source.Enclosing(sourceLocations(doc, ref.ID)) {
		line, column, snippet, err := enclosing.SnippetFrom(content)
		if err != nil {
			return location, fmt.Errorf("%s: %w", enclosing, err)
		}
		if i := bytes.IndexByte(snippet, '\n'); i != -1 {
			snippet = snippet[:i]
		}
		location.Scopes = append(location.Scopes, Scope{
			Source: enclosing,
			Line:   line,
			Column: column,
			Header: string(bytes.TrimSpace(snippet)),
		})
	}
	return location, nil
}

// sourceLocations lists the source ranges of every instruction in file id.
func sourceLocations(doc *ethdebug.Document, id int) []srclocation.SourceLocation {
	var locations []srclocation.SourceLocation
	for _, instruction := range doc.Instructions {
		ref := instruction.SourceRef()
		if ref == nil || ref.ID != id {
			continue
		}
		locations = append(locations, srclocation.SourceLocation{
			ByteOffset:     ref.Range.Start,
			ByteLength:     ref.Range.Length,
			SourceFileName: doc.Sources[id].Path,
		})
	}
	return locations
}
