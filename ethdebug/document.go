// Package ethdebug builds and serializes Ethdebug debug-information documents
// from walked bytecode and decoded source maps.
package ethdebug

import (
	"gopkg.in/guregu/null.v3"
)

const (
	FormatName    = "ethdebug"
	FormatVersion = 1
)

type Document struct {
	Version      int           `json:"version"`
	Format       string        `json:"format"`
	Environment  string        `json:"environment"`
	Compiler     *Compiler     `json:"compiler,omitempty"`
	Contract     Contract      `json:"contract"`
	Sources      []Source      `json:"sources"`
	Instructions []Instruction `json:"instructions"`
	// Ranges is only filled in when the document was coalesced.
	Ranges []Range `json:"ranges,omitempty"`
}

type Compiler struct {
	Name    string      `json:"name"`
	Version null.String `json:"version"`
}

type Contract struct {
	Name     string `json:"name"`
	Bytecode string `json:"bytecode"`
	// CodeLength is the number of leading bytecode bytes that are
	// instructions; anything after it is data.
	CodeLength int `json:"codeLength"`
}

// Source is one entry of the compilation's file table. ID is its position in
// the table; Content is null when the file could not be found.
type Source struct {
	ID      int         `json:"id"`
	Path    string      `json:"path"`
	Content null.String `json:"content"`
}

type Instruction struct {
	Offset  int      `json:"offset"`
	Opcode  string   `json:"opcode"`
	Bytes   string   `json:"bytes"`
	Context *Context `json:"context,omitempty"`
}

// SourceRef returns the source the instruction maps to, or nil.
func (i Instruction) SourceRef() *SourceRef {
	if i.Context == nil {
		return nil
	}
	return i.Context.Code.Source
}

type Context struct {
	Code CodeContext `json:"code"`
}

type CodeContext struct {
	Source        *SourceRef `json:"source,omitempty"`
	Jump          string     `json:"jump,omitempty"`
	ModifierDepth int        `json:"modifierDepth,omitempty"`
}

type SourceRef struct {
	ID    int       `json:"id"`
	Range ByteRange `json:"range"`
}

type ByteRange struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Range is a run of consecutive instructions that map to the same source
// range. Source is nil for a run of instructions without source.
type Range struct {
	Source  *SourceRef `json:"source,omitempty"`
	Offsets []int      `json:"offsets"`
}
