package ethdebug

import (
	"encoding/hex"
	"errors"
	"fmt"

	"gopkg.in/guregu/null.v3"

	"github.com/reserve-protocol/ethdebug/common"
	"github.com/reserve-protocol/ethdebug/evmbytecode"
	"github.com/reserve-protocol/ethdebug/srcmap"
)

// Meta carries the document fields that do not come from the bytecode walk.
type Meta struct {
	Environment  string
	ContractName string
	// Bytecode is the artifact hex as the compiler wrote it, without 0x.
	Bytecode string
	// CodeLength is the length in bytes of the instruction part of Bytecode.
	CodeLength      int
	CompilerVersion string
}

type CountMismatchError struct {
	Instructions int
	Mappings     int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("instruction count mismatch: bytecode has %d instructions, source map has %d entries", e.Instructions, e.Mappings)
}

func (e *CountMismatchError) Is(target error) bool {
	return target == common.ErrInstructionCountMismatch
}

type UnresolvedFileIndexError struct {
	Instruction int
	Offset      int
	FileIndex   int
	Files       int
}

func (e *UnresolvedFileIndexError) Error() string {
	return fmt.Sprintf("unresolved file index: instruction %d at offset %d references file %d, file table has %d entries",
		e.Instruction, e.Offset, e.FileIndex, e.Files)
}

func (e *UnresolvedFileIndexError) Is(target error) bool {
	return target == common.ErrUnresolvedFileIndex
}

// CheckCounts fails unless there is exactly one mapping per instruction.
func CheckCounts(instructions []evmbytecode.Instruction, mappings []srcmap.Entry) error {
	if len(instructions) != len(mappings) {
		return &CountMismatchError{Instructions: len(instructions), Mappings: len(mappings)}
	}
	return nil
}

// Emit pairs instruction i with mapping i and resolves its file index against
// sources.
func Emit(instructions []evmbytecode.Instruction, mappings []srcmap.Entry, sources []Source, meta Meta) (*Document, error) {
	if err := CheckCounts(instructions, mappings); err != nil {
		return nil, err
	}

	records := make([]Instruction, len(instructions))
	for i, instruction := range instructions {
		context, err := buildContext(mappings[i], sources)
		if err != nil {
			return nil, &UnresolvedFileIndexError{
				Instruction: i,
				Offset:      instruction.Offset,
				FileIndex:   mappings[i].FileIndex,
				Files:       len(sources),
			}
		}
		records[i] = Instruction{
			Offset:  instruction.Offset,
			Opcode:  instruction.Op.String(),
			Bytes:   hex.EncodeToString(instruction.Bytes()),
			Context: context,
		}
	}

	doc := &Document{
		Version:     FormatVersion,
		Format:      FormatName,
		Environment: meta.Environment,
		Contract: Contract{
			Name:       meta.ContractName,
			Bytecode:   meta.Bytecode,
			CodeLength: meta.CodeLength,
		},
		Sources:      append([]Source{}, sources...),
		Instructions: records,
	}
	if meta.CompilerVersion != "" {
		doc.Compiler = &Compiler{Name: "solc", Version: null.StringFrom(meta.CompilerVersion)}
	}
	return doc, nil
}

var errFileIndex = errors.New("file index out of range")

// buildContext returns nil when there is nothing to say about the instruction.
func buildContext(entry srcmap.Entry, sources []Source) (*Context, error) {
	if entry.FileIndex >= len(sources) {
		return nil, errFileIndex
	}

	var code CodeContext
	if entry.HasSource() {
		code.Source = &SourceRef{
			ID:    sources[entry.FileIndex].ID,
			Range: ByteRange{Start: entry.Start, Length: entry.Length},
		}
	}
	if entry.Jump != srcmap.Regular {
		code.Jump = entry.Jump.String()
	}
	code.ModifierDepth = entry.ModifierDepth

	if code.Source == nil && code.Jump == "" && code.ModifierDepth == 0 {
		return nil, nil
	}
	return &Context{Code: code}, nil
}
