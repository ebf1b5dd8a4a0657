package evmbytecode

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/reserve-protocol/ethdebug/common"
)

// Instruction is one opcode together with its PUSH immediate, if any.
type Instruction struct {
	Offset    int
	Op        vm.OpCode
	Immediate []byte
}

// Bytes returns the opcode byte followed by the immediate.
func (i Instruction) Bytes() []byte {
	return append([]byte{byte(i.Op)}, i.Immediate...)
}

// TruncatedError is returned when a PUSH immediate runs off the end of the code.
type TruncatedError struct {
	Offset int
	Op     vm.OpCode
	Want   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated bytecode: %v at offset %d needs %d immediate bytes, %d left", e.Op, e.Offset, e.Want, e.Have)
}

func (e *TruncatedError) Is(target error) bool { return target == common.ErrTruncatedBytecode }

// PushSize returns the number of immediate bytes that follow op, which is
// zero for everything except PUSH1 through PUSH32.
func PushSize(op vm.OpCode) int {
	if op < vm.PUSH1 || op > vm.PUSH32 {
		return 0
	}
	// Plus one because PUSH1 pushes one byte, not zero
	return int(op-vm.PUSH1) + 1
}

// Walk splits code into instructions, left to right.
func Walk(code []byte) ([]Instruction, error) {
	var instructions []Instruction
	for pc := 0; pc < len(code); pc++ {
		op := vm.OpCode(code[pc])
		instruction := Instruction{Offset: pc, Op: op}

		if n := PushSize(op); n != 0 {
			if pc+n >= len(code) {
				return instructions, &TruncatedError{Offset: pc, Op: op, Want: n, Have: len(code) - pc - 1}
			}
			instruction.Immediate = code[pc+1 : pc+1+n]
			pc += n
		}
		instructions = append(instructions, instruction)
	}
	return instructions, nil
}

// Offsets returns the program counter of every instruction.
func Offsets(instructions []Instruction) []int {
	offsets := make([]int, len(instructions))
	for i, instruction := range instructions {
		offsets[i] = instruction.Offset
	}
	return offsets
}

// Stands for Program Counter--to--Operation Index mapping
func PcToOpIndex(instructions []Instruction) map[int]int {
	pcToOpIndex := make(map[int]int, len(instructions))
	for opIndex, instruction := range instructions {
		pcToOpIndex[instruction.Offset] = opIndex
	}
	return pcToOpIndex
}

// placeholderLength is the width in hex characters of an unlinked library
// reference, both the "__$<hash>$__" and the older "__Name____" form.
const placeholderLength = 40

// ParseHex decodes the hex bytecode found in combined-json. Unlinked library
// placeholders are replaced by the zero address.
func ParseHex(bytecode string) ([]byte, error) {
	bytecode = strings.TrimSpace(bytecode)
	bytecode = strings.TrimPrefix(strings.TrimPrefix(bytecode, "0x"), "0X")
	if bytecode == "" {
		return nil, common.ErrEmptyBytecode
	}

	for {
		index := strings.Index(bytecode, "__")
		if index == -1 {
			break
		}
		if index+placeholderLength > len(bytecode) {
			return nil, fmt.Errorf("library placeholder at character %d runs past the end of the bytecode", index)
		}
		bytecode = bytecode[:index] + strings.Repeat("0", placeholderLength) + bytecode[index+placeholderLength:]
	}

	code, err := hexutil.Decode("0x" + bytecode)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode hex: %w", err)
	}
	return code, nil
}

// CodeSection splits code after its first n instructions when the byte that
// follows is the INVALID separator solc's assembler writes in front of
// appended data (sub-programs, metadata). Source maps only cover the code
// before it. When there is no such separator data is nil and section is the
// whole of code.
func CodeSection(code []byte, n int) (section []byte, data []byte) {
	pc := 0
	for i := 0; i < n && pc < len(code); i++ {
		pc += 1 + PushSize(vm.OpCode(code[pc]))
	}
	if pc < len(code) && vm.OpCode(code[pc]) == vm.INVALID {
		return code[:pc], code[pc:]
	}
	return code, nil
}
