package wasm

import (
	"bytes"
	"fmt"

	"github.com/wasmdiff/wasmdiff/wasm/internal/binary"
)

// Opcode constants are defined in constants.go

// Instruction represents a decoded WebAssembly instruction
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// BlockImm holds the block type for block, loop, and if instructions.
type BlockImm struct {
	Type int32 // Block type: -64=void, -1=i32, -2=i64, -3=f32, -4=f64, >=0=type index
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table instruction.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect instruction.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Offset uint64
	Align  uint32
}

// MemoryIdxImm holds memory index for memory.size, memory.grow
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const instruction.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant value for f64.const instruction.
type F64Imm struct {
	Value float64
}

// MiscImm holds the sub-opcode and immediates for 0xFC prefix instructions
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// TableImm holds table index for table.get/table.set
type TableImm struct {
	TableIdx uint32
}

// RefNullImm holds the heap type for ref.null
type RefNullImm struct {
	HeapType byte // ValFuncRef or ValExtern
}

// RefFuncImm holds the function index for ref.func
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds value types for typed select
type SelectTypeImm struct {
	Types []ValType
}

// GetCallTarget returns the call target if this is a call instruction
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// DecodeInstructions decodes a sequence of instructions from raw bytes
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(bytes.NewReader(code))
	// Pre-allocate based on estimation: roughly 2 bytes per instruction on average
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Position() < len(code) {
		op, err := r.ReadByte()
		if err != nil {
			break
		}

		instr := Instruction{Opcode: op}

		switch op {
		case OpBlock, OpLoop, OpIf:
			bt, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			instr.Imm = BlockImm{Type: bt}

		case OpBr, OpBrIf:
			labelIdx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = BranchImm{LabelIdx: labelIdx}

		case OpBrTable:
			n, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			labels := make([]uint32, n)
			for i := range labels {
				if labels[i], err = r.ReadU32(); err != nil {
					return nil, err
				}
			}
			def, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = BrTableImm{Labels: labels, Default: def}

		case OpCall:
			funcIdx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = CallImm{FuncIdx: funcIdx}

		case OpCallIndirect:
			typeIdx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			tableIdx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

		case OpLocalGet, OpLocalSet, OpLocalTee:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = LocalImm{LocalIdx: idx}

		case OpGlobalGet, OpGlobalSet:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = GlobalImm{GlobalIdx: idx}

		case OpTableGet, OpTableSet:
			idx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = TableImm{TableIdx: idx}

		case OpI32Const:
			v, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			instr.Imm = I32Imm{Value: v}

		case OpI64Const:
			v, err := r.ReadS64()
			if err != nil {
				return nil, err
			}
			instr.Imm = I64Imm{Value: v}

		case OpF32Const:
			v, err := r.ReadF32()
			if err != nil {
				return nil, err
			}
			instr.Imm = F32Imm{Value: v}

		case OpF64Const:
			v, err := r.ReadF64()
			if err != nil {
				return nil, err
			}
			instr.Imm = F64Imm{Value: v}

		case OpMemorySize, OpMemoryGrow:
			memIdx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = MemoryIdxImm{MemIdx: memIdx}

		case OpRefNull:
			ht, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			instr.Imm = RefNullImm{HeapType: ht}

		case OpRefFunc:
			funcIdx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			instr.Imm = RefFuncImm{FuncIdx: funcIdx}

		case OpSelectType:
			n, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			types := make([]ValType, n)
			for i := range types {
				b, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				types[i] = ValType(b)
			}
			instr.Imm = SelectTypeImm{Types: types}

		case OpPrefixMisc:
			sub, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			operands, err := readMiscOperands(r, sub)
			if err != nil {
				return nil, err
			}
			instr.Imm = MiscImm{SubOpcode: sub, Operands: operands}

		case OpPrefixSIMD:
			return nil, fmt.Errorf("SIMD instructions are not supported")

		default:
			if isMemoryAccess(op) {
				align, err := r.ReadU32()
				if err != nil {
					return nil, err
				}
				offset, err := r.ReadU64()
				if err != nil {
					return nil, err
				}
				instr.Imm = MemoryImm{Align: align, Offset: offset}
			} else if !isImmFree(op) {
				return nil, fmt.Errorf("unknown opcode 0x%02x at position %d", op, r.Position()-1)
			}
		}

		instrs = append(instrs, instr)
	}

	return instrs, nil
}

// readMiscOperands reads the trailing immediates of a 0xFC-prefixed
// instruction. Saturating truncations carry none; bulk memory and table
// operations carry one or two indices.
func readMiscOperands(r *binary.Reader, sub uint32) ([]uint32, error) {
	var n int
	switch sub {
	case MiscI32TruncSatF32S, MiscI32TruncSatF32U, MiscI32TruncSatF64S, MiscI32TruncSatF64U,
		MiscI64TruncSatF32S, MiscI64TruncSatF32U, MiscI64TruncSatF64S, MiscI64TruncSatF64U:
		n = 0
	case MiscDataDrop, MiscElemDrop, MiscMemoryFill, MiscTableGrow, MiscTableSize, MiscTableFill:
		n = 1
	case MiscMemoryInit, MiscMemoryCopy, MiscTableInit, MiscTableCopy:
		n = 2
	default:
		return nil, fmt.Errorf("unknown misc opcode 0x%02x", sub)
	}
	operands := make([]uint32, n)
	for i := range operands {
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		operands[i] = v
	}
	return operands, nil
}

// isMemoryAccess reports whether the opcode is a load or store carrying
// align/offset immediates.
func isMemoryAccess(op byte) bool {
	return op >= OpI32Load && op <= OpI64Store32
}

// isImmFree reports whether the opcode carries no immediates.
func isImmFree(op byte) bool {
	switch {
	case op == OpUnreachable, op == OpNop, op == OpElse, op == OpEnd, op == OpReturn:
		return true
	case op == OpDrop, op == OpSelect, op == OpRefIsNull:
		return true
	case op >= OpI32Eqz && op <= OpI64Extend32S:
		// comparisons, numerics, conversions, sign extensions
		return true
	default:
		return false
	}
}
