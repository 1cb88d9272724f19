package interp

import (
	"fmt"

	"github.com/wasmdiff/wasmdiff/wasm"
	"github.com/wasmdiff/wasmdiff/values"
)

// funcCode is a function body prepared for interpretation: the decoded
// instruction stream plus the control metadata the stepping loop needs to
// resolve branches without rescanning.
type funcCode struct {
	sig    *wasm.FuncType
	instrs []wasm.Instruction
	ctrl   map[int]ctrlTarget
	locals []wasm.ValType // declared locals, expanded
	idx    uint32
}

// ctrlTarget records, for a block/loop/if instruction index, the indices of
// its matching end and else instructions (-1 when there is no else).
type ctrlTarget struct {
	end int
	els int
}

// prepareFunc decodes and scans one declared function body. declIdx indexes
// m.Code; the function index space has no imports by construction.
func prepareFunc(mod *wasm.Module, declIdx int) (*funcCode, error) {
	body := &mod.Code[declIdx]
	instrs, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return nil, fmt.Errorf("function %d: %w", declIdx, err)
	}

	fc := &funcCode{
		idx:    uint32(declIdx),
		sig:    mod.GetFuncType(uint32(declIdx)),
		instrs: instrs,
		ctrl:   make(map[int]ctrlTarget),
	}
	if fc.sig == nil {
		return nil, fmt.Errorf("function %d has no type", declIdx)
	}
	for _, entry := range body.Locals {
		for j := uint32(0); j < entry.Count; j++ {
			fc.locals = append(fc.locals, entry.ValType)
		}
	}

	// Match every block/loop/if with its end (and else) in one pass.
	var open []int
	for pc, instr := range instrs {
		switch instr.Opcode {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			open = append(open, pc)
			fc.ctrl[pc] = ctrlTarget{end: -1, els: -1}
		case wasm.OpElse:
			if len(open) == 0 {
				return nil, fmt.Errorf("function %d: else outside block at pc %d", declIdx, pc)
			}
			top := open[len(open)-1]
			t := fc.ctrl[top]
			t.els = pc
			fc.ctrl[top] = t
		case wasm.OpEnd:
			if len(open) == 0 {
				// Function-level end; must be the last instruction.
				if pc != len(instrs)-1 {
					return nil, fmt.Errorf("function %d: code after function end at pc %d", declIdx, pc)
				}
				continue
			}
			top := open[len(open)-1]
			open = open[:len(open)-1]
			t := fc.ctrl[top]
			t.end = pc
			fc.ctrl[top] = t
		}
	}
	if len(open) != 0 {
		return nil, fmt.Errorf("function %d: unterminated block", declIdx)
	}

	return fc, nil
}

// blockArity returns the number of result values a block type produces.
// Type-index block forms are rejected during validation.
func blockArity(blockType int32) int {
	if blockType == wasm.BlockTypeVoid {
		return 0
	}
	return 1
}

// frame is one interpreter call frame.
type frame struct {
	fn     *funcCode
	locals []values.Value
	labels []label
	pc     int
	base   int // operand stack height at entry, after args were consumed
}

// label is one entry of a frame's control stack.
type label struct {
	opIdx  int // index of the block/loop/if instruction
	end    int // index of the matching end
	els    int // index of the matching else, -1 if none
	height int // operand stack height at label entry
	arity  int // values a branch to this label carries
	isLoop bool
}
