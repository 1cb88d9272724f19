// Package interp implements a step-bounded reference interpreter for
// WebAssembly core modules. It executes decoded bytecode directly against
// interpreter-owned instance state and classifies every run into a terminal
// state within a fixed step budget, so a differential harness can compare it
// against a natively compiled backend without ever blocking indefinitely.
package interp

import (
	"fmt"

	"github.com/wasmdiff/wasmdiff/errors"
	"github.com/wasmdiff/wasmdiff/wasm"
	"github.com/wasmdiff/wasmdiff/values"
)

const (
	// StepBudget is the maximum number of interpreter steps per invocation.
	StepBudget = 16 * 1024

	// maxCallDepth bounds the interpreter call stack. Exceeding it is
	// reported as a fault, not a trap.
	maxCallDepth = 256

	// maxMemoryPages caps linear memory at 4GiB.
	maxMemoryPages = 65536
)

// State describes the machine's execution state.
type State int

const (
	// StateStopped means no frame is set up.
	StateStopped State = iota
	// StateRunning means a frame is set up and execution can proceed.
	StateRunning
	// StatePaused means the last Run exhausted its step allowance before
	// reaching a terminal state.
	StatePaused
	// StateFinished means the target function completed normally.
	StateFinished
	// StateTrapped means the VM raised a trap.
	StateTrapped
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateTrapped:
		return "trapped"
	default:
		return "invalid"
	}
}

// Machine is a reference interpreter instance. It owns its own linear
// memory, globals, and tables, initialized from the module's segments, and
// is not safe for concurrent use.
type Machine struct {
	mod   *wasm.Module
	funcs []*funcCode // lazily prepared bodies, indexed by function index

	mem     []byte
	memMax  uint64 // pages
	globals []values.Value
	tables  [][]values.Value

	stack  []values.Value
	frames []frame
	ret    []values.Value
	trap   *errors.Error
	state  State
	steps  int
	nondet bool
}

// New builds interpreter instance state for the module: memory from data
// segments, globals from their initializers, tables from element segments.
// The module must have no imports (the harness supplies none). If a start
// function is declared it is executed here, mirroring instantiation on the
// compiled path; a start function that traps or exceeds the step budget
// fails instantiation.
func New(mod *wasm.Module) (*Machine, error) {
	if len(mod.Imports) > 0 {
		return nil, errors.Unsupported(errors.PhaseInstantiate, "modules with imports")
	}

	m := &Machine{
		mod:   mod,
		funcs: make([]*funcCode, len(mod.Code)),
		state: StateStopped,
	}

	if len(mod.Memories) > 0 {
		limits := mod.Memories[0].Limits
		m.mem = make([]byte, limits.Min*wasm.PageSize)
		m.memMax = maxMemoryPages
		if limits.Max != nil {
			m.memMax = *limits.Max
		}
	}

	m.globals = make([]values.Value, len(mod.Globals))
	for i, g := range mod.Globals {
		v, err := evalConstExpr(g.Init)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInstantiate, errors.KindInvalidData, err,
				fmt.Sprintf("global %d initializer", i))
		}
		m.globals[i] = v
	}

	m.tables = make([][]values.Value, len(mod.Tables))
	for i, tt := range mod.Tables {
		table := make([]values.Value, tt.Limits.Min)
		for j := range table {
			table[j] = values.Null()
		}
		m.tables[i] = table
	}
	for i := range mod.Elements {
		elem := &mod.Elements[i]
		if !elem.IsActive() {
			continue
		}
		offset, err := evalConstExpr(elem.Offset)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInstantiate, errors.KindInvalidData, err,
				fmt.Sprintf("element %d offset", i))
		}
		base := int(uint32(offset.AsI32()))
		table := m.tables[elem.TableIdx]
		if base+len(elem.FuncIdxs) > len(table) {
			return nil, errors.OutOfBounds(errors.PhaseInstantiate,
				[]string{"element", fmt.Sprint(i)}, base+len(elem.FuncIdxs), len(table))
		}
		for j, funcIdx := range elem.FuncIdxs {
			table[base+j] = values.FuncRef(funcIdx)
		}
	}

	for i := range mod.Data {
		seg := &mod.Data[i]
		if !seg.IsActive() {
			continue
		}
		offset, err := evalConstExpr(seg.Offset)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInstantiate, errors.KindInvalidData, err,
				fmt.Sprintf("data %d offset", i))
		}
		base := int(uint32(offset.AsI32()))
		if base+len(seg.Init) > len(m.mem) {
			return nil, errors.OutOfBounds(errors.PhaseInstantiate,
				[]string{"data", fmt.Sprint(i)}, base+len(seg.Init), len(m.mem))
		}
		copy(m.mem[base:], seg.Init)
	}

	if mod.Start != nil {
		m.InitFrame(*mod.Start, nil)
		state, err := m.Run(StepBudget)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInstantiate, errors.KindInstantiation, err, "start function")
		}
		if state != StateFinished {
			m.Abort()
			return nil, errors.New(errors.PhaseInstantiate, errors.KindInstantiation).
				Detail("start function did not finish: %s", state).Build()
		}
	}

	return m, nil
}

// evalConstExpr evaluates a constant initializer expression. Imported
// globals do not exist here, so global.get forms are rejected.
func evalConstExpr(init []byte) (values.Value, error) {
	instrs, err := wasm.DecodeInstructions(init)
	if err != nil {
		return values.Value{}, err
	}
	if len(instrs) != 2 || instrs[1].Opcode != wasm.OpEnd {
		return values.Value{}, fmt.Errorf("unsupported constant expression shape")
	}
	switch imm := instrs[0].Imm.(type) {
	case wasm.I32Imm:
		return values.I32(imm.Value), nil
	case wasm.I64Imm:
		return values.I64(imm.Value), nil
	case wasm.F32Imm:
		return values.F32(imm.Value), nil
	case wasm.F64Imm:
		return values.F64(imm.Value), nil
	case wasm.RefNullImm:
		return values.Null(), nil
	case wasm.RefFuncImm:
		return values.FuncRef(imm.FuncIdx), nil
	default:
		return values.Value{}, fmt.Errorf("opcode 0x%02x not constant", instrs[0].Opcode)
	}
}

// code returns the prepared body for a function index, preparing it on
// first use.
func (m *Machine) code(funcIdx uint32) (*funcCode, error) {
	if int(funcIdx) >= len(m.funcs) {
		return nil, errors.OutOfBounds(errors.PhaseInterpret,
			[]string{"function"}, int(funcIdx), len(m.funcs))
	}
	if m.funcs[funcIdx] == nil {
		fc, err := prepareFunc(m.mod, int(funcIdx))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInterpret, errors.KindInvalidData, err, "prepare function")
		}
		m.funcs[funcIdx] = fc
	}
	return m.funcs[funcIdx], nil
}

// InitFrame binds the machine to the target function with the supplied
// arguments and resets per-run state. The argument count and kinds must
// already match the function's parameter signature; a mismatch is a
// contract violation and panics.
func (m *Machine) InitFrame(funcIdx uint32, args []values.Value) {
	fc, err := m.code(funcIdx)
	if err != nil {
		panic(fmt.Sprintf("interp: InitFrame on invalid function %d: %v", funcIdx, err))
	}
	if len(args) != len(fc.sig.Params) {
		panic(fmt.Sprintf("interp: function %d takes %d arguments, got %d",
			funcIdx, len(fc.sig.Params), len(args)))
	}
	for i, a := range args {
		kind, ok := values.KindFor(fc.sig.Params[i])
		if !ok || a.Kind != kind {
			panic(fmt.Sprintf("interp: argument %d has kind %s, want %s", i, a.Kind, kind))
		}
	}

	locals := make([]values.Value, 0, len(args)+len(fc.locals))
	locals = append(locals, args...)
	for _, vt := range fc.locals {
		locals = append(locals, values.Default(vt))
	}

	m.stack = m.stack[:0]
	m.frames = append(m.frames[:0], frame{fn: fc, locals: locals})
	m.ret = nil
	m.trap = nil
	m.steps = 0
	m.nondet = false
	m.state = StateRunning
}

// Run drives the interpreter for at most maxSteps steps and returns the
// resulting state. StatePaused means the allowance ran out before a
// terminal state; callers treat that as a failed run (possible infinite
// loop or unbounded recursion) rather than resuming. A non-nil error
// reports interpreter call-stack exhaustion; it is returned explicitly
// rather than through any ambient channel, and the run's working state is
// released before returning on every terminal path.
func (m *Machine) Run(maxSteps int) (State, error) {
	if m.state != StateRunning && m.state != StatePaused {
		panic("interp: Run without InitFrame")
	}
	m.state = StateRunning
	for n := 0; n < maxSteps && m.state == StateRunning; n++ {
		if err := m.step(); err != nil {
			m.release()
			m.state = StateStopped
			return StateStopped, err
		}
	}
	switch m.state {
	case StateRunning:
		m.state = StatePaused
	case StateFinished, StateTrapped:
		m.release()
	}
	return m.state, nil
}

// Abort discards an unfinished run and releases its working state.
func (m *Machine) Abort() {
	m.release()
	m.state = StateStopped
}

func (m *Machine) release() {
	m.stack = nil
	m.frames = nil
}

// State returns the machine's execution state.
func (m *Machine) State() State {
	return m.state
}

// Steps returns the number of steps consumed since InitFrame.
func (m *Machine) Steps() int {
	return m.steps
}

// TrapError returns the trap description after a StateTrapped run.
func (m *Machine) TrapError() error {
	if m.trap == nil {
		return nil
	}
	return m.trap
}

// PossibleNondeterminism reports whether execution touched an operation
// with platform-dependent semantics (NaN bit patterns and similar).
func (m *Machine) PossibleNondeterminism() bool {
	return m.nondet
}

// ReturnValue returns the first result of a finished run. The target
// function must declare at least one result.
func (m *Machine) ReturnValue() values.Value {
	if m.state != StateFinished {
		panic("interp: ReturnValue before finish")
	}
	if len(m.ret) == 0 {
		panic("interp: function declares no results")
	}
	return m.ret[0]
}

// Current describes the instruction about to execute, for inspection while
// stepping. ok is false when no frame is active.
func (m *Machine) Current() (funcIdx uint32, pc int, op byte, ok bool) {
	if len(m.frames) == 0 {
		return 0, 0, 0, false
	}
	f := &m.frames[len(m.frames)-1]
	if f.pc >= len(f.fn.instrs) {
		return f.fn.idx, f.pc, wasm.OpEnd, true
	}
	return f.fn.idx, f.pc, f.fn.instrs[f.pc].Opcode, true
}

// FrameDepth returns the current call stack depth.
func (m *Machine) FrameDepth() int {
	return len(m.frames)
}

// StackHeight returns the current operand stack height.
func (m *Machine) StackHeight() int {
	return len(m.stack)
}

// MemorySize returns the interpreter memory size in bytes.
func (m *Machine) MemorySize() uint32 {
	return uint32(len(m.mem))
}

func (m *Machine) push(v values.Value) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() values.Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *Machine) popI32() int32 {
	return m.pop().AsI32()
}

func (m *Machine) trapWith(detail string) {
	m.trap = errors.Trap(detail)
	m.state = StateTrapped
}

// step executes exactly one instruction. Traps and normal completion are
// recorded in the machine state; the returned error reports call-stack
// exhaustion only.
func (m *Machine) step() error {
	m.steps++
	f := &m.frames[len(m.frames)-1]
	if f.pc >= len(f.fn.instrs) {
		// Degenerate empty body; treat like the function-level end.
		m.doReturn(f)
		return nil
	}
	instr := f.fn.instrs[f.pc]

	switch instr.Opcode {
	case wasm.OpUnreachable:
		m.trapWith("unreachable executed")

	case wasm.OpNop:
		f.pc++

	case wasm.OpBlock:
		t := f.fn.ctrl[f.pc]
		f.labels = append(f.labels, label{
			opIdx:  f.pc,
			end:    t.end,
			els:    -1,
			height: len(m.stack),
			arity:  blockArity(instr.Imm.(wasm.BlockImm).Type),
		})
		f.pc++

	case wasm.OpLoop:
		t := f.fn.ctrl[f.pc]
		f.labels = append(f.labels, label{
			opIdx:  f.pc,
			end:    t.end,
			els:    -1,
			height: len(m.stack),
			isLoop: true,
		})
		f.pc++

	case wasm.OpIf:
		t := f.fn.ctrl[f.pc]
		cond := m.popI32()
		lbl := label{
			opIdx:  f.pc,
			end:    t.end,
			els:    t.els,
			height: len(m.stack),
			arity:  blockArity(instr.Imm.(wasm.BlockImm).Type),
		}
		switch {
		case cond != 0:
			f.labels = append(f.labels, lbl)
			f.pc++
		case t.els >= 0:
			f.labels = append(f.labels, lbl)
			f.pc = t.els + 1
		default:
			f.pc = t.end + 1
		}

	case wasm.OpElse:
		// Falling into else ends the then-branch: jump to the matching
		// end, which pops the label.
		f.pc = f.labels[len(f.labels)-1].end

	case wasm.OpEnd:
		if len(f.labels) > 0 {
			f.labels = f.labels[:len(f.labels)-1]
			f.pc++
		} else {
			m.doReturn(f)
		}

	case wasm.OpBr:
		m.branch(f, instr.Imm.(wasm.BranchImm).LabelIdx)

	case wasm.OpBrIf:
		if m.popI32() != 0 {
			m.branch(f, instr.Imm.(wasm.BranchImm).LabelIdx)
		} else {
			f.pc++
		}

	case wasm.OpBrTable:
		imm := instr.Imm.(wasm.BrTableImm)
		idx := uint32(m.popI32())
		target := imm.Default
		if int(idx) < len(imm.Labels) {
			target = imm.Labels[idx]
		}
		m.branch(f, target)

	case wasm.OpReturn:
		m.doReturn(f)

	case wasm.OpCall:
		return m.doCall(f, instr.Imm.(wasm.CallImm).FuncIdx)

	case wasm.OpCallIndirect:
		return m.doCallIndirect(f, instr.Imm.(wasm.CallIndirectImm))

	case wasm.OpDrop:
		m.pop()
		f.pc++

	case wasm.OpSelect, wasm.OpSelectType:
		cond := m.popI32()
		v2 := m.pop()
		v1 := m.pop()
		if cond != 0 {
			m.push(v1)
		} else {
			m.push(v2)
		}
		f.pc++

	case wasm.OpLocalGet:
		m.push(f.locals[instr.Imm.(wasm.LocalImm).LocalIdx])
		f.pc++

	case wasm.OpLocalSet:
		f.locals[instr.Imm.(wasm.LocalImm).LocalIdx] = m.pop()
		f.pc++

	case wasm.OpLocalTee:
		f.locals[instr.Imm.(wasm.LocalImm).LocalIdx] = m.stack[len(m.stack)-1]
		f.pc++

	case wasm.OpGlobalGet:
		m.push(m.globals[instr.Imm.(wasm.GlobalImm).GlobalIdx])
		f.pc++

	case wasm.OpGlobalSet:
		m.globals[instr.Imm.(wasm.GlobalImm).GlobalIdx] = m.pop()
		f.pc++

	case wasm.OpTableGet:
		imm := instr.Imm.(wasm.TableImm)
		table := m.tables[imm.TableIdx]
		idx := uint32(m.popI32())
		if int(idx) >= len(table) {
			m.trapWith("out of bounds table access")
			return nil
		}
		m.push(table[idx])
		f.pc++

	case wasm.OpTableSet:
		imm := instr.Imm.(wasm.TableImm)
		table := m.tables[imm.TableIdx]
		v := m.pop()
		idx := uint32(m.popI32())
		if int(idx) >= len(table) {
			m.trapWith("out of bounds table access")
			return nil
		}
		table[idx] = v
		f.pc++

	case wasm.OpI32Const:
		m.push(values.I32(instr.Imm.(wasm.I32Imm).Value))
		f.pc++

	case wasm.OpI64Const:
		m.push(values.I64(instr.Imm.(wasm.I64Imm).Value))
		f.pc++

	case wasm.OpF32Const:
		m.push(values.F32(instr.Imm.(wasm.F32Imm).Value))
		f.pc++

	case wasm.OpF64Const:
		m.push(values.F64(instr.Imm.(wasm.F64Imm).Value))
		f.pc++

	case wasm.OpRefNull:
		m.push(values.Null())
		f.pc++

	case wasm.OpRefIsNull:
		v := m.pop()
		if v.IsNull() {
			m.push(values.I32(1))
		} else {
			m.push(values.I32(0))
		}
		f.pc++

	case wasm.OpRefFunc:
		m.push(values.FuncRef(instr.Imm.(wasm.RefFuncImm).FuncIdx))
		f.pc++

	case wasm.OpMemorySize:
		m.push(values.I32(int32(len(m.mem) / wasm.PageSize)))
		f.pc++

	case wasm.OpMemoryGrow:
		delta := uint64(uint32(m.popI32()))
		cur := uint64(len(m.mem) / wasm.PageSize)
		if cur+delta > m.memMax || cur+delta > maxMemoryPages {
			m.push(values.I32(-1))
		} else {
			m.mem = append(m.mem, make([]byte, delta*wasm.PageSize)...)
			m.push(values.I32(int32(cur)))
		}
		f.pc++

	case wasm.OpPrefixMisc:
		m.execMisc(f, instr.Imm.(wasm.MiscImm))

	default:
		if op := instr.Opcode; op >= wasm.OpI32Load && op <= wasm.OpI64Store32 {
			m.execMemory(f, op, instr.Imm.(wasm.MemoryImm))
		} else {
			m.execNumeric(f, instr.Opcode)
		}
	}
	return nil
}

// branch transfers control to the label at the given relative depth.
// Depth equal to the label stack size targets the function itself.
func (m *Machine) branch(f *frame, depth uint32) {
	if int(depth) >= len(f.labels) {
		m.doReturn(f)
		return
	}
	idx := len(f.labels) - 1 - int(depth)
	target := f.labels[idx]

	carry := target.arity
	if target.isLoop {
		carry = 0
	}
	vals := make([]values.Value, carry)
	copy(vals, m.stack[len(m.stack)-carry:])
	m.stack = m.stack[:target.height]
	m.stack = append(m.stack, vals...)

	// Keep the target label on top; a branch to a block lands on its end
	// instruction, which pops it.
	f.labels = f.labels[:idx+1]
	if target.isLoop {
		f.pc = target.opIdx + 1
	} else {
		f.pc = target.end
	}
}

// doReturn pops the current frame, carrying the declared results back to
// the caller. The outermost return finishes the run.
func (m *Machine) doReturn(f *frame) {
	arity := len(f.fn.sig.Results)
	results := make([]values.Value, arity)
	copy(results, m.stack[len(m.stack)-arity:])
	m.stack = m.stack[:f.base]
	m.stack = append(m.stack, results...)

	m.frames = m.frames[:len(m.frames)-1]
	if len(m.frames) == 0 {
		m.ret = results
		m.state = StateFinished
	}
}

func (m *Machine) doCall(f *frame, funcIdx uint32) error {
	if len(m.frames) >= maxCallDepth {
		return errors.StackExhausted(len(m.frames))
	}
	fc, err := m.code(funcIdx)
	if err != nil {
		return err
	}

	n := len(fc.sig.Params)
	locals := make([]values.Value, 0, n+len(fc.locals))
	locals = append(locals, m.stack[len(m.stack)-n:]...)
	for _, vt := range fc.locals {
		locals = append(locals, values.Default(vt))
	}
	m.stack = m.stack[:len(m.stack)-n]

	f.pc++ // resume after the call on return
	m.frames = append(m.frames, frame{
		fn:     fc,
		locals: locals,
		base:   len(m.stack),
	})
	return nil
}

func (m *Machine) doCallIndirect(f *frame, imm wasm.CallIndirectImm) error {
	table := m.tables[imm.TableIdx]
	idx := uint32(m.popI32())
	if int(idx) >= len(table) {
		m.trapWith("undefined element")
		return nil
	}
	entry := table[idx]
	if entry.IsNull() {
		m.trapWith("uninitialized element")
		return nil
	}
	funcIdx := entry.Ref.(uint32)

	expected := m.mod.Types[imm.TypeIdx]
	actual := m.mod.GetFuncType(funcIdx)
	if actual == nil || !actual.Equal(expected) {
		m.trapWith("indirect call type mismatch")
		return nil
	}
	return m.doCall(f, funcIdx)
}
