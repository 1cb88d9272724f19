package harness

import (
	"context"

	"go.uber.org/zap"

	"github.com/wasmdiff/wasmdiff/interp"
	"github.com/wasmdiff/wasmdiff/outcome"
	"github.com/wasmdiff/wasmdiff/values"
)

// Interpret runs the function on the reference interpreter under the step
// budget and canonicalizes the result. Budget exhaustion and interpreter
// stack exhaustion both map to Failed; a trap maps to Trapped carrying the
// nondeterminism flag; completion narrows the first result, or the sentinel
// -1 when the function declares no results.
func (h *Harness) Interpret(inst *Instance, funcIdx uint32, args []values.Value) outcome.Outcome {
	m := inst.machine
	m.InitFrame(funcIdx, args)
	state, err := m.Run(interp.StepBudget)
	if err != nil {
		h.log.Debug("interpreter fault", zap.Uint32("func", funcIdx), zap.Error(err))
		return outcome.Failed()
	}

	switch state {
	case interp.StateTrapped:
		return outcome.Trapped(m.PossibleNondeterminism())
	case interp.StateFinished:
		nondet := m.PossibleNondeterminism()
		sig := inst.module.decoded.GetFuncType(funcIdx)
		if sig == nil || len(sig.Results) == 0 {
			return outcome.Finished(-1, nondet)
		}
		result, flagged := values.NarrowI32(m.ReturnValue())
		return outcome.Finished(result, nondet || flagged)
	default:
		// Paused: the budget ran out before a terminal state.
		h.log.Debug("step budget exhausted", zap.Uint32("func", funcIdx), zap.Int("steps", m.Steps()))
		m.Abort()
		return outcome.Failed()
	}
}

// CompileAndRun compiles the bytes, instantiates, and calls the exported
// "main" with default arguments on the compiled path. Any failure along the
// way, including a missing export, yields -1.
func (h *Harness) CompileAndRun(ctx context.Context, wasmBytes []byte) int32 {
	sink := NewSink("compile-and-run")
	inst := h.CompileAndInstantiate(ctx, wasmBytes, sink)
	if inst == nil {
		return -1
	}
	defer inst.Close(ctx)

	rf := h.Resolve(inst, "main")
	if rf == nil {
		return -1
	}
	result, _ := h.callResolved(ctx, rf, values.DefaultArgs(rf.Sig))
	return result
}

// Comparison is the canonicalized result of running one export on both
// paths.
type Comparison struct {
	Name        string
	Compiled    outcome.Outcome
	Interpreted outcome.Outcome
	FuncIdx     uint32
}

// Match reports whether the two outcomes are equivalent under the canonical
// comparison rule.
func (c Comparison) Match() bool {
	return c.Compiled.Equal(c.Interpreted)
}

// Nondeterministic reports whether either path touched platform-sensitive
// behavior. A mismatch on a nondeterministic run is expected divergence,
// not a backend bug.
func (c Comparison) Nondeterministic() bool {
	return c.Compiled.Nondeterminism || c.Interpreted.Nondeterminism
}

// RunBoth compiles the bytes once, instantiates both paths, and runs the
// named export with default arguments on each. The interpreter runs first,
// matching the usage this harness is built for. The returned error covers
// load and resolve failures only; execution-level divergence is data in the
// Comparison.
func (h *Harness) RunBoth(ctx context.Context, wasmBytes []byte, name string) (Comparison, error) {
	sink := NewSink("run-both")
	inst := h.CompileAndInstantiate(ctx, wasmBytes, sink)
	if inst == nil {
		return Comparison{}, sink.Err()
	}
	defer inst.Close(ctx)

	rf, err := h.ResolveDescriptor(inst, name)
	if err != nil {
		return Comparison{}, err
	}
	args := values.DefaultArgs(rf.Sig)

	interpreted := h.Interpret(inst, rf.FuncIdx, args)

	// A failed interpreter run (budget or stack exhaustion) gives no
	// termination guarantee for the compiled path, so it is not executed.
	compiled := outcome.Failed()
	if interpreted.Status != outcome.StatusFailed {
		result, exception := h.callResolved(ctx, rf, args)
		compiled = outcome.FromCall(result, exception)
	} else {
		h.log.Debug("skipping compiled path after interpreter failure", zap.String("name", name))
	}

	cmp := Comparison{
		Name:        name,
		FuncIdx:     rf.FuncIdx,
		Compiled:    compiled,
		Interpreted: interpreted,
	}
	h.log.Debug("differential run",
		zap.String("name", name),
		zap.Stringer("compiled", compiled),
		zap.Stringer("interpreted", interpreted),
		zap.Bool("match", cmp.Match()))
	return cmp, nil
}
