package harness

import (
	"context"

	"go.uber.org/zap"

	"github.com/wasmdiff/wasmdiff/engine"
	"github.com/wasmdiff/wasmdiff/errors"
	"github.com/wasmdiff/wasmdiff/values"
	"github.com/wasmdiff/wasmdiff/wasm"
)

// ResolvedFunc is a callable export resolved against both paths: the
// compiled-path handle plus the function index and signature the
// interpreter shares.
type ResolvedFunc struct {
	Compiled *engine.Func
	Sig      *wasm.FuncType
	FuncIdx  uint32
	Name     string
}

// ResolveDescriptor resolves an export by name, distinguishing the three
// cases: absent (not-found error), present but not a function (wrong-kind
// error), and callable. Resolution is idempotent; repeated calls observe
// the same outcome and the compiled handles are cached by the instance.
func (h *Harness) ResolveDescriptor(inst *Instance, name string) (*ResolvedFunc, error) {
	exp, isFunc := inst.module.decoded.ExportedFunc(name)
	if exp == nil {
		return nil, errors.NotFound(errors.PhaseResolve, "export", name)
	}
	if !isFunc {
		return nil, errors.WrongKind(name, kindName(exp.Kind))
	}

	fn := inst.compiled.ExportedFunction(name)
	if fn == nil {
		// Decoded and compiled views disagree on the export namespace.
		return nil, errors.NotFound(errors.PhaseResolve, "compiled export", name)
	}
	return &ResolvedFunc{
		Compiled: fn,
		Sig:      inst.module.decoded.GetFuncType(exp.Idx),
		FuncIdx:  exp.Idx,
		Name:     name,
	}, nil
}

// Resolve collapses absent and wrong-kind to nil, which is what the invoker
// boundary treats as not-found.
func (h *Harness) Resolve(inst *Instance, name string) *ResolvedFunc {
	rf, err := h.ResolveDescriptor(inst, name)
	if err != nil {
		h.log.Debug("resolve failed", zap.String("name", name), zap.Error(err))
		return nil
	}
	return rf
}

func kindName(kind byte) string {
	switch kind {
	case wasm.KindFunc:
		return "function"
	case wasm.KindTable:
		return "table"
	case wasm.KindMemory:
		return "memory"
	case wasm.KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// CallExported invokes the named export on the compiled path and reduces
// the call to the canonical (result, exception) pair. A missing or
// non-callable export yields (-1, false) with no exception. A call-time
// error of any kind yields (-1, true). A function declaring zero results or
// a non-numeric first result yields (-1, false); otherwise the first result
// is narrowed to int32.
func (h *Harness) CallExported(ctx context.Context, inst *Instance, name string, args []values.Value) (int32, bool) {
	rf := h.Resolve(inst, name)
	if rf == nil {
		return -1, false
	}
	return h.callResolved(ctx, rf, args)
}

func (h *Harness) callResolved(ctx context.Context, rf *ResolvedFunc, args []values.Value) (int32, bool) {
	results, err := rf.Compiled.Call(ctx, args)
	if err != nil {
		h.log.Debug("call raised", zap.String("name", rf.Name), zap.Error(err))
		return -1, true
	}
	if len(results) == 0 {
		return -1, false
	}
	if results[0].Kind == values.KindRef {
		return -1, false
	}
	result, _ := values.NarrowI32(results[0])
	return result, false
}
