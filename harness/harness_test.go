package harness_test

import (
	"context"
	"testing"

	"github.com/wasmdiff/wasmdiff/errors"
	"github.com/wasmdiff/wasmdiff/harness"
	"github.com/wasmdiff/wasmdiff/outcome"
	"github.com/wasmdiff/wasmdiff/values"
	"github.com/wasmdiff/wasmdiff/wasm"
)

func newHarness(t *testing.T) (*harness.Harness, context.Context) {
	t.Helper()
	ctx := context.Background()
	h, err := harness.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { h.Close(ctx) })
	return h, ctx
}

// mainModule builds a module exporting main() -> i32 with the given body.
func mainModule(code []byte) []byte {
	m := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: code}},
		Exports: []wasm.Export{
			{Name: "main", Kind: wasm.KindFunc, Idx: 0},
		},
	}
	return m.Encode()
}

func const42Module() []byte {
	return mainModule(wasm.NewCode().I32Const(42).End().Bytes())
}

func TestCompileModuleMalformedBytes(t *testing.T) {
	h, ctx := newHarness(t)

	tests := []struct {
		name  string
		bytes []byte
	}{
		{"empty", nil},
		{"garbage", []byte{1, 2, 3, 4}},
		{"bad magic", []byte{0xFF, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}},
		{"truncated", []byte{0x00, 0x61, 0x73, 0x6D}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := harness.NewSink(tt.name)
			mod := h.CompileModule(ctx, tt.bytes, sink)
			if mod != nil {
				t.Fatal("expected nil module")
			}
			if !sink.Failed() {
				t.Error("sink should report failure")
			}
			if sink.Count() != 1 {
				t.Errorf("diagnostics = %d, want exactly 1", sink.Count())
			}
		})
	}
}

func TestCompileModuleSinkInvariant(t *testing.T) {
	h, ctx := newHarness(t)

	sink := harness.NewSink("valid")
	mod := h.CompileModule(ctx, const42Module(), sink)
	if mod == nil {
		t.Fatalf("CompileModule: %v", sink.Err())
	}
	defer mod.Close(ctx)
	if sink.Failed() {
		t.Error("sink should not report failure for a valid module")
	}
}

func TestCompileAndInstantiate(t *testing.T) {
	h, ctx := newHarness(t)

	sink := harness.NewSink("instantiate")
	inst := h.CompileAndInstantiate(ctx, const42Module(), sink)
	if inst == nil {
		t.Fatalf("CompileAndInstantiate: %v", sink.Err())
	}
	defer inst.Close(ctx)

	if inst.Machine() == nil {
		t.Error("instance should carry an interpreter machine")
	}
}

func TestResolveDescriptor(t *testing.T) {
	h, ctx := newHarness(t)

	m := &wasm.Module{
		Types:    []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Funcs:    []uint32{0},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Code:     []wasm.FuncBody{{Code: wasm.NewCode().I32Const(1).End().Bytes()}},
		Exports: []wasm.Export{
			{Name: "main", Kind: wasm.KindFunc, Idx: 0},
			{Name: "mem", Kind: wasm.KindMemory, Idx: 0},
		},
	}
	sink := harness.NewSink("resolve")
	inst := h.CompileAndInstantiate(ctx, m.Encode(), sink)
	if inst == nil {
		t.Fatalf("CompileAndInstantiate: %v", sink.Err())
	}
	defer inst.Close(ctx)

	rf, err := h.ResolveDescriptor(inst, "main")
	if err != nil {
		t.Fatalf("ResolveDescriptor: %v", err)
	}
	if rf.FuncIdx != 0 || rf.Compiled == nil || rf.Sig == nil {
		t.Errorf("unexpected descriptor %+v", rf)
	}

	again, err := h.ResolveDescriptor(inst, "main")
	if err != nil || again.FuncIdx != rf.FuncIdx {
		t.Error("resolution should be idempotent")
	}

	_, err = h.ResolveDescriptor(inst, "absent")
	if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindNotFound {
		t.Errorf("absent export error = %v", err)
	}

	_, err = h.ResolveDescriptor(inst, "mem")
	if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindWrongKind {
		t.Errorf("wrong-kind export error = %v", err)
	}

	if h.Resolve(inst, "absent") != nil || h.Resolve(inst, "mem") != nil {
		t.Error("Resolve should collapse absent and wrong-kind to nil")
	}
}

func TestCallExported(t *testing.T) {
	h, ctx := newHarness(t)

	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Results: []wasm.ValType{wasm.ValI32}},
			{},
		},
		Funcs: []uint32{0, 1, 0},
		Code: []wasm.FuncBody{
			{Code: wasm.NewCode().I32Const(42).End().Bytes()},
			{Code: wasm.NewCode().End().Bytes()},
			{Code: []byte{wasm.OpUnreachable, wasm.OpEnd}},
		},
		Exports: []wasm.Export{
			{Name: "main", Kind: wasm.KindFunc, Idx: 0},
			{Name: "void", Kind: wasm.KindFunc, Idx: 1},
			{Name: "boom", Kind: wasm.KindFunc, Idx: 2},
		},
	}
	sink := harness.NewSink("call")
	inst := h.CompileAndInstantiate(ctx, m.Encode(), sink)
	if inst == nil {
		t.Fatalf("CompileAndInstantiate: %v", sink.Err())
	}
	defer inst.Close(ctx)

	if result, exception := h.CallExported(ctx, inst, "main", nil); result != 42 || exception {
		t.Errorf("main = (%d, %v), want (42, false)", result, exception)
	}
	if result, exception := h.CallExported(ctx, inst, "void", nil); result != -1 || exception {
		t.Errorf("void = (%d, %v), want (-1, false)", result, exception)
	}
	if result, exception := h.CallExported(ctx, inst, "boom", nil); result != -1 || !exception {
		t.Errorf("boom = (%d, %v), want (-1, true)", result, exception)
	}
	if result, exception := h.CallExported(ctx, inst, "missing", nil); result != -1 || exception {
		t.Errorf("missing = (%d, %v), want (-1, false)", result, exception)
	}
}

func TestInterpret(t *testing.T) {
	h, ctx := newHarness(t)

	sink := harness.NewSink("interpret")
	inst := h.CompileAndInstantiate(ctx, const42Module(), sink)
	if inst == nil {
		t.Fatalf("CompileAndInstantiate: %v", sink.Err())
	}
	defer inst.Close(ctx)

	got := h.Interpret(inst, 0, nil)
	want := outcome.Finished(42, false)
	if !got.Equal(want) {
		t.Errorf("Interpret = %v, want %v", got, want)
	}
}

func TestInterpretBudgetExhaustion(t *testing.T) {
	h, ctx := newHarness(t)

	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: wasm.NewCode().Loop(wasm.BlockTypeVoid).Br(0).End().End().Bytes()},
		},
		Exports: []wasm.Export{{Name: "spin", Kind: wasm.KindFunc, Idx: 0}},
	}
	sink := harness.NewSink("budget")
	inst := h.CompileAndInstantiate(ctx, m.Encode(), sink)
	if inst == nil {
		t.Fatalf("CompileAndInstantiate: %v", sink.Err())
	}
	defer inst.Close(ctx)

	got := h.Interpret(inst, 0, nil)
	if got.Status != outcome.StatusFailed {
		t.Errorf("Interpret = %v, want failed", got)
	}
}

func TestInterpretStackExhaustion(t *testing.T) {
	h, ctx := newHarness(t)

	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: wasm.NewCode().Call(0).End().Bytes()},
		},
		Exports: []wasm.Export{{Name: "recurse", Kind: wasm.KindFunc, Idx: 0}},
	}
	sink := harness.NewSink("stack")
	inst := h.CompileAndInstantiate(ctx, m.Encode(), sink)
	if inst == nil {
		t.Fatalf("CompileAndInstantiate: %v", sink.Err())
	}
	defer inst.Close(ctx)

	got := h.Interpret(inst, 0, nil)
	if got.Status != outcome.StatusFailed {
		t.Errorf("Interpret = %v, want failed", got)
	}
}

func TestCompileAndRun(t *testing.T) {
	h, ctx := newHarness(t)

	if got := h.CompileAndRun(ctx, const42Module()); got != 42 {
		t.Errorf("CompileAndRun = %d, want 42", got)
	}
	if got := h.CompileAndRun(ctx, []byte{1, 2, 3}); got != -1 {
		t.Errorf("CompileAndRun garbage = %d, want -1", got)
	}

	noMain := &wasm.Module{
		Types:   []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Funcs:   []uint32{0},
		Code:    []wasm.FuncBody{{Code: wasm.NewCode().I32Const(1).End().Bytes()}},
		Exports: []wasm.Export{{Name: "other", Kind: wasm.KindFunc, Idx: 0}},
	}
	if got := h.CompileAndRun(ctx, noMain.Encode()); got != -1 {
		t.Errorf("CompileAndRun without main = %d, want -1", got)
	}
}

func TestRunBothMatch(t *testing.T) {
	h, ctx := newHarness(t)

	cmp, err := h.RunBoth(ctx, const42Module(), "main")
	if err != nil {
		t.Fatalf("RunBoth: %v", err)
	}
	if !cmp.Match() {
		t.Errorf("mismatch: compiled %v, interpreted %v", cmp.Compiled, cmp.Interpreted)
	}
	if cmp.Compiled.Status != outcome.StatusFinished || cmp.Compiled.Result != 42 {
		t.Errorf("compiled = %v", cmp.Compiled)
	}
}

func TestRunBothWithArguments(t *testing.T) {
	h, ctx := newHarness(t)

	// Default arguments are zero, so add(0, 0) finishes with 0 on both paths.
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
		},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: wasm.NewCode().LocalGet(0).LocalGet(1).Op(wasm.OpI32Add).End().Bytes()},
		},
		Exports: []wasm.Export{{Name: "add", Kind: wasm.KindFunc, Idx: 0}},
	}
	cmp, err := h.RunBoth(ctx, m.Encode(), "add")
	if err != nil {
		t.Fatalf("RunBoth: %v", err)
	}
	if !cmp.Match() || cmp.Interpreted.Result != 0 {
		t.Errorf("comparison = %+v", cmp)
	}
}

func TestRunBothTrap(t *testing.T) {
	h, ctx := newHarness(t)

	bytes := mainModule([]byte{wasm.OpUnreachable, wasm.OpEnd})
	cmp, err := h.RunBoth(ctx, bytes, "main")
	if err != nil {
		t.Fatalf("RunBoth: %v", err)
	}
	if cmp.Compiled.Status != outcome.StatusTrapped || cmp.Interpreted.Status != outcome.StatusTrapped {
		t.Errorf("comparison = %+v", cmp)
	}
	if !cmp.Match() {
		t.Error("both paths trapped; outcomes should match")
	}
}

func TestRunBothSkipsCompiledAfterInterpreterFailure(t *testing.T) {
	h, ctx := newHarness(t)

	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: wasm.NewCode().Loop(wasm.BlockTypeVoid).Br(0).End().End().Bytes()},
		},
		Exports: []wasm.Export{{Name: "spin", Kind: wasm.KindFunc, Idx: 0}},
	}
	cmp, err := h.RunBoth(ctx, m.Encode(), "spin")
	if err != nil {
		t.Fatalf("RunBoth: %v", err)
	}
	if cmp.Interpreted.Status != outcome.StatusFailed || cmp.Compiled.Status != outcome.StatusFailed {
		t.Errorf("comparison = %+v", cmp)
	}
	if !cmp.Match() {
		t.Error("skipped compiled path should mirror the interpreter failure")
	}
}

func TestRunBothNondeterministicNaN(t *testing.T) {
	h, ctx := newHarness(t)

	m := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValF64}}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: wasm.NewCode().F64Const(0).F64Const(0).Op(wasm.OpF64Div).End().Bytes()},
		},
		Exports: []wasm.Export{{Name: "nan", Kind: wasm.KindFunc, Idx: 0}},
	}
	cmp, err := h.RunBoth(ctx, m.Encode(), "nan")
	if err != nil {
		t.Fatalf("RunBoth: %v", err)
	}
	if !cmp.Nondeterministic() {
		t.Error("NaN-producing run should be flagged nondeterministic")
	}
	// Both paths narrow NaN to 0, so the outcomes still agree.
	if !cmp.Match() {
		t.Errorf("comparison = %+v", cmp)
	}
}

func TestRunBothResolveErrors(t *testing.T) {
	h, ctx := newHarness(t)

	if _, err := h.RunBoth(ctx, const42Module(), "absent"); err == nil {
		t.Error("expected resolve error for absent export")
	}
	if _, err := h.RunBoth(ctx, []byte{9, 9, 9}, "main"); err == nil {
		t.Error("expected load error for garbage bytes")
	}
}

func TestDefaultArgsForRefParams(t *testing.T) {
	sig := &wasm.FuncType{Params: []wasm.ValType{wasm.ValExtern}}
	args := values.DefaultArgs(sig)
	if len(args) != 1 || !args[0].IsNull() {
		t.Error("externref default should be null")
	}
}
