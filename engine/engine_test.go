package engine_test

import (
	"context"
	"testing"

	"github.com/wasmdiff/wasmdiff/engine"
	"github.com/wasmdiff/wasmdiff/values"
	"github.com/wasmdiff/wasmdiff/wasm"
)

func addModule() []byte {
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
	return m.Encode()
}

func TestCompileAndCall(t *testing.T) {
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close(ctx)

	compiled, err := eng.Compile(ctx, addModule())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	inst, err := compiled.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	fn := inst.ExportedFunction("add")
	if fn == nil {
		t.Fatal("add should be exported")
	}
	if got := len(fn.ParamKinds()); got != 2 {
		t.Fatalf("param kinds = %d, want 2", got)
	}

	results, err := fn.Call(ctx, []values.Value{values.I32(40), values.I32(2)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0].AsI32() != 42 {
		t.Errorf("results = %v, want [42]", results)
	}
}

func TestCompileRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close(ctx)

	if _, err := eng.Compile(ctx, []byte{1, 2, 3}); err == nil {
		t.Error("expected compile error for garbage bytes")
	}
}

func TestExportedFunctionLookup(t *testing.T) {
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close(ctx)

	compiled, err := eng.Compile(ctx, addModule())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	inst, err := compiled.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if fn := inst.ExportedFunction("missing"); fn != nil {
		t.Error("missing export should be nil")
	}
	first := inst.ExportedFunction("add")
	second := inst.ExportedFunction("add")
	if first == nil || first != second {
		t.Error("repeated lookup should return the identical cached handle")
	}
}

func TestCallTrapSurfacesAsError(t *testing.T) {
	ctx := context.Background()
	eng, err := engine.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close(ctx)

	m := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: []byte{wasm.OpUnreachable, wasm.OpEnd}},
		},
		Exports: []wasm.Export{{Name: "boom", Kind: wasm.KindFunc, Idx: 0}},
	}
	compiled, err := eng.Compile(ctx, m.Encode())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	inst, err := compiled.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	fn := inst.ExportedFunction("boom")
	if fn == nil {
		t.Fatal("boom should be exported")
	}
	if _, err := fn.Call(ctx, nil); err == nil {
		t.Error("expected error for unreachable trap")
	}
}
