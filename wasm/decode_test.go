package wasm_test

import (
	"testing"

	"github.com/wasmdiff/wasmdiff/wasm"
)

func ptrTo[T any](v T) *T { return &v }

func TestParseMinimalModule(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil module")
	}
}

func TestParseInvalidMagic(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	_, err := wasm.ParseModule(data)
	if err == nil {
		t.Error("expected error for invalid magic")
	}
}

func TestParseInvalidVersion(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}
	_, err := wasm.ParseModule(data)
	if err == nil {
		t.Error("expected error for invalid version")
	}
}

func TestParseTruncatedHeader(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73}
	_, err := wasm.ParseModule(data)
	if err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestParseEmptyBytes(t *testing.T) {
	_, err := wasm.ParseModule(nil)
	if err == nil {
		t.Error("expected error for empty input")
	}
}

func TestRoundTripFunction(t *testing.T) {
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
	data := m.Encode()

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.Types) != 1 || len(parsed.Funcs) != 1 || len(parsed.Code) != 1 {
		t.Fatalf("unexpected shape: %d types, %d funcs, %d bodies",
			len(parsed.Types), len(parsed.Funcs), len(parsed.Code))
	}
	exp, isFunc := parsed.ExportedFunc("add")
	if exp == nil || !isFunc {
		t.Fatal("export add should be a function")
	}
	sig := parsed.GetFuncType(exp.Idx)
	if sig == nil || len(sig.Params) != 2 || len(sig.Results) != 1 {
		t.Errorf("unexpected signature %v", sig)
	}
}

func TestRoundTripMemoryAndData(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: ptrTo(uint64(4))}}},
		Data: []wasm.DataSegment{
			{Flags: 0, Offset: wasm.ConstI32(8), Init: []byte("hello")},
		},
	}
	data := m.Encode()

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.Memories) != 1 {
		t.Fatalf("expected 1 memory, got %d", len(parsed.Memories))
	}
	if parsed.Memories[0].Limits.Max == nil || *parsed.Memories[0].Limits.Max != 4 {
		t.Error("memory max limit lost in round trip")
	}
	if len(parsed.Data) != 1 || string(parsed.Data[0].Init) != "hello" {
		t.Error("data segment lost in round trip")
	}
	if !parsed.Data[0].IsActive() {
		t.Error("flags-0 data segment should be active")
	}
}

func TestRoundTripGlobalsAndStart(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Globals: []wasm.Global{
			{Type: wasm.GlobalType{ValType: wasm.ValI64, Mutable: true}, Init: wasm.ConstI64(-9)},
		},
		Start: ptrTo(uint32(0)),
		Code:  []wasm.FuncBody{{Code: wasm.NewCode().End().Bytes()}},
	}
	data := m.Encode()

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.Globals) != 1 || !parsed.Globals[0].Type.Mutable {
		t.Error("global lost in round trip")
	}
	if parsed.Start == nil || *parsed.Start != 0 {
		t.Error("start section lost in round trip")
	}
}

func TestRoundTripTableAndElements(t *testing.T) {
	m := &wasm.Module{
		Types:  []wasm.FuncType{{}},
		Funcs:  []uint32{0},
		Tables: []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 2}}},
		Elements: []wasm.Element{
			{Flags: 0, Offset: wasm.ConstI32(0), FuncIdxs: []uint32{0}},
		},
		Code: []wasm.FuncBody{{Code: wasm.NewCode().End().Bytes()}},
	}
	data := m.Encode()

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.Tables) != 1 || parsed.Tables[0].ElemType != wasm.ValFuncRef {
		t.Error("table lost in round trip")
	}
	if len(parsed.Elements) != 1 || len(parsed.Elements[0].FuncIdxs) != 1 {
		t.Error("element segment lost in round trip")
	}
}

func TestRoundTripLocals(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{{
			Locals: []wasm.LocalEntry{
				{Count: 2, ValType: wasm.ValI32},
				{Count: 1, ValType: wasm.ValF64},
			},
			Code: wasm.NewCode().End().Bytes(),
		}},
	}
	data := m.Encode()

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if parsed.Code[0].NumLocals() != 3 {
		t.Errorf("NumLocals = %d, want 3", parsed.Code[0].NumLocals())
	}
}

func TestParseCustomSection(t *testing.T) {
	m := &wasm.Module{
		CustomSections: []wasm.CustomSection{
			{Name: "name", Data: []byte{1, 2, 3}},
		},
	}
	data := m.Encode()

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.CustomSections) != 1 || parsed.CustomSections[0].Name != "name" {
		t.Error("custom section lost in round trip")
	}
}

func TestFuncCodeCountMismatch(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 0},
		Code:  []wasm.FuncBody{{Code: wasm.NewCode().End().Bytes()}},
	}
	_, err := wasm.ParseModule(m.Encode())
	if err == nil {
		t.Error("expected error for function/code count mismatch")
	}
}
