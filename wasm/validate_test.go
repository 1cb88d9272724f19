package wasm_test

import (
	"testing"

	"github.com/wasmdiff/wasmdiff/wasm"
)

func validModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: wasm.NewCode().I32Const(1).End().Bytes()},
		},
		Exports: []wasm.Export{{Name: "main", Kind: wasm.KindFunc, Idx: 0}},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validModule().Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*wasm.Module)
	}{
		{"bad type index", func(m *wasm.Module) { m.Funcs[0] = 9 }},
		{"bad export index", func(m *wasm.Module) { m.Exports[0].Idx = 9 }},
		{"bad export kind", func(m *wasm.Module) { m.Exports[0].Kind = 9 }},
		{"bad element func index", func(m *wasm.Module) {
			m.Tables = []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 1}}}
			m.Elements = []wasm.Element{{Flags: 0, Offset: wasm.ConstI32(0), FuncIdxs: []uint32{5}}}
		}},
		{"bad element table index", func(m *wasm.Module) {
			m.Elements = []wasm.Element{{Flags: 2, TableIdx: 3, Offset: wasm.ConstI32(0)}}
		}},
		{"start with results", func(m *wasm.Module) { m.Start = ptrTo(uint32(0)) }},
		{"data count mismatch", func(m *wasm.Module) { m.DataCount = ptrTo(uint32(2)) }},
		{"memory min too large", func(m *wasm.Module) {
			m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 65537}}}
		}},
		{"memory max below min", func(m *wasm.Module) {
			m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 2, Max: ptrTo(uint64(1))}}}
		}},
		{"two memories", func(m *wasm.Module) {
			m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}, {Limits: wasm.Limits{Min: 1}}}
		}},
		{"call to invalid function", func(m *wasm.Module) {
			m.Code[0].Code = wasm.NewCode().Call(9).End().Bytes()
		}},
		{"call_indirect invalid type", func(m *wasm.Module) {
			m.Tables = []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 1}}}
			m.Code[0].Code = wasm.NewCode().I32Const(0).CallIndirect(9, 0).End().Bytes()
		}},
		{"call_indirect invalid table", func(m *wasm.Module) {
			m.Code[0].Code = wasm.NewCode().I32Const(0).CallIndirect(0, 2).End().Bytes()
		}},
		{"multi-value block type", func(m *wasm.Module) {
			m.Code[0].Code = wasm.NewCode().Block(0).End().I32Const(1).End().Bytes()
		}},
		{"unsupported misc opcode", func(m *wasm.Module) {
			m.Code[0].Code = wasm.NewCode().I32Const(0).Misc(wasm.MiscTableSize, 0).End().Bytes()
		}},
		{"unbalanced nesting", func(m *wasm.Module) {
			m.Code[0].Code = wasm.NewCode().Block(wasm.BlockTypeVoid).I32Const(1).End().Bytes()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModule()
			tt.mutate(m)
			if err := m.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateGlobalInitReferencesNonImported(t *testing.T) {
	m := validModule()
	m.Globals = []wasm.Global{{
		Type: wasm.GlobalType{ValType: wasm.ValI32},
		Init: append([]byte{wasm.OpGlobalGet, 0}, wasm.OpEnd),
	}}
	if err := m.Validate(); err == nil {
		t.Error("expected error for global.get of non-imported global")
	}
}

func TestParseModuleValidate(t *testing.T) {
	data := validModule().Encode()
	m, err := wasm.ParseModuleValidate(data)
	if err != nil {
		t.Fatalf("ParseModuleValidate: %v", err)
	}
	if m.NumFuncs() != 1 {
		t.Errorf("NumFuncs = %d", m.NumFuncs())
	}
}

func TestFuncTypeEqual(t *testing.T) {
	a := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI64}}
	b := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI64}}
	c := wasm.FuncType{Params: []wasm.ValType{wasm.ValI64}, Results: []wasm.ValType{wasm.ValI64}}
	if !a.Equal(b) {
		t.Error("identical types should be equal")
	}
	if a.Equal(c) {
		t.Error("different params should not be equal")
	}
}

func TestAddTypeDeduplicates(t *testing.T) {
	m := &wasm.Module{}
	ft := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}
	i := m.AddType(ft)
	j := m.AddType(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}})
	if i != j {
		t.Errorf("AddType returned %d then %d for equal types", i, j)
	}
	k := m.AddType(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}})
	if k == i {
		t.Error("distinct type should get a new index")
	}
}

func TestExportedFunc(t *testing.T) {
	m := validModule()
	m.Exports = append(m.Exports, wasm.Export{Name: "mem", Kind: wasm.KindMemory, Idx: 0})

	if exp, ok := m.ExportedFunc("main"); exp == nil || !ok {
		t.Error("main should resolve as a function")
	}
	if exp, ok := m.ExportedFunc("mem"); exp == nil || ok {
		t.Error("mem should resolve as present but not a function")
	}
	if exp, ok := m.ExportedFunc("absent"); exp != nil || ok {
		t.Error("absent name should resolve to nil")
	}
}
