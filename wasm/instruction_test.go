package wasm_test

import (
	"testing"

	"github.com/wasmdiff/wasmdiff/wasm"
)

func TestDecodeInstructions(t *testing.T) {
	code := wasm.NewCode().
		I32Const(-5).
		LocalGet(3).
		Op(wasm.OpI32Add).
		End().Bytes()

	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(instrs) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(instrs))
	}
	if imm, ok := instrs[0].Imm.(wasm.I32Imm); !ok || imm.Value != -5 {
		t.Errorf("instr 0 imm = %v", instrs[0].Imm)
	}
	if imm, ok := instrs[1].Imm.(wasm.LocalImm); !ok || imm.LocalIdx != 3 {
		t.Errorf("instr 1 imm = %v", instrs[1].Imm)
	}
	if instrs[2].Opcode != wasm.OpI32Add || instrs[2].Imm != nil {
		t.Errorf("instr 2 = %+v", instrs[2])
	}
	if instrs[3].Opcode != wasm.OpEnd {
		t.Errorf("instr 3 opcode = 0x%02x", instrs[3].Opcode)
	}
}

func TestDecodeControlImmediates(t *testing.T) {
	code := wasm.NewCode().
		Block(wasm.BlockTypeI32).
		BrTable([]uint32{1, 2}, 0).
		End().
		End().Bytes()

	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if imm, ok := instrs[0].Imm.(wasm.BlockImm); !ok || imm.Type != wasm.BlockTypeI32 {
		t.Errorf("block imm = %v", instrs[0].Imm)
	}
	imm, ok := instrs[1].Imm.(wasm.BrTableImm)
	if !ok || len(imm.Labels) != 2 || imm.Labels[1] != 2 || imm.Default != 0 {
		t.Errorf("br_table imm = %v", instrs[1].Imm)
	}
}

func TestDecodeMemoryImmediates(t *testing.T) {
	code := wasm.NewCode().
		I32Const(0).
		Load(wasm.OpI64Load, 3, 16).
		End().Bytes()

	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	imm, ok := instrs[1].Imm.(wasm.MemoryImm)
	if !ok || imm.Align != 3 || imm.Offset != 16 {
		t.Errorf("memory imm = %v", instrs[1].Imm)
	}
}

func TestDecodeMiscInstruction(t *testing.T) {
	code := wasm.NewCode().
		F64Const(1.5).
		Misc(wasm.MiscI32TruncSatF64S).
		End().Bytes()

	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	imm, ok := instrs[1].Imm.(wasm.MiscImm)
	if !ok || imm.SubOpcode != wasm.MiscI32TruncSatF64S || len(imm.Operands) != 0 {
		t.Errorf("misc imm = %v", instrs[1].Imm)
	}
}

func TestDecodeCallIndirect(t *testing.T) {
	code := wasm.NewCode().
		I32Const(0).
		CallIndirect(4, 0).
		End().Bytes()

	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	imm, ok := instrs[1].Imm.(wasm.CallIndirectImm)
	if !ok || imm.TypeIdx != 4 || imm.TableIdx != 0 {
		t.Errorf("call_indirect imm = %v", instrs[1].Imm)
	}
}

func TestDecodeRejectsSIMD(t *testing.T) {
	code := []byte{wasm.OpPrefixSIMD, 0x00, wasm.OpEnd}
	if _, err := wasm.DecodeInstructions(code); err == nil {
		t.Error("expected error for SIMD prefix")
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	code := []byte{0xFF, wasm.OpEnd}
	if _, err := wasm.DecodeInstructions(code); err == nil {
		t.Error("expected error for unknown opcode")
	}
}

func TestGetCallTarget(t *testing.T) {
	instrs, err := wasm.DecodeInstructions(wasm.NewCode().Call(7).End().Bytes())
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	target, ok := instrs[0].GetCallTarget()
	if !ok || target != 7 {
		t.Errorf("GetCallTarget = %d, %v", target, ok)
	}
	if _, ok := instrs[1].GetCallTarget(); ok {
		t.Error("end should have no call target")
	}
}
