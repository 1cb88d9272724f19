package wasm

import (
	"github.com/wasmdiff/wasmdiff/wasm/internal/binary"
)

// Code assembles a function body byte sequence instruction by instruction.
// It is a thin builder over the binary writer; callers are responsible for
// producing a well-formed stream ending with End.
type Code struct {
	w *binary.Writer
}

// NewCode creates an empty code builder.
func NewCode() *Code {
	return &Code{w: binary.NewWriter()}
}

// Bytes returns the assembled code bytes.
func (c *Code) Bytes() []byte {
	return c.w.Bytes()
}

// Op emits a bare opcode.
func (c *Code) Op(op byte) *Code {
	c.w.Byte(op)
	return c
}

// I32Const emits i32.const v.
func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(OpI32Const)
	c.w.WriteS32(v)
	return c
}

// I64Const emits i64.const v.
func (c *Code) I64Const(v int64) *Code {
	c.w.Byte(OpI64Const)
	c.w.WriteS64(v)
	return c
}

// F32Const emits f32.const v.
func (c *Code) F32Const(v float32) *Code {
	c.w.Byte(OpF32Const)
	c.w.WriteF32(v)
	return c
}

// F64Const emits f64.const v.
func (c *Code) F64Const(v float64) *Code {
	c.w.Byte(OpF64Const)
	c.w.WriteF64(v)
	return c
}

// LocalGet emits local.get idx.
func (c *Code) LocalGet(idx uint32) *Code {
	c.w.Byte(OpLocalGet)
	c.w.WriteU32(idx)
	return c
}

// LocalSet emits local.set idx.
func (c *Code) LocalSet(idx uint32) *Code {
	c.w.Byte(OpLocalSet)
	c.w.WriteU32(idx)
	return c
}

// LocalTee emits local.tee idx.
func (c *Code) LocalTee(idx uint32) *Code {
	c.w.Byte(OpLocalTee)
	c.w.WriteU32(idx)
	return c
}

// GlobalGet emits global.get idx.
func (c *Code) GlobalGet(idx uint32) *Code {
	c.w.Byte(OpGlobalGet)
	c.w.WriteU32(idx)
	return c
}

// GlobalSet emits global.set idx.
func (c *Code) GlobalSet(idx uint32) *Code {
	c.w.Byte(OpGlobalSet)
	c.w.WriteU32(idx)
	return c
}

// Call emits call funcIdx.
func (c *Code) Call(funcIdx uint32) *Code {
	c.w.Byte(OpCall)
	c.w.WriteU32(funcIdx)
	return c
}

// CallIndirect emits call_indirect typeIdx tableIdx.
func (c *Code) CallIndirect(typeIdx, tableIdx uint32) *Code {
	c.w.Byte(OpCallIndirect)
	c.w.WriteU32(typeIdx)
	c.w.WriteU32(tableIdx)
	return c
}

// Block emits block with the given block type encoding.
func (c *Code) Block(blockType int32) *Code {
	c.w.Byte(OpBlock)
	c.w.WriteS32(blockType)
	return c
}

// Loop emits loop with the given block type encoding.
func (c *Code) Loop(blockType int32) *Code {
	c.w.Byte(OpLoop)
	c.w.WriteS32(blockType)
	return c
}

// If emits if with the given block type encoding.
func (c *Code) If(blockType int32) *Code {
	c.w.Byte(OpIf)
	c.w.WriteS32(blockType)
	return c
}

// Else emits else.
func (c *Code) Else() *Code {
	c.w.Byte(OpElse)
	return c
}

// Br emits br labelIdx.
func (c *Code) Br(labelIdx uint32) *Code {
	c.w.Byte(OpBr)
	c.w.WriteU32(labelIdx)
	return c
}

// BrIf emits br_if labelIdx.
func (c *Code) BrIf(labelIdx uint32) *Code {
	c.w.Byte(OpBrIf)
	c.w.WriteU32(labelIdx)
	return c
}

// BrTable emits br_table labels default.
func (c *Code) BrTable(labels []uint32, def uint32) *Code {
	c.w.Byte(OpBrTable)
	c.w.WriteU32(uint32(len(labels)))
	for _, l := range labels {
		c.w.WriteU32(l)
	}
	c.w.WriteU32(def)
	return c
}

// Load emits a load opcode with align and offset immediates.
func (c *Code) Load(op byte, align uint32, offset uint64) *Code {
	c.w.Byte(op)
	c.w.WriteU32(align)
	c.w.WriteU64(offset)
	return c
}

// Store emits a store opcode with align and offset immediates.
func (c *Code) Store(op byte, align uint32, offset uint64) *Code {
	c.w.Byte(op)
	c.w.WriteU32(align)
	c.w.WriteU64(offset)
	return c
}

// MemorySize emits memory.size for memory 0.
func (c *Code) MemorySize() *Code {
	c.w.Byte(OpMemorySize)
	c.w.WriteU32(0)
	return c
}

// MemoryGrow emits memory.grow for memory 0.
func (c *Code) MemoryGrow() *Code {
	c.w.Byte(OpMemoryGrow)
	c.w.WriteU32(0)
	return c
}

// Misc emits a 0xFC-prefixed instruction with its operands.
func (c *Code) Misc(sub uint32, operands ...uint32) *Code {
	c.w.Byte(OpPrefixMisc)
	c.w.WriteU32(sub)
	for _, v := range operands {
		c.w.WriteU32(v)
	}
	return c
}

// End emits end.
func (c *Code) End() *Code {
	c.w.Byte(OpEnd)
	return c
}
