package interp

import (
	"encoding/binary"
	"math"

	"github.com/wasmdiff/wasmdiff/values"
	"github.com/wasmdiff/wasmdiff/wasm"
)

// memRegion bounds-checks an access of size bytes at base+offset and returns
// the backing slice. ok is false after trapping.
func (m *Machine) memRegion(base uint32, offset uint64, size int) ([]byte, bool) {
	addr := uint64(base) + offset
	if addr+uint64(size) > uint64(len(m.mem)) {
		m.trapWith("out of bounds memory access")
		return nil, false
	}
	return m.mem[addr : addr+uint64(size)], true
}

// execMemory executes one load or store instruction. Addresses are popped as
// unsigned i32 and extended with the static offset before the bounds check.
func (m *Machine) execMemory(f *frame, op byte, imm wasm.MemoryImm) {
	if op >= wasm.OpI32Store {
		m.execStore(f, op, imm)
		return
	}

	base := uint32(m.popI32())
	var size int
	switch op {
	case wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI64Load8S, wasm.OpI64Load8U:
		size = 1
	case wasm.OpI32Load16S, wasm.OpI32Load16U, wasm.OpI64Load16S, wasm.OpI64Load16U:
		size = 2
	case wasm.OpI32Load, wasm.OpF32Load, wasm.OpI64Load32S, wasm.OpI64Load32U:
		size = 4
	default:
		size = 8
	}
	region, ok := m.memRegion(base, imm.Offset, size)
	if !ok {
		return
	}

	switch op {
	case wasm.OpI32Load:
		m.push(values.I32(int32(binary.LittleEndian.Uint32(region))))
	case wasm.OpI64Load:
		m.push(values.I64(int64(binary.LittleEndian.Uint64(region))))
	case wasm.OpF32Load:
		m.push(values.F32(math.Float32frombits(binary.LittleEndian.Uint32(region))))
	case wasm.OpF64Load:
		m.push(values.F64(math.Float64frombits(binary.LittleEndian.Uint64(region))))
	case wasm.OpI32Load8S:
		m.push(values.I32(int32(int8(region[0]))))
	case wasm.OpI32Load8U:
		m.push(values.I32(int32(uint32(region[0]))))
	case wasm.OpI32Load16S:
		m.push(values.I32(int32(int16(binary.LittleEndian.Uint16(region)))))
	case wasm.OpI32Load16U:
		m.push(values.I32(int32(uint32(binary.LittleEndian.Uint16(region)))))
	case wasm.OpI64Load8S:
		m.push(values.I64(int64(int8(region[0]))))
	case wasm.OpI64Load8U:
		m.push(values.I64(int64(uint64(region[0]))))
	case wasm.OpI64Load16S:
		m.push(values.I64(int64(int16(binary.LittleEndian.Uint16(region)))))
	case wasm.OpI64Load16U:
		m.push(values.I64(int64(uint64(binary.LittleEndian.Uint16(region)))))
	case wasm.OpI64Load32S:
		m.push(values.I64(int64(int32(binary.LittleEndian.Uint32(region)))))
	case wasm.OpI64Load32U:
		m.push(values.I64(int64(uint64(binary.LittleEndian.Uint32(region)))))
	}
	f.pc++
}

func (m *Machine) execStore(f *frame, op byte, imm wasm.MemoryImm) {
	v := m.pop()
	base := uint32(m.popI32())

	var size int
	switch op {
	case wasm.OpI32Store8, wasm.OpI64Store8:
		size = 1
	case wasm.OpI32Store16, wasm.OpI64Store16:
		size = 2
	case wasm.OpI32Store, wasm.OpF32Store, wasm.OpI64Store32:
		size = 4
	default:
		size = 8
	}
	region, ok := m.memRegion(base, imm.Offset, size)
	if !ok {
		return
	}

	switch op {
	case wasm.OpI32Store:
		binary.LittleEndian.PutUint32(region, uint32(v.AsI32()))
	case wasm.OpI64Store:
		binary.LittleEndian.PutUint64(region, uint64(v.AsI64()))
	case wasm.OpF32Store:
		binary.LittleEndian.PutUint32(region, math.Float32bits(v.AsF32()))
	case wasm.OpF64Store:
		binary.LittleEndian.PutUint64(region, math.Float64bits(v.AsF64()))
	case wasm.OpI32Store8:
		region[0] = byte(v.AsI32())
	case wasm.OpI32Store16:
		binary.LittleEndian.PutUint16(region, uint16(v.AsI32()))
	case wasm.OpI64Store8:
		region[0] = byte(v.AsI64())
	case wasm.OpI64Store16:
		binary.LittleEndian.PutUint16(region, uint16(v.AsI64()))
	case wasm.OpI64Store32:
		binary.LittleEndian.PutUint32(region, uint32(v.AsI64()))
	}
	f.pc++
}

// execMisc executes a 0xFC-prefixed instruction. Validation restricts these
// to the saturating truncations and memory.fill/memory.copy.
func (m *Machine) execMisc(f *frame, imm wasm.MiscImm) {
	switch imm.SubOpcode {
	case wasm.MiscI32TruncSatF32S:
		m.push(values.I32(int32(truncSatS(float64(m.pop().AsF32()), math.MinInt32, math.MaxInt32))))
	case wasm.MiscI32TruncSatF32U:
		m.push(values.I32(int32(uint32(truncSatU(float64(m.pop().AsF32()), math.MaxUint32)))))
	case wasm.MiscI32TruncSatF64S:
		m.push(values.I32(int32(truncSatS(m.pop().AsF64(), math.MinInt32, math.MaxInt32))))
	case wasm.MiscI32TruncSatF64U:
		m.push(values.I32(int32(uint32(truncSatU(m.pop().AsF64(), math.MaxUint32)))))
	case wasm.MiscI64TruncSatF32S:
		m.push(values.I64(truncSatS(float64(m.pop().AsF32()), math.MinInt64, math.MaxInt64)))
	case wasm.MiscI64TruncSatF32U:
		m.push(values.I64(int64(truncSatU(float64(m.pop().AsF32()), math.MaxUint64))))
	case wasm.MiscI64TruncSatF64S:
		m.push(values.I64(truncSatS(m.pop().AsF64(), math.MinInt64, math.MaxInt64)))
	case wasm.MiscI64TruncSatF64U:
		m.push(values.I64(int64(truncSatU(m.pop().AsF64(), math.MaxUint64))))

	case wasm.MiscMemoryFill:
		n := uint32(m.popI32())
		val := byte(m.popI32())
		dst := uint32(m.popI32())
		region, ok := m.memRegion(dst, 0, int(n))
		if !ok {
			return
		}
		for i := range region {
			region[i] = val
		}

	case wasm.MiscMemoryCopy:
		n := uint32(m.popI32())
		src := uint32(m.popI32())
		dst := uint32(m.popI32())
		srcRegion, ok := m.memRegion(src, 0, int(n))
		if !ok {
			return
		}
		dstRegion, ok := m.memRegion(dst, 0, int(n))
		if !ok {
			return
		}
		copy(dstRegion, srcRegion)

	default:
		panic("interp: misc opcode escaped validation")
	}
	f.pc++
}

// truncSatS truncates toward zero, saturating at the given signed bounds.
// NaN saturates to zero per the spec.
func truncSatS(v float64, min, max int64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if t < float64(min) {
		return min
	}
	if t >= -float64(min) { // -min == max+1 exactly, unlike float64(max)
		return max
	}
	return int64(t)
}

// truncSatU truncates toward zero, saturating at [0, max].
func truncSatU(v float64, max uint64) uint64 {
	if math.IsNaN(v) || v <= -1 {
		return 0
	}
	t := math.Trunc(v)
	if t < 0 {
		return 0
	}
	if t >= float64(max)+1 {
		return max
	}
	return uint64(t)
}
