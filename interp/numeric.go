package interp

import (
	"math"
	"math/bits"

	"github.com/wasmdiff/wasmdiff/values"
	"github.com/wasmdiff/wasmdiff/wasm"
)

// pushF32 and pushF64 record possible nondeterminism whenever a computed
// float result is NaN, since NaN bit patterns differ across platforms and
// backends.
func (m *Machine) pushF32(v float32) {
	if v != v {
		m.nondet = true
	}
	m.push(values.F32(v))
}

func (m *Machine) pushF64(v float64) {
	if v != v {
		m.nondet = true
	}
	m.push(values.F64(v))
}

func boolToI32(b bool) values.Value {
	if b {
		return values.I32(1)
	}
	return values.I32(0)
}

// truncF checks a non-saturating float-to-int truncation. The result is
// integer valued and lies in [lo, hi); ok is false after trapping.
func (m *Machine) truncF(v float64, lo, hi float64) (float64, bool) {
	if math.IsNaN(v) {
		m.trapWith("invalid conversion to integer")
		return 0, false
	}
	t := math.Trunc(v)
	if !(t >= lo && t < hi) {
		m.trapWith("integer overflow")
		return 0, false
	}
	return t, true
}

// execNumeric executes one comparison, numeric, conversion, or sign
// extension instruction. Traps leave pc in place; everything else advances
// it.
func (m *Machine) execNumeric(f *frame, op byte) {
	switch op {
	// i32 comparisons
	case wasm.OpI32Eqz:
		m.push(boolToI32(m.popI32() == 0))
	case wasm.OpI32Eq:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(a == b))
	case wasm.OpI32Ne:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(a != b))
	case wasm.OpI32LtS:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(a < b))
	case wasm.OpI32LtU:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(uint32(a) < uint32(b)))
	case wasm.OpI32GtS:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(a > b))
	case wasm.OpI32GtU:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(uint32(a) > uint32(b)))
	case wasm.OpI32LeS:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(a <= b))
	case wasm.OpI32LeU:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(uint32(a) <= uint32(b)))
	case wasm.OpI32GeS:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(a >= b))
	case wasm.OpI32GeU:
		b, a := m.popI32(), m.popI32()
		m.push(boolToI32(uint32(a) >= uint32(b)))

	// i64 comparisons
	case wasm.OpI64Eqz:
		m.push(boolToI32(m.pop().AsI64() == 0))
	case wasm.OpI64Eq:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(a == b))
	case wasm.OpI64Ne:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(a != b))
	case wasm.OpI64LtS:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(a < b))
	case wasm.OpI64LtU:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(uint64(a) < uint64(b)))
	case wasm.OpI64GtS:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(a > b))
	case wasm.OpI64GtU:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(uint64(a) > uint64(b)))
	case wasm.OpI64LeS:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(a <= b))
	case wasm.OpI64LeU:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(uint64(a) <= uint64(b)))
	case wasm.OpI64GeS:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(a >= b))
	case wasm.OpI64GeU:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(boolToI32(uint64(a) >= uint64(b)))

	// f32 comparisons
	case wasm.OpF32Eq:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.push(boolToI32(a == b))
	case wasm.OpF32Ne:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.push(boolToI32(a != b))
	case wasm.OpF32Lt:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.push(boolToI32(a < b))
	case wasm.OpF32Gt:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.push(boolToI32(a > b))
	case wasm.OpF32Le:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.push(boolToI32(a <= b))
	case wasm.OpF32Ge:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.push(boolToI32(a >= b))

	// f64 comparisons
	case wasm.OpF64Eq:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.push(boolToI32(a == b))
	case wasm.OpF64Ne:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.push(boolToI32(a != b))
	case wasm.OpF64Lt:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.push(boolToI32(a < b))
	case wasm.OpF64Gt:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.push(boolToI32(a > b))
	case wasm.OpF64Le:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.push(boolToI32(a <= b))
	case wasm.OpF64Ge:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.push(boolToI32(a >= b))

	// i32 numerics
	case wasm.OpI32Clz:
		m.push(values.I32(int32(bits.LeadingZeros32(uint32(m.popI32())))))
	case wasm.OpI32Ctz:
		m.push(values.I32(int32(bits.TrailingZeros32(uint32(m.popI32())))))
	case wasm.OpI32Popcnt:
		m.push(values.I32(int32(bits.OnesCount32(uint32(m.popI32())))))
	case wasm.OpI32Add:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a + b))
	case wasm.OpI32Sub:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a - b))
	case wasm.OpI32Mul:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a * b))
	case wasm.OpI32DivS:
		b, a := m.popI32(), m.popI32()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		if a == math.MinInt32 && b == -1 {
			m.trapWith("integer overflow")
			return
		}
		m.push(values.I32(a / b))
	case wasm.OpI32DivU:
		b, a := m.popI32(), m.popI32()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		m.push(values.I32(int32(uint32(a) / uint32(b))))
	case wasm.OpI32RemS:
		b, a := m.popI32(), m.popI32()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		if a == math.MinInt32 && b == -1 {
			m.push(values.I32(0))
		} else {
			m.push(values.I32(a % b))
		}
	case wasm.OpI32RemU:
		b, a := m.popI32(), m.popI32()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		m.push(values.I32(int32(uint32(a) % uint32(b))))
	case wasm.OpI32And:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a & b))
	case wasm.OpI32Or:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a | b))
	case wasm.OpI32Xor:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a ^ b))
	case wasm.OpI32Shl:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a << (uint32(b) % 32)))
	case wasm.OpI32ShrS:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(a >> (uint32(b) % 32)))
	case wasm.OpI32ShrU:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(int32(uint32(a) >> (uint32(b) % 32))))
	case wasm.OpI32Rotl:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(int32(bits.RotateLeft32(uint32(a), int(uint32(b)%32)))))
	case wasm.OpI32Rotr:
		b, a := m.popI32(), m.popI32()
		m.push(values.I32(int32(bits.RotateLeft32(uint32(a), -int(uint32(b)%32)))))

	// i64 numerics
	case wasm.OpI64Clz:
		m.push(values.I64(int64(bits.LeadingZeros64(uint64(m.pop().AsI64())))))
	case wasm.OpI64Ctz:
		m.push(values.I64(int64(bits.TrailingZeros64(uint64(m.pop().AsI64())))))
	case wasm.OpI64Popcnt:
		m.push(values.I64(int64(bits.OnesCount64(uint64(m.pop().AsI64())))))
	case wasm.OpI64Add:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a + b))
	case wasm.OpI64Sub:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a - b))
	case wasm.OpI64Mul:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a * b))
	case wasm.OpI64DivS:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		if a == math.MinInt64 && b == -1 {
			m.trapWith("integer overflow")
			return
		}
		m.push(values.I64(a / b))
	case wasm.OpI64DivU:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		m.push(values.I64(int64(uint64(a) / uint64(b))))
	case wasm.OpI64RemS:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		if a == math.MinInt64 && b == -1 {
			m.push(values.I64(0))
		} else {
			m.push(values.I64(a % b))
		}
	case wasm.OpI64RemU:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		if b == 0 {
			m.trapWith("integer divide by zero")
			return
		}
		m.push(values.I64(int64(uint64(a) % uint64(b))))
	case wasm.OpI64And:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a & b))
	case wasm.OpI64Or:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a | b))
	case wasm.OpI64Xor:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a ^ b))
	case wasm.OpI64Shl:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a << (uint64(b) % 64)))
	case wasm.OpI64ShrS:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(a >> (uint64(b) % 64)))
	case wasm.OpI64ShrU:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(int64(uint64(a) >> (uint64(b) % 64))))
	case wasm.OpI64Rotl:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(int64(bits.RotateLeft64(uint64(a), int(uint64(b)%64)))))
	case wasm.OpI64Rotr:
		b, a := m.pop().AsI64(), m.pop().AsI64()
		m.push(values.I64(int64(bits.RotateLeft64(uint64(a), -int(uint64(b)%64)))))

	// f32 numerics
	case wasm.OpF32Abs:
		m.pushF32(float32(math.Abs(float64(m.pop().AsF32()))))
	case wasm.OpF32Neg:
		m.pushF32(-m.pop().AsF32())
	case wasm.OpF32Ceil:
		m.pushF32(float32(math.Ceil(float64(m.pop().AsF32()))))
	case wasm.OpF32Floor:
		m.pushF32(float32(math.Floor(float64(m.pop().AsF32()))))
	case wasm.OpF32Trunc:
		m.pushF32(float32(math.Trunc(float64(m.pop().AsF32()))))
	case wasm.OpF32Nearest:
		m.pushF32(float32(math.RoundToEven(float64(m.pop().AsF32()))))
	case wasm.OpF32Sqrt:
		m.pushF32(float32(math.Sqrt(float64(m.pop().AsF32()))))
	case wasm.OpF32Add:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.pushF32(a + b)
	case wasm.OpF32Sub:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.pushF32(a - b)
	case wasm.OpF32Mul:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.pushF32(a * b)
	case wasm.OpF32Div:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.pushF32(a / b)
	case wasm.OpF32Min:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.pushF32(float32(math.Min(float64(a), float64(b))))
	case wasm.OpF32Max:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.pushF32(float32(math.Max(float64(a), float64(b))))
	case wasm.OpF32Copysign:
		b, a := m.pop().AsF32(), m.pop().AsF32()
		m.pushF32(float32(math.Copysign(float64(a), float64(b))))

	// f64 numerics
	case wasm.OpF64Abs:
		m.pushF64(math.Abs(m.pop().AsF64()))
	case wasm.OpF64Neg:
		m.pushF64(-m.pop().AsF64())
	case wasm.OpF64Ceil:
		m.pushF64(math.Ceil(m.pop().AsF64()))
	case wasm.OpF64Floor:
		m.pushF64(math.Floor(m.pop().AsF64()))
	case wasm.OpF64Trunc:
		m.pushF64(math.Trunc(m.pop().AsF64()))
	case wasm.OpF64Nearest:
		m.pushF64(math.RoundToEven(m.pop().AsF64()))
	case wasm.OpF64Sqrt:
		m.pushF64(math.Sqrt(m.pop().AsF64()))
	case wasm.OpF64Add:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.pushF64(a + b)
	case wasm.OpF64Sub:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.pushF64(a - b)
	case wasm.OpF64Mul:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.pushF64(a * b)
	case wasm.OpF64Div:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.pushF64(a / b)
	case wasm.OpF64Min:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.pushF64(math.Min(a, b))
	case wasm.OpF64Max:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.pushF64(math.Max(a, b))
	case wasm.OpF64Copysign:
		b, a := m.pop().AsF64(), m.pop().AsF64()
		m.pushF64(math.Copysign(a, b))

	// conversions
	case wasm.OpI32WrapI64:
		m.push(values.I32(int32(m.pop().AsI64())))
	case wasm.OpI32TruncF32S:
		t, ok := m.truncF(float64(m.pop().AsF32()), math.MinInt32, 1<<31)
		if !ok {
			return
		}
		m.push(values.I32(int32(t)))
	case wasm.OpI32TruncF32U:
		t, ok := m.truncF(float64(m.pop().AsF32()), 0, 1<<32)
		if !ok {
			return
		}
		m.push(values.I32(int32(uint32(t))))
	case wasm.OpI32TruncF64S:
		t, ok := m.truncF(m.pop().AsF64(), math.MinInt32, 1<<31)
		if !ok {
			return
		}
		m.push(values.I32(int32(t)))
	case wasm.OpI32TruncF64U:
		t, ok := m.truncF(m.pop().AsF64(), 0, 1<<32)
		if !ok {
			return
		}
		m.push(values.I32(int32(uint32(t))))
	case wasm.OpI64ExtendI32S:
		m.push(values.I64(int64(m.popI32())))
	case wasm.OpI64ExtendI32U:
		m.push(values.I64(int64(uint32(m.popI32()))))
	case wasm.OpI64TruncF32S:
		t, ok := m.truncF(float64(m.pop().AsF32()), math.MinInt64, 1<<63)
		if !ok {
			return
		}
		m.push(values.I64(int64(t)))
	case wasm.OpI64TruncF32U:
		t, ok := m.truncF(float64(m.pop().AsF32()), 0, 1<<64)
		if !ok {
			return
		}
		m.push(values.I64(int64(uint64(t))))
	case wasm.OpI64TruncF64S:
		t, ok := m.truncF(m.pop().AsF64(), math.MinInt64, 1<<63)
		if !ok {
			return
		}
		m.push(values.I64(int64(t)))
	case wasm.OpI64TruncF64U:
		t, ok := m.truncF(m.pop().AsF64(), 0, 1<<64)
		if !ok {
			return
		}
		m.push(values.I64(int64(uint64(t))))
	case wasm.OpF32ConvertI32S:
		m.pushF32(float32(m.popI32()))
	case wasm.OpF32ConvertI32U:
		m.pushF32(float32(uint32(m.popI32())))
	case wasm.OpF32ConvertI64S:
		m.pushF32(float32(m.pop().AsI64()))
	case wasm.OpF32ConvertI64U:
		m.pushF32(float32(uint64(m.pop().AsI64())))
	case wasm.OpF32DemoteF64:
		m.pushF32(float32(m.pop().AsF64()))
	case wasm.OpF64ConvertI32S:
		m.pushF64(float64(m.popI32()))
	case wasm.OpF64ConvertI32U:
		m.pushF64(float64(uint32(m.popI32())))
	case wasm.OpF64ConvertI64S:
		m.pushF64(float64(m.pop().AsI64()))
	case wasm.OpF64ConvertI64U:
		m.pushF64(float64(uint64(m.pop().AsI64())))
	case wasm.OpF64PromoteF32:
		m.pushF64(float64(m.pop().AsF32()))
	case wasm.OpI32ReinterpretF32:
		m.push(values.FromBits(values.KindI32, m.pop().Bits()))
	case wasm.OpI64ReinterpretF64:
		m.push(values.FromBits(values.KindI64, m.pop().Bits()))
	case wasm.OpF32ReinterpretI32:
		m.push(values.FromBits(values.KindF32, m.pop().Bits()))
	case wasm.OpF64ReinterpretI64:
		m.push(values.FromBits(values.KindF64, m.pop().Bits()))

	// sign extensions
	case wasm.OpI32Extend8S:
		m.push(values.I32(int32(int8(m.popI32()))))
	case wasm.OpI32Extend16S:
		m.push(values.I32(int32(int16(m.popI32()))))
	case wasm.OpI64Extend8S:
		m.push(values.I64(int64(int8(m.pop().AsI64()))))
	case wasm.OpI64Extend16S:
		m.push(values.I64(int64(int16(m.pop().AsI64()))))
	case wasm.OpI64Extend32S:
		m.push(values.I64(int64(int32(m.pop().AsI64()))))

	default:
		panic("interp: opcode escaped validation")
	}
	f.pc++
}
