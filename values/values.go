// Package values defines the typed value model shared by the compiled and
// interpreted execution paths, together with the narrowing rules used to
// compare results across backends.
package values

import (
	"fmt"
	"math"

	"github.com/wasmdiff/wasmdiff/wasm"
)

// Kind identifies the active variant of a Value.
type Kind uint8

const (
	KindI32 Kind = iota
	KindI64
	KindF32
	KindF64
	KindRef // nullable reference (funcref or externref)
)

func (k Kind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Value is a tagged VM-level value. Numeric payloads are stored in bits
// using the same raw encoding for both execution paths; references carry
// their referent directly (nil means null).
type Value struct {
	Ref  any
	bits uint64
	Kind Kind
}

// I32 creates an i32 value.
func I32(v int32) Value {
	return Value{Kind: KindI32, bits: uint64(uint32(v))}
}

// I64 creates an i64 value.
func I64(v int64) Value {
	return Value{Kind: KindI64, bits: uint64(v)}
}

// F32 creates an f32 value.
func F32(v float32) Value {
	return Value{Kind: KindF32, bits: uint64(math.Float32bits(v))}
}

// F64 creates an f64 value.
func F64(v float64) Value {
	return Value{Kind: KindF64, bits: math.Float64bits(v)}
}

// Null creates a null reference value.
func Null() Value {
	return Value{Kind: KindRef}
}

// FuncRef creates a non-null function reference carrying a function index.
func FuncRef(funcIdx uint32) Value {
	return Value{Kind: KindRef, Ref: funcIdx}
}

// FromBits reconstructs a value of the given kind from its raw encoding.
// The raw encoding matches the wazero uint64 calling convention.
func FromBits(kind Kind, bits uint64) Value {
	if kind == KindRef {
		panic("values: references have no raw bit encoding")
	}
	return Value{Kind: kind, bits: bits}
}

// Bits returns the raw encoding of a numeric value.
func (v Value) Bits() uint64 {
	if v.Kind == KindRef {
		panic("values: references have no raw bit encoding")
	}
	return v.bits
}

// AsI32 returns the i32 payload. The value must hold an i32.
func (v Value) AsI32() int32 {
	v.mustBe(KindI32)
	return int32(uint32(v.bits))
}

// AsI64 returns the i64 payload. The value must hold an i64.
func (v Value) AsI64() int64 {
	v.mustBe(KindI64)
	return int64(v.bits)
}

// AsF32 returns the f32 payload. The value must hold an f32.
func (v Value) AsF32() float32 {
	v.mustBe(KindF32)
	return math.Float32frombits(uint32(v.bits))
}

// AsF64 returns the f64 payload. The value must hold an f64.
func (v Value) AsF64() float64 {
	v.mustBe(KindF64)
	return math.Float64frombits(v.bits)
}

// IsNull reports whether a reference value is null.
func (v Value) IsNull() bool {
	v.mustBe(KindRef)
	return v.Ref == nil
}

func (v Value) mustBe(k Kind) {
	if v.Kind != k {
		panic(fmt.Sprintf("values: %s value accessed as %s", v.Kind, k))
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindI32:
		return fmt.Sprintf("i32:%d", v.AsI32())
	case KindI64:
		return fmt.Sprintf("i64:%d", v.AsI64())
	case KindF32:
		return fmt.Sprintf("f32:%g", v.AsF32())
	case KindF64:
		return fmt.Sprintf("f64:%g", v.AsF64())
	case KindRef:
		if v.Ref == nil {
			return "ref:null"
		}
		return fmt.Sprintf("ref:%v", v.Ref)
	default:
		return "invalid"
	}
}

// KindFor maps a wire value type onto a value kind. The second result is
// false for types outside the value model (v128 and friends).
func KindFor(vt wasm.ValType) (Kind, bool) {
	switch vt {
	case wasm.ValI32:
		return KindI32, true
	case wasm.ValI64:
		return KindI64, true
	case wasm.ValF32:
		return KindF32, true
	case wasm.ValF64:
		return KindF64, true
	case wasm.ValFuncRef, wasm.ValExtern:
		return KindRef, true
	default:
		return 0, false
	}
}

// Default constructs the default value for a wire type: zero for numeric
// kinds, null for nullable reference kinds. Types with no defined default
// (v128, packed or non-nullable kinds) are a contract violation and panic;
// callers must not reach this with such a type.
func Default(vt wasm.ValType) Value {
	switch vt {
	case wasm.ValI32:
		return I32(0)
	case wasm.ValI64:
		return I64(0)
	case wasm.ValF32:
		return F32(0)
	case wasm.ValF64:
		return F64(0)
	case wasm.ValFuncRef, wasm.ValExtern:
		return Null()
	default:
		panic(fmt.Sprintf("values: no default value for type %s", vt))
	}
}

// DefaultArgs builds a positional default argument vector for the signature,
// one value per parameter. Used to invoke entry points without real inputs.
func DefaultArgs(sig *wasm.FuncType) []Value {
	args := make([]Value, len(sig.Params))
	for i, p := range sig.Params {
		args[i] = Default(p)
	}
	return args
}

// NarrowI32 reduces a value to the canonical 32-bit comparison result:
// i32 passes through, i64 keeps its low 32 bits (two's-complement wrap),
// floats truncate toward zero saturating at the int32 bounds. NaN narrows
// to 0. The second result reports whether the narrowing touched
// platform-sensitive behavior (NaN or out-of-range float), which callers
// fold into their nondeterminism tracking. Reference values narrow to the
// sentinel -1.
func NarrowI32(v Value) (int32, bool) {
	switch v.Kind {
	case KindI32:
		return v.AsI32(), false
	case KindI64:
		return int32(v.AsI64()), false
	case KindF32:
		return truncToI32(float64(v.AsF32()))
	case KindF64:
		return truncToI32(v.AsF64())
	default:
		return -1, false
	}
}

func truncToI32(f float64) (int32, bool) {
	if math.IsNaN(f) {
		return 0, true
	}
	t := math.Trunc(f)
	if t >= 1<<31 {
		return math.MaxInt32, true
	}
	if t < -(1 << 31) {
		return math.MinInt32, true
	}
	return int32(t), false
}
