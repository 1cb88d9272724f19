package values_test

import (
	"math"
	"testing"

	"github.com/wasmdiff/wasmdiff/values"
	"github.com/wasmdiff/wasmdiff/wasm"
)

func TestDefaults(t *testing.T) {
	tests := []struct {
		name string
		vt   wasm.ValType
		want values.Value
	}{
		{"i32", wasm.ValI32, values.I32(0)},
		{"i64", wasm.ValI64, values.I64(0)},
		{"f32", wasm.ValF32, values.F32(0)},
		{"f64", wasm.ValF64, values.F64(0)},
		{"funcref", wasm.ValFuncRef, values.Null()},
		{"externref", wasm.ValExtern, values.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := values.Default(tt.vt)
			if got.Kind != tt.want.Kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.want.Kind)
			}
			if got.Kind == values.KindRef {
				if !got.IsNull() {
					t.Error("default reference should be null")
				}
				return
			}
			if got.Bits() != tt.want.Bits() {
				t.Errorf("bits = %d, want %d", got.Bits(), tt.want.Bits())
			}
		})
	}
}

func TestDefaultUnsupportedKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for v128 default")
		}
	}()
	values.Default(wasm.ValV128)
}

func TestDefaultArgs(t *testing.T) {
	sig := &wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValF64, wasm.ValFuncRef}}
	args := values.DefaultArgs(sig)
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if args[0].AsI32() != 0 {
		t.Errorf("arg 0 = %d, want 0", args[0].AsI32())
	}
	if args[1].AsF64() != 0 {
		t.Errorf("arg 1 = %g, want 0", args[1].AsF64())
	}
	if !args[2].IsNull() {
		t.Error("arg 2 should be null")
	}
}

func TestNarrowI32(t *testing.T) {
	tests := []struct {
		name       string
		v          values.Value
		want       int32
		wantNondet bool
	}{
		{"i32 passthrough", values.I32(-7), -7, false},
		{"i64 low bits", values.I64(0x1_0000_002A), 42, false},
		{"i64 wrap negative", values.I64(-1), -1, false},
		{"i64 wrap large", values.I64(math.MaxInt64), -1, false},
		{"f32 truncate", values.F32(3.9), 3, false},
		{"f32 truncate negative", values.F32(-3.9), -3, false},
		{"f64 truncate", values.F64(-2.5), -2, false},
		{"f64 exact", values.F64(100), 100, false},
		{"f64 nan", values.F64(math.NaN()), 0, true},
		{"f32 positive overflow", values.F32(3e9), math.MaxInt32, true},
		{"f64 negative overflow", values.F64(-3e9), math.MinInt32, true},
		{"f64 inf", values.F64(math.Inf(1)), math.MaxInt32, true},
		{"f64 boundary below", values.F64(-2147483648), math.MinInt32, false},
		{"f64 boundary above", values.F64(2147483648), math.MaxInt32, true},
		{"null ref sentinel", values.Null(), -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, nondet := values.NarrowI32(tt.v)
			if got != tt.want {
				t.Errorf("result = %d, want %d", got, tt.want)
			}
			if nondet != tt.wantNondet {
				t.Errorf("nondet = %v, want %v", nondet, tt.wantNondet)
			}
		})
	}
}

func TestBitsRoundTrip(t *testing.T) {
	v := values.F64(math.Pi)
	back := values.FromBits(values.KindF64, v.Bits())
	if back.AsF64() != math.Pi {
		t.Errorf("round trip = %g, want %g", back.AsF64(), math.Pi)
	}
}

func TestAccessorKindMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for kind mismatch")
		}
	}()
	values.I32(1).AsF64()
}

func TestRefBitsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for reference bits")
		}
	}()
	values.Null().Bits()
}

func TestKindFor(t *testing.T) {
	if k, ok := values.KindFor(wasm.ValI64); !ok || k != values.KindI64 {
		t.Errorf("KindFor(i64) = %v, %v", k, ok)
	}
	if _, ok := values.KindFor(wasm.ValV128); ok {
		t.Error("v128 should be outside the value model")
	}
}
