// Package outcome defines the canonical three-way result taxonomy shared by
// the compiled and interpreted execution paths. Canonicalization is pure
// data mapping: every raw result either path can produce maps onto exactly
// one Outcome.
package outcome

import "fmt"

// Status classifies a terminal execution state.
type Status uint8

const (
	// StatusFinished means execution completed without trapping, raising,
	// or exceeding the step budget.
	StatusFinished Status = iota

	// StatusTrapped means the VM itself raised a well-defined abnormal
	// termination (out-of-bounds access, unreachable, ...).
	StatusTrapped

	// StatusFailed covers everything outside the VM's own semantics:
	// missing exports, host faults, stack exhaustion, and step budget
	// exhaustion. The harness deliberately does not distinguish these.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFinished:
		return "finished"
	case StatusTrapped:
		return "trapped"
	case StatusFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Outcome is the canonical result of one execution. Result is meaningful
// only for StatusFinished. Nondeterminism reports whether execution touched
// an operation with platform-dependent semantics; fuzzers use it to decide
// whether a cross-backend mismatch is a real bug or expected divergence, so
// it is carried on the trap path too.
type Outcome struct {
	Result         int32
	Status         Status
	Nondeterminism bool
}

// Finished builds a completed outcome with the narrowed 32-bit result.
func Finished(result int32, nondeterminism bool) Outcome {
	return Outcome{Status: StatusFinished, Result: result, Nondeterminism: nondeterminism}
}

// Trapped builds a trap outcome.
func Trapped(nondeterminism bool) Outcome {
	return Outcome{Status: StatusTrapped, Nondeterminism: nondeterminism}
}

// Failed builds a failure outcome.
func Failed() Outcome {
	return Outcome{Status: StatusFailed}
}

// FromCall canonicalizes a compiled-path invocation result. A call that
// raised maps to Trapped: on the compiled path VM traps surface through the
// same fault channel as any call-time exception, so the two are not
// separable there.
func FromCall(result int32, exception bool) Outcome {
	if exception {
		return Trapped(false)
	}
	return Finished(result, false)
}

// Equal reports whether two outcomes are equivalent for cross-backend
// comparison: same status, and for finished runs the same narrowed result.
// The nondeterminism flag explains divergence rather than defining it, so
// it is excluded.
func (o Outcome) Equal(other Outcome) bool {
	if o.Status != other.Status {
		return false
	}
	if o.Status == StatusFinished {
		return o.Result == other.Result
	}
	return true
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusFinished:
		if o.Nondeterminism {
			return fmt.Sprintf("finished(%d, nondeterministic)", o.Result)
		}
		return fmt.Sprintf("finished(%d)", o.Result)
	case StatusTrapped:
		if o.Nondeterminism {
			return "trapped(nondeterministic)"
		}
		return "trapped"
	default:
		return "failed"
	}
}
