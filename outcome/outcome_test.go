package outcome_test

import (
	"testing"

	"github.com/wasmdiff/wasmdiff/outcome"
)

func TestFromCall(t *testing.T) {
	tests := []struct {
		name      string
		result    int32
		exception bool
		want      outcome.Outcome
	}{
		{"clean finish", 42, false, outcome.Finished(42, false)},
		{"sentinel finish", -1, false, outcome.Finished(-1, false)},
		{"exception", -1, true, outcome.Trapped(false)},
		{"exception ignores result", 7, true, outcome.Trapped(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outcome.FromCall(tt.result, tt.exception)
			if !got.Equal(tt.want) {
				t.Errorf("FromCall(%d, %v) = %v, want %v", tt.result, tt.exception, got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b outcome.Outcome
		want bool
	}{
		{"same finished", outcome.Finished(1, false), outcome.Finished(1, false), true},
		{"finished differs by result", outcome.Finished(1, false), outcome.Finished(2, false), false},
		{"nondeterminism ignored", outcome.Finished(1, true), outcome.Finished(1, false), true},
		{"trapped equal regardless of nondet", outcome.Trapped(true), outcome.Trapped(false), true},
		{"failed equal", outcome.Failed(), outcome.Failed(), true},
		{"status mismatch", outcome.Finished(0, false), outcome.Trapped(false), false},
		{"trap vs failed", outcome.Trapped(false), outcome.Failed(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	if s := outcome.Finished(5, false).String(); s != "finished(5)" {
		t.Errorf("String = %q", s)
	}
	if s := outcome.Finished(5, true).String(); s != "finished(5, nondeterministic)" {
		t.Errorf("String = %q", s)
	}
	if s := outcome.Trapped(false).String(); s != "trapped" {
		t.Errorf("String = %q", s)
	}
	if s := outcome.Failed().String(); s != "failed" {
		t.Errorf("String = %q", s)
	}
}
