package harness

import "github.com/wasmdiff/wasmdiff/errors"

// DiagnosticSink collects structured diagnostics for one named harness
// operation. Loader operations report exactly one diagnostic per failure,
// so after any loader call sink.Failed() holds iff the result was nil.
type DiagnosticSink struct {
	context string
	errs    []*errors.Error
}

// NewSink creates a sink labeled with the operation it covers.
func NewSink(context string) *DiagnosticSink {
	return &DiagnosticSink{context: context}
}

// Context returns the operation label given at construction.
func (s *DiagnosticSink) Context() string {
	return s.context
}

// Report records a diagnostic.
func (s *DiagnosticSink) Report(err *errors.Error) {
	if err == nil {
		return
	}
	s.errs = append(s.errs, err)
}

// Failed reports whether any diagnostic has been recorded.
func (s *DiagnosticSink) Failed() bool {
	return len(s.errs) > 0
}

// Err returns the first recorded diagnostic, or nil.
func (s *DiagnosticSink) Err() error {
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[0]
}

// Count returns the number of recorded diagnostics.
func (s *DiagnosticSink) Count() int {
	return len(s.errs)
}

// Reset discards all recorded diagnostics so the sink can cover another
// operation.
func (s *DiagnosticSink) Reset() {
	s.errs = nil
}
