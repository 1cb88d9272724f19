// Package wasmdiff provides a differential execution harness for WebAssembly
// core modules. It compiles a module binary, instantiates it, and invokes an
// exported function through two independent execution paths: a natively
// compiled path (wazero) and a step-bounded reference interpreter. Both
// outcomes are normalized into a small canonical result so the two backends
// can be compared for equivalence, e.g. by a fuzzer.
//
// # Architecture Overview
//
// The repository is organized into packages with distinct responsibilities:
//
//	wasmdiff/
//	├── harness/     High-level API: load, resolve exports, run both paths
//	├── engine/      Low-level wazero integration (compiled path)
//	├── interp/      Step-bounded reference interpreter
//	├── outcome/     Canonical three-way result taxonomy
//	├── values/      VM value model and i32 narrowing rules
//	├── wasm/        Core module binary decode/encode/validate
//	└── errors/      Structured error types for diagnostics
//
// # Quick Start
//
// Run an exported function through both backends and compare:
//
//	h, err := harness.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	cmp, err := h.RunBoth(ctx, moduleBytes, "main")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !cmp.Match() {
//	    fmt.Println("backend divergence:", cmp)
//	}
//
// # Execution Model
//
// Each harness invocation executes to completion on the caller's goroutine.
// The reference interpreter is bounded to interp.StepBudget steps per run;
// a function that does not reach a terminal state within the budget is
// reported as failed rather than hanging the caller. Instances are not safe
// for concurrent use; callers must serialize access.
package wasmdiff
