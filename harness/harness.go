// Package harness layers the differential execution surface over the two
// backends: module loading, export resolution, compiled-path invocation, the
// interpreter driver, and the cross-backend comparison itself.
package harness

import (
	"context"

	"go.uber.org/zap"

	"github.com/wasmdiff/wasmdiff/engine"
	"github.com/wasmdiff/wasmdiff/errors"
	"github.com/wasmdiff/wasmdiff/interp"
	"github.com/wasmdiff/wasmdiff/wasm"
)

// Config holds optional harness configuration
type Config struct {
	// Logger replaces the default no-op logger.
	Logger *zap.Logger

	// Engine configures the compiled-path engine.
	Engine *engine.Config
}

// Harness owns a compiled-path engine and drives both execution paths.
type Harness struct {
	engine *engine.Engine
	log    *zap.Logger
}

// New creates a harness with default configuration
func New(ctx context.Context) (*Harness, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a harness with custom configuration
func NewWithConfig(ctx context.Context, cfg *Config) (*Harness, error) {
	var engineCfg *engine.Config
	log := zap.NewNop()
	if cfg != nil {
		engineCfg = cfg.Engine
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}
	eng, err := engine.NewWithConfig(ctx, engineCfg)
	if err != nil {
		return nil, err
	}
	return &Harness{engine: eng, log: log}, nil
}

// Close releases the engine and every instance created through it.
func (h *Harness) Close(ctx context.Context) error {
	return h.engine.Close(ctx)
}

// Module is a decoded, validated, and natively compiled module, ready to
// instantiate.
type Module struct {
	decoded  *wasm.Module
	compiled *engine.CompiledModule
}

// Decoded returns the decoded module structure.
func (m *Module) Decoded() *wasm.Module {
	return m.decoded
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// CompileModule decodes, validates, and compiles module bytes. On any
// failure it reports exactly one diagnostic to the sink and returns nil, so
// sink.Failed() holds iff the result is nil.
func (h *Harness) CompileModule(ctx context.Context, wasmBytes []byte, sink *DiagnosticSink) *Module {
	decoded, err := wasm.ParseModule(wasmBytes)
	if err != nil {
		h.log.Debug("decode failed", zap.String("op", sink.Context()), zap.Error(err))
		sink.Report(errors.Decode(err))
		return nil
	}
	if err := decoded.Validate(); err != nil {
		h.log.Debug("validation failed", zap.String("op", sink.Context()), zap.Error(err))
		sink.Report(errors.Validation("validate module", err))
		return nil
	}
	compiled, err := h.engine.Compile(ctx, wasmBytes)
	if err != nil {
		h.log.Debug("compile failed", zap.String("op", sink.Context()), zap.Error(err))
		sink.Report(asStructured(err, errors.PhaseCompile, errors.KindInvalidData))
		return nil
	}
	return &Module{decoded: decoded, compiled: compiled}
}

// Instance holds one realization of a module on both execution paths: the
// wazero instance for compiled calls and the reference interpreter machine
// over the decoded module. It is not safe for concurrent use.
type Instance struct {
	module   *Module
	compiled *engine.Instance
	machine  *interp.Machine
}

// Module returns the module this instance was created from.
func (i *Instance) Module() *Module {
	return i.module
}

// Machine returns the reference interpreter machine.
func (i *Instance) Machine() *interp.Machine {
	return i.machine
}

// Close releases the compiled-path instance state. Interpreter state is
// garbage collected.
func (i *Instance) Close(ctx context.Context) error {
	return i.compiled.Close(ctx)
}

// CompileAndInstantiate compiles the bytes and instantiates on both paths,
// with no imports and no host modules. It short-circuits on compile failure
// and reports exactly one diagnostic per failure.
func (h *Harness) CompileAndInstantiate(ctx context.Context, wasmBytes []byte, sink *DiagnosticSink) *Instance {
	mod := h.CompileModule(ctx, wasmBytes, sink)
	if mod == nil {
		return nil
	}

	compiled, err := mod.compiled.Instantiate(ctx)
	if err != nil {
		h.log.Debug("instantiation failed", zap.String("op", sink.Context()), zap.Error(err))
		sink.Report(asStructured(err, errors.PhaseInstantiate, errors.KindInstantiation))
		return nil
	}

	machine, err := interp.New(mod.decoded)
	if err != nil {
		h.log.Debug("interpreter instantiation failed", zap.String("op", sink.Context()), zap.Error(err))
		compiled.Close(ctx)
		sink.Report(asStructured(err, errors.PhaseInstantiate, errors.KindInstantiation))
		return nil
	}

	return &Instance{module: mod, compiled: compiled, machine: machine}
}

// asStructured passes a structured error through unchanged and wraps
// anything else with the given phase and kind.
func asStructured(err error, phase errors.Phase, kind errors.Kind) *errors.Error {
	if e, ok := err.(*errors.Error); ok {
		return e
	}
	return errors.Wrap(phase, kind, err, "")
}
