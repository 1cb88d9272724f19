// Package engine wraps wazero behind the narrow compile/instantiate/call
// surface the harness consumes. It is the natively compiled execution path;
// the reference interpreter lives in package interp.
package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmdiff/wasmdiff/errors"
	"github.com/wasmdiff/wasmdiff/values"
)

// Config holds optional engine configuration
type Config struct {
	// MemoryLimitPages caps instance memory; 0 means the wazero default.
	MemoryLimitPages uint32
}

// Engine owns a wazero runtime. One engine can compile and instantiate many
// modules; Close releases all of them.
type Engine struct {
	runtime wazero.Runtime
}

// New creates a new engine with default configuration
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a new engine with custom configuration
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &Engine{runtime: runtime}, nil
}

// Close releases all engine resources, including outstanding instances.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile decodes, validates, and natively compiles module bytes.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (*CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		Logger().Debug("compile failed", zap.Error(err))
		return nil, errors.Compile(err)
	}
	return &CompiledModule{engine: e, compiled: compiled}, nil
}

// CompiledModule is a validated, natively compiled module.
type CompiledModule struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// Close releases the compiled code.
func (m *CompiledModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instantiate links and instantiates the module with no imports and no host
// modules, which is the default harness configuration. Instantiation runs
// the start function if one is declared.
func (m *CompiledModule) Instantiate(ctx context.Context) (*Instance, error) {
	// Anonymous name so repeated instantiation of one module never collides
	modConfig := wazero.NewModuleConfig().WithName("")
	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	return &Instance{
		instance:  instance,
		funcCache: make(map[string]*Func),
	}, nil
}

// Instance is a linked, executable realization of a module. It is not safe
// for concurrent use.
type Instance struct {
	instance  api.Module
	funcCache map[string]*Func
}

// Close releases the instance state.
func (i *Instance) Close(ctx context.Context) error {
	return i.instance.Close(ctx)
}

// MemorySize returns the current linear memory size in bytes, or 0 if the
// instance has no memory.
func (i *Instance) MemorySize() uint32 {
	mem := i.instance.Memory()
	if mem == nil {
		return 0
	}
	return mem.Size()
}

// Func is a callable exported function.
type Func struct {
	fn      api.Function
	params  []values.Kind
	results []values.Kind
}

// ParamKinds returns the parameter kinds in declaration order.
func (f *Func) ParamKinds() []values.Kind {
	return f.params
}

// ResultKinds returns the result kinds in declaration order.
func (f *Func) ResultKinds() []values.Kind {
	return f.results
}

// ExportedFunction returns the callable exported under name, or nil when the
// export is absent or is not a function. Lookup is idempotent: repeated
// calls return the identical handle.
func (i *Instance) ExportedFunction(name string) *Func {
	if f, ok := i.funcCache[name]; ok {
		return f
	}
	fn := i.instance.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	def := fn.Definition()
	f := &Func{
		fn:      fn,
		params:  kindsFor(def.ParamTypes()),
		results: kindsFor(def.ResultTypes()),
	}
	i.funcCache[name] = f
	return f
}

func kindsFor(types []api.ValueType) []values.Kind {
	kinds := make([]values.Kind, len(types))
	for i, t := range types {
		switch t {
		case api.ValueTypeI32:
			kinds[i] = values.KindI32
		case api.ValueTypeI64:
			kinds[i] = values.KindI64
		case api.ValueTypeF32:
			kinds[i] = values.KindF32
		case api.ValueTypeF64:
			kinds[i] = values.KindF64
		default:
			kinds[i] = values.KindRef
		}
	}
	return kinds
}

// Call invokes the function with the supplied typed arguments and decodes
// the typed results. Traps, runtime faults, and host panics all surface as
// the returned error; a panic during the call is recovered here so a fault
// can never leak into the caller's next unrelated operation.
func (f *Func) Call(ctx context.Context, args []values.Value) (results []values.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = errors.HostFault(fmt.Errorf("panic during call: %v", r))
		}
	}()

	stack := make([]uint64, len(args))
	for i, a := range args {
		if a.Kind == values.KindRef {
			if !a.IsNull() {
				return nil, errors.Unsupported(errors.PhaseCall, "non-null reference argument")
			}
			stack[i] = 0
			continue
		}
		stack[i] = a.Bits()
	}

	raw, err := f.fn.Call(ctx, stack...)
	if err != nil {
		return nil, errors.HostFault(err)
	}

	if len(raw) < len(f.results) {
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidData).
			Detail("call returned %d results, want %d", len(raw), len(f.results)).
			Build()
	}
	results = make([]values.Value, len(f.results))
	for i, kind := range f.results {
		if kind == values.KindRef {
			results[i] = values.Null()
			continue
		}
		results[i] = values.FromBits(kind, raw[i])
	}
	return results, nil
}
