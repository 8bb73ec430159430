// Package jit lowers method bodies to backend IR and makes them callable.
//
// A Unit is one compilation unit: it owns an IR module, the caches of
// compiled types and methods, the convertibility cache, the pass pipeline
// and the execution engine. A Unit has a single writer; callers that share
// one across goroutines must serialise access themselves. Only the
// resolve.Resolver passed in may be shared between units.
package jit

import (
	"fmt"

	"github.com/tliron/commonlog"

	"iljit/internal/exec"
	"iljit/internal/ir"
	"iljit/internal/layout"
	"iljit/internal/metadata"
	"iljit/internal/opt"
	"iljit/internal/resolve"
	"iljit/internal/trace"
)

// CompiledType pairs a type with its backend type. Members lists the
// instance fields of aggregates in body order.
type CompiledType struct {
	Source  *metadata.Type
	IR      *ir.Type
	Members []*metadata.Field
}

// CompiledMethod pairs a method with its backend function.
type CompiledMethod struct {
	Source *metadata.Method
	Func   *ir.Function
}

// Unit is a compilation unit.
type Unit struct {
	name   string
	res    *resolve.Resolver
	opts   Options
	log    commonlog.Logger
	tracer trace.Tracer

	mod    *ir.Module
	layout *layout.Engine
	passes *opt.Pipeline
	engine *exec.Engine
	verify func(*ir.Function) error

	types   map[*metadata.Type]*CompiledType
	methods map[*metadata.Method]*CompiledMethod
	casts   map[castKey]bool

	// open counts aggregates whose body is still being built.
	open int
	// journal is non-nil while a top-level request runs.
	journal *journal
	spans   []uint64
	closed  bool
}

// journal records what a top-level request registered so a failure can
// take it back.
type journal struct {
	types   []*metadata.Type
	methods []*metadata.Method
}

// NewUnit creates a unit named name that resolves tokens through res.
func NewUnit(name string, res *resolve.Resolver, opts Options) *Unit {
	opts = opts.withDefaults()
	mod := ir.NewModule(name)
	engine := exec.New(mod, opts.Exec)
	return &Unit{
		name:    name,
		res:     res,
		opts:    opts,
		log:     opts.Logger,
		tracer:  opts.Tracer,
		mod:     mod,
		layout:  engine.Layout(),
		passes:  opt.Default(),
		engine:  engine,
		verify:  ir.VerifyFunction,
		types:   make(map[*metadata.Type]*CompiledType),
		methods: make(map[*metadata.Method]*CompiledMethod),
		casts:   make(map[castKey]bool),
	}
}

// Name returns the unit name.
func (u *Unit) Name() string { return u.name }

// Module returns the IR module. It is nil after Close.
func (u *Unit) Module() *ir.Module { return u.mod }

// Layout returns the data layout used for sizes and offsets.
func (u *Unit) Layout() *layout.Engine { return u.layout }

// Resolver returns the resolver the unit resolves tokens through.
func (u *Unit) Resolver() *resolve.Resolver { return u.res }

// Optimizing reports whether compiled functions go through the pipeline.
func (u *Unit) Optimizing() bool { return u.opts.Optimize }

// request runs f as one all-or-nothing request. Nested requests join the
// outer one; only the outermost rolls back.
func request[T any](u *Unit, f func() (T, error)) (T, error) {
	var zero T
	if u.closed {
		return zero, ErrUnitClosed
	}
	if u.journal != nil {
		return f()
	}
	u.journal = &journal{}
	defer func() { u.journal = nil }()
	v, err := f()
	if err != nil {
		u.rollback()
		return zero, err
	}
	return v, nil
}

func (u *Unit) rollback() {
	j := u.journal
	for i := len(j.methods) - 1; i >= 0; i-- {
		m := j.methods[i]
		if cm, ok := u.methods[m]; ok {
			u.mod.RemoveFunction(cm.Func.Name)
			delete(u.methods, m)
		}
	}
	for i := len(j.types) - 1; i >= 0; i-- {
		t := j.types[i]
		if ct, ok := u.types[t]; ok {
			if ct.IR.Kind == ir.KindStruct {
				u.mod.RemoveStruct(ct.IR.Name)
			}
			delete(u.types, t)
		}
	}
	u.open = 0
}

// CompileType maps t to its backend type, compiling aggregates on first use.
func (u *Unit) CompileType(t *metadata.Type) (*CompiledType, error) {
	return request(u, func() (*CompiledType, error) { return u.compileType(t) })
}

// GetMethod returns the compiled function of m, compiling it on first use.
// The function is registered before its body is lowered, so recursive calls
// see it.
func (u *Unit) GetMethod(m *metadata.Method) (*CompiledMethod, error) {
	return request(u, func() (*CompiledMethod, error) { return u.compileMethod(m) })
}

// FunctionAddress compiles m if needed and returns its callable address.
func (u *Unit) FunctionAddress(m *metadata.Method) (uint64, error) {
	cm, err := u.GetMethod(m)
	if err != nil {
		return 0, err
	}
	return u.engine.FunctionAddress(cm.Func.Name)
}

// Invoke compiles m if needed and calls it. Arguments and the result use
// the raw encoding of package exec; aggregates travel by address.
func (u *Unit) Invoke(m *metadata.Method, args ...uint64) (uint64, error) {
	addr, err := u.FunctionAddress(m)
	if err != nil {
		return 0, err
	}
	return u.engine.CallAddress(addr, args...)
}

// Engine returns the execution engine, for reading results from memory.
func (u *Unit) Engine() *exec.Engine { return u.engine }

// Close releases the engine, then the pass pipeline, then the module.
func (u *Unit) Close() {
	if u.closed {
		return
	}
	u.closed = true
	u.engine.Close()
	u.passes.Close()
	u.mod = nil
	u.types = nil
	u.methods = nil
	u.casts = nil
}

// symbolName returns base, suffixed when another function or struct
// already uses it.
func (u *Unit) symbolName(base string, taken func(string) bool) string {
	name := base
	for i := 1; taken(name); i++ {
		name = fmt.Sprintf("%s.%d", base, i)
	}
	return name
}

func (u *Unit) parentSpan() uint64 {
	if n := len(u.spans); n > 0 {
		return u.spans[n-1]
	}
	return u.opts.TraceParent
}
