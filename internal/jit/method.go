package jit

import (
	"fmt"

	"iljit/internal/ir"
	"iljit/internal/metadata"
	"iljit/internal/trace"
)

// methodName is the IR name of a method: declaring type, method name and
// metadata token.
func methodName(m *metadata.Method) string {
	owner := "<module>"
	if m.DeclaringType != nil {
		owner = m.DeclaringType.String()
	}
	return fmt.Sprintf("%s.%s_0x%x", owner, m.Name, uint32(m.Token))
}

// signature returns the source parameter types of m, receiver first for
// instance methods, together with the backend function type.
func (u *Unit) signature(m *metadata.Method) ([]*metadata.Type, *ir.Type, error) {
	var params []*metadata.Type
	if m.IsInstance() {
		if m.DeclaringType == nil {
			return nil, nil, fmt.Errorf("instance method %s has no declaring type", m.Name)
		}
		params = append(params, m.DeclaringType.MakeByRef())
	}
	for _, p := range m.Params {
		params = append(params, p.Type)
	}
	irParams := make([]*ir.Type, len(params))
	for i, p := range params {
		t, err := u.irType(p)
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %d of %s: %w", i, m, err)
		}
		if t.Kind == ir.KindVoid {
			return nil, nil, &UnsupportedTypeError{Type: p, Reason: "void parameter"}
		}
		irParams[i] = t
	}
	ret, err := u.irType(m.ReturnType())
	if err != nil {
		return nil, nil, fmt.Errorf("return type of %s: %w", m, err)
	}
	return params, ir.FuncType(ret, irParams...), nil
}

// compileMethod registers m's function before lowering its body, so calls
// back into m resolve to the function being built. Instance methods of
// reference types fail when their receiver type is compiled.
func (u *Unit) compileMethod(m *metadata.Method) (*CompiledMethod, error) {
	if cm, ok := u.methods[m]; ok {
		return cm, nil
	}
	params, sig, err := u.signature(m)
	if err != nil {
		return nil, err
	}
	name := u.symbolName(methodName(m), func(n string) bool {
		_, taken := u.mod.NamedFunction(n)
		return taken
	})
	fn, err := u.mod.AddFunction(name, sig)
	if err != nil {
		return nil, err
	}
	cm := &CompiledMethod{Source: m, Func: fn}
	u.methods[m] = cm
	if u.journal != nil {
		u.journal.methods = append(u.journal.methods, m)
	}
	if m.Body == nil {
		u.log.Debugf("declared %s as %s", m, fn.Name)
		return cm, nil
	}

	span := trace.Begin(u.tracer, trace.ScopeMethod, m.String(), u.parentSpan())
	u.spans = append(u.spans, span.ID())
	defer func() { u.spans = u.spans[:len(u.spans)-1] }()

	blocks, err := u.lowerBody(m, fn, params)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	if err := u.verify(fn); err != nil {
		span.Fail(err)
		u.opts.Fatal(m, fn, err)
		return nil, &VerificationError{Method: m, Function: fn.Name, Err: err}
	}
	if u.opts.Optimize {
		for _, r := range u.passes.Run(fn) {
			if r.Changed {
				span.Attr(r.Pass, "changed")
			}
		}
	}
	span.IntAttr("blocks", blocks).End("ok")
	u.log.Debugf("compiled %s as %s (%d blocks)", m, fn.Name, blocks)
	return cm, nil
}

// partition runs block discovery over code and gives every span a backend
// block named after its start offset.
func (u *Unit) partition(fn *ir.Function, m *metadata.Method) ([]Span, map[int]*ir.Block, error) {
	spans, err := DiscoverBlocks(m.Body.Code)
	if err != nil {
		switch e := err.(type) {
		case *DiscoveryError:
			e.Method = m
		case *UnsupportedInstructionError:
			e.Method = m
		}
		return nil, nil, err
	}
	blocks := make(map[int]*ir.Block, len(spans))
	for _, sp := range spans {
		blocks[sp.Start] = fn.AddBlock(fmt.Sprintf("IL_%04x", sp.Start))
	}
	return spans, blocks, nil
}
