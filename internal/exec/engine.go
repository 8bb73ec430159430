// Package exec runs IR functions against a byte-addressed memory.
//
// Every runtime value is a raw 64-bit pattern in the encoding shared with
// the folding passes (see ir.EvalBinary). Aggregate values are carried as
// the address of a copy owned by the frame that produced them.
package exec

import (
	"fmt"
	"sync"

	"fortio.org/safecast"

	"iljit/internal/ir"
	"iljit/internal/layout"
)

// Config bounds the resources of an engine. Zero fields take defaults.
type Config struct {
	MaxDepth  int
	StackSize int
	HeapSize  int
}

const (
	defaultMaxDepth  = 512
	defaultStackSize = 1 << 20
	defaultHeapSize  = 64 << 20
)

// Engine executes functions of one IR module.
type Engine struct {
	mu     sync.Mutex
	mod    *ir.Module
	layout *layout.Engine
	cfg    Config

	heap  region
	stack region

	frames []*frame

	addrs  map[*ir.Function]uint64
	byAddr map[uint64]*ir.Function
	closed bool
}

type frame struct {
	fn   *ir.Function
	args []uint64
	vals map[*ir.Instr]uint64
}

// New creates an engine for m.
func New(m *ir.Module, cfg Config) *Engine {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = defaultStackSize
	}
	if cfg.HeapSize <= 0 {
		cfg.HeapSize = defaultHeapSize
	}
	return &Engine{
		mod:    m,
		layout: layout.New(layout.Host()),
		cfg:    cfg,
		heap:   region{base: heapBase},
		stack:  region{base: stackBase},
		addrs:  make(map[*ir.Function]uint64),
		byAddr: make(map[uint64]*ir.Function),
	}
}

// Layout returns the data layout the engine uses for memory access.
func (e *Engine) Layout() *layout.Engine { return e.layout }

// Close releases all memory. Later operations fail with ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.heap = region{base: heapBase}
	e.stack = region{base: stackBase}
	e.frames = nil
}

func (e *Engine) addressOf(fn *ir.Function) uint64 {
	if a, ok := e.addrs[fn]; ok {
		return a
	}
	a := funcBase + uint64(len(e.addrs)+1)*funcStep
	e.addrs[fn] = a
	e.byAddr[a] = fn
	return a
}

// FunctionAddress returns the callable address of the named function.
func (e *Engine) FunctionAddress(name string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	fn, ok := e.mod.NamedFunction(name)
	if !ok {
		return 0, fmt.Errorf("function %q not found in module %s", name, e.mod.Name)
	}
	if fn.IsDeclaration() {
		return 0, e.fault(FaultUndefined, "function %s has no body", fn.Name)
	}
	return e.addressOf(fn), nil
}

// Call runs the named function.
func (e *Engine) Call(name string, args ...uint64) (uint64, error) {
	addr, err := e.FunctionAddress(name)
	if err != nil {
		return 0, err
	}
	return e.CallAddress(addr, args...)
}

// CallAddress runs the function at addr. Aggregate results are copied to
// the heap and returned by address.
func (e *Engine) CallAddress(addr uint64, args ...uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	fn, ok := e.byAddr[addr]
	if !ok {
		return 0, e.fault(FaultBadAddress, "no function at 0x%x", addr)
	}
	if len(args) != len(fn.Params) {
		return 0, fmt.Errorf("%s expects %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}
	v, agg, f := e.run(fn, args)
	if f != nil {
		e.frames = nil
		e.stack.top = 0
		return 0, f
	}
	if agg != nil {
		return e.allocLocked(agg, fn.ReturnType())
	}
	return v, nil
}

// Alloc reserves size zeroed heap bytes aligned to 8.
func (e *Engine) Alloc(size int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	addr, ok := e.heap.bump(size, 8, e.cfg.HeapSize)
	if !ok {
		return 0, e.fault(FaultBadAddress, "heap exhausted allocating %d bytes", size)
	}
	return addr, nil
}

func (e *Engine) allocLocked(data []byte, t *ir.Type) (uint64, error) {
	align, err := e.layout.AlignOf(t)
	if err != nil {
		return 0, err
	}
	addr, ok := e.heap.bump(len(data), align, e.cfg.HeapSize)
	if !ok {
		return 0, e.fault(FaultBadAddress, "heap exhausted allocating %d bytes", len(data))
	}
	b, _ := e.bytes(addr, len(data))
	copy(b, data)
	return addr, nil
}

// Read copies n bytes at addr.
func (e *Engine) Read(addr uint64, n int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	b, f := e.bytes(addr, n)
	if f != nil {
		return nil, f
	}
	return append([]byte(nil), b...), nil
}

// Write copies data to addr.
func (e *Engine) Write(addr uint64, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	b, f := e.bytes(addr, len(data))
	if f != nil {
		return f
	}
	copy(b, data)
	return nil
}

// ReadValue loads a value of type t from addr.
func (e *Engine) ReadValue(addr uint64, t *ir.Type) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	v, f := e.load(addr, t)
	if f != nil {
		return 0, f
	}
	return v, nil
}

func (e *Engine) sizeOf(t *ir.Type) (int, *Fault) {
	n, err := e.layout.SizeOf(t)
	if err != nil {
		return 0, e.fault(FaultBadValue, "%v", err)
	}
	return n, nil
}

func (e *Engine) stackAlloc(t *ir.Type, count int) (uint64, *Fault) {
	size, f := e.sizeOf(t)
	if f != nil {
		return 0, f
	}
	align, _ := e.layout.AlignOf(t)
	addr, ok := e.stack.bump(size*count, align, e.cfg.StackSize)
	if !ok {
		return 0, e.fault(FaultStackOverflow, "stack exhausted allocating %d x %s", count, t)
	}
	return addr, nil
}

func (e *Engine) load(addr uint64, t *ir.Type) (uint64, *Fault) {
	switch t.Kind {
	case ir.KindInt:
		b, f := e.bytes(addr, (t.Bits+7)/8)
		if f != nil {
			return 0, f
		}
		return uint64(ir.SignExtend(int64(readUint(b)), t.Bits)), nil
	case ir.KindFloat:
		b, f := e.bytes(addr, 4)
		if f != nil {
			return 0, f
		}
		return readUint(b), nil
	case ir.KindDouble, ir.KindPointer:
		b, f := e.bytes(addr, 8)
		if f != nil {
			return 0, f
		}
		return readUint(b), nil
	case ir.KindStruct:
		size, f := e.sizeOf(t)
		if f != nil {
			return 0, f
		}
		src, f := e.bytes(addr, size)
		if f != nil {
			return 0, f
		}
		tmp, f := e.stackAlloc(t, 1)
		if f != nil {
			return 0, f
		}
		dst, _ := e.bytes(tmp, size)
		copy(dst, src)
		return tmp, nil
	default:
		return 0, e.fault(FaultBadValue, "cannot load a value of type %s", t)
	}
}

func (e *Engine) store(addr uint64, t *ir.Type, v uint64) *Fault {
	switch t.Kind {
	case ir.KindInt:
		b, f := e.bytes(addr, (t.Bits+7)/8)
		if f != nil {
			return f
		}
		writeUint(b, ir.ZeroExtend(int64(v), t.Bits))
		return nil
	case ir.KindFloat:
		b, f := e.bytes(addr, 4)
		if f != nil {
			return f
		}
		writeUint(b, v)
		return nil
	case ir.KindDouble, ir.KindPointer:
		b, f := e.bytes(addr, 8)
		if f != nil {
			return f
		}
		writeUint(b, v)
		return nil
	case ir.KindStruct:
		size, f := e.sizeOf(t)
		if f != nil {
			return f
		}
		src, f := e.bytes(v, size)
		if f != nil {
			return f
		}
		dst, f := e.bytes(addr, size)
		if f != nil {
			return f
		}
		copy(dst, src)
		return nil
	default:
		return e.fault(FaultBadValue, "cannot store a value of type %s", t)
	}
}

func (e *Engine) value(fr *frame, v ir.Value) (uint64, *Fault) {
	switch x := v.(type) {
	case *ir.Instr:
		r, ok := fr.vals[x]
		if !ok {
			return 0, e.fault(FaultBadValue, "use of %s before it is computed", x.Ref())
		}
		return r, nil
	case *ir.Param:
		return fr.args[x.Index], nil
	case *ir.Function:
		return e.addressOf(x), nil
	case *ir.Undef:
		return 0, nil
	}
	if bits, ok := ir.ConstBits(v); ok {
		return bits, nil
	}
	return 0, e.fault(FaultBadValue, "unsupported operand %T", v)
}

// run executes fn. Aggregate results come back as a byte copy because the
// frame that held them is released before the caller sees them.
func (e *Engine) run(fn *ir.Function, args []uint64) (uint64, []byte, *Fault) {
	if len(e.frames) >= e.cfg.MaxDepth {
		return 0, nil, e.fault(FaultStackOverflow, "call depth limit %d reached", e.cfg.MaxDepth)
	}
	if fn.IsDeclaration() {
		return 0, nil, e.fault(FaultUndefined, "call to undefined function %s", fn.Name)
	}
	fr := &frame{fn: fn, args: args, vals: make(map[*ir.Instr]uint64)}
	e.frames = append(e.frames, fr)
	mark := e.stack.top
	defer func() {
		e.frames = e.frames[:len(e.frames)-1]
		e.stack.top = mark
	}()

	b := fn.Entry()
	for {
		next, ret, done, f := e.block(fr, b)
		if f != nil {
			return 0, nil, f
		}
		if !done {
			b = next
			continue
		}
		rt := fn.ReturnType()
		if rt.Kind != ir.KindStruct {
			return ret, nil, nil
		}
		size, f := e.sizeOf(rt)
		if f != nil {
			return 0, nil, f
		}
		src, f := e.bytes(ret, size)
		if f != nil {
			return 0, nil, f
		}
		return 0, append([]byte(nil), src...), nil
	}
}

func (e *Engine) block(fr *frame, b *ir.Block) (*ir.Block, uint64, bool, *Fault) {
	for _, in := range b.Instrs {
		ops := make([]uint64, len(in.Operands))
		for i, op := range in.Operands {
			v, f := e.value(fr, op)
			if f != nil {
				return nil, 0, false, f
			}
			ops[i] = v
		}
		switch in.Op {
		case ir.OpBr:
			return in.Targets[0], 0, false, nil
		case ir.OpCondBr:
			if Bool(ops[0]) {
				return in.Targets[0], 0, false, nil
			}
			return in.Targets[1], 0, false, nil
		case ir.OpRet:
			if len(ops) == 0 {
				return nil, 0, true, nil
			}
			return nil, ops[0], true, nil
		}
		v, f := e.instr(fr, in, ops)
		if f != nil {
			return nil, 0, false, f
		}
		if in.HasValue() {
			fr.vals[in] = v
		}
	}
	return nil, 0, false, e.fault(FaultBadValue, "block %s has no terminator", b.Name)
}

func (e *Engine) instr(fr *frame, in *ir.Instr, ops []uint64) (uint64, *Fault) {
	switch {
	case in.Op == ir.OpAlloca:
		count := 1
		if len(ops) == 1 {
			n, err := safecast.Conv[int](int64(ops[0]))
			if err != nil || n < 0 {
				return 0, e.fault(FaultBadValue, "alloca count %d", int64(ops[0]))
			}
			count = n
		}
		return e.stackAlloc(in.Allocated, count)
	case in.Op == ir.OpLoad:
		return e.load(ops[0], in.Typ)
	case in.Op == ir.OpStore:
		return 0, e.store(ops[1], in.Operands[0].Type(), ops[0])
	case in.Op == ir.OpStructGEP:
		st := in.Operands[0].Type().Elem
		off, err := e.layout.FieldOffset(st, in.Index)
		if err != nil {
			return 0, e.fault(FaultBadValue, "%v", err)
		}
		return ops[0] + uint64(off), nil
	case in.Op.IsBinary():
		v, err := ir.EvalBinary(in.Op, in.Typ, ops[0], ops[1])
		if err != nil {
			return 0, e.fault(FaultUnimplemented, "%v", err)
		}
		return v, nil
	case in.Op == ir.OpICmp || in.Op == ir.OpFCmp:
		return ir.BoolBits(ir.EvalCompare(in.Pred, in.Operands[0].Type(), ops[0], ops[1])), nil
	case in.Op == ir.OpSelect:
		if Bool(ops[0]) {
			return ops[1], nil
		}
		return ops[2], nil
	case in.Op.IsCast():
		v, err := ir.EvalCast(in.Op, in.Operands[0].Type(), in.Typ, ops[0])
		if err != nil {
			return 0, e.fault(FaultUnimplemented, "%v", err)
		}
		return v, nil
	case in.Op == ir.OpCall:
		return e.call(in, ops)
	}
	return 0, e.fault(FaultUnimplemented, "instruction %s", in.Op)
}

func (e *Engine) call(in *ir.Instr, ops []uint64) (uint64, *Fault) {
	if in.Callee.Name == ir.MemsetName {
		n, err := safecast.Conv[int](int64(ops[2]))
		if err != nil || n < 0 {
			return 0, e.fault(FaultBadValue, "memset length %d", int64(ops[2]))
		}
		b, f := e.bytes(ops[0], n)
		if f != nil {
			return 0, f
		}
		for i := range b {
			b[i] = byte(ops[1])
		}
		return 0, nil
	}
	v, agg, f := e.run(in.Callee, ops)
	if f != nil {
		return 0, f
	}
	if agg == nil {
		return v, nil
	}
	tmp, f := e.stackAlloc(in.Typ, 1)
	if f != nil {
		return 0, f
	}
	dst, _ := e.bytes(tmp, len(agg))
	copy(dst, agg)
	return tmp, nil
}
