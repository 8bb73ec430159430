package trace

import (
	"strconv"
	"time"
)

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeCommand is one CLI invocation.
	ScopeCommand Scope = iota + 1
	// ScopeStage is a pipeline stage: load, build or compile.
	ScopeStage
	// ScopeMethod is the compilation of one method.
	ScopeMethod
	// ScopeBlock is the lowering of one basic block.
	ScopeBlock
)

func (s Scope) String() string {
	switch s {
	case ScopeCommand:
		return "command"
	case ScopeStage:
		return "stage"
	case ScopeMethod:
		return "method"
	case ScopeBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Attr is a key=value annotation on a span end or point.
type Attr struct {
	Key   string
	Value string
}

// IntAttr formats v as a decimal attribute.
func IntAttr(key string, v int) Attr {
	return Attr{Key: key, Value: strconv.Itoa(v)}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // process-wide, monotonic
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Name     string // "compile", "[Geo]Geo.Vec::Len/0", "IL_0004"
	Detail   string
	Failed   bool
	Attrs    []Attr
	Open     int64 // spans still open; heartbeats only
}

// Point emits an instant event under parent.
func Point(t Tracer, scope Scope, name, detail string, parent uint64, attrs ...Attr) {
	if t == nil || !t.Enabled() || !t.Level().Covers(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      nextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		Name:     name,
		Detail:   detail,
		Attrs:    attrs,
	})
}
