package trace

import (
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
	openSpans   atomic.Int64
)

func nextSeq() uint64 { return seqCounter.Add(1) }

// OpenSpans returns how many live spans have begun and not yet ended.
func OpenSpans() int64 { return openSpans.Load() }

// Span is an open interval such as one method compile or one block
// lowering. A span belongs to the goroutine that began it.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	attrs   []Attr
	ended   bool
}

// Begin opens a span under parent (0 for a root). With tracing off the
// span is inert. Below the tracer's level the span stays live without a
// begin event, so a failure can still be reported when it ends.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() {
		return &Span{}
	}
	s := &Span{
		tracer:  t,
		id:      spanCounter.Add(1),
		parent:  parent,
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	openSpans.Add(1)
	if t.Level().Covers(scope) {
		t.Emit(&Event{
			Time:     s.started,
			Seq:      nextSeq(),
			Kind:     KindSpanBegin,
			Scope:    scope,
			SpanID:   s.id,
			ParentID: parent,
			Name:     name,
		})
	}
	return s
}

// Child opens a span nested under s.
func (s *Span) Child(scope Scope, name string) *Span {
	if s == nil {
		return &Span{}
	}
	return Begin(s.tracer, scope, name, s.id)
}

// Attr attaches key=value to the end event.
func (s *Span) Attr(key, value string) *Span {
	if s != nil && s.tracer != nil {
		s.attrs = append(s.attrs, Attr{Key: key, Value: value})
	}
	return s
}

// IntAttr attaches a decimal attribute to the end event.
func (s *Span) IntAttr(key string, v int) *Span {
	if s != nil && s.tracer != nil {
		s.attrs = append(s.attrs, IntAttr(key, v))
	}
	return s
}

// End closes the span and returns its duration. Only the first End or
// Fail has any effect.
func (s *Span) End(detail string) time.Duration {
	return s.finish(detail, false)
}

// Fail closes the span as failed with err as its detail.
func (s *Span) Fail(err error) time.Duration {
	detail := "failed"
	if err != nil {
		detail = err.Error()
	}
	return s.finish(detail, true)
}

func (s *Span) finish(detail string, failed bool) time.Duration {
	if s == nil || s.tracer == nil || s.ended {
		return 0
	}
	s.ended = true
	openSpans.Add(-1)
	now := time.Now()
	ev := &Event{
		Time:     now,
		Seq:      nextSeq(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Failed:   failed,
		Attrs:    s.attrs,
	}
	if s.tracer.Level().Allows(ev) {
		s.tracer.Emit(ev)
	}
	return now.Sub(s.started)
}

// ID returns the span ID, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
