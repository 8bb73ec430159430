package trace

import "context"

// carrier is what a context holds: the tracer and the span that new spans
// nest under.
type carrier struct {
	tracer Tracer
	parent uint64
}

type ctxKey struct{}

func carrierOf(ctx context.Context) carrier {
	if ctx != nil {
		if c, ok := ctx.Value(ctxKey{}).(carrier); ok {
			return c
		}
	}
	return carrier{tracer: Nop}
}

// WithTracer returns ctx carrying t. The current parent span is kept.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	c := carrierOf(ctx)
	c.tracer = t
	return context.WithValue(ctx, ctxKey{}, c)
}

// WithParent returns ctx whose new spans nest under the span id.
func WithParent(ctx context.Context, id uint64) context.Context {
	c := carrierOf(ctx)
	c.parent = id
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the tracer in ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return carrierOf(ctx).tracer
}

// ParentFrom returns the span new spans in ctx nest under, 0 for none.
func ParentFrom(ctx context.Context) uint64 {
	return carrierOf(ctx).parent
}

// Start begins a span under the parent in ctx and returns a context in
// which the new span is the parent.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	c := carrierOf(ctx)
	span := Begin(c.tracer, scope, name, c.parent)
	if span.ID() == 0 {
		return ctx, span
	}
	return WithParent(ctx, span.ID()), span
}
