// Package pipeline compiles methods from a set of metadata images in
// parallel: images are loaded, built in import order, then each image gets
// its own jit.Unit while all units share one resolver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"iljit/internal/image"
	"iljit/internal/jit"
	"iljit/internal/metadata"
	"iljit/internal/resolve"
	"iljit/internal/trace"
)

// Request describes one batch compilation.
type Request struct {
	// Images are image file paths.
	Images []string
	// Selectors pick methods as "Ns.Type::Method", "Ns.Type::Method/N" or
	// "[Image]Ns.Type::Method". Empty selects every method with a body.
	Selectors []string
	// Jobs bounds parallelism; zero or less uses GOMAXPROCS.
	Jobs int
	// Options are handed to every unit. Tracer and TraceParent are filled
	// in from the context.
	Options jit.Options
	// Cache, when set, serves and stores emitted IR.
	Cache *DiskCache
	Sink  ProgressSink
}

// Program is a set of built images sharing one resolver.
type Program struct {
	Images   []*image.Image
	Raw      [][]byte
	Modules  []*metadata.Module
	Resolver *resolve.Resolver

	index map[string]int
}

// Module returns the module built from the image called name.
func (p *Program) Module(name string) (*metadata.Module, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.Modules[i], true
}

// closure returns the raw bytes of image i followed by those of everything
// it imports, transitively, each once.
func (p *Program) closure(i int) [][]byte {
	seen := make(map[int]bool)
	var out [][]byte
	var walk func(int)
	walk = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		out = append(out, p.Raw[i])
		for _, dep := range p.Images[i].Imports {
			walk(p.index[dep])
		}
	}
	walk(i)
	return out
}

// Target is one selected method.
type Target struct {
	Image    int
	Method   *metadata.Method
	Selector string
}

// MethodResult is the outcome for one selected method.
type MethodResult struct {
	Image    string
	Selector string
	Function string
	IR       string
	Cached   bool
	Err      error
}

// Result collects per-method outcomes in selection order.
type Result struct {
	Methods []MethodResult
	Timings *Timings
}

// Err joins every method failure.
func (r *Result) Err() error {
	var errs []error
	for _, m := range r.Methods {
		if m.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Selector, m.Err))
		}
	}
	return errors.Join(errs...)
}

func jobsFor(jobs, items int) int {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, items))
}

func sinkOf(s ProgressSink) ProgressSink {
	if s == nil {
		return nopSink{}
	}
	return s
}

// Load reads and builds the images of req. Load and build failures abort
// the whole request.
func Load(ctx context.Context, req *Request, timings *Timings) (*Program, error) {
	sink := sinkOf(req.Sink)
	if len(req.Images) == 0 {
		return nil, errors.New("no images given")
	}

	_, span := trace.Start(ctx, trace.ScopeStage, string(StageLoad))
	start := time.Now()
	p := &Program{
		Images: make([]*image.Image, len(req.Images)),
		Raw:    make([][]byte, len(req.Images)),
		index:  make(map[string]int, len(req.Images)),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobsFor(req.Jobs, len(req.Images)))
	for i, path := range req.Images {
		sink.OnEvent(Event{Item: path, Stage: StageLoad, Status: StatusQueued})
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			sink.OnEvent(Event{Item: path, Stage: StageLoad, Status: StatusWorking})
			img, data, err := image.Read(path)
			if err != nil {
				sink.OnEvent(Event{Item: path, Stage: StageLoad, Status: StatusError, Err: err, Elapsed: time.Since(t0)})
				return err
			}
			p.Images[i], p.Raw[i] = img, data
			sink.OnEvent(Event{Item: path, Stage: StageLoad, Status: StatusDone, Elapsed: time.Since(t0)})
			return nil
		})
	}
	err := g.Wait()
	timings.Add(StageLoad, time.Since(start))
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.IntAttr("images", len(p.Images)).End("ok")

	if err := p.build(ctx, req, sink, timings); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Program) build(ctx context.Context, req *Request, sink ProgressSink, timings *Timings) error {
	_, span := trace.Start(ctx, trace.ScopeStage, string(StageBuild))
	start := time.Now()
	defer func() { timings.Add(StageBuild, time.Since(start)) }()

	g, err := buildGraph(p.Images)
	if err != nil {
		span.Fail(err)
		return err
	}
	p.index = g.index
	order, err := g.batches()
	if err != nil {
		span.Fail(err)
		return err
	}

	p.Modules = make([]*metadata.Module, len(p.Images))
	refs := make(map[string]*metadata.Module, len(p.Images))
	for _, batch := range order {
		eg, _ := errgroup.WithContext(ctx)
		eg.SetLimit(jobsFor(req.Jobs, len(batch)))
		for _, i := range batch {
			img := p.Images[i]
			sink.OnEvent(Event{Item: img.Name, Stage: StageBuild, Status: StatusWorking})
			eg.Go(func() error {
				t0 := time.Now()
				mod, err := image.Build(img, refs)
				if err != nil {
					sink.OnEvent(Event{Item: img.Name, Stage: StageBuild, Status: StatusError, Err: err, Elapsed: time.Since(t0)})
					return err
				}
				p.Modules[i] = mod
				sink.OnEvent(Event{Item: img.Name, Stage: StageBuild, Status: StatusDone, Elapsed: time.Since(t0)})
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			span.Fail(err)
			return err
		}
		// refs only grows between batches; builds inside a batch just read it.
		for _, i := range batch {
			refs[p.Images[i].Name] = p.Modules[i]
		}
	}

	scopes := make([]metadata.Scope, len(p.Modules))
	for i, m := range p.Modules {
		scopes[i] = m
	}
	p.Resolver = resolve.New(scopes...)
	span.IntAttr("batches", len(order)).End("ok")
	return nil
}

// Find resolves one selector against the program.
func (p *Program) Find(selector string) (Target, error) {
	sel := selector
	candidates := make([]int, 0, len(p.Images))
	if rest, ok := strings.CutPrefix(sel, "["); ok {
		name, tail, ok := strings.Cut(rest, "]")
		if !ok {
			return Target{}, fmt.Errorf("selector %q: unterminated image qualifier", selector)
		}
		i, found := p.index[name]
		if !found {
			return Target{}, fmt.Errorf("selector %q: no image named %s", selector, name)
		}
		candidates, sel = append(candidates, i), tail
	} else {
		for i := range p.Images {
			candidates = append(candidates, i)
		}
	}

	var hits []Target
	for _, i := range candidates {
		if m, err := p.Modules[i].FindMethod(sel); err == nil {
			hits = append(hits, Target{Image: i, Method: m, Selector: qualified(p.Images[i].Name, m)})
		}
	}
	switch len(hits) {
	case 0:
		return Target{}, fmt.Errorf("selector %q matches no method", selector)
	case 1:
		return hits[0], nil
	default:
		return Target{}, fmt.Errorf("selector %q is ambiguous; prefix it with [Image]", selector)
	}
}

// Targets expands selectors, or every method with a body when none are given.
func (p *Program) Targets(selectors []string) ([]Target, error) {
	if len(selectors) > 0 {
		out := make([]Target, 0, len(selectors))
		for _, s := range selectors {
			t, err := p.Find(s)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
	var out []Target
	for i, mod := range p.Modules {
		for _, t := range mod.Types() {
			for _, m := range t.Methods() {
				if m.Body != nil {
					out = append(out, Target{Image: i, Method: m, Selector: qualified(p.Images[i].Name, m)})
				}
			}
		}
	}
	return out, nil
}

func qualified(img string, m *metadata.Method) string {
	return fmt.Sprintf("[%s]%s::%s/%d", img, m.DeclaringType.FullName(), m.Name, len(m.Params))
}

// Compile runs the whole request.
func Compile(ctx context.Context, req *Request) (*Result, error) {
	timings := &Timings{}
	p, err := Load(ctx, req, timings)
	if err != nil {
		return nil, err
	}
	targets, err := p.Targets(req.Selectors)
	if err != nil {
		return nil, err
	}
	res := &Result{Methods: make([]MethodResult, len(targets)), Timings: timings}
	if err := p.compile(ctx, req, targets, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Program) compile(ctx context.Context, req *Request, targets []Target, res *Result) error {
	sink := sinkOf(req.Sink)
	cctx, span := trace.Start(ctx, trace.ScopeStage, string(StageCompile))

	byImage := make(map[int][]int)
	var images []int
	for ti, t := range targets {
		if _, seen := byImage[t.Image]; !seen {
			images = append(images, t.Image)
		}
		byImage[t.Image] = append(byImage[t.Image], ti)
		sink.OnEvent(Event{Item: t.Selector, Stage: StageCompile, Status: StatusQueued})
	}

	opts := req.Options
	opts.Tracer = trace.FromContext(cctx)
	opts.TraceParent = trace.ParentFrom(cctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobsFor(req.Jobs, len(images)))
	for _, i := range images {
		g.Go(func() error {
			unit := jit.NewUnit(p.Images[i].Name, p.Resolver, opts)
			defer unit.Close()
			closure := p.closure(i)
			for _, ti := range byImage[i] {
				if err := gctx.Err(); err != nil {
					return err
				}
				res.Methods[ti] = p.compileOne(unit, req, closure, targets[ti], sink, res.Timings)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.Fail(err)
		return err
	}
	span.IntAttr("methods", len(targets)).End("ok")
	return nil
}

// compileOne fills the result slot of a single target. Slots are disjoint
// per target, so units write them without locking.
func (p *Program) compileOne(unit *jit.Unit, req *Request, closure [][]byte, t Target, sink ProgressSink, timings *Timings) MethodResult {
	out := MethodResult{Image: p.Images[t.Image].Name, Selector: t.Selector}
	key := CacheKey(closure, t.Selector, unit.Optimizing())

	var cached CachePayload
	if ok, err := req.Cache.Get(key, &cached); err == nil && ok && cached.Selector == t.Selector {
		out.Function, out.IR, out.Cached = cached.Function, cached.IR, true
		sink.OnEvent(Event{Item: t.Selector, Stage: StageCompile, Status: StatusCached})
		return out
	}

	t0 := time.Now()
	sink.OnEvent(Event{Item: t.Selector, Stage: StageCompile, Status: StatusWorking})
	cm, err := unit.GetMethod(t.Method)
	elapsed := time.Since(t0)
	timings.Add(StageCompile, elapsed)
	if err != nil {
		out.Err = err
		sink.OnEvent(Event{Item: t.Selector, Stage: StageCompile, Status: StatusError, Err: err, Elapsed: elapsed})
		return out
	}
	sink.OnEvent(Event{Item: t.Selector, Stage: StageCompile, Status: StatusDone, Elapsed: elapsed})

	t0 = time.Now()
	out.Function, out.IR = cm.Func.Name, cm.Func.String()
	if err := req.Cache.Put(key, &CachePayload{Selector: t.Selector, Function: out.Function, IR: out.IR}); err != nil {
		sink.OnEvent(Event{Item: t.Selector, Stage: StageEmit, Status: StatusError, Err: err})
	} else {
		sink.OnEvent(Event{Item: t.Selector, Stage: StageEmit, Status: StatusDone, Elapsed: time.Since(t0)})
	}
	timings.Add(StageEmit, time.Since(t0))
	return out
}
