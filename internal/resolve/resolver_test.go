package resolve_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"iljit/internal/metadata"
	"iljit/internal/resolve"
)

// countingScope records how often the underlying module is consulted.
type countingScope struct {
	*metadata.Module
	calls atomic.Int64
}

func (c *countingScope) ResolveType(tok metadata.Token, args []*metadata.Type) (*metadata.Type, error) {
	c.calls.Add(1)
	return c.Module.ResolveType(tok, args)
}

func (c *countingScope) ResolveMethod(tok metadata.Token, args []*metadata.Type) (*metadata.Method, error) {
	c.calls.Add(1)
	return c.Module.ResolveMethod(tok, args)
}

func (c *countingScope) ResolveField(tok metadata.Token, args []*metadata.Type) (*metadata.Field, error) {
	c.calls.Add(1)
	return c.Module.ResolveField(tok, args)
}

func newCaller(mod *metadata.Module, scope metadata.Scope) *metadata.Method {
	prog := mod.DefineClass("App", "Program")
	m := mod.DefineMethod(prog, "Main", true, metadata.Void)
	m.Scope = scope
	return m
}

func TestResolver_CachesByCallerScope(t *testing.T) {
	mod := metadata.NewModule("A")
	counting := &countingScope{Module: mod}
	caller := newCaller(mod, counting)
	vec := mod.DefineStruct("Geo", "Vec")
	x := mod.DefineField(vec, "X", metadata.Int32)

	r := resolve.New()
	for i := 0; i < 3; i++ {
		got, err := r.ResolveType(caller, vec.Token)
		if err != nil || got != vec {
			t.Fatalf("ResolveType #%d = %v, %v", i, got, err)
		}
		f, err := r.ResolveField(caller, x.Token)
		if err != nil || f != x {
			t.Fatalf("ResolveField #%d = %v, %v", i, f, err)
		}
	}
	if n := counting.calls.Load(); n != 2 {
		t.Fatalf("underlying scope consulted %d times, want 2", n)
	}
	st := r.Stats()
	if st.Hits != 4 || st.Misses != 2 {
		t.Fatalf("stats = %+v, want 4 hits and 2 misses", st)
	}
	if mods := r.Modules(); len(mods) != 1 || mods[0] != metadata.Scope(counting) {
		t.Fatalf("caller module not recorded: %v", mods)
	}
}

func TestResolver_SameTokenDifferentScopes(t *testing.T) {
	a := metadata.NewModule("A")
	b := metadata.NewModule("B")
	ta := a.DefineStruct("", "OnlyInA")
	tb := b.DefineStruct("", "OnlyInB")
	if ta.Token != tb.Token {
		t.Fatalf("test setup expects colliding tokens, got %s and %s", ta.Token, tb.Token)
	}
	callerA := newCaller(a, a)
	callerB := newCaller(b, b)

	r := resolve.New()
	gotA, err := r.ResolveType(callerA, ta.Token)
	if err != nil {
		t.Fatal(err)
	}
	gotB, err := r.ResolveType(callerB, tb.Token)
	if err != nil {
		t.Fatal(err)
	}
	if gotA != ta || gotB != tb {
		t.Fatalf("tokens leaked across scopes: %v, %v", gotA, gotB)
	}
}

func TestResolver_SweepsKnownModules(t *testing.T) {
	lib := metadata.NewModule("Lib")
	app := metadata.NewModule("App")
	caller := newCaller(app, app)
	helper := lib.DefineMethod(lib.DefineClass("Lib", "Util"), "Helper", true, metadata.Int32)
	// helper's token row does not exist in App (App has a single method).
	helper2 := lib.DefineMethod(helper.DeclaringType, "Helper2", true, metadata.Int32)

	r := resolve.New(lib)
	got, err := r.ResolveMethod(caller, helper2.Token)
	if err != nil {
		t.Fatalf("ResolveMethod: %v", err)
	}
	if got != helper2 {
		t.Fatalf("got %v, want %v", got, helper2)
	}
	mods := r.Modules()
	if len(mods) != 2 {
		t.Fatalf("known modules = %v, want Lib and App", mods)
	}
}

func TestResolver_GenericRetryIsNotCached(t *testing.T) {
	mod := metadata.NewModule("G")
	counting := &countingScope{Module: mod}
	box := mod.DefineType("", "Box", metadata.KindStruct, 1)
	mod.DefineField(box, "value", metadata.GenericParam(0))
	get := mod.DefineMethod(box, "Get", false, metadata.GenericParam(0))
	get.Scope = counting
	ref := mod.FieldRef(box, "value")

	inst := metadata.Instantiate(box, []*metadata.Type{metadata.Int64})
	caller := inst.MethodByName("Get", 0)
	if caller == nil {
		t.Fatal("instance method missing")
	}

	r := resolve.New()
	for i := 0; i < 2; i++ {
		f, err := r.ResolveField(caller, ref)
		if err != nil {
			t.Fatalf("ResolveField #%d: %v", i, err)
		}
		if f.Type != metadata.Int64 || f.DeclaringType != inst {
			t.Fatalf("field not specialised: %v of %v", f.Type, f.DeclaringType)
		}
	}
	st := r.Stats()
	if st.Hits != 0 || st.GenericRetries != 2 {
		t.Fatalf("stats = %+v, want no hits and two generic retries", st)
	}
}

func TestResolver_Failure(t *testing.T) {
	mod := metadata.NewModule("A")
	caller := newCaller(mod, mod)
	missing := metadata.MakeToken(metadata.TableTypeDef, 42)

	r := resolve.New()
	_, err := r.ResolveType(caller, missing)
	var rerr *resolve.ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *resolve.ResolutionError, got %T (%v)", err, err)
	}
	if rerr.Token != missing || rerr.Caller != caller || rerr.Kind != resolve.KindType {
		t.Fatalf("error fields = %+v", rerr)
	}
	if !errors.Is(err, metadata.ErrTokenNotFound) {
		t.Fatalf("expected wrapped ErrTokenNotFound, got %v", err)
	}
	if r.Stats().Failures != 1 {
		t.Fatalf("failure not counted: %+v", r.Stats())
	}
}

func TestResolver_FieldIndex(t *testing.T) {
	mod := metadata.NewModule("A")
	s := mod.DefineStruct("", "S")
	a := mod.DefineField(s, "a", metadata.Int8)
	st := mod.DefineStaticField(s, "shared", metadata.Int32)
	b := mod.DefineField(s, "b", metadata.Float64)
	c := mod.DefineField(s, "c", metadata.Int32.MakePointer())

	r := resolve.New(mod)
	for want, f := range []*metadata.Field{a, b, c} {
		got, err := r.ResolveFieldIndex(f)
		if err != nil || got != want {
			t.Errorf("ResolveFieldIndex(%s) = %d, %v; want %d", f, got, err, want)
		}
	}
	if _, err := r.ResolveFieldIndex(st); err == nil {
		t.Error("static field must not have an aggregate slot")
	}
}

func TestResolver_Concurrent(t *testing.T) {
	mod := metadata.NewModule("A")
	counting := &countingScope{Module: mod}
	caller := newCaller(mod, counting)
	vec := mod.DefineStruct("", "V")

	r := resolve.New(counting)
	var wg sync.WaitGroup
	results := make([]*metadata.Type, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.ResolveType(caller, vec.Token)
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		if got != vec {
			t.Fatalf("goroutine %d got %v", i, got)
		}
	}
	if n := counting.calls.Load(); n != 1 {
		t.Fatalf("underlying scope consulted %d times under contention, want 1", n)
	}
}
