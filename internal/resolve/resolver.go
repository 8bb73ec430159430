// Package resolve maps per-method metadata tokens to descriptors.
//
// A Resolver is safe for concurrent use. All caches and the set of known
// modules sit behind one mutex; resolution is never the hot path of a
// compile, so contention is accepted in exchange for a simple invariant.
package resolve

import (
	"errors"
	"fmt"
	"sync"

	"iljit/internal/metadata"
)

type cacheKey struct {
	scope metadata.Scope
	tok   metadata.Token
}

// Stats counts resolver outcomes.
type Stats struct {
	Hits           int
	Misses         int
	GenericRetries int
	Failures       int
}

// Resolver resolves tokens in the context of a calling method.
type Resolver struct {
	mu sync.Mutex

	known   map[metadata.Scope]struct{}
	modules []metadata.Scope

	types      map[cacheKey]*metadata.Type
	methods    map[cacheKey]*metadata.Method
	fields     map[cacheKey]*metadata.Field
	fieldIndex map[*metadata.Field]int

	stats Stats
}

// New creates a resolver whose initial sweep set is home.
func New(home ...metadata.Scope) *Resolver {
	r := &Resolver{
		known:      make(map[metadata.Scope]struct{}, len(home)),
		types:      make(map[cacheKey]*metadata.Type, 64),
		methods:    make(map[cacheKey]*metadata.Method, 64),
		fields:     make(map[cacheKey]*metadata.Field, 64),
		fieldIndex: make(map[*metadata.Field]int, 64),
	}
	for _, s := range home {
		r.addModuleLocked(s)
	}
	return r
}

func (r *Resolver) addModuleLocked(scope metadata.Scope) {
	if scope == nil {
		return
	}
	if _, ok := r.known[scope]; ok {
		return
	}
	r.known[scope] = struct{}{}
	r.modules = append(r.modules, scope)
}

// Modules returns the known modules in the order they were seen.
func (r *Resolver) Modules() []metadata.Scope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metadata.Scope(nil), r.modules...)
}

// Stats returns a snapshot of the counters.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ResolveType resolves a type token used by caller.
func (r *Resolver) ResolveType(caller *metadata.Method, tok metadata.Token) (*metadata.Type, error) {
	return resolve(r, r.types, KindType, caller, tok, metadata.Scope.ResolveType)
}

// ResolveMethod resolves a method token used by caller.
func (r *Resolver) ResolveMethod(caller *metadata.Method, tok metadata.Token) (*metadata.Method, error) {
	return resolve(r, r.methods, KindMethod, caller, tok, metadata.Scope.ResolveMethod)
}

// ResolveField resolves a field token used by caller.
func (r *Resolver) ResolveField(caller *metadata.Method, tok metadata.Token) (*metadata.Field, error) {
	return resolve(r, r.fields, KindField, caller, tok, metadata.Scope.ResolveField)
}

func resolve[T comparable](r *Resolver, cache map[cacheKey]T, kind Kind, caller *metadata.Method, tok metadata.Token, lookup func(metadata.Scope, metadata.Token, []*metadata.Type) (T, error)) (T, error) {
	var zero T
	if caller == nil {
		return zero, &ResolutionError{Kind: kind, Token: tok, Err: errors.New("no calling method")}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cacheKey{scope: caller.Scope, tok: tok}
	if v, ok := cache[key]; ok {
		r.stats.Hits++
		return v, nil
	}
	r.stats.Misses++

	var errs []error
	try := func(s metadata.Scope, typeArgs []*metadata.Type) (T, bool) {
		v, err := lookup(s, tok, typeArgs)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			return zero, false
		}
		return v, v != zero
	}

	if caller.Scope != nil {
		if v, ok := try(caller.Scope, nil); ok {
			cache[key] = v
			r.addModuleLocked(caller.Scope)
			return v, nil
		}
	}
	for _, s := range r.modules {
		if s == caller.Scope {
			continue
		}
		if v, ok := try(s, nil); ok {
			cache[key] = v
			r.addModuleLocked(caller.Scope)
			return v, nil
		}
	}

	if owner := caller.DeclaringType; owner.IsGeneric() {
		// Specialised results depend on the instantiation, so they are
		// returned without being cached.
		r.stats.GenericRetries++
		args := owner.GenericArgs
		if caller.Scope != nil {
			if v, ok := try(caller.Scope, args); ok {
				return v, nil
			}
		}
		for _, s := range r.modules {
			if s == caller.Scope {
				continue
			}
			if v, ok := try(s, args); ok {
				return v, nil
			}
		}
	}

	r.stats.Failures++
	return zero, &ResolutionError{Kind: kind, Token: tok, Caller: caller, Err: errors.Join(errs...)}
}

// ResolveFieldIndex returns the 0-based position of f among the instance
// fields of its declaring type. The order matches the member order used
// when the aggregate body is defined.
func (r *Resolver) ResolveFieldIndex(f *metadata.Field) (int, error) {
	if f == nil {
		return 0, errors.New("resolve: nil field")
	}
	if f.Static {
		return 0, fmt.Errorf("resolve: static field %s has no aggregate slot", f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.fieldIndex[f]; ok {
		return idx, nil
	}
	for i, cand := range f.DeclaringType.InstanceFields() {
		if cand == f {
			r.fieldIndex[f] = i
			return i, nil
		}
	}
	return 0, fmt.Errorf("resolve: field %s not found on %s", f, f.DeclaringType)
}
