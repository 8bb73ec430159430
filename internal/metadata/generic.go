package metadata

// Substitute replaces generic parameters in t with args. Closed types come
// back unchanged.
func Substitute(t *Type, args []*Type) *Type {
	if t == nil || len(args) == 0 {
		return t
	}
	switch t.Kind {
	case KindGenericParam:
		if t.GenericIndex < len(args) {
			return args[t.GenericIndex]
		}
		return t
	case KindByRef:
		return Substitute(t.Elem, args).MakeByRef()
	case KindPointer:
		return Substitute(t.Elem, args).MakePointer()
	}
	if !t.IsOpen() {
		return t
	}
	def := t
	if t.GenericDef != nil {
		def = t.GenericDef
	}
	next := make([]*Type, len(t.GenericArgs))
	for i, a := range t.GenericArgs {
		next[i] = Substitute(a, args)
	}
	return Instantiate(def, next)
}

// Instantiate returns the interned instance of the open definition def with
// the given arguments. Members are materialized on first access; the
// instance is registered before its members are built so that
// self-referential generics terminate.
func Instantiate(def *Type, args []*Type) *Type {
	def.mu.Lock()
	for _, inst := range def.instances {
		if sameTypes(inst.GenericArgs, args) {
			def.mu.Unlock()
			return inst
		}
	}
	inst := &Type{
		Name:        def.Name,
		Namespace:   def.Namespace,
		Kind:        def.Kind,
		Token:       def.Token,
		Scope:       def.Scope,
		GenericArgs: append([]*Type(nil), args...),
		GenericDef:  def,
	}
	inst.lazy = func(self *Type) { materialize(self, def, self.GenericArgs) }
	def.instances = append(def.instances, inst)
	def.mu.Unlock()
	return inst
}

func materialize(inst, def *Type, args []*Type) {
	for _, f := range def.fields {
		inst.fields = append(inst.fields, &Field{
			Name:          f.Name,
			Type:          Substitute(f.Type, args),
			DeclaringType: inst,
			Static:        f.Static,
			Token:         f.Token,
		})
	}
	for _, m := range def.methods {
		im := &Method{
			Name:          m.Name,
			DeclaringType: inst,
			Return:        Substitute(m.Return, args),
			Static:        m.Static,
			Ctor:          m.Ctor,
			Token:         m.Token,
			Scope:         m.Scope,
		}
		for _, p := range m.Params {
			im.Params = append(im.Params, Param{Name: p.Name, Type: Substitute(p.Type, args)})
		}
		if m.Body != nil {
			locals := make([]*Type, len(m.Body.Locals))
			for i, l := range m.Body.Locals {
				locals[i] = Substitute(l, args)
			}
			im.Body = &Body{MaxStack: m.Body.MaxStack, Locals: locals, Code: m.Body.Code}
		}
		inst.methods = append(inst.methods, im)
	}
}

func sameTypes(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
