package image

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"iljit/internal/cil"
	"iljit/internal/metadata"
)

// Error reports a malformed image entry.
type Error struct {
	Image string
	Where string
	Err   error
}

func (e *Error) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("image %s: %v", e.Image, e.Err)
	}
	return fmt.Sprintf("image %s: %s: %v", e.Image, e.Where, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnknownType reports a type name that names nothing in scope.
var ErrUnknownType = errors.New("unknown type")

type builder struct {
	img   *Image
	mod   *metadata.Module
	refs  map[string]*metadata.Module
	types map[string]*metadata.Type
	short map[string][]*metadata.Type
}

// Build turns img into a metadata module. refs must hold a built module for
// every name in img.Imports.
func Build(img *Image, refs map[string]*metadata.Module) (*metadata.Module, error) {
	if img.Name == "" {
		return nil, &Error{Image: "<unnamed>", Err: errors.New("missing name")}
	}
	b := &builder{
		img:   img,
		mod:   metadata.NewModule(img.Name),
		refs:  make(map[string]*metadata.Module, len(img.Imports)),
		types: make(map[string]*metadata.Type, len(img.Types)),
		short: make(map[string][]*metadata.Type, len(img.Types)),
	}
	for _, name := range img.Imports {
		ref := refs[name]
		if ref == nil {
			return nil, b.errorf("", "import %q is not loaded", name)
		}
		b.refs[name] = ref
	}

	defs := make([]*metadata.Type, len(img.Types))
	for i := range img.Types {
		t, err := b.defineType(&img.Types[i])
		if err != nil {
			return nil, err
		}
		defs[i] = t
	}

	bodies := make([][]*metadata.Method, len(img.Types))
	for i := range img.Types {
		methods, err := b.defineMembers(defs[i], &img.Types[i])
		if err != nil {
			return nil, err
		}
		bodies[i] = methods
	}

	// Bodies go last so that IL may name any member of the image.
	for i := range img.Types {
		td := &img.Types[i]
		for j := range td.Methods {
			if err := b.defineBody(bodies[i][j], &td.Methods[j]); err != nil {
				return nil, err
			}
		}
	}
	return b.mod, nil
}

func (b *builder) errorf(where, format string, args ...any) *Error {
	return &Error{Image: b.img.Name, Where: where, Err: fmt.Errorf(format, args...)}
}

func (b *builder) wrap(where string, err error) *Error {
	return &Error{Image: b.img.Name, Where: where, Err: err}
}

func (b *builder) defineType(td *TypeDef) (*metadata.Type, error) {
	where := "type " + td.FullName()
	if td.Name == "" {
		return nil, b.errorf(where, "missing name")
	}
	var kind metadata.Kind
	switch td.Kind {
	case KindStruct, "":
		kind = metadata.KindStruct
	case KindClass:
		kind = metadata.KindClass
	default:
		return nil, b.errorf(where, "unknown kind %q", td.Kind)
	}
	if td.Arity < 0 {
		return nil, b.errorf(where, "negative arity %d", td.Arity)
	}
	full := td.FullName()
	if _, dup := b.types[full]; dup {
		return nil, b.errorf(where, "defined twice")
	}
	t := b.mod.DefineType(td.Namespace, td.Name, kind, td.Arity)
	b.types[full] = t
	b.short[td.Name] = append(b.short[td.Name], t)
	return t, nil
}

func (b *builder) defineMembers(owner *metadata.Type, td *TypeDef) ([]*metadata.Method, error) {
	for _, fd := range td.Fields {
		where := td.FullName() + "::" + fd.Name
		if fd.Name == "" {
			return nil, b.errorf(where, "field without a name")
		}
		if owner.FieldByName(fd.Name) != nil {
			return nil, b.errorf(where, "field defined twice")
		}
		ft, err := b.parseType(fd.Type)
		if err != nil {
			return nil, b.wrap(where, err)
		}
		if fd.Static {
			b.mod.DefineStaticField(owner, fd.Name, ft)
		} else {
			b.mod.DefineField(owner, fd.Name, ft)
		}
	}

	methods := make([]*metadata.Method, len(td.Methods))
	for i := range td.Methods {
		md := &td.Methods[i]
		where := td.FullName() + "::" + md.Name
		params, err := b.parseTypes(md.Params)
		if err != nil {
			return nil, b.wrap(where, err)
		}
		if md.Ctor {
			if md.Static || (md.Returns != "" && md.Returns != "void") {
				return nil, b.errorf(where, "constructors are instance methods returning void")
			}
			methods[i] = b.mod.DefineConstructor(owner, params...)
			continue
		}
		if md.Name == "" {
			return nil, b.errorf(where, "method without a name")
		}
		ret := metadata.Void
		if md.Returns != "" {
			if ret, err = b.parseType(md.Returns); err != nil {
				return nil, b.wrap(where, err)
			}
		}
		methods[i] = b.mod.DefineMethod(owner, md.Name, md.Static, ret, params...)
	}
	return methods, nil
}

func (b *builder) defineBody(m *metadata.Method, md *MethodDef) error {
	if !md.HasBody() {
		return nil
	}
	where := m.String()
	if md.IL != "" && md.Hex != "" {
		return b.errorf(where, "both il and hex given")
	}
	locals, err := b.parseTypes(md.Locals)
	if err != nil {
		return b.wrap(where, err)
	}
	var code []byte
	if md.Hex != "" {
		code, err = hex.DecodeString(strings.Join(strings.Fields(md.Hex), ""))
	} else {
		code, err = cil.ParseText(md.IL, b.token)
	}
	if err != nil {
		return b.wrap(where, err)
	}
	maxStack := md.MaxStack
	if maxStack <= 0 {
		maxStack = defaultMaxStack
	}
	m.SetBody(maxStack, locals, code)
	return nil
}

func (b *builder) parseTypes(names []string) ([]*metadata.Type, error) {
	out := make([]*metadata.Type, len(names))
	for i, n := range names {
		t, err := b.parseType(n)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// parseType reads the type grammar used throughout images:
//
//	int32 | native int | !0 | Ns.Name | [Image]Ns.Name | Ns.Box<int32,!0> | T& | T*
func (b *builder) parseType(s string) (*metadata.Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, errors.New("empty type name")
	case strings.HasSuffix(s, "&"):
		elem, err := b.parseType(s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		return elem.MakeByRef(), nil
	case strings.HasSuffix(s, "*"):
		elem, err := b.parseType(s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		return elem.MakePointer(), nil
	}
	if t, ok := metadata.Builtin(s); ok {
		return t, nil
	}
	if rest, ok := strings.CutPrefix(s, "!"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid generic parameter %q", s)
		}
		return metadata.GenericParam(n), nil
	}
	if !strings.HasSuffix(s, ">") {
		return b.named(s)
	}
	open := strings.IndexByte(s, '<')
	if open < 0 {
		return nil, fmt.Errorf("unbalanced type arguments in %q", s)
	}
	def, err := b.named(s[:open])
	if err != nil {
		return nil, err
	}
	if def.GenericDef != nil || len(def.GenericArgs) == 0 {
		return nil, fmt.Errorf("%s is not a generic definition", def)
	}
	parts, err := splitArgs(s[open+1 : len(s)-1])
	if err != nil {
		return nil, fmt.Errorf("%q: %w", s, err)
	}
	args, err := b.parseTypes(parts)
	if err != nil {
		return nil, err
	}
	if len(args) != len(def.GenericArgs) {
		return nil, fmt.Errorf("%s takes %d type arguments, got %d", def, len(def.GenericArgs), len(args))
	}
	return metadata.Instantiate(def, args), nil
}

// named finds a struct or class by name. A "`N" arity marker is accepted and
// ignored so that printed instance names parse back.
func (b *builder) named(s string) (*metadata.Type, error) {
	if i := strings.IndexByte(s, '`'); i >= 0 {
		s = s[:i]
	}
	if rest, ok := strings.CutPrefix(s, "["); ok {
		modName, typeName, ok := strings.Cut(rest, "]")
		if !ok {
			return nil, fmt.Errorf("unterminated image qualifier in %q", s)
		}
		ref := b.refs[modName]
		if ref == nil {
			return nil, fmt.Errorf("image %q is not imported", modName)
		}
		for _, t := range ref.Types() {
			if t.FullName() == typeName {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%w %s in image %s", ErrUnknownType, typeName, modName)
	}
	if t := b.types[s]; t != nil {
		return t, nil
	}
	switch cands := b.short[s]; len(cands) {
	case 0:
		return nil, fmt.Errorf("%w %s", ErrUnknownType, s)
	case 1:
		return cands[0], nil
	default:
		return nil, fmt.Errorf("type name %s is ambiguous; qualify it with its namespace", s)
	}
}

func splitArgs(s string) ([]string, error) {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced type arguments")
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced type arguments")
	}
	return append(out, s[start:]), nil
}

// token resolves a textual IL operand. "Type::Field" and "Type::Method/N"
// name members; anything else names a type. Members of this image's
// non-generic types get their definition tokens, everything else goes
// through reference rows.
func (b *builder) token(op cil.Opcode, operand string) (metadata.Token, error) {
	typeName, member, ok := strings.Cut(operand, "::")
	if !ok {
		t, err := b.parseType(operand)
		if err != nil {
			return 0, err
		}
		return b.mod.TypeToken(t), nil
	}
	parent, err := b.parseType(typeName)
	if err != nil {
		return 0, err
	}
	local := parent.Scope == metadata.Scope(b.mod) && parent.GenericDef == nil

	switch op {
	case cil.Ldfld, cil.Ldflda, cil.Stfld, cil.Ldsfld, cil.Ldsflda, cil.Stsfld:
		if !local {
			return b.mod.FieldRef(parent, member), nil
		}
		if f := parent.FieldByName(member); f != nil {
			return f.Token, nil
		}
		return 0, fmt.Errorf("%s has no field %s", parent, member)
	}

	name, arity := member, -1
	if n, count, hasArity := strings.Cut(member, "/"); hasArity {
		if arity, err = strconv.Atoi(count); err != nil || arity < 0 {
			return 0, fmt.Errorf("invalid arity in %q", operand)
		}
		name = n
	}
	if !local {
		if arity < 0 {
			return 0, fmt.Errorf("reference %q needs an explicit /N arity", operand)
		}
		return b.mod.MethodRef(parent, name, arity), nil
	}
	if m := parent.MethodByName(name, arity); m != nil {
		return m.Token, nil
	}
	return 0, fmt.Errorf("%s has no method %s", parent, member)
}
