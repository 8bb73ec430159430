// Package image describes metadata modules in a serializable form and builds
// them into *metadata.Module values the compiler can consume.
//
// An image names its types, their fields and methods, and gives method
// bodies either as IL assembler text or as hex-encoded bytes. Types from
// other images are referenced as "[Image]Namespace.Name"; the build step
// turns such references into member-reference and type-spec rows.
package image

// Image is the root of a serialized metadata module.
type Image struct {
	Name    string    `yaml:"name" msgpack:"name" cbor:"name"`
	Imports []string  `yaml:"imports,omitempty" msgpack:"imports,omitempty" cbor:"imports,omitempty"`
	Types   []TypeDef `yaml:"types" msgpack:"types" cbor:"types"`
}

// TypeDef is a struct or class definition. Arity above zero declares an open
// generic whose parameters are spelled !0, !1, ... in member types.
type TypeDef struct {
	Namespace string      `yaml:"namespace,omitempty" msgpack:"namespace,omitempty" cbor:"namespace,omitempty"`
	Name      string      `yaml:"name" msgpack:"name" cbor:"name"`
	Kind      string      `yaml:"kind" msgpack:"kind" cbor:"kind"`
	Arity     int         `yaml:"arity,omitempty" msgpack:"arity,omitempty" cbor:"arity,omitempty"`
	Fields    []FieldDef  `yaml:"fields,omitempty" msgpack:"fields,omitempty" cbor:"fields,omitempty"`
	Methods   []MethodDef `yaml:"methods,omitempty" msgpack:"methods,omitempty" cbor:"methods,omitempty"`
}

// FullName returns Namespace.Name, or Name when the namespace is empty.
func (t *TypeDef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// FieldDef is a field of a TypeDef.
type FieldDef struct {
	Name   string `yaml:"name" msgpack:"name" cbor:"name"`
	Type   string `yaml:"type" msgpack:"type" cbor:"type"`
	Static bool   `yaml:"static,omitempty" msgpack:"static,omitempty" cbor:"static,omitempty"`
}

// MethodDef is a method or constructor of a TypeDef. A method with neither
// IL nor Hex is a declaration without a body.
type MethodDef struct {
	Name     string   `yaml:"name" msgpack:"name" cbor:"name"`
	Static   bool     `yaml:"static,omitempty" msgpack:"static,omitempty" cbor:"static,omitempty"`
	Ctor     bool     `yaml:"ctor,omitempty" msgpack:"ctor,omitempty" cbor:"ctor,omitempty"`
	Returns  string   `yaml:"returns,omitempty" msgpack:"returns,omitempty" cbor:"returns,omitempty"`
	Params   []string `yaml:"params,omitempty" msgpack:"params,omitempty" cbor:"params,omitempty"`
	MaxStack int      `yaml:"maxstack,omitempty" msgpack:"maxstack,omitempty" cbor:"maxstack,omitempty"`
	Locals   []string `yaml:"locals,omitempty" msgpack:"locals,omitempty" cbor:"locals,omitempty"`
	IL       string   `yaml:"il,omitempty" msgpack:"il,omitempty" cbor:"il,omitempty"`
	Hex      string   `yaml:"hex,omitempty" msgpack:"hex,omitempty" cbor:"hex,omitempty"`
}

// HasBody reports whether the method carries code.
func (m *MethodDef) HasBody() bool { return m.IL != "" || m.Hex != "" }

const (
	KindStruct = "struct"
	KindClass  = "class"
)

// defaultMaxStack applies when a method body omits maxstack.
const defaultMaxStack = 8
