package metadata

import (
	"fmt"
	"strings"
)

// Param is a declared method parameter.
type Param struct {
	Name string
	Type *Type
}

// Body is the IL body of a method.
type Body struct {
	MaxStack int
	Locals   []*Type
	Code     []byte
}

// Method describes a method or constructor.
type Method struct {
	Name          string
	DeclaringType *Type
	Params        []Param
	Return        *Type
	Static        bool
	Ctor          bool
	Body          *Body
	Token         Token
	Scope         Scope
}

// IsInstance reports whether the method receives an implicit this argument.
func (m *Method) IsInstance() bool { return m.Ctor || !m.Static }

// ReturnType returns the declared return type; constructors return void.
func (m *Method) ReturnType() *Type {
	if m.Ctor || m.Return == nil {
		return Void
	}
	return m.Return
}

// SetBody attaches IL to the method.
func (m *Method) SetBody(maxStack int, locals []*Type, code []byte) {
	m.Body = &Body{MaxStack: maxStack, Locals: locals, Code: code}
}

// String renders the method as Type::Name(params).
func (m *Method) String() string {
	if m == nil {
		return "<nil>"
	}
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type.String()
	}
	owner := "<module>"
	if m.DeclaringType != nil {
		owner = m.DeclaringType.String()
	}
	return fmt.Sprintf("%s::%s(%s)", owner, m.Name, strings.Join(params, ", "))
}

// IsConversionOperator reports whether m is op_Implicit or op_Explicit.
func (m *Method) IsConversionOperator() bool {
	return m.Static && len(m.Params) == 1 && (m.Name == "op_Implicit" || m.Name == "op_Explicit")
}

// HasConversion reports whether either type declares a user-defined
// conversion operator from `from` to `to`.
func HasConversion(from, to *Type) bool {
	for _, owner := range []*Type{from, to} {
		if owner == nil {
			continue
		}
		for _, m := range owner.Methods() {
			if m.IsConversionOperator() && m.Params[0].Type == from && m.Return == to {
				return true
			}
		}
	}
	return false
}
