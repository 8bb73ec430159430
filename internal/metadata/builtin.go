package metadata

import (
	"strconv"
	"sync"
)

func primitive(p Prim, name string) *Type {
	return &Type{Kind: KindPrimitive, Prim: p, Name: name, Namespace: "System"}
}

// Built-in types shared by every module.
var (
	Void    = &Type{Kind: KindVoid, Name: "Void", Namespace: "System"}
	Bool    = primitive(PrimBool, "Boolean")
	Char    = primitive(PrimChar, "Char")
	Int8    = primitive(PrimInt8, "SByte")
	UInt8   = primitive(PrimUInt8, "Byte")
	Int16   = primitive(PrimInt16, "Int16")
	UInt16  = primitive(PrimUInt16, "UInt16")
	Int32   = primitive(PrimInt32, "Int32")
	UInt32  = primitive(PrimUInt32, "UInt32")
	Int64   = primitive(PrimInt64, "Int64")
	UInt64  = primitive(PrimUInt64, "UInt64")
	Float32 = primitive(PrimFloat32, "Single")
	Float64 = primitive(PrimFloat64, "Double")
	IntPtr  = primitive(PrimIntPtr, "IntPtr")
	UIntPtr = primitive(PrimUIntPtr, "UIntPtr")
)

// Primitives lists every built-in primitive in declaration order.
var Primitives = []*Type{Bool, Char, Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64, Float32, Float64, IntPtr, UIntPtr}

var builtinByName = map[string]*Type{
	"void":        Void,
	"bool":        Bool,
	"char":        Char,
	"int8":        Int8,
	"sbyte":       Int8,
	"uint8":       UInt8,
	"byte":        UInt8,
	"int16":       Int16,
	"short":       Int16,
	"uint16":      UInt16,
	"ushort":      UInt16,
	"int32":       Int32,
	"int":         Int32,
	"uint32":      UInt32,
	"uint":        UInt32,
	"int64":       Int64,
	"long":        Int64,
	"uint64":      UInt64,
	"ulong":       UInt64,
	"float32":     Float32,
	"float":       Float32,
	"float64":     Float64,
	"double":      Float64,
	"native int":  IntPtr,
	"nint":        IntPtr,
	"native uint": UIntPtr,
	"nuint":       UIntPtr,
}

// Builtin looks up a built-in type by its IL or C# keyword.
func Builtin(name string) (*Type, bool) {
	t, ok := builtinByName[name]
	return t, ok
}

// IsUnsigned reports whether t is an unsigned integer primitive.
func IsUnsigned(t *Type) bool {
	if t == nil || t.Kind != KindPrimitive {
		return false
	}
	switch t.Prim {
	case PrimUInt8, PrimUInt16, PrimUInt32, PrimUInt64, PrimUIntPtr, PrimChar:
		return true
	}
	return false
}

// IsInteger reports whether t is an integer-like primitive. Bool counts.
func IsInteger(t *Type) bool {
	if t == nil || t.Kind != KindPrimitive {
		return false
	}
	switch t.Prim {
	case PrimFloat32, PrimFloat64, PrimNone:
		return false
	}
	return true
}

// IsFloatingPoint reports whether t is float32 or float64.
func IsFloatingPoint(t *Type) bool {
	return t != nil && t.Kind == KindPrimitive && (t.Prim == PrimFloat32 || t.Prim == PrimFloat64)
}

// IsPointerLike reports whether t is an unmanaged pointer or a native int.
func IsPointerLike(t *Type) bool {
	if t == nil {
		return false
	}
	if t.Kind == KindPointer {
		return true
	}
	return t.Kind == KindPrimitive && (t.Prim == PrimIntPtr || t.Prim == PrimUIntPtr)
}

var (
	genericParamsMu sync.Mutex
	genericParams   []*Type
)

// GenericParam returns the interned placeholder for type argument index.
func GenericParam(index int) *Type {
	genericParamsMu.Lock()
	defer genericParamsMu.Unlock()
	for len(genericParams) <= index {
		i := len(genericParams)
		genericParams = append(genericParams, &Type{Kind: KindGenericParam, GenericIndex: i, Name: "!" + strconv.Itoa(i)})
	}
	return genericParams[index]
}
