package image_test

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"iljit/internal/exec"
	"iljit/internal/image"
	"iljit/internal/jit"
	"iljit/internal/metadata"
	"iljit/internal/resolve"
)

const geoYAML = `
name: Geo
types:
  - namespace: Geo
    name: Vec
    kind: struct
    fields:
      - {name: X, type: int32}
      - {name: Y, type: int32}
    methods:
      - name: .ctor
        ctor: true
        params: [int32, int32]
        il: |
          ldarg.0
          ldarg.1
          stfld Geo.Vec::X
          ldarg.0
          ldarg.2
          stfld Geo.Vec::Y
          ret
      - name: Sum
        returns: int32
        il: |
          ldarg.0
          ldfld Vec::X     // short names work when unambiguous
          ldarg.0
          ldfld Vec::Y
          add
          ret
  - namespace: Geo
    name: Box
    kind: struct
    arity: 1
    fields:
      - {name: V, type: "!0"}
  - namespace: Geo
    name: Consts
    kind: class
    methods:
      - name: Answer
        static: true
        returns: int32
        hex: "1f 2a 2a"
      - name: Extern
        static: true
        returns: int32
`

const shapesYAML = `
name: Shapes
imports: [Geo]
types:
  - namespace: App
    name: Program
    kind: class
    methods:
      - name: Main
        static: true
        returns: int32
        params: [int32]
        locals: ["[Geo]Geo.Vec"]
        il: |
          ldc.i4.3
          ldarg.0
          newobj [Geo]Geo.Vec::.ctor/2
          call [Geo]Geo.Vec::Sum/0
          stloc.0          // not a Vec; the cast engine rejects this
          ret
      - name: Twice
        static: true
        returns: int32
        params: [int32]
        il: |
          ldc.i4.3
          ldarg.0
          newobj [Geo]Geo.Vec::.ctor/2
          call [Geo]Geo.Vec::Sum/0
          dup
          add
          ret
`

func decode(t *testing.T, src string) *image.Image {
	t.Helper()
	img, err := image.Unmarshal([]byte(src), image.FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func build(t *testing.T, src string, refs map[string]*metadata.Module) *metadata.Module {
	t.Helper()
	mod, err := image.Build(decode(t, src), refs)
	if err != nil {
		t.Fatal(err)
	}
	return mod
}

func TestBuild_Definitions(t *testing.T) {
	geo := build(t, geoYAML, nil)
	types := geo.Types()
	if len(types) != 3 {
		t.Fatalf("got %d types", len(types))
	}
	vec, box, consts := types[0], types[1], types[2]
	if vec.Kind != metadata.KindStruct || consts.Kind != metadata.KindClass {
		t.Fatalf("kinds = %s, %s", vec.Kind, consts.Kind)
	}
	if f := vec.FieldByName("Y"); f == nil || f.Type != metadata.Int32 {
		t.Fatalf("Vec::Y = %v", f)
	}
	ctor := vec.MethodByName(".ctor", 2)
	if ctor == nil || !ctor.Ctor || ctor.Body == nil {
		t.Fatalf("ctor = %+v", ctor)
	}
	if sum := vec.MethodByName("Sum", 0); sum == nil || sum.Static || sum.ReturnType() != metadata.Int32 {
		t.Fatalf("Sum = %+v", sum)
	}
	if ext := consts.MethodByName("Extern", 0); ext == nil || ext.Body != nil {
		t.Fatalf("Extern = %+v", ext)
	}
	answer := consts.MethodByName("Answer", 0)
	if answer == nil || answer.Body == nil || len(answer.Body.Code) != 3 || answer.Body.MaxStack != 8 {
		t.Fatalf("Answer = %+v", answer)
	}
	inst := metadata.Instantiate(box, []*metadata.Type{metadata.Int64})
	if f := inst.FieldByName("V"); f == nil || f.Type != metadata.Int64 {
		t.Fatalf("Box<int64>::V = %v", f)
	}
}

func TestBuild_RunsAcrossImages(t *testing.T) {
	geo := build(t, geoYAML, nil)
	shapes := build(t, shapesYAML, map[string]*metadata.Module{"Geo": geo})

	res := resolve.New(geo, shapes)
	unit := jit.NewUnit("shapes", res, jit.DefaultOptions())
	defer unit.Close()

	twice, err := shapes.FindMethod("App.Program::Twice")
	if err != nil {
		t.Fatal(err)
	}
	got, err := unit.Invoke(twice, exec.Int(4))
	if err != nil {
		t.Fatal(err)
	}
	if exec.I32(got) != 14 {
		t.Fatalf("Twice(4) = %d, want 14", exec.I32(got))
	}

	answer, _ := geo.FindMethod("Geo.Consts::Answer")
	if got, err := unit.Invoke(answer); err != nil || exec.I32(got) != 42 {
		t.Fatalf("Answer() = %d, %v", exec.I32(got), err)
	}

	main, _ := shapes.FindMethod("App.Program::Main")
	_, err = unit.Invoke(main, exec.Int(4))
	var ce *jit.CastError
	if !errors.As(err, &ce) {
		t.Fatalf("Main = %v, want CastError", err)
	}
}

func TestParseTypes(t *testing.T) {
	geo := build(t, geoYAML, nil)
	vec := geo.Types()[0]
	box := geo.Types()[1]
	tests := []struct {
		name string
		want *metadata.Type
	}{
		{"native int", metadata.IntPtr},
		{"int32&", metadata.Int32.MakeByRef()},
		{"void*", metadata.Void.MakePointer()},
		{"!1", metadata.GenericParam(1)},
		{"[Geo]Geo.Vec&", vec.MakeByRef()},
		{"[Geo]Geo.Box<[Geo]Geo.Vec>", metadata.Instantiate(box, []*metadata.Type{vec})},
		{"[Geo]Geo.Box`1<[Geo]Geo.Box<int32>>*", metadata.Instantiate(box, []*metadata.Type{
			metadata.Instantiate(box, []*metadata.Type{metadata.Int32}),
		}).MakePointer()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := &image.Image{
				Name:    "P",
				Imports: []string{"Geo"},
				Types: []image.TypeDef{{
					Name:   "Holder",
					Kind:   image.KindStruct,
					Fields: []image.FieldDef{{Name: "F", Type: tt.name, Static: true}},
				}},
			}
			mod, err := image.Build(img, map[string]*metadata.Module{"Geo": geo})
			if err != nil {
				t.Fatal(err)
			}
			if got := mod.Types()[0].FieldByName("F").Type; got != tt.want {
				t.Fatalf("%q parsed as %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	method := func(md image.MethodDef) *image.Image {
		return &image.Image{Name: "E", Types: []image.TypeDef{{Name: "T", Kind: "class", Methods: []image.MethodDef{md}}}}
	}
	tests := []struct {
		name string
		img  *image.Image
		want string
	}{
		{"unnamed", &image.Image{}, "missing name"},
		{"missing import", &image.Image{Name: "E", Imports: []string{"Nope"}}, `import "Nope"`},
		{"bad kind", &image.Image{Name: "E", Types: []image.TypeDef{{Name: "T", Kind: "enum"}}}, "unknown kind"},
		{"duplicate type", &image.Image{Name: "E", Types: []image.TypeDef{{Name: "T"}, {Name: "T"}}}, "defined twice"},
		{"unknown field type", &image.Image{Name: "E", Types: []image.TypeDef{{
			Name: "T", Fields: []image.FieldDef{{Name: "F", Type: "Missing"}},
		}}}, "unknown type"},
		{"generic without definition", &image.Image{Name: "E", Types: []image.TypeDef{{
			Name: "T", Fields: []image.FieldDef{{Name: "F", Type: "T<int32>"}},
		}}}, "not a generic definition"},
		{"static ctor", method(image.MethodDef{Name: ".ctor", Ctor: true, Static: true}), "constructors"},
		{"both bodies", method(image.MethodDef{Name: "M", IL: "ret", Hex: "2a"}), "both il and hex"},
		{"bad hex", method(image.MethodDef{Name: "M", Hex: "zz"}), "invalid byte"},
		{"bad mnemonic", method(image.MethodDef{Name: "M", IL: "frobnicate"}), "unknown mnemonic"},
		{"missing member", method(image.MethodDef{Name: "M", IL: "call T::Nope\nret"}), "no method Nope"},
		{"external without arity", &image.Image{Name: "E", Types: []image.TypeDef{
			{Name: "G", Arity: 1, Methods: []image.MethodDef{{Name: "M"}}},
			{Name: "T", Methods: []image.MethodDef{{Name: "N", IL: "call G<int32>::M\nret"}}},
		}}, "explicit /N arity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := image.Build(tt.img, nil)
			var ie *image.Error
			if !errors.As(err, &ie) {
				t.Fatalf("Build = %v, want *image.Error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSaveLoad_AllFormats(t *testing.T) {
	src := decode(t, geoYAML)
	dir := t.TempDir()
	for _, name := range []string{"geo.yaml", "geo.mp", "geo.cbor"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := image.Save(path, src); err != nil {
				t.Fatal(err)
			}
			back, _, err := image.Read(path)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(back, src) {
				t.Fatalf("%s changed the image:\n got %+v\nwant %+v", name, back, src)
			}
			mod, err := image.Load(path, nil)
			if err != nil || len(mod.Types()) != 3 {
				t.Fatalf("Load(%s) = %v, %v", name, mod, err)
			}
		})
	}
}

func TestMarshal_CanonicalCBOR(t *testing.T) {
	a, err := image.Marshal(decode(t, geoYAML), image.FormatCBOR)
	if err != nil {
		t.Fatal(err)
	}
	b, err := image.Marshal(decode(t, geoYAML), image.FormatCBOR)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("equal images encoded differently")
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]image.Format{
		"a.yaml": image.FormatYAML, "b.YML": image.FormatYAML, "c.mp": image.FormatMsgpack, "d.cbor": image.FormatCBOR,
	} {
		if got, err := image.FormatOf(path); err != nil || got != want {
			t.Errorf("FormatOf(%s) = %s, %v", path, got, err)
		}
	}
	if _, err := image.FormatOf("e.json"); err == nil {
		t.Error("FormatOf(.json) succeeded")
	}
}

func TestUnmarshal_RejectsUnknownYAMLKeys(t *testing.T) {
	_, err := image.Unmarshal([]byte("name: X\ntypo: 1\n"), image.FormatYAML)
	if err == nil {
		t.Fatal("unknown key accepted")
	}
}
