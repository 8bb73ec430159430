package jit

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tliron/commonlog"

	"iljit/internal/cil"
	"iljit/internal/ir"
	"iljit/internal/metadata"
	"iljit/internal/resolve"
)

func TestGetMethod_VerificationFailure(t *testing.T) {
	mod := metadata.NewModule("Test")
	prog := mod.DefineClass("App", "Program")
	m := mod.DefineMethod(prog, "Two", true, metadata.Int32)
	m.SetBody(1, nil, cil.NewAssembler().Emit(cil.LdcI42).Emit(cil.Ret).MustBytes())

	var (
		fatalMethod *metadata.Method
		fatalFunc   *ir.Function
		fatalErr    error
	)
	opts := DefaultOptions()
	opts.Fatal = func(m *metadata.Method, fn *ir.Function, err error) {
		fatalMethod, fatalFunc, fatalErr = m, fn, err
	}
	u := NewUnit("verify", resolve.New(mod), opts)
	defer u.Close()
	broken := errors.New("block does not end in a terminator")
	u.verify = func(*ir.Function) error { return broken }

	_, err := u.GetMethod(m)
	var ve *VerificationError
	if !errors.As(err, &ve) || ve.Method != m || !errors.Is(err, broken) {
		t.Fatalf("GetMethod = %v, want a VerificationError wrapping %v", err, broken)
	}
	if fatalMethod != m || fatalErr != broken || fatalFunc == nil || fatalFunc.Name != ve.Function {
		t.Fatalf("fatal handler got (%v, %v, %v)", fatalMethod, fatalFunc, fatalErr)
	}
	if _, ok := u.Module().NamedFunction(ve.Function); ok {
		t.Fatalf("%s still registered after the failure", ve.Function)
	}
}

func TestExitOnFailure_ReportsFunction(t *testing.T) {
	mod := metadata.NewModule("Test")
	m := mod.DefineMethod(mod.DefineClass("App", "Program"), "Bad", true, metadata.Void)
	fn, err := ir.NewModule("m").AddFunction("bad", ir.FuncType(ir.Void()))
	if err != nil {
		t.Fatal(err)
	}
	fn.AddBlock("entry")

	var out bytes.Buffer
	code := -1
	exitOnFailure(commonlog.GetLogger("iljit.test"), &out, func(c int) { code = c })(m, fn, ir.VerifyFunction(fn))

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	for _, want := range []string{m.String(), "empty block", fn.Ref()} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("report lacks %q:\n%s", want, out.String())
		}
	}
}
