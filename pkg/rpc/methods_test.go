package rpc

import (
	"context"
	"testing"

	"github.com/upnode-go/upnode/pkg/wire"
)

func TestBuildInstallsPing(t *testing.T) {
	local := Build(nil, nil)
	if !local.Has(wire.PingMethod) {
		t.Fatal("Build should install ping")
	}
	if res, err := local[wire.PingMethod](context.Background(), &Call{}); res != nil || err != nil {
		t.Errorf("no-op ping returned (%v, %v)", res, err)
	}
}

func TestBuildKeepsCustomPing(t *testing.T) {
	called := false
	cons := func(local Methods, _ *Channel) Methods {
		local[wire.PingMethod] = func(context.Context, *Call) (any, error) {
			called = true
			return nil, nil
		}
		return local
	}
	local := Build(cons, nil)
	local[wire.PingMethod](context.Background(), &Call{})
	if !called {
		t.Error("custom ping was replaced")
	}
}

func TestBuildNilResultFallsBack(t *testing.T) {
	cons := func(local Methods, _ *Channel) Methods {
		local["time"] = NoopPing
		return nil
	}
	local := Build(cons, nil)
	if !local.Has("time") {
		t.Error("methods added to the pre-created set should survive a nil return")
	}
}

func TestBuildReturnedSetReplacesLocal(t *testing.T) {
	cons := func(local Methods, _ *Channel) Methods {
		local["dropped"] = NoopPing
		return Methods{"kept": NoopPing}
	}
	local := Build(cons, nil)
	if local.Has("dropped") || !local.Has("kept") {
		t.Errorf("got %v", local.Names())
	}
}

func TestBuildMiddlewareOrder(t *testing.T) {
	var order []string
	cons := func(local Methods, _ *Channel) Methods {
		order = append(order, "cons")
		return local
	}
	mw := func(name string) Middleware {
		return func(local Methods, _ *Channel) {
			order = append(order, name)
			local[name] = NoopPing
		}
	}
	local := Build(cons, nil, mw("first"), nil, mw("second"))

	want := []string{"cons", "first", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if got := local.Names(); len(got) != 3 || got[0] != "first" || got[1] != "ping" || got[2] != "second" {
		t.Errorf("Names() = %v", got)
	}
}

func TestEnsurePingNil(t *testing.T) {
	// Must not panic.
	EnsurePing(nil, nil)
}

func TestCallArg(t *testing.T) {
	args, err := wire.EncodeArgs("hi", 3)
	if err != nil {
		t.Fatal(err)
	}
	call := &Call{method: "m", args: args}

	if call.NumArgs() != 2 {
		t.Errorf("NumArgs = %d", call.NumArgs())
	}
	var s string
	if err := call.Arg(0, &s); err != nil || s != "hi" {
		t.Errorf("Arg(0) = %q, %v", s, err)
	}
	var n int
	if err := call.Arg(1, &n); err != nil || n != 3 {
		t.Errorf("Arg(1) = %d, %v", n, err)
	}
	if err := call.Arg(2, &n); err == nil {
		t.Error("Arg(2) should fail")
	}
	if err := call.Arg(0, &n); err == nil {
		t.Error("decoding a string into int should fail")
	}
}
