package rpc

import (
	"context"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/upnode-go/upnode/pkg/wire"
)

// Method handles one incoming call. The returned value is encoded as the
// reply result; a non-nil error is sent back as a failed reply.
type Method func(ctx context.Context, call *Call) (any, error)

// Methods is the set of methods one side exposes, keyed by name.
type Methods map[string]Method

// Names returns the sorted method names.
func (m Methods) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a method with the given name exists.
func (m Methods) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Constructor builds the local API for one channel. It may fill and return
// local, return a different set, or return nil to keep local as filled.
type Constructor func(local Methods, ch *Channel) Methods

// Middleware adjusts the local API after the constructor ran.
type Middleware func(local Methods, ch *Channel)

// Build runs the constructor and middleware for ch and guarantees a ping
// method.
func Build(cons Constructor, ch *Channel, mw ...Middleware) Methods {
	local := build(cons, ch, mw...)
	EnsurePing(local, ch)
	return local
}

func build(cons Constructor, ch *Channel, mw ...Middleware) Methods {
	local := Methods{}
	if cons != nil {
		if built := cons(local, ch); built != nil {
			local = built
		}
	}
	for _, m := range mw {
		if m != nil {
			m(local, ch)
		}
	}
	return local
}

// EnsurePing installs a no-op ping method when local lacks one.
func EnsurePing(local Methods, _ *Channel) {
	if local == nil || local.Has(wire.PingMethod) {
		return
	}
	local[wire.PingMethod] = NoopPing
}

// NoopPing answers a heartbeat immediately.
func NoopPing(context.Context, *Call) (any, error) {
	return nil, nil
}

var _ Middleware = EnsurePing

// Call is one incoming method invocation.
type Call struct {
	ch     *Channel
	id     uint32
	method string
	args   []cbor.RawMessage
}

// Method returns the called method name.
func (c *Call) Method() string {
	return c.method
}

// Channel returns the channel the call arrived on.
func (c *Call) Channel() *Channel {
	return c.ch
}

// NumArgs returns the number of arguments.
func (c *Call) NumArgs() int {
	return len(c.args)
}

// Arg decodes argument i into v.
func (c *Call) Arg(i int, v any) error {
	if i < 0 || i >= len(c.args) {
		return fmt.Errorf("%s: argument %d out of range (%d given)", c.method, i, len(c.args))
	}
	if err := wire.Unmarshal(c.args[i], v); err != nil {
		return fmt.Errorf("%s: argument %d: %w", c.method, i, err)
	}
	return nil
}
