package rpc

import (
	"context"
	"fmt"
	"slices"

	"github.com/upnode-go/upnode/pkg/wire"
)

// Pingable is the heartbeat capability of a peer.
type Pingable interface {
	Ping(ctx context.Context) error
}

// Remote is a proxy for the methods the peer exposes. It is valid only while
// its channel is live.
type Remote struct {
	ch        *Channel
	sessionID string
	methods   []string
}

func newRemote(ch *Channel, sessionID string, methods []string) *Remote {
	names := slices.Clone(methods)
	slices.Sort(names)
	return &Remote{ch: ch, sessionID: sessionID, methods: names}
}

// ID returns the session ID the peer announced.
func (r *Remote) ID() string {
	return r.sessionID
}

// Channel returns the channel carrying this remote.
func (r *Remote) Channel() *Channel {
	return r.ch
}

// Methods returns the sorted method names the peer exposes.
func (r *Remote) Methods() []string {
	return slices.Clone(r.methods)
}

// Has reports whether the peer exposes method.
func (r *Remote) Has(method string) bool {
	_, found := slices.BinarySearch(r.methods, method)
	return found
}

// Call invokes method on the peer and decodes the reply into result, which
// may be nil to discard it.
func (r *Remote) Call(ctx context.Context, method string, result any, args ...any) error {
	if !r.Has(method) {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return r.ch.call(ctx, method, result, args...)
}

// Pingable returns the peer's heartbeat capability, or false when the peer
// does not expose ping.
func (r *Remote) Pingable() (Pingable, bool) {
	if !r.Has(wire.PingMethod) {
		return nil, false
	}
	return remotePinger{r}, true
}

type remotePinger struct {
	r *Remote
}

func (p remotePinger) Ping(ctx context.Context) error {
	return p.r.ch.call(ctx, wire.PingMethod, nil)
}
