// Package rpc turns a byte-stream transport into a bidirectional method-call
// channel.
//
// Each side of a Channel exposes a set of named Methods. When a channel
// starts it announces its session ID and method names in a hello message;
// once the peer's hello arrives the channel is ready and Remote returns a
// proxy for calling the peer:
//
//	ch := rpc.NewChannel(conn, rpc.Config{
//		Constructor: func(local rpc.Methods, ch *rpc.Channel) rpc.Methods {
//			local["time"] = func(ctx context.Context, call *rpc.Call) (any, error) {
//				return time.Now().Unix(), nil
//			}
//			return local
//		},
//	})
//	ch.Start(ctx)
//	<-ch.Ready()
//	var now int64
//	err := ch.Remote().Call(ctx, "time", &now)
//
// Every channel exposes a "ping" method. If the constructor does not define
// one, a no-op is installed so peers can always probe liveness.
//
// Messages are CBOR-encoded (see package wire) inside length-prefixed
// frames (see package transport).
package rpc
