// Package upnode is the entry point for durable RPC connections.
//
// A Node binds one API constructor to any number of outbound connections
// and listeners:
//
//	node := upnode.New(func(local rpc.Methods, ch *rpc.Channel) rpc.Methods {
//		local["time"] = func(context.Context, *rpc.Call) (any, error) {
//			return time.Now().Unix(), nil
//		}
//		return local
//	}, upnode.Ping)
//
//	srv, err := node.Listen(7000)
//	up, err := node.Connect(7000, "localhost")
//	up.Invoke(func(remote *rpc.Remote, ch *rpc.Channel) {
//		var t int64
//		_ = remote.Call(ctx, "time", &t)
//	})
//
// Connect and Listen accept their target and options as trailing arguments
// in any order; see ParseArgs.
package upnode
