// Command upnode-server accepts upnode connections and exposes a small
// demo API.
//
// Exposed methods:
//
//	time        returns the server time (RFC 3339, nanoseconds)
//	echo args   returns its arguments
//
// Usage:
//
//	upnode-server [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-listen string        Listen address, port or unix socket path (default ":7000")
//	-advertise string     Advertise over mDNS under this instance name
//	-tls-dir string       Certificate directory; enables TLS
//	-idle duration        End sessions idle for longer than this (0 disables)
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  File path for protocol event logging (CBOR format)
//
// Examples:
//
//	# Plain TCP on the default port
//	upnode-server
//
//	# TLS with an mDNS advertisement
//	upnode-server -tls-dir ./certs -advertise kitchen
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/upnode-go/upnode/internal/cli"
	"github.com/upnode-go/upnode/pkg/config"
	"github.com/upnode-go/upnode/pkg/rpc"
	"github.com/upnode-go/upnode/pkg/upnode"
)

var (
	flags     cli.Flags
	listen    string
	advertise string
	tlsDir    string
	idle      time.Duration
)

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.StringVar(&listen, "listen", "", "Listen address, port or unix socket path (default \":7000\")")
	flag.StringVar(&advertise, "advertise", "", "Advertise over mDNS under this instance name")
	flag.StringVar(&tlsDir, "tls-dir", "", "Certificate directory; enables TLS")
	flag.DurationVar(&idle, "idle", 0, "End sessions idle for longer than this (0 disables)")
}

// api is the constructor for every accepted session.
func api(local rpc.Methods, _ *rpc.Channel) rpc.Methods {
	local["time"] = func(context.Context, *rpc.Call) (any, error) {
		return time.Now().UTC().Format(time.RFC3339Nano), nil
	}
	local["echo"] = func(_ context.Context, call *rpc.Call) (any, error) {
		args := make([]any, call.NumArgs())
		for i := range args {
			if err := call.Arg(i, &args[i]); err != nil {
				return nil, err
			}
		}
		return args, nil
	}
	return local
}

func main() {
	flag.Parse()

	env, err := cli.Setup(flags, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer env.Close()
	logger := env.Logger

	server := env.Config.Server
	if listen != "" {
		server.Listen = listen
	}
	if advertise != "" {
		server.Advertise = advertise
	}
	if tlsDir != "" {
		server.TLS = &config.TLS{Dir: tlsDir}
	}

	opts, target, err := server.Options()
	if err != nil {
		logger.Error("invalid server configuration", "error", err)
		os.Exit(1)
	}
	opts.Logger = logger
	opts.ProtocolLogger = env.Protocol

	node := upnode.New(api)
	l, err := node.Listen(append(target, opts)...)
	if err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}
	logger.Info("listening", "addr", l.Addr(), "node", node.ID(), "tls", opts.TLS != nil, "advertise", opts.Advertise)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if idle > 0 {
		go reapIdle(ctx, l, idle)
	}

	<-ctx.Done()
	logger.Info("shutting down", "sessions", l.Sessions().Count())
	if err := node.Close(); err != nil {
		logger.Warn("close failed", "error", err)
	}
}

// reapIdle periodically ends sessions that made no calls within maxIdle.
func reapIdle(ctx context.Context, l *upnode.Listener, maxIdle time.Duration) {
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sessions().EndIdle(maxIdle)
		}
	}
}
