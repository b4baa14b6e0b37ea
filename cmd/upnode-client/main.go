// Command upnode-client keeps a durable connection to an upnode server and
// calls its methods.
//
// Without -every the client opens an interactive shell. With -every it
// calls the time method periodically and prints connection events until
// interrupted.
//
// Usage:
//
//	upnode-client [flags] [target]
//
// The target is a port, host:port or unix socket path (default
// "localhost:7000").
//
// Flags:
//
//	-config string        YAML configuration file
//	-service string       Resolve the server over mDNS by instance name
//	-ping duration        Heartbeat period (0 disables)
//	-timeout duration     Heartbeat timeout (0 disables)
//	-reconnect duration   Delay between attempts
//	-tls-dir string       Certificate directory; enables TLS
//	-server-name string   Expected server certificate name
//	-every duration       Call time periodically instead of opening a shell
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  File path for protocol event logging (CBOR format)
//
// Examples:
//
//	# Shell against a local server
//	upnode-client
//
//	# Find the server over mDNS and poll it every 2s
//	upnode-client -service kitchen -every 2s
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/upnode-go/upnode/cmd/upnode-client/interactive"
	"github.com/upnode-go/upnode/internal/cli"
	"github.com/upnode-go/upnode/pkg/config"
	"github.com/upnode-go/upnode/pkg/connection"
	"github.com/upnode-go/upnode/pkg/rpc"
	"github.com/upnode-go/upnode/pkg/upnode"
)

var (
	flags      cli.Flags
	service    string
	ping       time.Duration
	timeout    time.Duration
	reconnect  time.Duration
	tlsDir     string
	serverName string
	every      time.Duration
)

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.StringVar(&service, "service", "", "Resolve the server over mDNS by instance name")
	flag.DurationVar(&ping, "ping", -1, "Heartbeat period (0 disables)")
	flag.DurationVar(&timeout, "timeout", -1, "Heartbeat timeout (0 disables)")
	flag.DurationVar(&reconnect, "reconnect", 0, "Delay between attempts")
	flag.StringVar(&tlsDir, "tls-dir", "", "Certificate directory; enables TLS")
	flag.StringVar(&serverName, "server-name", "", "Expected server certificate name")
	flag.DurationVar(&every, "every", 0, "Call time periodically instead of opening a shell")
}

func main() {
	flag.Parse()

	env, err := cli.Setup(flags, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer env.Close()

	client := env.Config.Client
	if flag.NArg() > 0 {
		client.Target, client.Service = flag.Arg(0), ""
	}
	if service != "" {
		client.Service = service
	}
	if ping >= 0 {
		client.Ping = config.Duration(ping)
	}
	if timeout >= 0 {
		client.Timeout = config.Duration(timeout)
	}
	if reconnect > 0 {
		client.Reconnect = config.Duration(reconnect)
	}
	if tlsDir != "" {
		client.TLS = &config.TLS{Dir: tlsDir, ServerName: serverName}
	}

	opts, target, err := client.Options()
	if err != nil {
		env.Logger.Error("invalid client configuration", "error", err)
		os.Exit(1)
	}
	opts.ProtocolLogger = env.Protocol

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if every > 0 {
		opts.Logger = env.Logger
		h, err := upnode.Connect(append(target, opts)...)
		if err != nil {
			env.Logger.Error("connect failed", "error", err)
			os.Exit(1)
		}
		poll(ctx, h, every, env.Logger)
		h.Close()
		return
	}

	// The shell prints events itself; debug logs would break the prompt.
	h, err := upnode.Connect(append(target, opts)...)
	if err != nil {
		env.Logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer h.Close()

	shell, err := interactive.New(h)
	if err != nil {
		env.Logger.Error("shell failed", "error", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	shell.Run(ctx, cancel)
}

// poll calls time every interval and logs the handle's events until ctx
// is done.
func poll(ctx context.Context, h *connection.Handle, interval time.Duration, logger *slog.Logger) {
	events, cancel := h.Events(32)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			logger.Info("event", "handle", h.ID(), "event", connection.Describe(e))
		case <-ticker.C:
			if h.QueueLen() > 0 {
				continue
			}
			h.InvokeTimeout(interval, func(remote *rpc.Remote, ch *rpc.Channel) {
				if remote == nil {
					logger.Warn("time not called", "reason", "offline")
					return
				}
				cctx, cancel := context.WithTimeout(ch.Context(), interval)
				defer cancel()
				var now string
				if err := remote.Call(cctx, "time", &now); err != nil {
					logger.Warn("time failed", "error", err)
					return
				}
				logger.Info("time", "server", now)
			})
		}
	}
}
