// Package interactive provides the interactive command-line interface
// for upnode-client.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/upnode-go/upnode/pkg/connection"
	"github.com/upnode-go/upnode/pkg/rpc"
)

// Shell drives a handle from a readline prompt.
type Shell struct {
	handle *connection.Handle
	rl     *readline.Instance

	// CallTimeout bounds how long an invocation may wait in the queue.
	CallTimeout time.Duration

	mu          sync.Mutex
	watchCancel context.CancelFunc
	quiet       bool
}

// New creates a shell for h.
func New(h *connection.Handle) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "upnode> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("call"),
			readline.PcItem("time"),
			readline.PcItem("methods"),
			readline.PcItem("status"),
			readline.PcItem("watch"),
			readline.PcItem("unwatch"),
			readline.PcItem("events"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &Shell{
		handle:      h,
		rl:          rl,
		CallTimeout: 10 * time.Second,
	}
	h.Subscribe(s.handleEvent)
	return s, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that coordinates with the prompt.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()
	defer s.cmdUnwatch()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()
		case "call", "c":
			s.cmdCall(args)
		case "time", "t":
			s.call("time", nil)
		case "methods", "m":
			s.cmdMethods()
		case "status", "s":
			s.cmdStatus()
		case "watch", "w":
			s.cmdWatch(ctx, args)
		case "unwatch":
			s.cmdUnwatch()
		case "events":
			s.cmdEvents(args)
		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
upnode Client Commands:
  Calls:
    call <method> [args...]  - Invoke a remote method (queued while offline)
    time                     - Shortcut for 'call time'
    watch [interval]         - Call time periodically (default 1s)
    unwatch                  - Stop watching

  Connection:
    methods                  - List the methods the peer announced
    status                   - Show handle state and queue length
    events on|off            - Show or hide connection events

  General:
    help                     - Show this help
    quit                     - Exit`)
}

func (s *Shell) cmdCall(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: call <method> [args...]")
		return
	}
	values := make([]any, len(args)-1)
	for i, a := range args[1:] {
		values[i] = ParseValue(a)
	}
	s.call(args[0], values)
}

// call queues method on the handle and prints the result when it arrives.
func (s *Shell) call(method string, args []any) {
	out := s.rl.Stdout()
	if s.handle.Remote() == nil {
		fmt.Fprintf(out, "Offline, queued %s (%d waiting)\n", method, s.handle.QueueLen()+1)
	}

	start := time.Now()
	s.handle.InvokeTimeout(s.CallTimeout, func(remote *rpc.Remote, ch *rpc.Channel) {
		if remote == nil {
			fmt.Fprintf(out, "%s: not connected within %s\n", method, s.CallTimeout)
			return
		}
		ctx, cancel := context.WithTimeout(ch.Context(), s.CallTimeout)
		defer cancel()

		var result any
		if err := remote.Call(ctx, method, &result, args...); err != nil {
			fmt.Fprintf(out, "%s failed: %v\n", method, err)
			return
		}
		fmt.Fprintf(out, "%s = %v (%s)\n", method, result, time.Since(start).Round(time.Microsecond))
	})
}

func (s *Shell) cmdMethods() {
	remote := s.handle.Remote()
	if remote == nil {
		fmt.Fprintln(s.rl.Stdout(), "Not connected")
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Peer %s exposes: %s\n", remote.ID(), strings.Join(remote.Methods(), ", "))
}

func (s *Shell) cmdStatus() {
	out := s.rl.Stdout()
	fmt.Fprintf(out, "Handle:  %s\n", s.handle.ID())
	fmt.Fprintf(out, "State:   %s\n", s.handle.State())
	fmt.Fprintf(out, "Queued:  %d\n", s.handle.QueueLen())
	if ch := s.handle.Channel(); ch != nil && ch.RemoteAddr() != nil {
		fmt.Fprintf(out, "Remote:  %s\n", ch.RemoteAddr())
	}
	s.mu.Lock()
	watching := s.watchCancel != nil
	s.mu.Unlock()
	fmt.Fprintf(out, "Watch:   %v\n", watching)
}

func (s *Shell) cmdWatch(ctx context.Context, args []string) {
	interval := time.Second
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil || d <= 0 {
			fmt.Fprintf(s.rl.Stdout(), "Invalid interval: %s\n", args[0])
			return
		}
		interval = d
	}

	s.cmdUnwatch()
	wctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watchCancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-wctx.Done():
				return
			case <-ticker.C:
				// Skip a tick rather than pile up calls while offline.
				if s.handle.QueueLen() == 0 {
					s.call("time", nil)
				}
			}
		}
	}()
	fmt.Fprintf(s.rl.Stdout(), "Calling time every %s\n", interval)
}

func (s *Shell) cmdUnwatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
}

func (s *Shell) cmdEvents(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(s.rl.Stdout(), "Usage: events on|off")
		return
	}
	s.mu.Lock()
	s.quiet = args[0] == "off"
	s.mu.Unlock()
}

func (s *Shell) handleEvent(e connection.Event) {
	s.mu.Lock()
	quiet := s.quiet
	s.mu.Unlock()
	if quiet {
		return
	}
	if _, ok := e.(connection.Ping); ok {
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "[EVENT] %s\n", connection.Describe(e))
}

// ParseValue converts a shell word into a call argument: integers, floats
// and booleans keep their type, everything else is a string.
func ParseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return strings.Trim(s, `"`)
}
