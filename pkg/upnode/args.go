package upnode

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/upnode-go/upnode/pkg/connection"
	"github.com/upnode-go/upnode/pkg/rpc"
)

// ErrInvalidArgument is returned by ParseArgs for unsupported arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// ParseArgs interprets the trailing arguments of Connect and Listen. They
// may come in any order:
//
//   - int or uint16: port
//   - string of digits: port
//   - string containing "/": unix socket path
//   - "host:port": host and port
//   - any other string: host
//   - Options or *Options: option set
//   - connection.BlockFunc or func(*rpc.Remote, *rpc.Channel): Block
//   - *tls.Config: TLS
//
// Without an option set DefaultOptions apply. Target arguments override
// the target fields of an option set regardless of position.
func ParseArgs(args ...any) (Options, error) {
	opts := DefaultOptions()
	var target Options
	var block connection.BlockFunc
	var tlsConf *tls.Config

	for i, arg := range args {
		switch v := arg.(type) {
		case int:
			if err := target.setPort(v); err != nil {
				return Options{}, fmt.Errorf("argument %d: %w", i, err)
			}
		case uint16:
			_ = target.setPort(int(v))
		case string:
			if err := target.setString(v); err != nil {
				return Options{}, fmt.Errorf("argument %d: %w", i, err)
			}
		case Options:
			opts = v
		case *Options:
			if v == nil {
				return Options{}, fmt.Errorf("argument %d: %w: nil *Options", i, ErrInvalidArgument)
			}
			opts = *v
		case connection.BlockFunc:
			block = v
		case func(*rpc.Remote, *rpc.Channel):
			block = v
		case *tls.Config:
			tlsConf = v
		default:
			return Options{}, fmt.Errorf("argument %d: %w: %T", i, ErrInvalidArgument, arg)
		}
	}

	if opts.Port != 0 {
		opts.portSet = true
	}
	if target.portSet {
		opts.Port, opts.portSet = target.Port, true
	}
	if target.Host != "" {
		opts.Host = target.Host
	}
	if target.Path != "" {
		opts.Path = target.Path
	}
	if block != nil {
		opts.Block = block
	}
	if tlsConf != nil {
		opts.TLS = tlsConf
	}
	return opts, nil
}

func (o *Options) setPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidArgument, port)
	}
	o.Port, o.portSet = port, true
	return nil
}

func (o *Options) setString(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty string", ErrInvalidArgument)
	case isDigits(s):
		port, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: port %q", ErrInvalidArgument, s)
		}
		return o.setPort(port)
	case strings.Contains(s, "/"):
		o.Path = s
		return nil
	}

	if host, port, err := net.SplitHostPort(s); err == nil && isDigits(port) {
		p, _ := strconv.Atoi(port)
		if err := o.setPort(p); err != nil {
			return err
		}
		o.Host = host
		return nil
	}
	o.Host = s
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
