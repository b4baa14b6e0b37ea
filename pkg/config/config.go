// Package config loads YAML configuration for the upnode commands.
//
//	log_level: debug
//	client:
//	  target: localhost:7000
//	  ping: 10s
//	  timeout: 5s
//	  reconnect: 1s
//	server:
//	  listen: :7000
//	  advertise: upnode-server
//	  tls:
//	    dir: ./certs
//	    name: server
//	    hosts: [localhost, 127.0.0.1]
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/upnode-go/upnode/pkg/upnode"
)

// Configuration errors.
var (
	ErrNoTarget      = errors.New("client needs a target or a service")
	ErrInvalidLevel  = errors.New("invalid log level")
	ErrTLSIncomplete = errors.New("tls needs a certificate directory")
)

// Duration is a time.Duration written as "10s", "250ms" or "0".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "0" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// File is a complete configuration file.
type File struct {
	LogLevel string `yaml:"log_level,omitempty"`

	// ProtocolLog is the path of a CBOR protocol log (optional).
	ProtocolLog string `yaml:"protocol_log,omitempty"`

	Client Client `yaml:"client"`
	Server Server `yaml:"server"`
}

// Client configures cmd/upnode-client.
type Client struct {
	// Target is "host:port", a port, or a unix socket path.
	Target string `yaml:"target,omitempty"`

	// Service resolves the target over mDNS instead.
	Service string `yaml:"service,omitempty"`

	Ping      Duration `yaml:"ping"`
	Timeout   Duration `yaml:"timeout"`
	Reconnect Duration `yaml:"reconnect"`

	TLS *TLS `yaml:"tls,omitempty"`
}

// Server configures cmd/upnode-server.
type Server struct {
	// Listen is ":port", "host:port" or a unix socket path.
	Listen string `yaml:"listen"`

	// Advertise registers the listener over mDNS under this name.
	Advertise string `yaml:"advertise,omitempty"`

	SessionPing    Duration `yaml:"session_ping,omitempty"`
	SessionTimeout Duration `yaml:"session_timeout,omitempty"`

	TLS *TLS `yaml:"tls,omitempty"`
}

// Default returns the built-in configuration.
func Default() *File {
	return &File{
		LogLevel: "info",
		Client: Client{
			Target:    "localhost:7000",
			Ping:      Duration(upnode.DefaultPing),
			Timeout:   Duration(upnode.DefaultTimeout),
			Reconnect: Duration(upnode.DefaultReconnect),
		},
		Server: Server{
			Listen: ":7000",
		},
	}
}

// Parse reads a configuration from YAML. Missing keys keep their defaults.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks the configuration for obvious mistakes.
func (f *File) Validate() error {
	if _, err := ParseLevel(f.LogLevel); err != nil {
		return err
	}
	if f.Client.Target == "" && f.Client.Service == "" {
		return ErrNoTarget
	}
	for _, t := range []*TLS{f.Client.TLS, f.Server.TLS} {
		if t != nil && t.Dir == "" {
			return ErrTLSIncomplete
		}
	}
	return nil
}

// Marshal writes f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
}
