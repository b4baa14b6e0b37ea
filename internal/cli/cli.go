// Package cli holds the setup shared by the upnode commands: loading the
// YAML configuration, building the slog logger and opening the protocol
// log.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/upnode-go/upnode/pkg/config"
	"github.com/upnode-go/upnode/pkg/log"
)

// Flags are the command-line values every command accepts. Empty values
// keep what the configuration file says.
type Flags struct {
	ConfigFile  string
	LogLevel    string
	ProtocolLog string
}

// Env is the environment a command runs in.
type Env struct {
	Config *config.File
	Logger *slog.Logger

	// Protocol is nil unless a protocol log was requested or debug
	// logging is on.
	Protocol log.Logger

	file *log.FileLogger
}

// Setup loads the configuration, applies flag overrides and builds the
// loggers. Human-readable logs go to w.
func Setup(flags Flags, w io.Writer) (*Env, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(flags.ConfigFile); err != nil {
			return nil, err
		}
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if flags.ProtocolLog != "" {
		cfg.ProtocolLog = flags.ProtocolLog
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	env := &Env{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
	}

	var loggers []log.Logger
	if cfg.ProtocolLog != "" {
		env.file, err = log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		loggers = append(loggers, env.file)
	}
	if level <= slog.LevelDebug {
		loggers = append(loggers, log.NewSlogAdapter(env.Logger))
	}
	switch len(loggers) {
	case 0:
	case 1:
		env.Protocol = loggers[0]
	default:
		env.Protocol = log.NewMultiLogger(loggers...)
	}

	return env, nil
}

// Close flushes and closes the protocol log.
func (e *Env) Close() error {
	if e.file == nil {
		return nil
	}
	return e.file.Close()
}
