package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL overrides the record TTL.
	TTL time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Advertiser registers listeners with mDNS, one zeroconf server per instance.
type Advertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[string]*zeroconf.Server
}

// NewAdvertiser creates an mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{
		config:  config,
		servers: make(map[string]*zeroconf.Server),
	}
}

// Advertise starts advertising info. An existing advertisement for the same
// instance is replaced.
func (a *Advertiser) Advertise(info *Info) error {
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	if info.Port == 0 {
		return fmt.Errorf("advertise %s: port is required", info.Instance)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if server, exists := a.servers[info.Instance]; exists {
		server.Shutdown()
		delete(a.servers, info.Instance)
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.Instance,
		ServiceType,
		Domain,
		int(info.Port),
		TXTRecordsToStrings(EncodeTXT(info)),
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", info.Instance, err)
	}

	a.servers[info.Instance] = server
	a.debugLog("advertising", "instance", info.Instance, "port", info.Port)
	return nil
}

// Update replaces the TXT records of an active advertisement.
func (a *Advertiser) Update(info *Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.servers[info.Instance]
	if !exists {
		return ErrNotFound
	}
	server.SetText(TXTRecordsToStrings(EncodeTXT(info)))
	return nil
}

// Stop stops advertising instance.
func (a *Advertiser) Stop(instance string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.servers[instance]
	if !exists {
		return ErrNotFound
	}
	server.Shutdown()
	delete(a.servers, instance)
	a.debugLog("stopped advertising", "instance", instance)
	return nil
}

// StopAll stops all advertisements.
func (a *Advertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for instance, server := range a.servers {
		server.Shutdown()
		delete(a.servers, instance)
	}
}

// Instances returns the advertised instance names.
func (a *Advertiser) Instances() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.servers))
	for instance := range a.servers {
		out = append(out, instance)
	}
	return out
}

func (a *Advertiser) debugLog(msg string, args ...any) {
	if a.config.Logger != nil {
		a.config.Logger.Debug(msg, args...)
	}
}

// interfaces returns the named interface, or nil for all interfaces.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
