package upnode

import (
	"net"
	"sync"

	"github.com/upnode-go/upnode/pkg/discovery"
	"github.com/upnode-go/upnode/pkg/session"
	"github.com/upnode-go/upnode/pkg/transport"
)

// Listener is one acceptor with its sessions.
type Listener struct {
	server     *transport.Server
	sessions   *session.Manager
	advertiser *discovery.Advertiser

	closeOnce sync.Once
	closeErr  error
}

// Addr returns the listen address.
func (l *Listener) Addr() net.Addr {
	return l.server.Addr()
}

// Sessions returns the session manager of this listener.
func (l *Listener) Sessions() *session.Manager {
	return l.sessions
}

// Close stops advertising, ends every session and stops accepting.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		if l.advertiser != nil {
			l.advertiser.StopAll()
		}
		l.sessions.CloseAll()
		l.closeErr = l.server.Stop()
	})
	return l.closeErr
}

func (l *Listener) advertise(instance, nodeID string, opts Options) error {
	port := 0
	if addr, ok := l.server.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	l.advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{Logger: opts.Logger})
	return l.advertiser.Advertise(&discovery.Info{
		Instance: instance,
		Port:     uint16(port),
		NodeID:   nodeID,
		TLS:      opts.TLS != nil,
	})
}
