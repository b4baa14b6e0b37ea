package discovery

import (
	"context"
	"fmt"
)

// Resolver finds the current address of a named listener. It satisfies
// connection.Resolver.
type Resolver struct {
	// Instance is the advertised instance name.
	Instance string

	// Finder performs the lookup. Default: a Browser with default config.
	Finder Finder
}

// NewResolver returns a resolver for instance using the default browser.
func NewResolver(instance string) *Resolver {
	return &Resolver{Instance: instance, Finder: NewBrowser(BrowserConfig{})}
}

// Resolve looks the instance up and returns a TCP target.
func (r *Resolver) Resolve(ctx context.Context) (network, address string, err error) {
	finder := r.Finder
	if finder == nil {
		finder = NewBrowser(BrowserConfig{})
	}
	svc, err := finder.Find(ctx, r.Instance)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", r.Instance, err)
	}
	address, err = svc.Address()
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", r.Instance, err)
	}
	return "tcp", address, nil
}
