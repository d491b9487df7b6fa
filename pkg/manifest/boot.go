package manifest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
)

// FactoryKind enumerates the built-in factory implementations.
type FactoryKind string

const (
	KindNormal    FactoryKind = "normal"
	KindShimRelay FactoryKind = "shim-relay"
)

// Factory is registered with the manager at boot.
type Factory struct {
	Name    string      `toml:"name"`
	Kind    FactoryKind `toml:"kind"`
	Backlog int         `toml:"backlog"` // normal kind: written SDUs kept per instance
	Relay   *Relay      `toml:"relay"`
}

// Relay parameterizes a shim-relay factory. Relay targets, TLS and OAuth
// come from the ELECTRICIAN_* environment.
type Relay struct {
	Topic   string `toml:"topic"`
	Timeout string `toml:"timeout"`
}

// IPCP is created (and configured, when DIF is set) at boot.
type IPCP struct {
	ID      int               `toml:"id"`
	Name    string            `toml:"name"`
	Factory string            `toml:"factory"`
	DIF     string            `toml:"dif"`
	Config  map[string]string `toml:"config"`
}

// Flow is added at boot.
type Flow struct {
	Port int `toml:"port"`
	IPCP int `toml:"ipcp"`
}

func (c *Config) validateFactories() error {
	seen := map[string]struct{}{}
	for i := range c.Factories {
		f := &c.Factories[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return fmt.Errorf("factory %d: name required", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("factory %d: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Kind {
		case "":
			f.Kind = KindNormal
		case KindNormal, KindShimRelay:
		default:
			return fmt.Errorf("factory %q: unknown kind %q", f.Name, f.Kind)
		}
		if f.Kind == KindShimRelay && f.Relay == nil {
			f.Relay = &Relay{}
		}
		if f.Backlog < 0 {
			return fmt.Errorf("factory %q: backlog must be >= 0", f.Name)
		}
		if f.Relay != nil {
			if strings.TrimSpace(f.Relay.Topic) == "" {
				f.Relay.Topic = "ipcm.sdu"
			}
			if f.Relay.Timeout != "" {
				if _, err := time.ParseDuration(f.Relay.Timeout); err != nil {
					return fmt.Errorf("factory %q relay: timeout: %w", f.Name, err)
				}
			}
		}
	}
	return nil
}

func (c *Config) validateIPCPs() error {
	known := map[string]struct{}{c.Manager.DefaultFactory: {}}
	for _, f := range c.Factories {
		known[f.Name] = struct{}{}
	}
	ids := map[int]struct{}{}
	for i := range c.IPCPs {
		p := &c.IPCPs[i]
		if p.ID < 0 || p.ID > math.MaxUint16 {
			return fmt.Errorf("ipcp %d: id %d out of range", i, p.ID)
		}
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("ipcp %d: duplicate id %d", i, p.ID)
		}
		ids[p.ID] = struct{}{}
		if _, err := kipcm.ParseName(p.Name); err != nil {
			return fmt.Errorf("ipcp %d: %w", p.ID, err)
		}
		if p.Factory == "" {
			p.Factory = c.Manager.DefaultFactory
		}
		if _, ok := known[p.Factory]; !ok {
			return fmt.Errorf("ipcp %d: factory %q is not declared", p.ID, p.Factory)
		}
		if len(p.Config) > 0 && p.DIF == "" {
			return fmt.Errorf("ipcp %d: config entries require a dif", p.ID)
		}
	}
	return nil
}

func (c *Config) validateFlows() error {
	ids := map[int]struct{}{}
	for _, p := range c.IPCPs {
		ids[p.ID] = struct{}{}
	}
	ports := map[int]struct{}{}
	for i, f := range c.Flows {
		if f.Port < 0 || f.Port > math.MaxInt32 {
			return fmt.Errorf("flow %d: port %d out of range", i, f.Port)
		}
		if _, dup := ports[f.Port]; dup {
			return fmt.Errorf("flow %d: duplicate port %d", i, f.Port)
		}
		ports[f.Port] = struct{}{}
		if _, ok := ids[f.IPCP]; !ok {
			return fmt.Errorf("flow %d: ipcp %d is not declared", f.Port, f.IPCP)
		}
	}
	return nil
}

// PublishTimeout returns the parsed relay timeout, or def when unset.
func (r *Relay) PublishTimeout(def time.Duration) time.Duration {
	if r == nil || r.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
