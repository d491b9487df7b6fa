package core

import (
	"fmt"
	"time"

	"github.com/joeydtaylor/steeze-ipcm/pkg/electrician"
	"github.com/joeydtaylor/steeze-ipcm/pkg/ipcp"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	manifest "github.com/joeydtaylor/steeze-ipcm/pkg/manifest"
	"go.uber.org/zap"
)

// Relay is what shim-relay factories publish through.
type Relay struct {
	Publisher electrician.Publisher
	// Timeout applies to factories whose manifest sets no relay timeout.
	Timeout time.Duration
}

// Provision registers the manifest's factories, then creates its IPC
// processes and flows, in that order. The default factory is registered as
// a normal one when the manifest does not declare it. The first failure
// stops provisioning.
func Provision(m *kipcm.Manager, cfg manifest.Config, relay Relay, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	factories := cfg.Factories
	declared := false
	for _, f := range factories {
		if f.Name == cfg.Manager.DefaultFactory {
			declared = true
			break
		}
	}
	if !declared {
		factories = append([]manifest.Factory{{Name: cfg.Manager.DefaultFactory, Kind: manifest.KindNormal}}, factories...)
	}

	for _, f := range factories {
		deps := ipcp.Deps{
			Log:          log.With(zap.String("factory", f.Name)),
			Publisher:    relay.Publisher,
			Backlog:      f.Backlog,
			RelayTimeout: f.Relay.PublishTimeout(relay.Timeout),
		}
		if f.Relay != nil {
			deps.RelayTopic = f.Relay.Topic
		}
		impl, err := ipcp.New(string(f.Kind), deps)
		if err != nil {
			return fmt.Errorf("factory %q: %w", f.Name, err)
		}
		if _, err := m.FactoryRegister(f.Name, impl); err != nil {
			return err
		}
		log.Info("factory registered", zap.String("factory", f.Name), zap.String("kind", string(f.Kind)))
	}

	for _, p := range cfg.IPCPs {
		name, err := kipcm.ParseName(p.Name)
		if err != nil {
			return err
		}
		id := kipcm.IPCProcessID(p.ID)
		if err := m.IPCPCreate(name, id, p.Factory); err != nil {
			return err
		}
		if p.DIF != "" {
			if err := m.IPCPConfigure(id, &kipcm.IPCPConfig{DIFName: p.DIF, Entries: p.Config}); err != nil {
				return err
			}
		}
		log.Info("ipc process created", zap.Int("id", p.ID), zap.String("name", p.Name), zap.String("dif", p.DIF))
	}

	for _, f := range cfg.Flows {
		if err := m.FlowAdd(kipcm.IPCProcessID(f.IPCP), kipcm.PortID(f.Port)); err != nil {
			return err
		}
	}
	if len(cfg.Flows) > 0 {
		log.Info("flows bound", zap.Int("count", len(cfg.Flows)))
	}
	return nil
}
