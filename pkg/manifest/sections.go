package manifest

import (
	"fmt"
	"net"
	"strings"

	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	"github.com/joeydtaylor/steeze-ipcm/pkg/sduq"
)

const (
	DefaultConsoleAddress = "127.0.0.1:32766"
	DefaultAdminAddress   = "127.0.0.1:4000"
	DefaultConsoleBuffer  = 4096
)

type Manager struct {
	DefaultFactory string `toml:"default_factory"`
	QueueCapacity  int    `toml:"queue_capacity"`
	LockDebug      bool   `toml:"lock_debug"`
}

func (m *Manager) validate() error {
	m.DefaultFactory = strings.TrimSpace(m.DefaultFactory)
	if m.DefaultFactory == "" {
		m.DefaultFactory = kipcm.DefaultFactory
	}
	if m.QueueCapacity == 0 {
		m.QueueCapacity = sduq.DefaultCapacity
	}
	if m.QueueCapacity <= sduq.PrefixSize {
		return fmt.Errorf("manager: queue_capacity must exceed %d", sduq.PrefixSize)
	}
	return nil
}

// Console is the loopback command console. It is on unless Enable is
// explicitly false.
type Console struct {
	Enable     *bool  `toml:"enable"`
	Address    string `toml:"address"`
	BufferSize int    `toml:"buffer_size"`
}

func (c *Console) Enabled() bool { return c.Enable == nil || *c.Enable }

func (c *Console) validate() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = DefaultConsoleAddress
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("console: address %q: %w", c.Address, err)
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultConsoleBuffer
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("console: buffer_size must be >= 0")
	}
	return nil
}

type Admin struct {
	Address     string `toml:"address"`
	RequireAuth bool   `toml:"require_auth"`
}

func (a *Admin) validate() error {
	if strings.TrimSpace(a.Address) == "" {
		a.Address = DefaultAdminAddress
	}
	if _, _, err := net.SplitHostPort(a.Address); err != nil {
		return fmt.Errorf("admin: address %q: %w", a.Address, err)
	}
	return nil
}
