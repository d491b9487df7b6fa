package kipcm

import "fmt"

// IPCPInfo is a snapshot of one instance table entry.
type IPCPInfo struct {
	ID      IPCProcessID `json:"id"`
	Name    string       `json:"name"`
	Factory string       `json:"factory"`
	Flows   int          `json:"flows"`
}

// FlowInfo is a snapshot of one flow table entry.
type FlowInfo struct {
	Port             PortID       `json:"port"`
	IPCP             IPCProcessID `json:"ipcp"`
	ApplicationOwned bool         `json:"application_owned"`
	Queued           int          `json:"queued"`
	Capacity         int          `json:"capacity"`
}

// Factories lists registered factory names, sorted.
func (m *Manager) Factories() ([]string, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()
	return m.factories.names(), nil
}

// IPCPs lists live instances ordered by id.
func (m *Manager) IPCPs() ([]IPCPInfo, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	ids := m.instances.ids()
	out := make([]IPCPInfo, 0, len(ids))
	for _, id := range ids {
		p := m.instances.find(id)
		out = append(out, IPCPInfo{
			ID:      id,
			Name:    p.name.String(),
			Factory: p.factory.name,
			Flows:   m.flows.boundTo(id),
		})
	}
	return out, nil
}

// Flows lists bound flows ordered by port.
func (m *Manager) Flows() ([]FlowInfo, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	ports := m.flows.ports()
	out := make([]FlowInfo, 0, len(ports))
	for _, port := range ports {
		out = append(out, m.flows.find(port).info())
	}
	return out, nil
}

// Flow returns a snapshot of the flow bound to port.
func (m *Manager) Flow(port PortID) (FlowInfo, error) {
	if err := m.acquire(); err != nil {
		return FlowInfo{}, err
	}
	defer m.release()

	f := m.flows.find(port)
	if f == nil {
		return FlowInfo{}, fmt.Errorf("port-id %d: %w", port, ErrNoSuchFlow)
	}
	return f.info(), nil
}

// Instance returns the instance currently registered under id.
func (m *Manager) Instance(id IPCProcessID) (Instance, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	p := m.instances.find(id)
	if p == nil {
		return nil, fmt.Errorf("ipc process %d: %w", id, ErrInstanceNotFound)
	}
	return p.inst, nil
}

func (f *flow) info() FlowInfo {
	return FlowInfo{
		Port:             f.port,
		IPCP:             f.ipcpID,
		ApplicationOwned: f.applicationOwned,
		Queued:           f.sduReady.Len(),
		Capacity:         f.sduReady.Cap(),
	}
}
