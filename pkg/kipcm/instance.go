package kipcm

import (
	"fmt"
	"sort"
)

type ipcp struct {
	id      IPCProcessID
	name    Name
	factory *FactoryHandle
	inst    Instance
}

type instanceTable struct {
	byID map[IPCProcessID]*ipcp
}

func newInstanceTable() (*instanceTable, error) {
	return &instanceTable{byID: make(map[IPCProcessID]*ipcp)}, nil
}

func (t *instanceTable) find(id IPCProcessID) *ipcp { return t.byID[id] }

func (t *instanceTable) add(p *ipcp) error {
	if p == nil || p.inst == nil || p.factory == nil {
		return fmt.Errorf("%w: incomplete ipc process record", ErrInvalidArgument)
	}
	if _, dup := t.byID[p.id]; dup {
		return fmt.Errorf("ipc process %d: %w", p.id, ErrDuplicateID)
	}
	t.byID[p.id] = p
	return nil
}

func (t *instanceTable) update(id IPCProcessID, inst Instance) error {
	p, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("ipc process %d: %w", id, ErrInstanceNotFound)
	}
	if inst == nil {
		return fmt.Errorf("%w: nil instance", ErrInvalidArgument)
	}
	p.inst = inst
	return nil
}

func (t *instanceTable) remove(id IPCProcessID) error {
	if _, ok := t.byID[id]; !ok {
		return fmt.Errorf("ipc process %d: %w", id, ErrInstanceNotFound)
	}
	delete(t.byID, id)
	return nil
}

func (t *instanceTable) empty() bool { return len(t.byID) == 0 }
func (t *instanceTable) len() int    { return len(t.byID) }

func (t *instanceTable) ids() []IPCProcessID {
	out := make([]IPCProcessID, 0, len(t.byID))
	for id := range t.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *instanceTable) fini() error {
	if !t.empty() {
		return fmt.Errorf("instance table still holds %d entries", len(t.byID))
	}
	t.byID = nil
	return nil
}
