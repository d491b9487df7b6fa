package kipcm

import (
	"fmt"
	"sort"

	"github.com/joeydtaylor/steeze-ipcm/pkg/sduq"
)

// frameQueue is the SDU-ready queue contract; *sduq.Queue implements it.
type frameQueue interface {
	Push(payload []byte) error
	Pop() ([]byte, error)
	Len() int
	Cap() int
	Avail() int
	Release()
}

var _ frameQueue = (*sduq.Queue)(nil)

type flow struct {
	port PortID
	// ipcpID is a key, not a reference; it is resolved on every use.
	ipcpID IPCProcessID
	// applicationOwned is false only for flows used by a relaying function,
	// which does not exist yet.
	applicationOwned bool
	sduReady         frameQueue
}

type flowTable struct {
	byPort   map[PortID]*flow
	capacity int
}

func newFlowTable(capacity int) (*flowTable, error) {
	if capacity <= sduq.PrefixSize {
		return nil, fmt.Errorf("%w: queue capacity %d must exceed %d", ErrInvalidArgument, capacity, sduq.PrefixSize)
	}
	return &flowTable{byPort: make(map[PortID]*flow), capacity: capacity}, nil
}

func (t *flowTable) find(port PortID) *flow { return t.byPort[port] }

func (t *flowTable) add(f *flow) error {
	if f == nil || f.sduReady == nil {
		return fmt.Errorf("%w: incomplete flow record", ErrInvalidArgument)
	}
	if _, dup := t.byPort[f.port]; dup {
		return fmt.Errorf("port-id %d: %w", f.port, ErrDuplicateFlow)
	}
	t.byPort[f.port] = f
	return nil
}

func (t *flowTable) remove(port PortID) error {
	if _, ok := t.byPort[port]; !ok {
		return fmt.Errorf("port-id %d: %w", port, ErrNoSuchFlow)
	}
	delete(t.byPort, port)
	return nil
}

func (t *flowTable) empty() bool { return len(t.byPort) == 0 }
func (t *flowTable) len() int    { return len(t.byPort) }

func (t *flowTable) ports() []PortID {
	out := make([]PortID, 0, len(t.byPort))
	for p := range t.byPort {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// boundTo counts flows naming the given instance.
func (t *flowTable) boundTo(id IPCProcessID) int {
	n := 0
	for _, f := range t.byPort {
		if f.ipcpID == id {
			n++
		}
	}
	return n
}

func (t *flowTable) fini() error {
	if !t.empty() {
		return fmt.Errorf("flow table still holds %d entries", len(t.byPort))
	}
	t.byPort = nil
	return nil
}
