// Package ipcp holds the built-in IPC process factories.
package ipcp

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	"github.com/joeydtaylor/steeze-ipcm/pkg/rqueue"
	"go.uber.org/zap"
)

// DefaultBacklog bounds the SDUs a normal instance keeps before refusing writes.
const DefaultBacklog = 1024

var (
	ErrForeignInstance = errors.New("ipcp: instance was not created by this factory")
	ErrBacklogFull     = errors.New("ipcp: write backlog full")
	ErrInvalidPort     = errors.New("ipcp: invalid port-id")
)

// WrittenSDU is an SDU handed to an instance through Manager.SDUWrite.
type WrittenSDU struct {
	Port kipcm.PortID
	SDU  *kipcm.SDU
}

// FlowRequest is a recorded allocate flow request.
type FlowRequest struct {
	Source   kipcm.Name
	Dest     kipcm.Name
	FlowSpec kipcm.FlowSpec
	Port     kipcm.PortID
}

// NormalInstance is the default IPC process: it accepts writes into a
// bounded backlog and records flow allocation requests for its owner.
type NormalInstance struct {
	id      kipcm.IPCProcessID
	backlog int

	mu      sync.Mutex
	dif     string
	entries map[string]string

	written *rqueue.Queue[WrittenSDU]
	pending *rqueue.Queue[FlowRequest]
}

func (i *NormalInstance) ID() kipcm.IPCProcessID { return i.id }

func (i *NormalInstance) DIF() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dif
}

// Entry returns a configuration entry.
func (i *NormalInstance) Entry(k string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.entries[k]
	return v, ok
}

func (i *NormalInstance) SDUWrite(port kipcm.PortID, sdu *kipcm.SDU) error {
	if i.written.Len() >= i.backlog {
		return fmt.Errorf("ipc process %d port-id %d: %w", i.id, port, ErrBacklogFull)
	}
	return i.written.PushTail(WrittenSDU{Port: port, SDU: sdu})
}

func (i *NormalInstance) FlowAllocateRequest(source, dest kipcm.Name, spec *kipcm.FlowSpec, port kipcm.PortID) error {
	if port < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	req := FlowRequest{Source: source, Dest: dest, Port: port}
	if spec != nil {
		req.FlowSpec = *spec
	}
	return i.pending.PushTail(req)
}

// Drain removes and returns every written SDU in arrival order.
func (i *NormalInstance) Drain() []WrittenSDU {
	var out []WrittenSDU
	for {
		w, ok := i.written.PopHead()
		if !ok {
			return out
		}
		out = append(out, w)
	}
}

// PendingRequests removes and returns the recorded flow requests.
func (i *NormalInstance) PendingRequests() []FlowRequest {
	var out []FlowRequest
	for {
		r, ok := i.pending.PopHead()
		if !ok {
			return out
		}
		out = append(out, r)
	}
}

// Normal is the factory behind "normal-ipc".
type Normal struct {
	log     *zap.Logger
	backlog int

	mu   sync.Mutex
	live map[*NormalInstance]struct{}
}

func NewNormal(log *zap.Logger, backlog int) *Normal {
	if log == nil {
		log = zap.NewNop()
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Normal{log: log, backlog: backlog, live: map[*NormalInstance]struct{}{}}
}

func (f *Normal) Create(id kipcm.IPCProcessID) (kipcm.Instance, error) {
	inst := &NormalInstance{
		id:      id,
		backlog: f.backlog,
		entries: map[string]string{},
		written: rqueue.New[WrittenSDU](),
		pending: rqueue.New[FlowRequest](),
	}
	f.mu.Lock()
	f.live[inst] = struct{}{}
	f.mu.Unlock()
	f.log.Debug("normal ipc process created", zap.Uint16("id", uint16(id)))
	return inst, nil
}

func (f *Normal) Destroy(inst kipcm.Instance) error {
	ni, err := f.own(inst)
	if err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.live, ni)
	f.mu.Unlock()

	dropped := 0
	_ = ni.written.Destroy(func(WrittenSDU) { dropped++ })
	_ = ni.pending.Destroy(nil)
	f.log.Debug("normal ipc process destroyed",
		zap.Uint16("id", uint16(ni.id)), zap.Int("droppedSdus", dropped))
	return nil
}

// Configure updates entries in place while the DIF stays the same (or the
// instance has none yet). Moving to another DIF yields a new instance that
// inherits the backlog; the old one is retired.
func (f *Normal) Configure(inst kipcm.Instance, cfg *kipcm.IPCPConfig) (kipcm.Instance, error) {
	ni, err := f.own(inst)
	if err != nil {
		return nil, err
	}
	if cfg.DIFName == "" {
		return nil, errors.New("ipcp: dif name required")
	}

	ni.mu.Lock()
	defer ni.mu.Unlock()

	if ni.dif == "" || ni.dif == cfg.DIFName {
		ni.dif = cfg.DIFName
		maps.Copy(ni.entries, cfg.Entries)
		return ni, nil
	}

	next := &NormalInstance{
		id:      ni.id,
		backlog: ni.backlog,
		dif:     cfg.DIFName,
		entries: maps.Clone(cfg.Entries),
		written: ni.written,
		pending: ni.pending,
	}
	if next.entries == nil {
		next.entries = map[string]string{}
	}
	f.mu.Lock()
	delete(f.live, ni)
	f.live[next] = struct{}{}
	f.mu.Unlock()

	f.log.Info("normal ipc process moved to new dif",
		zap.Uint16("id", uint16(ni.id)),
		zap.String("from", ni.dif),
		zap.String("to", cfg.DIFName),
	)
	return next, nil
}

// Live reports how many instances this factory currently owns.
func (f *Normal) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *Normal) own(inst kipcm.Instance) (*NormalInstance, error) {
	ni, ok := inst.(*NormalInstance)
	if !ok {
		return nil, ErrForeignInstance
	}
	f.mu.Lock()
	_, live := f.live[ni]
	f.mu.Unlock()
	if !live {
		return nil, ErrForeignInstance
	}
	return ni, nil
}
