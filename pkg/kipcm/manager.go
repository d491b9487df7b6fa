// Package kipcm is the IPC process manager: it owns the factory registry,
// the table of live IPC process instances and the table of flows bound to
// them, and moves SDUs between flows and instances.
//
// A single mutex guards the three tables as one unit. Every exported
// Manager method takes it for its whole duration and none of them block
// while holding it; the lock is not re-entrant, so Factory and Instance
// implementations must never call back into the Manager.
package kipcm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-ipcm/pkg/sduq"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Manager struct {
	mu        sync.Mutex
	factories *factoryRegistry
	instances *instanceTable
	flows     *flowTable
	closed    bool

	defaultFactory string
	queueCapacity  int
	lockDebug      bool
	log            *zap.Logger
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithQueueCapacity sets the byte capacity of every new flow's SDU queue.
func WithQueueCapacity(n int) Option { return func(m *Manager) { m.queueCapacity = n } }

func WithDefaultFactory(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.defaultFactory = name
		}
	}
}

// WithLockDebug traces every lock/unlock at debug level.
func WithLockDebug(on bool) Option { return func(m *Manager) { m.lockDebug = on } }

// Init builds the registry, the instance table and the flow table, in that
// order. On failure whatever was already built is released and no Manager
// is returned.
func Init(opts ...Option) (*Manager, error) {
	m := &Manager{
		defaultFactory: DefaultFactory,
		queueCapacity:  sduq.DefaultCapacity,
		log:            zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	m.log.Debug("initializing")

	factories, err := newFactoryRegistry()
	if err != nil {
		return nil, fmt.Errorf("kipcm init: factories: %w", err)
	}

	instances, err := newInstanceTable()
	if err != nil {
		_ = factories.fini()
		return nil, fmt.Errorf("kipcm init: instances: %w", err)
	}

	flows, err := newFlowTable(m.queueCapacity)
	if err != nil {
		_ = instances.fini()
		_ = factories.fini()
		return nil, fmt.Errorf("kipcm init: flows: %w", err)
	}

	m.factories, m.instances, m.flows = factories, instances, flows
	metrics.SetInstances(0)
	metrics.SetFlows(0)
	m.log.Debug("initialized successfully",
		zap.String("defaultFactory", m.defaultFactory),
		zap.Int("queueCapacity", m.queueCapacity),
	)
	return m, nil
}

// Fini releases the flow table, the instance table and the registry, in
// that order. Both tables must already be empty: finalizing with live flows
// or instances is a programming error and panics. Use Shutdown to tear
// everything down first.
func (m *Manager) Fini() error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()
	return m.fini()
}

// fini does the work of Fini; the caller holds the lock.
func (m *Manager) fini() error {
	m.log.Debug("finalizing")

	if !m.flows.empty() {
		panic(fmt.Sprintf("kipcm: finalizing with %d live flows", m.flows.len()))
	}
	if err := m.flows.fini(); err != nil {
		return err
	}

	if !m.instances.empty() {
		panic(fmt.Sprintf("kipcm: finalizing with %d live ipc processes", m.instances.len()))
	}
	if err := m.instances.fini(); err != nil {
		return err
	}

	if err := m.factories.fini(); err != nil {
		return err
	}

	m.closed = true
	m.log.Debug("finalized successfully")
	return nil
}

// Shutdown removes every flow, destroys every instance through its factory
// and then finalizes, all under one hold of the lock. Instances whose
// destroy fails are dropped anyway; all failures are returned together.
func (m *Manager) Shutdown() error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	var errs error
	for _, port := range m.flows.ports() {
		f := m.flows.find(port)
		f.sduReady.Release()
		errs = multierr.Append(errs, m.flows.remove(port))
	}
	for _, id := range m.instances.ids() {
		p := m.instances.find(id)
		if err := p.factory.ops.Destroy(p.inst); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("ipc process %d: %w: %w", id, ErrDestroyFailed, err))
		}
		p.factory.refs--
		errs = multierr.Append(errs, m.instances.remove(id))
	}
	metrics.SetFlows(0)
	metrics.SetInstances(0)

	if errs != nil {
		m.log.Error("forced teardown incomplete", zap.Error(errs))
	}
	return multierr.Append(errs, m.fini())
}

// FactoryRegister makes a factory available under name.
func (m *Manager) FactoryRegister(name string, f Factory) (h *FactoryHandle, err error) {
	if err = m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()
	defer m.track("factory_register", &err)

	h, err = m.factories.register(name, f)
	if err != nil {
		return nil, err
	}
	m.log.Debug("factory registered", zap.String("factory", h.name))
	return h, nil
}

// FactoryUnregister removes a factory. It refuses while instances created
// by the factory are still alive.
func (m *Manager) FactoryUnregister(h *FactoryHandle) (err error) {
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("factory_unregister", &err)

	return m.factories.unregister(h)
}

// IPCPCreate creates instance id with the named factory (DefaultFactory
// unless overridden when factoryName is empty).
func (m *Manager) IPCPCreate(name Name, id IPCProcessID, factoryName string) (err error) {
	if factoryName == "" && m != nil {
		factoryName = m.defaultFactory
	}
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("ipcp_create", &err)

	m.log.Debug("creating ipc process",
		zap.Stringer("name", name),
		zap.Uint16("id", uint16(id)),
		zap.String("factory", factoryName),
	)

	if m.instances.find(id) != nil {
		return fmt.Errorf("ipc process %d: %w", id, ErrDuplicateID)
	}

	factory := m.factories.find(factoryName)
	if factory == nil {
		return fmt.Errorf("factory %q: %w", factoryName, ErrFactoryNotFound)
	}

	inst, err := factory.ops.Create(id)
	if err != nil {
		return fmt.Errorf("ipc process %d: %w: %w", id, ErrCreationFailed, err)
	}
	if inst == nil {
		return fmt.Errorf("ipc process %d: %w: factory %q returned no instance", id, ErrCreationFailed, factoryName)
	}

	if err := m.instances.add(&ipcp{id: id, name: name, factory: factory, inst: inst}); err != nil {
		if derr := factory.ops.Destroy(inst); derr != nil {
			err = multierr.Append(err, derr)
		}
		return fmt.Errorf("ipc process %d: %w: %w", id, ErrCreationFailed, err)
	}
	factory.refs++
	metrics.SetInstances(m.instances.len())
	return nil
}

// IPCPDestroy destroys instance id through the factory that created it.
// If the factory fails, the instance stays in the table.
func (m *Manager) IPCPDestroy(id IPCProcessID) (err error) {
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("ipcp_destroy", &err)

	p := m.instances.find(id)
	if p == nil {
		return fmt.Errorf("ipc process %d: %w", id, ErrInstanceNotFound)
	}

	if err := p.factory.ops.Destroy(p.inst); err != nil {
		return fmt.Errorf("ipc process %d: %w: %w", id, ErrDestroyFailed, err)
	}
	if err := m.instances.remove(id); err != nil {
		return err
	}
	p.factory.refs--

	if n := m.flows.boundTo(id); n > 0 {
		m.log.Warn("ipc process destroyed with flows still bound",
			zap.Uint16("id", uint16(id)), zap.Int("flows", n))
	}
	metrics.SetInstances(m.instances.len())
	return nil
}

// IPCPConfigure hands cfg to the instance's factory. A replacement instance
// returned by the factory takes over id atomically; on failure the table is
// left as it was.
func (m *Manager) IPCPConfigure(id IPCProcessID, cfg *IPCPConfig) (err error) {
	if cfg == nil {
		return fmt.Errorf("%w: nil configuration", ErrInvalidArgument)
	}
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("ipcp_configure", &err)

	p := m.instances.find(id)
	if p == nil {
		return fmt.Errorf("ipc process %d: %w", id, ErrInstanceNotFound)
	}

	next, err := p.factory.ops.Configure(p.inst, cfg)
	if err != nil {
		return fmt.Errorf("ipc process %d: %w: %w", id, ErrConfigureFailed, err)
	}
	if next == nil {
		return fmt.Errorf("ipc process %d: %w", id, ErrConfigureFailed)
	}

	if !sameInstance(next, p.inst) {
		if err := m.instances.update(id, next); err != nil {
			return fmt.Errorf("ipc process %d: %w: %w", id, ErrConfigureFailed, err)
		}
		m.log.Debug("ipc process replaced on configure", zap.Uint16("id", uint16(id)))
	}
	return nil
}

// FlowAdd binds a new flow on port to instance id.
func (m *Manager) FlowAdd(id IPCProcessID, port PortID) (err error) {
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("flow_add", &err)

	if m.flows.find(port) != nil {
		return fmt.Errorf("port-id %d: %w", port, ErrDuplicateFlow)
	}
	if m.instances.find(id) == nil {
		return fmt.Errorf("ipc process %d: %w", id, ErrInstanceNotFound)
	}

	q, err := sduq.New(m.flows.capacity)
	if err != nil {
		return fmt.Errorf("sdu-ready queue for port-id %d: %w", port, err)
	}
	f := &flow{
		port:   port,
		ipcpID: id,
		// Only applications own flows until a relaying function exists.
		applicationOwned: true,
		sduReady:         q,
	}
	if err := m.flows.add(f); err != nil {
		q.Release()
		return err
	}
	metrics.SetFlows(m.flows.len())
	return nil
}

// FlowRemove unbinds the flow on port and drops anything still queued.
func (m *Manager) FlowRemove(port PortID) (err error) {
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("flow_remove", &err)

	f := m.flows.find(port)
	if f == nil {
		return fmt.Errorf("port-id %d: %w", port, ErrNoSuchFlow)
	}
	if err := m.flows.remove(port); err != nil {
		return err
	}
	f.sduReady.Release()
	metrics.SetFlows(m.flows.len())
	return nil
}

// SDUWrite hands sdu to the instance bound to port. The instance's error,
// if any, is returned as is.
func (m *Manager) SDUWrite(port PortID, sdu *SDU) (err error) {
	if !sdu.IsOK() {
		return ErrInvalidSDU
	}
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("sdu_write", &err)

	m.log.Debug("sdu received", zap.Int32("port", int32(port)), zap.Int("size", sdu.Len()))

	f := m.flows.find(port)
	if f == nil {
		return fmt.Errorf("port-id %d: %w", port, ErrNoSuchFlow)
	}
	p := m.instances.find(f.ipcpID)
	if p == nil {
		return fmt.Errorf("port-id %d bound to ipc process %d: %w", port, f.ipcpID, ErrInstanceNotFound)
	}
	if err := p.inst.SDUWrite(port, sdu); err != nil {
		return err
	}
	metrics.AddSDUBytes("write", sdu.Len())
	return nil
}

// SDUPost queues sdu on the flow bound to port. Either the whole SDU is
// queued or, on ErrQueueFull, nothing is.
func (m *Manager) SDUPost(port PortID, sdu *SDU) (err error) {
	if !sdu.IsOK() {
		return ErrInvalidSDU
	}
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("sdu_post", &err)

	f := m.flows.find(port)
	if f == nil {
		return fmt.Errorf("port-id %d: %w", port, ErrNoSuchFlow)
	}
	if err := f.sduReady.Push(sdu.Bytes()); err != nil {
		switch {
		case errors.Is(err, sduq.ErrFull):
			return fmt.Errorf("port-id %d (%d bytes free): %w", port, f.sduReady.Avail(), err)
		case errors.Is(err, sduq.ErrEmptyFrame):
			return fmt.Errorf("%w: %w", ErrInvalidSDU, err)
		default:
			return fmt.Errorf("port-id %d: %w", port, err)
		}
	}
	metrics.AddSDUBytes("post", sdu.Len())
	return nil
}

// SDURead takes the oldest SDU queued on port.
func (m *Manager) SDURead(port PortID) (sdu *SDU, err error) {
	if err = m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()
	defer m.track("sdu_read", &err)

	f := m.flows.find(port)
	if f == nil {
		return nil, fmt.Errorf("port-id %d: %w", port, ErrNoSuchFlow)
	}
	data, err := f.sduReady.Pop()
	if err != nil {
		if errors.Is(err, sduq.ErrZeroLength) {
			return nil, fmt.Errorf("port-id %d: %w: %w", port, ErrInvalidSDU, err)
		}
		return nil, fmt.Errorf("port-id %d: %w", port, err)
	}
	metrics.AddSDUBytes("read", len(data))
	return SDUFrom(data), nil
}

func (m *Manager) acquire() error {
	if m == nil {
		return fmt.Errorf("%w: nil manager", ErrInvalidArgument)
	}
	if m.lockDebug {
		m.log.Debug("kipcm locking", zap.Stringer("manager", m))
	}
	m.mu.Lock()
	if m.lockDebug {
		m.log.Debug("kipcm locked", zap.Stringer("manager", m))
	}
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: manager finalized", ErrInvalidArgument)
	}
	return nil
}

func (m *Manager) release() {
	if m.lockDebug {
		m.log.Debug("kipcm unlocking", zap.Stringer("manager", m))
	}
	m.mu.Unlock()
}

// track logs a failed operation and counts the outcome.
func (m *Manager) track(op string, errp *error) {
	if *errp != nil {
		m.log.Error(op+" failed", zap.Error(*errp))
	}
	metrics.ObserveOperation(op, *errp)
}

func (m *Manager) String() string { return fmt.Sprintf("kipcm@%p", m) }
