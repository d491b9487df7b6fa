package ipcp

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/joeydtaylor/steeze-ipcm/pkg/electrician"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	"go.uber.org/zap"
)

// RelayInstance forwards every written SDU to the electrician relay.
type RelayInstance struct {
	id kipcm.IPCProcessID
	f  *ShimRelay

	mu  sync.Mutex
	dif string
}

func (i *RelayInstance) SDUWrite(port kipcm.PortID, sdu *kipcm.SDU) error {
	ctx, cancel := context.WithTimeout(context.Background(), i.f.timeout)
	defer cancel()
	return i.f.pub.Publish(ctx, electrician.Envelope{
		Topic: fmt.Sprintf("%s.%d.%d", i.f.topic, i.id, port),
		IPCP:  uint16(i.id),
		Port:  int32(port),
		Body:  sdu.Bytes(),
		Headers: map[string]string{
			"X-IPCP-Id": strconv.Itoa(int(i.id)),
			"X-Port-Id": strconv.Itoa(int(port)),
		},
	})
}

// FlowAllocateRequest is accepted as is; the shim has no enrollment.
func (i *RelayInstance) FlowAllocateRequest(source, dest kipcm.Name, _ *kipcm.FlowSpec, port kipcm.PortID) error {
	i.f.log.Info("shim flow allocate request",
		zap.Uint16("ipcp", uint16(i.id)),
		zap.Stringer("source", source),
		zap.Stringer("dest", dest),
		zap.Int32("port", int32(port)),
	)
	return nil
}

func (i *RelayInstance) DIF() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dif
}

// ShimRelay is the factory for relay-backed shim IPC processes.
type ShimRelay struct {
	pub     electrician.Publisher
	topic   string
	timeout time.Duration
	log     *zap.Logger
}

func NewShimRelay(pub electrician.Publisher, topic string, timeout time.Duration, log *zap.Logger) *ShimRelay {
	if pub == nil {
		pub = electrician.NewNoopPublisher()
	}
	if topic == "" {
		topic = "ipcm.sdu"
	}
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ShimRelay{pub: pub, topic: topic, timeout: timeout, log: log}
}

func (f *ShimRelay) Create(id kipcm.IPCProcessID) (kipcm.Instance, error) {
	return &RelayInstance{id: id, f: f}, nil
}

func (f *ShimRelay) Destroy(inst kipcm.Instance) error {
	ri, ok := inst.(*RelayInstance)
	if !ok || ri.f != f {
		return ErrForeignInstance
	}
	return nil
}

func (f *ShimRelay) Configure(inst kipcm.Instance, cfg *kipcm.IPCPConfig) (kipcm.Instance, error) {
	ri, ok := inst.(*RelayInstance)
	if !ok || ri.f != f {
		return nil, ErrForeignInstance
	}
	ri.mu.Lock()
	ri.dif = cfg.DIFName
	ri.mu.Unlock()
	return ri, nil
}
