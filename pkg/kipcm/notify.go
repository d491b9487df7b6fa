package kipcm

import (
	"fmt"

	"go.uber.org/zap"
)

// NotifyAllocateFlowRequest dispatches a decoded allocate flow request to
// the IPC process named by the message header's source id. The instance's
// answer is returned unchanged.
func (m *Manager) NotifyAllocateFlowRequest(msg *AllocFlowRequestMsg) (err error) {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidArgument)
	}
	if err = m.acquire(); err != nil {
		return err
	}
	defer m.release()
	defer m.track("notify_allocate_flow_request", &err)

	id := msg.Header.SrcIPCID
	p := m.instances.find(id)
	if p == nil {
		return fmt.Errorf("ipc process %d: %w", id, ErrInstanceNotFound)
	}

	attrs := msg.Attrs
	if attrs == nil {
		return fmt.Errorf("allocate flow request for ipc process %d: %w", id, ErrMissingAttributes)
	}

	m.log.Debug("allocate flow request",
		zap.Uint16("ipcp", uint16(id)),
		zap.Stringer("source", attrs.Source),
		zap.Stringer("dest", attrs.Dest),
		zap.Int32("port", int32(attrs.PortID)),
	)
	return p.inst.FlowAllocateRequest(attrs.Source, attrs.Dest, &attrs.FlowSpec, attrs.PortID)
}
