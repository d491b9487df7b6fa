package kipcm

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// IPCProcessID identifies an IPC process instance.
type IPCProcessID uint16

// PortID identifies a flow.
type PortID int32

// DefaultFactory is used when IPCPCreate is given no factory name.
const DefaultFactory = "normal-ipc"

// Name is an application process naming tuple.
type Name struct {
	ProcessName     string `json:"process_name" toml:"process_name"`
	ProcessInstance string `json:"process_instance,omitempty" toml:"process_instance"`
	EntityName      string `json:"entity_name,omitempty" toml:"entity_name"`
	EntityInstance  string `json:"entity_instance,omitempty" toml:"entity_instance"`
}

// String renders the name as "pn/pi/en/ei".
func (n Name) String() string {
	return strings.Join([]string{n.ProcessName, n.ProcessInstance, n.EntityName, n.EntityInstance}, "/")
}

// ParseName is the inverse of Name.String; missing trailing parts are left empty.
func ParseName(s string) (Name, error) {
	parts := strings.SplitN(s, "/", 4)
	if strings.TrimSpace(parts[0]) == "" {
		return Name{}, fmt.Errorf("%w: name %q has no process name", ErrInvalidArgument, s)
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return Name{
		ProcessName:     parts[0],
		ProcessInstance: parts[1],
		EntityName:      parts[2],
		EntityInstance:  parts[3],
	}, nil
}

// FlowSpec carries the QoS characteristics requested for a flow.
type FlowSpec struct {
	AverageBandwidth         uint32  `json:"average_bandwidth,omitempty"`
	AverageSDUBandwidth      uint32  `json:"average_sdu_bandwidth,omitempty"`
	PeakBandwidthDuration    uint32  `json:"peak_bandwidth_duration,omitempty"`
	PeakSDUBandwidthDuration uint32  `json:"peak_sdu_bandwidth_duration,omitempty"`
	UndetectedBitErrorRate   float64 `json:"undetected_bit_error_rate,omitempty"`
	PartialDelivery          bool    `json:"partial_delivery,omitempty"`
	OrderedDelivery          bool    `json:"ordered_delivery,omitempty"`
	MaxAllowableGap          int32   `json:"max_allowable_gap,omitempty"`
	Delay                    uint32  `json:"delay,omitempty"`
	Jitter                   uint32  `json:"jitter,omitempty"`
	MaxSDUSize               uint32  `json:"max_sdu_size,omitempty"`
}

// IPCPConfig is handed to Factory.Configure.
type IPCPConfig struct {
	DIFName string            `json:"dif_name"`
	Entries map[string]string `json:"entries,omitempty"`
}

// Keys returns the entry names in sorted order.
func (c *IPCPConfig) Keys() []string {
	out := make([]string, 0, len(c.Entries))
	for k := range c.Entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Instance is the operation set every IPC process exposes to the manager.
// Implementations must be comparable (typically a pointer) so the manager
// can tell whether Configure returned a replacement.
//
// All methods are called with the manager lock held and must not call back
// into the Manager.
type Instance interface {
	SDUWrite(port PortID, sdu *SDU) error
	FlowAllocateRequest(source, dest Name, spec *FlowSpec, port PortID) error
}

// Factory builds, reconfigures and tears down instances of one IPC process kind.
// The factory's private data is the implementation itself.
type Factory interface {
	Create(id IPCProcessID) (Instance, error)
	Destroy(inst Instance) error
	// Configure returns either inst itself (updated in place) or a new
	// instance that replaces it.
	Configure(inst Instance, cfg *IPCPConfig) (Instance, error)
}

func sameInstance(a, b Instance) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// AllocFlowRequestAttrs are the decoded attributes of an allocate flow request.
type AllocFlowRequestAttrs struct {
	Source   Name     `json:"source"`
	Dest     Name     `json:"dest"`
	FlowSpec FlowSpec `json:"flow_spec"`
	PortID   PortID   `json:"port_id"`
}

// MsgHeader is the routing header of a decoded control message.
type MsgHeader struct {
	SrcIPCID IPCProcessID `json:"src_ipc_id"`
	DstIPCID IPCProcessID `json:"dst_ipc_id"`
}

// AllocFlowRequestMsg is an already-decoded "allocate flow request" notification.
type AllocFlowRequestMsg struct {
	Header MsgHeader              `json:"header"`
	Attrs  *AllocFlowRequestAttrs `json:"attrs,omitempty"`
}
