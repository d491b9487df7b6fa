package kipcm

// SDU is a service data unit moving through a flow.
type SDU struct {
	data []byte
}

// NewSDU copies data into a fresh SDU.
func NewSDU(data []byte) *SDU {
	return &SDU{data: append([]byte(nil), data...)}
}

// SDUFrom wraps data without copying; the SDU owns it afterwards.
func SDUFrom(data []byte) *SDU {
	return &SDU{data: data}
}

func (s *SDU) Bytes() []byte { return s.data }
func (s *SDU) Len() int      { return len(s.data) }

// IsOK reports whether the SDU can be written or posted.
func (s *SDU) IsOK() bool {
	return s != nil && len(s.data) > 0
}
