package core

import (
	"fmt"
	"strconv"

	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
)

func parseID(s string) (kipcm.IPCProcessID, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: ipc process id %q", kipcm.ErrInvalidArgument, s)
	}
	return kipcm.IPCProcessID(n), nil
}

func parsePort(s string) (kipcm.PortID, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: port-id %q", kipcm.ErrInvalidArgument, s)
	}
	return kipcm.PortID(n), nil
}
