package ipcp

import (
	"fmt"
	"time"

	"github.com/joeydtaylor/steeze-ipcm/pkg/electrician"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	"go.uber.org/zap"
)

const (
	KindNormal    = "normal"
	KindShimRelay = "shim-relay"
)

// Deps carries what the built-in factories may need.
type Deps struct {
	Log          *zap.Logger
	Publisher    electrician.Publisher
	RelayTopic   string
	RelayTimeout time.Duration
	Backlog      int
}

// New builds a factory of the given kind. An empty kind means KindNormal.
func New(kind string, d Deps) (kipcm.Factory, error) {
	switch kind {
	case "", KindNormal:
		return NewNormal(d.Log, d.Backlog), nil
	case KindShimRelay:
		return NewShimRelay(d.Publisher, d.RelayTopic, d.RelayTimeout, d.Log), nil
	default:
		return nil, fmt.Errorf("ipcp: unknown factory kind %q", kind)
	}
}
