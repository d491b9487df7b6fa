package kipcm

import (
	"errors"

	"github.com/joeydtaylor/steeze-ipcm/pkg/sduq"
)

// kindError is a specific failure that also matches its broader family
// (e.g. ErrFactoryNotFound is an ErrNotFound).
type kindError struct {
	msg    string
	family error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.family }

var (
	ErrInvalidArgument = errors.New("kipcm: invalid argument")
	ErrNotFound        = errors.New("kipcm: not found")
	ErrDuplicate       = errors.New("kipcm: already exists")

	ErrFactoryNotFound  error = &kindError{"kipcm: factory not found", ErrNotFound}
	ErrInstanceNotFound error = &kindError{"kipcm: ipc process not found", ErrNotFound}
	ErrNoSuchFlow       error = &kindError{"kipcm: no flow bound to port-id", ErrNotFound}

	ErrDuplicateID      error = &kindError{"kipcm: ipc process id already exists", ErrDuplicate}
	ErrDuplicateFlow    error = &kindError{"kipcm: flow on port-id already exists", ErrDuplicate}
	ErrDuplicateFactory error = &kindError{"kipcm: factory already registered", ErrDuplicate}
	ErrFactoryInUse           = errors.New("kipcm: factory still has live instances")

	ErrCreationFailed  = errors.New("kipcm: ipc process creation failed")
	ErrConfigureFailed = errors.New("kipcm: ipc process configuration failed")
	ErrDestroyFailed   = errors.New("kipcm: ipc process destruction failed")

	ErrInvalidSDU        = errors.New("kipcm: bogus sdu")
	ErrMissingAttributes = errors.New("kipcm: message carries no attributes")
)

// Queue failures are reported with the queue's own sentinels.
var (
	ErrQueueFull = sduq.ErrFull
	ErrUnderrun  = sduq.ErrUnderrun
)
