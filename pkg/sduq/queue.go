// Package sduq implements the bounded SDU-ready queue attached to every flow.
//
// A queue is a fixed-capacity byte ring. Each SDU is stored as a frame:
//
//	[length: uint64, native byte order][payload: length bytes]
//
// Push and Pop move whole frames only; a frame is never half-written or
// half-consumed. Neither call blocks: a full queue yields ErrFull and an
// empty one ErrUnderrun, retry policy is up to the caller.
//
// Queue is not safe for concurrent use; the owning flow table serializes
// access under its lock.
package sduq

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PrefixSize is the width of the per-frame length prefix.
const PrefixSize = 8

// DefaultCapacity is one memory page.
const DefaultCapacity = 4096

var (
	ErrFull       = errors.New("sduq: no space left for frame")
	ErrUnderrun   = errors.New("sduq: not enough data in queue")
	ErrZeroLength = errors.New("sduq: zero-length frame")
	ErrEmptyFrame = errors.New("sduq: refusing empty payload")
	ErrCorrupt    = errors.New("sduq: queue invariant violated")
	ErrReleased   = errors.New("sduq: queue released")
)

type Queue struct {
	buf  []byte
	head int // read offset
	size int // bytes stored
}

// New allocates a queue holding at most capacity bytes, prefixes included.
func New(capacity int) (*Queue, error) {
	if capacity <= PrefixSize {
		return nil, fmt.Errorf("sduq: capacity %d must exceed prefix size %d", capacity, PrefixSize)
	}
	return &Queue{buf: make([]byte, capacity)}, nil
}

func (q *Queue) Cap() int    { return len(q.buf) }
func (q *Queue) Len() int    { return q.size }
func (q *Queue) Avail() int  { return len(q.buf) - q.size }
func (q *Queue) Empty() bool { return q.size == 0 }

// Push enqueues payload as one frame.
func (q *Queue) Push(payload []byte) error {
	if q.buf == nil {
		return ErrReleased
	}
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if q.Avail() < len(payload)+PrefixSize {
		return ErrFull
	}

	var pfx [PrefixSize]byte
	binary.NativeEndian.PutUint64(pfx[:], uint64(len(payload)))

	n := q.in(pfx[:])
	if n != PrefixSize {
		q.size -= n
		return fmt.Errorf("%w: wrote %d of %d prefix bytes", ErrCorrupt, n, PrefixSize)
	}
	if m := q.in(payload); m != len(payload) {
		q.size -= n + m
		return fmt.Errorf("%w: wrote %d of %d payload bytes", ErrCorrupt, m, len(payload))
	}
	return nil
}

// Pop dequeues the oldest frame and returns its payload. On ErrUnderrun
// nothing is consumed and nothing is allocated.
func (q *Queue) Pop() ([]byte, error) {
	if q.buf == nil {
		return nil, ErrReleased
	}
	if q.size < PrefixSize {
		return nil, ErrUnderrun
	}

	var pfx [PrefixSize]byte
	q.peek(pfx[:], 0)
	length := binary.NativeEndian.Uint64(pfx[:])
	if length == 0 {
		// Drop the bogus prefix so the queue does not wedge on it.
		q.skip(PrefixSize)
		return nil, ErrZeroLength
	}
	if length > uint64(q.size-PrefixSize) {
		return nil, fmt.Errorf("%w: frame needs %d bytes, %d queued", ErrUnderrun, length, q.size-PrefixSize)
	}

	out := make([]byte, int(length))
	q.peek(out, PrefixSize)
	q.skip(PrefixSize + len(out))
	return out, nil
}

// Release drops the backing storage. Further Push/Pop calls fail.
func (q *Queue) Release() {
	q.buf = nil
	q.head, q.size = 0, 0
}

// in copies as much of p as fits at the tail and returns the count.
func (q *Queue) in(p []byte) int {
	n := min(len(p), q.Avail())
	tail := (q.head + q.size) % len(q.buf)
	c := copy(q.buf[tail:], p[:n])
	copy(q.buf, p[c:n])
	q.size += n
	return n
}

// peek copies len(dst) bytes starting off bytes past head without consuming.
func (q *Queue) peek(dst []byte, off int) {
	start := (q.head + off) % len(q.buf)
	c := copy(dst, q.buf[start:])
	copy(dst[c:], q.buf)
}

func (q *Queue) skip(n int) {
	q.head = (q.head + n) % len(q.buf)
	q.size -= n
	if q.size == 0 {
		q.head = 0
	}
}
