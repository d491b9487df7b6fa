package sduq

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsTinyCapacity(t *testing.T) {
	_, err := New(PrefixSize)
	require.Error(t, err)

	q, err := New(PrefixSize + 1)
	require.NoError(t, err)
	assert.Equal(t, PrefixSize+1, q.Cap())
}

func TestPushPop_RoundTrip(t *testing.T) {
	q, err := New(DefaultCapacity)
	require.NoError(t, err)

	for _, size := range []int{1, 5, 100, DefaultCapacity - PrefixSize} {
		payload := bytes.Repeat([]byte{byte(size)}, size)
		require.NoError(t, q.Push(payload), "size %d", size)
		assert.Equal(t, size+PrefixSize, q.Len())

		got, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.True(t, q.Empty())
	}
}

func TestPush_FullLeavesContentsUntouched(t *testing.T) {
	q, err := New(64)
	require.NoError(t, err)

	require.NoError(t, q.Push([]byte("first")))
	before := append([]byte(nil), q.buf...)
	beforeLen := q.Len()

	err = q.Push(make([]byte, q.Avail()-PrefixSize+1))
	require.ErrorIs(t, err, ErrFull)
	assert.Equal(t, before, q.buf)
	assert.Equal(t, beforeLen, q.Len())

	got, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestPush_ExactBoundary(t *testing.T) {
	q, err := New(4096)
	require.NoError(t, err)

	require.NoError(t, q.Push(make([]byte, 4096-8)))
	assert.Equal(t, 0, q.Avail())

	q2, err := New(4096)
	require.NoError(t, err)
	require.ErrorIs(t, q2.Push(make([]byte, 4096-8+1)), ErrFull)
	assert.True(t, q2.Empty())
}

func TestPush_RejectsEmpty(t *testing.T) {
	q, err := New(32)
	require.NoError(t, err)
	require.ErrorIs(t, q.Push(nil), ErrEmptyFrame)
	assert.True(t, q.Empty())
}

func TestPop_EmptyUnderrun(t *testing.T) {
	q, err := New(32)
	require.NoError(t, err)

	got, err := q.Pop()
	require.ErrorIs(t, err, ErrUnderrun)
	assert.Nil(t, got)
}

func TestPop_FIFOAcrossWrap(t *testing.T) {
	q, err := New(40)
	require.NoError(t, err)

	frame := func(i int) []byte { return bytes.Repeat([]byte{byte('a' + i%26)}, 8) }

	// Frames are 16 bytes in a 40 byte ring, so prefixes and payloads
	// straddle the end of the buffer as the head advances.
	require.NoError(t, q.Push(frame(0)))
	for i := 1; i < 20; i++ {
		require.NoError(t, q.Push(frame(i)))
		require.ErrorIs(t, q.Push(frame(99)), ErrFull)

		got, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, frame(i-1), got)
	}
	got, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, frame(19), got)
	assert.True(t, q.Empty())
}

func TestPop_ZeroLengthPrefix(t *testing.T) {
	q, err := New(32)
	require.NoError(t, err)

	q.in(make([]byte, PrefixSize))
	_, err = q.Pop()
	require.ErrorIs(t, err, ErrZeroLength)
	assert.True(t, q.Empty())
}

func TestPop_ShortPayloadConsumesNothing(t *testing.T) {
	q, err := New(32)
	require.NoError(t, err)

	require.NoError(t, q.Push([]byte("abcdef")))
	// Drop the last two payload bytes to simulate a truncated frame.
	q.size -= 2
	_, err = q.Pop()
	require.ErrorIs(t, err, ErrUnderrun)
	assert.Equal(t, PrefixSize+4, q.Len())
}

func TestRelease(t *testing.T) {
	q, err := New(32)
	require.NoError(t, err)
	require.NoError(t, q.Push([]byte("x")))

	q.Release()
	assert.Equal(t, 0, q.Cap())
	require.ErrorIs(t, q.Push([]byte("y")), ErrReleased)
	_, err = q.Pop()
	require.ErrorIs(t, err, ErrReleased)
}
