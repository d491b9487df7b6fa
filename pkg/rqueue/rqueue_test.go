package rqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_HeadTail(t *testing.T) {
	q := New[int]()
	assert.True(t, q.IsEmpty())

	require.NoError(t, q.PushTail(2))
	require.NoError(t, q.PushTail(3))
	require.NoError(t, q.PushHead(1))
	assert.Equal(t, 3, q.Len())

	v, ok := q.PopHead()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.PopTail()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = q.PopTail()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.PopHead()
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())
}

func TestQueue_NilElements(t *testing.T) {
	q := New[error]()
	require.NoError(t, q.PushTail(nil))

	v, ok := q.PopHead()
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestQueue_DestroyHandsOverElements(t *testing.T) {
	q := New[*int]()
	a, b := 1, 2
	require.NoError(t, q.PushTail(&a))
	require.NoError(t, q.PushTail(nil))
	require.NoError(t, q.PushTail(&b))

	var seen []*int
	require.NoError(t, q.Destroy(func(p *int) { seen = append(seen, p) }))
	assert.Equal(t, []*int{&a, nil, &b}, seen)

	require.ErrorIs(t, q.PushTail(&a), ErrDestroyed)
	require.ErrorIs(t, q.Destroy(nil), ErrDestroyed)
	assert.True(t, q.IsEmpty())
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = q.PushTail(w*100 + i)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 800, q.Len())

	n := 0
	for {
		if _, ok := q.PopHead(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, 800, n)
}
