// Package rqueue is a small double-ended queue safe for concurrent use.
package rqueue

import (
	"container/list"
	"errors"
	"sync"
)

var ErrDestroyed = errors.New("rqueue: queue destroyed")

// Queue holds elements of type T. Zero values (nil pointers included) may
// be pushed; the destructor given to Destroy must cope with them.
type Queue[T any] struct {
	mu        sync.Mutex
	l         *list.List
	destroyed bool
}

func New[T any]() *Queue[T] {
	return &Queue[T]{l: list.New()}
}

// Destroy drains the queue, handing every element to dtor (which owns it
// from then on), and makes further pushes fail.
func (q *Queue[T]) Destroy(dtor func(T)) error {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return ErrDestroyed
	}
	q.destroyed = true
	l := q.l
	q.l = list.New()
	q.mu.Unlock()

	if dtor == nil {
		return nil
	}
	for e := l.Front(); e != nil; e = e.Next() {
		dtor(value[T](e))
	}
	return nil
}

func (q *Queue[T]) PushTail(v T) error { return q.push(v, false) }
func (q *Queue[T]) PushHead(v T) error { return q.push(v, true) }

func (q *Queue[T]) push(v T, head bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return ErrDestroyed
	}
	if head {
		q.l.PushFront(v)
	} else {
		q.l.PushBack(v)
	}
	return nil
}

// PopHead removes the first element; ok is false when the queue is empty.
func (q *Queue[T]) PopHead() (v T, ok bool) { return q.pop(true) }

// PopTail removes the last element; ok is false when the queue is empty.
func (q *Queue[T]) PopTail() (v T, ok bool) { return q.pop(false) }

func (q *Queue[T]) pop(head bool) (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Back()
	if head {
		e = q.l.Front()
	}
	if e == nil {
		return v, false
	}
	q.l.Remove(e)
	return value[T](e), true
}

// value unboxes e; a nil interface element comes back as T's zero value.
func value[T any](e *list.Element) T {
	v, _ := e.Value.(T)
	return v
}

func (q *Queue[T]) IsEmpty() bool { return q.Len() == 0 }

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}
