package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24node/rf24node-go/pkg/frame"
)

func numbered(n uint16) frame.Frame {
	return frame.Frame{Header: frame.Header{Number: n}}
}

func TestQueueFIFO(t *testing.T) {
	q := New(3)
	assert.Equal(t, 3, q.Cap())
	assert.Equal(t, 3, q.Free())

	for i := uint16(1); i <= 3; i++ {
		require.NoError(t, q.Push(numbered(i)))
	}
	assert.ErrorIs(t, q.Push(numbered(4)), ErrFull)
	assert.Equal(t, 3, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, uint16(1), head.Number)

	for i := uint16(1); i <= 3; i++ {
		f, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, i, f.Number)
	}
	_, err := q.Pop()
	assert.ErrorIs(t, err, ErrEmpty)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestQueueWrapAround(t *testing.T) {
	q := New(2)
	var next uint16
	for round := 0; round < 5; round++ {
		require.NoError(t, q.Push(numbered(next)))
		require.NoError(t, q.Push(numbered(next+1)))
		a, _ := q.Pop()
		b, _ := q.Pop()
		assert.Equal(t, next, a.Number)
		assert.Equal(t, next+1, b.Number)
		next += 2
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueuePushAll(t *testing.T) {
	q := New(3)
	require.NoError(t, q.Push(numbered(0)))

	err := q.PushAll([]frame.Frame{numbered(1), numbered(2), numbered(3)})
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, 1, q.Len(), "partial push must not happen")

	require.NoError(t, q.PushAll([]frame.Frame{numbered(1), numbered(2)}))
	assert.Equal(t, 0, q.Free())
}

func TestQueueClear(t *testing.T) {
	q := New(2)
	_ = q.Push(numbered(1))
	_ = q.Push(numbered(2))
	q.Clear()
	assert.Equal(t, 0, q.Len())
	require.NoError(t, q.Push(numbered(3)))
	f, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), f.Number)
}

func TestQueueZeroCapacity(t *testing.T) {
	q := New(0)
	assert.ErrorIs(t, q.Push(numbered(1)), ErrFull)
	_, err := q.Pop()
	assert.ErrorIs(t, err, ErrEmpty)
}
