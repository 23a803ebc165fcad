package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	t.Parallel()

	b := New(4)

	assert.Equal(t, 4, b.Cap())
	assert.Equal(t, 0, b.Len())

	_, ok := b.Pop()
	assert.False(t, ok, "Pop on empty buffer must not yield a sample")

	require.True(t, b.Push(0.25))
	require.True(t, b.Push(-0.5))
	assert.Equal(t, 2, b.Len())

	v, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, float32(0.25), v)

	v, ok = b.Pop()
	require.True(t, ok)
	assert.Equal(t, float32(-0.5), v)

	assert.Equal(t, 0, b.Len())
}

func TestPushDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New(2)
	require.True(t, b.Push(1))
	require.True(t, b.Push(2))

	// Full buffer: the producer must not block, the sample is dropped.
	assert.False(t, b.Push(3))
	assert.Equal(t, 2, b.Len())

	v, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, float32(1), v)
}

func TestWriteAcceptsPartial(t *testing.T) {
	t.Parallel()

	b := New(3)
	n := b.Write([]float32{1, 2, 3, 4, 5})
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, b.Len())

	dst := make([]float32, 5)
	got := b.Read(dst)
	assert.Equal(t, 3, got)
	assert.Equal(t, []float32{1, 2, 3}, dst[:got])
}

func TestWraparound(t *testing.T) {
	t.Parallel()

	b := New(4)
	for round := 0; round < 10; round++ {
		n := b.Write([]float32{float32(round), float32(round) + 0.5})
		require.Equal(t, 2, n)

		dst := make([]float32, 2)
		require.Equal(t, 2, b.Read(dst))
		assert.Equal(t, float32(round), dst[0])
		assert.Equal(t, float32(round)+0.5, dst[1])
	}
	assert.Equal(t, 0, b.Len())
}

func TestReadFromEmpty(t *testing.T) {
	t.Parallel()

	b := New(8)
	dst := make([]float32, 4)
	assert.Equal(t, 0, b.Read(dst))
}

func TestConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	const total = 10000
	b := New(64)

	go func() {
		for i := 0; i < total; {
			if b.Push(float32(i)) {
				i++
			}
		}
	}()

	next := float32(0)
	for read := 0; read < total; {
		v, ok := b.Pop()
		if !ok {
			continue
		}
		require.Equal(t, next, v, "samples must come out in FIFO order")
		next++
		read++
	}
}
