// Package ring provides a fixed-capacity single-producer/single-consumer
// queue of float32 PCM samples. It decouples the decode rate from the
// output device's consumption rate: the producer never blocks (Write
// reports how much was accepted) and the consumer never blocks (Read
// returns what is available).
package ring

import "sync/atomic"

// Buffer is a single-producer/single-consumer ring of float32 samples.
// Exactly one goroutine may call Write and exactly one may call Read/Pop;
// Len and Cap are safe from anywhere.
type Buffer struct {
	buf  []float32
	head atomic.Uint64 // total samples consumed
	tail atomic.Uint64 // total samples produced
}

// New creates a Buffer holding up to capacity samples.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{buf: make([]float32, capacity)}
}

// Cap returns the buffer capacity in samples.
func (b *Buffer) Cap() int { return len(b.buf) }

// Len returns the number of samples currently buffered.
func (b *Buffer) Len() int {
	return int(b.tail.Load() - b.head.Load())
}

// Push appends one sample. It reports false, without blocking, when the
// buffer is full.
func (b *Buffer) Push(v float32) bool {
	tail := b.tail.Load()
	if tail-b.head.Load() == uint64(len(b.buf)) {
		return false
	}
	b.buf[tail%uint64(len(b.buf))] = v
	b.tail.Store(tail + 1)
	return true
}

// Write appends as many samples from src as fit and returns how many were
// accepted. It never blocks.
func (b *Buffer) Write(src []float32) int {
	tail := b.tail.Load()
	free := uint64(len(b.buf)) - (tail - b.head.Load())
	n := len(src)
	if uint64(n) > free {
		n = int(free)
	}
	for i := 0; i < n; i++ {
		b.buf[(tail+uint64(i))%uint64(len(b.buf))] = src[i]
	}
	b.tail.Store(tail + uint64(n))
	return n
}

// Pop removes and returns the oldest sample. It reports false, without
// blocking, when the buffer is empty.
func (b *Buffer) Pop() (float32, bool) {
	head := b.head.Load()
	if head == b.tail.Load() {
		return 0, false
	}
	v := b.buf[head%uint64(len(b.buf))]
	b.head.Store(head + 1)
	return v, true
}

// Read fills dst with up to len(dst) samples and returns how many were
// copied. It never blocks.
func (b *Buffer) Read(dst []float32) int {
	head := b.head.Load()
	avail := b.tail.Load() - head
	n := len(dst)
	if uint64(n) > avail {
		n = int(avail)
	}
	for i := 0; i < n; i++ {
		dst[i] = b.buf[(head+uint64(i))%uint64(len(b.buf))]
	}
	b.head.Store(head + uint64(n))
	return n
}
