// Package ring implements the fixed-capacity, allocation-free byte ring
// buffer that sits between the audio producer thread and the realtime
// device callback (spec.md §4.2).
//
// It is modeled on the mutex-protected circular buffer in
// Savid-iptv-proxy's internal/buffer package, but trades that buffer's
// blocking Read/Write for the non-blocking push/pop contract the audio
// device callback requires: the callback must never wait on a producer
// that might be stalled or paused.
package ring

import "sync"

// Buffer is a single-producer/single-consumer bounded byte ring. A
// single mutex around all mutations is sufficient because every call is a
// bounded memcpy: the device callback's consumer-side work never blocks
// (spec.md §4.2, §9).
type Buffer struct {
	mu   sync.Mutex
	buf  []byte
	cap  uint64
	read uint64
	write uint64
}

// New allocates a ring of the given capacity in bytes. Capacity is fixed
// for the lifetime of the buffer; Buffer never allocates again after
// construction.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		buf: make([]byte, capacity),
		cap: uint64(capacity),
	}
}

// Push copies up to len(src) bytes from src into the ring and returns the number
// actually written: 0 when full, never negative, never more than the free
// space available at the time of the call.
func (b *Buffer) Push(src []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	free := b.cap - (b.write - b.read)
	n := uint64(len(src))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	start := b.write % b.cap
	first := b.cap - start
	if first > n {
		first = n
	}
	copy(b.buf[start:start+first], src[:first])
	if second := n - first; second > 0 {
		copy(b.buf[0:second], src[first:first+second])
	}

	b.write += n
	return int(n)
}

// Pop copies up to len(dst) bytes out of the ring into dst and returns the
// number actually read: 0 when empty, never negative, never more than the
// occupancy available at the time of the call.
func (b *Buffer) Pop(dst []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	occ := b.write - b.read
	n := uint64(len(dst))
	if n > occ {
		n = occ
	}
	if n == 0 {
		return 0
	}

	start := b.read % b.cap
	first := b.cap - start
	if first > n {
		first = n
	}
	copy(dst[:first], b.buf[start:start+first])
	if second := n - first; second > 0 {
		copy(dst[first:first+second], b.buf[0:second])
	}

	b.read += n
	return int(n)
}

// Clear resets both positions to zero and zeroes the backing storage.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.read = 0
	b.write = 0
	for i := range b.buf {
		b.buf[i] = 0
	}
}

// Occupancy returns the exact number of unread bytes currently buffered.
func (b *Buffer) Occupancy() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.write - b.read)
}

// FreeSpace returns the exact number of bytes that can be pushed right
// now without dropping data.
func (b *Buffer) FreeSpace() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.cap - (b.write - b.read))
}

// Capacity returns the fixed ring size in bytes.
func (b *Buffer) Capacity() int {
	return int(b.cap)
}
