// Package framering is a lock-free single-producer single-consumer queue of
// PCM frames between a renderer goroutine and an audio callback.
package framering

import (
	"sync/atomic"

	"github.com/drgolem/ringbuffer"

	"github.com/drgolem/vgmtools/pkg/pcmframe"
)

var (
	ErrInsufficientSpace = ringbuffer.ErrInsufficientSpace
	ErrInsufficientData  = ringbuffer.ErrInsufficientData
)

// Ring holds up to Size frames. Write is for the producer only and Read for
// the consumer only; the two may run concurrently.
type Ring struct {
	slots    []pcmframe.Frame
	size     uint64 // power of two
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New returns a ring with room for capacity frames, rounded up to a power
// of two.
func New(capacity uint64) *Ring {
	capacity = nextPowerOf2(capacity)
	return &Ring{
		slots: make([]pcmframe.Frame, capacity),
		size:  capacity,
		mask:  capacity - 1,
	}
}

// Write queues as many frames as fit and returns how many did. Audio is
// copied so callers may reuse their buffers. A full ring returns
// ErrInsufficientSpace.
func (r *Ring) Write(frames []pcmframe.Frame) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}
	n := min(uint64(len(frames)), r.AvailableWrite())
	if n == 0 {
		return 0, ErrInsufficientSpace
	}

	w := r.writePos.Load()
	for i := uint64(0); i < n; i++ {
		slot := &r.slots[(w+i)&r.mask]
		*slot = frames[i]
		slot.Audio = append([]byte(nil), frames[i].Audio...)
	}
	r.writePos.Store(w + n)
	return int(n), nil
}

// Read dequeues up to n frames. An empty ring returns ErrInsufficientData.
func (r *Ring) Read(n int) ([]pcmframe.Frame, error) {
	if n <= 0 {
		return nil, nil
	}
	avail := r.AvailableRead()
	if avail == 0 {
		return nil, ErrInsufficientData
	}
	m := min(uint64(n), avail)

	rd := r.readPos.Load()
	out := make([]pcmframe.Frame, m)
	for i := uint64(0); i < m; i++ {
		out[i] = r.slots[(rd+i)&r.mask]
	}
	r.readPos.Store(rd + m)
	return out, nil
}

// Next dequeues a single frame into fr without allocating.
func (r *Ring) Next(fr *pcmframe.Frame) bool {
	rd := r.readPos.Load()
	if r.writePos.Load() == rd {
		return false
	}
	*fr = r.slots[rd&r.mask]
	r.readPos.Store(rd + 1)
	return true
}

// AvailableWrite returns how many frames can be written without blocking.
func (r *Ring) AvailableWrite() uint64 {
	return r.size - (r.writePos.Load() - r.readPos.Load())
}

// AvailableRead returns how many frames are queued for the reader.
func (r *Ring) AvailableRead() uint64 {
	return r.writePos.Load() - r.readPos.Load()
}

// Size is the capacity in frames.
func (r *Ring) Size() uint64 {
	return r.size
}

// Reset empties the ring. Neither side may be running.
func (r *Ring) Reset() {
	r.readPos.Store(0)
	r.writePos.Store(0)
}

func nextPowerOf2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
