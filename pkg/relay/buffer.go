package relay

// frameBuffer is a bounded FIFO of encoded audio frames with deterministic
// oldest-first eviction. Not safe for concurrent use; the Relay locks
// around it.
type frameBuffer struct {
	frames []string
	cap    int
}

func newFrameBuffer(capacity int) *frameBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &frameBuffer{
		frames: make([]string, 0, capacity),
		cap:    capacity,
	}
}

// Push appends a frame, evicting the oldest when full. Returns true if a
// frame was evicted.
func (b *frameBuffer) Push(frame string) bool {
	evicted := false
	if len(b.frames) >= b.cap {
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:len(b.frames)-1]
		evicted = true
	}
	b.frames = append(b.frames, frame)
	return evicted
}

// Clear removes all frames.
func (b *frameBuffer) Clear() {
	b.frames = b.frames[:0]
}

// Len returns the number of buffered frames.
func (b *frameBuffer) Len() int {
	return len(b.frames)
}

// Frames returns the buffered frames in arrival order.
func (b *frameBuffer) Frames() []string {
	out := make([]string, len(b.frames))
	copy(out, b.frames)
	return out
}
