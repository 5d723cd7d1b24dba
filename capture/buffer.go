package capture

// DefaultCapacity is the initial buffer size, about 95 seconds of CDAudio
const DefaultCapacity = 16 << 20

// Buffer accumulates captured bytes. Appending is the only mutation and
// growth copies every byte already written.
type Buffer struct {
	data []byte
}

// NewBuffer preallocates capacity bytes
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Append copies p to the end of the buffer, doubling the backing array as needed
func (b *Buffer) Append(p []byte) {
	need := len(b.data) + len(p)
	if need > cap(b.data) {
		size := cap(b.data) * 2
		if size == 0 {
			size = 1024
		}
		for size < need {
			size *= 2
		}
		grown := make([]byte, len(b.data), size)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = append(b.data, p...)
}

// Bytes returns the written bytes. The slice aliases the buffer and must not be modified.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes written
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the current backing capacity
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Release drops the backing array once the contents have been persisted
func (b *Buffer) Release() {
	b.data = nil
}
