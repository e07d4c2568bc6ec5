package mediabuffer

import "sync"

// Memory is a sliding window over the download. The consumed prefix is
// dropped once it reaches DiscardThreshold, so offsets before the discard
// point are no longer addressable.
type Memory struct {
	mu        sync.Mutex
	data      []byte
	discarded int64
	available int64
	blockSize int
}

func NewMemory(blockSize int) *Memory {
	return &Memory{
		data:      make([]byte, 0, blockSize),
		blockSize: blockSize,
	}
}

func (m *Memory) Write(p []byte) error {
	m.mu.Lock()
	m.data = append(m.data, p...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Read(offset int64, length int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	translated := offset - m.discarded
	avail := int64(len(m.data)) - translated
	if translated < 0 || avail < 1 || length <= 0 {
		if length > 0 {
			warnUnderflow("memory", offset, length, m.blockSize)
		}
		m.available = 0
		return nil
	}
	m.available = avail

	n := int64(length)
	if n > avail {
		n = avail
	}
	out := make([]byte, n)
	copy(out, m.data[translated:translated+n])

	if consumed := translated + n; consumed >= DiscardThreshold {
		m.data = append(m.data[:0:0], m.data[consumed:]...)
		m.discarded += consumed
	}
	return out
}

func (m *Memory) Available() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *Memory) Capacity() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(cap(m.data))
}

// Discarded is the number of bytes dropped from the front so far.
func (m *Memory) Discarded() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discarded
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.data = nil
	m.available = 0
	m.mu.Unlock()
	return nil
}
