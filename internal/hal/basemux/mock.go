package basemux

import (
	"io"
	"sync"
	"time"
)

// MockBasePort implements BasePorter for testing.
type MockBasePort struct {
	mu            sync.Mutex
	ReadData      []byte
	WrittenData   []byte
	ReadError     error
	WriteError    error
	CloseError    error
	Closed        bool
	ReadDelay     time.Duration
	ReadCallCount int
}

func (m *MockBasePort) Read(p []byte) (n int, err error) {
	if m.ReadError != nil {
		return 0, m.ReadError
	}

	if m.ReadDelay > 0 {
		time.Sleep(m.ReadDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCallCount++

	if len(m.ReadData) == 0 {
		return 0, io.EOF
	}

	n = copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	return n, nil
}

func (m *MockBasePort) Write(p []byte) (n int, err error) {
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WrittenData = append(m.WrittenData, p...)
	return len(p), nil
}

// Written returns a copy of everything written to the port so far.
func (m *MockBasePort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.WrittenData))
	copy(out, m.WrittenData)
	return out
}

func (m *MockBasePort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

// NewMockBaseMux creates a BaseMux instance backed by a mock base port that
// replays the given telemetry bytes.
func NewMockBaseMux(mockData []byte) *BaseMux[*MockBasePort] {
	mockPort := &MockBasePort{
		ReadData: mockData,
	}
	return NewBaseMux[*MockBasePort](mockPort)
}
