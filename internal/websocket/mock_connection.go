package websocket

import (
	"errors"
	"net"
	"sync"
	"time"
)

// MockConnection is a mock implementation of the Connection interface for testing
type MockConnection struct {
	mu sync.Mutex

	WriteMessageFunc func(messageType int, data []byte) error
	WrittenMessages  []MockMessage
	ControlMessages  []MockMessage

	ReadMessages []MockMessage
	ReadIndex    int

	Closed bool

	ReadDeadline  time.Time
	WriteDeadline time.Time
	PongHandler   func(string) error
	ReadLimit     int64

	RemoteAddress string
}

// MockMessage represents a message for mocking
type MockMessage struct {
	Type int
	Data []byte
	Err  error
}

// NewMockConnection creates a new mock connection
func NewMockConnection() *MockConnection {
	return &MockConnection{RemoteAddress: "127.0.0.1:8080"}
}

// WriteMessage implements Connection.WriteMessage
func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteMessageFunc != nil {
		if err := m.WriteMessageFunc(messageType, data); err != nil {
			return err
		}
	}
	if m.Closed {
		return errors.New("write on closed connection")
	}
	m.WrittenMessages = append(m.WrittenMessages, MockMessage{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

// WriteControl implements Connection.WriteControl
func (m *MockConnection) WriteControl(messageType int, data []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return errors.New("write on closed connection")
	}
	m.ControlMessages = append(m.ControlMessages, MockMessage{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

// ReadMessage implements Connection.ReadMessage
func (m *MockConnection) ReadMessage() (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadIndex < len(m.ReadMessages) {
		msg := m.ReadMessages[m.ReadIndex]
		m.ReadIndex++
		return msg.Type, msg.Data, msg.Err
	}
	return 0, nil, errors.New("no more messages")
}

// Close implements Connection.Close
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SetReadDeadline implements Connection.SetReadDeadline
func (m *MockConnection) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadDeadline = t
	return nil
}

// SetWriteDeadline implements Connection.SetWriteDeadline
func (m *MockConnection) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteDeadline = t
	return nil
}

// SetReadLimit implements Connection.SetReadLimit
func (m *MockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadLimit = limit
}

// SetPongHandler implements Connection.SetPongHandler
func (m *MockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PongHandler = h
}

// RemoteAddr implements Connection.RemoteAddr
func (m *MockConnection) RemoteAddr() net.Addr {
	addr, err := net.ResolveTCPAddr("tcp", m.RemoteAddress)
	if err != nil {
		return &net.TCPAddr{}
	}
	return addr
}

// AddReadMessage queues a message for ReadMessage
func (m *MockConnection) AddReadMessage(messageType int, data []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadMessages = append(m.ReadMessages, MockMessage{Type: messageType, Data: data, Err: err})
}

// GetWrittenMessages returns a copy of the written data frames
func (m *MockConnection) GetWrittenMessages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMessage, len(m.WrittenMessages))
	copy(out, m.WrittenMessages)
	return out
}

// IsClosed reports whether Close was called
func (m *MockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}
