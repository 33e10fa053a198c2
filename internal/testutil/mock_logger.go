// Package testutil provides common test utilities for the reconciler.
package testutil

import (
	"sync"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
)

// MockLogger implements logging.Logger for testing purposes.
// It records log messages and can be used to verify logging behavior.
type MockLogger struct {
	mu       *sync.Mutex
	store    *[]LogMessage
	fields   []logging.Field
	name     string
	Messages []LogMessage
}

// LogMessage represents a single log entry captured by MockLogger.
type LogMessage struct {
	Level   string
	Logger  string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the first field named key.
func (m LogMessage) Field(key string) (interface{}, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// NewMockLogger creates a new MockLogger instance.
func NewMockLogger() *MockLogger {
	m := &MockLogger{mu: &sync.Mutex{}}
	m.store = &m.Messages
	return m
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]logging.Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)
	*m.store = append(*m.store, LogMessage{
		Level:   level,
		Logger:  m.name,
		Message: msg,
		Fields:  all,
	})
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

// With returns a child that shares the message buffer and prepends fields.
func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	child := &MockLogger{mu: m.mu, store: m.store, name: m.name}
	child.fields = append(append([]logging.Field{}, m.fields...), fields...)
	return child
}

func (m *MockLogger) Named(name string) logging.Logger {
	child := &MockLogger{mu: m.mu, store: m.store, fields: m.fields, name: name}
	if m.name != "" {
		child.name = m.name + "." + name
	}
	return child
}

func (m *MockLogger) Sync() error {
	return nil
}

// GetMessages returns a copy of all logged messages.
func (m *MockLogger) GetMessages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]LogMessage, len(*m.store))
	copy(result, *m.store)
	return result
}

// Clear removes all logged messages.
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.store = (*m.store)[:0]
}

// HasMessage checks if a message with the given level and content was logged.
func (m *MockLogger) HasMessage(level, msg string) bool {
	return m.Count(level, msg) > 0
}

// Count returns how many times msg was logged at level.
func (m *MockLogger) Count(level, msg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, logged := range *m.store {
		if logged.Level == level && logged.Message == msg {
			n++
		}
	}
	return n
}
