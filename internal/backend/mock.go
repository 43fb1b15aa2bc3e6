// ABOUTME: Mock Capability implementation for testing
// ABOUTME: Allows protocol-layer tests to run without a real data store

package backend

import (
	"context"
	"sync"
)

// MockCapability is an in-memory Capability implementation for testing.
// Fixed responses are configured up front; call counts are tracked so
// tests can assert which operations were (or were not) reached.
type MockCapability struct {
	mu sync.Mutex

	Tables      []string
	Schemas     map[string][]Record // keyed by qualified table name
	QueryRows   []Record
	Err         error // when set, every operation fails with this error
	QueryDelay  func() // when set, called before ExecuteQuery returns (for latency control)

	ListCalls     int
	DescribeCalls int
	QueryCalls    int
}

// NewMockCapability creates a MockCapability with empty fixtures.
func NewMockCapability() *MockCapability {
	return &MockCapability{
		Schemas: make(map[string][]Record),
	}
}

// ListTables returns the configured table names.
func (m *MockCapability) ListTables(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.ListCalls++
	err := m.Err
	tables := m.Tables
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return tables, nil
}

// DescribeTable returns the configured schema records for the table.
func (m *MockCapability) DescribeTable(ctx context.Context, table string) ([]Record, error) {
	m.mu.Lock()
	m.DescribeCalls++
	err := m.Err
	records := m.Schemas[table]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return records, nil
}

// ExecuteQuery returns the configured rows after any configured delay.
func (m *MockCapability) ExecuteQuery(ctx context.Context, query string) ([]Record, error) {
	m.mu.Lock()
	m.QueryCalls++
	err := m.Err
	rows := m.QueryRows
	delay := m.QueryDelay
	m.mu.Unlock()

	if delay != nil {
		delay()
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Close is a no-op.
func (m *MockCapability) Close() error { return nil }

// Calls returns a snapshot of the per-operation call counts.
func (m *MockCapability) Calls() (list, describe, query int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListCalls, m.DescribeCalls, m.QueryCalls
}
