package insert

import (
	"strings"
	"sync"
)

type mockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
	rows   map[string]float64
	tables float64
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{counts: map[string]int{}, rows: map[string]float64{}}
}

func (m *mockMetrics) inc(parts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[strings.Join(parts, ":")]++
}

func (m *mockMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *mockMetrics) IncBatchesInserted(table, path, status string) {
	m.inc("batches", table, path, status)
}

func (m *mockMetrics) AddRowsWritten(table string, rows float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[table] += rows
}

func (m *mockMetrics) ObserveInsertDuration(table, path string, duration float64) {
	m.inc("duration", table, path)
}

func (m *mockMetrics) ObserveInsertBytes(table string, size float64) {
	m.inc("bytes", table)
}

func (m *mockMetrics) IncValidationFailures(table, kind string) {
	m.inc("validation", table, kind)
}

func (m *mockMetrics) SetCatalogTables(count float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = count
}

func (m *mockMetrics) IncCatalogReloads(status string) {
	m.inc("reloads", status)
}
