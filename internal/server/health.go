package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/jittakal/kafeventsink/pkg/table"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	GetStatus() map[string]string
}

// Pinger checks that the destination answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogSource exposes the current table catalog snapshot.
type CatalogSource interface {
	Tables() *table.Catalog
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Checker reports liveness from the processing loop and readiness from
// ClickHouse reachability and the table catalog.
type Checker struct {
	pinger      Pinger
	catalog     CatalogSource
	pingTimeout time.Duration
	alive       atomic.Bool

	mu     sync.RWMutex
	status map[string]string
}

// NewChecker creates a checker. It starts alive.
func NewChecker(pinger Pinger, catalog CatalogSource) *Checker {
	c := &Checker{
		pinger:      pinger,
		catalog:     catalog,
		pingTimeout: 2 * time.Second,
		status:      map[string]string{},
	}
	c.alive.Store(true)
	return c
}

// SetAlive marks the process live or not.
func (c *Checker) SetAlive(alive bool) {
	c.alive.Store(alive)
}

// Liveness implements HealthChecker.
func (c *Checker) Liveness() bool {
	return c.alive.Load()
}

// Readiness pings ClickHouse and requires a non-empty catalog.
func (c *Checker) Readiness(ctx context.Context) bool {
	status := make(map[string]string, 2)
	ready := true

	pingCtx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	if err := c.pinger.Ping(pingCtx); err != nil {
		status["clickhouse"] = "unreachable: " + err.Error()
		ready = false
	} else {
		status["clickhouse"] = "ok"
	}

	if n := c.catalog.Tables().Len(); n == 0 {
		status["catalog"] = "empty"
		ready = false
	} else {
		status["catalog"] = "ok"
	}

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	return ready
}

// GetStatus returns the per-check results of the last readiness probe.
func (c *Checker) GetStatus() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}
	return out
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}, logger)
	}
}

// ColumnView is the JSON form of a column.
type ColumnView struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DefaultKind string `json:"default_kind,omitempty"`
}

// TableView is the JSON form of a table contract.
type TableView struct {
	Name     string       `json:"name"`
	Database string       `json:"database"`
	Path     string       `json:"schema_path"`
	Columns  []ColumnView `json:"columns"`
}

// TablesView builds the JSON form of a catalog snapshot, sorted by name.
func TablesView(cat *table.Catalog) []TableView {
	tables := cat.Tables()
	views := make([]TableView, 0, len(tables))
	for _, t := range tables {
		path := "binary"
		if t.HasDefaults() {
			path = "text"
		}
		cols := make([]ColumnView, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = ColumnView{Name: c.Name, Type: c.TypeName(), DefaultKind: c.DefaultKind}
		}
		views = append(views, TableView{Name: t.Name, Database: t.Database, Path: path, Columns: cols})
	}
	return views
}

// TablesHandler serves the current catalog snapshot as JSON.
func TablesHandler(source CatalogSource, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, TablesView(source.Tables()), logger)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}
