package clickhouse

import (
	"fmt"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

// Endpoint selection strategies.
const (
	SelectionRoundRobin = "round_robin"
	SelectionHash       = "hash"

	HashMurmur3 = "murmur3"
)

// EndpointSelector picks the endpoint an insert is sent to.
type EndpointSelector interface {
	// Select returns an endpoint for the routing key.
	Select(key string) string
	// Endpoints returns all endpoints; the first is the primary.
	Endpoints() []string
}

// NewEndpointSelector creates a selector for the named strategy.
func NewEndpointSelector(strategy string, endpoints []string) (EndpointSelector, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	eps := append([]string(nil), endpoints...)

	switch strategy {
	case "", SelectionRoundRobin:
		return &roundRobin{endpoints: eps}, nil
	case SelectionHash:
		return &hashSelector{endpoints: eps}, nil
	default:
		return nil, fmt.Errorf("unsupported endpoint selection: %s", strategy)
	}
}

type roundRobin struct {
	endpoints []string
	next      atomic.Uint64
}

func (r *roundRobin) Select(string) string {
	n := r.next.Add(1) - 1
	return r.endpoints[n%uint64(len(r.endpoints))]
}

func (r *roundRobin) Endpoints() []string { return r.endpoints }

// hashSelector keeps every insert for one routing key on the same endpoint.
type hashSelector struct {
	endpoints []string
}

func (h *hashSelector) Select(key string) string {
	sum := murmur3.Sum64([]byte(key))
	return h.endpoints[sum%uint64(len(h.endpoints))]
}

func (h *hashSelector) Endpoints() []string { return h.endpoints }
