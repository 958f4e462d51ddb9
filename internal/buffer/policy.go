package buffer

import (
	"time"

	"github.com/jittakal/kafeventsink/pkg/buffer"
	"github.com/jittakal/kafeventsink/pkg/event"
)

var _ buffer.FlushPolicy = (*CompositePolicy)(nil)

// PolicyConfig configures flush behavior. A zero value disables a criterion.
type PolicyConfig struct {
	MaxRecords int
	MaxBytes   int64
	MaxAge     time.Duration
}

// CompositePolicy flushes when any of its criteria is met.
type CompositePolicy struct {
	maxRecords int
	maxBytes   int64
	maxAge     time.Duration
	now        func() time.Time
}

// NewPolicy creates a composite flush policy.
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return &CompositePolicy{
		maxRecords: config.MaxRecords,
		maxBytes:   config.MaxBytes,
		maxAge:     config.MaxAge,
		now:        time.Now,
	}
}

// ShouldFlush returns true if any flush condition is met. Empty buffers are
// never flushed.
func (p *CompositePolicy) ShouldFlush(stats event.BatchStats) bool {
	if stats.RecordCount == 0 {
		return false
	}

	if p.maxRecords > 0 && stats.RecordCount >= p.maxRecords {
		return true
	}

	if p.maxBytes > 0 && stats.SizeBytes >= p.maxBytes {
		return true
	}

	if p.maxAge > 0 && !stats.FirstWriteTime.IsZero() {
		if p.now().Sub(stats.FirstWriteTime) >= p.maxAge {
			return true
		}
	}

	return false
}
