package buffer

import (
	"testing"
	"time"

	"github.com/jittakal/kafeventsink/pkg/event"
)

func TestCompositePolicy_ShouldFlush(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		config PolicyConfig
		stats  event.BatchStats
		want   bool
	}{
		{
			name:   "empty buffer never flushes",
			config: PolicyConfig{MaxRecords: 1, MaxAge: time.Nanosecond},
			stats:  event.BatchStats{},
			want:   false,
		},
		{
			name:   "record count reached",
			config: PolicyConfig{MaxRecords: 10},
			stats:  event.BatchStats{RecordCount: 10, FirstWriteTime: now},
			want:   true,
		},
		{
			name:   "record count below",
			config: PolicyConfig{MaxRecords: 10},
			stats:  event.BatchStats{RecordCount: 9, FirstWriteTime: now},
			want:   false,
		},
		{
			name:   "bytes reached",
			config: PolicyConfig{MaxBytes: 1024},
			stats:  event.BatchStats{RecordCount: 1, SizeBytes: 2048, FirstWriteTime: now},
			want:   true,
		},
		{
			name:   "age reached",
			config: PolicyConfig{MaxAge: 5 * time.Second},
			stats:  event.BatchStats{RecordCount: 1, FirstWriteTime: now.Add(-5 * time.Second)},
			want:   true,
		},
		{
			name:   "young batch",
			config: PolicyConfig{MaxRecords: 100, MaxBytes: 1 << 20, MaxAge: time.Minute},
			stats:  event.BatchStats{RecordCount: 3, SizeBytes: 300, FirstWriteTime: now.Add(-time.Second)},
			want:   false,
		},
		{
			name:   "all criteria disabled",
			config: PolicyConfig{},
			stats:  event.BatchStats{RecordCount: 1000000, SizeBytes: 1 << 30, FirstWriteTime: now.Add(-time.Hour)},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.config)
			p.now = func() time.Time { return now }
			if got := p.ShouldFlush(tt.stats); got != tt.want {
				t.Errorf("ShouldFlush() = %v, want %v", got, tt.want)
			}
		})
	}
}
