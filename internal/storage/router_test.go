package storage

import (
	"testing"
	"time"
)

func TestNewRouter(t *testing.T) {
	router := NewRouter("s3", "my-bucket", "failed")

	if router.protocol != "s3" {
		t.Errorf("protocol = %v, want s3", router.protocol)
	}
	if router.bucket != "my-bucket" {
		t.Errorf("bucket = %v, want my-bucket", router.bucket)
	}
	if router.basePath != "failed" {
		t.Errorf("basePath = %v, want failed", router.basePath)
	}
}

func TestDefaultRouter_Route(t *testing.T) {
	at := time.Date(2025, 12, 18, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		router    *DefaultRouter
		table     string
		partition int32
		at        time.Time
		want      string
	}{
		{
			name:      "s3 with base path",
			router:    NewRouter("s3", "test-bucket", "failed"),
			table:     "events",
			partition: 3,
			at:        at,
			want:      "s3://test-bucket/failed/events/dt=2025-12-18/pid=3/",
		},
		{
			name:      "no base path",
			router:    NewRouter("gs", "bucket", ""),
			table:     "orders",
			partition: 0,
			at:        at,
			want:      "gs://bucket/orders/dt=2025-12-18/pid=0/",
		},
		{
			name:      "file backend has no bucket",
			router:    NewRouter("file", "", "failed"),
			table:     "events",
			partition: 1,
			at:        at,
			want:      "file:///failed/events/dt=2025-12-18/pid=1/",
		},
		{
			name:      "date is taken in UTC",
			router:    NewRouter("wasbs", "container", "archive"),
			table:     "events",
			partition: 7,
			at:        time.Date(2025, 12, 19, 1, 0, 0, 0, time.FixedZone("CET", 2*3600)),
			want:      "wasbs://container/archive/events/dt=2025-12-18/pid=7/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.router.Route(tt.table, tt.partition, tt.at)
			if got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}
