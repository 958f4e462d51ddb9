package buffer

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/event"
)

func testEntry(offset int64, value string) event.Entry {
	meta := event.KafkaMetadata{Topic: "events", Partition: 0, Offset: offset}
	return event.Entry{
		Record: event.Record{
			Topic:  "events",
			Mode:   event.SchemaModeSchemaless,
			Values: map[string]event.Data{"v": event.String(value)},
			Kafka:  meta,
		},
		Message: event.Message{Metadata: meta, Value: []byte(value)},
	}
}

func TestNew(t *testing.T) {
	partitionID := event.PartitionID{Topic: "events", Partition: 3}
	buf := New(partitionID, 1024*1024, 1000)

	if buf.PartitionID() != partitionID {
		t.Errorf("PartitionID() = %v, want %v", buf.PartitionID(), partitionID)
	}
	if buf.maxSizeBytes != 1024*1024 {
		t.Errorf("maxSizeBytes = %d, want %d", buf.maxSizeBytes, 1024*1024)
	}
	if buf.maxRecords != 1000 {
		t.Errorf("maxRecords = %d, want 1000", buf.maxRecords)
	}
	if !buf.IsEmpty() {
		t.Error("new buffer should be empty")
	}
}

func TestPartitionBuffer_Add(t *testing.T) {
	buf := New(event.PartitionID{Topic: "events"}, 1024, 10)

	if err := buf.Add(testEntry(1, `{"id":1}`)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	stats := buf.Stats()
	if stats.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1", stats.RecordCount)
	}
	// value (8) + topic (6)
	if stats.SizeBytes != 14 {
		t.Errorf("SizeBytes = %d, want 14", stats.SizeBytes)
	}
}

func TestPartitionBuffer_Limits(t *testing.T) {
	tests := []struct {
		name       string
		maxBytes   int64
		maxRecords int
		values     []string
		wantAdded  int
	}{
		{"record limit", 0, 2, []string{"a", "b", "c"}, 2},
		{"byte limit", 20, 0, []string{"aaaa", "bbbb", "cccc"}, 2},
		{"oversized first entry is accepted", 5, 0, []string{"much longer than five", "x"}, 1},
		{"no limits", 0, 0, []string{"a", "b", "c", "d"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := New(event.PartitionID{Topic: "events"}, tt.maxBytes, tt.maxRecords)
			added := 0
			for i, v := range tt.values {
				err := buf.Add(testEntry(int64(i), v))
				if err != nil {
					if !stderrors.Is(err, errors.ErrBufferFull) {
						t.Fatalf("Add() error = %v, want ErrBufferFull", err)
					}
					continue
				}
				added++
			}
			if added != tt.wantAdded {
				t.Errorf("added = %d, want %d", added, tt.wantAdded)
			}
		})
	}
}

func TestPartitionBuffer_Drain(t *testing.T) {
	buf := New(event.PartitionID{Topic: "events"}, 0, 10)
	for i := 0; i < 3; i++ {
		_ = buf.Add(testEntry(int64(i), "v"))
	}

	entries := buf.Drain()
	if len(entries) != 3 {
		t.Fatalf("Drain() returned %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Message.Metadata.Offset != int64(i) {
			t.Errorf("entry %d offset = %d, want %d", i, e.Message.Metadata.Offset, i)
		}
	}
	if !buf.IsEmpty() {
		t.Error("buffer should be empty after Drain()")
	}
	stats := buf.Stats()
	if stats.SizeBytes != 0 || !stats.FirstWriteTime.IsZero() {
		t.Errorf("stats not reset: %+v", stats)
	}

	// Later adds must not alias the drained slice.
	_ = buf.Add(testEntry(9, "new"))
	if entries[0].Message.Metadata.Offset != 0 {
		t.Error("drained entries were modified by a later Add()")
	}
}

func TestPartitionBuffer_Reset(t *testing.T) {
	buf := New(event.PartitionID{Topic: "events"}, 0, 10)
	_ = buf.Add(testEntry(1, "v"))
	buf.Reset()
	if !buf.IsEmpty() {
		t.Error("buffer should be empty after Reset()")
	}
}

func TestPartitionBuffer_FirstLastWriteTime(t *testing.T) {
	buf := New(event.PartitionID{Topic: "events"}, 0, 10)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	buf.now = func() time.Time { return clock }

	_ = buf.Add(testEntry(1, "a"))
	clock = clock.Add(5 * time.Second)
	_ = buf.Add(testEntry(2, "b"))

	stats := buf.Stats()
	if want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC); !stats.FirstWriteTime.Equal(want) {
		t.Errorf("FirstWriteTime = %v, want %v", stats.FirstWriteTime, want)
	}
	if !stats.LastWriteTime.Equal(clock) {
		t.Errorf("LastWriteTime = %v, want %v", stats.LastWriteTime, clock)
	}
}

func TestPartitionBuffer_ConcurrentAdd(t *testing.T) {
	buf := New(event.PartitionID{Topic: "events"}, 0, 0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := buf.Add(testEntry(int64(g*50+i), "v")); err != nil {
					t.Errorf("Add() error = %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	if got := buf.Stats().RecordCount; got != 400 {
		t.Errorf("RecordCount = %d, want 400", got)
	}
}

func TestEstimateSize(t *testing.T) {
	entry := event.Entry{
		Message: event.Message{
			Metadata: event.KafkaMetadata{
				Topic:   "orders",
				Key:     []byte("key"),
				Headers: map[string]string{"h": "vv"},
			},
			Value: []byte("0123456789"),
		},
	}
	// 10 value + 3 key + 6 topic + 3 header
	if got := EstimateSize(entry); got != 22 {
		t.Errorf("EstimateSize() = %d, want 22", got)
	}
}

func TestManager(t *testing.T) {
	m := NewManager(0, 10)

	p0 := event.PartitionID{Topic: "orders", Partition: 0}
	p1 := event.PartitionID{Topic: "events", Partition: 2}
	p2 := event.PartitionID{Topic: "events", Partition: 1}

	b0 := m.GetOrCreate(p0)
	if m.GetOrCreate(p0) != b0 {
		t.Error("GetOrCreate() should return the same buffer for a partition")
	}
	m.GetOrCreate(p1)
	m.GetOrCreate(p2)

	got := m.Partitions()
	want := []event.PartitionID{p2, p1, p0}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Partitions() = %v, want %v", got, want)
	}
}

func TestManager_ConcurrentGetOrCreate(t *testing.T) {
	m := NewManager(0, 10)
	p := event.PartitionID{Topic: "events", Partition: 0}

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetOrCreate(p)
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate() returned different buffers")
		}
	}
}

func BenchmarkPartitionBuffer_Add(b *testing.B) {
	buf := New(event.PartitionID{Topic: "events"}, 0, 0)
	entry := testEntry(1, `{"id":1,"name":"bench"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := buf.Add(entry); err != nil {
			b.Fatal(err)
		}
		if i%1000 == 999 {
			buf.Drain()
		}
	}
}

func BenchmarkManager_GetOrCreate_Parallel(b *testing.B) {
	m := NewManager(0, 100)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.GetOrCreate(event.PartitionID{Topic: "events", Partition: int32(i % 8)})
			i++
		}
	})
}
