package store

import (
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

// BenchmarkRecorderWithHistoryReads mirrors a running advisor: one writer
// logging results and snapshots while the history view polls recent rows.
func BenchmarkRecorderWithHistoryReads(b *testing.B) {
	s, err := Open(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := s.RecentAdvice(20); err != nil {
					b.Errorf("RecentAdvice() error: %v", err)
					return
				}
			}
		}()
	}

	writes := make([]time.Duration, 0, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := time.Now()
		if err := s.StoreSnapshot("MAP", "digest", `{"floor":3}`); err != nil {
			b.Fatalf("StoreSnapshot() error: %v", err)
		}
		if err := s.RecordAdvice(&AdviceEntry{
			RequestID: "bench",
			Context:   "MAP",
			Label:     "MAP_PATH",
			Summary:   "take the elite",
			Latency:   900 * time.Millisecond,
		}); err != nil {
			b.Fatalf("RecordAdvice() error: %v", err)
		}
		writes = append(writes, time.Since(start))
	}
	b.StopTimer()
	close(stop)
	readers.Wait()

	if len(writes) == 0 {
		return
	}
	slices.Sort(writes)
	b.ReportMetric(float64(writes[len(writes)/2].Microseconds())/1e3, "p50_ms")
	b.ReportMetric(float64(writes[len(writes)*99/100].Microseconds())/1e3, "p99_ms")
}
