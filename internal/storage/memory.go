package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"telemon/internal/catalog"
)

const seriesKeySeparator = ":"

// MemoryStore keeps time series in process memory with a retention window.
// Eviction is write-triggered and per-key: a series that stops receiving
// writes retains aged points until its next write. One coarse mutex
// serializes all operations.
// Params: none.
// Returns: volatile store instance.
type MemoryStore struct {
	mu        sync.Mutex
	retention time.Duration
	data      map[string][]DataPoint
	now       func() time.Time
}

// NewMemoryStore creates a volatile store with the given retention window.
// Params: retention eviction window for write-triggered cleanup.
// Returns: memory store instance.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		retention: retention,
		data:      make(map[string][]DataPoint),
		now:       time.Now,
	}
}

// Write appends one data point and evicts aged points for that key only.
// Params: name metric name; kind series kind (unused by this backend); labels sample label set; value sample value; ts sample timestamp.
// Returns: nil; the memory backend cannot fail a write.
func (s *MemoryStore) Write(name string, _ catalog.Kind, labels []catalog.Label, value float64, ts time.Time) error {
	key := name + seriesKeySeparator + catalog.LabelsKey(labels)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append(s.data[key], DataPoint{Timestamp: ts, Value: value})
	s.evictLocked(key)
	return nil
}

// evictLocked drops points older than the retention window for one key.
// Params: key series key to clean.
// Returns: none.
func (s *MemoryStore) evictLocked(key string) {
	cutoff := s.now().Add(-s.retention)
	points := s.data[key]

	kept := points[:0]
	for _, point := range points {
		if point.Timestamp.After(cutoff) {
			kept = append(kept, point)
		}
	}
	s.data[key] = kept
}

// Read returns points for the metric name within [start, end] sorted by time.
// A non-empty label filter yields an empty result: label filtering is not
// implemented in this backend, preserved as documented behavior. step is a
// no-op.
// Params: name metric name; start/end inclusive time range; labels filter (unimplemented); step downsampling hint (no-op).
// Returns: time-ordered data points.
func (s *MemoryStore) Read(name string, start, end time.Time, labels []catalog.Label, _ time.Duration) ([]DataPoint, error) {
	if len(labels) > 0 {
		return nil, nil
	}

	prefix := name + seriesKeySeparator
	var out []DataPoint

	s.mu.Lock()
	for key, points := range s.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		for _, point := range points {
			if !point.Timestamp.Before(start) && !point.Timestamp.After(end) {
				out = append(out, point)
			}
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// SeriesNames returns the distinct metric names present in the store.
// Params: none.
// Returns: sorted unique name list.
func (s *MemoryStore) SeriesNames() ([]string, error) {
	s.mu.Lock()
	seen := make(map[string]struct{}, len(s.data))
	for key := range s.data {
		if idx := strings.Index(key, seriesKeySeparator); idx >= 0 {
			seen[key[:idx]] = struct{}{}
		}
	}
	s.mu.Unlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases nothing for the memory backend.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
