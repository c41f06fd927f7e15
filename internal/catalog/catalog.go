package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownMetric reports a mutation on a name that was never registered.
var ErrUnknownMetric = errors.New("unknown metric")

// Kind identifies the mutation semantics of a metric series.
// Params: none.
// Returns: enum value for counter/gauge/histogram/summary series.
type Kind uint8

const (
	// KindCounter is a monotonic-additive series mutated via Add.
	KindCounter Kind = iota
	// KindGauge is an overwrite series mutated via Set.
	KindGauge
	// KindHistogram records observations; stored as plain overwrites.
	KindHistogram
	// KindSummary records observations; stored as plain overwrites.
	KindSummary
)

// String returns the exposition-format type name for the kind.
// Params: none.
// Returns: lower-case type token.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	case KindSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// valid reports whether the kind is one of the four declared variants.
// Params: none.
// Returns: true for known kinds.
func (k Kind) valid() bool {
	return k <= KindSummary
}

// Label is one immutable name/value pair attached to a sample.
// Params: none.
// Returns: label pair value.
type Label struct {
	Name  string
	Value string
}

// LabelsKey builds the canonical key for a label set.
// Params: labels in any order.
// Returns: sorted `name=value` pairs joined with commas; two label sets with
// the same pairs in different order map to the same key.
func LabelsKey(labels []Label) string {
	if len(labels) == 0 {
		return ""
	}

	sorted := make([]Label, len(labels))
	copy(sorted, labels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var builder strings.Builder
	for idx, label := range sorted {
		if idx > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(label.Name)
		builder.WriteByte('=')
		builder.WriteString(label.Value)
	}
	return builder.String()
}

// Sample is the latest value of one (name, label set) pair.
// Params: none.
// Returns: point-in-time sample entity.
type Sample struct {
	Name      string
	Kind      Kind
	Labels    []Label
	Value     float64
	Timestamp time.Time
}

// Series describes one registered metric name.
// Params: none.
// Returns: immutable series descriptor; kind and help are fixed at first
// registration.
type Series struct {
	Name   string
	Kind   Kind
	Help   string
	Labels []Label
}

// Catalog is an in-memory registry of named, typed, labeled samples.
// All operations are serialized by one internal mutex; call frequency is
// human-scale, so the coarse lock is deliberate.
// Params: none.
// Returns: catalog instance.
type Catalog struct {
	mu      sync.Mutex
	series  map[string]*Series
	samples map[string]map[string]*Sample
	now     func() time.Time
}

// New creates an empty catalog.
// Params: none.
// Returns: catalog ready for registration.
func New() *Catalog {
	return &Catalog{
		series:  make(map[string]*Series),
		samples: make(map[string]map[string]*Sample),
		now:     time.Now,
	}
}

// Register declares a metric series, fixing kind and help on first call.
// Later registrations with the same name return the existing descriptor
// unchanged even when kind/help differ.
// Params: name metric name; kind series kind; help description text; labels declared label names.
// Returns: series descriptor or error for an invalid kind.
func (c *Catalog) Register(name string, kind Kind, help string, labels []Label) (*Series, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("metric name is required")
	}
	if !kind.valid() {
		return nil, fmt.Errorf("register %s: invalid kind %d", name, kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.series[name]; ok {
		return existing, nil
	}

	created := &Series{Name: name, Kind: kind, Help: help, Labels: labels}
	c.series[name] = created
	return created, nil
}

// Set upserts the sample at the label-set key of a registered metric.
// Params: name registered metric name; value new sample value; labels sample label set.
// Returns: ErrUnknownMetric-wrapped error when name was never registered.
func (c *Catalog) Set(name string, value float64, labels []Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(name, value, labels)
}

// Add mutates the sample at the label-set key by delta, or behaves as Set
// when no sample exists there yet.
// Params: name registered metric name; delta value increment; labels sample label set.
// Returns: ErrUnknownMetric-wrapped error when name was never registered.
func (c *Catalog) Add(name string, delta float64, labels []Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.series[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}

	key := LabelsKey(labels)
	if existing, exists := c.samples[name][key]; exists {
		existing.Value += delta
		existing.Timestamp = c.now()
		return nil
	}
	return c.setLocked(name, delta, labels)
}

// Observe records one observation on a histogram/summary series.
// Observations are stored as plain overwrites; no bucket accumulation.
// Params: name registered metric name; value observed value; labels sample label set.
// Returns: ErrUnknownMetric-wrapped error when name was never registered.
func (c *Catalog) Observe(name string, value float64, labels []Label) error {
	return c.Set(name, value, labels)
}

// Get looks up the current sample at a label-set key.
// Params: name metric name; labels sample label set.
// Returns: sample copy and true, or zero sample and false; never errors.
func (c *Catalog) Get(name string, labels []Label) (Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample, ok := c.samples[name][LabelsKey(labels)]
	if !ok {
		return Sample{}, false
	}
	return *sample, true
}

// Samples returns a snapshot of every current sample.
// Params: none.
// Returns: sample slice reflecting one consistent point in time; iteration
// order is unspecified.
func (c *Catalog) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Sample, 0, len(c.samples))
	for _, byKey := range c.samples {
		for _, sample := range byKey {
			out = append(out, *sample)
		}
	}
	return out
}

// setLocked upserts one sample under the catalog lock.
// Params: name registered metric name; value sample value; labels sample label set.
// Returns: ErrUnknownMetric-wrapped error when name was never registered.
func (c *Catalog) setLocked(name string, value float64, labels []Label) error {
	series, ok := c.series[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}

	byKey := c.samples[name]
	if byKey == nil {
		byKey = make(map[string]*Sample)
		c.samples[name] = byKey
	}

	key := LabelsKey(labels)
	if existing, exists := byKey[key]; exists {
		existing.Value = value
		existing.Timestamp = c.now()
		return nil
	}

	cloned := make([]Label, len(labels))
	copy(cloned, labels)
	byKey[key] = &Sample{
		Name:      name,
		Kind:      series.Kind,
		Labels:    cloned,
		Value:     value,
		Timestamp: c.now(),
	}
	return nil
}
