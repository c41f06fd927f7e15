package app

import (
	"testing"
	"time"

	"telemon/internal/config"
)

// TestBuildTargets_ExpandsJobsAndLabels verifies config-to-target mapping.
// Params: t test context.
// Returns: none.
func TestBuildTargets_ExpandsJobsAndLabels(t *testing.T) {
	cfg := testConfig("host1", 0)
	cfg.Global.Labels = map[string]string{"dc": "dc1"}
	cfg.Scrape = []config.ScrapeConfig{
		{
			Job:      "agents",
			Targets:  []string{"10.0.0.5:9100", "10.0.0.6:9100"},
			Path:     "/metrics",
			Interval: config.Duration{Duration: 30 * time.Second},
			Timeout:  config.Duration{Duration: 5 * time.Second},
			Labels:   map[string]string{"env": "prod"},
			HostIDs:  []int64{7, 8},
		},
	}

	targets := buildTargets(cfg)
	if len(targets) != 2 {
		t.Fatalf("targets=%d, want=2", len(targets))
	}

	first := targets[0]
	if first.Address != "10.0.0.5:9100" || first.HostID != 7 {
		t.Fatalf("unexpected first target: %+v", first)
	}
	if first.Labels["dc"] != "dc1" || first.Labels["env"] != "prod" || first.Labels["job"] != "agents" {
		t.Fatalf("unexpected labels: %v", first.Labels)
	}
	if first.Interval != 30*time.Second || first.Timeout != 5*time.Second {
		t.Fatalf("unexpected schedule: %+v", first)
	}
	if targets[1].HostID != 8 {
		t.Fatalf("unexpected second host id: %d", targets[1].HostID)
	}
}

// TestBuildTargets_NoHostIDsLeavesZero verifies host id default.
// Params: t test context.
// Returns: none.
func TestBuildTargets_NoHostIDsLeavesZero(t *testing.T) {
	cfg := testConfig("host1", 1)

	targets := buildTargets(cfg)
	if len(targets) != 1 {
		t.Fatalf("targets=%d, want=1", len(targets))
	}
	if targets[0].HostID != 0 {
		t.Fatalf("expected zero host id, got %d", targets[0].HostID)
	}
}

// TestOpenStore_SelectsBackend verifies backend selection.
// Params: t test context.
// Returns: none.
func TestOpenStore_SelectsBackend(t *testing.T) {
	memory, err := openStore(config.StorageConfig{Backend: "memory", Retention: config.Duration{Duration: time.Hour}})
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer memory.Close()

	sqlite, err := openStore(config.StorageConfig{
		Backend:   "sqlite",
		Path:      t.TempDir() + "/metrics.db",
		Retention: config.Duration{Duration: time.Hour},
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer sqlite.Close()
}
