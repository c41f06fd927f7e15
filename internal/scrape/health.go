package scrape

import (
	"strconv"
	"time"

	"telemon/internal/storage"
)

// HostStatusSink receives the per-cycle health reading for known hosts.
// The dashboard layer owns the implementation; the engine only calls it.
// Params: see method.
// Returns: see method.
type HostStatusSink interface {
	UpdateHostStatus(hostID int64, status storage.HostStatus) error
}

// Candidate metric-name spellings tried in priority order when extracting
// host readings from a scraped payload. The first non-empty hit wins.
var (
	cpuCandidates = []string{
		"node_cpu_percent",
		"node_cpu_usage_percent",
		"system_cpu_usage_percent",
		"cpu_usage_percent",
	}
	memoryCandidates = []string{
		"node_memory_percent",
		"node_memory_usage_percent",
		"system_memory_usage_percent",
		"memory_usage_percent",
	}
	diskCandidates = []string{
		"node_disk_percent",
		"node_disk_usage_percent",
		"system_disk_usage_percent",
		"disk_usage_percent",
	}
	networkRxCandidates = []string{
		"node_network_receive_bytes",
		"node_network_receive_bytes_total",
		"system_network_rx_bytes",
	}
	networkTxCandidates = []string{
		"node_network_transmit_bytes",
		"node_network_transmit_bytes_total",
		"system_network_tx_bytes",
	}
	uptimeCandidates = []string{
		"node_boot_time_seconds",
		"system_uptime_seconds",
	}
)

// hostStatusFromFlat builds an up-status reading from flat payload values.
// Every field defaults to zero/empty when no candidate name is present; a
// missing field never fails the cycle.
// Params: flat name-to-value map of the parsed payload; checkedAt cycle time.
// Returns: host status reading.
func hostStatusFromFlat(flat map[string]float64, checkedAt time.Time) storage.HostStatus {
	status := storage.HostStatus{
		Status:        "up",
		CheckedAt:     checkedAt,
		CPUPercent:    firstCandidate(flat, cpuCandidates),
		MemoryPercent: firstCandidate(flat, memoryCandidates),
		DiskPercent:   firstCandidate(flat, diskCandidates),
		NetworkRx:     firstCandidate(flat, networkRxCandidates),
		NetworkTx:     firstCandidate(flat, networkTxCandidates),
	}

	if uptime, ok := lookupCandidate(flat, uptimeCandidates); ok {
		status.Uptime = strconv.FormatFloat(uptime, 'f', -1, 64)
	}
	return status
}

// hostStatusDown builds a down-status reading for a failed cycle.
// Params: checkedAt cycle time.
// Returns: host status reading with zeroed fields.
func hostStatusDown(checkedAt time.Time) storage.HostStatus {
	return storage.HostStatus{Status: "down", CheckedAt: checkedAt}
}

// firstCandidate returns the first non-zero candidate value or zero.
// Params: flat payload values; candidates name spellings in priority order.
// Returns: first non-zero value or 0 when every candidate is absent or zero.
func firstCandidate(flat map[string]float64, candidates []string) float64 {
	value, _ := lookupCandidate(flat, candidates)
	return value
}

// lookupCandidate scans candidate spellings in priority order. A candidate
// that is present but zero falls through to the next spelling.
// Params: flat payload values; candidates name spellings in priority order.
// Returns: first non-zero value and found flag.
func lookupCandidate(flat map[string]float64, candidates []string) (float64, bool) {
	for _, name := range candidates {
		if value, ok := flat[name]; ok && value != 0 {
			return value, true
		}
	}
	return 0, false
}
