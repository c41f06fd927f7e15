package scrape

import (
	"sort"
	"strings"
	"testing"

	"telemon/internal/catalog"
)

func TestParsePayloadSkipsCommentsAndBlanks(t *testing.T) {
	payload := strings.Join([]string{
		"# HELP up Target availability",
		"# TYPE up gauge",
		"",
		"up 1",
		"   ",
		`cpu_percent{core="0"} 12.5`,
	}, "\n")

	lines, err := ParsePayload(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 parsed lines, got %d", len(lines))
	}
	if lines[0].Name != "up" || lines[0].Value != 1 {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Name != "cpu_percent" || lines[1].Value != 12.5 {
		t.Errorf("unexpected second line: %+v", lines[1])
	}
	if len(lines[1].Labels) != 1 || lines[1].Labels[0].Name != "core" || lines[1].Labels[0].Value != "0" {
		t.Errorf("unexpected labels on second line: %+v", lines[1].Labels)
	}
}

func TestParsePayloadMalformedLineSkippedAlone(t *testing.T) {
	payload := strings.Join([]string{
		"requests_total 3",
		"broken_line_without_value",
		"nan_value NaN",
		`open_brace{core="0" 1`,
		"latency_seconds 0.25",
	}, "\n")

	lines, err := ParsePayload(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 valid lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Name != "requests_total" || lines[1].Name != "latency_seconds" {
		t.Errorf("unexpected surviving lines: %+v", lines)
	}
}

func TestParsePayloadIgnoresTrailingTimestamp(t *testing.T) {
	lines, err := ParsePayload(strings.NewReader("heap_bytes 1024 1712345678901\n"))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if len(lines) != 1 || lines[0].Value != 1024 {
		t.Fatalf("unexpected parsed lines: %+v", lines)
	}
}

func TestParsePayloadRoundTripsExport(t *testing.T) {
	cat := catalog.New()
	labels := []catalog.Label{{Name: "method", Value: "GET"}}
	if _, err := cat.Register("requests_total", catalog.KindCounter, "Total requests", labels); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := cat.Add("requests_total", 3, labels); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := cat.Register("temperature", catalog.KindGauge, "Temperature", nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := cat.Set("temperature", 21.5, nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	lines, err := ParsePayload(strings.NewReader(cat.ExportText()))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines from export, got %d", len(lines))
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	if lines[0].Name != "requests_total" || lines[0].Value != 3 {
		t.Errorf("unexpected counter line: %+v", lines[0])
	}
	if len(lines[0].Labels) != 1 || lines[0].Labels[0].Value != "GET" {
		t.Errorf("unexpected counter labels: %+v", lines[0].Labels)
	}
	if lines[1].Name != "temperature" || lines[1].Value != 21.5 {
		t.Errorf("unexpected gauge line: %+v", lines[1])
	}
}

func TestMergeLabels(t *testing.T) {
	static := map[string]string{"job": "agents"}
	parsed := []catalog.Label{{Name: "core", Value: "0"}}

	merged := mergeLabels(static, parsed, false)
	if len(merged) != 2 {
		t.Fatalf("expected statics plus parsed, got %+v", merged)
	}
	if key := catalog.LabelsKey(merged); key != "core=0,job=agents" {
		t.Errorf("unexpected merged key %q", key)
	}

	honored := mergeLabels(static, parsed, true)
	if len(honored) != 1 || honored[0].Name != "core" {
		t.Errorf("honor_labels should keep parsed labels only, got %+v", honored)
	}
}
