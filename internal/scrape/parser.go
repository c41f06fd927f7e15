package scrape

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"telemon/internal/catalog"
)

// MaxPayloadBytes is the maximum accepted size for one exposition payload.
const MaxPayloadBytes = 16 << 20

// ParsedLine is one successfully parsed exposition sample line.
// Params: none.
// Returns: parsed line entity; Labels carries only the labels embedded in
// the line, before merging with target statics.
type ParsedLine struct {
	Name   string
	Value  float64
	Labels []catalog.Label
}

// ParsePayload parses exposition text into sample lines, one per valid line.
// Blank and comment lines are skipped; a malformed line is skipped alone and
// never discards the rest of the payload.
// Params: r exposition text source.
// Returns: parsed lines or read error.
func ParsePayload(r io.Reader) ([]ParsedLine, error) {
	if r == nil {
		return nil, fmt.Errorf("nil reader")
	}

	var out []ParsedLine
	scanner := bufio.NewScanner(io.LimitReader(r, MaxPayloadBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), MaxPayloadBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parsed, err := parseSampleLine(line)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan exposition payload: %w", err)
	}

	return out, nil
}

// parseSampleLine parses one `name value` or `name{k="v",...} value` line.
// Params: line one non-blank, non-comment line.
// Returns: parsed line or per-line error.
func parseSampleLine(line string) (ParsedLine, error) {
	if !strings.Contains(line, "{") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return ParsedLine{}, fmt.Errorf("missing sample value")
		}
		value, err := parseSampleValue(fields[1])
		if err != nil {
			return ParsedLine{}, err
		}
		return ParsedLine{Name: fields[0], Value: value}, nil
	}

	namePart, rest, _ := strings.Cut(line, "{")
	labelsPart, valuePart, found := cutLast(rest, "}")
	if !found {
		return ParsedLine{}, fmt.Errorf("unbalanced label braces")
	}

	name := strings.TrimSpace(namePart)
	if name == "" {
		return ParsedLine{}, fmt.Errorf("empty metric name")
	}
	value, err := parseSampleValue(strings.TrimSpace(valuePart))
	if err != nil {
		return ParsedLine{}, err
	}

	return ParsedLine{
		Name:   name,
		Value:  value,
		Labels: parseLabelBlock(labelsPart),
	}, nil
}

// parseLabelBlock parses comma-separated `key="value"` pairs.
// Entries without '=' are skipped.
// Params: block label block content without braces.
// Returns: parsed label list.
func parseLabelBlock(block string) []catalog.Label {
	var labels []catalog.Label
	for _, pair := range strings.Split(block, ",") {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		labels = append(labels, catalog.Label{
			Name:  strings.TrimSpace(name),
			Value: strings.Trim(strings.TrimSpace(value), `"`),
		})
	}
	return labels
}

// parseSampleValue parses one numeric sample token.
// Params: token trimmed value text; a trailing exposition timestamp after
// whitespace is ignored.
// Returns: finite float value or per-line error.
func parseSampleValue(token string) (float64, error) {
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return 0, fmt.Errorf("missing sample value")
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sample value %q", fields[0])
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("sample value must be finite")
	}
	return value, nil
}

// cutLast splits s around the last occurrence of sep.
// Params: s input text; sep separator token.
// Returns: before/after segments and found flag.
func cutLast(s, sep string) (before, after string, found bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

// mergeLabels builds the effective label set for one parsed line.
// With honor_labels the parsed labels win and statics are dropped entirely;
// otherwise statics and parsed labels are both kept.
// Params: static target labels; parsed line labels; honorLabels policy flag.
// Returns: merged label list.
func mergeLabels(static map[string]string, parsed []catalog.Label, honorLabels bool) []catalog.Label {
	if honorLabels {
		return parsed
	}

	merged := make([]catalog.Label, 0, len(static)+len(parsed))
	for name, value := range static {
		merged = append(merged, catalog.Label{Name: name, Value: value})
	}
	merged = append(merged, parsed...)
	return merged
}
