package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// ExportText renders the catalog in text exposition format.
// Metric names are sorted lexicographically; each name gets one `# HELP`
// line, one `# TYPE` line, then one line per sample. The `{}` block is
// omitted when a sample's label set is empty.
// Params: none.
// Returns: deterministic exposition text.
func (c *Catalog) ExportText() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	for _, name := range names {
		series := c.series[name]
		builder.WriteString("# HELP ")
		builder.WriteString(name)
		builder.WriteByte(' ')
		builder.WriteString(series.Help)
		builder.WriteByte('\n')
		builder.WriteString("# TYPE ")
		builder.WriteString(name)
		builder.WriteByte(' ')
		builder.WriteString(series.Kind.String())
		builder.WriteByte('\n')

		keys := make([]string, 0, len(c.samples[name]))
		for key := range c.samples[name] {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			sample := c.samples[name][key]
			builder.WriteString(name)
			writeLabelBlock(&builder, sample.Labels)
			builder.WriteByte(' ')
			builder.WriteString(strconv.FormatFloat(sample.Value, 'g', -1, 64))
			builder.WriteByte('\n')
		}
	}

	return builder.String()
}

// writeLabelBlock appends the `{k="v",...}` block for a non-empty label set.
// Params: builder output target; labels sample label set.
// Returns: none.
func writeLabelBlock(builder *strings.Builder, labels []Label) {
	if len(labels) == 0 {
		return
	}

	sorted := make([]Label, len(labels))
	copy(sorted, labels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	builder.WriteByte('{')
	for idx, label := range sorted {
		if idx > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(label.Name)
		builder.WriteString(`="`)
		builder.WriteString(label.Value)
		builder.WriteByte('"')
	}
	builder.WriteByte('}')
}
