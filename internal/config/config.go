package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel       = "info"
	defaultLogFormat      = "line"
	defaultPprofListen    = "127.0.0.1:6060"
	defaultExportListen   = "127.0.0.1:9090"
	defaultExportPath     = "/metrics"
	defaultStorageBackend = "memory"
	defaultRetention      = 24 * time.Hour
	defaultSelfInterval   = 15 * time.Second
	defaultSelfDiskPath   = "/"
	defaultScrapeInterval = 60 * time.Second
	defaultScrapeTimeout  = 10 * time.Second
	defaultScrapePath     = "/metrics"
)

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root service configuration.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Global  GlobalConfig   `toml:"global"`
	Log     LogConfig      `toml:"log"`
	Pprof   PprofConfig    `toml:"pprof"`
	Export  ExportConfig   `toml:"export"`
	Storage StorageConfig  `toml:"storage"`
	Self    SelfConfig     `toml:"self"`
	Scrape  []ScrapeConfig `toml:"scrape"`
}

// GlobalConfig contains shared identity and static labels.
// Params: configured global values.
// Returns: global settings attached to every exported sample.
type GlobalConfig struct {
	Host   string            `toml:"host"`
	Labels map[string]string `toml:"labels"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from TOML.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// PprofConfig defines optional runtime pprof HTTP endpoint.
// Params: enabled flag and listen address in host:port format.
// Returns: pprof runtime settings.
type PprofConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// ExportConfig defines the exposition HTTP endpoint.
// Params: enabled flag, listen address, and serve path.
// Returns: exposition endpoint settings.
type ExportConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
	Path    string `toml:"path"`
}

// StorageConfig selects and tunes the sample store backend.
// Params: backend name, sqlite file path, retention window.
// Returns: storage settings.
type StorageConfig struct {
	Backend   string   `toml:"backend"`
	Path      string   `toml:"path"`
	Retention Duration `toml:"retention"`
}

// SelfConfig controls host self-collection.
// Params: enabled flag, cycle interval, disk usage mount path.
// Returns: self-collection settings.
type SelfConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	DiskPath string   `toml:"disk_path"`
}

// ScrapeConfig defines one scrape job over one or more targets.
// Params: job identity, target addresses, schedule, and label policy.
// Returns: one scrape job runtime config.
type ScrapeConfig struct {
	Job         string            `toml:"job"`
	Targets     []string          `toml:"targets"`
	Path        string            `toml:"path"`
	Interval    Duration          `toml:"interval"`
	Timeout     Duration          `toml:"timeout"`
	HonorLabels bool              `toml:"honor_labels"`
	Labels      map[string]string `toml:"labels"`
	KeepMetrics []string          `toml:"keep_metrics"`
	DropMetrics []string          `toml:"drop_metrics"`
	HostIDs     []int64           `toml:"host_ids"`
}

// Load reads, expands, validates, and returns config from path.
// Params: path to TOML config file or directory with *.toml files.
// Returns: validated config pointer or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readConfigSource reads one TOML file or concatenates *.toml files from directory.
// Params: path to config file or directory.
// Returns: raw TOML bytes or error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates config snippets from one directory.
// Params: path to directory that contains *.toml files.
// Returns: concatenated TOML content or error.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills defaults for optional configuration fields.
// Params: receiver config pointer.
// Returns: error if defaulting needs host lookup and it fails.
func (c *Config) applyDefaults() error {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.Global.Host) == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		c.Global.Host = host
	}

	if c.Pprof.Enabled && strings.TrimSpace(c.Pprof.Listen) == "" {
		c.Pprof.Listen = defaultPprofListen
	}

	if strings.TrimSpace(c.Export.Listen) == "" {
		c.Export.Listen = defaultExportListen
	}
	if strings.TrimSpace(c.Export.Path) == "" {
		c.Export.Path = defaultExportPath
	}

	c.Storage.Backend = lowerOrDefault(c.Storage.Backend, defaultStorageBackend)
	if c.Storage.Retention.Duration <= 0 {
		c.Storage.Retention.Duration = defaultRetention
	}

	if c.Self.Interval.Duration <= 0 {
		c.Self.Interval.Duration = defaultSelfInterval
	}
	if strings.TrimSpace(c.Self.DiskPath) == "" {
		c.Self.DiskPath = defaultSelfDiskPath
	}

	for i := range c.Scrape {
		if c.Scrape[i].Interval.Duration <= 0 {
			c.Scrape[i].Interval.Duration = defaultScrapeInterval
		}
		if c.Scrape[i].Timeout.Duration <= 0 {
			c.Scrape[i].Timeout.Duration = defaultScrapeTimeout
		}
		if strings.TrimSpace(c.Scrape[i].Path) == "" {
			c.Scrape[i].Path = defaultScrapePath
		}
	}

	return nil
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Global.Host) == "" {
		return fmt.Errorf("global.host resolved to empty value")
	}

	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}
	if err := validatePprofConfig("pprof", c.Pprof); err != nil {
		return err
	}
	if err := validateExportConfig("export", c.Export); err != nil {
		return err
	}
	if err := validateStorageConfig("storage", c.Storage); err != nil {
		return err
	}

	if c.Self.Enabled && c.Self.Interval.Duration <= 0 {
		return fmt.Errorf("self.interval must be > 0")
	}

	for idx, job := range c.Scrape {
		path := fmt.Sprintf("scrape[%d]", idx)
		if strings.TrimSpace(job.Job) == "" {
			return fmt.Errorf("%s.job is required", path)
		}
		if len(job.Targets) == 0 {
			return fmt.Errorf("%s.targets must contain at least one address", path)
		}
		for targetIdx, address := range job.Targets {
			if strings.TrimSpace(address) == "" {
				return fmt.Errorf("%s.targets[%d] cannot be empty", path, targetIdx)
			}
		}
		if !strings.HasPrefix(job.Path, "/") {
			return fmt.Errorf("%s.path must start with /", path)
		}
		if job.Interval.Duration <= 0 {
			return fmt.Errorf("%s.interval must be > 0", path)
		}
		if job.Timeout.Duration <= 0 {
			return fmt.Errorf("%s.timeout must be > 0", path)
		}
		if len(job.HostIDs) != 0 && len(job.HostIDs) != len(job.Targets) {
			return fmt.Errorf("%s.host_ids must be empty or match targets length", path)
		}
	}

	return nil
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "info", "warn", "error", "panic", "debug":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// validatePprofConfig validates optional pprof endpoint settings.
// Params: path is config path prefix; cfg pprof section.
// Returns: validation error for invalid listen endpoint.
func validatePprofConfig(path string, cfg PprofConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("%s.listen cannot be empty when enabled", path)
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("%s.listen must be host:port: %w", path, err)
	}
	return nil
}

// validateExportConfig validates exposition endpoint settings.
// Params: path is config path prefix; cfg export section.
// Returns: validation error for invalid listen or path.
func validateExportConfig(path string, cfg ExportConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("%s.listen must be host:port: %w", path, err)
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return fmt.Errorf("%s.path must start with /", path)
	}
	return nil
}

// validateStorageConfig validates sample store backend settings.
// Params: path is config path prefix; cfg storage section.
// Returns: validation error for unknown backend or missing sqlite path.
func validateStorageConfig(path string, cfg StorageConfig) error {
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(cfg.Path) == "" {
			return fmt.Errorf("%s.path is required for the sqlite backend", path)
		}
	default:
		return fmt.Errorf("%s.backend must be one of: memory, sqlite", path)
	}
	if cfg.Retention.Duration <= 0 {
		return fmt.Errorf("%s.retention must be > 0", path)
	}
	return nil
}

// lowerOrDefault returns a trimmed lower-case value or default fallback.
// Params: value to normalize; fallback value when empty.
// Returns: normalized value.
func lowerOrDefault(value, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}
