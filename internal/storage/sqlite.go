package storage

import (
	"database/sql"
	"fmt"
	"time"

	"telemon/internal/catalog"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is the ISO-8601 form stored in the timestamp column.
const sqliteTimeLayout = time.RFC3339Nano

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		labels TEXT,
		value REAL NOT NULL,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_name ON metrics(name)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON metrics(timestamp)`,
	`CREATE TABLE IF NOT EXISTS hosts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		last_status TEXT NOT NULL DEFAULT '',
		last_check TEXT NOT NULL DEFAULT '',
		cpu_percent REAL NOT NULL DEFAULT 0,
		memory_percent REAL NOT NULL DEFAULT 0,
		disk_percent REAL NOT NULL DEFAULT 0,
		network_rx REAL NOT NULL DEFAULT 0,
		network_tx REAL NOT NULL DEFAULT 0,
		uptime TEXT NOT NULL DEFAULT '',
		disk_info TEXT NOT NULL DEFAULT ''
	)`,
}

// SQLiteStore is the durable sample store over one flat metrics table.
// Writes and reads operate per call; no retention is implemented, so growth
// is unbounded. This is a known limitation, not an error condition.
// Params: none.
// Returns: durable store instance.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database and applies the schema.
// Params: path database file path.
// Returns: durable store or open/schema error.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer

	for _, stmt := range sqliteSchema {
		if _, execErr := db.Exec(stmt); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", execErr)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
// Params: none.
// Returns: path string.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database handle.
// Params: none.
// Returns: close error.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Write inserts one data point row.
// Params: name metric name; kind series kind (not persisted); labels sample label set stored as canonical key; value sample value; ts sample timestamp.
// Returns: insert error.
func (s *SQLiteStore) Write(name string, _ catalog.Kind, labels []catalog.Label, value float64, ts time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO metrics (name, labels, value, timestamp) VALUES (?, ?, ?, ?)",
		name, catalog.LabelsKey(labels), value, ts.Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert sample %s: %w", name, err)
	}
	return nil
}

// Read returns points for the metric name within [start, end] ordered by
// timestamp. The label filter is ignored by this backend (reference
// behavior, documented); step is a no-op.
// Params: name metric name; start/end inclusive time range; labels filter (ignored); step downsampling hint (no-op).
// Returns: time-ordered data points or query error.
func (s *SQLiteStore) Read(name string, start, end time.Time, _ []catalog.Label, _ time.Duration) ([]DataPoint, error) {
	rows, err := s.db.Query(
		"SELECT timestamp, value FROM metrics WHERE name = ? AND timestamp BETWEEN ? AND ? ORDER BY timestamp",
		name, start.Format(sqliteTimeLayout), end.Format(sqliteTimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query samples %s: %w", name, err)
	}
	defer rows.Close()

	var out []DataPoint
	for rows.Next() {
		var raw string
		var value float64
		if scanErr := rows.Scan(&raw, &value); scanErr != nil {
			return nil, fmt.Errorf("scan sample row: %w", scanErr)
		}
		ts, parseErr := time.Parse(sqliteTimeLayout, raw)
		if parseErr != nil {
			return nil, fmt.Errorf("parse sample timestamp %q: %w", raw, parseErr)
		}
		out = append(out, DataPoint{Timestamp: ts, Value: value})
	}
	return out, rows.Err()
}

// SeriesNames returns the distinct metric names present in the table.
// Params: none.
// Returns: sorted name list or query error.
func (s *SQLiteStore) SeriesNames() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT name FROM metrics ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query series names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if scanErr := rows.Scan(&name); scanErr != nil {
			return nil, fmt.Errorf("scan series name: %w", scanErr)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// UpdateHostStatus upserts the health reading for one known host id.
// Params: hostID external host identity; status best-available cycle reading.
// Returns: upsert error.
func (s *SQLiteStore) UpdateHostStatus(hostID int64, status HostStatus) error {
	_, err := s.db.Exec(`
		INSERT INTO hosts (id, last_status, last_check, cpu_percent, memory_percent, disk_percent, network_rx, network_tx, uptime, disk_info)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_status = excluded.last_status,
			last_check = excluded.last_check,
			cpu_percent = excluded.cpu_percent,
			memory_percent = excluded.memory_percent,
			disk_percent = excluded.disk_percent,
			network_rx = excluded.network_rx,
			network_tx = excluded.network_tx,
			uptime = excluded.uptime,
			disk_info = excluded.disk_info`,
		hostID, status.Status, status.CheckedAt.Format(sqliteTimeLayout),
		status.CPUPercent, status.MemoryPercent, status.DiskPercent,
		status.NetworkRx, status.NetworkTx, status.Uptime, status.DiskInfo,
	)
	if err != nil {
		return fmt.Errorf("update host %d status: %w", hostID, err)
	}
	return nil
}

// HostStatusByID reads back the stored health reading for one host id.
// Params: hostID external host identity.
// Returns: status, found flag, and query error.
func (s *SQLiteStore) HostStatusByID(hostID int64) (HostStatus, bool, error) {
	row := s.db.QueryRow(
		"SELECT last_status, last_check, cpu_percent, memory_percent, disk_percent, network_rx, network_tx, uptime, disk_info FROM hosts WHERE id = ?",
		hostID,
	)

	var status HostStatus
	var checkedAt string
	err := row.Scan(
		&status.Status, &checkedAt, &status.CPUPercent, &status.MemoryPercent,
		&status.DiskPercent, &status.NetworkRx, &status.NetworkTx, &status.Uptime, &status.DiskInfo,
	)
	if err == sql.ErrNoRows {
		return HostStatus{}, false, nil
	}
	if err != nil {
		return HostStatus{}, false, fmt.Errorf("query host %d status: %w", hostID, err)
	}

	if checkedAt != "" {
		ts, parseErr := time.Parse(sqliteTimeLayout, checkedAt)
		if parseErr != nil {
			return HostStatus{}, false, fmt.Errorf("parse host check time %q: %w", checkedAt, parseErr)
		}
		status.CheckedAt = ts
	}
	return status, true, nil
}
