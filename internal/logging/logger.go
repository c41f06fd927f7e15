// Package logging builds the process slog logger from config sinks.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"telemon/internal/config"
)

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

var (
	levelPattern = regexp.MustCompile(`level=([A-Z]+)`)
	// Alternation order fixes precedence: quoted string, then IPv4, then number.
	tokenPattern = regexp.MustCompile(`"[^"]*"|\b(?:\d{1,3}\.){3}\d{1,3}\b|\b\d+(?:\.\d+)?\b`)
	ipPattern    = regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}$`)
)

// colorLineWriter colorizes slog text lines for terminal output.
// Lines without a recognized level token pass through unchanged.
// Params: dst receives rendered bytes.
// Returns: io.Writer implementation.
type colorLineWriter struct {
	dst io.Writer
}

// Write renders one log line with level base color and token highlights.
// Params: p raw text-handler line.
// Returns: consumed length of p and destination write error.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	line := string(p)
	trailing := ""
	if strings.HasSuffix(line, "\n") {
		line = strings.TrimSuffix(line, "\n")
		trailing = "\n"
	}

	base, ok := levelBaseColor(line)
	if !ok {
		if _, err := w.dst.Write(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	colorized := tokenPattern.ReplaceAllStringFunc(line, func(token string) string {
		return tokenColor(token) + token + ansiReset + base
	})

	if _, err := io.WriteString(w.dst, base+colorized+ansiReset+trailing); err != nil {
		return 0, err
	}
	return len(p), nil
}

// levelBaseColor picks the base line color from the level token.
// Params: line rendered text line.
// Returns: ANSI color and false when no known level token is present.
func levelBaseColor(line string) (string, bool) {
	groups := levelPattern.FindStringSubmatch(line)
	if groups == nil {
		return "", false
	}
	switch groups[1] {
	case "DEBUG":
		return ansiMagenta, true
	case "INFO":
		return ansiBlue, true
	case "WARN":
		return ansiYellow, true
	case "ERROR":
		return ansiRed, true
	default:
		return "", false
	}
}

// tokenColor picks the highlight color for one matched token.
// Params: token matched text.
// Returns: ANSI color.
func tokenColor(token string) string {
	if strings.HasPrefix(token, `"`) {
		return ansiGreen
	}
	if ipPattern.MatchString(token) {
		return ansiCyan
	}
	return ansiYellow
}

// multiHandler fans records out to every enabled sink handler.
// Params: none.
// Returns: slog.Handler implementation.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled reports whether any sink accepts the level.
// Params: ctx request context; level record level.
// Returns: true when at least one sink is enabled.
func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range m.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards the record to every sink that accepts its level.
// Params: ctx request context; record log record.
// Returns: first sink error.
func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range m.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs clones every sink handler with attrs.
// Params: attrs attached attributes.
// Returns: cloned handler.
func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cloned := make([]slog.Handler, len(m.handlers))
	for i, handler := range m.handlers {
		cloned[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: cloned}
}

// WithGroup clones every sink handler with the group name.
// Params: name group name.
// Returns: cloned handler.
func (m *multiHandler) WithGroup(name string) slog.Handler {
	cloned := make([]slog.Handler, len(m.handlers))
	for i, handler := range m.handlers {
		cloned[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: cloned}
}

// New builds the process logger from validated log config.
// Params: cfg console/file sink settings.
// Returns: logger, cleanup closing file sinks, or setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var handlers []slog.Handler
	cleanup := func() {}

	if cfg.Console.Enabled {
		handlers = append(handlers, sinkHandler(consoleWriter(cfg.Console.Format), cfg.Console))
	}

	if cfg.File.Enabled {
		file, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", cfg.File.Path, err)
		}
		handlers = append(handlers, sinkHandler(file, cfg.File))
		cleanup = func() { file.Close() }
	}

	if len(handlers) == 0 {
		return nil, nil, fmt.Errorf("no logging sink is enabled")
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), cleanup, nil
	}
	return slog.New(&multiHandler{handlers: handlers}), cleanup, nil
}

// consoleWriter wraps stdout with the line colorizer for line format.
// Params: format sink format name.
// Returns: console sink writer.
func consoleWriter(format string) io.Writer {
	if format == "line" {
		return &colorLineWriter{dst: os.Stdout}
	}
	return os.Stdout
}

// sinkHandler builds one slog handler for a sink.
// Params: dst sink writer; sink validated sink config.
// Returns: text or JSON handler at the sink level.
func sinkHandler(dst io.Writer, sink config.LogSinkConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(sink.Level)}
	if sink.Format == "json" {
		return slog.NewJSONHandler(dst, opts)
	}
	return slog.NewTextHandler(dst, opts)
}

// parseLevel maps a config level name to a slog level.
// Params: level validated lower-case level name.
// Returns: slog level; "panic" maps to error.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error", "panic":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
