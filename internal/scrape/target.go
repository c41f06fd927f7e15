// Package scrape polls remote exposition endpoints and feeds parsed samples
// into the metric catalog and sample store while tracking target health.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"telemon/internal/match"
)

// Target describes one remote endpoint polled on an interval.
// Params: none.
// Returns: scrape target entity.
type Target struct {
	Job         string
	Address     string
	Path        string
	Interval    time.Duration
	Timeout     time.Duration
	Labels      map[string]string
	HonorLabels bool
	HostID      int64
	KeepMetrics []string
	DropMetrics []string
}

// URL resolves the request URL for the target.
// An absolute address is used as-is with the path appended only when it is
// not already a suffix; otherwise the address is treated as host:port.
// Params: none.
// Returns: resolved GET URL.
func (t Target) URL() string {
	if strings.HasPrefix(t.Address, "http://") || strings.HasPrefix(t.Address, "https://") {
		if strings.HasSuffix(t.Address, t.Path) {
			return t.Address
		}
		return strings.TrimRight(t.Address, "/") + t.Path
	}
	return "http://" + t.Address + t.Path
}

// OutcomeKind classifies one fetch attempt into exactly one bucket.
// Params: none.
// Returns: enum value for fetch classification.
type OutcomeKind uint8

const (
	// OutcomeSuccess is an HTTP 200 response.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeTimeout is a deadline exceeded before the response arrived.
	OutcomeTimeout
	// OutcomeConnRefused is a refused TCP connection.
	OutcomeConnRefused
	// OutcomeHTTPError is a non-200 HTTP status.
	OutcomeHTTPError
	// OutcomeOther is any remaining transport or protocol failure.
	OutcomeOther
)

// String returns the wire label used when recording the outcome.
// Params: none.
// Returns: outcome label string.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeConnRefused:
		return "connection_refused"
	case OutcomeHTTPError:
		return "http_error"
	default:
		return "other"
	}
}

// Result captures one scrape cycle of a target.
// Params: none.
// Returns: scrape cycle result entity.
type Result struct {
	Outcome      OutcomeKind
	StatusCode   int
	Latency      time.Duration
	Error        string
	SamplesCount int
	Flat         map[string]float64
}

// Success reports whether the cycle succeeded.
// Params: none.
// Returns: true when the fetch returned HTTP 200.
func (r Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// cancelOnCloseBody releases the per-request context when the body closes.
// Params: none.
// Returns: wrapped response body.
type cancelOnCloseBody struct {
	body   io.ReadCloser
	cancel context.CancelFunc
}

// Read proxies to the wrapped body.
// Params: p read buffer.
// Returns: read count and error.
func (b *cancelOnCloseBody) Read(p []byte) (int, error) {
	return b.body.Read(p)
}

// Close closes the wrapped body and cancels the request context.
// Params: none.
// Returns: close error.
func (b *cancelOnCloseBody) Close() error {
	err := b.body.Close()
	b.cancel()
	return err
}

// classifyFetchError maps a transport error to its outcome bucket.
// Params: err non-nil fetch error.
// Returns: outcome kind and trimmed error message.
func classifyFetchError(err error) (OutcomeKind, string) {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return OutcomeTimeout, "timeout"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return OutcomeConnRefused, "connection_refused"
	}

	message := err.Error()
	if len(message) > 100 {
		message = message[:100]
	}
	return OutcomeOther, message
}

// isTimeout reports whether the error chain carries a network timeout.
// Params: err fetch error.
// Returns: true on net.Error timeout.
func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// compileMetricMasks compiles keep/drop wildcard masks for one target.
// Params: keep patterns that a metric name must match (empty keeps all); drop patterns that remove matches.
// Returns: compiled mask pair.
func compileMetricMasks(keep, drop []string) (keepMasks, dropMasks []match.WildcardPattern) {
	for _, pattern := range keep {
		if compiled, ok := match.CompileWildcard(pattern); ok {
			keepMasks = append(keepMasks, compiled)
		}
	}
	for _, pattern := range drop {
		if compiled, ok := match.CompileWildcard(pattern); ok {
			dropMasks = append(dropMasks, compiled)
		}
	}
	return keepMasks, dropMasks
}

// metricAllowed applies compiled keep/drop masks to a metric name.
// Params: name parsed metric name; keep/drop compiled masks.
// Returns: true when the metric should be recorded.
func metricAllowed(name string, keep, drop []match.WildcardPattern) bool {
	if len(keep) > 0 {
		allowed := false
		for _, mask := range keep {
			if mask.Match(name) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	for _, mask := range drop {
		if mask.Match(name) {
			return false
		}
	}
	return true
}

// validateTarget checks required target fields.
// Params: target candidate target.
// Returns: validation error or nil.
func validateTarget(target Target) error {
	if strings.TrimSpace(target.Job) == "" {
		return fmt.Errorf("target job is required")
	}
	if strings.TrimSpace(target.Address) == "" {
		return fmt.Errorf("target address is required")
	}
	if target.Interval <= 0 {
		return fmt.Errorf("target interval must be > 0")
	}
	if target.Timeout <= 0 {
		return fmt.Errorf("target timeout must be > 0")
	}
	return nil
}

// fetch issues one bounded GET against the target and classifies the outcome.
// Params: ctx lifecycle context; client shared HTTP client; target scrape target.
// Returns: response (nil unless success/http-error), outcome kind, status, latency, message.
func fetch(ctx context.Context, client *http.Client, target Target) (*http.Response, OutcomeKind, int, time.Duration, string) {
	reqCtx, cancel := context.WithTimeout(ctx, target.Timeout)
	started := time.Now()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.URL(), nil)
	if err != nil {
		cancel()
		return nil, OutcomeOther, 0, 0, fmt.Sprintf("build request: %v", err)
	}

	resp, err := client.Do(req)
	latency := time.Since(started)
	if err != nil {
		cancel()
		kind, message := classifyFetchError(err)
		return nil, kind, 0, latency, message
	}

	// The caller owns the body; cancel only after it is drained.
	resp.Body = &cancelOnCloseBody{body: resp.Body, cancel: cancel}

	if resp.StatusCode != http.StatusOK {
		return resp, OutcomeHTTPError, resp.StatusCode, latency, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return resp, OutcomeSuccess, resp.StatusCode, latency, ""
}
