package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"telemon/internal/catalog"
)

// TestExpositionHandler_ServesCatalogText verifies the GET exposition path.
// Params: t test context.
// Returns: none.
func TestExpositionHandler_ServesCatalogText(t *testing.T) {
	cat := catalog.New()
	if _, err := cat.Register("requests_total", catalog.KindCounter, "Total requests", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := cat.Add("requests_total", 3, nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	server := httptest.NewServer(expositionHandler(cat, "/metrics"))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want=200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != expositionContentType {
		t.Fatalf("content type=%q", got)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "# TYPE requests_total counter") {
		t.Fatalf("missing type line in:\n%s", text)
	}
	if !strings.Contains(text, "requests_total 3") {
		t.Fatalf("missing sample line in:\n%s", text)
	}
}

// TestExpositionHandler_RejectsNonGet verifies method restriction.
// Params: t test context.
// Returns: none.
func TestExpositionHandler_RejectsNonGet(t *testing.T) {
	server := httptest.NewServer(expositionHandler(catalog.New(), "/metrics"))
	defer server.Close()

	resp, err := http.Post(server.URL+"/metrics", "text/plain", strings.NewReader(""))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want=405", resp.StatusCode)
	}
}
