package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"telemon/internal/catalog"
	"telemon/internal/config"
)

const expositionContentType = "text/plain; version=0.0.4; charset=utf-8"

// expositionHandler serves the catalog text snapshot on GET.
// Params: cat catalog instance; path serve path.
// Returns: HTTP handler.
func expositionHandler(cat *catalog.Catalog, path string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", expositionContentType)
		io.WriteString(w, cat.ExportText())
	})
	return mux
}

// startExportServer starts the optional exposition HTTP endpoint.
// Params: ctx controls lifecycle; cfg provides enabled/listen/path; cat served catalog; logger reports runtime events.
// Returns: stop function (idempotent) and startup error.
func startExportServer(
	ctx context.Context,
	cfg config.ExportConfig,
	cat *catalog.Catalog,
	logger *slog.Logger,
) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	return startHTTPEndpoint(ctx, "export", cfg.Listen, expositionHandler(cat, cfg.Path), logger)
}
