package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	httpShutdownTimeout = 3 * time.Second
	httpReadHeaderTO    = 2 * time.Second
)

// startHTTPEndpoint binds listen, serves handler, and wires graceful shutdown
// to both ctx and the returned stop function.
// Params: ctx controls lifecycle; name endpoint label for logs; listen host:port; handler HTTP handler; logger reports runtime events.
// Returns: idempotent stop function and startup error.
func startHTTPEndpoint(
	ctx context.Context,
	name string,
	listen string,
	handler http.Handler,
	logger *slog.Logger,
) (func(), error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", listen, err)
	}

	server := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: httpReadHeaderTO,
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn(name+" shutdown error", slog.String("error", err.Error()))
			}
		})
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(name+" server failed", slog.String("addr", listen), slog.String("error", err.Error()))
		}
	}()

	logger.Info(name+" server started", slog.String("addr", listen))
	return stop, nil
}
