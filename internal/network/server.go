// Package network serves the table operations over HTTP/JSON on the
// /api/table routes.
package network

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

// TableService is what the transport needs from the core
type TableService interface {
	DefineTable(ctx context.Context, name string, rawFields interface{}) (schema.TableSchema, error)
	AlterTable(ctx context.Context, id int64, rawFields interface{}) (schema.TableSchema, error)
	InsertRow(ctx context.Context, id int64, rawData interface{}) (int64, error)
	ListRows(ctx context.Context, id int64) ([]data.Row, error)
	Table(ctx context.Context, id int64) (schema.TableSchema, error)
	Tables(ctx context.Context) ([]schema.TableSchema, error)
}

// NewHandler routes the API onto svc
func NewHandler(svc TableService) http.Handler {
	h := &handlers{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/table", h.createTable)
	mux.HandleFunc("GET /api/table", h.listTables)
	mux.HandleFunc("GET /api/table/{id}", h.getTable)
	mux.HandleFunc("PUT /api/table/{id}", h.updateTable)
	mux.HandleFunc("POST /api/table/{id}/row", h.createRow)
	mux.HandleFunc("POST /api/table/{id}/rows", h.createRow)
	mux.HandleFunc("GET /api/table/{id}/rows", h.listRows)

	return logRequests(mux)
}

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests for up to five seconds. Request contexts do not inherit ctx's
// cancellation, so a migration running at shutdown finishes.
func Start(ctx context.Context, addr string, svc TableService) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("failed to bind", "addr", addr, "error", err)
		return err
	}
	return Serve(ctx, listener, svc)
}

func Serve(ctx context.Context, listener net.Listener, svc TableService) error {
	srv := &http.Server{
		Handler:           NewHandler(svc),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
