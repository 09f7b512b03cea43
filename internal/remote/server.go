package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/service"
)

// maxBody bounds request bodies.
const maxBody = 32 << 20

// shutdownTimeout bounds graceful shutdown in Serve.
const shutdownTimeout = 5 * time.Second

// handlers adapts service methods to HTTP.
type handlers struct {
	svc    *service.Service
	logger *slog.Logger
}

// NewHandler returns the HTTP handler serving svc.
func NewHandler(svc *service.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, logger: logger}

	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.AllowContentType("application/json"),
	)
	r.Post(PathListDatabases, handle(h, h.listDatabases))
	r.Post(PathGet, handle(h, h.get))
	r.Post(PathPut, handle(h, h.put))
	r.Post(PathDelete, handle(h, h.delete))
	r.Post(PathCommit, handle(h, h.commit))
	r.Post(PathAbort, handle(h, h.abort))
	r.Post(PathStats, handle(h, h.stats))
	return r
}

// handle decodes Req, calls fn and encodes its response or error.
func handle[Req, Resp any](h *handlers, fn func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, r, apperr.Wrap(apperr.CodeInvalidArgument, "decode request", err))
			return
		}
		resp, err := fn(r.Context(), req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *handlers) listDatabases(ctx context.Context, _ ListDatabasesRequest) (ListDatabasesResponse, error) {
	names, err := h.svc.ListDatabases(ctx)
	if names == nil {
		names = []string{}
	}
	return ListDatabasesResponse{Names: names}, err
}

func (h *handlers) get(ctx context.Context, req GetRequest) (GetResponse, error) {
	v, found, err := h.svc.Get(ctx, req.DB, req.Key)
	return GetResponse{Value: v, Found: found}, err
}

func (h *handlers) put(ctx context.Context, req PutRequest) (PutResponse, error) {
	return PutResponse{}, h.svc.Put(ctx, req.DB, req.Key, req.Value)
}

func (h *handlers) delete(ctx context.Context, req DeleteRequest) (DeleteResponse, error) {
	return DeleteResponse{}, h.svc.Delete(ctx, req.DB, req.Key)
}

func (h *handlers) commit(ctx context.Context, _ CommitRequest) (CommitResponse, error) {
	return CommitResponse{}, h.svc.Commit(ctx)
}

func (h *handlers) abort(ctx context.Context, _ AbortRequest) (AbortResponse, error) {
	return AbortResponse{}, h.svc.Abort(ctx)
}

func (h *handlers) stats(ctx context.Context, req StatsRequest) (StatsResponse, error) {
	st, err := h.svc.Stats(ctx, req.DB)
	return StatsResponse{Stats: st}, err
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	} else {
		h.logger.Debug("request rejected", "path", r.URL.Path, "code", code, "error", err)
	}
	if code == "" {
		code = "INTERNAL"
	}
	writeJSON(w, status, ErrorResponse{Code: string(code), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound, apperr.CodeStoreNotFound:
		return http.StatusNotFound
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeWriteConflict:
		return http.StatusConflict
	case apperr.CodeBusy:
		return http.StatusServiceUnavailable
	case apperr.CodeInvalidArgument, apperr.CodeQuerySyntax, apperr.CodeEmptyHistory:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Serve listens on addr and serves handler until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ServeListener(ctx, ln, handler, logger)
}

// ServeListener serves handler on ln until ctx is cancelled, then shuts down
// gracefully.
func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("serving remote API", "addr", ln.Addr().String())

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Debug("shutting down remote API")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
