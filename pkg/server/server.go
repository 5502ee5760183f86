// Package server exposes a collection over a read-only HTTP API.
//
// Routes:
//
//	GET /healthz          -> "ok"
//	GET /graphs           -> {"count": n}
//	GET /graphs/{index}   -> one graph as JSON
//
// Non-finite feature values are sent as "NaN", "Infinity" or "-Infinity".
//
// The API only calls Len and Get on its source.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/errors"
	"github.com/matzehuels/bgf/pkg/observability"
)

// Source is the read-only view the API serves.
type Source interface {
	Len() int
	Get(i int) (*bgf.Record, error)
}

// Server serves a Source.
type Server struct {
	src    Source
	logger *log.Logger
	router chi.Router
}

// New creates a server for src. A nil logger discards request logs.
func New(src Source, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{src: src, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/healthz", s.handleHealth)
	r.Get("/graphs", s.handleCount)
	r.Get("/graphs/{index}", s.handleGraph)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("serving graphs", "addr", addr, "graphs", s.src.Len())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.src.Len()})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "index must be an integer, got "+strconv.Quote(raw))
		return
	}

	rec, err := s.src.Get(i)
	switch {
	case errors.Is(err, errors.ErrCodeIndexOutOfRange):
		writeError(w, http.StatusNotFound, errors.ErrCodeIndexOutOfRange, errors.UserMessage(err))
		return
	case err != nil:
		s.logger.Error("get graph", "index", i, "err", err)
		writeError(w, http.StatusInternalServerError, errors.GetCode(err), errors.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, NewGraph(i, rec))
}

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code errors.Code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: "encode response: " + err.Error(), Code: errors.ErrCodeInternal})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
