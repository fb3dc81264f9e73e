package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/export"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/id/uuid"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/metrics"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

// Output formats accepted by the polls endpoint.
const (
	FormatJSON       = "json"
	FormatFlat       = "flat"
	FormatTable      = "table"
	FormatTransposed = "transposed"
)

// ScrapeFunc produces the ballot set for one poll week.
type ScrapeFunc func(ctx context.Context, id poll.Identity) (*poll.BallotSet, error)

// Server wires HTTP handlers to the scraper.
type Server struct {
	router  chi.Router
	scrape  ScrapeFunc
	logger  *zap.Logger
	timeout time.Duration
}

// NewServer constructs a Server with middleware and routes. timeout bounds
// each scrape; zero means no limit beyond the client's connection.
func NewServer(scrape ScrapeFunc, timeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		scrape:  scrape,
		logger:  logger,
		timeout: timeout,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(uuid.New()))
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/polls/{poll}/{year}/{week}", s.getPoll)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getPoll(w http.ResponseWriter, r *http.Request) {
	pollType, err := poll.ParsePollType(chi.URLParam(r, "poll"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "week must be an integer")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = FormatJSON
	}
	switch format {
	case FormatJSON, FormatFlat, FormatTable, FormatTransposed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	id := poll.NewIdentity(pollType, year, week)
	set, err := s.scrape(ctx, id)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, fetcher.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	body, contentType, err := render(set, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write poll response", zap.Error(err))
	}
}

func render(set *poll.BallotSet, format string) ([]byte, string, error) {
	switch format {
	case FormatFlat:
		body, err := export.EncodeCSV(poll.FlatTable(set))
		return body, export.ContentTypeCSV, err
	case FormatTable:
		body, err := export.EncodeCSV(poll.RenderTable(set, false))
		return body, export.ContentTypeCSV, err
	case FormatTransposed:
		body, err := export.EncodeCSV(poll.RenderTable(set, true))
		return body, export.ContentTypeCSV, err
	default:
		body, err := poll.MarshalStructured(set)
		return body, export.ContentTypeJSON, err
	}
}

type idGenerator interface {
	NewID() string
}

func requestIDMiddleware(ids idGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = ids.NewID()
			}
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("error", rec),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

// RequestID returns the id assigned by the request-id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
