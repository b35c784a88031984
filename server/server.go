package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/samarth-org/samarth/dataset"
	"github.com/samarth-org/samarth/trace"
)

// ============================================================================
// HTTP SERVER — Question answering over HTTP
// ============================================================================
// Routes:
//   POST /ask     — answer one natural language question
//   GET  /healthz — liveness + table stats
//   GET  /schema  — the dataset schema the AI sees
//
// Answered questions are cached by normalized question text with a TTL;
// failed questions are never cached so a transient failure does not
// stick. The dataset is frozen after startup, so cache staleness only
// spans AI nondeterminism, not data changes.
// ============================================================================

// Asker answers questions. Satisfied by orchestrator.Orchestrator.
type Asker interface {
	Ask(ctx context.Context, question string) (*trace.AnswerRecord, error)
}

// Config wires a Server.
type Config struct {
	Logger         *slog.Logger
	Asker          Asker
	Schema         dataset.Schema
	Report         *dataset.Report
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// Server serves the question answering API.
type Server struct {
	log     *slog.Logger
	echo    *echo.Echo
	asker   Asker
	schema  dataset.Schema
	report  *dataset.Report
	timeout time.Duration
	cache   *ttlcache.Cache[string, *trace.AnswerRecord]
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		log:     logger,
		echo:    e,
		asker:   cfg.Asker,
		schema:  cfg.Schema,
		report:  cfg.Report,
		timeout: timeout,
		cache:   ttlcache.New(ttlcache.WithTTL[string, *trace.AnswerRecord](ttl)),
	}

	e.POST("/ask", s.handleAsk)
	e.GET("/healthz", s.handleHealth)
	e.GET("/schema", s.handleSchema)

	return s
}

// Start serves until Shutdown. The cache expiry loop runs alongside.
func (s *Server) Start(addr string) error {
	go s.cache.Start()
	s.log.Info("server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cache.Stop()
	return s.echo.Shutdown(ctx)
}

// ============================================================================
// HANDLERS
// ============================================================================

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string              `json:"answer"`
	Trace  *trace.AnswerRecord `json:"trace"`
	Cached bool                `json:"cached"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	key := cacheKey(question)
	if item := s.cache.Get(key); item != nil {
		record := item.Value()
		return c.JSON(http.StatusOK, askResponse{
			Answer: record.FinalAnswer,
			Trace:  record,
			Cached: true,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
	defer cancel()

	record, err := s.asker.Ask(ctx, question)
	if err != nil {
		s.log.Error("ask failed", "question", question, "error", err)
		if record == nil {
			return echo.NewHTTPError(http.StatusBadGateway, "the analysis service is unavailable")
		}
		// Degraded record: the trace still reaches the caller.
		return c.JSON(http.StatusBadGateway, askResponse{
			Answer: record.FinalAnswer,
			Trace:  record,
		})
	}

	if record.State == trace.StateAnswered {
		s.cache.Set(key, record, ttlcache.DefaultTTL)
	}

	return c.JSON(http.StatusOK, askResponse{
		Answer: record.FinalAnswer,
		Trace:  record,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := map[string]any{
		"status": "ok",
		"rows":   s.schema.Rows,
	}
	if s.report != nil {
		resp["integration"] = s.report
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSchema(c echo.Context) error {
	return c.JSON(http.StatusOK, s.schema)
}

// cacheKey normalizes question text so trivial phrasing differences in
// whitespace and case share a cache slot.
func cacheKey(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}
