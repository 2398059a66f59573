// Package http provides the HTTP API for fortressd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fortressd/internal/fingerprint"
	"github.com/fyrsmithlabs/fortressd/internal/ingest"
	"github.com/fyrsmithlabs/fortressd/internal/logging"
	"github.com/fyrsmithlabs/fortressd/internal/retrieval"
	"github.com/fyrsmithlabs/fortressd/internal/tenant"
)

// Ingestor runs the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Outcome, error)
	IngestFile(ctx context.Context, t tenant.Tenancy, docID, version, path string) (*ingest.Outcome, error)
}

// Answerer runs the answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, req retrieval.AnswerRequest) (*retrieval.Answer, error)
}

// Server provides HTTP endpoints for fortressd.
type Server struct {
	echo     *echo.Echo
	ingestor Ingestor
	answerer Answerer
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(ingestor Ingestor, answerer Answerer, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if answerer == nil {
		return nil, fmt.Errorf("answerer is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8600,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(metricsMiddleware())

	s := &Server{
		echo:     e,
		ingestor: ingestor,
		answerer: answerer,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// requestLogger logs one line per request with timing and request ID. The
// request ID is also carried in the request context so downstream services
// correlate their log lines with the request.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
				ctx := logging.WithRequestID(c.Request().Context(), rid)
				c.SetRequest(c.Request().WithContext(ctx))
			}

			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/query", s.handleQuery)
}

// TenancyParams identify the target namespace and appear in both request
// bodies.
type TenancyParams struct {
	TenantID   string `json:"tenant_id" form:"tenant_id"`
	DeptID     string `json:"dept_id" form:"dept_id"`
	UserID     string `json:"user_id,omitempty" form:"user_id"`
	Collection string `json:"collection,omitempty" form:"collection"`
}

func (p TenancyParams) tenancy() tenant.Tenancy {
	return tenant.Tenancy{
		TenantID:   p.TenantID,
		DeptID:     p.DeptID,
		UserID:     p.UserID,
		Collection: p.Collection,
	}
}

// IngestRequest is the JSON request body for POST /api/v1/ingest. Multipart
// requests carry the same fields as form values plus a "file" part.
type IngestRequest struct {
	TenancyParams
	DocID   string `json:"doc_id" form:"doc_id"`
	Version string `json:"version" form:"version"`
	// Path ingests a file readable by the daemon. Ignored for multipart
	// uploads.
	Path string `json:"path,omitempty" form:"path"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	Status    string `json:"status"`
	Namespace string `json:"namespace"`
	DocID     string `json:"doc_id"`
	Version   string `json:"version"`
	Chunks    int    `json:"chunks"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	TenancyParams
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	TopN     int    `json:"top_n,omitempty"`
	Debug    bool   `json:"debug,omitempty"`
}

// LatencyMillis is the per-stage timing breakdown in milliseconds.
type LatencyMillis struct {
	Retrieval  int64 `json:"retrieval"`
	Rerank     int64 `json:"rerank"`
	Generation int64 `json:"generation"`
	Total      int64 `json:"total"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Answer    string                `json:"answer"`
	Sources   []retrieval.SourceRef `json:"sources"`
	LatencyMS LatencyMillis         `json:"latency_ms"`
	Retrieved []retrieval.Hit       `json:"retrieved,omitempty"`
	Reranked  []retrieval.Hit       `json:"reranked,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()

	var outcome *ingest.Outcome
	var err error

	if file, ferr := c.FormFile("file"); ferr == nil {
		src, oerr := file.Open()
		if oerr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable file upload")
		}
		defer src.Close()

		outcome, err = s.ingestor.Ingest(ctx, ingest.Request{
			Tenancy:  req.tenancy(),
			DocID:    req.DocID,
			Version:  req.Version,
			Source:   src,
			FileName: file.Filename,
		})
	} else {
		if req.Path == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "either a file upload or a path is required")
		}
		outcome, err = s.ingestor.IngestFile(ctx, req.tenancy(), req.DocID, req.Version, req.Path)
	}

	if err != nil {
		return ingestError(err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Status:    string(outcome.Status),
		Namespace: outcome.Namespace.String(),
		DocID:     outcome.DocID,
		Version:   outcome.Version,
		Chunks:    outcome.Chunks,
	})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	answer, err := s.answerer.Answer(c.Request().Context(), retrieval.AnswerRequest{
		Tenancy:  req.tenancy(),
		Question: req.Question,
		TopK:     req.TopK,
		TopN:     req.TopN,
		Debug:    req.Debug,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrInvalidRequest) || isTenancyError(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
		LatencyMS: LatencyMillis{
			Retrieval:  answer.Latency.Retrieval.Milliseconds(),
			Rerank:     answer.Latency.Rerank.Milliseconds(),
			Generation: answer.Latency.Generation.Milliseconds(),
			Total:      answer.Latency.Total.Milliseconds(),
		},
		Retrieved: answer.Retrieved,
		Reranked:  answer.Reranked,
	})
}

// ingestError maps pipeline errors to HTTP status codes.
func ingestError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ingest.ErrSourceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrInvalidRequest),
		errors.Is(err, fingerprint.ErrEmptySource),
		isTenancyError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "ingestion failed")
	}
}

func isTenancyError(err error) bool {
	return errors.Is(err, tenant.ErrInvalidMode) ||
		errors.Is(err, tenant.ErrInvalidTenantID) ||
		errors.Is(err, tenant.ErrInvalidDeptID) ||
		errors.Is(err, tenant.ErrInvalidUserID) ||
		errors.Is(err, tenant.ErrInvalidCollection)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.config.Host + ":" + strconv.Itoa(s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the echo engine for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
