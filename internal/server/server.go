// Package server exposes labeling and label replay over HTTP for inspecting datasets.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/schema"
)

// Logger is the logging surface the server needs.
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type Options struct {
	Constants        *equation.ConstantTable
	Tolerance        equation.Tolerance
	AllowReplacement bool
	Logger           Logger
}

type Server struct {
	opts      Options
	startTime time.Time
	requests  atomic.Int64
	failures  atomic.Int64
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Tolerance == (equation.Tolerance{}) {
		opts.Tolerance = equation.DefaultTolerance
	}
	return &Server{opts: opts, startTime: time.Now()}
}

type LabelRequest struct {
	Mode          string        `json:"mode"`
	EquationLayer []interface{} `json:"equation_layer" binding:"required"`
	NumList       []float64     `json:"num_list"`
	Answer        *float64      `json:"answer"`
}

type LabelResponse struct {
	Mode   string     `json:"mode"`
	Labels [][][4]int `json:"labels"`
	Value  float64    `json:"value"`
	Match  *bool      `json:"match,omitempty"`
}

type EvaluateRequest struct {
	Mode    string     `json:"mode"`
	Labels  [][][4]int `json:"labels" binding:"required"`
	NumList []float64  `json:"num_list"`
}

type EvaluateResponse struct {
	Value float64 `json:"value"`
}

type HealthResponse struct {
	Status    string   `json:"status"`
	Uptime    string   `json:"uptime"`
	Requests  int64    `json:"requests"`
	Failures  int64    `json:"failures"`
	Constants []string `json:"constants"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.count)

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/label", s.handleLabel)
		api.POST("/evaluate", s.handleEvaluate)
	}
	return router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("API server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.opts.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func (s *Server) count(c *gin.Context) {
	s.requests.Add(1)
	c.Next()
	if c.Writer.Status() >= http.StatusBadRequest {
		s.failures.Add(1)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.startTime).String(),
		Requests:  s.requests.Load(),
		Failures:  s.failures.Load(),
		Constants: s.opts.Constants.Names(),
	})
}

func (s *Server) handleLabel(c *gin.Context) {
	var req LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	mode, err := equation.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rec, err := schema.DecodeRecord(map[string]interface{}{
		"id":             "request",
		"equation_layer": req.EquationLayer,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	groups, err := s.label(mode, rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	value, err := equation.Replay(mode, groups, req.NumList, s.constantValues())
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := LabelResponse{Mode: mode.String(), Labels: rows(groups), Value: value}
	if req.Answer != nil {
		match := s.opts.Tolerance.Matches(value, *req.Answer)
		resp.Match = &match
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	mode, err := equation.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	groups := make([][]equation.Label, len(req.Labels))
	for h, group := range req.Labels {
		for _, row := range group {
			l, err := equation.LabelFromInts(row)
			if err != nil {
				s.fail(c, err)
				return
			}
			groups[h] = append(groups[h], l)
		}
	}
	value, err := equation.Replay(mode, groups, req.NumList, s.constantValues())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, EvaluateResponse{Value: value})
}

func (s *Server) label(mode equation.Mode, rec schema.Record) ([][]equation.Label, error) {
	space, err := equation.NewIndexSpace(mode, s.opts.Constants)
	if err != nil {
		return nil, err
	}
	labeler := equation.NewLabeler(space, s.opts.AllowReplacement)

	if mode == equation.ModeParallel {
		chains := rec.Chains
		if chains == nil {
			chains = []equation.Layer{rec.Layer}
		}
		return labeler.LabelParallel(chains)
	}
	if rec.IsParallel() {
		return nil, errors.New("nested equation layers need parallel mode")
	}
	labels, err := labeler.Label(rec.Layer)
	if err != nil {
		return nil, err
	}
	groups := make([][]equation.Label, len(labels))
	for i := range labels {
		groups[i] = labels[i : i+1]
	}
	return groups, nil
}

// fail reports labeling and replay errors as 422 with the error code when one exists.
func (s *Server) fail(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error()}
	var le *equation.LabelError
	if errors.As(err, &le) {
		resp.Code = le.Code
	}
	s.opts.Logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusUnprocessableEntity, resp)
}

func (s *Server) constantValues() []float64 { return s.opts.Constants.Values() }

func rows(groups [][]equation.Label) [][][4]int {
	out := make([][][4]int, len(groups))
	for h, g := range groups {
		out[h] = make([][4]int, len(g))
		for i, l := range g {
			out[h][i] = l.Ints()
		}
	}
	return out
}
