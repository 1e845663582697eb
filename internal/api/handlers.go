package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"signal-engine/internal/backtest"
	"signal-engine/internal/engine"
	"signal-engine/internal/factors"
	"signal-engine/internal/market"
	"signal-engine/internal/sim"
	"signal-engine/pkg/db"
)

type computeRequest struct {
	Factors *factors.Config      `json:"factors,omitempty"`
	Config  *sim.Config          `json:"config,omitempty"`
	Inputs  []engine.FactorInput `json:"inputs"`
}

type signalResult struct {
	Signal *sim.Signal `json:"signal,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type backtestRequest struct {
	Config     *sim.Config                   `json:"config,omitempty"`
	Bars       []market.Bar                  `json:"bars"`
	Sentiments map[string]backtest.Sentiment `json:"sentiments,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":         s.Meta.Version,
		"weights_version": s.Meta.WeightsVersion,
		"uptime":          time.Since(s.Meta.StartedAt).String(),
	})
}

// computeSignals is the batch entry point: independent inputs, results in
// request order, per-item errors.
func (s *Server) computeSignals(c *gin.Context) {
	var req computeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	cfg := s.resolveConfig(req.Config)
	if req.Factors != nil {
		cfg.Factors = *req.Factors
	}

	results, err := s.Engine.ComputeSignals(cfg.Factors, cfg.Weights, req.Inputs)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	out := make([]signalResult, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = signalResult{Error: r.Err.Error()}
			continue
		}
		sig := r.Signal
		out[i] = signalResult{Signal: &sig}
	}
	c.JSON(http.StatusOK, gin.H{"signals": out})
}

// runBacktest replays historical bars through a streaming session and
// persists the aggregated report.
func (s *Server) runBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}
	if len(req.Bars) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bars are required"})
		return
	}

	cfg := s.resolveConfig(req.Config)
	report, err := s.Runner.Run(c.Request.Context(), cfg, req.Bars, req.Sentiments)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if s.Recorder != nil {
		if err := s.Recorder.Persist(c.Request.Context(), cfg, report); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "report persistence failed", "detail": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) listBacktests(c *gin.Context) {
	runs, err := s.Queries.ListRuns(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getBacktest(c *gin.Context) {
	id := c.Param("id")
	run, err := s.Queries.GetRun(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats, err := s.Queries.GetTickerStats(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "tickers": stats})
}

func (s *Server) getEquityCurve(c *gin.Context) {
	points, err := s.Queries.GetEquityCurve(c.Request.Context(), c.Param("id"), c.Query("ticker"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"equity": points})
}

func (s *Server) getFills(c *gin.Context) {
	fills, err := s.Queries.GetFills(c.Request.Context(), c.Param("id"), c.Query("ticker"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills})
}

// resolveConfig overlays a request's config on the server defaults. The
// resolved object travels with the invocation; handlers never read globals.
func (s *Server) resolveConfig(req *sim.Config) sim.Config {
	cfg := s.Defaults
	if req == nil {
		return cfg
	}
	if req.Factors != (factors.Config{}) {
		cfg.Factors = req.Factors
	}
	if req.Weights.Version != "" {
		cfg.Weights = req.Weights
	}
	if req.WindowCap > 0 {
		cfg.WindowCap = req.WindowCap
	}
	if req.FillThreshold > 0 {
		cfg.FillThreshold = req.FillThreshold
	}
	if req.SlippageFrac > 0 {
		cfg.SlippageFrac = req.SlippageFrac
	}
	if req.UnitPosition > 0 {
		cfg.UnitPosition = req.UnitPosition
	}
	if req.InitialCash > 0 {
		cfg.InitialCash = req.InitialCash
	}
	if cfg.WindowCap < cfg.Factors.MinBars() {
		cfg.WindowCap = cfg.Factors.MinBars()
	}
	return cfg
}

// statusFor maps the engine error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
