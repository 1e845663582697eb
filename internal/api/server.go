package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"signal-engine/internal/backtest"
	"signal-engine/internal/engine"
	"signal-engine/internal/events"
	"signal-engine/internal/sim"
	"signal-engine/pkg/db"
)

// Server wires HTTP and websocket endpoints around the engine.
type Server struct {
	Router   *gin.Engine
	Engine   *engine.Engine
	Runner   *backtest.Runner
	Recorder *backtest.Recorder
	Queries  *db.ReportQueries
	Bus      *events.Bus

	// Defaults fills request fields the caller omitted. Every invocation
	// still carries the full resolved config; nothing is global.
	Defaults sim.Config

	Meta SystemMeta
}

// SystemMeta describes runtime status exposed to callers.
type SystemMeta struct {
	Version        string
	WeightsVersion string
	StartedAt      time.Time
}

// NewServer builds the router with the standard middleware stack.
func NewServer(eng *engine.Engine, runner *backtest.Runner, recorder *backtest.Recorder,
	queries *db.ReportQueries, bus *events.Bus, defaults sim.Config, meta SystemMeta) *Server {

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:   r,
		Engine:   eng,
		Runner:   runner,
		Recorder: recorder,
		Queries:  queries,
		Bus:      bus,
		Defaults: defaults,
		Meta:     meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.monitorSocket)
	s.Router.GET("/ws/simulate", s.simulateSocket)

	api := s.Router.Group("/api")
	api.Use(TimeoutMiddleware(30 * time.Second))
	{
		api.GET("/system/status", s.getSystemStatus)

		api.POST("/signals/compute", s.computeSignals)

		api.POST("/backtests", s.runBacktest)
		api.GET("/backtests", s.listBacktests)
		api.GET("/backtests/:id", s.getBacktest)
		api.GET("/backtests/:id/equity", s.getEquityCurve)
		api.GET("/backtests/:id/fills", s.getFills)
	}
}
