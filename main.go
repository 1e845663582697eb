package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-engine/internal/api"
	"signal-engine/internal/backtest"
	"signal-engine/internal/engine"
	"signal-engine/internal/events"
	"signal-engine/internal/factors"
	"signal-engine/internal/scorer"
	"signal-engine/internal/sim"
	"signal-engine/pkg/config"
	"signal-engine/pkg/db"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	weights := scorer.DefaultWeights()
	if cfg.WeightsPath != "" {
		weights, err = scorer.LoadWeights(cfg.WeightsPath)
		if err != nil {
			log.Fatalf("load weights: %v", err)
		}
		log.Printf("loaded weights %s from %s", weights.Version, cfg.WeightsPath)
	}

	defaults := defaultSimConfig(cfg, weights)
	if err := defaults.Validate(); err != nil {
		log.Fatalf("default sim config: %v", err)
	}

	bus := events.NewBus()
	defer bus.Close()

	eng := engine.New(bus, cfg.ComputeWorkers)
	runner := backtest.NewRunner(eng)
	recorder := backtest.NewRecorder(database.Queries())

	server := api.NewServer(eng, runner, recorder, database.Queries(), bus, defaults, api.SystemMeta{
		Version:        version,
		WeightsVersion: weights.Version,
		StartedAt:      time.Now(),
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router,
	}

	go func() {
		log.Printf("signal engine %s listening on :%s (weights %s)", version, cfg.Port, weights.Version)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("bye")
}

func defaultSimConfig(cfg *config.Config, weights scorer.Weights) sim.Config {
	f := factors.DefaultConfig()
	windowCap := cfg.WindowCap
	if windowCap < f.MinBars() {
		windowCap = f.MinBars()
	}
	return sim.Config{
		Factors:       f,
		Weights:       weights,
		WindowCap:     windowCap,
		FillThreshold: cfg.FillThreshold,
		SlippageFrac:  cfg.SlippageFrac,
		UnitPosition:  cfg.UnitPosition,
		InitialCash:   cfg.InitialCash,
	}
}
