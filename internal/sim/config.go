package sim

import (
	"errors"
	"fmt"

	"signal-engine/internal/factors"
	"signal-engine/internal/scorer"
)

// Config carries every knob of one simulation run. It is explicit per
// invocation, never a process-wide default, so concurrent runs can use
// different model generations.
type Config struct {
	Factors factors.Config `json:"factors" yaml:"factors"`
	Weights scorer.Weights `json:"weights" yaml:"weights"`

	// WindowCap bounds the per-ticker bar history. Memory per ticker is
	// independent of stream length.
	WindowCap int `json:"window_cap" yaml:"window_cap"`

	// FillThreshold is the absolute score at which a fill is simulated
	// against the current position sign.
	FillThreshold float64 `json:"fill_threshold" yaml:"fill_threshold"`

	// SlippageFrac worsens the fill price by a fixed fraction of the close.
	SlippageFrac float64 `json:"slippage_frac" yaml:"slippage_frac"`

	// UnitPosition is the absolute position a fill moves to (long or short).
	UnitPosition float64 `json:"unit_position" yaml:"unit_position"`

	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
}

// DefaultConfig returns a runnable baseline configuration.
func DefaultConfig() Config {
	f := factors.DefaultConfig()
	return Config{
		Factors:       f,
		Weights:       scorer.DefaultWeights(),
		WindowCap:     f.MinBars(),
		FillThreshold: 0.5,
		SlippageFrac:  0.0002,
		UnitPosition:  1,
		InitialCash:   10000,
	}
}

// Validate rejects out-of-domain configuration before any bar is consumed.
func (c Config) Validate() error {
	if err := c.Factors.Validate(); err != nil {
		return err
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.WindowCap <= 0 {
		return errors.New("window_cap must be positive")
	}
	if c.WindowCap < c.Factors.MinBars() {
		return fmt.Errorf("window_cap %d is below the %d bars the factor windows need",
			c.WindowCap, c.Factors.MinBars())
	}
	if c.FillThreshold <= 0 {
		return errors.New("fill_threshold must be positive")
	}
	if c.SlippageFrac < 0 {
		return errors.New("slippage_frac must not be negative")
	}
	if c.UnitPosition <= 0 {
		return errors.New("unit_position must be positive")
	}
	return nil
}
