package scorer

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights is the versioned coefficient set for one signal generation.
// It is passed explicitly on every call; two concurrent backtests can run
// with different versions side by side.
type Weights struct {
	Version     string  `json:"version" yaml:"version"`
	ShortReturn float64 `json:"short_return" yaml:"short_return"`
	LongReturn  float64 `json:"long_return" yaml:"long_return"`
	Volatility  float64 `json:"volatility" yaml:"volatility"`
	Momentum    float64 `json:"momentum" yaml:"momentum"`
	Sentiment   float64 `json:"sentiment" yaml:"sentiment"`
	EventImpact float64 `json:"event_impact" yaml:"event_impact"`

	// MaxScore bounds the composite score to [-MaxScore, +MaxScore].
	MaxScore float64 `json:"max_score" yaml:"max_score"`
}

// DefaultWeights is the built-in generation used when no weights file is
// configured. Volatility carries a negative coefficient: rough markets lower
// conviction.
func DefaultWeights() Weights {
	return Weights{
		Version:     "v1",
		ShortReturn: 2.0,
		LongReturn:  1.0,
		Volatility:  -1.5,
		Momentum:    1.5,
		Sentiment:   1.0,
		EventImpact: 0.5,
		MaxScore:    3.0,
	}
}

// Validate rejects weight sets the scorer cannot clamp against.
func (w Weights) Validate() error {
	if w.Version == "" {
		return errors.New("weights version is empty")
	}
	if w.MaxScore <= 0 {
		return errors.New("weights max_score must be positive")
	}
	return nil
}

// LoadWeights reads a weights YAML file.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights file: %w", err)
	}
	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, fmt.Errorf("parse weights file: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, fmt.Errorf("weights file %s: %w", path, err)
	}
	return w, nil
}
