package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/verte-zerg/emgscore/internal/model"
)

const weightTolerance = 0.01

var (
	// ErrWeightsSum reports a weight group that does not sum to 1.
	ErrWeightsSum = errors.New("scoring weights must sum to 1.0")
	// ErrGameBounds reports a game score range with max <= min.
	ErrGameBounds = errors.New("game score max must be greater than min")
)

// DefaultWeights returns the standard clinical weighting.
func DefaultWeights() model.ScoringWeights {
	return model.ScoringWeights{
		Compliance: 0.40,
		Symmetry:   0.25,
		Effort:     0.20,
		GameScore:  0.15,
		Completion: 0.333,
		Intensity:  0.333,
		Duration:   0.334,
	}
}

// ValidateWeights checks both weight groups sum to 1 within tolerance and
// that no weight is negative. It is meant for configuration load; the
// scorer itself never renormalizes the top-level group.
func ValidateWeights(w model.ScoringWeights) error {
	named := []struct {
		name  string
		value float64
	}{
		{"compliance", w.Compliance},
		{"symmetry", w.Symmetry},
		{"effort", w.Effort},
		{"game_score", w.GameScore},
		{"compliance_completion", w.Completion},
		{"compliance_intensity", w.Intensity},
		{"compliance_duration", w.Duration},
	}
	for _, n := range named {
		if n.value < 0 || math.IsNaN(n.value) {
			return fmt.Errorf("weight %s is %v: must be >= 0", n.name, n.value)
		}
	}
	if s := w.Compliance + w.Symmetry + w.Effort + w.GameScore; math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("%w: top-level group sums to %.3f", ErrWeightsSum, s)
	}
	if s := w.Completion + w.Intensity + w.Duration; math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("%w: compliance group sums to %.3f", ErrWeightsSum, s)
	}
	return nil
}

// ValidateGameBounds checks the game normalization range.
func ValidateGameBounds(minPoints, maxPoints float64) error {
	if maxPoints <= minPoints {
		return fmt.Errorf("%w: min=%v max=%v", ErrGameBounds, minPoints, maxPoints)
	}
	return nil
}
