package report

import (
	"math"
	"strings"

	"github.com/verte-zerg/emgscore/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Trend summarizes the overall score across a history window.
type Trend struct {
	Sessions    int
	Available   int
	Mean        float64
	Best        int
	Latest      int
	Change      float64
	GatedToZero int
}

// SummarizeTrend computes Trend over the available scores. Change is the
// latest score minus the moving average of the preceding window.
func SummarizeTrend(scores []model.StoredScore, window int) Trend {
	t := Trend{Sessions: len(scores)}
	overall := OverallSeries(scores)
	t.Available = len(overall)
	if t.Available == 0 {
		return t
	}
	var sum float64
	for _, v := range overall {
		sum += v
		if int(v) > t.Best {
			t.Best = int(v)
		}
	}
	t.Mean = sum / float64(len(overall))
	t.Latest = int(overall[len(overall)-1])
	if len(overall) > 1 {
		prev := MovingAverage(overall[:len(overall)-1], window)
		t.Change = overall[len(overall)-1] - prev[len(prev)-1]
	}
	for _, s := range scores {
		if s.Score.Available && s.Score.SafetyGateMultiplier == 0 {
			t.GatedToZero++
		}
	}
	return t
}

// OverallSeries returns the overall scores of available sessions in order.
func OverallSeries(scores []model.StoredScore) []float64 {
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		if s.Score.Available {
			out = append(out, float64(s.Score.OverallScore))
		}
	}
	return out
}

// ComponentSeries returns compliance, symmetry, effort and game series for
// available sessions.
func ComponentSeries(scores []model.StoredScore) []Series {
	series := []Series{{Name: "Compliance"}, {Name: "Symmetry"}, {Name: "Effort"}, {Name: "Game"}}
	for _, s := range scores {
		if !s.Score.Available {
			continue
		}
		series[0].Values = append(series[0].Values, s.Score.ComplianceScore)
		series[1].Values = append(series[1].Values, s.Score.SymmetryScore)
		series[2].Values = append(series[2].Values, s.Score.EffortScore)
		series[3].Values = append(series[3].Values, s.Score.GameScoreNormalized)
	}
	return series
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		den := float64(i + 1)
		if i >= window {
			sum -= values[i-window]
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline on the 0-100 scale.
func Sparkline(values []float64) string {
	var b strings.Builder
	for _, v := range values {
		v = math.Max(0, math.Min(scoreMax, v))
		idx := int(math.Round(v / scoreMax * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}
