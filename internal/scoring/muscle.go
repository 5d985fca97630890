package scoring

import (
	"math"

	"github.com/verte-zerg/emgscore/internal/model"
)

// AggregateMuscle scores one channel's contractions against its expected
// count and resolved thresholds. Degenerate inputs never produce NaN:
// an empty list scores 0 for intensity and duration, and a non-positive
// expected count gives full completion credit.
func AggregateMuscle(ch model.ChannelAnalytics, expected int, th Thresholds, weights model.ScoringWeights) model.MuscleScore {
	actual := len(ch.Contractions)
	out := model.MuscleScore{
		Channel:            ch.Channel,
		Expected:           expected,
		AmplitudeThreshold: th.Amplitude,
	}
	if th.DurationMs != nil {
		out.DurationThresholdMs = *th.DurationMs
	}

	var ampCount, durCount int
	for _, c := range ch.Contractions {
		f := Classify(c, th)
		if f.MeetsAmplitude {
			ampCount++
		}
		if f.MeetsDuration {
			durCount++
		}
		if f.IsGood {
			out.GoodCount++
		}
		if f.Upstream {
			out.UpstreamFlagCount++
		}
		countCategory(&out.Categories, Categorize(f))
	}

	out.Completion = model.ComponentScore{
		Value: completionScore(actual, expected),
		Count: actual,
		Total: expected,
	}
	out.Intensity = model.ComponentScore{Value: ratioScore(ampCount, actual), Count: ampCount, Total: actual}
	out.Duration = model.ComponentScore{Value: ratioScore(durCount, actual), Count: durCount, Total: actual}
	out.TotalScore = muscleTotal(out.Completion.Value, out.Intensity.Value, out.Duration.Value, weights)
	return out
}

func completionScore(actual, expected int) float64 {
	if expected <= 0 {
		return 100
	}
	return math.Min(float64(actual)/float64(expected)*100, 100)
}

func ratioScore(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// muscleTotal normalizes by the actual sub-group sum so a misconfigured
// group still lands in [0, 100].
func muscleTotal(completion, intensity, duration float64, w model.ScoringWeights) int {
	sum := w.Completion + w.Intensity + w.Duration
	if sum <= 0 || math.IsNaN(sum) {
		return int(math.Round((completion + intensity + duration) / 3))
	}
	raw := (w.Completion*completion + w.Intensity*intensity + w.Duration*duration) / sum
	return int(math.Round(clamp(raw, 0, 100)))
}

func countCategory(c *model.CategoryCounts, cat Category) {
	switch cat {
	case CategoryGood:
		c.Good++
	case CategoryAmplitudeOnly:
		c.AmplitudeOnly++
	case CategoryDurationOnly:
		c.DurationOnly++
	case CategoryPoor:
		c.Poor++
	case CategoryRejected:
		c.Rejected++
	default:
		c.Undefined++
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
