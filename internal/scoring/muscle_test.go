package scoring

import (
	"testing"

	"github.com/verte-zerg/emgscore/internal/model"
)

// makeContractions builds n contractions; the first ampOK exceed amplitude 1.0
// and the first durOK last at least 2000 ms.
func makeContractions(n, ampOK, durOK int) []model.Contraction {
	out := make([]model.Contraction, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * 10000
		c := model.Contraction{StartTimeMs: start, EndTimeMs: start + 1000, MaxAmplitude: 0.5}
		if i < ampOK {
			c.MaxAmplitude = 1.5
		}
		if i < durOK {
			c.EndTimeMs = start + 2500
		}
		out = append(out, c)
	}
	return out
}

func TestAggregateMuscleCompletionSaturates(t *testing.T) {
	ch := model.ChannelAnalytics{Channel: "CH1", Contractions: makeContractions(50, 50, 50)}
	got := AggregateMuscle(ch, 10, thresholds(fptr(1.0), 2000), DefaultWeights())
	if got.Completion.Value != 100 {
		t.Fatalf("expected completion capped at 100, got %v", got.Completion.Value)
	}
	if got.Completion.Count != 50 || got.Completion.Total != 10 {
		t.Fatalf("unexpected completion counts: %+v", got.Completion)
	}
	if got.TotalScore != 100 {
		t.Fatalf("expected total 100, got %d", got.TotalScore)
	}
}

func TestAggregateMuscleEmptyList(t *testing.T) {
	got := AggregateMuscle(model.ChannelAnalytics{Channel: "CH1"}, 12, thresholds(fptr(1.0), 2000), DefaultWeights())
	if got.Intensity.Value != 0 || got.Duration.Value != 0 {
		t.Fatalf("expected zero intensity and duration, got %+v", got)
	}
	if got.Completion.Value != 0 {
		t.Fatalf("expected zero completion, got %v", got.Completion.Value)
	}
	if got.TotalScore != 0 {
		t.Fatalf("expected total 0, got %d", got.TotalScore)
	}
}

func TestAggregateMuscleNonPositiveExpectedGivesFullCompletion(t *testing.T) {
	for _, expected := range []int{0, -3} {
		ch := model.ChannelAnalytics{Contractions: makeContractions(2, 0, 0)}
		got := AggregateMuscle(ch, expected, thresholds(fptr(1.0), 2000), DefaultWeights())
		if got.Completion.Value != 100 {
			t.Fatalf("expected=%d: completion %v, want 100", expected, got.Completion.Value)
		}
	}
}

func TestAggregateMuscleWeightedTotal(t *testing.T) {
	// completion 6/12=50, intensity 3/6=50, duration 6/6=100.
	ch := model.ChannelAnalytics{Contractions: makeContractions(6, 3, 6)}
	got := AggregateMuscle(ch, 12, thresholds(fptr(1.0), 2000), DefaultWeights())
	if got.Completion.Value != 50 || got.Intensity.Value != 50 || got.Duration.Value != 100 {
		t.Fatalf("unexpected components: %+v %+v %+v", got.Completion, got.Intensity, got.Duration)
	}
	if got.TotalScore != 67 {
		t.Fatalf("expected total 67, got %d", got.TotalScore)
	}
	if got.GoodCount != 3 {
		t.Fatalf("expected 3 good, got %d", got.GoodCount)
	}
	if got.Categories.Good != 3 || got.Categories.DurationOnly != 3 {
		t.Fatalf("unexpected categories: %+v", got.Categories)
	}
}

func TestAggregateMuscleNormalizesMisconfiguredWeights(t *testing.T) {
	w := model.ScoringWeights{Completion: 0.2, Intensity: 0.2, Duration: 0.2}
	ch := model.ChannelAnalytics{Contractions: makeContractions(10, 5, 10)}
	got := AggregateMuscle(ch, 10, thresholds(fptr(1.0), 2000), w)
	// (0.2*100 + 0.2*50 + 0.2*100) / 0.6
	if got.TotalScore != 83 {
		t.Fatalf("expected total 83, got %d", got.TotalScore)
	}
	if got.TotalScore < 0 || got.TotalScore > 100 {
		t.Fatalf("total out of range: %d", got.TotalScore)
	}
}

func TestAggregateMuscleZeroWeightsFallsBackToMean(t *testing.T) {
	ch := model.ChannelAnalytics{Contractions: makeContractions(10, 5, 10)}
	got := AggregateMuscle(ch, 10, thresholds(fptr(1.0), 2000), model.ScoringWeights{})
	if got.TotalScore != 83 {
		t.Fatalf("expected plain mean 83, got %d", got.TotalScore)
	}
}

func TestAggregateMuscleUndefinedAmplitude(t *testing.T) {
	ch := model.ChannelAnalytics{Contractions: makeContractions(4, 4, 4)}
	got := AggregateMuscle(ch, 4, thresholds(nil, 2000), DefaultWeights())
	if got.Intensity.Value != 0 {
		t.Fatalf("expected intensity 0 with undefined threshold, got %v", got.Intensity.Value)
	}
	if got.GoodCount != 0 || got.Categories.Undefined != 4 {
		t.Fatalf("expected all undefined, got %+v", got.Categories)
	}
	// completion 100, intensity 0, duration 100
	if got.TotalScore != 67 {
		t.Fatalf("expected total 67, got %d", got.TotalScore)
	}
}

func TestAggregateMuscleCountsUpstreamFlags(t *testing.T) {
	cs := makeContractions(3, 0, 0)
	cs[0].MeetsAmplitudeCriterion = bptr(true)
	cs[1].IsGoodQuality = bptr(true)
	got := AggregateMuscle(model.ChannelAnalytics{Contractions: cs}, 3, thresholds(fptr(1.0), 2000), DefaultWeights())
	if got.UpstreamFlagCount != 2 {
		t.Fatalf("expected 2 upstream-flagged contractions, got %d", got.UpstreamFlagCount)
	}
	if got.Intensity.Count != 1 {
		t.Fatalf("expected upstream amplitude flag counted, got %d", got.Intensity.Count)
	}
	if got.GoodCount != 1 {
		t.Fatalf("expected upstream good flag counted, got %d", got.GoodCount)
	}
}
