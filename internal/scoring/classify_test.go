package scoring

import (
	"testing"

	"github.com/verte-zerg/emgscore/internal/model"
)

func thresholds(amp *float64, dur float64) Thresholds {
	return Thresholds{Amplitude: amp, DurationMs: &dur}
}

func TestClassifyTrustsUpstreamFlags(t *testing.T) {
	// Recomputing would give amplitude=false, duration=true.
	c := model.Contraction{
		StartTimeMs:             0,
		EndTimeMs:               5000,
		MaxAmplitude:            0.1,
		MeetsAmplitudeCriterion: bptr(true),
		MeetsDurationCriterion:  bptr(false),
	}
	f := Classify(c, thresholds(fptr(1.0), 2000))
	if !f.MeetsAmplitude || f.MeetsDuration {
		t.Fatalf("expected upstream flags unchanged, got %+v", f)
	}
	if f.IsGood {
		t.Fatalf("expected isGood false when upstream duration flag is false")
	}
	if !f.Upstream {
		t.Fatalf("expected upstream marker")
	}
}

func TestClassifyTrustsUpstreamIsGood(t *testing.T) {
	c := model.Contraction{EndTimeMs: 100, MaxAmplitude: 0.01, IsGoodQuality: bptr(true)}
	f := Classify(c, thresholds(fptr(1.0), 2000))
	if !f.IsGood {
		t.Fatalf("expected upstream isGood=true to be kept")
	}
	if f.MeetsAmplitude || f.MeetsDuration {
		t.Fatalf("expected locally computed criteria to fail, got %+v", f)
	}
}

func TestClassifyComputesLocally(t *testing.T) {
	c := model.Contraction{StartTimeMs: 1000, EndTimeMs: 3500, MaxAmplitude: 1.2}
	f := Classify(c, thresholds(fptr(1.0), 2000))
	if !f.MeetsAmplitude || !f.MeetsDuration || !f.IsGood {
		t.Fatalf("expected all criteria met, got %+v", f)
	}
	if f.Upstream {
		t.Fatalf("expected no upstream marker")
	}
}

func TestClassifyBoundaryIsInclusive(t *testing.T) {
	c := model.Contraction{StartTimeMs: 0, EndTimeMs: 2000, MaxAmplitude: 1.0}
	f := Classify(c, thresholds(fptr(1.0), 2000))
	if !f.MeetsAmplitude || !f.MeetsDuration {
		t.Fatalf("expected thresholds to be inclusive, got %+v", f)
	}
}

func TestClassifyUndefinedAmplitudeIsNeverGood(t *testing.T) {
	c := model.Contraction{StartTimeMs: 0, EndTimeMs: 9000, MaxAmplitude: 100}
	f := Classify(c, thresholds(nil, 2000))
	if f.AmplitudeDefined {
		t.Fatalf("expected amplitude criterion undefined")
	}
	if f.MeetsAmplitude || f.IsGood {
		t.Fatalf("expected not good on partial criteria, got %+v", f)
	}
	if !f.MeetsDuration {
		t.Fatalf("expected duration still evaluated")
	}
	if got := Categorize(f); got != CategoryUndefined {
		t.Fatalf("expected undefined category, got %s", got)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		flags Flags
		want  Category
	}{
		{Flags{MeetsAmplitude: true, MeetsDuration: true, IsGood: true, AmplitudeDefined: true, DurationDefined: true}, CategoryGood},
		{Flags{MeetsAmplitude: true, AmplitudeDefined: true, DurationDefined: true}, CategoryAmplitudeOnly},
		{Flags{MeetsDuration: true, AmplitudeDefined: true, DurationDefined: true}, CategoryDurationOnly},
		{Flags{AmplitudeDefined: true, DurationDefined: true}, CategoryPoor},
		{Flags{MeetsDuration: true, DurationDefined: true}, CategoryUndefined},
		{Flags{MeetsAmplitude: true, MeetsDuration: true, AmplitudeDefined: true, DurationDefined: true, Upstream: true}, CategoryRejected},
	}
	for _, tc := range tests {
		if got := Categorize(tc.flags); got != tc.want {
			t.Errorf("Categorize(%+v) = %s, want %s", tc.flags, got, tc.want)
		}
	}
}

func TestContractionDurationNeverNegative(t *testing.T) {
	c := model.Contraction{StartTimeMs: 500, EndTimeMs: 100}
	if got := c.DurationMs(); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestUpstreamRejectionCountedSeparately(t *testing.T) {
	notGood := false
	ch := model.ChannelAnalytics{
		Channel: "CH1",
		Contractions: []model.Contraction{
			{StartTimeMs: 0, EndTimeMs: 3000, MaxAmplitude: 2, IsGoodQuality: &notGood},
			{StartTimeMs: 5000, EndTimeMs: 5500, MaxAmplitude: 0.1},
		},
	}
	got := AggregateMuscle(ch, 2, thresholds(fptr(1.0), 2000), DefaultWeights())
	if got.Categories.Rejected != 1 || got.Categories.Poor != 1 {
		t.Fatalf("expected one rejected and one poor, got %+v", got.Categories)
	}
	if got.GoodCount != 0 {
		t.Fatalf("upstream rejection must not count as good, got %d", got.GoodCount)
	}
}
