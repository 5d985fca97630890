package scoring

import (
	"math"
	"testing"

	"github.com/verte-zerg/emgscore/internal/model"
)

func fptr(v float64) *float64 { return &v }

func bptr(v bool) *bool { return &v }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestResolveAmplitudeThresholdPrefersUpstream(t *testing.T) {
	cfg := model.SessionConfiguration{
		PerChannelMvcValue:               map[string]float64{"CH1": 2.0},
		PerChannelMvcThresholdPercentage: map[string]float64{"CH1": 50},
		GlobalMvcValue:                   fptr(3.0),
	}
	ch := model.ChannelAnalytics{Channel: "CH1", AmplitudeThresholdActualValue: fptr(0.5)}
	got := ResolveAmplitudeThreshold("CH1", cfg, ch)
	if got == nil || *got != 0.5 {
		t.Fatalf("expected upstream 0.5, got %v", got)
	}
}

func TestResolveAmplitudeThresholdFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		cfg  model.SessionConfiguration
		want *float64
	}{
		{
			name: "per-channel with per-channel percentage",
			cfg: model.SessionConfiguration{
				PerChannelMvcValue:               map[string]float64{"CH1": 2.0},
				PerChannelMvcThresholdPercentage: map[string]float64{"CH1": 50},
				GlobalMvcThresholdPercentage:     fptr(80),
			},
			want: fptr(1.0),
		},
		{
			name: "per-channel with global percentage",
			cfg: model.SessionConfiguration{
				PerChannelMvcValue:           map[string]float64{"CH1": 2.0},
				GlobalMvcThresholdPercentage: fptr(80),
			},
			want: fptr(1.6),
		},
		{
			name: "per-channel with default percentage",
			cfg: model.SessionConfiguration{
				PerChannelMvcValue: map[string]float64{"CH1": 0.002},
			},
			want: fptr(0.0015),
		},
		{
			name: "per-channel below noise floor falls to global",
			cfg: model.SessionConfiguration{
				PerChannelMvcValue: map[string]float64{"CH1": 1e-6},
				GlobalMvcValue:     fptr(0.01),
			},
			want: fptr(0.0075),
		},
		{
			name: "zero global falls to caller fallback",
			cfg: model.SessionConfiguration{
				GlobalMvcValue:             fptr(0),
				FallbackAmplitudeThreshold: fptr(0.3),
			},
			want: fptr(0.3),
		},
		{
			name: "other channel override ignored",
			cfg: model.SessionConfiguration{
				PerChannelMvcValue: map[string]float64{"CH2": 2.0},
			},
			want: nil,
		},
		{
			name: "nothing configured",
			cfg:  model.SessionConfiguration{},
			want: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveAmplitudeThreshold("CH1", tc.cfg, model.ChannelAnalytics{Channel: "CH1"})
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("expected nil, got %v", *got)
			case tc.want != nil && got == nil:
				t.Fatalf("expected %v, got nil", *tc.want)
			case tc.want != nil && !approxEqual(*got, *tc.want):
				t.Fatalf("expected %v, got %v", *tc.want, *got)
			}
		})
	}
}

func TestResolveDurationThreshold(t *testing.T) {
	tests := []struct {
		name string
		cfg  model.SessionConfiguration
		ch   model.ChannelAnalytics
		want float64
	}{
		{
			name: "upstream",
			cfg:  model.SessionConfiguration{PerChannelDurationThresholdSeconds: map[string]float64{"CH1": 3}},
			ch:   model.ChannelAnalytics{DurationThresholdActualValue: fptr(1500)},
			want: 1500,
		},
		{
			name: "per-channel seconds converted",
			cfg: model.SessionConfiguration{
				PerChannelDurationThresholdSeconds: map[string]float64{"CH1": 3},
				GlobalDurationThresholdMs:          fptr(2500),
			},
			want: 3000,
		},
		{
			name: "global milliseconds",
			cfg:  model.SessionConfiguration{GlobalDurationThresholdMs: fptr(2500)},
			want: 2500,
		},
		{
			name: "system default",
			want: DefaultDurationThresholdMs,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveDurationThreshold("CH1", tc.cfg, tc.ch); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestExpectedContractions(t *testing.T) {
	cfg := model.SessionConfiguration{
		ExpectedContractionsPerChannel: map[string]int{"CH1": 8},
		DefaultExpectedContractions:    12,
	}
	if got := ExpectedContractions("CH1", cfg); got != 8 {
		t.Fatalf("expected per-channel 8, got %d", got)
	}
	if got := ExpectedContractions("CH2", cfg); got != 12 {
		t.Fatalf("expected default 12, got %d", got)
	}
}
