package scoring

import "github.com/verte-zerg/emgscore/internal/model"

// Thresholds are the resolved criteria for one channel. A nil field means the
// criterion is undefined for that channel.
type Thresholds struct {
	Amplitude  *float64
	DurationMs *float64
}

// ResolveThresholds resolves both criteria for a channel.
func ResolveThresholds(channel string, cfg model.SessionConfiguration, ch model.ChannelAnalytics) Thresholds {
	d := ResolveDurationThreshold(channel, cfg, ch)
	return Thresholds{
		Amplitude:  ResolveAmplitudeThreshold(channel, cfg, ch),
		DurationMs: &d,
	}
}

// Flags is the quality classification of a single contraction.
type Flags struct {
	MeetsAmplitude bool
	MeetsDuration  bool
	IsGood         bool

	AmplitudeDefined bool
	DurationDefined  bool

	// Upstream is set when at least one flag was taken from the contraction
	// record instead of being computed here.
	Upstream bool
}

// Category is the display bucket for a classified contraction.
type Category string

const (
	CategoryGood          Category = "good"
	CategoryAmplitudeOnly Category = "amplitude-only"
	CategoryDurationOnly  Category = "duration-only"
	CategoryPoor          Category = "poor"
	CategoryRejected      Category = "rejected"
	CategoryUndefined     Category = "undefined"
)

// Classify derives the quality flags for a contraction. Flags present on the
// contraction are trusted verbatim; only absent ones are computed from th.
func Classify(c model.Contraction, th Thresholds) Flags {
	var f Flags

	switch {
	case c.MeetsAmplitudeCriterion != nil:
		f.MeetsAmplitude = *c.MeetsAmplitudeCriterion
		f.AmplitudeDefined = true
		f.Upstream = true
	case th.Amplitude != nil:
		f.MeetsAmplitude = c.MaxAmplitude >= *th.Amplitude
		f.AmplitudeDefined = true
	}

	switch {
	case c.MeetsDurationCriterion != nil:
		f.MeetsDuration = *c.MeetsDurationCriterion
		f.DurationDefined = true
		f.Upstream = true
	case th.DurationMs != nil:
		f.MeetsDuration = c.DurationMs() >= *th.DurationMs
		f.DurationDefined = true
	}

	if c.IsGoodQuality != nil {
		f.IsGood = *c.IsGoodQuality
		f.Upstream = true
		return f
	}
	// Never certify good on partial criteria.
	f.IsGood = f.AmplitudeDefined && f.DurationDefined && f.MeetsAmplitude && f.MeetsDuration
	return f
}

// Categorize maps flags to a display category.
func Categorize(f Flags) Category {
	if f.IsGood {
		return CategoryGood
	}
	if !f.AmplitudeDefined || !f.DurationDefined {
		return CategoryUndefined
	}
	switch {
	case f.MeetsAmplitude && f.MeetsDuration:
		// Only reachable when upstream marked the contraction not good.
		return CategoryRejected
	case f.MeetsAmplitude && !f.MeetsDuration:
		return CategoryAmplitudeOnly
	case f.MeetsDuration && !f.MeetsAmplitude:
		return CategoryDurationOnly
	default:
		return CategoryPoor
	}
}
