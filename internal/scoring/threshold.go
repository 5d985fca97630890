// Package scoring computes contraction quality flags and clinical
// performance scores. Everything here is pure: no I/O, no clocks, no state.
package scoring

import "github.com/verte-zerg/emgscore/internal/model"

const (
	// DefaultMVCThresholdPercentage applies when neither a per-channel nor a
	// global percentage is configured.
	DefaultMVCThresholdPercentage = 75.0

	// DefaultDurationThresholdMs is the system-wide duration target.
	DefaultDurationThresholdMs = 2000.0

	// mvcNoiseFloor rejects near-zero MVC calibrations (10 µV in volts).
	mvcNoiseFloor = 1e-5
)

// ResolveAmplitudeThreshold returns the effective MVC amplitude threshold for
// a channel, or nil when no source can provide one. A nil result means the
// amplitude criterion is undefined, not failed.
//
// Priority: upstream actual value, per-channel MVC, global MVC, caller fallback.
func ResolveAmplitudeThreshold(channel string, cfg model.SessionConfiguration, ch model.ChannelAnalytics) *float64 {
	if ch.AmplitudeThresholdActualValue != nil {
		return floatPtr(*ch.AmplitudeThresholdActualValue)
	}
	if mvc, ok := cfg.PerChannelMvcValue[channel]; ok && validMVC(mvc) {
		pct := globalPercentage(cfg)
		if p, ok := cfg.PerChannelMvcThresholdPercentage[channel]; ok {
			pct = p
		}
		return floatPtr(mvc * pct / 100)
	}
	if cfg.GlobalMvcValue != nil && validMVC(*cfg.GlobalMvcValue) {
		return floatPtr(*cfg.GlobalMvcValue * globalPercentage(cfg) / 100)
	}
	if cfg.FallbackAmplitudeThreshold != nil {
		return floatPtr(*cfg.FallbackAmplitudeThreshold)
	}
	return nil
}

// ResolveDurationThreshold returns the effective duration threshold for a
// channel in milliseconds. It always yields a value.
func ResolveDurationThreshold(channel string, cfg model.SessionConfiguration, ch model.ChannelAnalytics) float64 {
	if ch.DurationThresholdActualValue != nil {
		return *ch.DurationThresholdActualValue
	}
	if secs, ok := cfg.PerChannelDurationThresholdSeconds[channel]; ok {
		return secs * 1000
	}
	if cfg.GlobalDurationThresholdMs != nil {
		return *cfg.GlobalDurationThresholdMs
	}
	return DefaultDurationThresholdMs
}

// ExpectedContractions returns the per-channel target, falling back to the
// session default. Zero or negative means "cannot evaluate".
func ExpectedContractions(channel string, cfg model.SessionConfiguration) int {
	if n, ok := cfg.ExpectedContractionsPerChannel[channel]; ok {
		return n
	}
	return cfg.DefaultExpectedContractions
}

func globalPercentage(cfg model.SessionConfiguration) float64 {
	if cfg.GlobalMvcThresholdPercentage != nil {
		return *cfg.GlobalMvcThresholdPercentage
	}
	return DefaultMVCThresholdPercentage
}

func validMVC(v float64) bool {
	return v > mvcNoiseFloor
}

func floatPtr(v float64) *float64 {
	return &v
}
