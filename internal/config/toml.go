// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/emgscore/internal/model"
	"github.com/verte-zerg/emgscore/internal/scoring"
)

// Defaults applied when the config file leaves a value unset.
const (
	DefaultExpectedContractions = 12
	DefaultGameScoreMin         = 0.0
	DefaultGameScoreMax         = 1000.0
	DefaultServerAddr           = "127.0.0.1:8088"
	DefaultLogMode              = "dev"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Scoring    ScoringConfig            `toml:"scoring"`
	Thresholds ThresholdConfig          `toml:"thresholds"`
	Channels   map[string]ChannelConfig `toml:"channels"`
	Game       GameConfig               `toml:"game"`
	Safety     SafetyConfig             `toml:"safety"`
	Effort     EffortConfig             `toml:"effort"`
	Session    SessionConfig            `toml:"session"`
	Server     ServerConfig             `toml:"server"`
	Log        LogConfig                `toml:"log"`
}

// ScoringConfig maps the weight groups.
type ScoringConfig struct {
	Compliance *float64 `toml:"compliance"`
	Symmetry   *float64 `toml:"symmetry"`
	Effort     *float64 `toml:"effort"`
	GameScore  *float64 `toml:"game-score"`
	Completion *float64 `toml:"completion"`
	Intensity  *float64 `toml:"intensity"`
	Duration   *float64 `toml:"duration"`
}

// ThresholdConfig maps session-wide thresholds.
type ThresholdConfig struct {
	MVC                  *float64 `toml:"mvc"`
	MVCPct               *float64 `toml:"mvc-pct"`
	DurationThresholdMs  *float64 `toml:"duration-threshold-ms"`
	ExpectedContractions *int     `toml:"expected-contractions"`
	FallbackAmplitude    *float64 `toml:"fallback-amplitude"`
}

// ChannelConfig maps per-muscle overrides. Duration is in seconds.
type ChannelConfig struct {
	MVC                  *float64 `toml:"mvc"`
	MVCPct               *float64 `toml:"mvc-pct"`
	DurationThresholdS   *float64 `toml:"duration-threshold-s"`
	ExpectedContractions *int     `toml:"expected-contractions"`
}

// GameConfig maps the game score normalization range.
type GameConfig struct {
	MinPoints *float64 `toml:"min-points"`
	MaxPoints *float64 `toml:"max-points"`
}

// SafetyConfig maps the BFR compliance window.
type SafetyConfig struct {
	MinAOPPct *float64 `toml:"min-aop-pct"`
	MaxAOPPct *float64 `toml:"max-aop-pct"`
}

// EffortConfig maps RPE 0..10 (by index) to effort scores.
type EffortConfig struct {
	Scores []float64 `toml:"scores"`
}

// SessionConfig names the left and right channels.
type SessionConfig struct {
	LeftChannel  *string `toml:"left-channel"`
	RightChannel *string `toml:"right-channel"`
}

// ServerConfig maps HTTP adapter settings.
type ServerConfig struct {
	Addr           *string  `toml:"addr"`
	AllowedOrigins []string `toml:"allowed-origins"`
}

// LogConfig maps logger settings.
type LogConfig struct {
	Mode *string `toml:"mode"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Weights returns the configured weights with defaults for unset values.
func (c FileConfig) Weights() model.ScoringWeights {
	w := scoring.DefaultWeights()
	s := c.Scoring
	setFloat(&w.Compliance, s.Compliance)
	setFloat(&w.Symmetry, s.Symmetry)
	setFloat(&w.Effort, s.Effort)
	setFloat(&w.GameScore, s.GameScore)
	setFloat(&w.Completion, s.Completion)
	setFloat(&w.Intensity, s.Intensity)
	setFloat(&w.Duration, s.Duration)
	return w
}

// SessionConfiguration builds and validates the scoring configuration.
// Weight groups not summing to 1 and inverted game bounds are rejected here.
func (c FileConfig) SessionConfiguration() (model.SessionConfiguration, error) {
	out := model.SessionConfiguration{
		GlobalMvcValue:                     c.Thresholds.MVC,
		GlobalMvcThresholdPercentage:       c.Thresholds.MVCPct,
		GlobalDurationThresholdMs:          c.Thresholds.DurationThresholdMs,
		FallbackAmplitudeThreshold:         c.Thresholds.FallbackAmplitude,
		DefaultExpectedContractions:        DefaultExpectedContractions,
		PerChannelMvcValue:                 map[string]float64{},
		PerChannelMvcThresholdPercentage:   map[string]float64{},
		PerChannelDurationThresholdSeconds: map[string]float64{},
		ExpectedContractionsPerChannel:     map[string]int{},
		Weights:                            c.Weights(),
		GameScoreMin:                       DefaultGameScoreMin,
		GameScoreMax:                       DefaultGameScoreMax,
		BFRMinAOPPercent:                   scoring.DefaultBFRMinAOPPercent,
		BFRMaxAOPPercent:                   scoring.DefaultBFRMaxAOPPercent,
	}
	if c.Thresholds.ExpectedContractions != nil {
		out.DefaultExpectedContractions = *c.Thresholds.ExpectedContractions
	}
	for name, ch := range c.Channels {
		if ch.MVC != nil {
			out.PerChannelMvcValue[name] = *ch.MVC
		}
		if ch.MVCPct != nil {
			out.PerChannelMvcThresholdPercentage[name] = *ch.MVCPct
		}
		if ch.DurationThresholdS != nil {
			out.PerChannelDurationThresholdSeconds[name] = *ch.DurationThresholdS
		}
		if ch.ExpectedContractions != nil {
			out.ExpectedContractionsPerChannel[name] = *ch.ExpectedContractions
		}
	}
	setFloat(&out.GameScoreMin, c.Game.MinPoints)
	setFloat(&out.GameScoreMax, c.Game.MaxPoints)
	setFloat(&out.BFRMinAOPPercent, c.Safety.MinAOPPct)
	setFloat(&out.BFRMaxAOPPercent, c.Safety.MaxAOPPct)
	if c.Session.LeftChannel != nil {
		out.LeftChannel = *c.Session.LeftChannel
	}
	if c.Session.RightChannel != nil {
		out.RightChannel = *c.Session.RightChannel
	}

	if err := checkFinite(c); err != nil {
		return model.SessionConfiguration{}, err
	}
	if err := scoring.ValidateWeights(out.Weights); err != nil {
		return model.SessionConfiguration{}, fmt.Errorf("invalid [scoring] section: %w", err)
	}
	if err := scoring.ValidateGameBounds(out.GameScoreMin, out.GameScoreMax); err != nil {
		return model.SessionConfiguration{}, fmt.Errorf("invalid [game] section: %w", err)
	}
	if out.BFRMaxAOPPercent < out.BFRMinAOPPercent {
		return model.SessionConfiguration{}, fmt.Errorf("invalid [safety] section: max-aop-pct below min-aop-pct")
	}
	return out, nil
}

// EffortFunc returns the configured RPE mapping.
func (c FileConfig) EffortFunc() (scoring.EffortFunc, error) {
	if len(c.Effort.Scores) == 0 {
		return scoring.DefaultEffortScore, nil
	}
	if len(c.Effort.Scores) != 11 {
		return nil, fmt.Errorf("invalid [effort] section: scores needs 11 entries (RPE 0-10), got %d", len(c.Effort.Scores))
	}
	table := scoring.EffortTable{}
	for rpe, v := range c.Effort.Scores {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return nil, fmt.Errorf("invalid [effort] section: score for RPE %d must be 0-100", rpe)
		}
		table[rpe] = v
	}
	return table.Func(), nil
}

// ServerAddr returns the configured listen address.
func (c FileConfig) ServerAddr() string {
	if c.Server.Addr != nil && *c.Server.Addr != "" {
		return *c.Server.Addr
	}
	return DefaultServerAddr
}

// LogMode returns the configured logger mode.
func (c FileConfig) LogMode() string {
	if c.Log.Mode != nil && *c.Log.Mode != "" {
		return *c.Log.Mode
	}
	return DefaultLogMode
}

// checkFinite rejects nan and inf, which TOML accepts as float literals.
func checkFinite(c FileConfig) error {
	values := map[string]*float64{
		"scoring.compliance":               c.Scoring.Compliance,
		"scoring.symmetry":                 c.Scoring.Symmetry,
		"scoring.effort":                   c.Scoring.Effort,
		"scoring.game-score":               c.Scoring.GameScore,
		"scoring.completion":               c.Scoring.Completion,
		"scoring.intensity":                c.Scoring.Intensity,
		"scoring.duration":                 c.Scoring.Duration,
		"thresholds.mvc":                   c.Thresholds.MVC,
		"thresholds.mvc-pct":               c.Thresholds.MVCPct,
		"thresholds.duration-threshold-ms": c.Thresholds.DurationThresholdMs,
		"thresholds.fallback-amplitude":    c.Thresholds.FallbackAmplitude,
		"game.min-points":                  c.Game.MinPoints,
		"game.max-points":                  c.Game.MaxPoints,
		"safety.min-aop-pct":               c.Safety.MinAOPPct,
		"safety.max-aop-pct":               c.Safety.MaxAOPPct,
	}
	for name, ch := range c.Channels {
		values["channels."+name+".mvc"] = ch.MVC
		values["channels."+name+".mvc-pct"] = ch.MVCPct
		values["channels."+name+".duration-threshold-s"] = ch.DurationThresholdS
	}
	for key, v := range values {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("invalid config: %s must be a finite number", key)
		}
	}
	return nil
}

func setFloat(target, value *float64) {
	if value == nil {
		return
	}
	*target = *value
}
