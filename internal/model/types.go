// Package model defines shared data structures.
package model

import "time"

// Contraction is a single detected muscle activation event.
//
// The three flag pointers are upstream-authoritative: when non-nil they are
// used as-is and never recomputed. A nil flag means "not provided".
type Contraction struct {
	StartTimeMs  float64 `json:"start_time_ms" yaml:"start_time_ms"`
	EndTimeMs    float64 `json:"end_time_ms" yaml:"end_time_ms"`
	MaxAmplitude float64 `json:"max_amplitude" yaml:"max_amplitude"`

	MeetsAmplitudeCriterion *bool `json:"meets_mvc,omitempty" yaml:"meets_mvc,omitempty"`
	MeetsDurationCriterion  *bool `json:"meets_duration,omitempty" yaml:"meets_duration,omitempty"`
	IsGoodQuality           *bool `json:"is_good,omitempty" yaml:"is_good,omitempty"`
}

// DurationMs returns the contraction length, never negative.
func (c Contraction) DurationMs() float64 {
	d := c.EndTimeMs - c.StartTimeMs
	if d < 0 {
		return 0
	}
	return d
}

// ChannelAnalytics holds the detected contractions for one muscle channel.
type ChannelAnalytics struct {
	Channel      string        `json:"channel" yaml:"channel"`
	Contractions []Contraction `json:"contractions" yaml:"contractions"`

	AmplitudeThresholdActualValue *float64 `json:"mvc_threshold_actual_value,omitempty" yaml:"mvc_threshold_actual_value,omitempty"`
	DurationThresholdActualValue  *float64 `json:"duration_threshold_actual_value,omitempty" yaml:"duration_threshold_actual_value,omitempty"`

	TotalContractionCount *int `json:"contraction_count,omitempty" yaml:"contraction_count,omitempty"`
	GoodContractionCount  *int `json:"good_contraction_count,omitempty" yaml:"good_contraction_count,omitempty"`
}

// ScoringWeights are the weighted-sum coefficients. The top-level group
// (Compliance, Symmetry, Effort, GameScore) and the compliance sub-group
// (Completion, Intensity, Duration) each sum to 1.
type ScoringWeights struct {
	Compliance float64 `json:"compliance" yaml:"compliance"`
	Symmetry   float64 `json:"symmetry" yaml:"symmetry"`
	Effort     float64 `json:"effort" yaml:"effort"`
	GameScore  float64 `json:"game_score" yaml:"game_score"`

	Completion float64 `json:"compliance_completion" yaml:"compliance_completion"`
	Intensity  float64 `json:"compliance_intensity" yaml:"compliance_intensity"`
	Duration   float64 `json:"compliance_duration" yaml:"compliance_duration"`
}

// SessionConfiguration holds clinician-set parameters for one analysis session.
//
// GlobalDurationThresholdMs is in milliseconds; PerChannelDurationThresholdSeconds
// is in seconds and is converted when resolved.
type SessionConfiguration struct {
	GlobalMvcValue               *float64
	GlobalMvcThresholdPercentage *float64

	PerChannelMvcValue               map[string]float64
	PerChannelMvcThresholdPercentage map[string]float64

	GlobalDurationThresholdMs          *float64
	PerChannelDurationThresholdSeconds map[string]float64

	ExpectedContractionsPerChannel map[string]int
	DefaultExpectedContractions    int

	// FallbackAmplitudeThreshold is the caller-supplied last resort for
	// amplitude resolution.
	FallbackAmplitudeThreshold *float64

	Weights ScoringWeights

	GameScoreMin float64
	GameScoreMax float64

	BFRMinAOPPercent float64
	BFRMaxAOPPercent float64

	LeftChannel  string
	RightChannel string
}

// BFRReading is the blood-flow-restriction measurement for one side.
type BFRReading struct {
	PressureAOPPercent *float64 `json:"pressure_aop_pct,omitempty" yaml:"pressure_aop_pct,omitempty"`
	Compliant          *bool    `json:"compliant,omitempty" yaml:"compliant,omitempty"`
}

// SessionInput is one recorded game session handed to the scorer.
type SessionInput struct {
	PatientID      string                      `json:"patient_id,omitempty" yaml:"patient_id,omitempty"`
	SessionCode    string                      `json:"session_code,omitempty" yaml:"session_code,omitempty"`
	Channels       map[string]ChannelAnalytics `json:"channels" yaml:"channels"`
	PreSessionRPE  *float64                    `json:"pre_session_rpe,omitempty" yaml:"pre_session_rpe,omitempty"`
	PostSessionRPE *float64                    `json:"post_session_rpe,omitempty" yaml:"post_session_rpe,omitempty"`
	BFRLeft        *BFRReading                 `json:"bfr_left,omitempty" yaml:"bfr_left,omitempty"`
	BFRRight       *BFRReading                 `json:"bfr_right,omitempty" yaml:"bfr_right,omitempty"`
	GamePoints     *float64                    `json:"game_points,omitempty" yaml:"game_points,omitempty"`
}

// ComponentScore is one percentage score with the counts it was derived from.
type ComponentScore struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
	Total int     `json:"total"`
}

// CategoryCounts tallies contractions by display category.
type CategoryCounts struct {
	Good          int `json:"good"`
	AmplitudeOnly int `json:"amplitude_only"`
	DurationOnly  int `json:"duration_only"`
	Poor          int `json:"poor"`
	Rejected      int `json:"rejected"`
	Undefined     int `json:"undefined"`
}

// MuscleScore is the aggregated score for one channel.
type MuscleScore struct {
	Channel    string         `json:"channel"`
	Completion ComponentScore `json:"completion"`
	Intensity  ComponentScore `json:"intensity"`
	Duration   ComponentScore `json:"duration"`
	TotalScore int            `json:"total_score"`

	Expected            int            `json:"expected"`
	GoodCount           int            `json:"good_count"`
	Categories          CategoryCounts `json:"categories"`
	UpstreamFlagCount   int            `json:"upstream_flag_count"`
	AmplitudeThreshold  *float64       `json:"amplitude_threshold,omitempty"`
	DurationThresholdMs float64        `json:"duration_threshold_ms"`
}

// SessionScore is the overall weighted clinical performance score.
// When Available is false only Reason is meaningful.
type SessionScore struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`

	OverallScore         int         `json:"overall_score"`
	ComplianceScore      float64     `json:"compliance_score"`
	LeftMuscle           MuscleScore `json:"left_muscle"`
	RightMuscle          MuscleScore `json:"right_muscle"`
	SymmetryScore        float64     `json:"symmetry_score"`
	EffortScore          float64     `json:"effort_score"`
	EffortAvailable      bool        `json:"effort_available"`
	SafetyGateMultiplier float64     `json:"safety_gate_multiplier"`
	GameScoreNormalized  float64     `json:"game_score_normalized"`
}

// StoredScore is a scored session persisted in history.
type StoredScore struct {
	ID          int64        `json:"-"`
	ScoreID     string       `json:"score_id"`
	PatientID   string       `json:"patient_id,omitempty"`
	SessionCode string       `json:"session_code,omitempty"`
	SourcePath  string       `json:"source_path,omitempty"`
	InputHash   string       `json:"input_hash,omitempty"`
	ScoredAt    time.Time    `json:"scored_at"`
	Score       SessionScore `json:"score"`
}

// HistoryFilter defines filters for history queries.
type HistoryFilter struct {
	PatientID   string
	Since       *time.Time
	Last        int
	TrendWindow int
}
