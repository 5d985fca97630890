package scoring

import (
	"math"

	"github.com/verte-zerg/emgscore/internal/model"
)

const (
	// DefaultBFRMinAOPPercent and DefaultBFRMaxAOPPercent bound the compliant
	// cuff pressure as a percentage of arterial occlusion pressure.
	DefaultBFRMinAOPPercent = 45.0
	DefaultBFRMaxAOPPercent = 55.0
)

// SafetyGate returns 1 when every measured side is compliant and 0 otherwise.
// Unmeasured sides carry no penalty, so no data at all yields 1.
func SafetyGate(left, right *model.BFRReading, cfg model.SessionConfiguration) float64 {
	for _, r := range []*model.BFRReading{left, right} {
		compliant, measured := bfrCompliant(r, cfg)
		if measured && !compliant {
			return 0
		}
	}
	return 1
}

func bfrCompliant(r *model.BFRReading, cfg model.SessionConfiguration) (compliant, measured bool) {
	if r == nil {
		return false, false
	}
	if r.Compliant != nil {
		return *r.Compliant, true
	}
	if r.PressureAOPPercent == nil {
		return false, false
	}
	lo, hi := cfg.BFRMinAOPPercent, cfg.BFRMaxAOPPercent
	if lo == 0 && hi == 0 {
		lo, hi = DefaultBFRMinAOPPercent, DefaultBFRMaxAOPPercent
	}
	p := *r.PressureAOPPercent
	return p >= lo && p <= hi, true
}

// NormalizeGameScore rescales raw game points into 0-100 using the
// configured bounds. Absent points or degenerate bounds score 0.
func NormalizeGameScore(points *float64, minPoints, maxPoints float64) float64 {
	if points == nil || math.IsNaN(*points) {
		return 0
	}
	span := maxPoints - minPoints
	if span <= 0 {
		return 0
	}
	return clamp((*points-minPoints)/span*100, 0, 100)
}
