package scoring

import "math"

// EffortFunc maps a post-session RPE rating (0-10) to a 0-100 effort score.
type EffortFunc func(rpe float64) float64

// EffortTable maps integer RPE ratings to scores. Ratings missing from the
// table score 0.
type EffortTable map[int]float64

// DefaultEffortTable rewards the moderate-exertion band 4-6.
var DefaultEffortTable = EffortTable{
	0: 20, 1: 20,
	2: 60,
	3: 80,
	4: 100, 5: 100, 6: 100,
	7: 80,
	8: 60,
	9: 20, 10: 20,
}

// Func returns an EffortFunc backed by the table. RPE is rounded to the
// nearest integer first; a rounded rating outside 0-10 scores 0, so 10.4
// counts as 10 and 10.5 is out of range.
func (t EffortTable) Func() EffortFunc {
	return func(rpe float64) float64 {
		if math.IsNaN(rpe) || math.IsInf(rpe, 0) {
			return 0
		}
		r := math.Round(rpe)
		if r < 0 || r > 10 {
			return 0
		}
		return clamp(t[int(r)], 0, 100)
	}
}

// DefaultEffortScore scores rpe with DefaultEffortTable.
func DefaultEffortScore(rpe float64) float64 {
	return DefaultEffortTable.Func()(rpe)
}
