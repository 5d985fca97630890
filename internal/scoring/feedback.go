package scoring

import (
	"fmt"

	"github.com/verte-zerg/emgscore/internal/model"
)

const asymmetryWarningBelow = 80.0

// Feedback builds short clinical summary lines for a scored session.
func Feedback(s model.SessionScore) []string {
	if !s.Available {
		return []string{fmt.Sprintf("Score unavailable: %s", s.Reason)}
	}
	var lines []string
	for _, side := range []struct {
		label string
		m     model.MuscleScore
	}{
		{"Left", s.LeftMuscle},
		{"Right", s.RightMuscle},
	} {
		lines = append(lines, muscleFeedback(side.label, side.m)...)
	}
	if s.SymmetryScore < asymmetryWarningBelow {
		lines = append(lines, fmt.Sprintf("Asymmetry: symmetry %.0f%% (left %d vs right %d)",
			s.SymmetryScore, s.LeftMuscle.TotalScore, s.RightMuscle.TotalScore))
	}
	if !s.EffortAvailable {
		lines = append(lines, "No post-session RPE recorded; effort scored 0 and its weight still counts, capping the overall score")
	}
	if s.SafetyGateMultiplier == 0 {
		lines = append(lines, "BFR pressure out of range: overall score gated to 0")
	}
	return lines
}

func muscleFeedback(label string, m model.MuscleScore) []string {
	name := label
	if m.Channel != "" {
		name = fmt.Sprintf("%s (%s)", label, m.Channel)
	}
	var lines []string
	if m.Expected > 0 {
		lines = append(lines, fmt.Sprintf("%s: %d/%d contractions completed, %d good",
			name, m.Completion.Count, m.Expected, m.GoodCount))
	} else {
		lines = append(lines, fmt.Sprintf("%s: %d contractions, %d good (no target set)",
			name, m.Completion.Count, m.GoodCount))
	}
	if m.Categories.Undefined > 0 {
		lines = append(lines, fmt.Sprintf("%s: MVC threshold undefined for %d contractions", name, m.Categories.Undefined))
	} else if below := m.Intensity.Total - m.Intensity.Count; below > 0 {
		lines = append(lines, fmt.Sprintf("%s: %d below MVC threshold", name, below))
	}
	if short := m.Duration.Total - m.Duration.Count; short > 0 {
		lines = append(lines, fmt.Sprintf("%s: %d shorter than %.0f ms", name, short, m.DurationThresholdMs))
	}
	return lines
}
