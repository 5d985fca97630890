package report

import (
	"fmt"
	"io"

	"github.com/verte-zerg/emgscore/internal/model"
	"github.com/verte-zerg/emgscore/internal/scoring"
)

// RenderSessionScore prints the score card for one session: the overall
// score, each component, the per-muscle breakdown and feedback lines.
func RenderSessionScore(w io.Writer, s model.SessionScore) error {
	if !s.Available {
		_, err := fmt.Fprintf(w, "Score unavailable: %s\n", s.Reason)
		return err
	}
	lines := []string{
		fmt.Sprintf("Overall score: %d/100", s.OverallScore),
		"",
	}
	effort := fmt.Sprintf("%.1f", s.EffortScore)
	if !s.EffortAvailable {
		effort += " (no RPE)"
	}
	gate := "pass"
	if s.SafetyGateMultiplier == 0 {
		gate = "FAIL"
	}
	lines = append(lines, formatTable(
		[]string{"Component", "Score"},
		[][]string{
			{"Compliance", fmt.Sprintf("%.1f", s.ComplianceScore)},
			{"Symmetry", fmt.Sprintf("%.1f", s.SymmetryScore)},
			{"Effort", effort},
			{"Game", fmt.Sprintf("%.1f", s.GameScoreNormalized)},
			{"BFR safety gate", gate},
		},
		map[int]bool{1: true},
	)...)
	lines = append(lines, "")
	lines = append(lines, muscleTable(s.LeftMuscle, s.RightMuscle)...)
	if fb := scoring.Feedback(s); len(fb) > 0 {
		lines = append(lines, "", "Feedback")
		for _, line := range fb {
			lines = append(lines, "  - "+line)
		}
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func muscleTable(left, right model.MuscleScore) []string {
	headers := []string{"Side", "Channel", "Done", "Completion", "Intensity", "Duration", "Total", "Categories (G/A/D/P/R/U)"}
	rows := make([][]string, 0, 2)
	for _, side := range []struct {
		label string
		m     model.MuscleScore
	}{{"Left", left}, {"Right", right}} {
		m := side.m
		rows = append(rows, []string{
			side.label,
			m.Channel,
			fmt.Sprintf("%d/%d", m.Completion.Count, m.Expected),
			fmt.Sprintf("%.1f", m.Completion.Value),
			fmt.Sprintf("%.1f", m.Intensity.Value),
			fmt.Sprintf("%.1f", m.Duration.Value),
			fmt.Sprintf("%d", m.TotalScore),
			fmt.Sprintf("%d/%d/%d/%d/%d/%d", m.Categories.Good, m.Categories.AmplitudeOnly,
				m.Categories.DurationOnly, m.Categories.Poor, m.Categories.Rejected, m.Categories.Undefined),
		})
	}
	return formatTable(headers, rows, map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true})
}
