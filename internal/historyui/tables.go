package historyui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/emgscore/internal/model"
)

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "Scored", Width: 16},
		{Title: "Patient", Width: 10},
		{Title: "Session", Width: 10},
		{Title: "Overall", Width: 7},
		{Title: "Compl.", Width: 6},
		{Title: "Symm.", Width: 6},
		{Title: "Effort", Width: 6},
		{Title: "Game", Width: 5},
		{Title: "Gate", Width: 4},
	}
}

func muscleColumns() []table.Column {
	return []table.Column{
		{Title: "Scored", Width: 16},
		{Title: "Side", Width: 5},
		{Title: "Channel", Width: 8},
		{Title: "Done", Width: 7},
		{Title: "Compl.", Width: 6},
		{Title: "Int.", Width: 6},
		{Title: "Dur.", Width: 6},
		{Title: "Total", Width: 5},
		{Title: "G/A/D/P/R/U", Width: 16},
	}
}

func newTable(cols []table.Column) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// sessionRows lists scores newest first.
func sessionRows(scores []model.StoredScore) []table.Row {
	rows := make([]table.Row, 0, len(scores))
	for i := len(scores) - 1; i >= 0; i-- {
		s := scores[i]
		row := table.Row{
			s.ScoredAt.Local().Format("2006-01-02 15:04"),
			orDash(s.PatientID),
			orDash(s.SessionCode),
		}
		if !s.Score.Available {
			row = append(row, "n/a", "", "", "", "", "")
			rows = append(rows, row)
			continue
		}
		sc := s.Score
		gate := "ok"
		if sc.SafetyGateMultiplier == 0 {
			gate = "FAIL"
		}
		row = append(row,
			strconv.Itoa(sc.OverallScore),
			fmt.Sprintf("%.1f", sc.ComplianceScore),
			fmt.Sprintf("%.1f", sc.SymmetryScore),
			fmt.Sprintf("%.0f", sc.EffortScore),
			fmt.Sprintf("%.0f", sc.GameScoreNormalized),
			gate,
		)
		rows = append(rows, row)
	}
	return rows
}

// muscleRows lists both muscles of every available score, newest first.
func muscleRows(scores []model.StoredScore) []table.Row {
	rows := make([]table.Row, 0, len(scores)*2)
	for i := len(scores) - 1; i >= 0; i-- {
		s := scores[i]
		if !s.Score.Available {
			continue
		}
		when := s.ScoredAt.Local().Format("2006-01-02 15:04")
		for _, side := range []struct {
			label string
			m     model.MuscleScore
		}{{"L", s.Score.LeftMuscle}, {"R", s.Score.RightMuscle}} {
			m := side.m
			rows = append(rows, table.Row{
				when,
				side.label,
				m.Channel,
				fmt.Sprintf("%d/%d", m.Completion.Count, m.Expected),
				fmt.Sprintf("%.1f", m.Completion.Value),
				fmt.Sprintf("%.1f", m.Intensity.Value),
				fmt.Sprintf("%.1f", m.Duration.Value),
				strconv.Itoa(m.TotalScore),
				fmt.Sprintf("%d/%d/%d/%d/%d/%d", m.Categories.Good, m.Categories.AmplitudeOnly,
					m.Categories.DurationOnly, m.Categories.Poor, m.Categories.Rejected, m.Categories.Undefined),
			})
		}
	}
	return rows
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
