package report

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/emgscore/internal/model"
	"github.com/verte-zerg/emgscore/internal/store"
)

// DefaultTrendWindow is the moving-average window used for history curves.
const DefaultTrendWindow = 5

// Report contains precomputed data for history rendering.
type Report struct {
	Scores []model.StoredScore
	Trend  Trend
	Window int
}

// BuildReport loads scores matching the filter and summarizes them.
func BuildReport(ctx context.Context, st *store.Store, filter model.HistoryFilter) (Report, error) {
	scores, err := st.ListScores(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	window := filter.TrendWindow
	if window <= 0 {
		window = DefaultTrendWindow
	}
	return Report{
		Scores: scores,
		Trend:  SummarizeTrend(scores, window),
		Window: window,
	}, nil
}

// RenderHistory prints the trend summary, a session table and score curves.
// totalWidth of 0 fits the terminal.
func RenderHistory(w io.Writer, r Report, totalWidth int, useColor bool) error {
	if len(r.Scores) == 0 {
		_, err := fmt.Fprintln(w, "No scored sessions found.")
		return err
	}
	if err := RenderTrend(w, r.Trend); err != nil {
		return err
	}
	for _, line := range SessionRows(r.Scores) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	overall := OverallSeries(r.Scores)
	if len(overall) < 2 {
		return nil
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	if err := PlotScores(w, fmt.Sprintf("Overall score (moving average, window %d)", r.Window), []Series{
		{Name: "Overall", Values: overall},
		{Name: "Average", Values: MovingAverage(overall, r.Window)},
	}, width, 0, useColor); err != nil {
		return err
	}
	return PlotScores(w, "Components", ComponentSeries(r.Scores), width, 0, useColor)
}

// RenderTrend prints the trend summary block.
func RenderTrend(w io.Writer, t Trend) error {
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d (%d scored)", t.Sessions, t.Available),
	}
	if t.Available > 0 {
		lines = append(lines,
			fmt.Sprintf("Mean overall: %.1f", t.Mean),
			fmt.Sprintf("Best overall: %d", t.Best),
			fmt.Sprintf("Latest overall: %d (%+.1f vs recent average)", t.Latest, t.Change),
		)
	}
	if t.GatedToZero > 0 {
		lines = append(lines, fmt.Sprintf("Gated by BFR safety: %d", t.GatedToZero))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// SessionRows formats the per-session history table.
func SessionRows(scores []model.StoredScore) []string {
	headers := []string{"Scored", "Patient", "Session", "Overall", "Compliance", "Symmetry", "Effort", "Game", "L/R"}
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		row := []string{
			s.ScoredAt.Local().Format("2006-01-02 15:04"),
			dash(s.PatientID),
			dash(s.SessionCode),
		}
		if !s.Score.Available {
			row = append(row, "n/a", "", "", "", "", "")
		} else {
			sc := s.Score
			row = append(row,
				fmt.Sprintf("%d", sc.OverallScore),
				fmt.Sprintf("%.1f", sc.ComplianceScore),
				fmt.Sprintf("%.1f", sc.SymmetryScore),
				fmt.Sprintf("%.0f", sc.EffortScore),
				fmt.Sprintf("%.0f", sc.GameScoreNormalized),
				fmt.Sprintf("%d/%d", sc.LeftMuscle.TotalScore, sc.RightMuscle.TotalScore),
			)
		}
		rows = append(rows, row)
	}
	return formatTable(headers, rows, map[int]bool{3: true, 4: true, 5: true, 6: true, 7: true, 8: true})
}

func dash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
