package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/emgscore/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

func sampleScore(patient string, overall int, at time.Time) model.StoredScore {
	amp := 0.75
	return model.StoredScore{
		PatientID:   patient,
		SessionCode: "S1",
		SourcePath:  "/tmp/s1.yaml",
		InputHash:   "abc",
		ScoredAt:    at,
		Score: model.SessionScore{
			Available:            true,
			OverallScore:         overall,
			ComplianceScore:      91.5,
			SymmetryScore:        90.7,
			EffortScore:          100,
			EffortAvailable:      true,
			SafetyGateMultiplier: 1,
			GameScoreNormalized:  60,
			LeftMuscle: model.MuscleScore{
				Channel:             "CH1",
				Completion:          model.ComponentScore{Value: 100, Count: 12, Total: 12},
				Intensity:           model.ComponentScore{Value: 100, Count: 12, Total: 12},
				Duration:            model.ComponentScore{Value: 100, Count: 12, Total: 12},
				TotalScore:          100,
				Expected:            12,
				GoodCount:           12,
				Categories:          model.CategoryCounts{Good: 12},
				AmplitudeThreshold:  &amp,
				DurationThresholdMs: 2000,
			},
			RightMuscle: model.MuscleScore{
				Channel:             "CH2",
				Completion:          model.ComponentScore{Value: 50, Count: 6, Total: 12},
				TotalScore:          83,
				Expected:            12,
				GoodCount:           6,
				Categories:          model.CategoryCounts{Good: 6, Rejected: 2, Undefined: 1},
				DurationThresholdMs: 2000,
			},
		},
	}
}

func TestInsertAndGetScore(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rec, err := st.InsertScore(ctx, sampleScore("P1", 88, at))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ScoreID == "" || rec.ID == 0 {
		t.Fatalf("expected generated identifiers, got %+v", rec)
	}

	got, err := st.GetScore(ctx, rec.ScoreID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ScoredAt.Equal(at) {
		t.Fatalf("scored_at mismatch: %v", got.ScoredAt)
	}
	if got.Score.OverallScore != 88 || !got.Score.Available || !got.Score.EffortAvailable {
		t.Fatalf("score fields mismatch: %+v", got.Score)
	}
	left := got.Score.LeftMuscle
	if left.Channel != "CH1" || left.TotalScore != 100 || left.Categories.Good != 12 {
		t.Fatalf("left muscle mismatch: %+v", left)
	}
	if left.AmplitudeThreshold == nil || *left.AmplitudeThreshold != 0.75 {
		t.Fatalf("amplitude threshold not restored")
	}
	right := got.Score.RightMuscle
	if right.AmplitudeThreshold != nil {
		t.Fatalf("expected nil amplitude threshold on right")
	}
	if right.Completion.Count != 6 || right.Categories.Undefined != 1 || right.Categories.Rejected != 2 {
		t.Fatalf("right muscle mismatch: %+v", right)
	}
}

func TestGetScoreNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetScore(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertDuplicateScoreID(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	rec := sampleScore("P1", 70, time.Now())
	rec.ScoreID = "fixed-id"
	if _, err := st.InsertScore(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.InsertScore(ctx, rec); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestInsertUnavailableScore(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	rec, err := st.InsertScore(ctx, model.StoredScore{
		PatientID: "P1",
		Score:     model.SessionScore{Available: false, Reason: "insufficient_channels"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := st.GetScore(ctx, rec.ScoreID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score.Available || got.Score.Reason != "insufficient_channels" {
		t.Fatalf("unexpected score: %+v", got.Score)
	}
}

func TestListScoresFilters(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range []string{"P1", "P2", "P1", "P1"} {
		if _, err := st.InsertScore(ctx, sampleScore(p, 60+i, base.Add(time.Duration(i)*24*time.Hour))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := st.ListScores(ctx, model.HistoryFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 scores, got %d", len(all))
	}
	if all[0].Score.OverallScore != 60 || all[3].Score.OverallScore != 63 {
		t.Fatalf("expected oldest first ordering")
	}
	if all[3].Score.RightMuscle.Channel != "CH2" {
		t.Fatalf("expected muscles attached on list")
	}

	p1, err := st.ListScores(ctx, model.HistoryFilter{PatientID: "P1", Last: 2})
	if err != nil {
		t.Fatalf("list p1: %v", err)
	}
	if len(p1) != 2 || p1[0].Score.OverallScore != 62 || p1[1].Score.OverallScore != 63 {
		t.Fatalf("unexpected last-2 for P1: %+v", p1)
	}

	since := base.Add(36 * time.Hour)
	recent, err := st.ListScores(ctx, model.HistoryFilter{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 scores since %v, got %d", since, len(recent))
	}
}

func TestListScoresBeyondBindLimit(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	first, err := st.InsertScore(ctx, sampleScore("P1", 40, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}

	const bulk = 33000
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scores (score_id, patient_id, session_code, source_path, input_hash, scored_at, available, reason, overall, compliance, symmetry, effort, effort_available, gate, game)
		VALUES (?, 'P1', '', '', '', ?, 0, 'insufficient', 0, 0, 0, 0, 0, 0, 0)`)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < bulk; i++ {
		at := base.Add(time.Duration(i) * time.Second).Format(timeLayout)
		if _, err := stmt.ExecContext(ctx, fmt.Sprintf("bulk-%d", i), at); err != nil {
			t.Fatalf("bulk insert %d: %v", i, err)
		}
	}
	if err := stmt.Close(); err != nil {
		t.Fatalf("close stmt: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	last, err := st.InsertScore(ctx, sampleScore("P1", 90, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("insert last: %v", err)
	}

	got, err := st.ListScores(ctx, model.HistoryFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != bulk+2 {
		t.Fatalf("expected %d scores, got %d", bulk+2, len(got))
	}
	if got[0].ScoreID != first.ScoreID || got[0].Score.LeftMuscle.Channel != "CH1" {
		t.Fatalf("first score muscles missing: %+v", got[0].Score.LeftMuscle)
	}
	end := got[len(got)-1]
	if end.ScoreID != last.ScoreID || end.Score.RightMuscle.Channel != "CH2" {
		t.Fatalf("last score muscles missing: %+v", end.Score.RightMuscle)
	}
}

func TestOpenAddsRejectedColumnToOlderDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE muscle_scores (score_id INTEGER NOT NULL, side TEXT NOT NULL, cat_poor INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create old table: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	}()
	var n int
	if err := st.db.QueryRow(`SELECT COUNT(1) FROM pragma_table_info('muscle_scores') WHERE name = 'cat_rejected'`).Scan(&n); err != nil {
		t.Fatalf("table info: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected cat_rejected column after open")
	}
}
