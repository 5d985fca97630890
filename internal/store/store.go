// Package store handles SQLite persistence of scored sessions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/emgscore/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrNotFound is returned when a score ID is not in the history.
	ErrNotFound = errors.New("score not found")
	// ErrDuplicate is returned when inserting a score ID that already exists.
	ErrDuplicate = errors.New("score already stored")
)

const (
	sideLeft  = "left"
	sideRight = "right"

	// Fixed-width so text ordering matches time ordering.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store wraps SQLite access for score history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scores (
			id INTEGER PRIMARY KEY,
			score_id TEXT NOT NULL UNIQUE,
			patient_id TEXT NOT NULL,
			session_code TEXT NOT NULL,
			source_path TEXT NOT NULL,
			input_hash TEXT NOT NULL,
			scored_at TEXT NOT NULL,
			available INTEGER NOT NULL,
			reason TEXT NOT NULL,
			overall INTEGER NOT NULL,
			compliance REAL NOT NULL,
			symmetry REAL NOT NULL,
			effort REAL NOT NULL,
			effort_available INTEGER NOT NULL,
			gate REAL NOT NULL,
			game REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS muscle_scores (
			score_id INTEGER NOT NULL,
			side TEXT NOT NULL,
			channel TEXT NOT NULL,
			completion REAL NOT NULL,
			completion_count INTEGER NOT NULL,
			completion_total INTEGER NOT NULL,
			intensity REAL NOT NULL,
			intensity_count INTEGER NOT NULL,
			intensity_total INTEGER NOT NULL,
			duration REAL NOT NULL,
			duration_count INTEGER NOT NULL,
			duration_total INTEGER NOT NULL,
			total INTEGER NOT NULL,
			expected INTEGER NOT NULL,
			good_count INTEGER NOT NULL,
			cat_good INTEGER NOT NULL,
			cat_amplitude_only INTEGER NOT NULL,
			cat_duration_only INTEGER NOT NULL,
			cat_poor INTEGER NOT NULL,
			cat_rejected INTEGER NOT NULL DEFAULT 0,
			cat_undefined INTEGER NOT NULL,
			upstream_flags INTEGER NOT NULL,
			amplitude_threshold REAL,
			duration_threshold_ms REAL NOT NULL,
			PRIMARY KEY (score_id, side)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_scored_at ON scores(scored_at);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_patient ON scores(patient_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return s.ensureColumn("muscle_scores", "cat_rejected", "INTEGER NOT NULL DEFAULT 0")
}

// ensureColumn adds a column missing from a table created by an older version.
func (s *Store) ensureColumn(table, column, decl string) error {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return err
	}
	found := false
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			_ = rows.Close()
			return err
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if found {
		return nil
	}
	_, err = s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}

// InsertScore stores a scored session and its per-muscle breakdown. A missing
// ScoreID is generated and a zero ScoredAt is set to now. The stored record is
// returned with ID populated.
func (s *Store) InsertScore(ctx context.Context, rec model.StoredScore) (model.StoredScore, error) {
	if rec.ScoreID == "" {
		rec.ScoreID = uuid.NewString()
	}
	if rec.ScoredAt.IsZero() {
		rec.ScoredAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM scores WHERE score_id = ?`, rec.ScoreID).Scan(&exists)
	if err != nil {
		return rec, err
	}
	if exists > 0 {
		err = fmt.Errorf("%w: %s", ErrDuplicate, rec.ScoreID)
		return rec, err
	}

	sc := rec.Score
	res, err := tx.ExecContext(ctx,
		`INSERT INTO scores (score_id, patient_id, session_code, source_path, input_hash, scored_at, available, reason, overall, compliance, symmetry, effort, effort_available, gate, game)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ScoreID,
		rec.PatientID,
		rec.SessionCode,
		rec.SourcePath,
		rec.InputHash,
		rec.ScoredAt.UTC().Format(timeLayout),
		boolInt(sc.Available),
		sc.Reason,
		sc.OverallScore,
		sc.ComplianceScore,
		sc.SymmetryScore,
		sc.EffortScore,
		boolInt(sc.EffortAvailable),
		sc.SafetyGateMultiplier,
		sc.GameScoreNormalized,
	)
	if err != nil {
		return rec, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return rec, err
	}

	if sc.Available {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO muscle_scores (score_id, side, channel, completion, completion_count, completion_total, intensity, intensity_count, intensity_total, duration, duration_count, duration_total, total, expected, good_count, cat_good, cat_amplitude_only, cat_duration_only, cat_poor, cat_rejected, cat_undefined, upstream_flags, amplitude_threshold, duration_threshold_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return rec, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, side := range []struct {
			name string
			m    model.MuscleScore
		}{{sideLeft, sc.LeftMuscle}, {sideRight, sc.RightMuscle}} {
			m := side.m
			var amp sql.NullFloat64
			if m.AmplitudeThreshold != nil {
				amp = sql.NullFloat64{Float64: *m.AmplitudeThreshold, Valid: true}
			}
			_, err = stmt.ExecContext(ctx, id, side.name, m.Channel,
				m.Completion.Value, m.Completion.Count, m.Completion.Total,
				m.Intensity.Value, m.Intensity.Count, m.Intensity.Total,
				m.Duration.Value, m.Duration.Count, m.Duration.Total,
				m.TotalScore, m.Expected, m.GoodCount,
				m.Categories.Good, m.Categories.AmplitudeOnly, m.Categories.DurationOnly, m.Categories.Poor, m.Categories.Rejected, m.Categories.Undefined,
				m.UpstreamFlagCount, amp, m.DurationThresholdMs,
			)
			if err != nil {
				return rec, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return rec, err
	}
	rec.ID = id
	return rec, nil
}

const scoreColumns = `id, score_id, patient_id, session_code, source_path, input_hash, scored_at, available, reason, overall, compliance, symmetry, effort, effort_available, gate, game`

// GetScore loads one stored score by its score ID.
func (s *Store) GetScore(ctx context.Context, scoreID string) (model.StoredScore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scoreColumns+` FROM scores WHERE score_id = ?`, scoreID)
	rec, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredScore{}, fmt.Errorf("%w: %s", ErrNotFound, scoreID)
	}
	if err != nil {
		return model.StoredScore{}, err
	}
	recs := []model.StoredScore{rec}
	if err := s.attachMuscles(ctx, recs); err != nil {
		return model.StoredScore{}, err
	}
	return recs[0], nil
}

// ListScores returns stored scores matching the filter, oldest first. Last
// keeps only the most recent N.
func (s *Store) ListScores(ctx context.Context, filter model.HistoryFilter) ([]model.StoredScore, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.PatientID != "" {
		clauses = append(clauses, "patient_id = ?")
		args = append(args, filter.PatientID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "scored_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	limit := -1
	if filter.Last > 0 {
		limit = filter.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM (
			SELECT %s FROM scores
			WHERE %s
			ORDER BY scored_at DESC, id DESC
			LIMIT ?
		) ORDER BY scored_at ASC, id ASC`, scoreColumns, scoreColumns, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.StoredScore
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachMuscles(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScore(row scanner) (model.StoredScore, error) {
	var rec model.StoredScore
	var scoredAt string
	var available, effortAvailable int
	sc := &rec.Score
	if err := row.Scan(&rec.ID, &rec.ScoreID, &rec.PatientID, &rec.SessionCode, &rec.SourcePath, &rec.InputHash,
		&scoredAt, &available, &sc.Reason, &sc.OverallScore, &sc.ComplianceScore, &sc.SymmetryScore,
		&sc.EffortScore, &effortAvailable, &sc.SafetyGateMultiplier, &sc.GameScoreNormalized); err != nil {
		return model.StoredScore{}, err
	}
	parsed, err := time.Parse(timeLayout, scoredAt)
	if err != nil {
		return model.StoredScore{}, err
	}
	rec.ScoredAt = parsed
	sc.Available = available != 0
	sc.EffortAvailable = effortAvailable != 0
	return rec, nil
}

// muscleBatchSize bounds the IN list per query, well under SQLite's limit
// on bound variables.
const muscleBatchSize = 500

// attachMuscles fills LeftMuscle and RightMuscle for the given records.
func (s *Store) attachMuscles(ctx context.Context, recs []model.StoredScore) error {
	index := make(map[int64]int, len(recs))
	for i, rec := range recs {
		index[rec.ID] = i
	}
	for start := 0; start < len(recs); start += muscleBatchSize {
		end := start + muscleBatchSize
		if end > len(recs) {
			end = len(recs)
		}
		if err := s.attachMuscleBatch(ctx, recs, recs[start:end], index); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) attachMuscleBatch(ctx context.Context, recs, batch []model.StoredScore, index map[int64]int) error {
	placeholders := make([]string, len(batch))
	args := make([]any, len(batch))
	for i, rec := range batch {
		placeholders[i] = "?"
		args[i] = rec.ID
	}
	query := fmt.Sprintf(`SELECT score_id, side, channel, completion, completion_count, completion_total,
		intensity, intensity_count, intensity_total, duration, duration_count, duration_total,
		total, expected, good_count, cat_good, cat_amplitude_only, cat_duration_only, cat_poor, cat_rejected, cat_undefined,
		upstream_flags, amplitude_threshold, duration_threshold_ms
		FROM muscle_scores
		WHERE score_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var id int64
		var side string
		var amp sql.NullFloat64
		var m model.MuscleScore
		if err := rows.Scan(&id, &side, &m.Channel,
			&m.Completion.Value, &m.Completion.Count, &m.Completion.Total,
			&m.Intensity.Value, &m.Intensity.Count, &m.Intensity.Total,
			&m.Duration.Value, &m.Duration.Count, &m.Duration.Total,
			&m.TotalScore, &m.Expected, &m.GoodCount,
			&m.Categories.Good, &m.Categories.AmplitudeOnly, &m.Categories.DurationOnly, &m.Categories.Poor,
			&m.Categories.Rejected, &m.Categories.Undefined,
			&m.UpstreamFlagCount, &amp, &m.DurationThresholdMs); err != nil {
			return err
		}
		if amp.Valid {
			v := amp.Float64
			m.AmplitudeThreshold = &v
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		switch side {
		case sideLeft:
			recs[i].Score.LeftMuscle = m
		case sideRight:
			recs[i].Score.RightMuscle = m
		}
	}
	return rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
