// Package engine runs one scoring pass: score, fingerprint, log and
// optionally persist. The CLI, watch mode and HTTP adapter share it.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/emgscore/internal/logger"
	"github.com/verte-zerg/emgscore/internal/model"
	"github.com/verte-zerg/emgscore/internal/scoring"
	"github.com/verte-zerg/emgscore/internal/session"
	"github.com/verte-zerg/emgscore/internal/store"
)

// ErrNoStore is returned when saving is requested without a history store.
var ErrNoStore = errors.New("history store not configured")

// Engine scores session inputs against a fixed configuration.
type Engine struct {
	Config model.SessionConfiguration
	Effort scoring.EffortFunc
	Store  *store.Store
	Log    *logger.Logger
}

// Request is one scoring pass.
type Request struct {
	Input      model.SessionInput
	SourcePath string
	Save       bool
}

// Result is the outcome of a scoring pass.
type Result struct {
	Score     model.SessionScore `json:"score"`
	Feedback  []string           `json:"feedback"`
	InputHash string             `json:"input_hash"`
	ScoreID   string             `json:"score_id,omitempty"`
}

// Hash fingerprints the input together with the engine configuration.
func (e *Engine) Hash(in model.SessionInput) (string, error) {
	return session.Hash(in, e.Config)
}

// Score runs the scorer. With Save set the result is stored and ScoreID is
// filled in.
func (e *Engine) Score(ctx context.Context, req Request) (Result, error) {
	hash, err := e.Hash(req.Input)
	if err != nil {
		return Result{}, err
	}
	score := scoring.Score(req.Input, e.Config, e.Effort)
	e.logScore(req, score)

	res := Result{
		Score:     score,
		Feedback:  scoring.Feedback(score),
		InputHash: hash,
	}
	if !req.Save {
		return res, nil
	}
	if e.Store == nil {
		return res, ErrNoStore
	}
	rec, err := e.Store.InsertScore(ctx, model.StoredScore{
		PatientID:   req.Input.PatientID,
		SessionCode: req.Input.SessionCode,
		SourcePath:  req.SourcePath,
		InputHash:   hash,
		Score:       score,
	})
	if err != nil {
		return res, fmt.Errorf("save score: %w", err)
	}
	res.ScoreID = rec.ScoreID
	e.logger().Info("score saved", "score_id", rec.ScoreID, "patient", req.Input.PatientID)
	return res, nil
}

func (e *Engine) logger() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

// logScore reports undefined criteria separately from failed ones.
func (e *Engine) logScore(req Request, s model.SessionScore) {
	log := e.logger()
	if req.SourcePath != "" {
		log = log.With("source", req.SourcePath)
	}
	if !s.Available {
		log.Warn("score unavailable", "reason", s.Reason, "channels", session.Summary(req.Input))
		return
	}
	for _, m := range []model.MuscleScore{s.LeftMuscle, s.RightMuscle} {
		if m.Categories.Undefined > 0 {
			log.Warn("criterion undefined", "channel", m.Channel, "criterion", "amplitude",
				"contractions", m.Categories.Undefined)
		}
		log.Debug("muscle scored",
			"channel", m.Channel,
			"total", m.TotalScore,
			"good", m.GoodCount,
			"expected", m.Expected,
			"upstream_flags", m.UpstreamFlagCount,
		)
	}
	log.Debug("session scored", "overall", s.OverallScore, "gate", s.SafetyGateMultiplier)
}
