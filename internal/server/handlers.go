package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/emgscore/internal/engine"
	"github.com/verte-zerg/emgscore/internal/model"
	"github.com/verte-zerg/emgscore/internal/session"
	"github.com/verte-zerg/emgscore/internal/store"
)

// APIError is the error body returned by every endpoint.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"history":   s.engine.Store != nil,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) score(c *gin.Context) {
	save, err := parseBool(c.Query("save"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_query", err)
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	in, err := session.Decode(body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_session", err)
		return
	}
	res, err := s.engine.Score(c.Request.Context(), engine.Request{
		Input:      in,
		SourcePath: "http:" + c.GetString("request_id"),
		Save:       save,
	})
	switch {
	case errors.Is(err, engine.ErrNoStore):
		respondError(c, http.StatusServiceUnavailable, "history_disabled", err)
		return
	case err != nil:
		respondError(c, http.StatusInternalServerError, "score_failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listScores(c *gin.Context) {
	if s.engine.Store == nil {
		respondError(c, http.StatusServiceUnavailable, "history_disabled", engine.ErrNoStore)
		return
	}
	filter := model.HistoryFilter{PatientID: c.Query("patient")}
	if v := c.Query("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "invalid_query", errors.New("last must be a non-negative integer"))
			return
		}
		filter.Last = n
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_query", errors.New("since must be RFC3339"))
			return
		}
		filter.Since = &since
	}
	scores, err := s.engine.Store.ListScores(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "history_failed", err)
		return
	}
	if scores == nil {
		scores = []model.StoredScore{}
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores, "count": len(scores)})
}

func (s *Server) getScore(c *gin.Context) {
	if s.engine.Store == nil {
		respondError(c, http.StatusServiceUnavailable, "history_disabled", engine.ErrNoStore)
		return
	}
	rec, err := s.engine.Store.GetScore(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
		return
	case err != nil:
		respondError(c, http.StatusInternalServerError, "history_failed", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
