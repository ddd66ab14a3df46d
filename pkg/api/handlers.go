package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codegraph-labs/justify/pkg/justify"
	"github.com/codegraph-labs/justify/pkg/queue"
)

// defaultSearchLimit bounds GET /search and GET /clarifications when the
// caller doesn't supply a limit.
const defaultSearchLimit = 50

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// createRunHandler handles POST /runs: enqueues a pending justify_runs row
// for a worker to pick up (spec.md §6 justify_project).
func (s *Server) createRunHandler(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	defaults := justify.DefaultOptions()
	opts := req.toOptions(&defaults)

	optionsJSON, err := json.Marshal(opts)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	runID, err := queue.EnqueueRun(c.Request.Context(), s.db, req.ProjectRoot, optionsJSON)
	if err != nil {
		slog.Error("Failed to enqueue run", "error", err)
		respondError(c, http.StatusInternalServerError, errors.New("failed to enqueue run"))
		return
	}

	c.JSON(http.StatusAccepted, CreateRunResponse{RunID: runID, Status: string(queue.RunStatusPending)})
}

// getRunHandler handles GET /runs/:id.
func (s *Server) getRunHandler(c *gin.Context) {
	id := c.Param("id")
	run, ok, err := queue.GetRun(c.Request.Context(), s.db, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, errors.New("run not found"))
		return
	}
	c.JSON(http.StatusOK, runToResponse(run))
}

// getRunProgressHandler handles GET /runs/:id/progress, reporting the most
// recently emitted justify.ProgressEvent for a run still executing on this
// pod. Progress is purely informational (spec.md §6) and not persisted, so
// a run claimed by a different pod, or one that never started, has none.
func (s *Server) getRunProgressHandler(c *gin.Context) {
	id := c.Param("id")

	if s.broadcaster == nil {
		respondError(c, http.StatusNotFound, errors.New("no progress recorded for run"))
		return
	}

	ev, ok := s.broadcaster.LatestProgress(id)
	if !ok {
		respondError(c, http.StatusNotFound, errors.New("no progress recorded for run"))
		return
	}

	c.JSON(http.StatusOK, ProgressResponse{
		Phase:         string(ev.Phase),
		Current:       ev.Current,
		Total:         ev.Total,
		CurrentEntity: ev.CurrentEntity,
		Message:       ev.Message,
	})
}

// cancelRunHandler handles POST /runs/:id/cancel. A run still pending
// (unclaimed) is cancelled directly in the database; a run already
// claimed by this pod is cancelled via the pool's cancel registry. A run
// claimed by a different pod cannot be cancelled from here.
func (s *Server) cancelRunHandler(c *gin.Context) {
	id := c.Param("id")

	cancelled, err := queue.CancelPendingRun(c.Request.Context(), s.db, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if cancelled {
		c.JSON(http.StatusOK, CancelRunResponse{RunID: id, Message: "run cancelled"})
		return
	}

	if s.pool != nil && s.pool.CancelRun(id) {
		c.JSON(http.StatusAccepted, CancelRunResponse{RunID: id, Message: "cancellation requested"})
		return
	}

	run, ok, err := queue.GetRun(c.Request.Context(), s.db, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, errors.New("run not found"))
		return
	}
	respondError(c, http.StatusConflict, errors.New("run is not cancellable: status="+string(run.Status)))
}

// getEntityJustificationHandler handles GET /entities/:id/justification.
func (s *Server) getEntityJustificationHandler(c *gin.Context) {
	id := c.Param("id")
	j, ok, err := s.pipeline.GetJustification(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, errors.New("no justification for entity"))
		return
	}
	c.JSON(http.StatusOK, j)
}

// searchHandler handles GET /search?q=&limit=.
func (s *Server) searchHandler(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		respondError(c, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	limit := parseLimit(c, defaultSearchLimit)

	results, err := s.pipeline.SearchJustifications(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// listClarificationsHandler handles GET /clarifications?limit=.
func (s *Server) listClarificationsHandler(c *gin.Context) {
	limit := parseLimit(c, defaultSearchLimit)

	pending, err := s.pipeline.GetNextClarificationBatch(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clarifications": pending})
}

// answerClarificationHandler handles POST /clarifications/:id/answer. :id
// is the entity id (clarifications are one-per-justification, keyed by
// entity, not a separate clarification id — spec.md §6 apply_clarification_answers).
func (s *Server) answerClarificationHandler(c *gin.Context) {
	entityID := c.Param("id")

	var req AnswerClarificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.pipeline.ApplyClarificationAnswers(c.Request.Context(), entityID, req.Answers); err != nil {
		if isEntityNotFound(err) {
			respondError(c, http.StatusNotFound, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
