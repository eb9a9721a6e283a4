package transcripts

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vocalog/backend/internal/recordings"
	"github.com/vocalog/backend/pkg/response"
)

// Handler handles transcript HTTP endpoints.
type Handler struct {
	repo    *Repository
	recRepo *recordings.Repository
	logger  *zap.Logger
}

// NewHandler creates a transcripts handler.
func NewHandler(repo *Repository, recRepo *recordings.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, recRepo: recRepo, logger: logger}
}

type rowRequest struct {
	Order int `json:"order" binding:"required,gt=0"`
}

type editRowRequest struct {
	TextEdited string `json:"text_edited"`
	Speaker    string `json:"speaker"`
}

// List handles GET /recordings/:id/transcript.
func (h *Handler) List(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	list, err := h.repo.ListByRecording(c.Request.Context(), recordingID)
	if err != nil {
		h.logger.Error("list transcript failed", zap.Error(err), zap.String("recording_id", recordingID.String()))
		response.Internal(c, "failed to load transcript")
		return
	}
	response.OK(c, list)
}

// InsertRow handles POST /recordings/:id/transcript/rows. Duplicates the row
// at the given order into a new row directly below it.
func (h *Handler) InsertRow(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	var req rowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid row order")
		return
	}
	if err := h.repo.InsertAt(c.Request.Context(), recordingID, req.Order); err != nil {
		if errors.Is(err, ErrRowNotFound) {
			response.NotFound(c, "no row at that order")
			return
		}
		h.logger.Error("insert row failed", zap.Error(err), zap.String("recording_id", recordingID.String()), zap.Int("order", req.Order))
		response.Internal(c, "failed to insert row")
		return
	}
	h.markEdited(c, recordingID)
	response.Created(c, gin.H{"order": req.Order + 1})
}

// DeleteRow handles DELETE /recordings/:id/transcript/rows.
func (h *Handler) DeleteRow(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	var req rowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid row order")
		return
	}
	if err := h.repo.DeleteAt(c.Request.Context(), recordingID, req.Order); err != nil {
		if errors.Is(err, ErrRowNotFound) {
			response.NotFound(c, "no row at that order")
			return
		}
		h.logger.Error("delete row failed", zap.Error(err), zap.String("recording_id", recordingID.String()), zap.Int("order", req.Order))
		response.Internal(c, "failed to delete row")
		return
	}
	h.markEdited(c, recordingID)
	response.NoContent(c)
}

// EditRow handles PATCH /recordings/:id/transcript/rows/:order. Updates the
// editable text and speaker label without touching row order.
func (h *Handler) EditRow(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	order, err := strconv.Atoi(c.Param("order"))
	if err != nil || order <= 0 {
		response.BadRequest(c, "invalid row order")
		return
	}
	var req editRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := h.repo.UpdateRow(c.Request.Context(), recordingID, order, req.TextEdited, req.Speaker); err != nil {
		if errors.Is(err, ErrRowNotFound) {
			response.NotFound(c, "no row at that order")
			return
		}
		h.logger.Error("edit row failed", zap.Error(err), zap.String("recording_id", recordingID.String()), zap.Int("order", order))
		response.Internal(c, "failed to edit row")
		return
	}
	h.markEdited(c, recordingID)
	response.NoContent(c)
}

func (h *Handler) markEdited(c *gin.Context, recordingID uuid.UUID) {
	if err := h.recRepo.MarkEdited(c.Request.Context(), recordingID); err != nil {
		h.logger.Warn("mark recording edited failed", zap.Error(err), zap.String("recording_id", recordingID.String()))
	}
}
