package recordings

import (
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vocalog/backend/internal/models"
	"github.com/vocalog/backend/pkg/queue"
	"github.com/vocalog/backend/pkg/response"
	"github.com/vocalog/backend/pkg/storage"
)

// Handler handles recording HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(repo *Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, queue: q, logger: logger}
}

// Upload handles POST /audio/upload. Stores the raw blob, creates a READY
// recording row, and nudges the worker. Transcoding and transcription happen
// asynchronously in the pipeline.
func (h *Handler) Upload(c *gin.Context) {
	ownerID, err := uuid.Parse(c.PostForm("owner_id"))
	if err != nil {
		response.BadRequest(c, "invalid owner id")
		return
	}
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		response.BadRequest(c, "missing audio file")
		return
	}
	if fileHeader.Size > storage.MaxUploadSize {
		response.BadRequest(c, "file too large")
		return
	}

	ext := strings.ToLower(path.Ext(fileHeader.Filename))
	if ext == "" {
		ext = ".webm"
	}
	contentType := storage.ContentTypeForFilename(fileHeader.Filename)

	f, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()

	key := storage.AudioKey(ownerID.String(), time.Now(), ext)
	if err := h.s3.Upload(c.Request.Context(), key, contentType, f, fileHeader.Size); err != nil {
		h.logger.Error("upload to object store failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to store audio")
		return
	}

	rec := &models.Recording{
		OwnerID:    ownerID,
		FileName:   path.Base(fileHeader.Filename),
		StorageKey: key,
	}
	if err := h.repo.Create(c.Request.Context(), rec); err != nil {
		h.logger.Error("create recording failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to create recording")
		return
	}
	rec.Status = models.RecordingStatusReady

	if h.queue != nil {
		if err := h.queue.EnqueueTranscriptionNudge(c.Request.Context(), queue.TranscriptionNudgePayload{RecordingID: rec.ID}); err != nil {
			// The scheduler's periodic poll will still pick it up.
			h.logger.Warn("enqueue nudge failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		}
	}

	response.Created(c, rec)
}

// Get handles GET /recordings/:id. Status here is the only user-visible
// signal of pipeline progress or failure.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get recording failed", zap.Error(err), zap.String("recording_id", id.String()))
		response.Internal(c, "failed to load recording")
		return
	}
	if rec == nil {
		response.NotFound(c, "recording not found")
		return
	}
	response.OK(c, rec)
}

// ListByOwner handles GET /owners/:id/recordings.
func (h *Handler) ListByOwner(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid owner id")
		return
	}
	list, err := h.repo.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err), zap.String("owner_id", ownerID.String()))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, list)
}

// AudioURL handles GET /recordings/:id/audio-url. Returns a presigned
// playback URL for the stored blob.
func (h *Handler) AudioURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || rec == nil {
		response.NotFound(c, "recording not found")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), rec.StorageKey, expire)
	if err != nil {
		h.logger.Error("presign audio url failed", zap.Error(err), zap.String("recording_id", id.String()))
		response.Internal(c, "failed to generate audio URL")
		return
	}
	response.OK(c, gin.H{"audio_url": url, "expires_in": int(expire.Seconds())})
}
