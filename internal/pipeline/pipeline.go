// Package pipeline drives uploaded recordings through transcode,
// transcription, and transcript persistence.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vocalog/backend/internal/models"
	"github.com/vocalog/backend/internal/stt"
)

// ObjectStore is the blob gateway the pipeline downloads from and uploads to.
type ObjectStore interface {
	DownloadToFile(ctx context.Context, key, localPath string) error
	UploadFile(ctx context.Context, key, contentType, localPath string) error
	Delete(ctx context.Context, key string) error
}

// Transcoder converts a raw recording file to the canonical codec and
// reports the encoded duration in seconds.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath string) (outputPath string, durationSec int, err error)
}

// Transcriber sends a transcoded file to the vendor STT service.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]stt.RawSegment, error)
}

// RecordingStore is the recording persistence the pipeline mutates.
type RecordingStore interface {
	ListReady(ctx context.Context) ([]models.Recording, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateTranscodeResult(ctx context.Context, id uuid.UUID, storageKey string, duration int) error
}

// TranscriptStore persists utterance batches atomically with the COMPLETED
// status change.
type TranscriptStore interface {
	ReplaceBatch(ctx context.Context, recordingID uuid.UUID, batch []models.Utterance) error
}

// Options tune a Pipeline.
type Options struct {
	ScratchDir     string // empty = os.TempDir()
	SplitSentences bool
	SplitMarks     []string
}

// Pipeline runs one recording at a time through download → transcode → blob
// swap → transcription → normalization → transcript persistence. All clients
// are injected so tests can substitute fakes.
type Pipeline struct {
	recs    RecordingStore
	trans   TranscriptStore
	store   ObjectStore
	enc     Transcoder
	sttc    Transcriber
	opts    Options
	logger  *zap.Logger
}

// New creates a Pipeline.
func New(recs RecordingStore, trans TranscriptStore, store ObjectStore, enc Transcoder, sttc Transcriber, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if len(opts.SplitMarks) == 0 {
		opts.SplitMarks = []string{".", "?", "!"}
	}
	return &Pipeline{recs: recs, trans: trans, store: store, enc: enc, sttc: sttc, opts: opts, logger: logger}
}

// Run processes a single READY recording to a terminal state or a retryable
// failure. Terminal failures update the recording's status; transient ones
// leave it READY for the next cycle. Scratch files are removed on every path.
func (p *Pipeline) Run(ctx context.Context, rec models.Recording) error {
	scratch := p.scratchPath(rec)
	defer os.Remove(scratch)

	if err := p.store.DownloadToFile(ctx, rec.StorageKey, scratch); err != nil {
		return failure(FailureTransient, fmt.Errorf("download %s: %w", rec.StorageKey, err))
	}

	encoded, duration, err := p.enc.Transcode(ctx, scratch)
	if err != nil {
		if isCanceled(ctx, err) {
			// shutdown killed the encoder, not a conversion failure
			return failure(FailureTransient, err)
		}
		p.setStatus(ctx, rec, models.RecordingStatusConvertError)
		return failure(FailureTranscode, err)
	}
	defer os.Remove(encoded)

	newKey := canonicalKey(rec.StorageKey)
	if err := p.store.UploadFile(ctx, newKey, "audio/m4a", encoded); err != nil {
		return failure(FailureTransient, fmt.Errorf("upload %s: %w", newKey, err))
	}
	if newKey != rec.StorageKey {
		if err := p.store.Delete(ctx, rec.StorageKey); err != nil {
			// old blob is orphaned, not fatal
			p.logger.Warn("delete old blob failed", zap.Error(err), zap.String("key", rec.StorageKey))
		}
	}
	if err := p.recs.UpdateTranscodeResult(ctx, rec.ID, newKey, duration); err != nil {
		return failure(FailureTransient, fmt.Errorf("update transcode result: %w", err))
	}

	raw, err := p.sttc.Transcribe(ctx, encoded)
	if err != nil {
		if isTimeout(err) || isCanceled(ctx, err) {
			// neither a timeout nor an interrupted call is proof of
			// vendor failure; stay READY
			return failure(FailureTransient, err)
		}
		p.setStatus(ctx, rec, models.RecordingStatusSTTError)
		return failure(FailureTranscription, err)
	}
	if len(raw) == 0 {
		p.setStatus(ctx, rec, models.RecordingStatusSTTError)
		return failure(FailureTranscription, fmt.Errorf("vendor returned no segments for %s", rec.ID))
	}

	segments, err := stt.Normalize(raw)
	if err != nil {
		p.setStatus(ctx, rec, models.RecordingStatusSTTError)
		return failure(FailureTranscription, err)
	}
	if p.opts.SplitSentences {
		segments = stt.Explode(segments, p.opts.SplitMarks)
	}

	batch := make([]models.Utterance, 0, len(segments))
	for _, s := range segments {
		batch = append(batch, models.Utterance{
			RecordingID: rec.ID,
			StartTime:   s.Start,
			EndTime:     s.End,
			Text:        s.Text,
			TextEdited:  s.TextEdited,
			Confidence:  s.Confidence,
			Speaker:     s.Speaker,
		})
	}
	if err := p.trans.ReplaceBatch(ctx, rec.ID, batch); err != nil {
		return failure(FailurePersistence, err)
	}

	p.logger.Info("recording transcribed",
		zap.String("recording_id", rec.ID.String()),
		zap.Int("utterances", len(batch)),
		zap.Int("duration_sec", duration),
	)
	return nil
}

// setStatus moves a recording to a terminal status, honoring the state
// machine: only READY recordings have outgoing transitions.
func (p *Pipeline) setStatus(ctx context.Context, rec models.Recording, status string) {
	if !models.CanTransition(rec.Status, status) {
		p.logger.Warn("refusing status transition",
			zap.String("recording_id", rec.ID.String()),
			zap.String("from", rec.Status),
			zap.String("to", status),
		)
		return
	}
	if err := p.recs.UpdateStatus(ctx, rec.ID, status); err != nil {
		p.logger.Error("update status failed", zap.Error(err),
			zap.String("recording_id", rec.ID.String()), zap.String("status", status))
	}
}

// scratchPath names the local working copy. The recording id keeps two
// overlapping runs from colliding on the timestamp alone.
func (p *Pipeline) scratchPath(rec models.Recording) string {
	name := time.Now().Format("060102150405") + "_" + rec.ID.String() + path.Ext(rec.StorageKey)
	return filepath.Join(p.opts.ScratchDir, name)
}

// canonicalKey swaps the blob key's extension for the canonical codec's.
func canonicalKey(key string) string {
	if ext := path.Ext(key); ext != "" {
		return key[:len(key)-len(ext)] + ".m4a"
	}
	return key + ".m4a"
}
