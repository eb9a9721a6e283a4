package transcripts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocalog/backend/internal/models"
)

// ErrRowNotFound reports that no utterance exists at the requested order for
// the recording. Distinguishes "nothing to do" from an operation failure.
var ErrRowNotFound = errors.New("transcript row not found")

// ErrNotReady reports that a batch write was attempted against a recording
// that is no longer in READY state.
var ErrNotReady = errors.New("recording not in READY state")

// Repository persists ordered utterance rows per recording. All mutations of
// text_order run inside a transaction; the (recording_id, text_order) unique
// constraint is deferred to commit, so order values are never observed with a
// gap or duplicate.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a transcripts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByRecording returns a recording's utterances ordered by text_order.
func (r *Repository) ListByRecording(ctx context.Context, recordingID uuid.UUID) ([]models.Utterance, error) {
	const q = `SELECT id, recording_id, text_order, start_time, end_time, text, text_edited, confidence, speaker, act_id, talk_more_id, created_at
		FROM utterances WHERE recording_id = $1 ORDER BY text_order ASC`
	rows, err := r.pool.Query(ctx, q, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Utterance
	for rows.Next() {
		var u models.Utterance
		if err := rows.Scan(&u.ID, &u.RecordingID, &u.Order, &u.StartTime, &u.EndTime, &u.Text,
			&u.TextEdited, &u.Confidence, &u.Speaker, &u.ActID, &u.TalkMoreID, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// ReplaceBatch atomically replaces a READY recording's utterances with the
// given batch and marks the recording COMPLETED. Either the whole batch and
// the status change commit together, or nothing does, so a partial utterance
// set is never visible alongside a COMPLETED status.
func (r *Repository) ReplaceBatch(ctx context.Context, recordingID uuid.UUID, batch []models.Utterance) error {
	if len(batch) == 0 {
		return fmt.Errorf("empty utterance batch for recording %s", recordingID)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM utterances WHERE recording_id = $1`, recordingID); err != nil {
		return fmt.Errorf("clear utterances: %w", err)
	}

	const insert = `INSERT INTO utterances (id, recording_id, text_order, start_time, end_time, text, text_edited, confidence, speaker, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, NOW())`
	b := &pgx.Batch{}
	for i, u := range batch {
		b.Queue(insert, recordingID, i+1, u.StartTime, u.EndTime, u.Text, u.TextEdited, u.Confidence, u.Speaker)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE recordings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		models.RecordingStatusCompleted, recordingID, models.RecordingStatusReady)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotReady
	}
	return tx.Commit(ctx)
}

// InsertAt duplicates the utterance at order k into a new row at order k+1,
// shifting every later row up by one. Runs as one transaction so order stays
// contiguous even if the copy fails.
func (r *Repository) InsertAt(ctx context.Context, recordingID uuid.UUID, k int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE utterances SET text_order = text_order + 1 WHERE recording_id = $1 AND text_order > $2`,
		recordingID, k); err != nil {
		return fmt.Errorf("shift orders up: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO utterances (id, recording_id, text_order, start_time, end_time, text, text_edited, confidence, speaker, act_id, talk_more_id, created_at)
		SELECT gen_random_uuid(), recording_id, $2 + 1, start_time, end_time, text, text_edited, confidence, speaker, act_id, talk_more_id, NOW()
		FROM utterances WHERE recording_id = $1 AND text_order = $2`,
		recordingID, k)
	if err != nil {
		return fmt.Errorf("copy row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRowNotFound
	}
	return tx.Commit(ctx)
}

// DeleteAt removes the utterance at order k and shifts every later row down
// by one, in one transaction. Delete runs before the decrement so the shift
// never collides with the departing row's order value.
func (r *Repository) DeleteAt(ctx context.Context, recordingID uuid.UUID, k int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM utterances WHERE recording_id = $1 AND text_order = $2`,
		recordingID, k)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRowNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE utterances SET text_order = text_order - 1 WHERE recording_id = $1 AND text_order > $2`,
		recordingID, k); err != nil {
		return fmt.Errorf("shift orders down: %w", err)
	}
	return tx.Commit(ctx)
}

// UpdateRow edits the editable text and speaker of the utterance at order k.
// Field edits never touch text_order.
func (r *Repository) UpdateRow(ctx context.Context, recordingID uuid.UUID, k int, textEdited, speaker string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE utterances SET text_edited = $1, speaker = $2 WHERE recording_id = $3 AND text_order = $4`,
		textEdited, speaker, recordingID, k)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRowNotFound
	}
	return nil
}
