package recordings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocalog/backend/internal/models"
)

const recordingColumns = `id, owner_id, file_name, storage_key, status, duration, edited, edited_at, created_at, updated_at`

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new recording in READY state (on upload).
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (id, owner_id, file_name, storage_key, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, rec.OwnerID, rec.FileName, rec.StorageKey, models.RecordingStatusReady).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// GetByID returns a recording by ID, or nil when none exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListByOwner returns all recordings uploaded by an owner, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// ListReady returns all recordings awaiting pipeline pickup, oldest first.
// Terminal-state recordings (COMPLETED and the error states) never match.
func (r *Repository) ListReady(ctx context.Context) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE status = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, models.RecordingStatusReady)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// UpdateStatus sets recording status. Also the operator reset path, so it
// accepts any status value; the pipeline guards its own transitions.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE recordings SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}

// UpdateTranscodeResult sets the new storage key and duration after the blob
// has been replaced with its transcoded form.
func (r *Repository) UpdateTranscodeResult(ctx context.Context, id uuid.UUID, storageKey string, duration int) error {
	const q = `UPDATE recordings SET storage_key = $1, duration = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, storageKey, duration, id)
	return err
}

// MarkEdited flags a recording as manually edited.
func (r *Repository) MarkEdited(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE recordings SET edited = TRUE, edited_at = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.FileName, &rec.StorageKey, &rec.Status,
		&rec.Duration, &rec.Edited, &rec.EditedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
