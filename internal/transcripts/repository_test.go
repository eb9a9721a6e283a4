package transcripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocalog/backend/internal/models"
	"github.com/vocalog/backend/pkg/database"
)

// Ordering-operation tests run against a real PostgreSQL database because
// the invariant under test lives in transactional SQL. Set TEST_DATABASE_URL
// to run them, e.g. postgres://localhost:5432/vocalog_test?sslmode=disable.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func createRecording(t *testing.T, pool *pgxpool.Pool, status string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO recordings (id, owner_id, storage_key, status)
		 VALUES (gen_random_uuid(), gen_random_uuid(), $1, $2) RETURNING id`,
		"audio/test_"+uuid.NewString()+".m4a", status).Scan(&id)
	if err != nil {
		t.Fatalf("create recording: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM recordings WHERE id = $1`, id)
	})
	return id
}

func seedBatch(t *testing.T, repo *Repository, recordingID uuid.UUID, n int) []models.Utterance {
	t.Helper()
	batch := make([]models.Utterance, n)
	for i := range batch {
		batch[i] = models.Utterance{
			StartTime:  int64(i * 1000),
			EndTime:    int64(i*1000 + 900),
			Text:       fmt.Sprintf("문장 %d", i+1),
			TextEdited: fmt.Sprintf("문장 %d.", i+1),
			Confidence: 0.9,
			Speaker:    "1",
		}
	}
	if err := repo.ReplaceBatch(context.Background(), recordingID, batch); err != nil {
		t.Fatalf("ReplaceBatch: %v", err)
	}
	rows, err := repo.ListByRecording(context.Background(), recordingID)
	if err != nil {
		t.Fatalf("ListByRecording: %v", err)
	}
	return rows
}

func assertContiguous(t *testing.T, rows []models.Utterance) {
	t.Helper()
	for i, u := range rows {
		if u.Order != i+1 {
			t.Fatalf("order at index %d is %d; orders must be exactly 1..N", i, u.Order)
		}
	}
}

func TestReplaceBatchCompletesRecording(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	recID := createRecording(t, pool, models.RecordingStatusReady)

	rows := seedBatch(t, repo, recID, 4)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	assertContiguous(t, rows)

	var status string
	if err := pool.QueryRow(context.Background(),
		`SELECT status FROM recordings WHERE id = $1`, recID).Scan(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != models.RecordingStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", status)
	}
}

func TestReplaceBatchRejectsNonReadyRecording(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	recID := createRecording(t, pool, models.RecordingStatusCompleted)

	err := repo.ReplaceBatch(context.Background(), recID, []models.Utterance{{Text: "x"}})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("got %v, want ErrNotReady", err)
	}
	rows, err := repo.ListByRecording(context.Background(), recID)
	if err != nil {
		t.Fatalf("ListByRecording: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rolled-back batch visible: %d rows", len(rows))
	}
}

func TestInsertAtDuplicatesRowBelow(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	recID := createRecording(t, pool, models.RecordingStatusReady)
	before := seedBatch(t, repo, recID, 3)

	if err := repo.InsertAt(context.Background(), recID, 2); err != nil {
		t.Fatalf("InsertAt: %v", err)
	}
	after, err := repo.ListByRecording(context.Background(), recID)
	if err != nil {
		t.Fatalf("ListByRecording: %v", err)
	}
	if len(after) != 4 {
		t.Fatalf("got %d rows, want 4", len(after))
	}
	assertContiguous(t, after)

	// rows 1 and 2 untouched, new row 3 copies row 2, old row 3 now at 4
	if after[0].ID != before[0].ID || after[1].ID != before[1].ID {
		t.Error("rows at or before the insertion point must keep their ids")
	}
	if after[3].ID != before[2].ID {
		t.Error("row formerly at order 3 must now be at order 4")
	}
	dup := after[2]
	if dup.ID == before[1].ID {
		t.Error("duplicated row must get a new identifier")
	}
	if dup.Text != before[1].Text || dup.TextEdited != before[1].TextEdited ||
		dup.StartTime != before[1].StartTime || dup.EndTime != before[1].EndTime ||
		dup.Confidence != before[1].Confidence || dup.Speaker != before[1].Speaker {
		t.Errorf("duplicate content differs from source row: %+v vs %+v", dup, before[1])
	}
}

func TestDeleteAtShiftsLaterRowsDown(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	recID := createRecording(t, pool, models.RecordingStatusReady)
	before := seedBatch(t, repo, recID, 4)

	if err := repo.DeleteAt(context.Background(), recID, 2); err != nil {
		t.Fatalf("DeleteAt: %v", err)
	}
	after, err := repo.ListByRecording(context.Background(), recID)
	if err != nil {
		t.Fatalf("ListByRecording: %v", err)
	}
	if len(after) != 3 {
		t.Fatalf("got %d rows, want 3", len(after))
	}
	assertContiguous(t, after)

	want := []uuid.UUID{before[0].ID, before[2].ID, before[3].ID}
	for i, u := range after {
		if u.ID != want[i] {
			t.Errorf("row %d has id %s, want %s", i+1, u.ID, want[i])
		}
	}
}

func TestDeleteAtUndoesInsertAt(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	recID := createRecording(t, pool, models.RecordingStatusReady)
	before := seedBatch(t, repo, recID, 3)

	if err := repo.InsertAt(context.Background(), recID, 2); err != nil {
		t.Fatalf("InsertAt: %v", err)
	}
	// deleting the inserted duplicate restores the original sequence
	if err := repo.DeleteAt(context.Background(), recID, 3); err != nil {
		t.Fatalf("DeleteAt: %v", err)
	}
	after, err := repo.ListByRecording(context.Background(), recID)
	if err != nil {
		t.Fatalf("ListByRecording: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("got %d rows, want %d", len(after), len(before))
	}
	for i := range after {
		if after[i].ID != before[i].ID || after[i].Order != before[i].Order {
			t.Errorf("row %d is (%s, %d), want (%s, %d)",
				i, after[i].ID, after[i].Order, before[i].ID, before[i].Order)
		}
	}
}

func TestOrderingOpsOnMissingRow(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	recID := createRecording(t, pool, models.RecordingStatusReady)
	seedBatch(t, repo, recID, 2)

	if err := repo.InsertAt(context.Background(), recID, 7); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("InsertAt on missing order: got %v, want ErrRowNotFound", err)
	}
	if err := repo.DeleteAt(context.Background(), recID, 7); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("DeleteAt on missing order: got %v, want ErrRowNotFound", err)
	}
	rows, err := repo.ListByRecording(context.Background(), recID)
	if err != nil {
		t.Fatalf("ListByRecording: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("failed operations must not change the row set: %d rows", len(rows))
	}
	assertContiguous(t, rows)
}

func TestUpdateRowLeavesOrderAlone(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool)
	recID := createRecording(t, pool, models.RecordingStatusReady)
	seedBatch(t, repo, recID, 3)

	if err := repo.UpdateRow(context.Background(), recID, 2, "고친 문장", "엄마"); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	rows, err := repo.ListByRecording(context.Background(), recID)
	if err != nil {
		t.Fatalf("ListByRecording: %v", err)
	}
	assertContiguous(t, rows)
	if rows[1].TextEdited != "고친 문장" || rows[1].Speaker != "엄마" {
		t.Errorf("row 2 not updated: %+v", rows[1])
	}
}
