package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vocalog/backend/internal/models"
	"github.com/vocalog/backend/pkg/queue"
)

func TestRunCycleSkipsTerminalRecordings(t *testing.T) {
	ready := &models.Recording{
		ID:         uuid.New(),
		StorageKey: "audio/a.webm",
		Status:     models.RecordingStatusReady,
	}
	done := &models.Recording{
		ID:         uuid.New(),
		StorageKey: "audio/b.m4a",
		Status:     models.RecordingStatusCompleted,
	}
	failed := &models.Recording{
		ID:         uuid.New(),
		StorageKey: "audio/c.webm",
		Status:     models.RecordingStatusConvertError,
	}
	recs := newFakeRecordingStore(ready, done, failed)
	trans := newFakeTranscriptStore(recs)
	store := newFakeObjectStore()
	store.objects[ready.StorageKey] = []byte("raw")
	sttc := &fakeTranscriber{segments: vendorSegments(t, 2)}

	pipe := New(recs, trans, store, &fakeTranscoder{duration: 5}, sttc, Options{ScratchDir: t.TempDir()}, nil)
	sched := NewScheduler(pipe, recs, nil, time.Minute, nil)

	sched.RunCycle(context.Background())
	if len(sttc.paths) != 1 {
		t.Fatalf("processed %d recordings, want only the READY one", len(sttc.paths))
	}
	if got := recs.get(ready.ID).Status; got != models.RecordingStatusCompleted {
		t.Errorf("ready recording status = %s, want COMPLETED", got)
	}
	if got := recs.get(done.ID).Status; got != models.RecordingStatusCompleted {
		t.Errorf("completed recording status changed to %s", got)
	}
	if got := recs.get(failed.ID).Status; got != models.RecordingStatusConvertError {
		t.Errorf("errored recording status changed to %s", got)
	}

	// the now-COMPLETED recording is excluded from the next cycle's query
	sched.RunCycle(context.Background())
	if len(sttc.paths) != 1 {
		t.Errorf("completed recording was reprocessed: %d runs", len(sttc.paths))
	}
}

// orderedRecordingStore wraps the fake with a deterministic READY order.
type orderedRecordingStore struct {
	*fakeRecordingStore
	order []uuid.UUID
}

func (s *orderedRecordingStore) ListReady(ctx context.Context) ([]models.Recording, error) {
	var out []models.Recording
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if r := s.recs[id]; r.Status == models.RecordingStatusReady {
			out = append(out, *r)
		}
	}
	return out, nil
}

func TestRunCycleProcessesStrictlySequentially(t *testing.T) {
	base := newFakeRecordingStore()
	ordered := &orderedRecordingStore{fakeRecordingStore: base}
	store := newFakeObjectStore()
	for i := 0; i < 4; i++ {
		rec := &models.Recording{
			ID:         uuid.New(),
			StorageKey: "audio/" + uuid.NewString() + ".webm",
			Status:     models.RecordingStatusReady,
		}
		base.recs[rec.ID] = rec
		ordered.order = append(ordered.order, rec.ID)
		store.objects[rec.StorageKey] = []byte("raw")
	}
	trans := newFakeTranscriptStore(base)
	sttc := &fakeTranscriber{segments: vendorSegments(t, 1)}

	pipe := New(ordered, trans, store, &fakeTranscoder{duration: 1}, sttc, Options{ScratchDir: t.TempDir()}, nil)
	sched := NewScheduler(pipe, ordered, nil, time.Minute, nil)
	sched.RunCycle(context.Background())

	if len(sttc.paths) != 4 {
		t.Fatalf("processed %d recordings, want 4", len(sttc.paths))
	}
	// scratch paths embed the recording id, so they reveal processing order
	for i, id := range ordered.order {
		if !strings.Contains(sttc.paths[i], id.String()) {
			t.Errorf("run %d processed %s, want recording %s", i, sttc.paths[i], id)
		}
	}
}

// fakeNudgeSource yields one nudge job, then blocks until ctx is done.
type fakeNudgeSource struct {
	mu    sync.Mutex
	jobs  []*queue.Job
	given int
}

func (f *fakeNudgeSource) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	f.mu.Lock()
	if f.given < len(f.jobs) {
		job := f.jobs[f.given]
		f.given++
		f.mu.Unlock()
		return job, nil
	}
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func TestSchedulerNudgeWakesEarly(t *testing.T) {
	rec := &models.Recording{
		ID:         uuid.New(),
		StorageKey: "audio/a.webm",
		Status:     models.RecordingStatusReady,
	}
	recs := newFakeRecordingStore(rec)
	trans := newFakeTranscriptStore(recs)
	store := newFakeObjectStore()
	store.objects[rec.StorageKey] = []byte("raw")
	sttc := &fakeTranscriber{segments: vendorSegments(t, 1)}

	payload, _ := json.Marshal(queue.TranscriptionNudgePayload{RecordingID: rec.ID})
	nudges := &fakeNudgeSource{jobs: []*queue.Job{{
		ID:      uuid.NewString(),
		Type:    queue.JobTypeTranscriptionNudge,
		Payload: payload,
	}}}

	pipe := New(recs, trans, store, &fakeTranscoder{duration: 1}, sttc, Options{ScratchDir: t.TempDir()}, nil)
	// interval far beyond the test deadline: only the nudge (or the initial
	// cycle) can trigger processing
	sched := NewScheduler(pipe, recs, nudges, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recs.get(rec.ID).Status == models.RecordingStatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("recording never processed; status = %s", recs.get(rec.ID).Status)
}
