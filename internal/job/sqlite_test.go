package job_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alnah/go-dub/internal/job"
)

func openTestStore(t *testing.T) *job.SQLiteStore {
	t.Helper()
	s, err := job.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	j := job.New("talk.mp4", "/tmp/talk.mp4", "pt", job.ModeDub)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TargetLanguage != "pt" || got.Mode != job.ModeDub || got.Status != job.StatusPending {
		t.Errorf("Get() = %+v", got)
	}

	got.Status = job.StatusCompleted
	got.Progress = 100
	got.ResultPath = "/out/talk_pt.mp4"
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	again, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again.Status != job.StatusCompleted || again.ResultPath != "/out/talk_pt.mp4" {
		t.Errorf("update not persisted: %+v", again)
	}
}

func TestSQLiteStoreNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, &job.Job{ID: "missing"}); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	a := job.New("a.mp4", "/tmp/a.mp4", "es", job.ModeDub)
	a.CreatedAt = a.CreatedAt.Add(-1000)
	b := job.New("b.mp4", "/tmp/b.mp4", "fr", job.ModeSubtitle)

	for _, j := range []*job.Job{a, b} {
		if err := s.Create(ctx, j); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
	if list[0].Filename != "b.mp4" {
		t.Errorf("first listed = %s, want newest", list[0].Filename)
	}
}

func TestSQLiteStoreTerminalJobsImmutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	j := job.New("talk.mp4", "/tmp/talk.mp4", "es", job.ModeDub)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	j.Status = job.StatusFailed
	j.FailReason = job.ReasonCancelled
	if err := s.Update(ctx, j); err != nil {
		t.Fatalf("Update() to terminal error = %v", err)
	}

	j.Status = job.StatusUploading
	if err := s.Update(ctx, j); !errors.Is(err, job.ErrTerminal) {
		t.Errorf("Update() after terminal error = %v, want ErrTerminal", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != job.StatusFailed || got.FailReason != job.ReasonCancelled {
		t.Errorf("terminal row mutated: %+v", got)
	}
}

func TestSQLiteStoreChunkRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	j := job.New("talk.mp4", "/tmp/talk.mp4", "es", job.ModeDub)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		c := &job.Chunk{
			JobID:     j.ID,
			Index:     i,
			Start:     time.Duration(i) * 5 * time.Minute,
			End:       time.Duration(i+1) * 5 * time.Minute,
			LocalPath: "/tmp/chunk",
			Status:    job.ChunkPending,
		}
		if err := s.CreateChunk(ctx, c); err != nil {
			t.Fatalf("CreateChunk(%d) error = %v", i, err)
		}
	}

	if err := s.UpdateChunkStatus(ctx, j.ID, 1, job.ChunkReady); err != nil {
		t.Fatalf("UpdateChunkStatus() error = %v", err)
	}
	if err := s.UpdateChunkStatus(ctx, j.ID, 7, job.ChunkReady); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("UpdateChunkStatus(unknown) error = %v, want ErrNotFound", err)
	}

	chunks, err := s.GetJobChunks(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJobChunks() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("GetJobChunks() len = %d, want 2", len(chunks))
	}
	if chunks[1].Status != job.ChunkReady {
		t.Errorf("chunk 1 status = %s, want ready", chunks[1].Status)
	}
	if chunks[1].Start != 5*time.Minute || chunks[1].End != 10*time.Minute {
		t.Errorf("chunk 1 span = %v..%v", chunks[1].Start, chunks[1].End)
	}
}
