package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alnah/go-dub/internal/job"
)

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status job.Status
		want   bool
	}{
		{job.StatusPending, false},
		{job.StatusExtracting, false},
		{job.StatusGeneratingAudio, false},
		{job.StatusCompleted, true},
		{job.StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestNewJobDefaults(t *testing.T) {
	t.Parallel()

	j := job.New("talk.mp4", "/tmp/talk.mp4", "es", job.ModeDub)
	if j.ID == "" {
		t.Error("New() produced empty ID")
	}
	if j.Status != job.StatusPending {
		t.Errorf("Status = %s, want PENDING", j.Status)
	}
	if j.CreatedAt.IsZero() || !j.CreatedAt.Equal(j.UpdatedAt) {
		t.Error("timestamps not initialized together")
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := job.NewMemoryStore()

	j := job.New("talk.mp4", "/tmp/talk.mp4", "es", job.ModeDub)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Filename != "talk.mp4" {
		t.Errorf("Filename = %q", got.Filename)
	}

	got.Status = job.StatusTranscribing
	got.Progress = 15
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	again, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again.Status != job.StatusTranscribing || again.Progress != 15 {
		t.Errorf("update not persisted: %+v", again)
	}
	if !again.UpdatedAt.After(again.CreatedAt) && !again.UpdatedAt.Equal(again.CreatedAt) {
		t.Error("UpdatedAt went backwards")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := job.NewMemoryStore()

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, &job.Job{ID: "nope"}); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreTerminalJobsImmutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := job.NewMemoryStore()
	j := job.New("talk.mp4", "/tmp/talk.mp4", "es", job.ModeDub)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The transition into a terminal status is accepted.
	j.Status = job.StatusCompleted
	if err := s.Update(ctx, j); err != nil {
		t.Fatalf("Update() to terminal error = %v", err)
	}

	j.Progress = 50
	j.Status = job.StatusTranscribing
	if err := s.Update(ctx, j); !errors.Is(err, job.ErrTerminal) {
		t.Errorf("Update() after terminal error = %v, want ErrTerminal", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != job.StatusCompleted {
		t.Errorf("Status = %s, want COMPLETED untouched", got.Status)
	}
}

func TestMemoryStoreChunkRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := job.NewMemoryStore()
	j := job.New("talk.mp4", "/tmp/talk.mp4", "es", job.ModeDub)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 2; i >= 0; i-- {
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

	if err := s.UpdateChunkStatus(ctx, j.ID, 1, job.ChunkFallback); err != nil {
		t.Fatalf("UpdateChunkStatus() error = %v", err)
	}
	if err := s.UpdateChunkStatus(ctx, j.ID, 9, job.ChunkReady); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("UpdateChunkStatus(unknown) error = %v, want ErrNotFound", err)
	}

	chunks, err := s.GetJobChunks(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJobChunks() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("GetJobChunks() len = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d, want ascending order", i, c.Index)
		}
	}
	if chunks[1].Status != job.ChunkFallback {
		t.Errorf("chunk 1 status = %s, want fallback", chunks[1].Status)
	}
}

func TestMemoryStoreChunkForUnknownJob(t *testing.T) {
	t.Parallel()

	s := job.NewMemoryStore()
	err := s.CreateChunk(context.Background(), &job.Chunk{JobID: "nope", Index: 0})
	if !errors.Is(err, job.ErrNotFound) {
		t.Errorf("CreateChunk() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := job.NewMemoryStore()
	j := job.New("talk.mp4", "/tmp/talk.mp4", "es", job.ModeDub)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, _ := s.Get(ctx, j.ID)
	first.Status = job.StatusFailed

	second, _ := s.Get(ctx, j.ID)
	if second.Status != job.StatusPending {
		t.Error("Get() leaked a mutable reference")
	}
}

func TestMemoryStoreList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := job.NewMemoryStore()

	a := job.New("a.mp4", "/tmp/a.mp4", "es", job.ModeDub)
	a.CreatedAt = time.Now().Add(-time.Hour)
	b := job.New("b.mp4", "/tmp/b.mp4", "fr", job.ModeDub)

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
		t.Errorf("List() order = %s first, want newest first", list[0].Filename)
	}
}

func TestProgressBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status job.Status
		done   int
		total  int
		want   float64
	}{
		{name: "pending", status: job.StatusPending, want: 0},
		{name: "extracting", status: job.StatusExtracting, want: 5},
		{name: "first chunk transcribing", status: job.StatusTranscribing, done: 0, total: 3, want: 10},
		{name: "second chunk synthesizing", status: job.StatusGeneratingAudio, done: 1, total: 3, want: 50},
		{name: "last chunk merging", status: job.StatusMerging, done: 2, total: 3, want: 10 + 80*(2.9/3)},
		{name: "uploading", status: job.StatusUploading, want: 90},
		{name: "completed", status: job.StatusCompleted, want: 100},
		{name: "zero chunks clamps", status: job.StatusTranscribing, done: 0, total: 0, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := job.Progress(tt.status, tt.done, tt.total)
			if diff := got - tt.want; diff < -0.01 || diff > 0.01 {
				t.Errorf("Progress(%s, %d, %d) = %v, want %v", tt.status, tt.done, tt.total, got, tt.want)
			}
		})
	}
}

func TestProgressMonotonicAcrossChunks(t *testing.T) {
	t.Parallel()

	stages := []job.Status{
		job.StatusTranscribing, job.StatusTranslating,
		job.StatusGeneratingAudio, job.StatusMerging,
	}

	prev := job.Progress(job.StatusExtracting, 0, 3)
	for done := 0; done < 3; done++ {
		for _, st := range stages {
			got := job.Progress(st, done, 3)
			if got < prev {
				t.Fatalf("progress regressed: %s done=%d gives %v after %v", st, done, got, prev)
			}
			prev = got
		}
	}
	if final := job.Progress(job.StatusUploading, 3, 3); final < prev {
		t.Errorf("uploading progress %v below chunk progress %v", final, prev)
	}
}
