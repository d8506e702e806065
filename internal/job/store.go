package job

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists jobs. Reads may lag a concurrent update; the pipeline's
// status writes are at-least-once and monotonic, so stale reads are safe.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, j *Job) error
	List(ctx context.Context) ([]*Job, error)

	CreateChunk(ctx context.Context, c *Chunk) error
	UpdateChunkStatus(ctx context.Context, jobID string, index int, status ChunkStatus) error
	GetJobChunks(ctx context.Context, jobID string) ([]*Chunk, error)

	Close() error
}

// MemoryStore keeps jobs in a map. The default when no SQLite path is
// configured; contents vanish on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]Job
	chunks map[string][]Chunk // keyed by job ID, sorted by index
}

// Compile-time interface implementation check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]Job),
		chunks: make(map[string][]Chunk),
	}
}

func (s *MemoryStore) Create(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = *j
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (s *MemoryStore) Update(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[j.ID]
	if !ok {
		return ErrNotFound
	}
	// The transition into a terminal status is the last write allowed.
	if stored.Status.Terminal() {
		return ErrTerminal
	}
	j.UpdatedAt = time.Now().UTC()
	s.jobs[j.ID] = *j
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		j := j
		out = append(out, &j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateChunk(_ context.Context, c *Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[c.JobID]; !ok {
		return ErrNotFound
	}
	s.chunks[c.JobID] = append(s.chunks[c.JobID], *c)
	sort.Slice(s.chunks[c.JobID], func(i, k int) bool {
		return s.chunks[c.JobID][i].Index < s.chunks[c.JobID][k].Index
	})
	return nil
}

func (s *MemoryStore) UpdateChunkStatus(_ context.Context, jobID string, index int, status ChunkStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.chunks[jobID] {
		if c.Index == index {
			s.chunks[jobID][i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) GetJobChunks(_ context.Context, jobID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Chunk, 0, len(s.chunks[jobID]))
	for _, c := range s.chunks[jobID] {
		c := c
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
