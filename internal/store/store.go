// Package store holds repository and question metadata for the lifetime of a
// process run. The Store interface is the seam for a durable implementation;
// MemoryStore is the default, PostgresStore the real-database option.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"repovoice/pkg/models"
)

// Store is the metadata storage capability: put/get/list/delete by identifier.
type Store interface {
	PutRepository(ctx context.Context, r models.Repository) error
	GetRepository(ctx context.Context, id string) (models.Repository, bool, error)
	ListRepositories(ctx context.Context) ([]models.Repository, error)
	DeleteRepository(ctx context.Context, id string) error

	// SetStatus transitions a repository's lifecycle status.
	SetStatus(ctx context.Context, id string, status models.RepositoryStatus) error
	// SetAnalysis records walker/profiler results and marks the repository ready.
	SetAnalysis(ctx context.Context, id string, fileCount int, stats map[string]int) error

	PutQuestion(ctx context.Context, q models.Question) error
	GetQuestion(ctx context.Context, id string) (models.Question, bool, error)
	ListQuestions(ctx context.Context, repositoryID string) ([]models.Question, error)
}

// MemoryStore keeps metadata in process memory, guarded by one RWMutex.
// Status transitions happen under the lock, so a background ingestion task
// and a concurrent read never observe a torn update.
type MemoryStore struct {
	mu        sync.RWMutex
	repos     map[string]models.Repository
	questions map[string]models.Question
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		repos:     make(map[string]models.Repository),
		questions: make(map[string]models.Question),
	}
}

func (m *MemoryStore) PutRepository(ctx context.Context, r models.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[r.ID] = r
	return nil
}

func (m *MemoryStore) GetRepository(ctx context.Context, id string) (models.Repository, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.repos[id]
	return r, ok, nil
}

func (m *MemoryStore) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Repository, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteRepository(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repos, id)
	return nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, id string, status models.RepositoryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return nil
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	m.repos[id] = r
	return nil
}

func (m *MemoryStore) SetAnalysis(ctx context.Context, id string, fileCount int, stats map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return nil
	}
	r.FileCount = fileCount
	r.LanguageStats = stats
	r.Status = models.StatusReady
	r.UpdatedAt = time.Now()
	m.repos[id] = r
	return nil
}

func (m *MemoryStore) PutQuestion(ctx context.Context, q models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

func (m *MemoryStore) GetQuestion(ctx context.Context, id string) (models.Question, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	return q, ok, nil
}

func (m *MemoryStore) ListQuestions(ctx context.Context, repositoryID string) ([]models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Question{}
	for _, q := range m.questions {
		if q.RepositoryID == repositoryID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
