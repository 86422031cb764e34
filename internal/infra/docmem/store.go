package docmem

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"sealtrack/internal/domain"
)

const numShards = 64

// Store keeps documents in memory. Update serializes writers of the same
// document on a sharded mutex so read-modify-write cycles never interleave.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document
	shards [numShards]sync.Mutex
}

func New() *Store {
	return &Store{docs: make(map[string]domain.Document)}
}

func (s *Store) Create(ctx context.Context, doc domain.Document) error {
	if doc.ID == "" {
		return domain.ErrInvalidDocument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidDocument, doc.ID)
	}
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := doc.Clone()
	return &out, nil
}

func (s *Store) ListForPrincipal(ctx context.Context, ownerID, email string) ([]domain.Document, error) {
	email = domain.NormalizeEmail(email)
	s.mu.RLock()
	out := make([]domain.Document, 0)
	for _, doc := range s.docs {
		if visibleTo(doc, ownerID, email) {
			out = append(out, doc.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Update(ctx context.Context, id string, fn func(doc *domain.Document) error) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shard := &s.shards[shardFor(id)]
	shard.Lock()
	defer shard.Unlock()

	s.mu.RLock()
	current, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	working := current.Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.ID = id

	s.mu.Lock()
	s.docs[id] = working.Clone()
	s.mu.Unlock()
	return &working, nil
}

func visibleTo(doc domain.Document, ownerID, email string) bool {
	if ownerID != "" && doc.CreatedBy == ownerID {
		return true
	}
	if email == "" {
		return false
	}
	_, ok := doc.SignerByEmail(email)
	return ok
}

func shardFor(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % numShards
}
