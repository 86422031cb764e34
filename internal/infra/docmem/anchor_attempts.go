package docmem

import (
	"context"
	"strconv"
	"sync"
	"time"

	"sealtrack/internal/domain"
)

type AnchorAttempts struct {
	mu       sync.Mutex
	seq      int64
	attempts []domain.AnchorAttempt
}

func NewAnchorAttempts() *AnchorAttempts {
	return &AnchorAttempts{}
}

func (r *AnchorAttempts) Append(ctx context.Context, attempt domain.AnchorAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if attempt.ID == "" {
		attempt.ID = strconv.FormatInt(r.seq, 10)
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *AnchorAttempts) ListByDocument(ctx context.Context, documentID string) ([]domain.AnchorAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AnchorAttempt, 0)
	for _, a := range r.attempts {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}
