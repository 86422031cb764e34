package events

import (
	"context"
	"errors"

	"sealtrack/internal/domain"
)

// Fanout publishes every event to all publishers and joins their errors.
type Fanout []domain.EventPublisher

func (f Fanout) Publish(ctx context.Context, event domain.DocumentEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
