package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

const channelPrefix = "sealtrack:documents:"

// RedisBroker fans document events out across server instances with Redis
// pub/sub, one channel per document.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) (*RedisBroker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, logger: logger}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, event domain.DocumentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+event.DocumentID, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, documentID string) (<-chan domain.DocumentEvent, error) {
	var pubsub *redis.PubSub
	if documentID == "" {
		pubsub = b.client.PSubscribe(ctx, channelPrefix+"*")
	} else {
		pubsub = b.client.Subscribe(ctx, channelPrefix+documentID)
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan domain.DocumentEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event domain.DocumentEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("discarding malformed document event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()
	return out, nil
}
