package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-engine/internal/models"
	"github.com/aman-zulfiqar/amm-engine/internal/storage"
)

// PubSubManager relays execution events over Redis Pub/Sub.
type PubSubManager struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

func NewPubSubManager(client redis.UniversalClient, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

// Channels lists the channels an event is published to.
func Channels(ev *models.ExecutionEvent) []string {
	return []string{
		constants.PubSubChannelExecutions,
		constants.PubSubChannelPoolPrefix + ev.Pool,
		constants.PubSubChannelOperationPrefix + ev.Operation,
	}
}

func (p *PubSubManager) PublishExecution(ctx context.Context, ev *models.ExecutionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}

	pipe := p.client.Pipeline()
	for _, channel := range Channels(ev) {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish execution: %w", err)
	}
	return nil
}

// SubscribeExecutions delivers events on channels matching pattern (e.g.
// "executions:pool:*") until ctx is cancelled.
func (p *PubSubManager) SubscribeExecutions(ctx context.Context, pattern string, handler storage.ExecutionHandler) error {
	pubsub := p.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", pattern, err)
	}
	p.logger.WithField("pattern", pattern).Info("subscribed to executions")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.ExecutionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("skipping malformed execution event")
				continue
			}
			handler(&ev)
		}
	}
}
