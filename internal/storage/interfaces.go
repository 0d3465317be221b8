package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/amm-engine/internal/models"
)

// ExecutionPublisher relays execution events to live subscribers.
type ExecutionPublisher interface {
	// PublishExecution publishes an event to the execution channels
	PublishExecution(ctx context.Context, ev *models.ExecutionEvent) error
}

// ExecutionSubscriber receives relayed execution events.
type ExecutionSubscriber interface {
	// SubscribeExecutions streams events on channels matching pattern until ctx is done
	SubscribeExecutions(ctx context.Context, pattern string, handler ExecutionHandler) error
}

// ExecutionStore persists execution history.
type ExecutionStore interface {
	// InsertExecution inserts one execution record
	InsertExecution(ctx context.Context, ev *models.ExecutionEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// ExecutionHandler is a function that processes execution events
type ExecutionHandler func(*models.ExecutionEvent)
