package driven

import "context"

type IBroker interface {
	// PublishJSON publishes msg as JSON to the given exchange/routing key.
	PublishJSON(ctx context.Context, exchange, routingKey string, msg any) error

	IsAlive() bool

	Close() error
}
