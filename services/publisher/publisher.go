package publisher

import "context"

// Publisher represents a service for publishing alert messages
type Publisher interface {
	// Publish publishes a message to the alert stream under key
	Publish(ctx context.Context, key string, message []byte) error

	// Trim trims the stream to the configured maximum length
	Trim(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
