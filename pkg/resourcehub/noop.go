package resourcehub

import "context"

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ResourceUploaded does nothing and returns nil
func (n *NoopEventSink) ResourceUploaded(ctx context.Context, resource *Resource) error {
	return nil
}

// ResourceDownloaded does nothing and returns nil
func (n *NoopEventSink) ResourceDownloaded(ctx context.Context, resource *Resource) error {
	return nil
}
