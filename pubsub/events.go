package pubsub

import "context"

const (
	// CreatedEvent marks a new resource, e.g. a new step of an agent run
	CreatedEvent EventType = "created"
	// FinishedEvent marks the end of a resource's life, e.g. a completed run
	FinishedEvent EventType = "finished"
)

// Subscriber hands out event channels that close when the context ends
type Subscriber[T any] interface {
	Subscribe(context.Context) <-chan Event[T]
}

type (
	// EventType identifies the kind of event
	EventType string

	// Event is one occurrence in a resource's lifecycle
	Event[T any] struct {
		Type    EventType
		Payload T
	}
)
