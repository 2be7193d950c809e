package interfaces

// EventPublisher delivers domain events to interested collaborators.
type EventPublisher interface {
	Publish(topic string, event any) error
}
