package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the Entweave system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// EntityType is the associated entity type, if applicable.
	EntityType string `json:"entity_type,omitempty"`

	// InstanceID is the associated instance identity, if applicable.
	InstanceID string `json:"instance_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeInstanceCreated  = "instance.created"
	EventTypeInstanceUpdated  = "instance.updated"
	EventTypeInstanceDeleted  = "instance.deleted"
	EventTypeMigrationApplied = "migration.applied"
	EventTypeMigrationFailed  = "migration.failed"
	EventTypeDefinitionBound  = "definition.bound"
	EventTypeHandlerFailed    = "handler.failed"
	EventTypeError            = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions. The runtime
// publishes lifecycle events through it so in-process subscribers can observe
// instance churn without hooking definition handlers.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishInstanceCreated publishes an instance created event.
func (ep *EventPublisher) PublishInstanceCreated(entityType, instanceID string) error {
	return ep.Publish(Event{
		Type:       EventTypeInstanceCreated,
		Source:     "runtime",
		EntityType: entityType,
		InstanceID: instanceID,
		Message:    fmt.Sprintf("Instance %s of %s created", instanceID, entityType),
		Level:      EventLevelInfo,
	})
}

// PublishInstanceUpdated publishes an instance updated event.
func (ep *EventPublisher) PublishInstanceUpdated(entityType, instanceID string, changed []string) error {
	return ep.Publish(Event{
		Type:       EventTypeInstanceUpdated,
		Source:     "runtime",
		EntityType: entityType,
		InstanceID: instanceID,
		Message:    fmt.Sprintf("Instance %s of %s updated", instanceID, entityType),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"changed_fields": changed,
		},
	})
}

// PublishInstanceDeleted publishes an instance deleted event.
func (ep *EventPublisher) PublishInstanceDeleted(entityType, instanceID string) error {
	return ep.Publish(Event{
		Type:       EventTypeInstanceDeleted,
		Source:     "runtime",
		EntityType: entityType,
		InstanceID: instanceID,
		Message:    fmt.Sprintf("Instance %s of %s deleted", instanceID, entityType),
		Level:      EventLevelInfo,
	})
}

// PublishMigrationApplied publishes a migration applied event.
func (ep *EventPublisher) PublishMigrationApplied(entityType string, version int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:       EventTypeMigrationApplied,
		Source:     "runtime",
		EntityType: entityType,
		Message:    fmt.Sprintf("Migration to version %d applied for %s", version, entityType),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"version":  version,
			"duration": duration.Seconds(),
		},
	})
}

// PublishMigrationFailed publishes a migration failed event.
func (ep *EventPublisher) PublishMigrationFailed(entityType string, version int, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeMigrationFailed,
		Source:     "runtime",
		EntityType: entityType,
		Message:    fmt.Sprintf("Migration to version %d failed for %s: %s", version, entityType, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"version": version,
			"reason":  reason,
		},
	})
}

// PublishDefinitionBound publishes a definition bound event.
func (ep *EventPublisher) PublishDefinitionBound(entityType string, fromVersion, toVersion int) error {
	return ep.Publish(Event{
		Type:       EventTypeDefinitionBound,
		Source:     "runtime",
		EntityType: entityType,
		Message:    fmt.Sprintf("Definition %s bound at version %d", entityType, toVersion),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"from_version": fromVersion,
			"to_version":   toVersion,
		},
	})
}

// PublishHandlerFailed publishes a handler failure event.
func (ep *EventPublisher) PublishHandlerFailed(entityType, handler, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeHandlerFailed,
		Source:     "runtime",
		EntityType: entityType,
		Message:    fmt.Sprintf("Handler %s on %s failed: %s", handler, entityType, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"handler": handler,
			"reason":  reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			// Drain remaining events before shutting down
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled || ep.cancel == nil {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByEntityType creates a filter that only allows events for a specific entity type.
func FilterByEntityType(entityType string) EventFilter {
	return func(event Event) bool {
		return event.EntityType == entityType
	}
}

// FilterByInstanceID creates a filter that only allows events for a specific instance.
func FilterByInstanceID(instanceID string) EventFilter {
	return func(event Event) bool {
		return event.InstanceID == instanceID
	}
}
