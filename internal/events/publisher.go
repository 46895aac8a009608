package events

import (
	"context"
	"log"

	"logbook-service/internal/config"
)

// Publisher is the Notification Dispatcher boundary. Delivery is
// fire-and-forget: callers log publish failures and never let them roll
// back a data write.
type Publisher interface {
	PublishEntryDataChanged(ctx context.Context, entryID, templateID, updatedBy string, before, after map[string]any, recordsReset int) error
	PublishSupervisorAdded(ctx context.Context, supervisorID, templateID string, entryCount int) error
	PublishEntryVerified(ctx context.Context, entryID, templateID, writerID string) error

	// Close closes the publisher and releases resources
	Close() error
}

type EventPublisher struct {
	rabbitMQ *RabbitMQClient
	exchange string
	enabled  bool
}

func NewEventPublisher(rabbitURI string) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{
			rabbitMQ: nil,
			enabled:  false,
		}, nil
	}

	client, err := NewRabbitMQClient(rabbitURI)
	if err != nil {
		return nil, err
	}

	if err := client.setupExchanges(); err != nil {
		client.Close()
		return nil, err
	}

	return &EventPublisher{
		rabbitMQ: client,
		exchange: config.ServiceConfig.RabbitMQ.EventExchange,
		enabled:  true,
	}, nil
}

func (p *EventPublisher) PublishEntryDataChanged(ctx context.Context, entryID, templateID, updatedBy string, before, after map[string]any, recordsReset int) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping EntryDataChanged")
		return nil
	}

	event := NewEntryDataChangedEvent(entryID, templateID, updatedBy, before, after, recordsReset)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	if err := p.rabbitMQ.PublishEvent(p.exchange, string(EntryDataChanged), eventData); err != nil {
		return err
	}

	log.Printf("Published EntryDataChanged event for entry %s (%d records reset)", entryID, recordsReset)
	return nil
}

func (p *EventPublisher) PublishSupervisorAdded(ctx context.Context, supervisorID, templateID string, entryCount int) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping SupervisorAdded")
		return nil
	}

	event := NewSupervisorAddedEvent(supervisorID, templateID, entryCount)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	if err := p.rabbitMQ.PublishEvent(p.exchange, string(SupervisorAdded), eventData); err != nil {
		return err
	}

	log.Printf("Published SupervisorAdded event for supervisor %s on template %s", supervisorID, templateID)
	return nil
}

func (p *EventPublisher) PublishEntryVerified(ctx context.Context, entryID, templateID, writerID string) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping EntryVerified")
		return nil
	}

	event := NewEntryVerifiedEvent(entryID, templateID, writerID)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	if err := p.rabbitMQ.PublishEvent(p.exchange, string(EntryVerified), eventData); err != nil {
		return err
	}

	log.Printf("Published EntryVerified event for entry %s", entryID)
	return nil
}

// Close releases resources
func (p *EventPublisher) Close() error {
	if !p.enabled || p.rabbitMQ == nil {
		return nil
	}

	return p.rabbitMQ.Close()
}
