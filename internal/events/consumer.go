package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"logbook-service/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// GrantWatcher is implemented by the access service; the consumer feeds
// it grant create/role-change events published by the external
// access-management component.
type GrantWatcher interface {
	NotifyGrantChanged(ctx context.Context, userID, templateID bson.ObjectID, roleName string) error
}

type Consumer interface {
	Start() error
	Close() error
}

type EventConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	watcher   GrantWatcher
	enabled   bool
}

func NewEventConsumer(rabbitURI string, watcher GrantWatcher) (*EventConsumer, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event consumption is disabled")
		return &EventConsumer{
			enabled: false,
		}, nil
	}

	conn, err := amqp.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	cfg := config.ServiceConfig.RabbitMQ

	err = channel.ExchangeDeclare(
		cfg.GrantExchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		cfg.GrantQueue, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, routingKey := range []string{string(AccessGranted), string(AccessRoleChanged)} {
		err = channel.QueueBind(
			queue.Name,        // queue name
			routingKey,        // routing key
			cfg.GrantExchange, // exchange
			false,             // no-wait
			nil,               // arguments
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	return &EventConsumer{
		conn:      conn,
		channel:   channel,
		queueName: queue.Name,
		watcher:   watcher,
		enabled:   true,
	}, nil
}

func (c *EventConsumer) Start() error {
	if !c.enabled {
		log.Println("Event consumption is disabled")
		return nil
	}

	err := c.channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := c.processMessage(msg); err != nil {
				log.Printf("Failed to process message: %v", err)
				msg.Nack(false, true)
			} else {
				msg.Ack(false)
			}
		}
	}()

	log.Println("Event consumer started, waiting for access grant events...")
	return nil
}

func (c *EventConsumer) processMessage(msg amqp.Delivery) error {
	log.Printf("Received message with routing key: %s", msg.RoutingKey)

	switch EventType(msg.RoutingKey) {
	case AccessGranted, AccessRoleChanged:
		return c.handleGrantEvent(msg.Body)
	default:
		log.Printf("Unknown routing key: %s", msg.RoutingKey)
		return nil // Don't requeue unknown message types
	}
}

func (c *EventConsumer) handleGrantEvent(body []byte) error {
	var event AccessGrantEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// A malformed event will never parse on redelivery either.
		log.Printf("Dropping malformed grant event: %v", err)
		return nil
	}

	userID, err := bson.ObjectIDFromHex(event.UserID)
	if err != nil {
		log.Printf("Dropping grant event with invalid user id %q: %v", event.UserID, err)
		return nil
	}
	templateID, err := bson.ObjectIDFromHex(event.TemplateID)
	if err != nil {
		log.Printf("Dropping grant event with invalid template id %q: %v", event.TemplateID, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.watcher.NotifyGrantChanged(ctx, userID, templateID, event.RoleName); err != nil {
		return fmt.Errorf("failed to apply grant event for user %s on template %s: %w",
			event.UserID, event.TemplateID, err)
	}

	log.Printf("Processed grant event: user %s, template %s, role %s",
		event.UserID, event.TemplateID, event.RoleName)
	return nil
}

func (c *EventConsumer) Close() error {
	if !c.enabled {
		return nil
	}

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}

	return nil
}
