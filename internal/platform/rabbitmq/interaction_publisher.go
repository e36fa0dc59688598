package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"ragchat/internal/model"
)

// InteractionPublisher enqueues chat interactions for asynchronous
// persistence to relational storage.
type InteractionPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewInteractionPublisher(conn *amqp.Connection, queueName string) *InteractionPublisher {
	return &InteractionPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *InteractionPublisher) Publish(ctx context.Context, interaction model.Interaction) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("marshal interaction payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish interaction failed: %w", err)
	}
	return nil
}
