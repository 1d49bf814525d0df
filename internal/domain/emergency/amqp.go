package emergency

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKey is used for every published access event.
const RoutingKey = "emergency.access.recorded"

// AccessEvent is the message body published for each access record.
type AccessEvent struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id"`
	AccessorRUT string `json:"accessor_rut"`
	AccessedAt  string `json:"accessed_at"`
}

func newAccessEvent(rec AccessRecord) AccessEvent {
	return AccessEvent{
		ID:          rec.ID.String(),
		PatientID:   rec.PatientID.String(),
		AccessorRUT: rec.AccessorRUT,
		AccessedAt:  rec.AccessedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher mirrors access records to a topic exchange for reporting
// consumers.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Append(ctx context.Context, rec AccessRecord) error {
	body, err := json.Marshal(newAccessEvent(rec))
	if err != nil {
		return fmt.Errorf("encode access event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    rec.ID.String(),
		Timestamp:    rec.AccessedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish access event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
