package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends booking events to RabbitMQ.  Each publish opens its own
// connection, so the publisher holds no state that can go stale between
// bookings.  Failures are logged and returned; callers treat delivery as
// best effort.
type Publisher struct {
	url     string
	queue   string
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewPublisher builds a publisher for the given broker URL.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{url: url, queue: DefaultQueue, timeout: 5 * time.Second, log: log}
}

// Publish sends one event as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, event BookingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.timeout)})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         event.Type,
			Body:         body,
		},
	)
}

// Notify publishes the event and logs, rather than returns, any failure.
func (p *Publisher) Notify(ctx context.Context, event BookingEvent) {
	if err := p.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.log.WithFields(logrus.Fields{
			"type":              event.Type,
			"booking_reference": event.BookingReference,
		}).WithError(err).Warn("rabbitmq: publish failed")
	}
}
