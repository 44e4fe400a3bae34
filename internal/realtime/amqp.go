package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/logger"
)

// Relay carries events between API instances over a RabbitMQ fanout
// exchange. Publish sends to the exchange only; every instance, the sender
// included, receives the event through Run and hands it to its local hub.
type Relay struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	local    Publisher
}

// NewRelay dials url, declares the fanout exchange and binds an exclusive
// server-named queue for this instance.
func NewRelay(url, exchange string, local Publisher) (*Relay, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	r := &Relay{conn: conn, channel: channel, exchange: exchange, local: local}
	if err := r.setup(); err != nil {
		r.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return r, nil
}

func (r *Relay) setup() error {
	err := r.channel.ExchangeDeclare(
		r.exchange, // name
		"fanout",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := r.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	r.queue = q.Name

	if err := r.channel.QueueBind(r.queue, "", r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish implements Publisher.
func (r *Relay) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	body, err := encodeEvent(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = r.channel.PublishWithContext(ctx,
		r.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   e.At,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run consumes the instance queue until ctx is cancelled or the broker
// closes the channel.
func (r *Relay) Run(ctx context.Context) error {
	log := logger.Named("realtime.amqp")

	deliveries, err := r.channel.Consume(
		r.queue, // queue
		"",      // consumer
		false,   // auto-ack
		true,    // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	log.Infow("relay consuming", "exchange", r.exchange, "queue", r.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := r.handle(ctx, d.Body); err != nil {
				log.Warnw("dropping relay message", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *Relay) handle(ctx context.Context, body []byte) error {
	e, err := decodeEvent(body)
	if err != nil {
		return err
	}
	return r.local.Publish(ctx, e)
}

// Close shuts the channel and connection.
func (r *Relay) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
