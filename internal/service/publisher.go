package service

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/sdoering/warp/internal/metrics"
    q "github.com/sdoering/warp/internal/queue"
)

// EventPublisher hands booking events to the broker.  Failures are
// returned for the caller to log; they never undo the booking.
type EventPublisher interface {
    Publish(ctx context.Context, ev q.BookingEvent) error
}

// NewPublisher returns an AMQP publisher for url, or a no-op publisher
// when url is empty.
func NewPublisher(url string) EventPublisher {
    if url == "" {
        return NoopPublisher{}
    }
    return &AMQPPublisher{URL: url, Queue: q.BookingQueue}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, q.BookingEvent) error { return nil }

// AMQPPublisher dials the broker per event.  Booking writes are rare
// enough that a pooled connection is not worth its reconnect logic.
type AMQPPublisher struct {
    URL   string
    Queue string
}

// Publish sends ev as a persistent JSON message to the default exchange
// routed to p.Queue.  The queue is declared durable on every call.
func (p *AMQPPublisher) Publish(ctx context.Context, ev q.BookingEvent) (err error) {
    defer func() {
        outcome := "ok"
        if err != nil {
            outcome = "error"
        }
        metrics.EventsPublished.WithLabelValues(ev.Type, outcome).Inc()
    }()

    conn, err := amqp.Dial(p.URL)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        p.Queue, // name
        true,    // durable
        false,   // autoDelete
        false,   // exclusive
        false,   // noWait
        nil,     // args
    ); err != nil {
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    return ch.PublishWithContext(ctx,
        "",      // default exchange
        p.Queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Type:         ev.Type,
            Body:         body,
        })
}
