package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// AMQPPublisher publishes events as persistent JSON messages.  A
// connection is opened per publish; event volume is a handful of
// messages per write request.
type AMQPPublisher struct {
    URL    string
    Logger zerolog.Logger
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, logger zerolog.Logger) *AMQPPublisher {
    return &AMQPPublisher{URL: url, Logger: logger.With().Str("component", "publisher").Logger()}
}

// Publish declares the queue (idempotent) and sends event to it.  Errors
// are logged and returned so callers can decide to ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, queueName string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    conn, err := amqp.Dial(p.URL)
    if err != nil {
        p.Logger.Warn().Err(err).Str("queue", queueName).Msg("rabbitmq dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Logger.Warn().Err(err).Msg("rabbitmq channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        p.Logger.Warn().Err(err).Str("queue", queueName).Msg("queue declare failed")
        return err
    }

    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         queueName,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queueName, false, false, msg); err != nil {
        p.Logger.Warn().Err(err).Str("queue", queueName).Msg("publish failed")
        return err
    }
    p.Logger.Debug().Str("queue", queueName).Int("bytes", len(body)).Msg("event published")
    return nil
}

// NopPublisher drops every event.  It is used when EVENTS_ENABLED=false.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, string, any) error { return nil }
