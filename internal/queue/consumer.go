package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// EventLogPath is the file the consumer appends one line per event to.
var EventLogPath = filepath.Join("logs", "events.log")

// StartEventConsumer connects to the broker, declares every queue in
// Queues and appends each delivery to EventLogPath.  It reconnects with
// exponential backoff and returns when ctx is cancelled.
func StartEventConsumer(ctx context.Context, url string, logger zerolog.Logger) error {
    logger = logger.With().Str("component", "event-consumer").Logger()
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            logger.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, logger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.Warn().Err(err).Msg("consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

type delivery struct {
    queue string
    amqp.Delivery
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logger zerolog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Warn().Err(err).Msg("set QoS failed")
    }

    merged := make(chan delivery)
    done := make(chan struct{})
    defer close(done)
    for _, name := range Queues {
        if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
        msgs, err := ch.Consume(name, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", name, err)
        }
        go func(name string, msgs <-chan amqp.Delivery) {
            for d := range msgs {
                select {
                case merged <- delivery{queue: name, Delivery: d}:
                case <-done:
                    return
                }
            }
        }(name, msgs)
    }

    closed := ch.NotifyClose(make(chan *amqp.Error, 1))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case err := <-closed:
            if err != nil {
                return err
            }
            return errors.New("channel closed")
        case d := <-merged:
            if err := appendEvent(d.queue, d.Body); err != nil {
                logger.Error().Err(err).Str("queue", d.queue).Msg("handle message failed")
                _ = d.Nack(false, false) // do not requeue poison messages
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func appendEvent(queueName string, body []byte) error {
    if err := os.MkdirAll(filepath.Dir(EventLogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(EventLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    return handleMessage(queueName, body, f)
}

// handleMessage decodes body according to queueName and writes a single
// human-readable line to w.
func handleMessage(queueName string, body []byte, w io.Writer) error {
    var line string
    switch queueName {
    case QueuePlayImageUploaded:
        var ev PlayImageUploadedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        line = fmt.Sprintf("[%s] Play image uploaded | play_id=%d | title=%q | image=%s",
            ev.UploadedAt, ev.PlayID, ev.Title, ev.Image)
        if ev.Replaced != "" {
            line += " | replaced=" + ev.Replaced
        }
    case QueueReservationCreated:
        var ev ReservationCreatedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        seats := make([]string, 0, len(ev.Tickets))
        for _, t := range ev.Tickets {
            seats = append(seats, fmt.Sprintf("%d:%d-%d", t.PerformanceID, t.Row, t.Seat))
        }
        line = fmt.Sprintf("[%s] Reservation created | reservation_id=%d | user_id=%d | tickets=[%s]",
            ev.CreatedAt, ev.ReservationID, ev.UserID, strings.Join(seats, ","))
    default:
        return fmt.Errorf("unknown queue %q", queueName)
    }
    if _, err := io.WriteString(w, line+"\n"); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
