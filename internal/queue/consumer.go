// Package queue contains the background consumer that listens to the
// booking queue and appends one line per event to <dir>/booking.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains BookingQueue into a log file.
type Consumer struct {
    URL string       // broker url
    Dir string       // directory holding booking.log; "logs" when empty
    Log *slog.Logger // nil means slog.Default()

    mu sync.Mutex // serialises appends
}

func (c *Consumer) logger() *slog.Logger {
    if c.Log != nil {
        return c.Log
    }
    return slog.Default()
}

// Run connects to the broker, declares the durable queue and consumes until
// ctx is cancelled.  Connection failures are retried with exponential
// backoff capped at 30s; only ctx cancellation makes Run return.
func (c *Consumer) Run(ctx context.Context) error {
    log := c.logger()
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Warn("booking consumer: dial failed", "error", err, "retry_in", backoff.String())
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect
        log.Info("booking consumer: connected", "queue", BookingQueue)

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("booking consumer: consume loop ended, reconnecting", "error", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.logger().Warn("booking consumer: set QoS failed", "error", err)
    }

    if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(BookingQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.HandleMessage(d.Body); err != nil {
                c.logger().Error("booking consumer: handle message failed", "error", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one event and appends its line to booking.log.
func (c *Consumer) HandleMessage(body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }

    dir := c.Dir
    if dir == "" {
        dir = "logs"
    }

    c.mu.Lock()
    defer c.mu.Unlock()

    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-friendly log line ending in \n.
func FormatLine(ev BookingEvent) string {
    verb := "Booking created"
    if ev.Type == BookingDeleted {
        verb = "Booking deleted"
    }
    return fmt.Sprintf("[%s] %s | booking_id=%d | login=%s | actor=%s | zone=%d %q | seat=%d %q | from=%s | to=%s\n",
        ev.At.UTC().Format(time.RFC3339), verb, ev.BookingID, ev.Login, ev.Actor,
        ev.ZoneID, ev.ZoneName, ev.SeatID, ev.SeatName,
        time.Unix(ev.FromTS, 0).UTC().Format(time.RFC3339),
        time.Unix(ev.ToTS, 0).UTC().Format(time.RFC3339))
}
