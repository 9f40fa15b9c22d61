package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// errMalformedEvent marks deliveries that can never be processed.
var errMalformedEvent = errors.New("malformed booking event")

// Consumer reads BookingQueue and appends one line per booking to
// LogPath.
type Consumer struct {
	URL     string
	LogPath string
	Log     logrus.FieldLogger

	mu sync.Mutex
}

func NewConsumer(url, logPath string, log logrus.FieldLogger) *Consumer {
	if logPath == "" {
		logPath = filepath.Join("logs", "booking.log")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{URL: url, LogPath: logPath, Log: log}
}

// Run connects to the broker and consumes until ctx is cancelled.  A
// lost connection is retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).WithField("retry_in", backoff.String()).Warn("booking-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.Log.WithError(err).Warn("booking-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("booking-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, BookingQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handleMessage(d.Body); err != nil {
			requeue := shouldRequeue(err)
			c.Log.WithError(err).WithField("requeue", requeue).Error("booking-consumer: handle message failed")
			_ = d.Nack(false, requeue)
			if requeue && !sleep(ctx, time.Second) {
				break
			}
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// shouldRequeue keeps events whose failure is local, such as a full or
// read-only disk.  Malformed events are dropped.
func shouldRequeue(err error) bool {
	return !errors.Is(err, errMalformedEvent)
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if ev.BookingID == "" {
		return fmt.Errorf("%w: missing booking_id", errMalformedEvent)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | holder_id=%s | show_id=%d | seat_id=%d | status=%s\n",
		ev.ConfirmedAt, ev.BookingID, ev.HolderID, ev.ShowID, ev.SeatID, ev.Status)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	c.Log.WithField("booking_id", ev.BookingID).Debug("booking-consumer: logged booking")
	return nil
}
