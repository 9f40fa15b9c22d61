package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

const (
	DefaultPublishBuffer = 1024
	DefaultDialTimeout   = 5 * time.Second
	publishAttempts      = 3
)

// ErrPublishBufferFull is returned when events arrive faster than the
// broker accepts them.  The event is dropped; the booking itself stands.
var ErrPublishBufferFull = errors.New("booking event buffer full")

// Publisher sends BookingConfirmedEvents to BookingQueue.
// PublishBookingConfirmed only enqueues; Run owns the broker connection
// and does the network I/O, so a slow or dead broker never holds up a
// booking request.
type Publisher struct {
	url         string
	log         logrus.FieldLogger
	dialTimeout time.Duration
	events      chan model.Booking

	// Owned by the Run goroutine.
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ reservation.EventPublisher = (*Publisher)(nil)

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// PublisherBuffer sets how many events may wait for the broker.
func PublisherBuffer(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.events = make(chan model.Booking, n)
		}
	}
}

// PublisherDialTimeout bounds connecting and the AMQP handshake.
func PublisherDialTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.dialTimeout = d
		}
	}
}

func NewPublisher(url string, log logrus.FieldLogger, opts ...PublisherOption) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Publisher{
		url:         url,
		log:         log,
		dialTimeout: DefaultDialTimeout,
		events:      make(chan model.Booking, DefaultPublishBuffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishBookingConfirmed queues b for delivery and returns at once.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, b model.Booking) error {
	select {
	case p.events <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrPublishBufferFull
	}
}

// Run delivers queued events until ctx is cancelled.  A failed delivery
// is retried with backoff a few times, then dropped and logged.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.reset()
	for {
		if ctx.Err() != nil {
			if n := len(p.events); n > 0 {
				p.log.WithField("pending", n).Warn("rabbitmq: shutting down with undelivered booking events")
			}
			return nil
		}
		select {
		case <-ctx.Done():
		case b := <-p.events:
			p.deliver(ctx, b)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, b model.Booking) {
	backoff := 200 * time.Millisecond
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err = p.send(ctx, b); err == nil {
			return
		}
		p.log.WithError(err).WithFields(logrus.Fields{"booking_id": b.ID, "attempt": attempt}).Warn("rabbitmq: publish failed")
		if attempt == publishAttempts || !sleep(ctx, backoff) {
			break
		}
		backoff *= 2
	}
	p.log.WithError(err).WithField("booking_id", b.ID).Error("rabbitmq: booking event dropped")
}

// channel returns an open channel, dialing when needed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// send publishes one persistent JSON message through the default exchange.
func (p *Publisher) send(ctx context.Context, b model.Booking) error {
	body, err := json.Marshal(NewBookingConfirmedEvent(b))
	if err != nil {
		return err
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()
	err = ch.PublishWithContext(pubCtx, "", BookingQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    b.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
