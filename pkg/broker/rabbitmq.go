// Package broker publishes ride lifecycle events to RabbitMQ for
// downstream consumers such as billing and notifications.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"goride/internal/models"
	"goride/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reconnInterval = 5 * time.Second
	publishTimeout = 3 * time.Second
)

var ErrClosed = errors.New("amqp closed")

type Config struct {
	URL      string
	Exchange string
}

// Envelope is the body of every published message.
type Envelope struct {
	Event    *models.Event `json:"event"`
	Channels []string      `json:"channels"`
}

type RabbitPublisher struct {
	ctx          context.Context
	cfg          Config
	log          *logger.Logger
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
	mu           sync.Mutex
}

func NewRabbitPublisher(ctx context.Context, cfg Config, log *logger.Logger) (*RabbitPublisher, error) {
	r := &RabbitPublisher{
		ctx: ctx,
		cfg: cfg,
		log: log.WithField("component", "rabbitmq"),
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("rabbit connect: %w", err)
	}
	return r, nil
}

func (r *RabbitPublisher) Name() string {
	return "rabbitmq"
}

// Deliver publishes the event once, routed by its type.
func (r *RabbitPublisher) Deliver(ctx context.Context, event *models.Event, channels []string) error {
	return r.PublishJSON(ctx, RoutingKey(event.Type), Envelope{Event: event, Channels: channels})
}

func (r *RabbitPublisher) PublishJSON(ctx context.Context, routingKey string, msg any) error {
	if !r.IsAlive() {
		go r.reconnect(r.ctx)
		return ErrClosed
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pubctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	return ch.PublishWithContext(pubctx, r.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// RoutingKey maps an event type onto a topic key, e.g. ride.accepted
// stays as is and new_ride_request becomes dispatch.new_ride_request.
func RoutingKey(eventType models.EventType) string {
	key := string(eventType)
	if !strings.Contains(key, ".") {
		return "dispatch." + key
	}
	return key
}

func (r *RabbitPublisher) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() {
		return false
	}
	if r.ch == nil || r.ch.IsClosed() {
		return false
	}
	return true
}

func (r *RabbitPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}

func (r *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(r.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()
	return nil
}

func (r *RabbitPublisher) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(reconnInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			if err := r.connect(); err == nil {
				r.log.Info("Reconnected to RabbitMQ")
				return
			}
			r.log.Warn("RabbitMQ reconnect failed")
		case <-ctx.Done():
			return
		}
	}
}
