package rabbitmq

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/cache"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/baechuer/real-time-ressys/client-core/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	supportedVersion = 1

	rkEventPublished = "event.published"
	rkEventUpdated   = "event.updated"
	rkEventCanceled  = "event.canceled"
)

// Envelope is the domain event wrapper published on the events exchange.
type Envelope struct {
	Version    int             `json:"version"`
	Producer   string          `json:"producer"`
	MessageID  string          `json:"message_id"`
	TraceID    string          `json:"trace_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type eventRef struct {
	EventID string `json:"event_id"`
	ID      string `json:"id"`
}

// Invalidator drops cached resources.
type Invalidator interface {
	Remove(ctx context.Context, key cache.Key)
}

// Consumer removes cached copies of events that changed on the server, so
// the next trigger shows a miss instead of outdated data.
type Consumer struct {
	rabbitURL string
	exchange  string
	queue     string
	cache     Invalidator

	// OnInvalidate, when set, runs after an event's keys were removed.
	OnInvalidate func(eventID string)
}

func NewConsumer(rabbitURL, exchange, queue string, c Invalidator) *Consumer {
	return &Consumer{
		rabbitURL: strings.TrimSpace(rabbitURL),
		exchange:  strings.TrimSpace(exchange),
		queue:     strings.TrimSpace(queue),
		cache:     c,
	}
}

// Start declares the topology and consumes until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	log := logger.Log.With().Str("component", "rabbitmq_consumer").Logger()

	conn, err := amqp.Dial(c.rabbitURL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	fail := func(err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fail(err)
	}

	q, err := ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fail(err)
	}

	for _, rk := range []string{rkEventPublished, rkEventUpdated, rkEventCanceled} {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			return fail(err)
		}
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fail(err)
	}

	deliveries, err := ch.Consume(q.Name, "client-core", false, false, false, false, nil)
	if err != nil {
		return fail(err)
	}

	go func() {
		defer func() {
			_ = ch.Close()
			_ = conn.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn().Msg("delivery channel closed")
					return
				}
				c.handle(ctx, d.RoutingKey, d.Body)
				_ = d.Ack(false)
			}
		}
	}()

	log.Info().Str("queue", q.Name).Str("exchange", c.exchange).Msg("consumer started")
	return nil
}

// handle applies one message. Invalidation cannot fail, so every message
// is acked; malformed ones are dropped.
func (c *Consumer) handle(ctx context.Context, routingKey string, body []byte) {
	log := logger.Log.With().
		Str("component", "rabbitmq_consumer").
		Str("routing_key", routingKey).
		Logger()

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Warn().Err(err).Msg("invalid envelope json; dropping")
		return
	}
	if env.Version != supportedVersion {
		log.Warn().Int("version", env.Version).Msg("unsupported envelope version; dropping")
		return
	}

	switch routingKey {
	case rkEventPublished, rkEventUpdated, rkEventCanceled:
	default:
		log.Warn().Msg("unknown routing key; ignoring")
		return
	}

	eventID, ok := parseEventID(env.Payload, log)
	if !ok {
		return
	}

	c.cache.Remove(ctx, cache.EventByID(eventID))
	c.cache.Remove(ctx, cache.EventsApproved())
	metrics.Invalidations.WithLabelValues(routingKey).Inc()

	log.Debug().
		Str("event_id", eventID).
		Str("message_id", env.MessageID).
		Str("trace_id", env.TraceID).
		Msg("cache invalidated")

	if c.OnInvalidate != nil {
		c.OnInvalidate(eventID)
	}
}

func parseEventID(raw json.RawMessage, log zerolog.Logger) (string, bool) {
	var p eventRef
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Msg("invalid payload json; dropping")
		return "", false
	}
	// tolerate legacy field
	id := strings.TrimSpace(p.EventID)
	if id == "" {
		id = strings.TrimSpace(p.ID)
	}
	if id == "" {
		log.Warn().Msg("missing event_id; dropping")
		return "", false
	}
	return id, true
}
