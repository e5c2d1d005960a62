package rabbitmq

import (
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"

	"productapi/internal/models"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *zap.Logger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// NewClient connects to RabbitMQ, opens a channel and declares the durable event queue.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare queue %s", cfg.Queue)
	}

	log.Info("RabbitMQ client connected", zap.String("queue", cfg.Queue))

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
		log:     log,
	}, nil
}

// Close closes the channel and then the connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close channel"))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close connection"))
		}
	}
	return errors.Join(errs...)
}

// PublishProductEvent publishes event as a persistent JSON message on the event queue.
func (c *Client) PublishProductEvent(event models.ProductEvent) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal product event")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		})
	if err != nil {
		return errors.Wrap(err, "publish product event")
	}

	c.log.Debug("Published product event",
		zap.String("type", event.Type),
		zap.String("product_id", event.ProductID),
	)
	return nil
}
