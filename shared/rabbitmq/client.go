package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultPublishRetries = 3
	defaultRetryDelay     = 100 * time.Millisecond
	defaultBackoffMult    = 2.0
	defaultDialTimeout    = 30 * time.Second
)

var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// DSN returns the AMQP connection URL with credentials escaped
func (c *Config) DSN() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   c.VHost,
	}
	return u.String()
}

// backoff returns the delay before retry number attempt (zero based)
func (c *Config) backoff(attempt int) time.Duration {
	delay := c.PublishRetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	mult := c.PublishBackoffMult
	if mult <= 0 {
		mult = defaultBackoffMult
	}

	d := float64(delay)
	for i := 0; i < attempt; i++ {
		d *= mult
	}
	return time.Duration(d)
}

func (c *Config) publishRetries() int {
	if c.PublishRetries <= 0 {
		return defaultPublishRetries
	}
	return c.PublishRetries
}

// Client is a publish-only RabbitMQ client bound to one exchange
type Client struct {
	config    *Config
	logger    *slog.Logger
	mu        sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	closeChan chan *amqp.Error
	closed    bool
}

// NewClient connects to RabbitMQ and declares the exchange
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(context.Background(), config.RetryAttempts); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// dialer returns an amqp dial func bound to ctx. The deadline covers the TCP
// dial and the AMQP handshake; amqp091 clears it once the connection is open.
func dialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := &net.Dialer{Timeout: defaultDialTimeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(defaultDialTimeout)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// connect establishes connection to RabbitMQ, retrying up to attempts times
// until ctx is done. Callers hold mu or own the client exclusively.
func (c *Client) connect(ctx context.Context, attempts int) error {
	var (
		conn *amqp.Connection
		err  error
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
		Dial:      dialer(ctx),
	}

	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.String("host", c.config.Host),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err = amqp.DialConfig(c.config.DSN(), amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect to RabbitMQ canceled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(c.config.RetryInterval):
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.closeChan = channel.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("RabbitMQ publisher initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("exchange_type", c.config.ExchangeType),
	)

	return nil
}

// channelClosed drains a pending close notification without blocking
func (c *Client) channelClosed() bool {
	if c.channel == nil {
		return true
	}
	select {
	case amqpErr, ok := <-c.closeChan:
		if ok || amqpErr != nil {
			c.logger.Warn("RabbitMQ channel closed", slog.Any("error", amqpErr))
		}
		return true
	default:
		return c.channel.IsClosed()
	}
}

// PublishJSON marshals v and publishes it with retry and exponential backoff.
// A closed channel is reopened with a single connect attempt bound to ctx.
func (c *Client) PublishJSON(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrNotConnected
	}
	if c.conn == nil || c.channelClosed() {
		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}

	maxRetries := c.config.publishRetries()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.channel.PublishWithContext(
			ctx,
			c.config.ExchangeName, // exchange
			routingKey,            // routing key
			false,                 // mandatory
			false,                 // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if err == nil {
			c.logger.Debug("Message published to RabbitMQ",
				slog.String("routing_key", routingKey),
				slog.Int("body_size", len(body)),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := c.config.backoff(attempt)
		c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
			slog.String("routing_key", routingKey),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_after", delay),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("publish canceled: %w", ctx.Err())
		case <-time.After(delay):
		}

		if c.channelClosed() {
			if err := c.reconnect(ctx); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) reconnect(ctx context.Context) error {
	c.logger.Warn("Reconnecting to RabbitMQ")
	c.closeLocked()
	if err := c.connect(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close closes the RabbitMQ connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Closing RabbitMQ connection")
	c.closed = true
	if err := c.closeLocked(); err != nil {
		c.logger.Error("Failed to close RabbitMQ connection", slog.Any("error", err))
		return err
	}
	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}

func (c *Client) closeLocked() error {
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			c.logger.Debug("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}
	c.channel = nil

	var err error
	if c.conn != nil && !c.conn.IsClosed() {
		err = c.conn.Close()
	}
	c.conn = nil
	return err
}
