// Package amqp publishes ledger append notifications to a RabbitMQ exchange.
//
// Notifications are fire-and-forget: appends hand the message to a
// background publish and return at once.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"splitledger/internal/core"
	"splitledger/internal/log"
)

const (
	DefaultExchange   = "ledger.events"
	DefaultRoutingKey = "transactions.appended"

	maxRetries     = 3
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	notifyTimeout  = 15 * time.Second
	closeGrace     = 2 * time.Second
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds the broker settings.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type dialFunc func(url, exchange string) (publisher, io.Closer, error)

// Client publishes TransactionsAppendedMessage values. It satisfies
// ledger.Observer so a store can notify it directly.
type Client struct {
	url          string
	exchangeName string
	routingKey   string

	mu     sync.Mutex
	pub    publisher
	closer io.Closer
	dial   dialFunc
	wait   func(ctx context.Context, d time.Duration) error

	state        int32
	failureCount int64
	lastFailure  time.Time

	background context.Context
	stop       context.CancelFunc
	pending    sync.WaitGroup
	grace      time.Duration
	closed     bool

	logger *log.Logger
}

// NewClient dials the broker and declares the exchange.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Nop()
	}
	c := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		routingKey:   cfg.RoutingKey,
		dial:         dial,
		wait:         sleepContext,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
	c.start()
	if c.exchangeName == "" {
		c.exchangeName = DefaultExchange
	}
	if c.routingKey == "" {
		c.routingKey = DefaultRoutingKey
	}
	if err := c.connect(); err != nil {
		c.stop()
		return nil, err
	}
	c.logger.Info("Connected to AMQP broker",
		log.FieldExchange, c.exchangeName,
		log.FieldRoutingKey, c.routingKey)
	return c, nil
}

func (c *Client) start() {
	c.background, c.stop = context.WithCancel(context.Background())
	c.grace = closeGrace
}

func dial(url, exchange string) (publisher, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return channel, conn, nil
}

func (c *Client) connect() error {
	pub, closer, err := c.dial(c.url, c.exchangeName)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.closer
	c.pub, c.closer = pub, closer
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// TransactionsAppended publishes one message for the batch in the
// background and always returns nil. Failures are logged. After Close the
// batch is dropped.
func (c *Client) TransactionsAppended(ctx context.Context, txs []core.Transaction, categories []string) error {
	msg := NewTransactionsAppendedMessage(txs, categories)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "AMQP client closed, notification dropped", log.FieldCount, len(msg.IDs))
		return nil
	}
	c.pending.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.pending.Done()
		pubCtx, cancel := context.WithTimeout(c.background, notifyTimeout)
		defer cancel()
		if err := c.Publish(pubCtx, msg); err != nil {
			c.logger.Warn("Transactions appended notification failed",
				log.FieldError, err,
				log.FieldCount, len(msg.IDs),
				log.FieldExchange, c.exchangeName)
		}
	}()
	return nil
}

// Publish sends msg, reconnecting with exponential backoff on connection
// errors. Repeated failures open the circuit and further publishes fail fast
// until openTimeout has passed.
func (c *Client) Publish(ctx context.Context, msg *TransactionsAppendedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", c.exchangeName, ErrCircuitOpen)
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, exponentialBackoff(attempt-1)); err != nil {
				return err
			}
			if err := c.connect(); err != nil {
				lastErr = err
				c.logger.WarnContext(ctx, "AMQP reconnect failed", log.FieldError, err, "attempt", attempt)
				continue
			}
		}

		lastErr = c.publish(ctx, body, msg.Timestamp)
		if lastErr == nil {
			c.recordSuccess()
			c.logger.DebugContext(ctx, "Published transactions appended message",
				log.FieldCount, len(msg.IDs),
				log.FieldExchange, c.exchangeName,
				log.FieldRoutingKey, c.routingKey)
			return nil
		}
		if !isConnectionError(lastErr) {
			break
		}
	}

	c.recordFailure()
	return fmt.Errorf("publish message: %w", lastErr)
}

func (c *Client) publish(ctx context.Context, body []byte, ts time.Time) error {
	c.mu.Lock()
	pub := c.pub
	c.mu.Unlock()
	if pub == nil {
		return errors.New("connection closed")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return pub.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ts,
			Body:         body,
		},
	)
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.StoreInt32(&c.state, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
		c.logger.Warn("AMQP circuit breaker opened", "failures", atomic.LoadInt64(&c.failureCount))
	}
}

// exponentialBackoff returns 1s, 2s, 4s... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close waits up to the grace period for pending notifications, cancels
// whatever is still running, then closes the channel and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.drain()

	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if ch, ok := c.pub.(io.Closer); ok && ch != nil {
		errs = append(errs, ch.Close())
	}
	if c.closer != nil {
		errs = append(errs, c.closer.Close())
	}
	c.pub, c.closer = nil, nil
	return errors.Join(errs...)
}

func (c *Client) drain() {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.grace):
		c.logger.Warn("Cancelling pending AMQP notifications", "grace", c.grace)
		if c.stop != nil {
			c.stop()
		}
		<-done
	}
	if c.stop != nil {
		c.stop()
	}
}
