package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/doctree/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var dialAMQP = func(url string) (*amqp.Connection, error) {
	return amqp.Dial(url)
}

// queueSize bounds the messages waiting for the broker.
const queueSize = 256

type delivery struct {
	ctx     context.Context
	message string
	at      time.Time
}

// AMQPNotifier publishes each message to a fanout exchange. Messages are
// queued and published in order by a single worker, so Notify never waits
// for the broker.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
	timeout  time.Duration
	logger   logging.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan delivery
	done   chan struct{}
}

// NewAMQPNotifier connects to url and declares a durable fanout exchange.
func NewAMQPNotifier(url, exchange string, l logging.Logger) (*AMQPNotifier, error) {
	conn, err := dialAMQP(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	n := newAMQPNotifier(ch, exchange, queueSize, l)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch publisher, exchange string, size int, l logging.Logger) *AMQPNotifier {
	n := &AMQPNotifier{
		ch:       ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		logger:   l.With("module", "notify", "exchange", exchange),
		queue:    make(chan delivery, size),
		done:     make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues message and returns at once. A full queue drops the message
// with a warning.
func (n *AMQPNotifier) Notify(ctx context.Context, message string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.logger.Warn(ctx, "notifier closed, message dropped", "message", message)
		return
	}

	// detached from the request: a finished request must not cancel delivery
	d := delivery{ctx: context.WithoutCancel(ctx), message: message, at: time.Now()}
	select {
	case n.queue <- d:
	default:
		n.logger.Warn(ctx, "notification queue full, message dropped", "message", message)
	}
}

func (n *AMQPNotifier) run() {
	defer close(n.done)
	for d := range n.queue {
		n.publish(d)
	}
}

func (n *AMQPNotifier) publish(d delivery) {
	ctx, cancel := context.WithTimeout(d.ctx, n.timeout)
	defer cancel()

	err := n.ch.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.at,
		Body:         []byte(d.message),
	})
	if err != nil {
		n.logger.Warn(d.ctx, "notification not delivered", "error", err, "message", d.message)
	}
}

// Close stops accepting messages, publishes what is still queued and then
// closes the channel and the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done

	err := n.ch.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
