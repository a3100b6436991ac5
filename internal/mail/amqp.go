package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher is a Sender that queues messages on a durable broker queue for
// cmd/mailer to deliver.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	mu      sync.Mutex
}

func DialPublisher(url string, queue string) (*AMQPPublisher, error) {
	conn, channel, err := openQueue(url, queue)
	if err != nil {
		return nil, err
	}

	return &AMQPPublisher{conn: conn, channel: channel, queue: queue}, nil
}

func openQueue(url string, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return conn, channel, nil
}

func (p *AMQPPublisher) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish mail message: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return errors.Join(p.channel.Close(), p.conn.Close())
}

// Consumer reads queued messages and delivers them through a Sender.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
}

func DialConsumer(url string, queue string, prefetch int) (*Consumer, error) {
	conn, channel, err := openQueue(url, queue)
	if err != nil {
		return nil, err
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	if err := channel.Qos(prefetch, 0, false); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set amqp qos: %w", err)
	}

	return &Consumer{conn: conn, channel: channel, queue: queue, prefetch: prefetch}, nil
}

// Run blocks until ctx is cancelled or the broker closes the delivery channel.
// One handler goroutine runs per prefetched message.
func (c *Consumer) Run(ctx context.Context, sender Sender) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	log := slog.With("component", "mail.consumer", "queue", c.queue)
	log.Info("consumer started", "workers", c.prefetch)

	consume(ctx, deliveries, c.prefetch, func(d amqp.Delivery) {
		c.handle(ctx, log, sender, d)
	})

	if ctx.Err() != nil {
		return nil
	}
	return errors.New("amqp delivery channel closed")
}

// consume fans deliveries out to workers handlers and returns once ctx is done
// or deliveries is closed and every handler has finished.
func consume(ctx context.Context, deliveries <-chan amqp.Delivery, workers int, handle func(amqp.Delivery)) {
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					handle(d)
				}
			}
		}()
	}
	wg.Wait()
}

func (c *Consumer) handle(ctx context.Context, log *slog.Logger, sender Sender, d amqp.Delivery) {
	ack, requeue, err := processDelivery(ctx, sender, d.Body, d.Redelivered)
	if err != nil {
		log.Error("mail delivery failed", "error", err, "requeue", requeue)
	}

	if ack {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("ack failed", "error", ackErr)
		}
		return
	}

	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Error("nack failed", "error", nackErr)
	}
}

// processDelivery decides the fate of one queued body. Undecodable bodies are
// discarded. A failed send is requeued once; a redelivered message that fails
// again is dropped.
func processDelivery(ctx context.Context, sender Sender, body []byte, redelivered bool) (ack bool, requeue bool, err error) {
	msg, err := DecodeMessage(body)
	if err != nil {
		return false, false, err
	}

	if err := sender.Send(ctx, msg); err != nil {
		return false, !redelivered && ctx.Err() == nil, err
	}

	return true, false, nil
}

func DecodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("decode mail message: %w", err)
	}
	if msg.To == "" || msg.Link == "" {
		return Message{}, errors.New("mail message requires recipient and link")
	}
	return msg, nil
}

func (c *Consumer) Close() error {
	return errors.Join(c.channel.Close(), c.conn.Close())
}
