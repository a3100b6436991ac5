package mail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type dispatchRecorder interface {
	MailDispatched(transport string, status string)
}

type DispatcherOptions struct {
	Transport   string
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	Metrics     dispatchRecorder
}

// Dispatcher hands messages to a Sender on background workers. Callers never
// wait for delivery: a full queue drops the message and counts it.
type Dispatcher struct {
	sender    Sender
	transport string
	timeout   time.Duration
	metrics   dispatchRecorder
	log       *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.Transport == "" {
		opts.Transport = "unknown"
	}

	d := &Dispatcher{
		sender:    sender,
		transport: opts.Transport,
		timeout:   opts.SendTimeout,
		metrics:   opts.Metrics,
		log:       slog.With("component", "mail.dispatcher", "transport", opts.Transport),
		queue:     make(chan Message, opts.QueueSize),
	}

	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.workerLoop()
	}

	return d
}

// SendConfirmationEmail requests delivery of a confirmation mail and returns
// immediately.
func (d *Dispatcher) SendConfirmationEmail(address string, displayName string, link string) {
	d.Enqueue(ConfirmationMessage(address, displayName, link))
}

func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.record("dropped")
		d.log.Warn("mail dropped after shutdown", "to", msg.To)
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.record("dropped")
		d.log.Warn("mail queue full, message dropped", "to", msg.To)
		return false
	}
}

// Close stops accepting messages and waits for queued ones until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain mail queue: %w", ctx.Err())
	}
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()

	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	started := time.Now()
	if err := d.sender.Send(ctx, msg); err != nil {
		d.record("failed")
		d.log.Error("mail delivery failed", "to", msg.To, "error", err)
		return
	}

	d.record("sent")
	d.log.Info("mail delivered", "to", msg.To, "duration_ms", time.Since(started).Milliseconds())
}

func (d *Dispatcher) record(status string) {
	if d.metrics != nil {
		d.metrics.MailDispatched(d.transport, status)
	}
}
