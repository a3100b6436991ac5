package mail

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	block chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) MailDispatched(_ string, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[status]++
}

func (r *countingRecorder) get(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[status]
}

func TestDispatcher_DeliversQueuedMessages(t *testing.T) {
	sender := &recordingSender{}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, DispatcherOptions{Transport: "test", Workers: 2, QueueSize: 8, Metrics: rec})

	d.SendConfirmationEmail("ann@example.com", "ann", "http://localhost/api/auth/confirmed_email/abc")
	d.SendConfirmationEmail("bob@example.com", "bob", "http://localhost/api/auth/confirmed_email/def")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.ElementsMatch(t, []string{"ann@example.com", "bob@example.com"}, []string{sent[0].To, sent[1].To})
	assert.Equal(t, confirmationSubject, sent[0].Subject)
	assert.Equal(t, 2, rec.get("sent"))
}

func TestDispatcher_FailureIsCountedNotPropagated(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, DispatcherOptions{Workers: 1, QueueSize: 1, Metrics: rec})

	d.SendConfirmationEmail("ann@example.com", "ann", "link")
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, rec.get("failed"))
	assert.Empty(t, sender.messages())
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	rec := &countingRecorder{}
	d := NewDispatcher(sender, DispatcherOptions{Workers: 1, QueueSize: 1, Metrics: rec})

	// The single worker takes the first message and blocks on it; the second
	// fills the queue.
	require.True(t, d.Enqueue(Message{To: "a@example.com", Link: "l"}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, d.Enqueue(Message{To: "b@example.com", Link: "l"}))

	assert.False(t, d.Enqueue(Message{To: "c@example.com", Link: "l"}))
	assert.Equal(t, 1, rec.get("dropped"))

	close(sender.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sender.messages(), 2)
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, DispatcherOptions{})
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.False(t, d.Enqueue(Message{To: "late@example.com"}))
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	defer close(sender.block)
	d := NewDispatcher(sender, DispatcherOptions{Workers: 1, QueueSize: 1})
	d.SendConfirmationEmail("slow@example.com", "slow", "link")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSMTPSender_Build(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 465, Username: "noreply@example.com", FromName: "Contacts"})

	m, err := s.build(ConfirmationMessage("ann@example.com", "ann", "https://app.example.com/api/auth/confirmed_email/tok"))
	require.NoError(t, err)

	assert.Equal(t, []string{confirmationSubject}, m.GetHeader("Subject"))
	require.Len(t, m.GetHeader("From"), 1)
	assert.Contains(t, m.GetHeader("From")[0], "noreply@example.com")
	assert.Contains(t, m.GetHeader("To")[0], "ann@example.com")

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
	assert.Contains(t, buf.String(), "text/plain")
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@example.com", Link: "l"}), context.Canceled)
}

func TestRenderBodies_EscapesHTML(t *testing.T) {
	plain, html, err := renderBodies(Message{DisplayName: "<b>eve</b>", Link: "https://x/confirm"})
	require.NoError(t, err)

	assert.Contains(t, plain, "<b>eve</b>")
	assert.NotContains(t, html, "<b>eve</b>")
	assert.Contains(t, html, "&lt;b&gt;eve&lt;/b&gt;")
	assert.Contains(t, html, `href="https://x/confirm"`)
}

func TestProcessDelivery(t *testing.T) {
	t.Run("acks delivered message", func(t *testing.T) {
		sender := &recordingSender{}
		ack, requeue, err := processDelivery(context.Background(), sender, []byte(`{"to":"a@example.com","display_name":"a","subject":"s","link":"l"}`), false)

		require.NoError(t, err)
		assert.True(t, ack)
		assert.False(t, requeue)
		require.Len(t, sender.messages(), 1)
		assert.Equal(t, "a", sender.messages()[0].DisplayName)
	})

	t.Run("discards malformed body", func(t *testing.T) {
		ack, requeue, err := processDelivery(context.Background(), &recordingSender{}, []byte(`not json`), false)

		require.Error(t, err)
		assert.False(t, ack)
		assert.False(t, requeue)
	})

	t.Run("discards message without link", func(t *testing.T) {
		ack, requeue, err := processDelivery(context.Background(), &recordingSender{}, []byte(`{"to":"a@example.com"}`), false)

		require.Error(t, err)
		assert.False(t, ack)
		assert.False(t, requeue)
	})

	t.Run("requeues on send failure", func(t *testing.T) {
		ack, requeue, err := processDelivery(context.Background(), &recordingSender{err: errors.New("boom")}, []byte(`{"to":"a@example.com","link":"l"}`), false)

		require.Error(t, err)
		assert.False(t, ack)
		assert.True(t, requeue)
	})

	t.Run("drops redelivered message that fails again", func(t *testing.T) {
		ack, requeue, err := processDelivery(context.Background(), &recordingSender{err: errors.New("boom")}, []byte(`{"to":"a@example.com","link":"l"}`), true)

		require.Error(t, err)
		assert.False(t, ack)
		assert.False(t, requeue)
	})
}

func TestConsume_HandlesPrefetchedMessagesConcurrently(t *testing.T) {
	deliveries := make(chan amqp.Delivery, 3)
	for i := range 3 {
		deliveries <- amqp.Delivery{DeliveryTag: uint64(i + 1)}
	}
	close(deliveries)

	var inFlight atomic.Int32
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		consume(context.Background(), deliveries, 3, func(amqp.Delivery) {
			inFlight.Add(1)
			<-release
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return inFlight.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not return after the delivery channel closed")
	}
}

func TestConsume_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		consume(ctx, make(chan amqp.Delivery), 2, func(amqp.Delivery) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not stop after cancel")
	}
}
