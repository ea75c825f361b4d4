package service

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"neocafe/internal/common/logger"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}
func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type chanConsumer struct {
	ch     chan amqp.Delivery
	closed bool
}

func (c *chanConsumer) Consume(string, string, int) (<-chan amqp.Delivery, func() error, error) {
	return c.ch, func() error { c.closed = true; return nil }, nil
}

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap("notification-subscriber", zap.New(core)), logs
}

func TestHandleAcksValidNotification(t *testing.T) {
	log, logs := observed()
	ns := NewNotificatorService(nil, log)
	ack := &ackRecorder{}

	ns.Handle(amqp.Delivery{
		Acknowledger: ack,
		MessageId:    "m-1",
		Body:         []byte(`{"event_type":"order.status_changed","order_id":7,"branch_id":1,"old_status":"done","new_status":"completed","cashback":"0.55"}`),
	})

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
	entries := logs.FilterField(zap.String("action", "notification_received")).All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(7), ctx["order_id"])
	assert.Equal(t, "0.55", ctx["cashback"])
}

func TestHandleDeadLettersMalformed(t *testing.T) {
	log, _ := observed()
	ns := NewNotificatorService(nil, log)

	for _, body := range []string{`not json`, `{"order_id":1}`} {
		ack := &ackRecorder{requeue: true}
		ns.Handle(amqp.Delivery{Acknowledger: ack, Body: []byte(body)})
		assert.Equal(t, 0, ack.acked, body)
		assert.Equal(t, 1, ack.nacked, body)
		assert.False(t, ack.requeue, body)
	}
}

func TestNotifyStopsOnContextAndClosesChannel(t *testing.T) {
	log, _ := observed()
	consumer := &chanConsumer{ch: make(chan amqp.Delivery, 1)}
	ns := NewNotificatorService(consumer, log)

	ack := &ackRecorder{}
	consumer.ch <- amqp.Delivery{Acknowledger: ack, Body: []byte(`{"event_type":"inventory.running_low","branch_id":1,"ingredient":"milk","quantity":40}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ns.Notify(ctx) }()

	require.Eventually(t, func() bool { return len(consumer.ch) == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Notify did not return after cancel")
	}
	assert.True(t, consumer.closed)
	assert.Equal(t, 1, ack.acked)
}

func TestNotifyFailsWhenBrokerClosesChannel(t *testing.T) {
	log, _ := observed()
	consumer := &chanConsumer{ch: make(chan amqp.Delivery)}
	close(consumer.ch)

	err := NewNotificatorService(consumer, log).Notify(context.Background())
	assert.Error(t, err)
}
