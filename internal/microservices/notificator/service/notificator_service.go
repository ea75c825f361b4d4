package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"neocafe/internal/common/logger"
	"neocafe/internal/connections/rabbitmq"
)

// Consumer is the part of the rabbitmq client the subscriber needs.
type Consumer interface {
	Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, func() error, error)
}

// Notification mirrors the events fanned out by the order service.
type Notification struct {
	Type         string           `json:"event_type"`
	OrderID      int64            `json:"order_id"`
	BranchID     int64            `json:"branch_id"`
	OldStatus    string           `json:"old_status"`
	NewStatus    string           `json:"new_status"`
	TotalPrice   *decimal.Decimal `json:"total_price"`
	Cashback     *decimal.Decimal `json:"cashback"`
	IngredientID int64            `json:"ingredient_id"`
	Ingredient   string           `json:"ingredient"`
	Quantity     *int64           `json:"quantity"`
	Limit        *int64           `json:"limit"`
	ChangedBy    string           `json:"changed_by"`
	Timestamp    time.Time        `json:"timestamp"`
}

type NotificatorService struct {
	consumer Consumer
	log      *logger.Logger
	prefetch int
}

func NewNotificatorService(consumer Consumer, log *logger.Logger) *NotificatorService {
	return &NotificatorService{consumer: consumer, log: log, prefetch: 10}
}

// Notify consumes the notifications queue until ctx ends or the broker closes the channel.
func (ns *NotificatorService) Notify(ctx context.Context) error {
	msgs, closeFn, err := ns.consumer.Consume(rabbitmq.NotificationsQueue, "notification-subscriber", ns.prefetch)
	if err != nil {
		return fmt.Errorf("consume %s: %w", rabbitmq.NotificationsQueue, err)
	}
	defer func() { _ = closeFn() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("notifications channel closed")
			}
			ns.Handle(d)
		}
	}
}

// Handle acks a well-formed notification and dead-letters anything else.
func (ns *NotificatorService) Handle(d amqp.Delivery) {
	n, err := Decode(d.Body)
	if err != nil {
		ns.log.Warn("notification_malformed", map[string]any{"message_id": d.MessageId, "reason": err.Error()})
		_ = d.Nack(false, false)
		return
	}
	ns.log.Info("notification_received", fields(n, d.MessageId))
	_ = d.Ack(false)
}

func Decode(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, err
	}
	if n.Type == "" {
		return Notification{}, errors.New("event_type is missing")
	}
	return n, nil
}

func fields(n Notification, messageID string) map[string]any {
	f := map[string]any{
		"event_type": n.Type,
		"branch_id":  n.BranchID,
		"message_id": messageID,
	}
	if n.OrderID != 0 {
		f["order_id"] = n.OrderID
	}
	if n.NewStatus != "" {
		f["new_status"] = n.NewStatus
	}
	if n.OldStatus != "" {
		f["old_status"] = n.OldStatus
	}
	if n.Cashback != nil {
		f["cashback"] = n.Cashback.StringFixed(2)
	}
	if n.Ingredient != "" {
		f["ingredient"] = n.Ingredient
	}
	if n.Quantity != nil {
		f["quantity"] = *n.Quantity
	}
	return f
}
