package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"neocafe/internal/connections/rabbitmq"
	"neocafe/internal/microservices/order/domain/models"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderItemsChanged  = "order.items_changed"
	EventStockRunningLow    = "inventory.running_low"
)

// Event is the JSON payload fanned out to notification subscribers.
type Event struct {
	Type         string           `json:"event_type"`
	OrderID      int64            `json:"order_id,omitempty"`
	BranchID     int64            `json:"branch_id"`
	OldStatus    string           `json:"old_status,omitempty"`
	NewStatus    string           `json:"new_status,omitempty"`
	TotalPrice   *decimal.Decimal `json:"total_price,omitempty"`
	Cashback     *decimal.Decimal `json:"cashback,omitempty"`
	IngredientID int64            `json:"ingredient_id,omitempty"`
	Ingredient   string           `json:"ingredient,omitempty"`
	Quantity     *int64           `json:"quantity,omitempty"`
	Limit        *int64           `json:"limit,omitempty"`
	ChangedBy    string           `json:"changed_by,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type AMQPPublisher struct {
	client  *rabbitmq.Client
	timeout time.Duration
}

func NewAMQPPublisher(client *rabbitmq.Client) *AMQPPublisher {
	return &AMQPPublisher{client: client, timeout: 5 * time.Second}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.client.Publish(ctx, rabbitmq.NotificationsExchange, "", amqp091.Publishing{
		DeliveryMode:  amqp091.Persistent,
		ContentType:   "application/json",
		Type:          ev.Type,
		MessageId:     uuid.NewString(),
		CorrelationId: strconv.FormatInt(ev.OrderID, 10),
		Timestamp:     ev.Timestamp,
		Headers: amqp091.Table{
			"x-source": "order-service",
		},
		Body: body,
	})
}

func orderEvent(typ string, o models.Order, old models.Status, changedBy string, at time.Time) Event {
	total := o.TotalPrice
	ev := Event{
		Type:       typ,
		OrderID:    o.ID,
		BranchID:   o.BranchID,
		NewStatus:  string(o.Status),
		TotalPrice: &total,
		ChangedBy:  changedBy,
		Timestamp:  at,
	}
	if old != "" {
		ev.OldStatus = string(old)
	}
	return ev
}

func runningLowEvents(recs []models.InventoryRecord, at time.Time) []Event {
	out := make([]Event, 0, len(recs))
	for _, r := range recs {
		qty, limit := r.Quantity, r.Limit
		out = append(out, Event{
			Type:         EventStockRunningLow,
			BranchID:     r.BranchID,
			IngredientID: r.IngredientID,
			Ingredient:   r.Name,
			Quantity:     &qty,
			Limit:        &limit,
			Timestamp:    at,
		})
	}
	return out
}
