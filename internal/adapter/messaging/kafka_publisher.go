package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/order-stock/internal/core/domain"
)

// OrderPlacedEvent is the message written for every committed order.
type OrderPlacedEvent struct {
	OrderID         int64            `json:"order_id"`
	CustomerName    string           `json:"customer_name"`
	CustomerAddress string           `json:"customer_address"`
	TotalPrice      int64            `json:"total_price"`
	OrderedAt       time.Time        `json:"ordered_at"`
	Items           []OrderItemEvent `json:"items"`
}

type OrderItemEvent struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per order, keyed by order id.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishOrdersPlaced(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(orders))
	for _, o := range orders {
		value, err := json.Marshal(newOrderPlacedEvent(o))
		if err != nil {
			return fmt.Errorf("marshal order %d: %w", o.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(o.ID, 10)),
			Value: value,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d orders: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newOrderPlacedEvent(o domain.Order) OrderPlacedEvent {
	items := make([]OrderItemEvent, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemEvent{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}

	return OrderPlacedEvent{
		OrderID:         o.ID,
		CustomerName:    o.CustomerName,
		CustomerAddress: o.CustomerAddress,
		TotalPrice:      o.TotalPrice(),
		OrderedAt:       o.OrderedAt,
		Items:           items,
	}
}
