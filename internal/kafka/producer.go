package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/portfolio-service/internal/models"
)

// Producer publishes order events to Kafka.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the order events topic.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer}
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// OrderEvent is the message published after an order executes.
type OrderEvent struct {
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Data      OrderEventData `json:"data"`
}

// OrderEventData carries the executed order. Decimals travel as strings.
type OrderEventData struct {
	OrderID  string `json:"order_id"`
	UserID   string `json:"user_id"`
	Ticker   string `json:"ticker"`
	Action   string `json:"action"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
}

// PublishOrderExecuted emits an ORDER_EXECUTED event, keyed by user so a
// consumer sees one user's orders in order.
func (p *Producer) PublishOrderExecuted(ctx context.Context, order models.Order) error {
	event := OrderEvent{
		EventType: "ORDER_EXECUTED",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: OrderEventData{
			OrderID:  order.ID,
			UserID:   order.UserID,
			Ticker:   order.Ticker,
			Action:   order.Action,
			Quantity: order.Quantity.String(),
			Price:    order.Price.String(),
		},
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.UserID),
		Value: payload,
	})
}
