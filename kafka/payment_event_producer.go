package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// PaymentEvent is published once per terminal payment transition.
type PaymentEvent struct {
	Type      string    `json:"type"` // payment_captured | payment_expired | payment_failed
	BookingID string    `json:"booking_id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentEventProducer struct {
	writer *kafka.Writer
}

func NewPaymentEventProducer(brokers []string, topic string) *PaymentEventProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &PaymentEventProducer{writer: writer}
}

func (p *PaymentEventProducer) SendPaymentEvent(event PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.BookingID),
		Value: data,
	}
	return p.writer.WriteMessages(context.Background(), msg)
}

func (p *PaymentEventProducer) Close() {
	_ = p.writer.Close()
}
