package producer

import (
	"context"
	"encoding/json"
	"time"

	"reservation-service/internal/service"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BookingProducer публикует события о созданных бронях; ключ сообщения: id брони.
type BookingProducer struct {
	writer messageWriter
}

var _ service.EventBus = (*BookingProducer)(nil)

func NewBookingProducer(brokers []string, topic string) *BookingProducer {
	return &BookingProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *BookingProducer) PublishBookingCreated(ctx context.Context, e service.BookingCreatedEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.BookingID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("booking.created")},
		},
	})
}

func (p *BookingProducer) Close() error {
	return p.writer.Close()
}

// Noop: когда KAFKA_BROKERS не задан.
type Noop struct{}

func (Noop) PublishBookingCreated(context.Context, service.BookingCreatedEvent) error { return nil }
