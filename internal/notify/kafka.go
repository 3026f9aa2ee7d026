package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/example/class-booking/internal/application"
)

// DefaultKafkaTopic receives one message per admitted booking.
const DefaultKafkaTopic = "booking.accepted"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// acceptedMessage is the JSON body published to Kafka.
type acceptedMessage struct {
	ReservationID string    `json:"reservationId"`
	Name          string    `json:"nom"`
	Email         string    `json:"email"`
	Phone         string    `json:"telephone,omitempty"`
	Date          string    `json:"date"`
	Time          string    `json:"heure"`
	PoolKey       string    `json:"poolKey"`
	CreatedAt     time.Time `json:"createdAt"`
	Remaining     int       `json:"placesRestantes"`
	Capacity      int       `json:"capacite"`
}

// KafkaNotifier publishes accepted bookings for downstream consumers.
// Messages are keyed by pool so per-slot ordering is kept within a partition.
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier returns a notifier producing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &KafkaNotifier{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

// Notify implements application.Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, event application.BookingAccepted) error {
	body, err := json.Marshal(acceptedMessage{
		ReservationID: event.Reservation.ID,
		Name:          event.Reservation.Name,
		Email:         event.Reservation.Email,
		Phone:         event.Reservation.Phone,
		Date:          event.Reservation.Date,
		Time:          event.Reservation.Time,
		PoolKey:       event.Reservation.PoolKey,
		CreatedAt:     event.Reservation.CreatedAt,
		Remaining:     event.Remaining,
		Capacity:      event.Capacity,
	})
	if err != nil {
		return fmt.Errorf("encode booking event: %w", err)
	}

	msg := kafka.Message{Key: []byte(event.Reservation.PoolKey), Value: body}
	carrier := headerCarrier{headers: &msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish booking event: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// headerCarrier adapts Kafka headers to the OpenTelemetry propagation API.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
