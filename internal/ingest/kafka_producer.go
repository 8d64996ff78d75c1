package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/models"
)

// RideEvent is the lifecycle record published to the ride-events topic.
type RideEvent struct {
	Type     string    `json:"type"` // ride_requested, ride_booked, ride_completed, no_driver_found
	RideID   string    `json:"ride_id"`
	RiderID  string    `json:"rider_id,omitempty"`
	DriverID string    `json:"driver_id,omitempty"`
	At       time.Time `json:"at"`
}

const (
	EventRideRequested = "ride_requested"
	EventRideBooked    = "ride_booked"
	EventRideCompleted = "ride_completed"
	EventNoDriverFound = "no_driver_found"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) publish(key string, v any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

// PublishLocation feeds a driver position into the driver-locations topic;
// the consumer folds it into the Redis GEO index.
func (p *Producer) PublishLocation(d models.Driver) error {
	return p.publish(d.ID, d)
}

// PublishRideEvent records a ride lifecycle transition.
func (p *Producer) PublishRideEvent(ev RideEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return p.publish(ev.RideID, ev)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
