package telemetry

import (
	"context"
	"delivery-tracker/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// TrackPoint is the wire form of one driver position on the telemetry topic.
type TrackPoint struct {
	DriverID  string    `json:"driver_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid returns an error if the TrackPoint is invalid.
func (t TrackPoint) Valid() error {
	if t.DriverID == "" {
		return errors.New("driver_id required")
	}
	if t.Lat < -90 || t.Lat > 90 {
		return errors.New("lat out of range")
	}
	if t.Lon < -180 || t.Lon > 180 {
		return errors.New("lon out of range")
	}
	if t.Timestamp.IsZero() {
		return errors.New("timestamp required")
	}
	if t.Accuracy < 0 {
		return errors.New("accuracy cannot be negative")
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes driver positions to Kafka, keyed by driver so one
// driver's points stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates an async, batching publisher for the given topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: topic is empty")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: w}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, driverID string, r domain.Reading) error {
	tp := TrackPoint{
		DriverID:  driverID,
		Lat:       r.Lat,
		Lon:       r.Lng,
		Accuracy:  r.Accuracy,
		Timestamp: r.At,
	}
	if tp.Timestamp.IsZero() {
		tp.Timestamp = time.Now().UTC()
	}
	if err := tp.Valid(); err != nil {
		return fmt.Errorf("publish position: %w", err)
	}

	data, err := json.Marshal(tp)
	if err != nil {
		return fmt.Errorf("publish position: encode: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tp.DriverID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("publish position: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
