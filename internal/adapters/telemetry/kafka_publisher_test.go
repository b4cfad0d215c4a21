package telemetry

import (
	"context"
	"delivery-tracker/internal/domain"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type mockWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		driverID  string
		reading   domain.Reading
		writerErr error
		wantErr   bool
		wantMsgs  int
	}{
		{
			name:     "valid reading",
			driverID: "u1",
			reading:  domain.Reading{Lat: 25.03, Lng: 121.56, Accuracy: 5, At: at},
			wantMsgs: 1,
		},
		{
			name:     "missing timestamp is stamped",
			driverID: "u1",
			reading:  domain.Reading{Lat: 1, Lng: 2},
			wantMsgs: 1,
		},
		{
			name:     "empty driver",
			reading:  domain.Reading{Lat: 1, Lng: 2, At: at},
			wantErr:  true,
			wantMsgs: 0,
		},
		{
			name:     "lat out of range",
			driverID: "u1",
			reading:  domain.Reading{Lat: 91, Lng: 2, At: at},
			wantErr:  true,
			wantMsgs: 0,
		},
		{
			name:      "writer failure",
			driverID:  "u1",
			reading:   domain.Reading{Lat: 1, Lng: 2, At: at},
			writerErr: errors.New("broker down"),
			wantErr:   true,
			wantMsgs:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &mockWriter{err: tt.writerErr}
			p := &KafkaPublisher{writer: w}

			err := p.Publish(context.Background(), tt.driverID, tt.reading)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(w.written) != tt.wantMsgs {
				t.Fatalf("written = %d, want %d", len(w.written), tt.wantMsgs)
			}
		})
	}
}

func TestKafkaPublisher_MessageShape(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := p.Publish(context.Background(), "u1", domain.Reading{Lat: 20, Lng: 10, Accuracy: 3, At: at}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := w.written[0]
	if string(msg.Key) != "u1" {
		t.Fatalf("key = %q, want u1", msg.Key)
	}
	var tp TrackPoint
	if err := json.Unmarshal(msg.Value, &tp); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if tp.Lat != 20 || tp.Lon != 10 || tp.Accuracy != 3 || !tp.Timestamp.Equal(at) {
		t.Fatalf("unexpected track point: %+v", tp)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close: err=%v closed=%v", err, w.closed)
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "t"); err == nil {
		t.Fatalf("expected error for missing brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatalf("expected error for empty topic")
	}
}
