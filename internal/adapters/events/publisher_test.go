package events

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoggingPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLoggingPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := p.Publish(context.Background(), "scan.completed", []byte(`{"score":48}`), "acme.io"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"event_type":"scan.completed"`, `"partition_key":"acme.io"`, `"payload_bytes":12`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %s missing %s", out, want)
		}
	}
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	tests := []struct {
		name    string
		brokers []string
		topic   string
		wantErr bool
	}{
		{"no brokers", nil, "beacon.scan-events", true},
		{"no topic", []string{"localhost:9092"}, "", true},
		{"ok", []string{"localhost:9092"}, "beacon.scan-events", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewKafkaPublisher(tt.brokers, tt.topic)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewKafkaPublisher() error = %v, wantErr %v", err, tt.wantErr)
			}
			if p != nil {
				_ = p.Close()
			}
		})
	}
}

func TestMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	m := message("scan.completed", []byte("{}"), "acme.io", at)
	if string(m.Key) != "acme.io" || string(m.Value) != "{}" {
		t.Errorf("message() = %+v", m)
	}
	if len(m.Headers) != 1 || m.Headers[0].Key != eventTypeHeader || string(m.Headers[0].Value) != "scan.completed" {
		t.Errorf("headers = %+v", m.Headers)
	}
	if m.Time.Location() != time.UTC || !m.Time.Equal(at) {
		t.Errorf("time = %v", m.Time)
	}
}
