package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

func TestStreamNotifier_Publish(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	stream := "alerts.edge.test." + uuid.NewString()
	s, err := NewStreamNotifier(config.RedisConfig{Addr: addr, Stream: stream})
	if err != nil {
		t.Fatalf("NewStreamNotifier: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer s.client.Del(context.Background(), stream)

	alert := sampleAlert()
	if err := s.Notify(ctx, alert); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	entries, err := s.client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stream has %d entries, want 1", len(entries))
	}
	raw, _ := entries[0].Values["alert"].(string)
	var got models.Alert
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.ID != alert.ID || got.Edge != alert.Edge || got.Side != alert.Side {
		t.Errorf("payload = %+v, want %+v", got, alert)
	}
}

func TestNewStreamNotifier_Unreachable(t *testing.T) {
	if _, err := NewStreamNotifier(config.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("expected connection error")
	}
}
