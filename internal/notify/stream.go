package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

const (
	defaultStream = "alerts.edge"
	streamMaxLen  = 10000
)

// StreamNotifier publishes alerts to a Redis stream for downstream consumers.
type StreamNotifier struct {
	client *redis.Client
	stream string
}

// NewStreamNotifier connects to Redis and checks the connection.
func NewStreamNotifier(cfg config.RedisConfig) (*StreamNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStreamNotifierWithClient(client, cfg.Stream), nil
}

func NewStreamNotifierWithClient(client *redis.Client, stream string) *StreamNotifier {
	if stream == "" {
		stream = defaultStream
	}
	return &StreamNotifier{client: client, stream: stream}
}

func (s *StreamNotifier) Name() string { return "redis-stream" }

func (s *StreamNotifier) Notify(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"alert_id": alert.ID,
			"matchup":  alert.Matchup,
			"side":     string(alert.Side),
			"alert":    string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", s.stream, err)
	}
	return nil
}

func (s *StreamNotifier) Close() error {
	return s.client.Close()
}
