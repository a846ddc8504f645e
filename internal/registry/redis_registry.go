package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/pkg/log"
)

type RedisRegistry struct {
	client            *redis.Client
	advertiseAddress  string
	prefix            string
	presenceChannel   string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{} // keys owned by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// PresenceUpdate is the payload published on the presence channel whenever a
// stream's viewer count changes.
type PresenceUpdate struct {
	StreamID string `json:"stream_id"`
	Count    int    `json:"count"`
	Address  string `json:"address"`
}

func NewRedisRegistry(cfg config.RedisConfig, advertiseAddress string) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRegistry{
		client:            client,
		advertiseAddress:  advertiseAddress,
		prefix:            cfg.RegistryPrefix,
		presenceChannel:   cfg.PresenceChannel,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}, nil
}

func (r *RedisRegistry) keyFor(streamID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, streamID)
}

// RegisterStream advertises this instance as the host of the stream. The key
// carries a TTL so a crashed instance ages out of the registry on its own.
func (r *RedisRegistry) RegisterStream(ctx context.Context, streamID string) error {
	key := r.keyFor(streamID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register stream: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	log.L().Info().
		Str(log.FieldStreamID, streamID).
		Str("address", r.advertiseAddress).
		Msg("registered stream")
	return nil
}

func (r *RedisRegistry) DeregisterStream(ctx context.Context, streamID string) error {
	key := r.keyFor(streamID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to deregister stream: %w", err)
	}

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	log.L().Info().Str(log.FieldStreamID, streamID).Msg("deregistered stream")
	return nil
}

// PublishViewerCount mirrors a count change to the presence channel.
func (r *RedisRegistry) PublishViewerCount(ctx context.Context, streamID string, count int) error {
	payload, err := json.Marshal(PresenceUpdate{
		StreamID: streamID,
		Count:    count,
		Address:  r.advertiseAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal presence update: %w", err)
	}

	if err := r.client.Publish(ctx, r.presenceChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish presence update: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, streamID string) (string, error) {
	key := r.keyFor(streamID)

	addr, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("stream %s not found", streamID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup stream: %w", err)
	}

	return addr, nil
}

func (r *RedisRegistry) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	log.L().Info().
		Dur("interval", r.heartbeatInterval).
		Dur("ttl", r.keyTTL).
		Msg("registry heartbeat started")
	return nil
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisRegistry) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, key := range keys {
		if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
			log.L().Error().Str("key", key).Err(err).Msg("failed to refresh key")
		}
	}
}

func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}
