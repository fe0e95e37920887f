// Package cache is a thin redis layer for public receipt lookups. Tokens
// are rotated on reissue, so entries must be invalidated alongside.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Service struct {
	client *redis.Client
	logger *zap.Logger
}

func New(addr, password string, db int, logger *zap.Logger) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:        50,
		MinIdleConns:    5,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", addr))

	return &Service{client: client, logger: logger}, nil
}

// Client exposes the underlying redis client for the event publisher.
func (s *Service) Client() *redis.Client {
	return s.client
}

func (s *Service) Close() error {
	return s.client.Close()
}

// ReceiptKey formats the cache key for a receipt token.
func ReceiptKey(token string) string {
	return fmt.Sprintf("receipt:v1:%s", token)
}

// GetReceipt returns the cached rendering for a token, or nil on miss.
func (s *Service) GetReceipt(ctx context.Context, tok string) ([]byte, error) {
	data, err := s.client.Get(ctx, ReceiptKey(tok)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss, not an error
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return data, nil
}

// SetReceipt caches a rendering until the receipt itself expires.
func (s *Service) SetReceipt(ctx context.Context, tok string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, ReceiptKey(tok), data, ttl).Err()
}

// DeleteReceipt drops a token's cached rendering. Called when the token is
// rotated away.
func (s *Service) DeleteReceipt(ctx context.Context, tok string) error {
	return s.client.Del(ctx, ReceiptKey(tok)).Err()
}
