package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore — хранилище сессий в Redis (ключи auth_<token>).
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore создаёт хранилище поверх клиента Redis.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With(slog.String("component", "session_redis")),
	}
}

// NewRedisClient создаёт клиент Redis по адресу host:port.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) LookupUserID(ctx context.Context, token string) (string, bool, error) {
	userID, err := s.client.Get(ctx, Key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения сессии из Redis: %w", err)
	}
	if userID == "" {
		return "", false, nil
	}
	return userID, true, nil
}

func (s *RedisStore) StoreToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, Key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи сессии в Redis: %w", err)
	}
	s.logger.Debug("Сессия сохранена", slog.String("user_id", userID), slog.Duration("ttl", ttl))
	return nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, Key(token)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления сессии из Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// CheckReady реализует handlers.ReadinessChecker.
func (s *RedisStore) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}

var _ Store = (*RedisStore)(nil)
