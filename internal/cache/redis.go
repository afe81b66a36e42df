// Package cache реализует хранилище с ограниченным временем жизни на основе Redis.
// Используется для незавершённых регистраций, ожидающих подтверждения email.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bioopay/backend/internal/config"
	"github.com/bioopay/backend/internal/models"
)

const (
	pendingPrefix  = "verification:"
	attemptsPrefix = "verification_attempts:"
)

type Cache struct {
	Db *redis.Client
}

func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Close закрывает соединение с Redis.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// Get читает значение по ключу. Отсутствие ключа не считается ошибкой.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в JSON. expiration == redis.KeepTTL сохраняет текущий срок жизни ключа.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет ключи.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func pendingKey(email string) string {
	return pendingPrefix + strings.ToLower(strings.TrimSpace(email))
}

func attemptsKey(email string) string {
	return attemptsPrefix + strings.ToLower(strings.TrimSpace(email))
}

// SavePending сохраняет незавершённую регистрацию на ttl, перезаписывая предыдущую.
// Счётчик неудачных попыток ввода кода сбрасывается.
func (c *Cache) SavePending(ctx context.Context, p *models.PendingRegistration, ttl time.Duration) error {
	const op = "cache.SavePending"
	if err := c.Set(ctx, pendingKey(p.Email), p, ttl); err != nil {
		return err
	}
	if err := c.Db.Del(ctx, attemptsKey(p.Email)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPending возвращает незавершённую регистрацию или models.ErrNotFound, если она истекла или не создавалась.
func (c *Cache) GetPending(ctx context.Context, email string) (*models.PendingRegistration, error) {
	const op = "cache.GetPending"
	var p models.PendingRegistration
	found, err := c.Get(ctx, pendingKey(email), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &p, nil
}

// MarkVerified отмечает регистрацию подтверждённой, не продлевая срок её жизни.
// Истёкшая к этому моменту регистрация не восстанавливается: возвращается models.ErrInvalidCode.
func (c *Cache) MarkVerified(ctx context.Context, p *models.PendingRegistration) error {
	const op = "cache.MarkVerified"
	p.Verified = true
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = c.Db.SetArgs(ctx, pendingKey(p.Email), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AddFailedAttempt увеличивает счётчик неверных кодов для email и возвращает новое значение.
// Счётчик живёт не дольше самой регистрации; без регистрации возвращается models.ErrInvalidCode.
func (c *Cache) AddFailedAttempt(ctx context.Context, email string) (int, error) {
	const op = "cache.AddFailedAttempt"
	key := attemptsKey(email)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := c.Db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, pendingKey(email))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if ttl.Val() <= 0 {
		_ = c.Db.Del(ctx, key).Err()
		return 0, fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
	}
	if err := c.Db.PExpire(ctx, key, ttl.Val()).Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(incr.Val()), nil
}

// DeletePending удаляет незавершённую регистрацию вместе со счётчиком попыток.
func (c *Cache) DeletePending(ctx context.Context, email string) error {
	return c.Invalidate(ctx, pendingKey(email), attemptsKey(email))
}

// Ping проверяет доступность Redis.
func (c *Cache) Ping(ctx context.Context) error {
	const op = "cache.Ping"
	if err := c.Db.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
