package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
)

const (
	paymentKeyPrefix = "processed_payment:"
	defaultDedupTTL  = 7 * 24 * time.Hour
)

// RedisPaymentDedup records processed payment ids in Redis so duplicates are
// recognised across restarts.
type RedisPaymentDedup struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.LoggerV2
}

// NewRedisPaymentDedup creates a Redis-backed payment dedup.
func NewRedisPaymentDedup(cfg config.RedisConfig) *RedisPaymentDedup {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.DedupTTL
	if ttl == 0 {
		ttl = defaultDedupTTL
	}

	return &RedisPaymentDedup{
		client: client,
		ttl:    ttl,
		logger: logging.NewLoggerV2("payment-dedup"),
	}
}

func (d *RedisPaymentDedup) Seen(ctx context.Context, paymentID string) (bool, error) {
	n, err := d.client.Exists(ctx, paymentKeyPrefix+paymentID).Result()
	if err != nil {
		d.logger.Error("Dedup lookup error", logging.Fields{
			"payment_id": paymentID,
			"error":      err.Error(),
		})
		return false, err
	}
	return n > 0, nil
}

func (d *RedisPaymentDedup) MarkSeen(ctx context.Context, paymentID string) error {
	if err := d.client.Set(ctx, paymentKeyPrefix+paymentID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err(); err != nil {
		d.logger.Error("Dedup mark error", logging.Fields{
			"payment_id": paymentID,
			"error":      err.Error(),
		})
		return err
	}

	d.logger.Debug("Payment marked processed", logging.Fields{
		"payment_id": paymentID,
		"ttl":        d.ttl.String(),
	})
	return nil
}

func (d *RedisPaymentDedup) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisPaymentDedup) Close() error {
	return d.client.Close()
}

// MemoryPaymentDedup is the in-process dedup used when Redis is disabled.
// Entries expire after the same TTL as the Redis keys.
type MemoryPaymentDedup struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryPaymentDedup creates an in-process dedup. A zero ttl means the
// Redis default.
func NewMemoryPaymentDedup(ttl time.Duration) *MemoryPaymentDedup {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &MemoryPaymentDedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (d *MemoryPaymentDedup) Seen(ctx context.Context, paymentID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	expires, ok := d.seen[paymentID]
	if !ok {
		return false, nil
	}
	if !d.now().Before(expires) {
		delete(d.seen, paymentID)
		return false, nil
	}
	return true, nil
}

func (d *MemoryPaymentDedup) MarkSeen(ctx context.Context, paymentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.seen[paymentID] = now.Add(d.ttl)

	if now.Sub(d.lastSweep) >= d.ttl {
		for id, expires := range d.seen {
			if !now.Before(expires) {
				delete(d.seen, id)
			}
		}
		d.lastSweep = now
	}
	return nil
}

func (d *MemoryPaymentDedup) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
