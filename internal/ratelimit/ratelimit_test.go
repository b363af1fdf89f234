package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/catalog/internal/config"
)

func TestDefaultBucketTTL(t *testing.T) {
	if got := defaultBucketTTL(20, 40); got != 4*time.Second {
		t.Fatalf("expected 4s, got %s", got)
	}
	if got := defaultBucketTTL(1000, 1); got != time.Second {
		t.Fatalf("expected ttl floor of 1s, got %s", got)
	}
	if got := defaultBucketTTL(0, 0); got != time.Second {
		t.Fatalf("expected 1s for invalid input, got %s", got)
	}
}

func TestBucketResultRetryAfter(t *testing.T) {
	res := bucketResult(false, 0.5, 1000, 2, 10)
	if res.Allowed {
		t.Fatalf("expected denied")
	}
	if res.RetryAfter != 250*time.Millisecond {
		t.Fatalf("expected 250ms retry, got %s", res.RetryAfter)
	}
	if res.Limit != 10 || res.Remaining != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	res = bucketResult(true, 3.7, 1000, 2, 10)
	if res.RetryAfter != 0 || res.Remaining != 3 {
		t.Fatalf("unexpected allowed result %+v", res)
	}
}

func TestCastHelpers(t *testing.T) {
	if castToFloat("1.25") != 1.25 {
		t.Fatalf("expected string float to parse")
	}
	if castToInt("7") != 7 || castToInt(int64(3)) != 3 || castToInt(nil) != 0 {
		t.Fatalf("unexpected int cast")
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewProductWriteLimiter(config.Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.Enabled() {
		t.Fatalf("expected nil limiter to be disabled")
	}
	res, err := limiter.AllowCompany(context.Background(), 1)
	if err != nil || !res.Allowed {
		t.Fatalf("expected allowed, got %+v %v", res, err)
	}
	token, ok, err := limiter.TryLockName(context.Background(), 1, "Tea")
	if err != nil || !ok || token != "" {
		t.Fatalf("expected lock to succeed without token")
	}
	if err := limiter.ReleaseName(context.Background(), 1, "Tea", token); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
}

func TestNewProductWriteLimiterRejectsInvalidRates(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, ProductWriteRate: 0, ProductWriteBurst: 1, NameLockTTLSecond: 1}}
	if _, err := NewProductWriteLimiter(cfg, redis.NewClient(&redis.Options{Addr: "localhost:0"})); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}

func TestNameLockKeyIsCaseInsensitive(t *testing.T) {
	if nameLockKey(4, " Green Tea ") != nameLockKey(4, "green tea") {
		t.Fatalf("expected case-insensitive lock keys")
	}
}

func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CATALOG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CATALOG_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTokenBucketAgainstRedis(t *testing.T) {
	client := redisForTest(t)
	bucket := NewTokenBucket(client)
	key := "catalog:test:bucket:" + uuid.NewString()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := bucket.Allow(ctx, key, 0.1, 2)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v %v", i, res, err)
		}
	}
	res, err := bucket.Allow(ctx, key, 0.1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed || res.RetryAfter <= 0 {
		t.Fatalf("expected denial with retry hint, got %+v", res)
	}
}

func TestLockerAgainstRedis(t *testing.T) {
	client := redisForTest(t)
	locker := NewLocker(client)
	key := "catalog:test:lock:" + uuid.NewString()
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, key, time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first lock, got %v %v", ok, err)
	}
	if _, ok, _ := locker.TryLock(ctx, key, time.Second); ok {
		t.Fatalf("expected second lock to fail")
	}
	if err := locker.Release(ctx, key, "someone-else"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := locker.TryLock(ctx, key, time.Second); ok {
		t.Fatalf("expected lock to survive a foreign release")
	}
	if err := locker.Release(ctx, key, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := locker.TryLock(ctx, key, time.Second); !ok {
		t.Fatalf("expected lock after release")
	}
}
