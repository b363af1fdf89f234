package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/catalog/internal/cache"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/observability/logger"
	"github.com/smallbiznis/catalog/internal/observability/metrics"
	"github.com/smallbiznis/catalog/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// hash tags keep a product and its generation in one cluster slot
	keyProduct    = "catalog:product:{%s}"
	keyGeneration = "catalog:product:{%s}:gen"

	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"

	minGenerationTTL = time.Hour
)

// fillScript stores the product only while the generation still equals the one
// the caller read before going to the database.
const fillScript = `
local current = redis.call("GET", KEYS[2])
if not current then
  current = "0"
end
if current ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

// Generation counts invalidations of one product. A miss returns the current
// generation; Fill with it is dropped if the product was invalidated since.
type Generation struct {
	n     uint64
	known bool
}

// ProductCache is a read-through cache of products keyed by uuid.
// Failures are logged and reported as misses.
type ProductCache interface {
	Get(ctx context.Context, uuid string) (*domain.Product, Generation, bool)
	Fill(ctx context.Context, product *domain.Product, gen Generation)
	Delete(ctx context.Context, uuid string)
}

type Params struct {
	fx.In

	Config  config.Config
	Redis   *redis.Client `optional:"true"`
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// New picks redis when a client is configured, else an in-process TTL cache.
func New(p Params) ProductCache {
	ttl := time.Duration(p.Config.Cache.ProductTTLSeconds) * time.Second
	genTTL := max(ttl, minGenerationTTL)
	log := p.Log.Named("product.cache")
	if p.Redis != nil {
		return &redisCache{
			client:  p.Redis,
			fill:    redis.NewScript(fillScript),
			ttl:     ttl,
			genTTL:  genTTL,
			log:     log,
			metrics: p.Metrics,
		}
	}

	maxEntries := p.Config.Cache.ProductMaxEntries
	return &memoryCache{
		items:       cache.NewTTLCache[string, domain.Product](cache.WithMaxEntries(maxEntries)),
		generations: cache.NewTTLCache[string, uint64](cache.WithMaxEntries(maxEntries)),
		ttl:         ttl,
		genTTL:      genTTL,
		metrics:     p.Metrics,
	}
}

type redisCache struct {
	client  *redis.Client
	fill    *redis.Script
	ttl     time.Duration
	genTTL  time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func (c *redisCache) Get(ctx context.Context, uuid string) (*domain.Product, Generation, bool) {
	values, err := c.client.MGet(ctx, fmt.Sprintf(keyProduct, uuid), fmt.Sprintf(keyGeneration, uuid)).Result()
	if err == nil && len(values) != 2 {
		err = fmt.Errorf("unexpected mget reply of %d values", len(values))
	}
	if err != nil {
		c.metrics.RecordProductCache(ctx, resultError)
		logger.WithContext(ctx, c.log).Warn("product cache read failed", zap.Error(err))
		return nil, Generation{}, false
	}

	raw, ok := values[0].(string)
	if !ok {
		gen, err := parseGeneration(values[1])
		if err != nil {
			c.metrics.RecordProductCache(ctx, resultError)
			logger.WithContext(ctx, c.log).Warn("product cache generation corrupt", zap.Error(err))
			return nil, Generation{}, false
		}
		c.metrics.RecordProductCache(ctx, resultMiss)
		return nil, gen, false
	}

	var p domain.Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		c.metrics.RecordProductCache(ctx, resultError)
		logger.WithContext(ctx, c.log).Warn("product cache entry corrupt", zap.Error(err))
		return nil, Generation{}, false
	}
	c.metrics.RecordProductCache(ctx, resultHit)
	return &p, Generation{}, true
}

func (c *redisCache) Fill(ctx context.Context, product *domain.Product, gen Generation) {
	if product == nil || !gen.known {
		return
	}
	raw, err := json.Marshal(product)
	if err != nil {
		return
	}
	keys := []string{fmt.Sprintf(keyProduct, product.UUID), fmt.Sprintf(keyGeneration, product.UUID)}
	if err := c.fill.Run(ctx, c.client, keys, strconv.FormatUint(gen.n, 10), raw, c.ttl.Milliseconds()).Err(); err != nil {
		logger.WithContext(ctx, c.log).Warn("product cache write failed", zap.Error(err))
	}
}

// Delete bumps the generation and drops the entry in one transaction.
func (c *redisCache) Delete(ctx context.Context, uuid string) {
	genKey := fmt.Sprintf(keyGeneration, uuid)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, c.genTTL)
		pipe.Del(ctx, fmt.Sprintf(keyProduct, uuid))
		return nil
	})
	if err != nil {
		logger.WithContext(ctx, c.log).Warn("product cache invalidation failed", zap.Error(err))
	}
}

func parseGeneration(v interface{}) (Generation, error) {
	if v == nil {
		return Generation{known: true}, nil
	}
	s, ok := v.(string)
	if !ok {
		return Generation{}, fmt.Errorf("generation has type %T", v)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Generation{}, fmt.Errorf("parse generation: %w", err)
	}
	return Generation{n: n, known: true}, nil
}

type memoryCache struct {
	mu          sync.Mutex
	items       cache.Cache[string, domain.Product]
	generations cache.Cache[string, uint64]
	ttl         time.Duration
	genTTL      time.Duration
	metrics     *metrics.Metrics
}

func (c *memoryCache) Get(ctx context.Context, uuid string) (*domain.Product, Generation, bool) {
	c.mu.Lock()
	p, ok := c.items.Get(uuid)
	n, _ := c.generations.Get(uuid)
	c.mu.Unlock()

	if !ok {
		c.metrics.RecordProductCache(ctx, resultMiss)
		return nil, Generation{n: n, known: true}, false
	}
	c.metrics.RecordProductCache(ctx, resultHit)
	return &p, Generation{}, true
}

func (c *memoryCache) Fill(_ context.Context, product *domain.Product, gen Generation) {
	if product == nil || !gen.known {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, _ := c.generations.Get(product.UUID); n != gen.n {
		return
	}
	c.items.Set(product.UUID, *product, c.ttl)
}

func (c *memoryCache) Delete(_ context.Context, uuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := c.generations.Get(uuid)
	c.generations.Set(uuid, n+1, c.genTTL)
	c.items.Delete(uuid)
}
