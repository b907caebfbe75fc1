package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apiward/oauth1gw/internal/config"
	"github.com/apiward/oauth1gw/internal/observability"
	"github.com/apiward/oauth1gw/internal/retry"
)

const storeTracerName = "github.com/apiward/oauth1gw/internal/store"

// redisRetryConfig returns the retry configuration for redis operations.
func redisRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		JitterFactor:   retry.DefaultJitterFactor,
	}
}

// isRetryableRedisError checks if the error is retryable (network errors).
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	// Record misses and context errors are not retryable.
	if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// RedisDirectory is a redis-backed implementation of the Directory interface.
// Nonce consumption maps onto SET NX with the retention window as TTL, which
// makes the check-and-record step atomic across gateway replicas.
type RedisDirectory struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string
	nonceTTL  time.Duration
}

// RedisOption is a functional option for the redis directory.
type RedisOption func(*RedisDirectory)

// WithRedisLogger sets the logger.
func WithRedisLogger(logger observability.Logger) RedisOption {
	return func(d *RedisDirectory) {
		d.logger = logger
	}
}

// WithRedisClient injects a pre-built client, used in tests.
func WithRedisClient(client *redis.Client) RedisOption {
	return func(d *RedisDirectory) {
		d.client = client
	}
}

// NewRedisDirectory creates a new redis directory from configuration.
func NewRedisDirectory(cfg *config.RedisStoreConfig, nonceTTL time.Duration, opts ...RedisOption) (*RedisDirectory, error) {
	if cfg == nil {
		return nil, errors.New("redis configuration is required")
	}

	d := &RedisDirectory{
		logger:    observability.NopLogger(),
		keyPrefix: cfg.KeyPrefix,
		nonceTTL:  nonceTTL,
	}
	if d.keyPrefix == "" {
		d.keyPrefix = "oauth1gw:"
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.client == nil {
		if cfg.URL == "" {
			return nil, errors.New("redis URL is required")
		}
		redisOpts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		applyRedisPoolOptions(redisOpts, cfg)

		if cfg.TLS != nil && cfg.TLS.Enabled {
			redisOpts.TLSConfig = &tls.Config{
				InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // User-configurable
			}
		}

		d.client = redis.NewClient(redisOpts)
	}

	if err := pingRedis(d.client); err != nil {
		_ = d.client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	d.logger.Info("redis directory initialized",
		observability.String("keyPrefix", d.keyPrefix),
		observability.Duration("nonceTTL", d.nonceTTL))

	return d, nil
}

// applyRedisPoolOptions applies pool and timeout overrides to redis options.
func applyRedisPoolOptions(opts *redis.Options, cfg *config.RedisStoreConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.ConnectTimeout.Duration()
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout.Duration()
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout.Duration()
	}
}

// pingRedis tests the redis connection with a timeout.
func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// consumerKey returns the redis key for a consumer record.
func (d *RedisDirectory) consumerKey(key string) string {
	return d.keyPrefix + "consumer:" + key
}

// tokenKey returns the redis key for a token record.
func (d *RedisDirectory) tokenKey(token string) string {
	return d.keyPrefix + "token:" + token
}

// nonceRedisKey returns the redis key for a consumed nonce tuple.
func (d *RedisDirectory) nonceRedisKey(consumerID, tokenID, nonce string) string {
	return d.keyPrefix + "nonce:" + consumerID + ":" + tokenID + ":" + nonce
}

// LookupConsumer resolves a consumer by key.
func (d *RedisDirectory) LookupConsumer(ctx context.Context, key string) (*Consumer, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.LookupConsumer",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.backend", "redis")),
	)
	defer span.End()

	data, err := d.getWithRetry(ctx, d.consumerKey(key), "lookup consumer")
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("store.found", false))
			return nil, ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up consumer: %w", err)
	}

	var c Consumer
	if err := json.Unmarshal(data, &c); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode consumer record: %w", err)
	}

	span.SetAttributes(attribute.Bool("store.found", true))
	return &c, nil
}

// ResolveAccessToken resolves an access token owned by the given consumer.
func (d *RedisDirectory) ResolveAccessToken(ctx context.Context, consumer *Consumer, token string) (*Token, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.ResolveAccessToken",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.backend", "redis")),
	)
	defer span.End()

	data, err := d.getWithRetry(ctx, d.tokenKey(token), "resolve token")
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("store.found", false))
			return nil, ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode token record: %w", err)
	}

	if t.ConsumerID != consumer.ID || !t.IsValid() {
		span.SetAttributes(attribute.Bool("store.found", false))
		return nil, ErrNotFound
	}

	span.SetAttributes(attribute.Bool("store.found", true))
	return &t, nil
}

// CheckAndRecordNonce records the nonce via SET NX. The first presentation
// wins; every later one within the retention window observes the key and is
// rejected.
func (d *RedisDirectory) CheckAndRecordNonce(ctx context.Context, consumerID, tokenID string, timestamp int64, nonce string) error {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store.CheckAndRecordNonce",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.backend", "redis")),
	)
	defer span.End()

	record := NonceRecord{
		ConsumerID: consumerID,
		TokenID:    tokenID,
		Nonce:      nonce,
		Timestamp:  timestamp,
		FirstSeen:  time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode nonce record: %w", err)
	}

	key := d.nonceRedisKey(consumerID, tokenID, nonce)

	var acquired bool
	err = retry.Do(ctx, redisRetryConfig(), func() error {
		var setErr error
		acquired, setErr = d.client.SetNX(ctx, key, payload, d.nonceTTL).Result()
		return setErr
	}, &retry.Options{
		ShouldRetry: isRetryableRedisError,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			d.logger.Debug("retrying redis setnx",
				observability.Int("attempt", attempt),
				observability.Error(err))
		},
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("failed to record nonce: %w", err)
	}

	span.SetAttributes(attribute.Bool("store.nonce_acquired", acquired))
	if !acquired {
		return ErrNonceAlreadyUsed
	}
	return nil
}

// PutConsumer stores a consumer record. Provisioning seam for deployment
// tooling; authentication itself never writes credential records.
func (d *RedisDirectory) PutConsumer(ctx context.Context, c *Consumer) error {
	cp := *c
	if cp.ID == "" {
		cp.ID = cp.Key
	}
	payload, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to encode consumer record: %w", err)
	}
	return d.client.Set(ctx, d.consumerKey(cp.Key), payload, 0).Err()
}

// PutToken stores a token record.
func (d *RedisDirectory) PutToken(ctx context.Context, t *Token) error {
	tp := *t
	if tp.Status == "" {
		tp.Status = TokenStatusValid
	}
	payload, err := json.Marshal(&tp)
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}
	return d.client.Set(ctx, d.tokenKey(tp.Token), payload, 0).Err()
}

// Close closes the redis connection.
func (d *RedisDirectory) Close() error {
	return d.client.Close()
}

// getWithRetry reads a key with exponential backoff on transport errors.
func (d *RedisDirectory) getWithRetry(ctx context.Context, key, op string) ([]byte, error) {
	var result []byte
	err := retry.Do(ctx, redisRetryConfig(), func() error {
		val, getErr := d.client.Get(ctx, key).Bytes()
		if getErr == nil {
			result = val
		}
		return getErr
	}, &retry.Options{
		ShouldRetry: isRetryableRedisError,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			d.logger.Debug("retrying redis get",
				observability.String("op", op),
				observability.Int("attempt", attempt),
				observability.Error(err))
		},
	})
	return result, err
}

// Ensure RedisDirectory implements Directory.
var _ Directory = (*RedisDirectory)(nil)
