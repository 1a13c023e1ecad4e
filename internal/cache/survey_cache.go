// Package cache keeps recently read surveys in Redis so the public
// active-run and submit paths avoid reloading questions on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/therealityreport/trr-surveys/internal/services"
)

const (
	keyPrefix  = "trr:survey:"
	DefaultTTL = 5 * time.Minute
)

// Client is the subset of redis.Cmdable the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient connects to Redis at addr. An empty addr disables caching.
func NewClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// ResponseStore wraps a services.ResponseStore with a read-through cache of
// GetSurveyWithQuestions. Redis failures are logged and fall through to the
// wrapped store.
type ResponseStore struct {
	services.ResponseStore
	client Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewResponseStore(next services.ResponseStore, client Client, ttl time.Duration, log *zap.Logger) *ResponseStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResponseStore{ResponseStore: next, client: client, ttl: ttl, log: log}
}

func surveyKey(slug string) string { return keyPrefix + slug }

func (c *ResponseStore) GetSurveyWithQuestions(ctx context.Context, slug string) (*services.SurveyWithQuestions, error) {
	if c.client == nil {
		return c.ResponseStore.GetSurveyWithQuestions(ctx, slug)
	}
	raw, err := c.client.Get(ctx, surveyKey(slug)).Bytes()
	switch {
	case err == nil:
		var sv services.SurveyWithQuestions
		jerr := json.Unmarshal(raw, &sv)
		if jerr == nil {
			return &sv, nil
		}
		c.log.Warn("discarding undecodable cached survey", zap.String("slug", slug), zap.Error(jerr))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("survey cache read failed", zap.String("slug", slug), zap.Error(err))
	}

	sv, err := c.ResponseStore.GetSurveyWithQuestions(ctx, slug)
	if err != nil || sv == nil {
		return sv, err
	}
	body, err := json.Marshal(sv)
	if err != nil {
		c.log.Warn("encode survey for cache", zap.String("slug", slug), zap.Error(err))
		return sv, nil
	}
	if err := c.client.Set(ctx, surveyKey(slug), body, c.ttl).Err(); err != nil {
		c.log.Warn("survey cache write failed", zap.String("slug", slug), zap.Error(err))
	}
	return sv, nil
}

// InvalidateSurvey drops the cached copy of slug.
func (c *ResponseStore) InvalidateSurvey(ctx context.Context, slug string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, surveyKey(slug)).Err(); err != nil {
		c.log.Warn("survey cache invalidation failed", zap.String("slug", slug), zap.Error(err))
		return err
	}
	return nil
}
