package service

import (
	"context"
	"encoding/json"
	"time"

	"formquiz_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	publicFormKeyPrefix = "forms:public:"
	publicFormGenPrefix = "forms:public:gen:"
)

// cacheBackend FormCache 用到的 Redis 命令子集，*redis.Client 直接满足
type cacheBackend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// FormCache 按分享码缓存公开表单；未配置 Redis 时所有操作为空操作
//
// 每个分享码有一个代数计数器，Invalidate 先递增代数再删除缓存。
// 缓存项记录写入时读到的代数，与当前代数不一致即视为未命中，
// 因此在 Invalidate 之后才写入的旧视图不会被读到。
type FormCache struct {
	backend cacheBackend
	ttl     time.Duration
}

type cachedForm struct {
	Gen  int64       `json:"gen"`
	Form *PublicForm `json:"form"`
}

func NewFormCache(rdb *redis.Client, ttl time.Duration) *FormCache {
	if rdb == nil {
		return newFormCache(nil, ttl)
	}
	return newFormCache(rdb, ttl)
}

func newFormCache(backend cacheBackend, ttl time.Duration) *FormCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FormCache{backend: backend, ttl: ttl}
}

func (c *FormCache) enabled() bool {
	return c != nil && c.backend != nil
}

func (c *FormCache) generation(ctx context.Context, code string) (int64, error) {
	gen, err := c.backend.Get(ctx, publicFormGenPrefix+code).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// Get 返回缓存视图和当前代数；未命中时调用方应把代数原样交给 Set
func (c *FormCache) Get(ctx context.Context, code string) (*PublicForm, int64, bool) {
	if !c.enabled() {
		return nil, 0, false
	}
	gen, err := c.generation(ctx, code)
	if err != nil {
		logger.Log.Warn("form cache generation read failed", zap.String("code", code), zap.Error(err))
		return nil, -1, false
	}
	data, err := c.backend.Get(ctx, publicFormKeyPrefix+code).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("form cache get failed", zap.String("code", code), zap.Error(err))
		}
		return nil, gen, false
	}
	var entry cachedForm
	if err := json.Unmarshal(data, &entry); err != nil || entry.Form == nil || entry.Gen != gen {
		return nil, gen, false
	}
	return entry.Form, gen, true
}

// Set 写入在代数 gen 下从数据库读到的视图；gen 为负表示代数未知，不写入
func (c *FormCache) Set(ctx context.Context, gen int64, form *PublicForm) {
	if !c.enabled() || gen < 0 {
		return
	}
	data, err := json.Marshal(cachedForm{Gen: gen, Form: form})
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, publicFormKeyPrefix+form.Code, data, c.ttl).Err(); err != nil {
		logger.Log.Warn("form cache set failed", zap.String("code", form.Code), zap.Error(err))
	}
}

// Invalidate 表单更新、删除后调用
func (c *FormCache) Invalidate(ctx context.Context, code string) {
	if !c.enabled() || code == "" {
		return
	}
	if err := c.backend.Incr(ctx, publicFormGenPrefix+code).Err(); err != nil {
		logger.Log.Warn("form cache generation bump failed", zap.String("code", code), zap.Error(err))
	}
	if err := c.backend.Del(ctx, publicFormKeyPrefix+code).Err(); err != nil {
		logger.Log.Warn("form cache invalidate failed", zap.String("code", code), zap.Error(err))
	}
}
