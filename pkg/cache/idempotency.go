package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// 下单幂等键：idem:order:create:{user_id}:{key} -> order_id
const keyIdemOrderCreate = "idem:order:create:%s:%s"

// 占位值，表示首个请求仍在处理
const idemInFlight = "in-flight"

// ErrRequestInFlight 同一幂等键的请求正在处理
var ErrRequestInFlight = errors.New("request with this idempotency key is in progress")

// IdempotencyStore 下单请求去重。Redis 只是快速通道，订单本身仍以数据库为准。
type IdempotencyStore struct {
	cache CacheService
	ttl   time.Duration
}

func NewIdempotencyStore(cache CacheService, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{cache: cache, ttl: ttl}
}

func orderKey(userID, key string) string {
	return fmt.Sprintf(keyIdemOrderCreate, userID, key)
}

// Begin 占用幂等键。键已完成时返回已创建的订单 ID，acquired 为 false。
func (s *IdempotencyStore) Begin(ctx context.Context, userID, key string) (orderID string, acquired bool, err error) {
	k := orderKey(userID, key)
	ok, err := s.cache.SetNX(ctx, k, idemInFlight, s.ttl)
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}

	var existing string
	if err := s.cache.Get(ctx, k, &existing); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			// 刚好过期，交给调用方重试
			return "", false, ErrRequestInFlight
		}
		return "", false, err
	}
	if existing == idemInFlight {
		return "", false, ErrRequestInFlight
	}
	return existing, false, nil
}

// Complete 记录幂等键对应的订单
func (s *IdempotencyStore) Complete(ctx context.Context, userID, key, orderID string) error {
	return s.cache.Set(ctx, orderKey(userID, key), orderID, s.ttl)
}

// Abort 请求失败时释放幂等键，允许客户端重试
func (s *IdempotencyStore) Abort(ctx context.Context, userID, key string) error {
	return s.cache.Delete(ctx, orderKey(userID, key))
}
