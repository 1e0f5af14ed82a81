package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache 定義快取操作介面
// 提供 Get、Set、Expire、Del、Close 方法
// 用於封裝 Redis 或其他快取實作，session 儲存即建立在此介面上
// 方便測試時替換 FakeCache 實作
// ttl <= 0 表示不設過期

type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type FakeCache struct {
	GetFn    func(ctx context.Context, key string) *redis.StringCmd
	SetFn    func(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	ExpireFn func(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	DelFn    func(ctx context.Context, keys ...string) *redis.IntCmd
	PingFn   func(ctx context.Context) *redis.StatusCmd
	CloseFn  func() error
}

// Get 執行 Fake 設定或 panic
func (f *FakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.GetFn != nil {
		return f.GetFn(ctx, key)
	}
	panic("unexpected Get")
}

// Set 執行 Fake 設定或 panic
func (f *FakeCache) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.SetFn != nil {
		return f.SetFn(ctx, key, value, expiration)
	}
	panic("unexpected Set")
}

// Expire 執行 Fake 設定或 panic
func (f *FakeCache) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.ExpireFn != nil {
		return f.ExpireFn(ctx, key, expiration)
	}
	panic("unexpected Expire")
}

// Del 執行 Fake 設定或 panic
func (f *FakeCache) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.DelFn != nil {
		return f.DelFn(ctx, keys...)
	}
	panic("unexpected Del")
}

// Ping 執行 Fake 設定或回傳 PONG
func (f *FakeCache) Ping(ctx context.Context) *redis.StatusCmd {
	if f.PingFn != nil {
		return f.PingFn(ctx)
	}
	return redis.NewStatusResult("PONG", nil)
}

// Close 執行 Fake 設定或 no-op
func (f *FakeCache) Close() error {
	if f.CloseFn != nil {
		return f.CloseFn()
	}
	return nil
}

// NewMapFakeCache 回傳以記憶體 map 模擬 redis 的 FakeCache（含 TTL），供其他套件測試使用。
// now 用來控制過期判斷，傳 nil 則使用 time.Now。
func NewMapFakeCache(now func() time.Time) *FakeCache {
	if now == nil {
		now = time.Now
	}
	type entry struct {
		val string
		exp time.Time
	}
	var mu sync.Mutex
	data := map[string]entry{}
	alive := func(key string) (entry, bool) {
		e, ok := data[key]
		if !ok {
			return e, false
		}
		if !e.exp.IsZero() && !now().Before(e.exp) {
			delete(data, key)
			return e, false
		}
		return e, true
	}
	deadline := func(ttl time.Duration) time.Time {
		if ttl <= 0 {
			return time.Time{}
		}
		return now().Add(ttl)
	}
	return &FakeCache{
		GetFn: func(_ context.Context, key string) *redis.StringCmd {
			mu.Lock()
			defer mu.Unlock()
			e, ok := alive(key)
			if !ok {
				return redis.NewStringResult("", redis.Nil)
			}
			return redis.NewStringResult(e.val, nil)
		},
		SetFn: func(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
			mu.Lock()
			defer mu.Unlock()
			var s string
			switch v := value.(type) {
			case string:
				s = v
			case []byte:
				s = string(v)
			default:
				return redis.NewStatusResult("", redis.Nil)
			}
			data[key] = entry{val: s, exp: deadline(ttl)}
			return redis.NewStatusResult("OK", nil)
		},
		ExpireFn: func(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
			mu.Lock()
			defer mu.Unlock()
			e, ok := alive(key)
			if !ok {
				return redis.NewBoolResult(false, nil)
			}
			e.exp = deadline(ttl)
			data[key] = e
			return redis.NewBoolResult(true, nil)
		},
		DelFn: func(_ context.Context, keys ...string) *redis.IntCmd {
			mu.Lock()
			defer mu.Unlock()
			var n int64
			for _, k := range keys {
				if _, ok := alive(k); ok {
					n++
				}
				delete(data, k)
			}
			return redis.NewIntResult(n, nil)
		},
	}
}
