// Package cache はRedisを使った補助的なキャッシュを提供する。
// 呼び出し側はキャッシュのエラーでリクエストを失敗させず、データベースの値を正とする。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize はInvalidatePatternでSCAN 1回あたりに取得するキー数の目安。
const scanBatchSize = 100

// Redisが応答しない場合でもリクエストを長く止めないための上限
const (
	dialTimeout = 300 * time.Millisecond
	ioTimeout   = 300 * time.Millisecond
	maxRetries  = 1

	// DefaultOpTimeout は1回のキャッシュ操作（リトライ込み）に許す時間。
	DefaultOpTimeout = 500 * time.Millisecond
)

// Cache はJSON値を保存するRedisキャッシュ。
type Cache struct {
	client    *redis.Client
	opTimeout time.Duration
}

// New はredis://形式のURLからCacheを生成する。接続は最初のコマンド実行時に行われる。
// タイムアウトとリトライ回数はURLの指定より短い固定値で上書きする。
func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout
	opts.PoolTimeout = DefaultOpTimeout
	opts.MaxRetries = maxRetries
	opts.ContextTimeoutEnabled = true
	return NewWithClient(redis.NewClient(opts)), nil
}

// NewWithClient は既存のクライアントからCacheを生成する。
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client, opTimeout: DefaultOpTimeout}
}

// bounded はctxにキャッシュ操作1回分の期限を付ける。
func (c *Cache) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

// GetJSON はキーの値をdstにデコードする。キーが存在しない場合はfalseを返す。
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

// SetJSON はvalueをJSONで保存する。ttlが0の場合は有効期限を設定しない。
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Delete は指定したキーを削除する。
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// InvalidatePattern はglobパターンに一致するキーをSCANで列挙して削除し、削除件数を返す。
// KEYSはブロッキングするため使わない。期限は列挙と削除の全体に対して1回分だけ与える。
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	var deleted int
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("failed to delete keys matching %s: %w", pattern, err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan keys matching %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return deleted, err
	}

	return deleted, nil
}

// Ping はRedisへの疎通を確認する。期限は呼び出し側のctxに従う。
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close はクライアントの接続を閉じる。
func (c *Cache) Close() error {
	return c.client.Close()
}
