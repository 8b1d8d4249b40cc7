package cache

import (
	"context"
	"fmt"
	"time"
)

const revokedKeyPrefix = "session:revoked:"

// Denylist はログアウト済みセッショントークンのjtiを有効期限まで保持する。
type Denylist struct {
	cache *Cache
}

// NewDenylist はDenylistを生成する。
func NewDenylist(cache *Cache) *Denylist {
	return &Denylist{cache: cache}
}

// Revoke はトークンIDをuntilまで失効扱いにする。すでに期限切れの場合は何もしない。
func (d *Denylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := d.cache.bounded(ctx)
	defer cancel()

	if err := d.cache.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効済みかどうかを返す。
func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := d.cache.bounded(ctx)
	defer cancel()

	n, err := d.cache.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}
