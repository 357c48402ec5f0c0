package variant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// MaxHashBytes is the largest file that gets a sha256; bigger files are recorded without one
const MaxHashBytes = 50 * 1024 * 1024

// DigestCache stores digests keyed by path, size and mtime.
// *redis.Cache from pkg/redis satisfies it.
type DigestCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Digester computes file sha256 digests, consulting an optional cache
type Digester struct {
	cache DigestCache
	ttl   time.Duration
}

// NewDigester creates a digester. A nil cache disables caching.
func NewDigester(cache DigestCache, ttl time.Duration) *Digester {
	return &Digester{cache: cache, ttl: ttl}
}

// DigestKey is the cache key for a file state
func DigestKey(path string, info fs.FileInfo) string {
	return fmt.Sprintf("digest:%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
}

// Digest returns the hex sha256 of path, or "" when the file exceeds MaxHashBytes
func (d *Digester) Digest(ctx context.Context, path string, info fs.FileInfo) (string, error) {
	if info.Size() > MaxHashBytes {
		return "", nil
	}

	key := DigestKey(path, info)
	if d.cache != nil {
		var cached string
		if found, err := d.cache.Get(ctx, key, &cached); err == nil && found && cached != "" {
			return cached, nil
		}
	}

	sum, err := hashFile(path)
	if err != nil {
		return "", err
	}

	if d.cache != nil {
		// 캐시 실패는 무시 (다음 스냅샷에서 다시 계산)
		_ = d.cache.Set(ctx, key, sum, d.ttl)
	}
	return sum, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
