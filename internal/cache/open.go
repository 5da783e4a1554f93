package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/iwacpipe/internal/model"
)

// Open builds the cache described by cfg. It returns a nil Cache when
// caching is disabled. The returned close function is always non-nil.
func Open(ctx context.Context, cfg model.CacheConfig) (Cache, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		return nil, noop, nil
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if cfg.RedisURL != "" {
		rc, err := NewRedisCacheFromURL(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, noop, err
		}
		return rc, rc.Close, nil
	}

	dir, err := expandHome(cfg.Dir)
	if err != nil {
		return nil, noop, err
	}
	if dir == "" {
		return NewMemoryCache(ttl, 10*time.Minute), noop, nil
	}
	return NewLayeredCache(ttl, dir, ttl), noop, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
