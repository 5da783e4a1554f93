package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ppiankov/iwacpipe/internal/cache"
	"github.com/ppiankov/iwacpipe/internal/model"
)

const cachedPage = `[{"o:id":1}]`

func TestClearCache_Disk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	key := cache.PageKey("https://iwac.frederickmadore.com/api/items?page=1", "id")
	if err := cache.NewDiskCache(dir, time.Hour).Set(key, []byte(cachedPage), 0); err != nil {
		t.Fatal(err)
	}

	// Clearing works even when runs have caching switched off
	var out bytes.Buffer
	if err := clearCache(context.Background(), model.CacheConfig{Enabled: false, Dir: dir}, &out); err != nil {
		t.Fatalf("clearCache failed: %v", err)
	}

	if _, ok := cache.NewDiskCache(dir, time.Hour).Get(key); ok {
		t.Error("page still cached after clear")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("cache directory should be removed, stat err = %v", err)
	}
	if !strings.Contains(out.String(), dir) {
		t.Errorf("output = %q", out.String())
	}
}

func TestClearCache_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	key := cache.PageKey("https://iwac.frederickmadore.com/api/items?page=1", "id")
	if err := mr.Set(key, cachedPage); err != nil {
		t.Fatal(err)
	}
	if err := mr.Set("other:app:key", "keep"); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cfg := model.CacheConfig{Enabled: true, RedisURL: "redis://" + mr.Addr(), TTL: time.Hour}
	if err := clearCache(context.Background(), cfg, &out); err != nil {
		t.Fatalf("clearCache failed: %v", err)
	}

	if mr.Exists(key) {
		t.Error("page key still present")
	}
	if !mr.Exists("other:app:key") {
		t.Error("unrelated key was removed")
	}
	if strings.Contains(out.String(), mr.Addr()) {
		t.Errorf("output leaks the redis URL: %q", out.String())
	}
}

func TestClearCache_MemoryOnly(t *testing.T) {
	var out bytes.Buffer
	if err := clearCache(context.Background(), model.CacheConfig{Enabled: true}, &out); err != nil {
		t.Fatalf("clearCache failed: %v", err)
	}
	if !strings.Contains(out.String(), "No persistent cache") {
		t.Errorf("output = %q", out.String())
	}
}

func TestClearCache_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := model.CacheConfig{RedisURL: "redis://" + addr}
	if err := clearCache(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unreachable redis")
	}
}

func TestCacheClearCommandRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"cache", "clear"})
	if err != nil {
		t.Fatalf("cache clear not registered: %v", err)
	}
	if cmd != cacheClearCmd {
		t.Errorf("found %s, want cache clear", cmd.CommandPath())
	}
}
