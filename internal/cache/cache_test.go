package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const page = `[{"o:id":1,"dcterms:title":[{"@value":"Islam"}]}]`

func TestPageKey(t *testing.T) {
	a := PageKey("https://example.org/api/items?page=1", "id-1")
	b := PageKey("https://example.org/api/items?page=1", "id-2")
	c := PageKey("https://example.org/api/items?page=2", "id-1")

	if !strings.HasPrefix(a, "iwacpipe:page:v1:") {
		t.Errorf("unexpected key prefix: %s", a)
	}
	if a == b {
		t.Error("keys for different identities must differ")
	}
	if a == c {
		t.Error("keys for different pages must differ")
	}
	if a != PageKey("https://example.org/api/items?page=1", "id-1") {
		t.Error("key must be deterministic")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss")
	}

	if err := c.Set("k", []byte(page), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != page {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := c.Get("other"); ok {
		t.Error("unrelated key should miss")
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte(page), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestDiskCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set("k", []byte(page), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != page {
		t.Errorf("Get = %s, want %s", got, page)
	}

	// A fresh instance over the same directory sees the entry
	if _, ok := NewDiskCache(dir, time.Hour).Get("k"); !ok {
		t.Error("expected entry to persist across instances")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".entry-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDiskCache_PortableFileNames(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := PageKey("https://iwac.frederickmadore.com/api/items?item_set_id=2187&page=1", "id-1")

	if err := c.Set(key, []byte(page), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get(key); !ok {
		t.Fatal("expected hit")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry file, got %d", len(entries))
	}
	if name := entries[0].Name(); strings.ContainsAny(name, `:\/*?"<>|`) {
		t.Errorf("file name %q is not portable", name)
	}
}

func TestDiskCache_Expired(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Set("k", []byte(page), time.Nanosecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestDiskCache_RejectsInvalidJSON(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Set("k", []byte("<html>"), 0); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	if err := os.WriteFile(c.path("k"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected corrupt entry to miss")
	}
}

func TestDiskCache_DeleteMissing(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Delete("nope"); err != nil {
		t.Errorf("Delete of missing key returned %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Hour)
	if err := disk.Set("k", []byte(page), 0); err != nil {
		t.Fatal(err)
	}

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	if _, ok := c.memory.Get("k"); ok {
		t.Fatal("memory layer should start empty")
	}

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit from disk layer")
	}
	if _, ok := c.memory.Get("k"); !ok {
		t.Error("disk hit should be promoted to memory")
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after clear")
	}
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisCache(client, time.Hour)
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupTestRedis(t)
	key := PageKey("https://example.org/api/items?page=1", "id")

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss")
	}
	if err := c.Set(key, []byte(page), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(key)
	if !ok || string(got) != page {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := c.Get(key); ok {
		t.Error("expected miss after expiry")
	}
}

func TestRedisCache_ClearOnlyOwnKeys(t *testing.T) {
	mr, c := setupTestRedis(t)

	_ = c.Set(PageKey("a", "id"), []byte(page), 0)
	_ = c.Set(PageKey("b", "id"), []byte(page), 0)
	if err := mr.Set("other:key", "keep"); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, ok := c.Get(PageKey("a", "id")); ok {
		t.Error("page key survived Clear")
	}
	if !mr.Exists("other:key") {
		t.Error("Clear removed an unrelated key")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	_, c := setupTestRedis(t)
	key := PageKey("a", "id")
	_ = c.Set(key, []byte(page), 0)

	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("expected miss after delete")
	}
}

func TestRedisCache_UnavailableIsMiss(t *testing.T) {
	mr, c := setupTestRedis(t)
	mr.Close()

	if _, ok := c.Get("k"); ok {
		t.Error("expected miss when redis is down")
	}
	if err := c.Set("k", []byte(page), 0); err == nil {
		t.Error("expected Set error when redis is down")
	}
}

func TestNewRedisCacheFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCacheFromURL(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCacheFromURL failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	if _, err := NewRedisCacheFromURL(context.Background(), "not a url", time.Minute); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestNewRedisCache_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisCache should panic with nil client")
		}
	}()
	NewRedisCache(nil, time.Minute)
}
