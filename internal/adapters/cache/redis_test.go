package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type countingFetcher struct {
	calls   int
	content string
	err     error
}

func (f *countingFetcher) Fetch(context.Context, string) (string, error) {
	f.calls++
	return f.content, f.err
}

// deadRedis points at a port nothing listens on.
func deadRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPageKey(t *testing.T) {
	a := PageKey("https://Acme.io/")
	if a != PageKey("http://acme.io") {
		t.Error("PageKey() should ignore scheme, case and trailing slash")
	}
	if a == PageKey("https://acme.io/pricing") {
		t.Error("PageKey() should distinguish paths")
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("PageKey() = %q, want prefix %q", a, keyPrefix)
	}
}

func TestPageCacheFallsThroughOnRedisError(t *testing.T) {
	next := &countingFetcher{content: "Title: Acme"}
	c := NewPageCache(next, deadRedis(t), time.Hour, quietLogger())

	got, err := c.Fetch(context.Background(), "https://acme.io")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "Title: Acme" || next.calls != 1 {
		t.Errorf("Fetch() = %q after %d calls", got, next.calls)
	}
}

func TestPageCachePropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	c := NewPageCache(&countingFetcher{err: boom}, deadRedis(t), time.Hour, quietLogger())
	if _, err := c.Fetch(context.Background(), "https://acme.io"); !errors.Is(err, boom) {
		t.Errorf("Fetch() error = %v, want boom", err)
	}
}

func TestConnectBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "redis://localhost:6379/not-a-db"); err == nil {
		t.Error("Connect() should reject a malformed URL")
	}
}
