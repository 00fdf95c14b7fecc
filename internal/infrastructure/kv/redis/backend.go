package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "client-core:"

// Backend stores keys under a prefix so Clear only touches this app's data
// when the redis database is shared.
type Backend struct {
	rdb    *goredis.Client
	prefix string
}

func New(url, prefix string) (*Backend, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewWithClient(rdb, prefix), nil
}

func NewWithClient(rdb *goredis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{rdb: rdb, prefix: prefix}
}

func (b *Backend) Close() error {
	if b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func (b *Backend) key(k string) string { return b.prefix + k }

func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	if b.rdb == nil {
		return "", false, kv.ErrNotConfigured
	}
	val, err := b.rdb.Get(ctx, b.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set writes without a TTL; entries live until removed.
func (b *Backend) Set(ctx context.Context, key, value string) error {
	if b.rdb == nil {
		return kv.ErrNotConfigured
	}
	return b.rdb.Set(ctx, b.key(key), value, 0).Err()
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if b.rdb == nil {
		return kv.ErrNotConfigured
	}
	return b.rdb.Del(ctx, b.key(key)).Err()
}

func (b *Backend) Clear(ctx context.Context) error {
	if b.rdb == nil {
		return kv.ErrNotConfigured
	}
	iter := b.rdb.Scan(ctx, 0, escapeGlob(b.prefix)+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := b.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return b.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// escapeGlob makes a literal prefix safe to use in a SCAN MATCH pattern.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
