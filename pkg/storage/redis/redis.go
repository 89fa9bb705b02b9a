package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/censys/bike-scanner/pkg/storage"
)

// Opts configures the Redis connection.
type Opts struct {
	Addr, Password, Namespace string
	DB                        int
	Timeout                   time.Duration
}

// Store keeps each blob as one string key under a namespace.
type Store struct {
	rdb      *goredis.Client
	nsPrefix string
}

// New connects and pings the server.
func New(ctx context.Context, o Opts) (*Store, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", o.Addr, err)
	}
	return &Store{rdb: rdb, nsPrefix: firstNonEmpty(o.Namespace, "bike")}, nil
}

func (s *Store) key(name string) string { return s.nsPrefix + ":" + name }

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("read %s: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return val, nil
}

func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := s.rdb.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	n, err := s.rdb.Del(ctx, s.key(name)).Result()
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", name, storage.ErrNotFound)
	}
	return nil
}

// List walks the keyspace with SCAN; glob metacharacters in prefix are
// escaped so they match literally. SCAN may return a key more than once.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.key(prefix)) + "*"
	var names []string
	iter := s.rdb.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), s.nsPrefix+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	return sortedUnique(names), nil
}

func sortedUnique(names []string) []string {
	sort.Strings(names)
	return slices.Compact(names)
}

func (s *Store) Close() error { return s.rdb.Close() }

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func firstNonEmpty(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
