package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"aq-panel/internal/config"
)

// RedisStore keeps each document under "{prefix}:doc:{path}" and the key
// names below a path in the sorted set "{prefix}:children:{path}", scored so
// that rank order matches sortChildren.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects and pings the server with a short timeout.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStore(client, cfg.Prefix), nil
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "aqpanel"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) docKey(p string) string {
	return s.prefix + ":doc:" + p
}

func (s *RedisStore) childrenKey(p string) string {
	return s.prefix + ":children:" + p
}

func (s *RedisStore) Get(ctx context.Context, path string, dst any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}

	data, err := s.client.Get(ctx, s.docKey(p)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(p), data, 0)
		s.linkAncestors(ctx, pipe, p)
		return nil
	})
	return err
}

// linkAncestors registers every segment of p in its parent's child set so
// intermediate nodes such as "measurements/{device}" stay listable.
func (s *RedisStore) linkAncestors(ctx context.Context, pipe redis.Pipeliner, p string) {
	for {
		i := strings.LastIndex(p, "/")
		if i < 0 {
			return
		}
		key := p[i+1:]
		pipe.ZAdd(ctx, s.childrenKey(p[:i]), redis.Z{Score: childScore(key), Member: key})
		p = p[:i]
	}
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	key := s.docKey(p)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		merged, err := merge(raw, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("concurrent write to %s: %w", p, err)
	}
	return err
}

func (s *RedisStore) Remove(ctx context.Context, path string) (bool, error) {
	parent, key, err := split(path)
	if err != nil {
		return false, err
	}
	p := strings.Trim(path, "/")

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.docKey(p))
		if parent != "" {
			pipe.ZRem(ctx, s.childrenKey(parent), key)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

func (s *RedisStore) Children(ctx context.Context, path string, limitToLast int) ([]Child, error) {
	p, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	setKey := s.childrenKey(p)

	if limitToLast <= 0 {
		keys, err := s.client.ZRange(ctx, setKey, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		children, err := s.fetchChildren(ctx, p, keys)
		if err != nil {
			return nil, err
		}
		sortChildren(children)
		return children, nil
	}

	// Walk the set from the tail in pages until enough documents are found;
	// intermediate nodes have no document of their own.
	var children []Child
	for start := int64(0); len(children) < limitToLast; start += int64(limitToLast) {
		keys, err := s.client.ZRevRange(ctx, setKey, start, start+int64(limitToLast)-1).Result()
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			break
		}
		page, err := s.fetchChildren(ctx, p, keys)
		if err != nil {
			return nil, err
		}
		children = append(children, page...)
	}
	sortChildren(children)
	return limitLast(children, limitToLast), nil
}

func (s *RedisStore) fetchChildren(ctx context.Context, p string, keys []string) ([]Child, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = s.docKey(p + "/" + k)
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}

	children := make([]Child, 0, len(keys))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		children = append(children, Child{Key: keys[i], Value: json.RawMessage(str)})
	}
	return children, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
