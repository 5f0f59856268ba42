// Package store is the key-value document store every directory writes to.
// Documents are JSON values addressed by slash-separated paths such as
// "sessions/{id}" or "measurements/{device}/{timestamp}". Writes to a single
// path are atomic; nothing spans more than one path.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"aq-panel/internal/config"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Child is one immediate child of a path, as returned by Children.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the child's JSON value into dst.
func (c Child) Decode(dst any) error {
	return json.Unmarshal(c.Value, dst)
}

type Store interface {
	// Get decodes the document at path into dst, or returns ErrNotFound.
	Get(ctx context.Context, path string, dst any) error
	// Set replaces the document at path.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the existing document at path. It returns
	// ErrNotFound when there is nothing to merge into.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Remove deletes the document at path and reports whether it existed.
	Remove(ctx context.Context, path string) (bool, error)
	// Children lists the immediate children of path ordered by key. When
	// limitToLast is positive only the last limitToLast children are kept.
	Children(ctx context.Context, path string, limitToLast int) ([]Child, error)
	Close() error
}

// Open builds the backend selected by cfg.Type. debug turns on query logging
// for the SQL backends.
func Open(ctx context.Context, cfg config.StoreConfig, debug bool) (Store, error) {
	switch cfg.Type {
	case "sqlite", "mysql":
		return OpenGorm(cfg, debug)
	case "redis":
		return OpenRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// Join builds a document path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// split returns the parent path and the last key of p.
func split(p string) (parent, key string, err error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p, nil
	}
	return p[:i], p[i+1:], nil
}

func cleanPath(p string) (string, error) {
	if _, _, err := split(p); err != nil {
		return "", err
	}
	return strings.Trim(p, "/"), nil
}

// sortChildren orders keys the way the realtime store does: keys that parse
// as integers first in numeric order, then the rest lexicographically.
func sortChildren(children []Child) {
	sort.SliceStable(children, func(i, j int) bool {
		a, aErr := strconv.ParseInt(children[i].Key, 10, 64)
		b, bErr := strconv.ParseInt(children[j].Key, 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return children[i].Key < children[j].Key
		}
	})
}

func numericKey(key string) *int64 {
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// childScore places numeric keys by value and every other key after them.
// Equal scores fall back to lexicographic member order.
func childScore(key string) float64 {
	if n := numericKey(key); n != nil {
		return float64(*n)
	}
	return math.Inf(1)
}

func limitLast(children []Child, n int) []Child {
	if n > 0 && len(children) > n {
		return children[len(children)-n:]
	}
	return children
}

// merge applies fields over the JSON object in raw and returns the result.
func merge(raw []byte, fields map[string]any) ([]byte, error) {
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document for update: %w", err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return json.Marshal(doc)
}
