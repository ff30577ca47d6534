// Package objects is a cache-aside accessor over the object store: reads
// prefer the cache and fall back to the store, writes go to the store and
// then write through to the cache.
package objects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/allenheltondev/momento-bag-of-tricks/internal/store"
)

// Transform selects how raw stored bytes are decoded. The writer and reader
// must agree on it out-of-band; nothing about the stored object records it.
type Transform string

const (
	TransformJSON   Transform = "json"
	TransformString Transform = "string"
	TransformBinary Transform = "binary"
)

// ByteCache is the slice of the cache service the accessor needs.
type ByteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ObjectStore is the durable backend. Get returns store.ErrNotFound for
// missing keys.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, opts store.PutOptions) error
}

type Accessor struct {
	cache      ByteCache
	store      ObjectStore
	defaultTTL time.Duration
	log        *logrus.Logger
}

func NewAccessor(cache ByteCache, objStore ObjectStore, defaultTTL time.Duration, log *logrus.Logger) *Accessor {
	return &Accessor{cache: cache, store: objStore, defaultTTL: defaultTTL, log: log}
}

// Load returns the value under key decoded per transform (default string).
// A cache miss or cache failure falls through to the object store; a missing
// object yields the transform's empty value and no error. The cache is not
// repopulated on a store fallback hit. Only non-NotFound store failures are
// returned.
func (a *Accessor) Load(ctx context.Context, key string, transform Transform) (any, error) {
	switch transform {
	case "":
		transform = TransformString
	case TransformJSON, TransformString, TransformBinary:
	default:
		return nil, fmt.Errorf("unknown transform %q", transform)
	}

	data, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.log.WithError(err).WithField("key", key).
			Warn("cache read failed, falling back to object store")
	}
	if err == nil && ok {
		return decode(data, transform)
	}

	data, err = a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.log.WithField("key", key).Warn("object not found, returning empty value")
			return emptyValue(transform), nil
		}
		a.log.WithError(err).WithField("key", key).Error("object store read failed")
		return nil, err
	}
	return decode(data, transform)
}

// LoadJSON is Load with the json transform.
func (a *Accessor) LoadJSON(ctx context.Context, key string) (map[string]any, error) {
	v, err := a.Load(ctx, key, TransformJSON)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// LoadString is Load with the string transform.
func (a *Accessor) LoadString(ctx context.Context, key string) (string, error) {
	v, err := a.Load(ctx, key, TransformString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// LoadBytes is Load with the binary transform.
func (a *Accessor) LoadBytes(ctx context.Context, key string) ([]byte, error) {
	v, err := a.Load(ctx, key, TransformBinary)
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// SaveOptions controls a Save call.
type SaveOptions struct {
	// TTL overrides the accessor's default cache TTL when positive.
	TTL time.Duration

	// Public grants public-read visibility on the stored object.
	Public bool

	// ContentType overrides the one inferred from the value encoding.
	ContentType string
}

// Save writes value to the object store and then writes the same serialized
// bytes through to the cache. The store write is the source of truth and its
// failure is returned; the cache write is best effort and can never fail the
// operation.
func (a *Accessor) Save(ctx context.Context, key string, value any, opts SaveOptions) error {
	if value == nil {
		return errors.New("value must not be nil")
	}

	body, contentType, err := encode(value)
	if err != nil {
		return err
	}
	if opts.ContentType != "" {
		contentType = opts.ContentType
	}

	putOpts := store.PutOptions{ContentType: contentType, PublicRead: opts.Public}
	if err := a.store.Put(ctx, key, body, putOpts); err != nil {
		return fmt.Errorf("object store write: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	if err := a.cache.Set(ctx, key, body, ttl); err != nil {
		a.log.WithError(err).WithField("key", key).
			Warn("cache write failed, object stored without cache entry")
	}
	return nil
}

// encode serializes plain structured values (maps and structs, but not
// slices) to JSON; strings and byte slices pass through unchanged, anything
// else is written as its text form.
func encode(value any) ([]byte, string, error) {
	switch v := value.(type) {
	case []byte:
		return v, "application/octet-stream", nil
	case string:
		return []byte(v), "text/plain", nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, "", errors.New("value must not be nil")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, "", fmt.Errorf("serialize value: %w", err)
		}
		return b, "application/json", nil
	}
	return []byte(fmt.Sprint(value)), "text/plain", nil
}

func decode(data []byte, transform Transform) (any, error) {
	switch transform {
	case TransformJSON:
		out := map[string]any{}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode json value: %w", err)
		}
		return out, nil
	case TransformBinary:
		return data, nil
	case TransformString:
		return string(data), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", transform)
	}
}

func emptyValue(transform Transform) any {
	switch transform {
	case TransformJSON:
		return map[string]any{}
	case TransformBinary:
		return []byte{}
	default:
		return ""
	}
}
