package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/aescanero/dago-cel/internal/output"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix prefixes every stored context key
const KeyPrefix = "cel:context:"

// scanCount is the SCAN page size hint used by List
const scanCount = 100

// ErrNotFound is returned when no context is stored under a name
var ErrNotFound = errors.New("context not found")

// Client is the subset of *redis.Client the store uses
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// ContextStore keeps named evaluation variables in Redis as JSON documents.
// Host functions are never stored.
type ContextStore struct {
	client Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewContextStore creates a store. A positive ttl expires saved contexts.
func NewContextStore(client Client, ttl time.Duration, logger *zap.Logger) *ContextStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func key(name string) string {
	return KeyPrefix + name
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("context name must not be empty")
	}
	return nil
}

// Save stores variables under name, replacing what was there
func (s *ContextStore) Save(ctx context.Context, name string, variables map[string]interface{}) error {
	if err := checkName(name); err != nil {
		return err
	}

	data, err := json.Marshal(output.Normalize(variables))
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	if err := s.client.Set(ctx, key(name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}

	s.logger.Debug("context saved",
		zap.String("name", name),
		zap.Int("variables", len(variables)),
	)
	return nil
}

// SaveContext stores the variables of c under name
func (s *ContextStore) SaveContext(ctx context.Context, name string, c *cel.Context) error {
	return s.Save(ctx, name, c.Variables())
}

// Load returns the variables stored under name. Whole numbers load as int64
// and numbers written with a fraction or exponent load as float64.
func (s *ContextStore) Load(ctx context.Context, name string) (map[string]interface{}, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, key(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load context: %w", err)
	}

	vars, err := Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal context %s: %w", name, err)
	}
	return vars, nil
}

// LoadContext loads the variables stored under name into a new Context
func (s *ContextStore) LoadContext(ctx context.Context, name string) (*cel.Context, error) {
	vars, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return cel.NewContext(vars, nil)
}

// Delete removes the context stored under name
func (s *ContextStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, key(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	return nil
}

// Exists checks if a context is stored under name
func (s *ContextStore) Exists(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, key(name)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return n > 0, nil
}

// SetTTL sets a time-to-live on a stored context
func (s *ContextStore) SetTTL(ctx context.Context, name string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, key(name), ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set TTL: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// List returns the names of all stored contexts, sorted
func (s *ContextStore) List(ctx context.Context) ([]string, error) {
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, KeyPrefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %w", err)
		}
		for _, k := range keys {
			if name := strings.TrimPrefix(k, KeyPrefix); name != "" && name != k {
				names = append(names, name)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(names)
	return names, nil
}

// Decode parses a JSON object of variables, keeping integers apart from
// doubles
func Decode(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return numbers(raw).(map[string]interface{}), nil
}

func numbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []interface{}:
		for i := range t {
			t[i] = numbers(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = numbers(t[k])
		}
		return t
	}
	return v
}
