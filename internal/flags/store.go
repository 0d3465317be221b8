package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Flags are keyed by flag key, halts by pool address.
const (
	flagsHash = "amm:flags"
	haltsHash = "amm:halts"
)

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// Store keeps operator flags and pool halts in Redis.
type Store struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client, now: func() time.Time { return time.Now().UTC() }}, nil
}

func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid flag key %q", key)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, key string, value bool, reason string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	flag := &Flag{Key: key, Value: value, Reason: reason, UpdatedAt: s.now()}
	if err := s.put(ctx, flagsHash, key, flag); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}
	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var f Flag
	if err := s.get(ctx, flagsHash, key, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// List returns every flag ordered by key. Undecodable entries are skipped.
func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	raw, err := s.client.HGetAll(ctx, flagsHash).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	out := make([]*Flag, 0, len(raw))
	for _, v := range raw {
		var f Flag
		if json.Unmarshal([]byte(v), &f) == nil {
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes a flag. Deleting a missing flag is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, flagsHash, key).Err(); err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, hash, field string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, hash, field, b).Err()
}

// get decodes one hash field into v, returning ErrNotFound when it is unset.
func (s *Store) get(ctx context.Context, hash, field string, v any) error {
	raw, err := s.client.HGet(ctx, hash, field).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", hash, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s %q: %w", hash, field, err)
	}
	return nil
}
