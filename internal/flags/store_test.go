package flags

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		"simple.flag",
		"flag123",
		"a",
		"pool-7.halted_by_ops",
	}
	for _, key := range valid {
		assert.NoError(t, ValidateKey(key), "key %q", key)
	}

	invalid := []string{
		"",
		" ",
		"flag with spaces",
		"flag:with:colons",
		"flag\twith\ttabs",
		string(make([]byte, 129)),
	}
	for _, key := range invalid {
		assert.Error(t, ValidateKey(key), "key %q", key)
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "maintenance")
	assert.ErrorIs(t, err, ErrNotFound)

	flag, err := store.Upsert(ctx, "maintenance", true, "node upgrade")
	require.NoError(t, err)
	assert.Equal(t, "node upgrade", flag.Reason)

	got, err := store.Get(ctx, "maintenance")
	require.NoError(t, err)
	assert.True(t, got.Value)
	assert.Equal(t, "node upgrade", got.Reason)
	assert.True(t, flag.UpdatedAt.Equal(got.UpdatedAt))

	time.Sleep(time.Millisecond)
	flag2, err := store.Upsert(ctx, "maintenance", false, "")
	require.NoError(t, err)
	assert.True(t, flag2.UpdatedAt.After(flag.UpdatedAt))

	got, err = store.Get(ctx, "maintenance")
	require.NoError(t, err)
	assert.False(t, got.Value)
}

func TestStore_DeleteAndList(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	flags, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, flags)

	for _, key := range []string{"c", "a", "b"} {
		_, err := store.Upsert(ctx, key, key != "b", "")
		require.NoError(t, err)
	}

	flags, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, flags, 3)
	assert.Equal(t, "a", flags[0].Key)
	assert.False(t, flags[1].Value)
	assert.Equal(t, "c", flags[2].Key)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "missing"))

	flags, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, flags, 2)
}

func TestStore_PoolHalts(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()
	addr := crypto.GenerateAccount().Address.String()

	halted, err := store.PoolHalted(ctx, addr)
	require.NoError(t, err)
	assert.False(t, halted)
	h, err := store.Halt(ctx, addr)
	require.NoError(t, err)
	assert.Nil(t, h)

	_, err = store.HaltPool(ctx, "not-an-address", "x")
	assert.Error(t, err)

	h, err = store.HaltPool(ctx, addr, "reserve mismatch")
	require.NoError(t, err)
	assert.Equal(t, addr, h.Pool)
	assert.Equal(t, "reserve mismatch", h.Reason)

	halted, err = store.PoolHalted(ctx, addr)
	require.NoError(t, err)
	assert.True(t, halted)

	got, err := store.Halt(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "reserve mismatch", got.Reason)
	assert.True(t, h.HaltedAt.Equal(got.HaltedAt))

	// halts never show up as generic flags
	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.ResumePool(ctx, addr))
	halted, err = store.PoolHalted(ctx, addr)
	require.NoError(t, err)
	assert.False(t, halted)
	assert.NoError(t, store.ResumePool(ctx, addr))
}

func TestStore_HaltsNewestFirst(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first := crypto.GenerateAccount().Address.String()
	second := crypto.GenerateAccount().Address.String()
	_, err = store.HaltPool(ctx, first, "one")
	require.NoError(t, err)
	_, err = store.HaltPool(ctx, second, "two")
	require.NoError(t, err)

	halts, err := store.Halts(ctx)
	require.NoError(t, err)
	require.Len(t, halts, 2)
	assert.Equal(t, second, halts[0].Pool)
	assert.Equal(t, first, halts[1].Pool)

	// re-halting replaces the record and moves it to the front
	_, err = store.HaltPool(ctx, first, "again")
	require.NoError(t, err)
	halts, err = store.Halts(ctx)
	require.NoError(t, err)
	require.Len(t, halts, 2)
	assert.Equal(t, first, halts[0].Pool)
	assert.Equal(t, "again", halts[0].Reason)
}

func TestStore_ConcurrentOperations(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)
	ctx := context.Background()

	const workers = 10
	const ops = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				key := fmt.Sprintf("flag.%d.%d", id, j)
				value := (id+j)%2 == 0

				_, err := store.Upsert(ctx, key, value, "")
				assert.NoError(t, err)

				got, err := store.Get(ctx, key)
				if assert.NoError(t, err) {
					assert.Equal(t, value, got.Value)
				}
			}
		}(i)
	}
	wg.Wait()

	flags, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, flags, workers*ops)
}
