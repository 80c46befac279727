package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := s.Get(ctx, "backup_1_2024")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "backup_1_2024", []byte(`[1]`)))
		require.NoError(t, s.Set(ctx, "backup_1_2024", []byte(`[2]`)))
		v, ok, err := s.Get(ctx, "backup_1_2024")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `[2]`, string(v))
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "backup_12_2023", []byte(`[]`)))
		require.NoError(t, s.Set(ctx, "other", []byte(`x`)))
		keys, err := s.Keys(ctx, "backup_")
		require.NoError(t, err)
		assert.Equal(t, []string{"backup_12_2023", "backup_1_2024"}, keys)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "other"))
		require.NoError(t, s.Delete(ctx, "other"), "deleting a missing key is fine")
		_, ok, err := s.Get(ctx, "other")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, s.Close())
		_, _, err := s.Get(ctx, "backup_1_2024")
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, s.Set(ctx, "k", nil), ErrClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestBuntStore(t *testing.T) {
	s, err := OpenBunt(":memory:")
	require.NoError(t, err)
	testStore(t, s)
}

func TestBuntStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backups.db")

	s, err := OpenBunt(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "backup_3_2024", []byte(`[{"ID":"1"}]`)))
	require.NoError(t, s.Close())

	s, err = OpenBunt(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(ctx, "backup_3_2024")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"ID":"1"}]`, string(v))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("LOGSTI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LOGSTI_TEST_REDIS_ADDR not set")
	}
	client, err := DialRedis(context.Background(), addr, "", 15)
	require.NoError(t, err)
	require.NoError(t, client.FlushDB(context.Background()).Err())
	testStore(t, NewRedisStore(client, "logsti_test:"))
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := Instrument(NewMemoryStore(), m)

	_, _, _ = s.Get(ctx, "nope")
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	_, _, _ = s.Get(ctx, "k")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sets))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.errors))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
