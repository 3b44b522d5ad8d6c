package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// createTestLaunch inserts an Ongoing launch and returns it.
func createTestLaunch(t *testing.T, ctx context.Context, pool *Pool, creator string, index uint32) *domain.Launch {
	t.Helper()

	l := &domain.Launch{
		Creator:     creator,
		Index:       index,
		Address:     "Addr" + creator + string(rune('A'+index)),
		CreatedTime: 1_700_000_000 + int64(index),
		Tier:        domain.TierFiftySol,
		Status:      domain.StatusOngoing,
		Metadata:    domain.LaunchMetadata{Name: "Test", Symbol: "TST", Twitter: "@tst"},
	}
	require.NoError(t, NewLaunchStore(pool).Insert(ctx, l))
	return l
}

func TestLaunchStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLaunchStore(pool)
	l := createTestLaunch(t, ctx, pool, "creator1", 0)

	got, err := store.Get(ctx, l.Key())
	require.NoError(t, err)
	assert.Equal(t, l, got)

	byAddr, err := store.GetByAddress(ctx, l.Address)
	require.NoError(t, err)
	assert.Equal(t, l.Key(), byAddr.Key())

	_, err = store.Get(ctx, domain.LaunchKey{Creator: "creator1", Index: 9})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Insert(ctx, l)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestLaunchStore_Lists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLaunchStore(pool)
	createTestLaunch(t, ctx, pool, "creator1", 1)
	createTestLaunch(t, ctx, pool, "creator1", 0)
	other := createTestLaunch(t, ctx, pool, "creator2", 2)

	list, err := store.ListByCreator(ctx, "creator1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint32(0), list[0].Index)
	assert.Equal(t, uint32(1), list[1].Index)

	require.NoError(t, store.UpdateStatus(ctx, other.Key(), domain.StatusOngoing, domain.StatusFailed))
	failed, err := store.ListByStatus(ctx, domain.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, other.Key(), failed[0].Key())
}

func TestLaunchStore_UpdateStatusCAS(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLaunchStore(pool)
	l := createTestLaunch(t, ctx, pool, "creator1", 0)

	require.NoError(t, store.UpdateStatus(ctx, l.Key(), domain.StatusOngoing, domain.StatusSucceeded))

	err := store.UpdateStatus(ctx, l.Key(), domain.StatusOngoing, domain.StatusFailed)
	assert.ErrorIs(t, err, storage.ErrStatusConflict)

	err = store.UpdateStatus(ctx, domain.LaunchKey{Creator: "ghost"}, domain.StatusOngoing, domain.StatusFailed)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.Get(ctx, l.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
}

func TestLaunchStore_Flags(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLaunchStore(pool)
	l := createTestLaunch(t, ctx, pool, "creator1", 0)

	require.NoError(t, store.SetToken(ctx, l.Key(), "Mint1"))
	assert.ErrorIs(t, store.SetToken(ctx, l.Key(), "Mint2"), storage.ErrTokenAlreadySet)

	require.NoError(t, store.SetHalted(ctx, l.Key()))
	require.NoError(t, store.SetHalted(ctx, l.Key()))

	require.NoError(t, store.MarkSettled(ctx, l.Key()))
	assert.ErrorIs(t, store.MarkSettled(ctx, l.Key()), storage.ErrStatusConflict)

	got, err := store.Get(ctx, l.Key())
	require.NoError(t, err)
	assert.Equal(t, "Mint1", got.TokenID)
	assert.True(t, got.Halted)
	assert.True(t, got.Settled)
}

func TestCounterStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCounterStore(pool)

	peek, err := store.Peek(ctx, "creator1")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), peek)

	for want := uint32(0); want < 3; want++ {
		got, err := store.Next(ctx, "creator1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := store.Next(ctx, "creator2")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), other)

	peek, err = store.Peek(ctx, "creator1")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), peek)

	_, err = store.Next(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestGlobalConfigStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewGlobalConfigStore(pool)

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	cfg := &domain.GlobalConfig{Admin: "admin", SuccessFeeBps: 500, FeeReceiver: "treasury"}
	require.NoError(t, store.Put(ctx, cfg))
	require.NoError(t, store.Put(ctx, &domain.GlobalConfig{Admin: "admin2", SuccessFeeBps: 100, FeeReceiver: "vault"}))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.GlobalConfig{Admin: "admin2", SuccessFeeBps: 100, FeeReceiver: "vault"}, got)

	err = store.Put(ctx, &domain.GlobalConfig{Admin: "a", SuccessFeeBps: 10_001, FeeReceiver: "f"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
