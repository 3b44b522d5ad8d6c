package sale

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme-presale/internal/address"
	"meme-presale/internal/domain"
	"meme-presale/internal/ledger"
	"meme-presale/internal/storage/memory"
)

func TestCreateLaunch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.CreateLaunch(ctx, CreateRequest{Creator: testCreator, Tier: domain.TierFiftySol})
	require.NoError(t, err)
	second, err := f.engine.CreateLaunch(ctx, CreateRequest{Creator: testCreator, Tier: domain.TierTwentySol})
	require.NoError(t, err)
	other, err := f.engine.CreateLaunch(ctx, CreateRequest{Creator: "creator2", Tier: domain.TierTwentySol})
	require.NoError(t, err)

	assert.Equal(t, uint32(0), first.Index)
	assert.Equal(t, uint32(1), second.Index)
	assert.Equal(t, uint32(0), other.Index)
	assert.NotEqual(t, first.Address, second.Address)
	assert.NotEqual(t, first.Address, other.Address)

	assert.Equal(t, domain.StatusOngoing, first.Status)
	assert.Equal(t, int64(testStart), first.CreatedTime)
	assert.Equal(t, int64(testStart+24*3600), first.Deadline())
	assert.Empty(t, first.TokenID)

	list, err := f.engine.LaunchesByCreator(ctx, testCreator)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.Address, list[0].Address)
}

func TestCreateLaunch_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateLaunch(ctx, CreateRequest{Tier: domain.TierTwentySol})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.engine.CreateLaunch(ctx, CreateRequest{Creator: testCreator, Tier: domain.FundingRaiseTier(9)})
	assert.ErrorIs(t, err, domain.ErrInvalidTier)
	assert.Equal(t, ClassInvalid, Classify(err))
}

func TestMintToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.engine.CreateLaunch(ctx, CreateRequest{
		Creator:  testCreator,
		Tier:     domain.TierTwentySol,
		Metadata: domain.LaunchMetadata{Name: "Dog", Symbol: "DOG"},
	})
	require.NoError(t, err)

	created, err := f.engine.MintToken(ctx, MintRequest{Launch: l.Key(), Caller: testCreator, Seed: 7})
	require.NoError(t, err)
	assert.NotEmpty(t, created.TokenID)
	assert.Equal(t, l.Address, created.Address)
	assert.Equal(t, "DOG", created.Metadata.Symbol)

	stored := f.stored(t, l.Key())
	assert.Equal(t, created.TokenID, stored.TokenID)
	assert.Equal(t, domain.SellableSupply, f.tokens(t, stored, stored.Address))
	assert.Equal(t, domain.ReserveSupply, f.tokens(t, stored, stored.ReserveAccount()))
	supply, err := f.ledger.Supply(ctx, created.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.TotalSupply, supply)

	_, err = f.engine.MintToken(ctx, MintRequest{Launch: l.Key(), Caller: testCreator, Seed: 8})
	assert.ErrorIs(t, err, ErrAlreadyMinted)
}

func TestMintToken_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	minted := f.newLaunch(t, domain.TierTwentySol)

	l, err := f.engine.CreateLaunch(ctx, CreateRequest{Creator: "creator2", Tier: domain.TierTwentySol})
	require.NoError(t, err)

	_, err = f.engine.MintToken(ctx, MintRequest{Launch: l.Key(), Caller: testCreator, Seed: 99})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Same seed as the first launch yields the same mint, which is already revoked.
	_, err = f.engine.MintToken(ctx, MintRequest{Launch: l.Key(), Caller: "creator2", Seed: uint64(minted.Index) + 1})
	assert.ErrorIs(t, err, ledger.ErrMintRevoked)
	assert.Empty(t, f.stored(t, l.Key()).TokenID)

	_, err = f.engine.MintToken(ctx, MintRequest{Launch: domain.LaunchKey{Creator: "ghost"}, Caller: "ghost"})
	assert.ErrorIs(t, err, ErrLaunchNotFound)
}

func TestMintToken_SuffixMismatch(t *testing.T) {
	// "0" is outside the base58 alphabet so no mint can match it.
	f := newFixture(t, func(o *Options) { o.MintSuffix = "0" })
	ctx := context.Background()

	l, err := f.engine.CreateLaunch(ctx, CreateRequest{Creator: testCreator, Tier: domain.TierTwentySol})
	require.NoError(t, err)

	_, err = f.engine.MintToken(ctx, MintRequest{Launch: l.Key(), Caller: testCreator, Seed: 1})
	require.ErrorIs(t, err, ErrInvalidMintAddress)
	assert.Equal(t, ClassInvalid, Classify(err))
	assert.Empty(t, f.stored(t, l.Key()).TokenID)
}

func TestGlobalConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.engine.GlobalConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, cfg.Admin)
	assert.Equal(t, uint16(testFeeBps), cfg.SuccessFeeBps)

	// Bootstrapping again keeps the stored config.
	kept, err := f.engine.EnsureGlobalConfig(ctx, &domain.GlobalConfig{Admin: "other", FeeReceiver: "x", SuccessFeeBps: 1})
	require.NoError(t, err)
	assert.Equal(t, testAdmin, kept.Admin)

	err = f.engine.UpdateGlobalConfig(ctx, "mallory", &domain.GlobalConfig{Admin: "mallory", FeeReceiver: "mallory"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = f.engine.UpdateGlobalConfig(ctx, testAdmin, &domain.GlobalConfig{Admin: testAdmin, FeeReceiver: testFeeReceiver, SuccessFeeBps: 10_001})
	assert.ErrorIs(t, err, domain.ErrInvalidGlobalConfig)

	require.NoError(t, f.engine.UpdateGlobalConfig(ctx, testAdmin, &domain.GlobalConfig{Admin: "admin2", FeeReceiver: "vault", SuccessFeeBps: 250}))
	cfg, err = f.engine.GlobalConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin2", cfg.Admin)
	assert.Equal(t, "vault", cfg.FeeReceiver)

	// Admin rights moved with the update.
	err = f.engine.UpdateGlobalConfig(ctx, testAdmin, &domain.GlobalConfig{Admin: testAdmin, FeeReceiver: "vault"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGlobalConfig_Missing(t *testing.T) {
	deriver, err := address.NewDeriver(testProgramID, 0)
	require.NoError(t, err)
	e, err := New(Options{
		LaunchStore:       memory.NewLaunchStore(),
		CounterStore:      memory.NewCounterStore(),
		GlobalConfigStore: memory.NewGlobalConfigStore(),
		ReceiptStore:      memory.NewReceiptStore(),
		Ledger:            ledger.NewMemoryLedger(),
		Addresses:         deriver,
	})
	require.NoError(t, err)

	_, err = e.GlobalConfig(context.Background())
	require.ErrorIs(t, err, ErrConfigMissing)
	assert.Equal(t, ClassPrecondition, Classify(err))

	_, err = e.EnsureGlobalConfig(context.Background(), &domain.GlobalConfig{Admin: testAdmin})
	assert.ErrorIs(t, err, domain.ErrInvalidGlobalConfig)
}
