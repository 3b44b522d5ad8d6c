package sale

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme-presale/internal/domain"
	"meme-presale/internal/ledger"
)

func TestStatus_DoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.newLaunch(t, domain.TierTwentySol)
	f.buy(t, l, "alice", 5*sol)

	v, err := f.engine.Status(ctx, l.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOngoing, v.DerivedStatus)
	assert.Equal(t, uint64(175_000_000_000_000), v.Sold)
	assert.Equal(t, domain.SellableSupply-v.Sold, v.Remaining)
	assert.Equal(t, 5*sol, v.PoolLamports)
	assert.Equal(t, uint64(28), v.UnitPrice)
	assert.False(t, v.DeadlinePassed)

	f.pastDeadline(l)
	v, err = f.engine.Status(ctx, l.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOngoing, v.StoredStatus)
	assert.Equal(t, domain.StatusFailed, v.DerivedStatus)
	assert.True(t, v.DeadlinePassed)
	assert.Equal(t, domain.StatusOngoing, f.stored(t, l.Key()).Status)
}

func TestStatus_UnmintedLaunch(t *testing.T) {
	f := newFixture(t)
	l, err := f.engine.CreateLaunch(context.Background(), CreateRequest{Creator: testCreator, Tier: domain.TierFiftySol})
	require.NoError(t, err)

	v, err := f.engine.Status(context.Background(), l.Key())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v.Sold)
	assert.Equal(t, domain.SellableSupply, v.Remaining)
}

func TestStatus_OversizedPoolReportedNotHalted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.newLaunch(t, domain.TierTwentySol)

	// Reserve tokens pushed into the sale pool.
	require.NoError(t, f.ledger.Post(ctx, []ledger.Movement{
		ledger.TransferTokens(l.TokenID, l.ReserveAccount(), l.Address, 1),
	}))

	_, err := f.engine.Status(ctx, l.Key())
	require.ErrorIs(t, err, ErrInconsistentState)
	assert.False(t, f.stored(t, l.Key()).Halted)

	// The next mutating call halts.
	f.fund(t, "alice", sol)
	_, err = f.engine.Buy(ctx, BuyRequest{Launch: l.Key(), Buyer: "alice", Deposit: sol})
	require.ErrorIs(t, err, ErrInconsistentState)
	assert.True(t, f.stored(t, l.Key()).Halted)
}

func TestStatus_TokenSupplyMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.engine.CreateLaunch(ctx, CreateRequest{Creator: testCreator, Tier: domain.TierTwentySol})
	require.NoError(t, err)

	// A mint with a short supply attached behind the engine's back.
	require.NoError(t, f.ledger.Mint(ctx, "ShortMint", []ledger.Allocation{
		{Account: l.Address, Amount: domain.SellableSupply},
	}))
	require.NoError(t, f.launches.SetToken(ctx, l.Key(), "ShortMint"))

	_, err = f.engine.Status(ctx, l.Key())
	require.ErrorIs(t, err, ErrInconsistentState)
	assert.False(t, f.stored(t, l.Key()).Halted)

	f.fund(t, "alice", sol)
	_, err = f.engine.Buy(ctx, BuyRequest{Launch: l.Key(), Buyer: "alice", Deposit: sol})
	require.ErrorIs(t, err, ErrInconsistentState)
	assert.True(t, f.stored(t, l.Key()).Halted)
	assert.Equal(t, sol, f.balance(t, "alice"))
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.newLaunch(t, domain.TierTwentySol)
	f.buy(t, l, "alice", 15*sol)

	units, maxDeposit, err := f.engine.Quote(ctx, l.Key(), sol)
	require.NoError(t, err)
	assert.Equal(t, uint64(35_000_000_000_000), units)
	assert.Equal(t, 5*sol, maxDeposit)

	price, err := f.engine.UnitPrice(ctx, l.Key())
	require.NoError(t, err)
	assert.Equal(t, uint64(28), price)

	_, _, err = f.engine.Quote(ctx, domain.LaunchKey{Creator: "nobody"}, sol)
	assert.ErrorIs(t, err, ErrLaunchNotFound)
}
