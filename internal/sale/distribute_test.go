package sale

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme-presale/internal/domain"
	"meme-presale/internal/ledger"
)

func TestDistributeSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.newLaunch(t, domain.TierTwentySol)
	f.buy(t, l, "alice", 12*sol)
	f.buy(t, l, "bob", 8*sol)

	r, err := f.engine.DistributeSuccess(ctx, l.Key())
	require.NoError(t, err)

	// 5% of 20 SOL is 1 SOL; 19 SOL net less 0.4 SOL pool fee and 0.5 SOL creator gain.
	assert.Equal(t, 20*sol, r.GrossRaised)
	assert.Equal(t, sol, r.Fee)
	assert.Equal(t, DefaultCreatorGain, r.CreatorGain)
	assert.Equal(t, DefaultPoolCreationFee, r.PoolCreationFee)
	assert.Equal(t, 18_100_000_000, int(r.WrapAmount))

	assert.Equal(t, sol, f.balance(t, testFeeReceiver))
	assert.Equal(t, DefaultCreatorGain, f.balance(t, testCreator))
	assert.Equal(t, DefaultPoolCreationFee, f.balance(t, l.PoolFeeAccount()))
	assert.Equal(t, r.WrapAmount, f.balance(t, l.WrappedSOLAccount()))
	assert.Equal(t, uint64(0), f.balance(t, l.Address))
	assert.True(t, f.stored(t, l.Key()).Settled)

	_, err = f.engine.DistributeSuccess(ctx, l.Key())
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestDistributeSuccess_ConfiguredAmounts(t *testing.T) {
	poolFee := uint64(100)
	gain := uint64(0)
	f := newFixture(t, func(o *Options) {
		o.PoolCreationFee = &poolFee
		o.CreatorGain = &gain
	})
	l := f.newLaunch(t, domain.TierTwentySol)
	f.buy(t, l, "alice", 20*sol)

	r, err := f.engine.DistributeSuccess(context.Background(), l.Key())
	require.NoError(t, err)
	assert.Equal(t, 19*sol-100, r.WrapAmount)
	assert.Equal(t, uint64(0), f.balance(t, testCreator))
}

func TestDistributeSuccess_NotSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.newLaunch(t, domain.TierTwentySol)
	f.buy(t, l, "alice", sol)

	_, err := f.engine.DistributeSuccess(ctx, l.Key())
	require.ErrorIs(t, err, ErrNotSucceeded)
	assert.Equal(t, domain.StatusOngoing, f.stored(t, l.Key()).Status)

	// Past the deadline the lazy resolution persists Failed.
	f.pastDeadline(l)
	_, err = f.engine.DistributeSuccess(ctx, l.Key())
	require.ErrorIs(t, err, ErrNotSucceeded)
	assert.Equal(t, domain.StatusFailed, f.stored(t, l.Key()).Status)
}

func TestDistributeSuccess_InsufficientPoolHalts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.newLaunch(t, domain.TierTwentySol)
	f.buy(t, l, "alice", 20*sol)

	require.NoError(t, f.ledger.Post(ctx, []ledger.Movement{
		ledger.Debit(l.Address, 1),
		ledger.Credit("thief", 1),
	}))

	_, err := f.engine.DistributeSuccess(ctx, l.Key())
	require.ErrorIs(t, err, ErrInsufficientPoolBalance)
	assert.True(t, f.stored(t, l.Key()).Halted)
	assert.False(t, f.stored(t, l.Key()).Settled)
}

func TestDistributeSuccess_ConflictingStoredStatusHalts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.newLaunch(t, domain.TierTwentySol)

	// Full pool sold while the store claims the launch failed.
	require.NoError(t, f.ledger.Post(ctx, []ledger.Movement{
		ledger.TransferTokens(l.TokenID, l.Address, "holder", domain.SellableSupply),
	}))
	require.NoError(t, f.launches.UpdateStatus(ctx, l.Key(), domain.StatusOngoing, domain.StatusFailed))

	_, err := f.engine.DistributeSuccess(ctx, l.Key())
	require.ErrorIs(t, err, ErrInconsistentState)
	assert.True(t, f.stored(t, l.Key()).Halted)

	_, err = f.engine.DistributeSuccess(ctx, l.Key())
	assert.ErrorIs(t, err, ErrLaunchHalted)
}
