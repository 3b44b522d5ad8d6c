package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

func TestReceiptAnalyticsStore_Volume(t *testing.T) {
	ctx := context.Background()
	store := NewReceiptAnalyticsStore()
	key := domain.LaunchKey{Creator: "creator", Index: 0}
	other := domain.LaunchKey{Creator: "creator", Index: 1}

	events := []*domain.ReceiptEvent{
		{Kind: domain.ReceiptKindCreated, Launch: key.String(), Created: &domain.LaunchCreated{Creator: "creator"}},
		{Kind: domain.ReceiptKindPurchase, Launch: key.String(), Purchase: &domain.PurchaseReceipt{TokenUnits: 100, Deposit: 10}},
		{Kind: domain.ReceiptKindPurchase, Launch: key.String(), Purchase: &domain.PurchaseReceipt{TokenUnits: 50, Deposit: 5}},
		{Kind: domain.ReceiptKindClaim, Launch: key.String(), Claim: &domain.ClaimReceipt{TokenUnits: 40, NetRefund: 3, Fee: 1}},
		{Kind: domain.ReceiptKindPurchase, Launch: other.String(), Purchase: &domain.PurchaseReceipt{TokenUnits: 7, Deposit: 7}},
	}
	require.NoError(t, store.InsertEvents(ctx, events[:2]))
	for _, ev := range events[2:] {
		require.NoError(t, store.Publish(ctx, ev))
	}

	vol, err := store.GetLaunchVolume(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, &storage.LaunchVolume{
		Launch:        key.String(),
		Purchases:     2,
		Claims:        1,
		TokensSold:    150,
		TokensClaimed: 40,
		Deposited:     15,
		Refunded:      3,
		Fees:          1,
	}, vol)

	empty, err := store.GetLaunchVolume(ctx, domain.LaunchKey{Creator: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, empty.Purchases)
}

func TestReceiptAnalyticsStore_RejectsInvalid(t *testing.T) {
	store := NewReceiptAnalyticsStore()

	err := store.InsertEvents(context.Background(), []*domain.ReceiptEvent{
		{Kind: domain.ReceiptKindPurchase, Launch: "c/0", Purchase: &domain.PurchaseReceipt{}},
		{Kind: domain.ReceiptKindPurchase},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	vol, err := store.GetLaunchVolume(context.Background(), domain.LaunchKey{Creator: "c"})
	require.NoError(t, err)
	assert.Zero(t, vol.Purchases, "batch is all or nothing")
}
