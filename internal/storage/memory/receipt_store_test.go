package memory

import (
	"context"
	"errors"
	"testing"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

var testLaunchKey = domain.LaunchKey{Creator: "creator1", Index: 0}

func TestReceiptStore_Purchases(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	r2 := &domain.PurchaseReceipt{ReceiptID: "r2", Launch: testLaunchKey, Buyer: "b", TokenUnits: 20, Reference: "ref2", Timestamp: 200}
	r1 := &domain.PurchaseReceipt{ReceiptID: "r1", Launch: testLaunchKey, Buyer: "a", TokenUnits: 10, Reference: "ref1", Timestamp: 100}
	for _, r := range []*domain.PurchaseReceipt{r2, r1} {
		if err := store.InsertPurchase(ctx, r); err != nil {
			t.Fatalf("InsertPurchase failed: %v", err)
		}
	}

	got, err := store.GetPurchases(ctx, testLaunchKey)
	if err != nil {
		t.Fatalf("GetPurchases failed: %v", err)
	}
	if len(got) != 2 || got[0].ReceiptID != "r1" || got[1].ReceiptID != "r2" {
		t.Fatalf("Expected [r1 r2] by timestamp, got %+v", got)
	}

	byRef, err := store.GetPurchaseByReference(ctx, testLaunchKey, "ref1")
	if err != nil {
		t.Fatalf("GetPurchaseByReference failed: %v", err)
	}
	if byRef.ReceiptID != "r1" {
		t.Errorf("Expected r1 for ref1, got %s", byRef.ReceiptID)
	}
	if _, err := store.GetClaimByReference(ctx, testLaunchKey, "ref1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("References are scoped per receipt kind, got %v", err)
	}
	if _, err := store.GetPurchaseByReference(ctx, domain.LaunchKey{Creator: "creator1", Index: 1}, "ref1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("References are scoped per launch, got %v", err)
	}
}

func TestReceiptStore_DuplicateReference(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	_ = store.InsertPurchase(ctx, &domain.PurchaseReceipt{ReceiptID: "r1", Launch: testLaunchKey, Reference: "ref"})

	err := store.InsertPurchase(ctx, &domain.PurchaseReceipt{ReceiptID: "r2", Launch: testLaunchKey, Reference: "ref"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for reference, got %v", err)
	}

	err = store.InsertPurchase(ctx, &domain.PurchaseReceipt{ReceiptID: "r1", Launch: testLaunchKey, Reference: "other"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for receipt_id, got %v", err)
	}

	got, _ := store.GetPurchases(ctx, testLaunchKey)
	if len(got) != 1 {
		t.Errorf("Expected 1 receipt after rejected inserts, got %d", len(got))
	}
}

func TestReceiptStore_ClaimsAndSettlement(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	c := &domain.ClaimReceipt{ReceiptID: "c1", Launch: testLaunchKey, Claimer: "a", TokenUnits: 5, NetRefund: 3, Reference: "x", Timestamp: 10}
	if err := store.InsertClaim(ctx, c); err != nil {
		t.Fatalf("InsertClaim failed: %v", err)
	}
	claims, _ := store.GetClaims(ctx, testLaunchKey)
	if len(claims) != 1 || claims[0].NetRefund != 3 {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	_, err := store.GetSettlement(ctx, testLaunchKey)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	s := &domain.SettlementReceipt{ReceiptID: "s1", Launch: testLaunchKey, GrossRaised: 100}
	if err := store.InsertSettlement(ctx, s); err != nil {
		t.Fatalf("InsertSettlement failed: %v", err)
	}
	err = store.InsertSettlement(ctx, &domain.SettlementReceipt{ReceiptID: "s2", Launch: testLaunchKey})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetSettlement(ctx, testLaunchKey)
	if err != nil {
		t.Fatalf("GetSettlement failed: %v", err)
	}
	if got.GrossRaised != 100 {
		t.Errorf("GrossRaised mismatch: got %d, want 100", got.GrossRaised)
	}
}

func TestReceiptStore_InvalidInput(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	if err := store.InsertPurchase(ctx, &domain.PurchaseReceipt{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if err := store.InsertClaim(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestReceiptAnalyticsStore_GetLaunchVolume(t *testing.T) {
	store := NewReceiptAnalyticsStore()
	ctx := context.Background()
	launch := testLaunchKey.String()

	events := []*domain.ReceiptEvent{
		{Kind: domain.ReceiptKindPurchase, Launch: launch, Purchase: &domain.PurchaseReceipt{TokenUnits: 100, Deposit: 10}},
		{Kind: domain.ReceiptKindPurchase, Launch: launch, Purchase: &domain.PurchaseReceipt{TokenUnits: 50, Deposit: 5}},
		{Kind: domain.ReceiptKindClaim, Launch: launch, Claim: &domain.ClaimReceipt{TokenUnits: 30, NetRefund: 2, Fee: 1}},
		{Kind: domain.ReceiptKindPurchase, Launch: "other/0", Purchase: &domain.PurchaseReceipt{TokenUnits: 999}},
	}
	if err := store.InsertEvents(ctx, events); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	vol, err := store.GetLaunchVolume(ctx, testLaunchKey)
	if err != nil {
		t.Fatalf("GetLaunchVolume failed: %v", err)
	}
	if vol.Purchases != 2 || vol.TokensSold != 150 || vol.Deposited != 15 {
		t.Errorf("purchase aggregate mismatch: %+v", vol)
	}
	if vol.Claims != 1 || vol.TokensClaimed != 30 || vol.Refunded != 2 || vol.Fees != 1 {
		t.Errorf("claim aggregate mismatch: %+v", vol)
	}

	if err := store.InsertEvents(ctx, []*domain.ReceiptEvent{{Kind: domain.ReceiptKindClaim}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
