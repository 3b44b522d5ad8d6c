package idhash

import (
	"testing"

	"meme-presale/internal/domain"
)

func TestComputeReceiptID(t *testing.T) {
	tests := []struct {
		name      string
		kind      domain.ReceiptKind
		launch    domain.LaunchKey
		actor     string
		reference string
		wantLen   int // hash length should be 64
	}{
		{
			name:      "purchase",
			kind:      domain.ReceiptKindPurchase,
			launch:    domain.LaunchKey{Creator: "Creator123", Index: 0},
			actor:     "Buyer456",
			reference: "TxSig789",
			wantLen:   64,
		},
		{
			name:      "claim",
			kind:      domain.ReceiptKindClaim,
			launch:    domain.LaunchKey{Creator: "Creator123", Index: 7},
			actor:     "Claimer999",
			reference: "ref-1",
			wantLen:   64,
		},
		{
			name:      "empty reference",
			kind:      domain.ReceiptKindSettlement,
			launch:    domain.LaunchKey{Creator: "Creator123", Index: 1},
			actor:     "",
			reference: "",
			wantLen:   64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeReceiptID(tt.kind, tt.launch, tt.actor, tt.reference)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeReceiptID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeReceiptID(tt.kind, tt.launch, tt.actor, tt.reference)
			if got != got2 {
				t.Errorf("ComputeReceiptID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeReceiptID_DifferentInputs(t *testing.T) {
	launch := domain.LaunchKey{Creator: "Creator", Index: 0}
	base := ComputeReceiptID(domain.ReceiptKindPurchase, launch, "Buyer", "Ref")

	// Different kind should produce different hash
	if base == ComputeReceiptID(domain.ReceiptKindClaim, launch, "Buyer", "Ref") {
		t.Error("Different kind should produce different hash")
	}

	// Different launch index should produce different hash
	if base == ComputeReceiptID(domain.ReceiptKindPurchase, domain.LaunchKey{Creator: "Creator", Index: 1}, "Buyer", "Ref") {
		t.Error("Different launch index should produce different hash")
	}

	// Different actor should produce different hash
	if base == ComputeReceiptID(domain.ReceiptKindPurchase, launch, "Other", "Ref") {
		t.Error("Different actor should produce different hash")
	}

	// Different reference should produce different hash
	if base == ComputeReceiptID(domain.ReceiptKindPurchase, launch, "Buyer", "Ref2") {
		t.Error("Different reference should produce different hash")
	}
}

func TestComputeSettlementReference(t *testing.T) {
	a := ComputeSettlementReference("MintA")
	b := ComputeSettlementReference("MintB")
	if len(a) != 64 {
		t.Errorf("length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("Different mint should produce different reference")
	}
	if a != ComputeSettlementReference("MintA") {
		t.Error("ComputeSettlementReference() not deterministic")
	}
}
