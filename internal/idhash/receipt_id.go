package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"meme-presale/internal/domain"
)

// ComputeReceiptID computes a deterministic receipt_id using SHA256.
// Formula: SHA256(kind|creator|index|actor|reference)
// Returns hex-encoded hash (64 characters).
func ComputeReceiptID(
	kind domain.ReceiptKind,
	launch domain.LaunchKey,
	actor string,
	reference string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%s",
		string(kind),
		launch.Creator,
		launch.Index,
		actor,
		reference,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSettlementReference returns the reference of the single settlement of a launch.
// Formula: SHA256(settlement|token_id)
func ComputeSettlementReference(tokenID string) string {
	hash := sha256.Sum256([]byte("settlement|" + tokenID))
	return hex.EncodeToString(hash[:])
}
