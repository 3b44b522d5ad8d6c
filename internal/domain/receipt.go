package domain

// ReceiptKind identifies the receipt type in feeds and analytics.
type ReceiptKind string

const (
	ReceiptKindPurchase   ReceiptKind = "PURCHASE"
	ReceiptKindClaim      ReceiptKind = "CLAIM"
	ReceiptKindSettlement ReceiptKind = "SETTLEMENT"
	ReceiptKindCreated    ReceiptKind = "CREATED"
)

// PurchaseReceipt is the audit record of a successful buy.
// Corresponds to purchase_receipts table in PostgreSQL.
type PurchaseReceipt struct {
	ReceiptID  string    `json:"receipt_id"` // deterministic hash
	Launch     LaunchKey `json:"-"`
	Buyer      string    `json:"buyer"`
	TokenUnits uint64    `json:"buy_amount"`
	TokenID    string    `json:"mint"`
	UnitPrice  uint64    `json:"token_price"`
	Remaining  uint64    `json:"remain_amount"` // unsold allocation after this buy
	Reference  string    `json:"hash"`          // caller-supplied tag
	Deposit    uint64    `json:"deposit"`       // lamports paid
	Timestamp  int64     `json:"timestamp"`     // unix seconds
}

// ClaimReceipt is the audit record of a refund claim on a failed launch.
// Corresponds to claim_receipts table in PostgreSQL.
type ClaimReceipt struct {
	ReceiptID   string    `json:"receipt_id"`
	Launch      LaunchKey `json:"-"`
	Claimer     string    `json:"claimer"`
	TokenUnits  uint64    `json:"claim_amount"` // tokens returned to the pool
	TokenID     string    `json:"mint"`
	UnitPrice   uint64    `json:"token_price"`
	GrossRefund uint64    `json:"gross_refund"`
	Fee         uint64    `json:"fee"`
	NetRefund   uint64    `json:"net_refund"`
	Reference   string    `json:"hash"`
	Timestamp   int64     `json:"timestamp"`
}

// SettlementReceipt is the audit record of the success distribution.
// Corresponds to settlement_receipts table in PostgreSQL.
type SettlementReceipt struct {
	ReceiptID       string    `json:"receipt_id"`
	Launch          LaunchKey `json:"-"`
	TokenID         string    `json:"mint"`
	GrossRaised     uint64    `json:"gross_raised"`
	Fee             uint64    `json:"fee"`
	CreatorGain     uint64    `json:"creator_gain"`
	PoolCreationFee uint64    `json:"pool_creation_fee"`
	WrapAmount      uint64    `json:"wrap_amount"`
	Timestamp       int64     `json:"timestamp"`
}

// LaunchCreated is emitted once the launch token is minted.
type LaunchCreated struct {
	Creator     string         `json:"creator"`
	Index       uint32         `json:"index"`
	Address     string         `json:"memecoin_config"`
	TokenID     string         `json:"mint"`
	Reserve     string         `json:"reserve"`
	CreatedTime int64          `json:"created_time"`
	Tier        uint8          `json:"funding_raise_tier"`
	Metadata    LaunchMetadata `json:"metadata"`
}

// ReceiptEvent is the envelope published to receipt feeds and analytics.
type ReceiptEvent struct {
	Kind       ReceiptKind        `json:"kind"`
	Launch     string             `json:"launch"`
	Purchase   *PurchaseReceipt   `json:"purchase,omitempty"`
	Claim      *ClaimReceipt      `json:"claim,omitempty"`
	Settlement *SettlementReceipt `json:"settlement,omitempty"`
	Created    *LaunchCreated     `json:"created,omitempty"`
}
