package dto

import "github.com/shopspring/decimal"

type ChallengeRequest struct {
	WalletAddress string `json:"wallet_address"`
}

// AuthWalletRequest carries a signed challenge. Only wallet_address is needed in dev mode.
type AuthWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
	Nonce         string `json:"nonce,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"`
	Signature     string `json:"signature,omitempty"`
}

// CreateEscrowRequest is validated against schema.CreateEscrow before decoding.
type CreateEscrowRequest struct {
	OrderID           string            `json:"order_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	BuyerWallet       string            `json:"buyer_wallet"`
	BuyerName         string            `json:"buyer_name"`
	BuyerAadhaarHash  *string           `json:"buyer_aadhaar_hash,omitempty"`
	SellerWallet      string            `json:"seller_wallet"`
	SellerName        string            `json:"seller_name"`
	SellerAadhaarHash *string           `json:"seller_aadhaar_hash,omitempty"`
	EscrowWallet      string            `json:"escrow_wallet"`
	EscrowName        string            `json:"escrow_name"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type FundEscrowRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type ApproveReleaseRequest struct {
	Approved *bool  `json:"approved"` // defaults to true
	Reason   string `json:"reason,omitempty"`
}
