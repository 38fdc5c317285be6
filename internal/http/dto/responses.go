package dto

import "time"

type AuthResponse struct {
	Token         string    `json:"token"`
	WalletAddress string    `json:"wallet_address"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ChallengeResponse struct {
	WalletAddress string    `json:"wallet_address"`
	Nonce         string    `json:"nonce"`
	Message       string    `json:"message"`
	Timestamp     int64     `json:"timestamp"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type VerifyResponse struct {
	EscrowID    string `json:"escrow_id"`
	Verified    bool   `json:"verified"`
	ChainTxHash string `json:"chain_tx_hash,omitempty"`
}
