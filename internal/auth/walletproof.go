package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxProofAge bounds how long a signed challenge stays usable (replay protection).
	MaxProofAge = 5 * time.Minute

	maxClockSkew = time.Minute
)

var ErrInvalidProof = errors.New("invalid wallet proof")

// WalletProof is a wallet's signature over the challenge message issued for Nonce.
type WalletProof struct {
	Address   string `json:"wallet_address"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"` // 0x-prefixed 65-byte r||s||v
}

// ChallengeMessage is the text the wallet signs with personal_sign.
func ChallengeMessage(domain, address, nonce string, issuedAt int64) string {
	return fmt.Sprintf("%s wants you to sign in with your wallet:\n%s\n\nNonce: %s\nIssued At: %s",
		domain, address, nonce, time.Unix(issuedAt, 0).UTC().Format(time.RFC3339))
}

// textHash is the EIP-191 personal_sign digest of msg.
func textHash(msg string) []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)))
}

// VerifyWalletProof checks the proof's age and recovers the signer. It returns the
// checksummed address when the signer matches proof.Address.
func VerifyWalletProof(domain string, proof WalletProof, now time.Time) (string, error) {
	issued := time.Unix(proof.Timestamp, 0)
	if now.Sub(issued) > MaxProofAge {
		return "", fmt.Errorf("%w: expired %s ago", ErrInvalidProof, now.Sub(issued).Round(time.Second))
	}
	if issued.After(now.Add(maxClockSkew)) {
		return "", fmt.Errorf("%w: timestamp is in the future", ErrInvalidProof)
	}
	if !common.IsHexAddress(proof.Address) {
		return "", fmt.Errorf("%w: malformed wallet address", ErrInvalidProof)
	}

	sig, err := hexutil.Decode(proof.Signature)
	if err != nil {
		return "", fmt.Errorf("%w: signature: %v", ErrInvalidProof, err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidProof, crypto.SignatureLength, len(sig))
	}
	// Wallets emit v as 27/28.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	want := common.HexToAddress(proof.Address)
	msg := ChallengeMessage(domain, want.Hex(), proof.Nonce, proof.Timestamp)
	pub, err := crypto.SigToPub(textHash(msg), sig)
	if err != nil {
		return "", fmt.Errorf("%w: recover signer: %v", ErrInvalidProof, err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != want {
		return "", fmt.Errorf("%w: signed by %s", ErrInvalidProof, got.Hex())
	}
	return want.Hex(), nil
}

// SignChallenge signs message the way a browser wallet's personal_sign does.
func SignChallenge(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(textHash(message), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// NormalizeWallet returns the checksummed form of hex wallet addresses and w unchanged
// otherwise.
func NormalizeWallet(w string) string {
	if common.IsHexAddress(w) {
		return common.HexToAddress(w).Hex()
	}
	return w
}
