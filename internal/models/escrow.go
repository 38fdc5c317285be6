package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EscrowStatus string

// Escrow statuses
const (
	EscrowStatusPending          EscrowStatus = "pending"
	EscrowStatusFunded           EscrowStatus = "funded"
	EscrowStatusReleaseRequested EscrowStatus = "release_requested"
	EscrowStatusApproved         EscrowStatus = "approved"
	EscrowStatusReleased         EscrowStatus = "released"
	EscrowStatusCancelled        EscrowStatus = "cancelled"
	EscrowStatusDisputed         EscrowStatus = "disputed"
)

// Valid state transitions: from -> []to
var ValidEscrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusPending:          {EscrowStatusFunded, EscrowStatusCancelled, EscrowStatusDisputed},
	EscrowStatusFunded:           {EscrowStatusReleaseRequested, EscrowStatusCancelled, EscrowStatusDisputed},
	EscrowStatusReleaseRequested: {EscrowStatusReleaseRequested, EscrowStatusApproved, EscrowStatusCancelled, EscrowStatusDisputed},
	EscrowStatusApproved:         {EscrowStatusReleased, EscrowStatusCancelled, EscrowStatusDisputed},
	EscrowStatusReleased:         {},
	EscrowStatusCancelled:        {EscrowStatusCancelled, EscrowStatusDisputed},
	EscrowStatusDisputed:         {EscrowStatusCancelled, EscrowStatusDisputed},
}

func IsValidTransition(from, to EscrowStatus) bool {
	allowed, ok := ValidEscrowTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is permitted.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusReleased
}

func (s EscrowStatus) Valid() bool {
	_, ok := ValidEscrowTransitions[s]
	return ok
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type PartyRole string

const (
	RoleBuyer  PartyRole = "buyer"
	RoleSeller PartyRole = "seller"
	RoleEscrow PartyRole = "escrow"
	// RoleSystem only appears as an audit actor role.
	RoleSystem PartyRole = "system"
)

type EscrowParty struct {
	WalletAddress  string         `json:"wallet_address"`
	AadhaarHash    *string        `json:"aadhaar_hash,omitempty"`
	Role           PartyRole      `json:"role"`
	Name           string         `json:"name"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
}

type EscrowAccount struct {
	ID              uuid.UUID           `json:"id"`
	OrderID         string              `json:"order_id"`
	Status          EscrowStatus        `json:"status"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	Buyer           EscrowParty         `json:"buyer"`
	Seller          EscrowParty         `json:"seller"`
	Escrow          EscrowParty         `json:"escrow"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ReleasedAt      *time.Time          `json:"released_at,omitempty"`
	ChainTxHash     string              `json:"chain_tx_hash,omitempty"`
	OnChainRecordID *uuid.UUID          `json:"on_chain_record_id,omitempty"`
	Transactions    []EscrowTransaction `json:"transactions"`
	Metadata        map[string]string   `json:"metadata,omitempty"`
}

// Party returns a pointer to the party slot for role, or nil for RoleSystem.
func (e *EscrowAccount) Party(role PartyRole) *EscrowParty {
	switch role {
	case RoleBuyer:
		return &e.Buyer
	case RoleSeller:
		return &e.Seller
	case RoleEscrow:
		return &e.Escrow
	}
	return nil
}

// RoleOf resolves the party role registered for walletAddress.
func (e *EscrowAccount) RoleOf(walletAddress string) (PartyRole, bool) {
	switch walletAddress {
	case "":
		return "", false
	case e.Buyer.WalletAddress:
		return RoleBuyer, true
	case e.Seller.WalletAddress:
		return RoleSeller, true
	case e.Escrow.WalletAddress:
		return RoleEscrow, true
	}
	return "", false
}

// HasParty reports whether walletAddress occupies any of the three party slots.
func (e *EscrowAccount) HasParty(walletAddress string) bool {
	_, ok := e.RoleOf(walletAddress)
	return ok
}

// AllApproved is recomputed from the party flags on every call rather than counted.
func (e *EscrowAccount) AllApproved() bool {
	return e.Buyer.ApprovalStatus == ApprovalApproved &&
		e.Seller.ApprovalStatus == ApprovalApproved &&
		e.Escrow.ApprovalStatus == ApprovalApproved
}

// Parties returns buyer, seller and escrow-agent wallets in that order.
func (e *EscrowAccount) Parties() [3]string {
	return [3]string{e.Buyer.WalletAddress, e.Seller.WalletAddress, e.Escrow.WalletAddress}
}

// Clone returns a deep copy so callers can mutate it without touching the stored instance.
func (e *EscrowAccount) Clone() *EscrowAccount {
	if e == nil {
		return nil
	}
	c := *e
	c.Buyer = e.Buyer.clone()
	c.Seller = e.Seller.clone()
	c.Escrow = e.Escrow.clone()
	c.ReleasedAt = cloneTime(e.ReleasedAt)
	if e.OnChainRecordID != nil {
		id := *e.OnChainRecordID
		c.OnChainRecordID = &id
	}
	if e.Transactions != nil {
		c.Transactions = make([]EscrowTransaction, len(e.Transactions))
		for i := range e.Transactions {
			c.Transactions[i] = e.Transactions[i].Clone()
		}
	}
	c.Metadata = cloneStringMap(e.Metadata)
	return &c
}

func (p EscrowParty) clone() EscrowParty {
	c := p
	if p.AadhaarHash != nil {
		h := *p.AadhaarHash
		c.AadhaarHash = &h
	}
	c.ApprovedAt = cloneTime(p.ApprovedAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
