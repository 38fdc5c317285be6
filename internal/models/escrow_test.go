package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     EscrowStatus
		to       EscrowStatus
		expected bool
	}{
		// Happy path
		{EscrowStatusPending, EscrowStatusFunded, true},
		{EscrowStatusFunded, EscrowStatusReleaseRequested, true},
		{EscrowStatusReleaseRequested, EscrowStatusReleaseRequested, true},
		{EscrowStatusReleaseRequested, EscrowStatusApproved, true},
		{EscrowStatusApproved, EscrowStatusReleased, true},

		// Cancellation paths
		{EscrowStatusPending, EscrowStatusCancelled, true},
		{EscrowStatusFunded, EscrowStatusCancelled, true},
		{EscrowStatusReleaseRequested, EscrowStatusCancelled, true},
		{EscrowStatusApproved, EscrowStatusCancelled, true},
		{EscrowStatusDisputed, EscrowStatusCancelled, true},
		{EscrowStatusCancelled, EscrowStatusCancelled, true},

		// Dispute paths
		{EscrowStatusPending, EscrowStatusDisputed, true},
		{EscrowStatusReleaseRequested, EscrowStatusDisputed, true},
		{EscrowStatusCancelled, EscrowStatusDisputed, true},
		{EscrowStatusDisputed, EscrowStatusDisputed, true},

		// Invalid transitions
		{EscrowStatusPending, EscrowStatusReleased, false},
		{EscrowStatusPending, EscrowStatusReleaseRequested, false},
		{EscrowStatusFunded, EscrowStatusApproved, false},
		{EscrowStatusReleaseRequested, EscrowStatusReleased, false},
		{EscrowStatusReleased, EscrowStatusCancelled, false},
		{EscrowStatusReleased, EscrowStatusDisputed, false},
		{EscrowStatusDisputed, EscrowStatusApproved, false},
		{"nonexistent", EscrowStatusFunded, false},
		{EscrowStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []EscrowStatus{
		EscrowStatusPending, EscrowStatusFunded, EscrowStatusReleaseRequested,
		EscrowStatusApproved, EscrowStatusReleased, EscrowStatusCancelled, EscrowStatusDisputed,
	}

	for _, status := range allStatuses {
		if !status.Valid() {
			t.Errorf("status %q missing from ValidEscrowTransitions map", status)
		}
	}
	if len(ValidEscrowTransitions) != len(allStatuses) {
		t.Errorf("ValidEscrowTransitions has %d entries, want %d", len(ValidEscrowTransitions), len(allStatuses))
	}
}

func TestReleasedIsTerminal(t *testing.T) {
	if !EscrowStatusReleased.IsTerminal() {
		t.Fatal("released must be terminal")
	}
	for to := range ValidEscrowTransitions {
		if IsValidTransition(EscrowStatusReleased, to) {
			t.Errorf("released -> %s must be rejected", to)
		}
	}
	if EscrowStatusCancelled.IsTerminal() {
		t.Error("cancelled escrows can still be disputed")
	}
}

func testAccount() *EscrowAccount {
	hash := "aadhaar-hash"
	return &EscrowAccount{
		ID:       uuid.New(),
		OrderID:  "order_123456",
		Status:   EscrowStatusReleaseRequested,
		Amount:   decimal.NewFromInt(10000),
		Currency: "INR",
		Buyer:    EscrowParty{WalletAddress: "B", Role: RoleBuyer, Name: "Buyer", ApprovalStatus: ApprovalPending, AadhaarHash: &hash},
		Seller:   EscrowParty{WalletAddress: "S", Role: RoleSeller, Name: "Seller", ApprovalStatus: ApprovalPending},
		Escrow:   EscrowParty{WalletAddress: "E", Role: RoleEscrow, Name: "Agent", ApprovalStatus: ApprovalPending},
		Transactions: []EscrowTransaction{
			{ID: uuid.New(), Action: TxActionCreated, Metadata: map[string]string{"orderId": "order_123456"}},
		},
	}
}

func TestRoleOf(t *testing.T) {
	acc := testAccount()
	tests := []struct {
		wallet string
		role   PartyRole
		ok     bool
	}{
		{"B", RoleBuyer, true},
		{"S", RoleSeller, true},
		{"E", RoleEscrow, true},
		{"X", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		role, ok := acc.RoleOf(tt.wallet)
		if role != tt.role || ok != tt.ok {
			t.Errorf("RoleOf(%q) = (%q, %v), want (%q, %v)", tt.wallet, role, ok, tt.role, tt.ok)
		}
	}
}

func TestAllApprovedRequiresEveryParty(t *testing.T) {
	acc := testAccount()
	roles := []PartyRole{RoleSeller, RoleEscrow, RoleBuyer}
	for i, role := range roles {
		if acc.AllApproved() {
			t.Fatalf("AllApproved true after %d approvals", i)
		}
		acc.Party(role).ApprovalStatus = ApprovalApproved
	}
	if !acc.AllApproved() {
		t.Fatal("AllApproved false after all three approvals")
	}

	acc.Seller.ApprovalStatus = ApprovalRejected
	if acc.AllApproved() {
		t.Fatal("AllApproved true with a rejection recorded")
	}
}

func TestCloneIsDeep(t *testing.T) {
	acc := testAccount()
	now := time.Now()
	acc.Buyer.ApprovedAt = &now
	acc.ReleasedAt = &now

	c := acc.Clone()
	c.Buyer.ApprovalStatus = ApprovalApproved
	*c.Buyer.AadhaarHash = "changed"
	*c.Buyer.ApprovedAt = now.Add(time.Hour)
	*c.ReleasedAt = now.Add(time.Hour)
	c.Transactions[0].Metadata["orderId"] = "changed"
	c.Transactions = append(c.Transactions, EscrowTransaction{})

	if acc.Buyer.ApprovalStatus != ApprovalPending {
		t.Error("party approval leaked into original")
	}
	if *acc.Buyer.AadhaarHash != "aadhaar-hash" {
		t.Error("aadhaar hash leaked into original")
	}
	if !acc.Buyer.ApprovedAt.Equal(now) || !acc.ReleasedAt.Equal(now) {
		t.Error("timestamps leaked into original")
	}
	if acc.Transactions[0].Metadata["orderId"] != "order_123456" {
		t.Error("ledger metadata leaked into original")
	}
	if len(acc.Transactions) != 1 {
		t.Error("ledger append leaked into original")
	}
}

func TestApprovalAction(t *testing.T) {
	if got := ApprovalAction(RoleBuyer, true); got != TxActionBuyerApproved {
		t.Errorf("got %q", got)
	}
	if got := ApprovalAction(RoleSeller, true); got != TxActionSellerApproved {
		t.Errorf("got %q", got)
	}
	if got := ApprovalAction(RoleEscrow, false); got != TxActionEscrowRejected {
		t.Errorf("got %q", got)
	}
}
