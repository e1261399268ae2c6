package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionDeposit             TransactionType = "deposit"
	TransactionWithdrawal          TransactionType = "withdrawal"
	TransactionAdRevenue           TransactionType = "ad_revenue"
	TransactionPremiumSubscription TransactionType = "premium_subscription"
)

// Credit reports whether the type adds to the balance.
func (t TransactionType) Credit() bool {
	return t == TransactionDeposit || t == TransactionAdRevenue
}

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionAdRevenue, TransactionPremiumSubscription:
		return true
	}
	return false
}

// TransactionStatus tracks settlement of a ledger entry.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Wallet holds a user's in-app balance.
type Wallet struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"userId" db:"user_id"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	IsKYCVerified bool            `json:"isKycVerified" db:"is_kyc_verified"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// Transaction is one ledger entry of a wallet.
type Transaction struct {
	ID          string            `json:"id" db:"id"`
	WalletID    string            `json:"walletId" db:"wallet_id"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Type        TransactionType   `json:"type" db:"type"`
	Status      TransactionStatus `json:"status" db:"status"`
	ReferenceID string            `json:"referenceId,omitempty" db:"reference_id"`
	Description string            `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
}

// NewTransaction is the payload of the atomic apply-transaction operation.
type NewTransaction struct {
	WalletID    string            `json:"walletId"`
	Amount      decimal.Decimal   `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	ReferenceID string            `json:"referenceId,omitempty"`
	Description string            `json:"description,omitempty"`
}

// PaymentMethod is a deposit source offered by the wallet.
type PaymentMethod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PaymentMethods is the catalogue of deposit sources.
var PaymentMethods = []PaymentMethod{
	{ID: "upi", Name: "UPI"},
	{ID: "card", Name: "Credit/Debit Card"},
	{ID: "netbanking", Name: "Net Banking"},
	{ID: "paytm", Name: "Paytm"},
	{ID: "phonepe", Name: "PhonePe"},
	{ID: "gpay", Name: "Google Pay"},
}

// LookupPaymentMethod finds a payment method by id.
func LookupPaymentMethod(id string) (PaymentMethod, bool) {
	for _, m := range PaymentMethods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}
