package app

import (
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
)

// CreateDraftRequest is the input for opening a new draft. Empty CompanyCode
// and OperatorID fall back to the service defaults.
type CreateDraftRequest struct {
	CompanyCode string
	OperatorID  string
	ClientID    string
}

// AddItemRequest is the input for adding a manual item to an environment line.
type AddItemRequest struct {
	DraftID     string
	LineID      string
	Description string
	Category    string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal // zero means Quantity × UnitPrice
}

// SetReferralRequest is the input for SetReferral.
type SetReferralRequest struct {
	DraftID string
	PartyID string
	Percent decimal.Decimal
}

// SetDiscountRequest sets the discount in one of its two representations.
type SetDiscountRequest struct {
	DraftID string
	Source  core.DiscountSource
	Amount  decimal.Decimal // a percentage or a currency value, per Source
}

// AddPaymentRequest is the input for AddPayment. A zero FirstDue means today.
type AddPaymentRequest struct {
	DraftID      string
	Method       core.PaymentMethod
	Amount       decimal.Decimal
	Installments int
	FirstDue     time.Time
}

// FinalizeRequest is the input for Finalize. ClientID overrides the draft's.
type FinalizeRequest struct {
	DraftID  string
	ClientID string
}
