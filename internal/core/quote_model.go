package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultEnvironmentName is assigned to items found outside any declared environment node.
const DefaultEnvironmentName = "General Environment"

// RawLineItem is one priced item as read from the vendor document.
// UnitPrice is always derived as TotalPrice / Quantity.
type RawLineItem struct {
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	EnvironmentName string          `json:"environment_name"`
}

// AggregatedItem is one consolidated (description, category, unit price) group.
type AggregatedItem struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// EnvironmentQuoteLine is the priced quote line for one room of the project.
// CostTotal and SaleValue are derived from Detail; call Recalculate after mutating Detail.
type EnvironmentQuoteLine struct {
	ID              string           `json:"id"`
	EnvironmentName string           `json:"environment_name"`
	CostTotal       decimal.Decimal  `json:"cost_total"`
	SaleValue       decimal.Decimal  `json:"sale_value"`
	Detail          []AggregatedItem `json:"detail"`
	Selected        bool             `json:"selected"`
}

// PaymentMethod enumerates the accepted ways a customer can pay an installment.
type PaymentMethod string

const (
	PaymentPix          PaymentMethod = "PIX"
	PaymentBoleto       PaymentMethod = "BOLETO"
	PaymentCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard    PaymentMethod = "DEBIT_CARD"
	PaymentCash         PaymentMethod = "CASH"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCheck        PaymentMethod = "CHECK"
	PaymentFinancing    PaymentMethod = "FINANCING"
)

var paymentMethods = []PaymentMethod{
	PaymentPix, PaymentBoleto, PaymentCreditCard, PaymentDebitCard,
	PaymentCash, PaymentBankTransfer, PaymentCheck, PaymentFinancing,
}

// PaymentMethods returns every supported payment method.
func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(paymentMethods))
	copy(out, paymentMethods)
	return out
}

// Valid reports whether m is one of the enumerated payment methods.
func (m PaymentMethod) Valid() bool {
	for _, pm := range paymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// Installment is one entry of a payment schedule.
type Installment struct {
	ID       string          `json:"id"`
	Method   PaymentMethod   `json:"method"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
	Sequence string          `json:"sequence,omitempty"` // "2/6" or "À vista"
}

// PaymentSchedule is kept sorted by DueDate.
type PaymentSchedule []Installment

// Total returns the sum of all installment amounts.
func (s PaymentSchedule) Total() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range s {
		total = total.Add(inst.Amount)
	}
	return total
}

// DiscountSource records which discount representation the operator last edited.
// The other representation is re-derived from it whenever the proposal total moves.
type DiscountSource string

const (
	DiscountByPercent DiscountSource = "percent"
	DiscountByValue   DiscountSource = "value"
)

// QuoteSummary is the read-model of a draft after recalculation.
type QuoteSummary struct {
	CostTotal         decimal.Decimal `json:"cost_total"`
	Base              decimal.Decimal `json:"base"`
	ReferralPercent   decimal.Decimal `json:"referral_percent"`
	ProposalTotal     decimal.Decimal `json:"proposal_total"`
	ReferralPayout    decimal.Decimal `json:"referral_payout"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
	DiscountValue     decimal.Decimal `json:"discount_value"`
	FinalValue        decimal.Decimal `json:"final_value"`
	ScheduleTotal     decimal.Decimal `json:"schedule_total"`
	Remainder         decimal.Decimal `json:"remainder"`
	IsBalanced        bool            `json:"is_balanced"`
	CanApplyRemainder bool            `json:"can_apply_remainder"`
	InterestRate      decimal.Decimal `json:"interest_rate"`
	PresentValue      decimal.Decimal `json:"present_value"`
	FinancingCost     decimal.Decimal `json:"financing_cost"`
	NetCommissionBase decimal.Decimal `json:"net_commission_base"`
	SelectedLines     int             `json:"selected_lines"`
}

// ContractRecord is the structured record handed to the persistence sink on finalization.
// The sink allocates the human-readable contract number.
type ContractRecord struct {
	IdempotencyKey    string                 `json:"idempotency_key"`
	CompanyCode       string                 `json:"company_code"`
	ClientID          string                 `json:"client_id"`
	OperatorID        string                 `json:"operator_id"`
	Lines             []EnvironmentQuoteLine `json:"lines"`
	ProposalTotal     decimal.Decimal        `json:"proposal_total"`
	DiscountValue     decimal.Decimal        `json:"discount_value"`
	FinalValue        decimal.Decimal        `json:"final_value"`
	Schedule          PaymentSchedule        `json:"schedule"`
	ReferralPartyID   string                 `json:"referral_party_id,omitempty"`
	ReferralPercent   decimal.Decimal        `json:"referral_percent"`
	ReferralPayout    decimal.Decimal        `json:"referral_payout"`
	InterestRate      decimal.Decimal        `json:"interest_rate"`
	FinancingCost     decimal.Decimal        `json:"financing_cost"`
	NetCommissionBase decimal.Decimal        `json:"net_commission_base"`
	AsOf              time.Time              `json:"as_of"`
}

// Contract is a persisted ContractRecord as returned by the sink.
type Contract struct {
	ID             int       `json:"id"`
	ContractNumber string    `json:"contract_number"`
	CreatedAt      time.Time `json:"created_at"`
	ContractRecord
}
