package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPlanEntry is one payment line as suggested by the assistant. Values are
// strings so the model output can be normalized before it is trusted.
type PaymentPlanEntry struct {
	Method       string `json:"method" jsonschema_description:"One of PIX, BOLETO, CREDIT_CARD, DEBIT_CARD, CASH, BANK_TRANSFER, CHECK, FINANCING"`
	Amount       string `json:"amount" jsonschema_description:"Total amount of this payment line as a decimal string with a dot separator (e.g. '1500.00'), before splitting into installments"`
	Installments int    `json:"installments" jsonschema_description:"Number of equal installments this amount is split into. 1 for a single payment."`
	FirstDueDate string `json:"first_due_date" jsonschema_description:"Due date of the first installment in YYYY-MM-DD format. Use today's date for payments on signature."`
}

// PaymentPlan is the assistant's proposed payment schedule for a draft.
type PaymentPlan struct {
	Entries   []PaymentPlanEntry `json:"entries" jsonschema_description:"Payment lines in the order the customer described them"`
	Reasoning string             `json:"reasoning" jsonschema_description:"Short explanation of how the description was interpreted"`
}

// ClarificationRequest is returned by the assistant when the description is ambiguous.
type ClarificationRequest struct {
	Message string `json:"message" jsonschema_description:"A question asking the operator for the missing details (e.g. 'How many installments on the credit card?')."`
}

// PaymentPlanResponse wraps the assistant output: either a plan or a clarification.
type PaymentPlanResponse struct {
	IsClarificationRequest bool                  `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if the description does not allow a complete plan."`
	Clarification          *ClarificationRequest `json:"clarification,omitempty" jsonschema_description:"Required if is_clarification_request is true."`
	Plan                   *PaymentPlan          `json:"plan,omitempty" jsonschema_description:"Required if is_clarification_request is false."`
}

// PlannedPayment is a validated PaymentPlanEntry, ready for Draft.AddPayment.
type PlannedPayment struct {
	Method       PaymentMethod   `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
	FirstDue     time.Time       `json:"first_due"`
}

// Normalize cleans up common formatting issues in model output.
func (p *PaymentPlan) Normalize() {
	for i := range p.Entries {
		e := &p.Entries[i]
		e.Method = strings.ToUpper(strings.TrimSpace(e.Method))
		e.Method = strings.ReplaceAll(e.Method, " ", "_")
		e.Amount = strings.TrimSpace(e.Amount)
		e.FirstDueDate = strings.TrimSpace(e.FirstDueDate)

		if strings.Contains(e.Amount, ",") && !strings.Contains(e.Amount, ".") {
			e.Amount = strings.Replace(e.Amount, ",", ".", 1)
		}
		if e.Amount == "" || strings.ToLower(e.Amount) == "null" {
			e.Amount = "0.00"
		}
		if e.Installments == 0 {
			e.Installments = 1
		}
	}
}

// Validate parses every entry. It does not compare the plan with the draft's
// final value; the reconciliation gate does that once the plan is applied.
func (p *PaymentPlan) Validate() ([]PlannedPayment, error) {
	if len(p.Entries) == 0 {
		return nil, fmt.Errorf("%w: payment plan must have at least one entry", ErrInvalidInstallment)
	}

	out := make([]PlannedPayment, 0, len(p.Entries))
	for i, e := range p.Entries {
		method := PaymentMethod(e.Method)
		if !method.Valid() {
			return nil, fmt.Errorf("%w: entry %d: unknown payment method %q", ErrInvalidInstallment, i+1, e.Method)
		}

		amt, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: invalid amount %q: %v", ErrInvalidInstallment, i+1, e.Amount, err)
		}
		if !amt.IsPositive() {
			return nil, fmt.Errorf("%w: entry %d: amount must be > 0", ErrInvalidInstallment, i+1)
		}

		if e.Installments < 1 {
			return nil, fmt.Errorf("%w: entry %d: installments must be at least 1", ErrInvalidInstallment, i+1)
		}

		due, err := time.Parse("2006-01-02", e.FirstDueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: invalid due date format: %v", ErrInvalidInstallment, i+1, err)
		}

		out = append(out, PlannedPayment{
			Method:       method,
			Amount:       amt,
			Installments: e.Installments,
			FirstDue:     due,
		})
	}
	return out, nil
}

// PlannedTotal is the sum of the planned amounts.
func PlannedTotal(payments []PlannedPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
