package app

import "github.com/Marcoscjr/temporipro2-sub000/internal/core"

// DraftResult is a snapshot of a draft after a command.
type DraftResult struct {
	DraftID         string                      `json:"draft_id"`
	CompanyCode     string                      `json:"company_code"`
	OperatorID      string                      `json:"operator_id"`
	ClientID        string                      `json:"client_id,omitempty"`
	ReferralPartyID string                      `json:"referral_party_id,omitempty"`
	DiscountSource  core.DiscountSource         `json:"discount_source"`
	Lines           []core.EnvironmentQuoteLine `json:"lines"`
	Schedule        core.PaymentSchedule        `json:"schedule"`
	Summary         core.QuoteSummary           `json:"summary"`
	Config          core.PricingConfig          `json:"config"`
	ContractNumber  string                      `json:"contract_number,omitempty"` // set once finalized
}

// ImportResult is returned by ImportDocument.
type ImportResult struct {
	Imported []core.EnvironmentQuoteLine `json:"imported"`
	Draft    *DraftResult                `json:"draft"`
}

// DetailResult is returned by SortDetail.
type DetailResult struct {
	LineID          string                `json:"line_id"`
	EnvironmentName string                `json:"environment_name"`
	Sort            core.SortState        `json:"sort"`
	Items           []core.AggregatedItem `json:"items"`
}

// PaymentPlanResult is returned by InterpretPaymentPlan: either a plan ready to
// be confirmed or a question for the operator.
type PaymentPlanResult struct {
	IsClarification      bool                  `json:"is_clarification"`
	ClarificationMessage string                `json:"clarification_message,omitempty"`
	Payments             []core.PlannedPayment `json:"payments,omitempty"`
	Reasoning            string                `json:"reasoning,omitempty"`
	PlannedTotal         string                `json:"planned_total,omitempty"`
	FinalValue           string                `json:"final_value"`
}

// FinalizeResult is returned by Finalize.
type FinalizeResult struct {
	Contract *core.Contract `json:"contract"`
	Draft    *DraftResult   `json:"draft"`
}

// ContractResult is returned by GetContract.
type ContractResult struct {
	Contract *core.Contract `json:"contract"`
}

// ContractListResult is returned by ListContracts.
type ContractListResult struct {
	CompanyCode string          `json:"company_code"`
	Contracts   []core.Contract `json:"contracts"`
}
