package app

import (
	"context"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
)

// ApplicationService is the single interface all UI adapters (REPL, CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
//
// Every draft command returns the draft as it stands after the command. A
// rejected command returns the error and leaves the draft untouched.
type ApplicationService interface {
	// StartPurge evicts idle drafts in the background until ctx is done.
	StartPurge(ctx context.Context)

	// CreateDraft opens a new proposal under the company's pricing settings.
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*DraftResult, error)

	// GetDraft returns the current state of a draft.
	GetDraft(ctx context.Context, draftID string) (*DraftResult, error)

	// DiscardDraft drops a draft without finalizing it.
	DiscardDraft(ctx context.Context, draftID string) error

	// ImportDocument parses a vendor BOM document and appends its environments.
	ImportDocument(ctx context.Context, draftID string, document []byte) (*ImportResult, error)

	// AddEnvironment creates an empty environment line for manual entry.
	AddEnvironment(ctx context.Context, draftID, name string) (*DraftResult, error)

	// RemoveEnvironment deletes an environment line.
	RemoveEnvironment(ctx context.Context, draftID, lineID string) (*DraftResult, error)

	// SetSelected includes or excludes an environment line from the proposal.
	SetSelected(ctx context.Context, draftID, lineID string, selected bool) (*DraftResult, error)

	// AddItem appends a manually entered item to an environment line.
	AddItem(ctx context.Context, req AddItemRequest) (*DraftResult, error)

	// RemoveItem removes the detail item at index from an environment line.
	RemoveItem(ctx context.Context, draftID, lineID string, index int) (*DraftResult, error)

	// GetDetail returns a line's detail in its current display order.
	GetDetail(ctx context.Context, draftID, lineID string) (*DetailResult, error)

	// SortDetail toggles the display order of a line's detail and returns it sorted.
	SortDetail(ctx context.Context, draftID, lineID string, key core.SortKey) (*DetailResult, error)

	// SetReferral sets the referral party and percentage.
	SetReferral(ctx context.Context, req SetReferralRequest) (*DraftResult, error)

	// SetDiscount sets the discount either as a percentage or as a value.
	SetDiscount(ctx context.Context, req SetDiscountRequest) (*DraftResult, error)

	// SetInterestRate overrides the monthly rate used for present value.
	SetInterestRate(ctx context.Context, draftID string, ratePercent decimal.Decimal) (*DraftResult, error)

	// AddPayment splits a payment into installments and adds them to the schedule.
	AddPayment(ctx context.Context, req AddPaymentRequest) (*DraftResult, error)

	// RemoveInstallment drops one installment from the schedule.
	RemoveInstallment(ctx context.Context, draftID, installmentID string) (*DraftResult, error)

	// ApplyRemainder absorbs a positive remainder into the discount.
	ApplyRemainder(ctx context.Context, draftID string) (*DraftResult, error)

	// InterpretPaymentPlan asks the AI assistant to turn a free-text payment
	// description into a plan. Nothing is applied to the draft.
	InterpretPaymentPlan(ctx context.Context, draftID, text string) (*PaymentPlanResult, error)

	// ApplyPaymentPlan adds every planned payment to the schedule, or none of them.
	ApplyPaymentPlan(ctx context.Context, draftID string, plan []core.PlannedPayment) (*DraftResult, error)

	// Finalize persists the draft as a contract. It is refused while the
	// schedule does not balance; on success the working schedule is cleared
	// and the draft becomes read-only. Finalizing it again returns the same
	// contract; every command that would change it fails with ErrDraftFinalized.
	Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error)

	// ExportWorkbook renders the draft as an xlsx workbook.
	ExportWorkbook(ctx context.Context, draftID string) ([]byte, error)

	// GetContract returns a finalized contract by its contract number.
	GetContract(ctx context.Context, companyCode, contractNumber string) (*ContractResult, error)

	// ListContracts returns the finalized contracts of a company, newest first.
	ListContracts(ctx context.Context, companyCode string) (*ContractListResult, error)
}
