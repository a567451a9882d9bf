package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SingleInstallmentLabel is the sequence label of a payment that is not split.
const SingleInstallmentLabel = "À vista"

// ErrNoPositiveRemainder is returned when the remainder cannot be absorbed as discount.
// Over-allocation has to be fixed by editing or removing installments.
var ErrNoPositiveRemainder = errors.New("remainder is not positive")

// Identity carries the opaque foreign keys the finalized contract references.
type Identity struct {
	CompanyCode string `json:"company_code"`
	OperatorID  string `json:"operator_id"`
	ClientID    string `json:"client_id"`
}

// Draft is the single in-progress proposal of one operator session.
// Every command validates before it mutates, so a rejected command leaves the
// previous state intact, and every accepted command ends with recalculate.
// A Draft is not safe for concurrent use.
type Draft struct {
	ID              string                 `json:"id"`
	Config          PricingConfig          `json:"config"`
	Lines           []EnvironmentQuoteLine `json:"lines"`
	ReferralPartyID string                 `json:"referral_party_id,omitempty"`
	ReferralPercent decimal.Decimal        `json:"referral_percent"`
	DiscountSource  DiscountSource         `json:"discount_source"`
	DiscountPercent decimal.Decimal        `json:"discount_percent"`
	DiscountValue   decimal.Decimal        `json:"discount_value"`
	InterestRate    decimal.Decimal        `json:"interest_rate"`
	Schedule        PaymentSchedule        `json:"schedule"`

	summary QuoteSummary
	now     func() time.Time
}

// DraftOption customises a new Draft.
type DraftOption func(*Draft)

// WithClock fixes "today" for due-date defaults and present-value discounting.
func WithClock(now func() time.Time) DraftOption {
	return func(d *Draft) { d.now = now }
}

// NewDraft starts an empty proposal under cfg.
func NewDraft(cfg PricingConfig, opts ...DraftOption) (*Draft, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Draft{
		ID:              uuid.NewString(),
		Config:          cfg,
		ReferralPercent: decimal.Zero,
		DiscountSource:  DiscountByPercent,
		DiscountPercent: decimal.Zero,
		DiscountValue:   decimal.Zero,
		InterestRate:    cfg.DefaultInterestRatePercent,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.recalculate()
	return d, nil
}

// Now returns the draft's notion of the current time.
func (d *Draft) Now() time.Time {
	return d.now()
}

// Summary returns the totals as of the last accepted command.
func (d *Draft) Summary() QuoteSummary {
	return d.summary
}

// ── Quote lines ──────────────────────────────────────────────────────────────

// Import parses a vendor document and appends one line per environment it contains.
// Nothing is appended when parsing fails.
func (d *Draft) Import(document []byte) ([]EnvironmentQuoteLine, error) {
	items, err := ParseBOM(document)
	if err != nil {
		return nil, err
	}
	lines := ApplyMarkup(AggregateItems(items), d.Config)
	d.Lines = append(d.Lines, lines...)
	d.recalculate()
	return lines, nil
}

// AddEnvironment creates an empty, selected line the operator fills by hand.
func (d *Draft) AddEnvironment(name string) (EnvironmentQuoteLine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return EnvironmentQuoteLine{}, &ConfigurationError{Field: "environment name", Value: name, Reason: "must not be empty"}
	}
	line := EnvironmentQuoteLine{
		ID:              uuid.NewString(),
		EnvironmentName: name,
		Selected:        true,
	}
	line.Recalculate(d.Config)
	d.Lines = append(d.Lines, line)
	d.recalculate()
	return line, nil
}

// RemoveEnvironment deletes a line from the draft.
func (d *Draft) RemoveEnvironment(lineID string) error {
	i, err := d.lineIndex(lineID)
	if err != nil {
		return err
	}
	d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
	d.recalculate()
	return nil
}

// SetSelected includes or excludes a line from the proposal totals.
func (d *Draft) SetSelected(lineID string, selected bool) error {
	i, err := d.lineIndex(lineID)
	if err != nil {
		return err
	}
	d.Lines[i].Selected = selected
	d.recalculate()
	return nil
}

// AddDetailItem appends a manually entered item to a line. A zero TotalPrice is
// filled in as Quantity × UnitPrice.
func (d *Draft) AddDetailItem(lineID string, item AggregatedItem) error {
	i, err := d.lineIndex(lineID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(item.Description) == "" {
		return &ConfigurationError{Field: "item description", Value: item.Description, Reason: "must not be empty"}
	}
	if !item.Quantity.IsPositive() {
		return &ConfigurationError{Field: "item quantity", Value: item.Quantity.String(), Reason: "must be positive"}
	}
	if item.UnitPrice.IsNegative() || item.TotalPrice.IsNegative() {
		return &ConfigurationError{Field: "item price", Value: item.UnitPrice.String(), Reason: "must not be negative"}
	}
	if item.TotalPrice.IsZero() {
		item.TotalPrice = item.UnitPrice.Mul(item.Quantity)
	} else {
		item.UnitPrice = item.TotalPrice.Div(item.Quantity)
	}

	d.Lines[i].Detail = append(d.Lines[i].Detail, item)
	d.Lines[i].Recalculate(d.Config)
	d.recalculate()
	return nil
}

// RemoveDetailItem drops the item at index from a line's detail.
func (d *Draft) RemoveDetailItem(lineID string, index int) error {
	i, err := d.lineIndex(lineID)
	if err != nil {
		return err
	}
	detail := d.Lines[i].Detail
	if index < 0 || index >= len(detail) {
		return fmt.Errorf("%w: index %d in %s", ErrItemNotFound, index, d.Lines[i].EnvironmentName)
	}
	d.Lines[i].Detail = append(detail[:index:index], detail[index+1:]...)
	d.Lines[i].Recalculate(d.Config)
	d.recalculate()
	return nil
}

func (d *Draft) lineIndex(lineID string) (int, error) {
	for i, l := range d.Lines {
		if l.ID == lineID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrEnvironmentNotFound, lineID)
}

// ── Referral and discount ────────────────────────────────────────────────────

// SetReferral sets the referral party and the percentage absorbed into the price.
func (d *Draft) SetReferral(partyID string, pct decimal.Decimal) error {
	if err := ValidateReferralPercent(pct, d.Config); err != nil {
		return err
	}
	d.ReferralPartyID = strings.TrimSpace(partyID)
	d.ReferralPercent = pct
	d.recalculate()
	return nil
}

// SetDiscountPercent sets the discount as a percentage of the proposal total.
func (d *Draft) SetDiscountPercent(pct decimal.Decimal) error {
	if err := ValidateDiscountPercent(pct, d.Config); err != nil {
		return err
	}
	d.DiscountSource = DiscountByPercent
	d.DiscountPercent = pct
	d.recalculate()
	return nil
}

// SetDiscountValue sets the discount as an absolute amount off the proposal total.
func (d *Draft) SetDiscountValue(value decimal.Decimal) error {
	if err := d.checkDiscountValue(value); err != nil {
		return err
	}
	d.DiscountSource = DiscountByValue
	d.DiscountValue = value
	d.recalculate()
	return nil
}

func (d *Draft) checkDiscountValue(value decimal.Decimal) error {
	if value.IsNegative() {
		return &ConfigurationError{Field: "discount value", Value: value.String(), Reason: "must not be negative"}
	}
	if value.IsPositive() && !d.summary.ProposalTotal.IsPositive() {
		return &ConfigurationError{Field: "discount value", Value: value.String(), Reason: "proposal total is zero"}
	}
	return ValidateDiscountPercent(DiscountPercentFromValue(d.summary.ProposalTotal, value), d.Config)
}

// ApplyRemainderAsDiscount absorbs a positive remainder into the discount so the
// schedule balances. It is refused when the remainder is zero or negative.
func (d *Draft) ApplyRemainderAsDiscount() error {
	remainder := d.summary.Remainder
	if !remainder.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNoPositiveRemainder, remainder.StringFixed(2))
	}
	return d.SetDiscountValue(d.summary.DiscountValue.Add(remainder))
}

// SetInterestRate overrides the monthly rate used for present-value discounting.
func (d *Draft) SetInterestRate(pct decimal.Decimal) error {
	if pct.IsNegative() {
		return &ConfigurationError{Field: "interest rate", Value: pct.String(), Reason: "must not be negative"}
	}
	d.InterestRate = pct
	d.recalculate()
	return nil
}

// ── Payment schedule ─────────────────────────────────────────────────────────

// AddPayment splits amount into n equal installments of the given method, the
// first due on firstDue and each following one Config.InstallmentIntervalDays later.
// Cents that do not divide evenly go to the last installment.
func (d *Draft) AddPayment(method PaymentMethod, amount decimal.Decimal, n int, firstDue time.Time) ([]Installment, error) {
	installments, err := SplitPayment(method, amount, n, firstDue, d.Config.InstallmentIntervalDays)
	if err != nil {
		return nil, err
	}
	d.Schedule = append(d.Schedule, installments...)
	sort.SliceStable(d.Schedule, func(i, j int) bool {
		return d.Schedule[i].DueDate.Before(d.Schedule[j].DueDate)
	})
	d.recalculate()
	return installments, nil
}

// SplitPayment builds the installments of one payment entry without touching any draft.
func SplitPayment(method PaymentMethod, amount decimal.Decimal, n int, firstDue time.Time, intervalDays int) ([]Installment, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInstallment, method)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInstallment, amount)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: installment count must be at least 1, got %d", ErrInvalidInstallment, n)
	}
	if firstDue.IsZero() {
		return nil, fmt.Errorf("%w: first due date is required", ErrInvalidInstallment)
	}

	count := decimal.NewFromInt(int64(n))
	part := amount.Div(count).Truncate(2)
	if !part.IsPositive() {
		return nil, fmt.Errorf("%w: %s cannot be split into %d installments", ErrInvalidInstallment, amount.StringFixed(2), n)
	}
	last := amount.Sub(part.Mul(decimal.NewFromInt(int64(n - 1))))

	out := make([]Installment, 0, n)
	for k := 1; k <= n; k++ {
		value := part
		if k == n {
			value = last
		}
		label := SingleInstallmentLabel
		if n > 1 {
			label = fmt.Sprintf("%d/%d", k, n)
		}
		out = append(out, Installment{
			ID:       uuid.NewString(),
			Method:   method,
			DueDate:  firstDue.AddDate(0, 0, (k-1)*intervalDays),
			Amount:   value,
			Sequence: label,
		})
	}
	return out, nil
}

// RemoveInstallment drops one installment. The labels of the others are kept as entered.
func (d *Draft) RemoveInstallment(installmentID string) error {
	for i, inst := range d.Schedule {
		if inst.ID == installmentID {
			d.Schedule = append(d.Schedule[:i], d.Schedule[i+1:]...)
			d.recalculate()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInstallmentNotFound, installmentID)
}

// ClearSchedule discards the working schedule once it has been copied into a contract.
func (d *Draft) ClearSchedule() {
	d.Schedule = nil
	d.recalculate()
}

// ── Finalization ─────────────────────────────────────────────────────────────

// Finalize builds the record for the persistence sink. It is refused while the
// schedule does not balance against the final value.
func (d *Draft) Finalize(id Identity) (ContractRecord, error) {
	s := d.summary
	if s.SelectedLines == 0 {
		return ContractRecord{}, ErrEmptyProposal
	}
	if !s.IsBalanced {
		return ContractRecord{}, fmt.Errorf("%w: remainder %s", ErrReconciliationBlocked, s.Remainder.StringFixed(2))
	}

	var lines []EnvironmentQuoteLine
	for _, l := range d.Lines {
		if !l.Selected {
			continue
		}
		l.Detail = append([]AggregatedItem(nil), l.Detail...)
		lines = append(lines, l)
	}

	return ContractRecord{
		IdempotencyKey:    d.ID,
		CompanyCode:       id.CompanyCode,
		ClientID:          id.ClientID,
		OperatorID:        id.OperatorID,
		Lines:             lines,
		ProposalTotal:     s.ProposalTotal,
		DiscountValue:     s.DiscountValue,
		FinalValue:        s.FinalValue,
		Schedule:          append(PaymentSchedule(nil), d.Schedule...),
		ReferralPartyID:   d.ReferralPartyID,
		ReferralPercent:   d.ReferralPercent,
		ReferralPayout:    s.ReferralPayout,
		InterestRate:      s.InterestRate,
		FinancingCost:     s.FinancingCost,
		NetCommissionBase: s.NetCommissionBase,
		AsOf:              d.now(),
	}, nil
}

// ── Recalculation ────────────────────────────────────────────────────────────

// recalculate re-derives every total from the draft's inputs. It is idempotent.
func (d *Draft) recalculate() {
	base := SelectedBase(d.Lines)
	proposalTotal, payout := ReferralUplift(base, d.ReferralPercent)

	if d.DiscountSource == DiscountByValue {
		// A value entered against a larger proposal shrinks with it.
		ceiling := proposalTotal.Mul(d.Config.MaxDiscountPercent).Div(hundred)
		if d.DiscountValue.GreaterThan(ceiling) {
			d.DiscountValue = ceiling
		}
		d.DiscountPercent = DiscountPercentFromValue(proposalTotal, d.DiscountValue)
	} else {
		d.DiscountValue = DiscountValueFromPercent(proposalTotal, d.DiscountPercent)
	}
	finalValue := proposalTotal.Sub(d.DiscountValue)

	pv := PresentValue(d.Schedule, d.InterestRate, d.now())
	remainder := finalValue.Sub(pv.ScheduleTotal)

	selected := 0
	for _, l := range d.Lines {
		if l.Selected {
			selected++
		}
	}

	d.summary = QuoteSummary{
		CostTotal:         SelectedCost(d.Lines),
		Base:              base,
		ReferralPercent:   d.ReferralPercent,
		ProposalTotal:     proposalTotal,
		ReferralPayout:    payout,
		DiscountPercent:   d.DiscountPercent,
		DiscountValue:     d.DiscountValue,
		FinalValue:        finalValue,
		ScheduleTotal:     pv.ScheduleTotal,
		Remainder:         remainder,
		IsBalanced:        IsBalanced(remainder, d.Config.BalanceTolerance),
		CanApplyRemainder: remainder.IsPositive(),
		InterestRate:      d.InterestRate,
		PresentValue:      pv.PresentValue,
		FinancingCost:     pv.FinancingCost,
		NetCommissionBase: NetCommissionBase(finalValue, payout, pv.FinancingCost),
		SelectedLines:     selected,
	}
}

// IsBalanced reports |remainder| < tolerance.
func IsBalanced(remainder, tolerance decimal.Decimal) bool {
	return remainder.Abs().LessThan(tolerance)
}
