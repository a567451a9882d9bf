package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/ai"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"
	"github.com/Marcoscjr/temporipro2-sub000/internal/export"
	"github.com/Marcoscjr/temporipro2-sub000/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrDraftNotFound     = errors.New("draft not found")
	ErrContractsDisabled = errors.New("contract persistence is not configured")
	ErrAIDisabled        = errors.New("payment plan assistant is not configured")
	ErrDraftFinalized    = errors.New("draft is already finalized")
)

// Options configures an appService. Zero values select the defaults.
type Options struct {
	Pricing     core.PricingConfig // process-wide defaults, overlaid per company by SettingsService
	CompanyCode string
	OperatorID  string
	DraftTTL    time.Duration
	Clock       func() time.Time
}

type appService struct {
	contracts core.ContractService
	settings  core.SettingsService
	agent     ai.PaymentPlanInterpreter
	drafts    *draftStore
	opts      Options
	logger    *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
// contracts, settings and agent may be nil; the operations that need them
// then fail with ErrContractsDisabled or ErrAIDisabled, and drafts use opts.Pricing.
func NewAppService(
	contracts core.ContractService,
	settings core.SettingsService,
	agent ai.PaymentPlanInterpreter,
	opts Options,
	logger *zap.Logger,
) ApplicationService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		contracts: contracts,
		settings:  settings,
		agent:     agent,
		drafts:    newDraftStore(opts.DraftTTL, opts.Clock),
		opts:      opts,
		logger:    logger,
	}
}

// StartPurge evicts idle drafts in the background until ctx is done.
func (s *appService) StartPurge(ctx context.Context) {
	s.drafts.startPurge(ctx)
}

// ── Drafts ──────────────────────────────────────────────────────────────

func (s *appService) CreateDraft(ctx context.Context, req CreateDraftRequest) (*DraftResult, error) {
	company := strings.TrimSpace(req.CompanyCode)
	if company == "" {
		company = s.opts.CompanyCode
	}
	operator := strings.TrimSpace(req.OperatorID)
	if operator == "" {
		operator = s.opts.OperatorID
	}

	cfg := s.opts.Pricing
	if s.settings != nil && company != "" {
		var err error
		cfg, err = s.settings.LoadPricing(ctx, company, s.opts.Pricing)
		if err != nil {
			return nil, err
		}
	}

	draft, err := core.NewDraft(cfg, core.WithClock(s.opts.Clock))
	if err != nil {
		return nil, err
	}
	sess := &draftSession{
		draft: draft,
		identity: core.Identity{
			CompanyCode: company,
			OperatorID:  operator,
			ClientID:    strings.TrimSpace(req.ClientID),
		},
		sort: make(map[string]core.SortState),
	}
	s.drafts.put(sess)

	s.logger.Info("draft created",
		zap.String("draft_id", draft.ID),
		zap.String("company", company),
		zap.String("operator", operator),
	)
	return snapshot(sess), nil
}

func (s *appService) GetDraft(ctx context.Context, draftID string) (*DraftResult, error) {
	sess, err := s.session(draftID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return snapshot(sess), nil
}

func (s *appService) DiscardDraft(ctx context.Context, draftID string) error {
	if !s.drafts.delete(draftID) {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	s.logger.Info("draft discarded", zap.String("draft_id", draftID))
	return nil
}

func (s *appService) session(draftID string) (*draftSession, error) {
	sess, ok := s.drafts.get(draftID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return sess, nil
}

// mutate runs one operator command against a draft under its session lock.
func (s *appService) mutate(draftID, command string, fn func(sess *draftSession) error) (*DraftResult, error) {
	sess, err := s.session(draftID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := writable(sess); err != nil {
		s.rejected(sess, command, err)
		return nil, err
	}
	if err := fn(sess); err != nil {
		s.rejected(sess, command, err)
		return nil, err
	}
	return snapshot(sess), nil
}

func writable(sess *draftSession) error {
	if sess.contract != nil {
		return fmt.Errorf("%w: contract %s", ErrDraftFinalized, sess.contract.ContractNumber)
	}
	return nil
}

func (s *appService) rejected(sess *draftSession, command string, err error) {
	metrics.NewQuoteMetrics(sess.identity.CompanyCode).RecordRejected(command)
	s.logger.Warn("command rejected",
		zap.String("draft_id", sess.draft.ID),
		zap.String("command", command),
		zap.Error(err),
	)
}

// ── Quote lines ─────────────────────────────────────────────────────────

func (s *appService) ImportDocument(ctx context.Context, draftID string, document []byte) (*ImportResult, error) {
	sess, err := s.session(draftID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := writable(sess); err != nil {
		s.rejected(sess, "import", err)
		return nil, err
	}

	m := metrics.NewQuoteMetrics(sess.identity.CompanyCode)
	start := time.Now()
	lines, err := sess.draft.Import(document)
	if err != nil {
		m.RecordImport(metrics.StatusError, 0, time.Since(start))
		s.logger.Warn("import failed",
			zap.String("draft_id", draftID),
			zap.Int("bytes", len(document)),
			zap.Error(err),
		)
		return nil, err
	}

	items := 0
	for _, l := range lines {
		items += len(l.Detail)
	}
	m.RecordImport(metrics.StatusSuccess, items, time.Since(start))
	s.logger.Info("document imported",
		zap.String("draft_id", draftID),
		zap.Int("environments", len(lines)),
		zap.Int("items", items),
		zap.Duration("duration", time.Since(start)),
	)

	return &ImportResult{Imported: copyLines(lines), Draft: snapshot(sess)}, nil
}

func (s *appService) AddEnvironment(ctx context.Context, draftID, name string) (*DraftResult, error) {
	return s.mutate(draftID, "add_environment", func(sess *draftSession) error {
		_, err := sess.draft.AddEnvironment(name)
		return err
	})
}

func (s *appService) RemoveEnvironment(ctx context.Context, draftID, lineID string) (*DraftResult, error) {
	return s.mutate(draftID, "remove_environment", func(sess *draftSession) error {
		if err := sess.draft.RemoveEnvironment(lineID); err != nil {
			return err
		}
		delete(sess.sort, lineID)
		return nil
	})
}

func (s *appService) SetSelected(ctx context.Context, draftID, lineID string, selected bool) (*DraftResult, error) {
	return s.mutate(draftID, "set_selected", func(sess *draftSession) error {
		return sess.draft.SetSelected(lineID, selected)
	})
}

func (s *appService) AddItem(ctx context.Context, req AddItemRequest) (*DraftResult, error) {
	return s.mutate(req.DraftID, "add_item", func(sess *draftSession) error {
		return sess.draft.AddDetailItem(req.LineID, core.AggregatedItem{
			Description: strings.TrimSpace(req.Description),
			Category:    strings.TrimSpace(req.Category),
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			TotalPrice:  req.TotalPrice,
		})
	})
}

func (s *appService) RemoveItem(ctx context.Context, draftID, lineID string, index int) (*DraftResult, error) {
	return s.mutate(draftID, "remove_item", func(sess *draftSession) error {
		return sess.draft.RemoveDetailItem(lineID, index)
	})
}

func (s *appService) SortDetail(ctx context.Context, draftID, lineID string, key core.SortKey) (*DetailResult, error) {
	switch key {
	case core.SortByQuantity, core.SortByDescription, core.SortByTotal:
	default:
		return nil, &core.ConfigurationError{Field: "sort key", Value: string(key), Reason: "must be quantity, description or total"}
	}

	return s.detail(draftID, lineID, func(state core.SortState) core.SortState {
		return state.Toggle(key)
	})
}

func (s *appService) GetDetail(ctx context.Context, draftID, lineID string) (*DetailResult, error) {
	return s.detail(draftID, lineID, nil)
}

// detail returns a line's items in the session's order for that line, after
// applying next to it when next is non-nil.
func (s *appService) detail(draftID, lineID string, next func(core.SortState) core.SortState) (*DetailResult, error) {
	sess, err := s.session(draftID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, l := range sess.draft.Lines {
		if l.ID != lineID {
			continue
		}
		state := sess.sort[lineID]
		if next != nil {
			state = next(state)
			sess.sort[lineID] = state
		}
		return &DetailResult{
			LineID:          l.ID,
			EnvironmentName: l.EnvironmentName,
			Sort:            state,
			Items:           core.SortDetail(l.Detail, state),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrEnvironmentNotFound, lineID)
}

// ── Referral, discount and rate ─────────────────────────────────────────

func (s *appService) SetReferral(ctx context.Context, req SetReferralRequest) (*DraftResult, error) {
	return s.mutate(req.DraftID, "set_referral", func(sess *draftSession) error {
		return sess.draft.SetReferral(req.PartyID, req.Percent)
	})
}

func (s *appService) SetDiscount(ctx context.Context, req SetDiscountRequest) (*DraftResult, error) {
	return s.mutate(req.DraftID, "set_discount", func(sess *draftSession) error {
		switch req.Source {
		case core.DiscountByPercent, "":
			return sess.draft.SetDiscountPercent(req.Amount)
		case core.DiscountByValue:
			return sess.draft.SetDiscountValue(req.Amount)
		default:
			return &core.ConfigurationError{Field: "discount source", Value: string(req.Source), Reason: "must be percent or value"}
		}
	})
}

func (s *appService) SetInterestRate(ctx context.Context, draftID string, ratePercent decimal.Decimal) (*DraftResult, error) {
	return s.mutate(draftID, "set_interest_rate", func(sess *draftSession) error {
		return sess.draft.SetInterestRate(ratePercent)
	})
}

// ── Payment schedule ────────────────────────────────────────────────────

func (s *appService) AddPayment(ctx context.Context, req AddPaymentRequest) (*DraftResult, error) {
	return s.mutate(req.DraftID, "add_payment", func(sess *draftSession) error {
		due := req.FirstDue
		if due.IsZero() {
			due = sess.draft.Now()
		}
		_, err := sess.draft.AddPayment(req.Method, req.Amount, req.Installments, due)
		return err
	})
}

func (s *appService) RemoveInstallment(ctx context.Context, draftID, installmentID string) (*DraftResult, error) {
	return s.mutate(draftID, "remove_installment", func(sess *draftSession) error {
		return sess.draft.RemoveInstallment(installmentID)
	})
}

func (s *appService) ApplyRemainder(ctx context.Context, draftID string) (*DraftResult, error) {
	return s.mutate(draftID, "apply_remainder", func(sess *draftSession) error {
		return sess.draft.ApplyRemainderAsDiscount()
	})
}

func (s *appService) InterpretPaymentPlan(ctx context.Context, draftID, text string) (*PaymentPlanResult, error) {
	if s.agent == nil {
		return nil, ErrAIDisabled
	}
	if strings.TrimSpace(text) == "" {
		return nil, &core.ConfigurationError{Field: "payment description", Value: text, Reason: "must not be empty"}
	}

	sess, err := s.session(draftID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	finalValue := sess.draft.Summary().FinalValue
	today := sess.draft.Now()
	err = writable(sess)
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}

	resp, err := s.agent.InterpretPaymentPlan(ctx, text, finalValue, today)
	if err != nil {
		s.logger.Error("payment plan interpretation failed", zap.String("draft_id", draftID), zap.Error(err))
		return nil, fmt.Errorf("interpret payment plan: %w", err)
	}

	result := &PaymentPlanResult{FinalValue: finalValue.StringFixed(2)}
	if resp.IsClarificationRequest {
		result.IsClarification = true
		if resp.Clarification != nil {
			result.ClarificationMessage = resp.Clarification.Message
		}
		return result, nil
	}
	if resp.Plan == nil {
		return nil, fmt.Errorf("interpret payment plan: response carries no plan")
	}

	planned, err := resp.Plan.Validate()
	if err != nil {
		return nil, err
	}
	result.Payments = planned
	result.Reasoning = resp.Plan.Reasoning
	result.PlannedTotal = core.PlannedTotal(planned).StringFixed(2)
	return result, nil
}

func (s *appService) ApplyPaymentPlan(ctx context.Context, draftID string, plan []core.PlannedPayment) (*DraftResult, error) {
	return s.mutate(draftID, "apply_payment_plan", func(sess *draftSession) error {
		if len(plan) == 0 {
			return fmt.Errorf("%w: payment plan is empty", core.ErrInvalidInstallment)
		}
		interval := sess.draft.Config.InstallmentIntervalDays
		for i, p := range plan {
			if _, err := core.SplitPayment(p.Method, p.Amount, p.Installments, p.FirstDue, interval); err != nil {
				return fmt.Errorf("plan entry %d: %w", i+1, err)
			}
		}
		for _, p := range plan {
			if _, err := sess.draft.AddPayment(p.Method, p.Amount, p.Installments, p.FirstDue); err != nil {
				return err
			}
		}
		return nil
	})
}

// ── Finalization ────────────────────────────────────────────────────────

func (s *appService) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	if s.contracts == nil {
		return nil, ErrContractsDisabled
	}
	sess, err := s.session(req.DraftID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.contract != nil {
		return &FinalizeResult{Contract: sess.contract, Draft: snapshot(sess)}, nil
	}

	id := sess.identity
	if c := strings.TrimSpace(req.ClientID); c != "" {
		id.ClientID = c
	}
	m := metrics.NewQuoteMetrics(id.CompanyCode)

	rec, err := sess.draft.Finalize(id)
	if err != nil {
		if errors.Is(err, core.ErrReconciliationBlocked) {
			m.RecordFinalization(metrics.StatusBlocked, 0)
		}
		s.rejected(sess, "finalize", err)
		return nil, err
	}

	contract, err := s.contracts.SaveContract(ctx, rec)
	if err != nil {
		m.RecordFinalization(metrics.StatusError, 0)
		s.logger.Error("contract save failed", zap.String("draft_id", req.DraftID), zap.Error(err))
		return nil, err
	}
	sess.identity.ClientID = id.ClientID
	sess.contract = contract
	sess.draft.ClearSchedule()

	m.RecordFinalization(metrics.StatusSuccess, rec.FinalValue.InexactFloat64())
	s.logger.Info("contract finalized",
		zap.String("draft_id", req.DraftID),
		zap.String("contract_number", contract.ContractNumber),
		zap.String("final_value", rec.FinalValue.StringFixed(2)),
		zap.Int("installments", len(rec.Schedule)),
	)
	return &FinalizeResult{Contract: contract, Draft: snapshot(sess)}, nil
}

func (s *appService) ExportWorkbook(ctx context.Context, draftID string) ([]byte, error) {
	sess, err := s.session(draftID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	summary := sess.draft.Summary()
	lines := copyLines(sess.draft.Lines)
	schedule := append(core.PaymentSchedule(nil), sess.draft.Schedule...)
	sess.mu.Unlock()

	return export.WriteProposalWorkbook(summary, lines, schedule)
}

// ── Contracts ───────────────────────────────────────────────────────────

func (s *appService) GetContract(ctx context.Context, companyCode, contractNumber string) (*ContractResult, error) {
	if s.contracts == nil {
		return nil, ErrContractsDisabled
	}
	c, err := s.contracts.GetContractByNumber(ctx, s.company(companyCode), contractNumber)
	if err != nil {
		return nil, err
	}
	return &ContractResult{Contract: c}, nil
}

func (s *appService) ListContracts(ctx context.Context, companyCode string) (*ContractListResult, error) {
	if s.contracts == nil {
		return nil, ErrContractsDisabled
	}
	company := s.company(companyCode)
	contracts, err := s.contracts.ListContracts(ctx, company)
	if err != nil {
		return nil, err
	}
	return &ContractListResult{CompanyCode: company, Contracts: contracts}, nil
}

func (s *appService) company(code string) string {
	if c := strings.TrimSpace(code); c != "" {
		return c
	}
	return s.opts.CompanyCode
}

// snapshot copies the draft state so callers never share slices with it.
// The caller must hold sess.mu.
func snapshot(sess *draftSession) *DraftResult {
	d := sess.draft
	r := &DraftResult{
		DraftID:         d.ID,
		CompanyCode:     sess.identity.CompanyCode,
		OperatorID:      sess.identity.OperatorID,
		ClientID:        sess.identity.ClientID,
		ReferralPartyID: d.ReferralPartyID,
		DiscountSource:  d.DiscountSource,
		Lines:           copyLines(d.Lines),
		Schedule:        append(core.PaymentSchedule{}, d.Schedule...),
		Summary:         d.Summary(),
		Config:          d.Config,
	}
	if sess.contract != nil {
		r.ContractNumber = sess.contract.ContractNumber
	}
	return r
}

func copyLines(lines []core.EnvironmentQuoteLine) []core.EnvironmentQuoteLine {
	out := make([]core.EnvironmentQuoteLine, len(lines))
	for i, l := range lines {
		l.Detail = append([]core.AggregatedItem(nil), l.Detail...)
		out[i] = l
	}
	return out
}
