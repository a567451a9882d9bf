package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/ai"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const kitchenDoc = `<PROJECT>
  <AMBIENT DESCRIPTION="Kitchen">
    <ITEM DESCRIPTION="Panel" CATEGORY="Doors" QUANTITY="2"><BUDGET TOTALPRICE="1000.00"/></ITEM>
    <ITEM DESCRIPTION="Panel" CATEGORY="Shelves" QUANTITY="1"><BUDGET TOTALPRICE="500,00"/></ITEM>
  </AMBIENT>
</PROJECT>`

var today = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeContracts struct {
	saved []core.ContractRecord
	err   error
}

func (f *fakeContracts) SaveContract(ctx context.Context, rec core.ContractRecord) (*core.Contract, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, rec)
	return &core.Contract{
		ID:             len(f.saved),
		ContractNumber: fmt.Sprintf("CT-%06d", len(f.saved)),
		CreatedAt:      today,
		ContractRecord: rec,
	}, nil
}

func (f *fakeContracts) GetContract(ctx context.Context, id int) (*core.Contract, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeContracts) GetContractByNumber(ctx context.Context, companyCode, number string) (*core.Contract, error) {
	for i, rec := range f.saved {
		if rec.CompanyCode == companyCode && fmt.Sprintf("CT-%06d", i+1) == number {
			return &core.Contract{ID: i + 1, ContractNumber: number, ContractRecord: rec}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, number)
}

func (f *fakeContracts) ListContracts(ctx context.Context, companyCode string) ([]core.Contract, error) {
	var out []core.Contract
	for i, rec := range f.saved {
		if rec.CompanyCode == companyCode {
			out = append(out, core.Contract{ID: i + 1, ContractNumber: fmt.Sprintf("CT-%06d", i+1), ContractRecord: rec})
		}
	}
	return out, nil
}

type fakeSettings struct {
	markup string
	err    error
	calls  []string
}

func (f *fakeSettings) LoadPricing(ctx context.Context, companyCode string, defaults core.PricingConfig) (core.PricingConfig, error) {
	f.calls = append(f.calls, companyCode)
	if f.err != nil {
		return defaults, f.err
	}
	cfg := defaults
	if f.markup != "" {
		cfg.MarkupPercent = dec(f.markup)
	}
	return cfg, nil
}

type fakeAgent struct {
	resp *core.PaymentPlanResponse
	err  error
}

func (f *fakeAgent) InterpretPaymentPlan(ctx context.Context, text string, finalValue decimal.Decimal, today time.Time) (*core.PaymentPlanResponse, error) {
	return f.resp, f.err
}

func newTestService(t *testing.T, contracts core.ContractService, settings core.SettingsService, agent *fakeAgent) *appService {
	t.Helper()
	pricing := core.DefaultPricingConfig()
	pricing.MarkupPercent = dec("20")

	var interpreter ai.PaymentPlanInterpreter
	if agent != nil {
		interpreter = agent
	}
	svc := NewAppService(contracts, settings, interpreter, Options{
		Pricing:     pricing,
		CompanyCode: "1000",
		OperatorID:  "ana",
		DraftTTL:    time.Hour,
		Clock:       func() time.Time { return today },
	}, zap.NewNop())
	return svc.(*appService)
}

func importKitchen(t *testing.T, svc *appService) (draftID, lineID string) {
	t.Helper()
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftRequest{ClientID: "client-7"})
	require.NoError(t, err)

	res, err := svc.ImportDocument(ctx, d.DraftID, []byte(kitchenDoc))
	require.NoError(t, err)
	require.Len(t, res.Imported, 1)
	return d.DraftID, res.Imported[0].ID
}

func TestAppService_FinalizeFlow(t *testing.T) {
	ctx := context.Background()
	contracts := &fakeContracts{}
	svc := newTestService(t, contracts, nil, nil)
	draftID, _ := importKitchen(t, svc)

	d, err := svc.SetReferral(ctx, SetReferralRequest{DraftID: draftID, PartyID: "arch-1", Percent: dec("10")})
	require.NoError(t, err)
	assert.True(t, dec("1800").Equal(d.Summary.Base))
	assert.True(t, dec("2000").Equal(d.Summary.ProposalTotal))
	assert.True(t, dec("200").Equal(d.Summary.ReferralPayout))

	_, err = svc.AddPayment(ctx, AddPaymentRequest{DraftID: draftID, Method: core.PaymentPix, Amount: dec("500"), Installments: 1})
	require.NoError(t, err)
	d, err = svc.AddPayment(ctx, AddPaymentRequest{
		DraftID:      draftID,
		Method:       core.PaymentBoleto,
		Amount:       dec("1500"),
		Installments: 3,
		FirstDue:     today.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	require.Len(t, d.Schedule, 4)
	assert.True(t, d.Summary.IsBalanced)
	assert.True(t, d.Schedule[0].DueDate.Equal(today), "a zero first due date means today")

	res, err := svc.Finalize(ctx, FinalizeRequest{DraftID: draftID})
	require.NoError(t, err)
	assert.Equal(t, "CT-000001", res.Contract.ContractNumber)
	assert.Empty(t, res.Draft.Schedule, "the working schedule is discarded after a save")

	require.Len(t, contracts.saved, 1)
	rec := contracts.saved[0]
	assert.Equal(t, draftID, rec.IdempotencyKey)
	assert.Equal(t, "1000", rec.CompanyCode)
	assert.Equal(t, "ana", rec.OperatorID)
	assert.Equal(t, "client-7", rec.ClientID)
	assert.Equal(t, "arch-1", rec.ReferralPartyID)
	assert.Len(t, rec.Schedule, 4)
	assert.True(t, dec("2000").Equal(rec.FinalValue))

	list, err := svc.ListContracts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list.Contracts, 1)

	got, err := svc.GetContract(ctx, "1000", "CT-000001")
	require.NoError(t, err)
	assert.Equal(t, draftID, got.Contract.IdempotencyKey)
}

func TestAppService_FinalizedDraftIsReadOnly(t *testing.T) {
	ctx := context.Background()
	contracts := &fakeContracts{}
	svc := newTestService(t, contracts, nil, nil)
	draftID, lineID := importKitchen(t, svc)

	_, err := svc.AddPayment(ctx, AddPaymentRequest{DraftID: draftID, Method: core.PaymentPix, Amount: dec("1800"), Installments: 1})
	require.NoError(t, err)
	first, err := svc.Finalize(ctx, FinalizeRequest{DraftID: draftID})
	require.NoError(t, err)
	assert.Equal(t, "CT-000001", first.Draft.ContractNumber)

	again, err := svc.Finalize(ctx, FinalizeRequest{DraftID: draftID})
	require.NoError(t, err)
	assert.Equal(t, first.Contract.ContractNumber, again.Contract.ContractNumber)
	assert.True(t, dec("1800").Equal(again.Contract.FinalValue))
	assert.Len(t, contracts.saved, 1)

	_, err = svc.AddItem(ctx, AddItemRequest{DraftID: draftID, LineID: lineID, Description: "Extra", Quantity: dec("1"), TotalPrice: dec("2000")})
	assert.ErrorIs(t, err, ErrDraftFinalized)
	_, err = svc.AddPayment(ctx, AddPaymentRequest{DraftID: draftID, Method: core.PaymentPix, Amount: dec("100"), Installments: 1})
	assert.ErrorIs(t, err, ErrDraftFinalized)
	_, err = svc.SetDiscount(ctx, SetDiscountRequest{DraftID: draftID, Source: core.DiscountByPercent, Amount: dec("5")})
	assert.ErrorIs(t, err, ErrDraftFinalized)
	_, err = svc.SetSelected(ctx, draftID, lineID, false)
	assert.ErrorIs(t, err, ErrDraftFinalized)
	_, err = svc.ImportDocument(ctx, draftID, []byte(kitchenDoc))
	assert.ErrorIs(t, err, ErrDraftFinalized)
	_, err = svc.ApplyPaymentPlan(ctx, draftID, []core.PlannedPayment{{Method: core.PaymentPix, Amount: dec("1"), Installments: 1, FirstDue: today}})
	assert.ErrorIs(t, err, ErrDraftFinalized)

	d, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, "CT-000001", d.ContractNumber)
	assert.Len(t, d.Lines, 1)
	assert.True(t, dec("1800").Equal(d.Summary.FinalValue))

	_, err = svc.ExportWorkbook(ctx, draftID)
	assert.NoError(t, err)
}

func TestAppService_FinalizeBlocked(t *testing.T) {
	ctx := context.Background()
	contracts := &fakeContracts{}
	svc := newTestService(t, contracts, nil, nil)
	draftID, _ := importKitchen(t, svc)

	_, err := svc.AddPayment(ctx, AddPaymentRequest{DraftID: draftID, Method: core.PaymentPix, Amount: dec("1000"), Installments: 1})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, FinalizeRequest{DraftID: draftID})
	assert.ErrorIs(t, err, core.ErrReconciliationBlocked)
	assert.Empty(t, contracts.saved)

	d, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Len(t, d.Schedule, 1, "a blocked finalization keeps the schedule")
	assert.True(t, dec("800").Equal(d.Summary.Remainder))
}

func TestAppService_FinalizeSaveFailureKeepsSchedule(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeContracts{err: errors.New("connection refused")}, nil, nil)
	draftID, _ := importKitchen(t, svc)

	_, err := svc.AddPayment(ctx, AddPaymentRequest{DraftID: draftID, Method: core.PaymentCash, Amount: dec("1800"), Installments: 1})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, FinalizeRequest{DraftID: draftID})
	require.Error(t, err)

	d, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Len(t, d.Schedule, 1)
}

func TestAppService_ApplyRemainder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeContracts{}, nil, nil)
	draftID, _ := importKitchen(t, svc)

	_, err := svc.AddPayment(ctx, AddPaymentRequest{DraftID: draftID, Method: core.PaymentPix, Amount: dec("1700"), Installments: 1})
	require.NoError(t, err)

	d, err := svc.ApplyRemainder(ctx, draftID)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(d.Summary.DiscountValue))
	assert.True(t, d.Summary.IsBalanced)
	assert.Equal(t, core.DiscountByValue, d.DiscountSource)

	_, err = svc.ApplyRemainder(ctx, draftID)
	assert.ErrorIs(t, err, core.ErrNoPositiveRemainder)
}

func TestAppService_RejectedCommandKeepsState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	draftID, lineID := importKitchen(t, svc)

	before, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)

	_, err = svc.SetDiscount(ctx, SetDiscountRequest{DraftID: draftID, Source: core.DiscountByPercent, Amount: dec("150")})
	assert.True(t, core.IsConfigurationError(err))
	_, err = svc.SetDiscount(ctx, SetDiscountRequest{DraftID: draftID, Source: "coupon", Amount: dec("1")})
	assert.True(t, core.IsConfigurationError(err))
	_, err = svc.SetReferral(ctx, SetReferralRequest{DraftID: draftID, Percent: dec("100")})
	assert.Error(t, err)
	_, err = svc.AddPayment(ctx, AddPaymentRequest{DraftID: draftID, Method: "GOLD", Amount: dec("10"), Installments: 1})
	assert.ErrorIs(t, err, core.ErrInvalidInstallment)
	_, err = svc.RemoveItem(ctx, draftID, lineID, 9)
	assert.ErrorIs(t, err, core.ErrItemNotFound)
	_, err = svc.ImportDocument(ctx, draftID, []byte("<broken"))
	assert.ErrorIs(t, err, core.ErrMalformedDocument)

	after, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAppService_DiscountRepresentations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	draftID, _ := importKitchen(t, svc)

	d, err := svc.SetDiscount(ctx, SetDiscountRequest{DraftID: draftID, Source: core.DiscountByPercent, Amount: dec("10")})
	require.NoError(t, err)
	assert.True(t, dec("180").Equal(d.Summary.DiscountValue))

	d, err = svc.SetDiscount(ctx, SetDiscountRequest{DraftID: draftID, Source: core.DiscountByValue, Amount: dec("360")})
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(d.Summary.DiscountPercent))
	assert.True(t, dec("1440").Equal(d.Summary.FinalValue))
}

func TestAppService_ManualLines(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	d, err := svc.CreateDraft(ctx, CreateDraftRequest{})
	require.NoError(t, err)

	d, err = svc.AddEnvironment(ctx, d.DraftID, "Laundry")
	require.NoError(t, err)
	require.Len(t, d.Lines, 1)
	lineID := d.Lines[0].ID

	d, err = svc.AddItem(ctx, AddItemRequest{
		DraftID:     d.DraftID,
		LineID:      lineID,
		Description: "Tall cabinet",
		Quantity:    dec("2"),
		UnitPrice:   dec("250"),
	})
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(d.Lines[0].CostTotal))
	assert.True(t, dec("600").Equal(d.Lines[0].SaleValue))

	d, err = svc.SetSelected(ctx, d.DraftID, lineID, false)
	require.NoError(t, err)
	assert.True(t, d.Summary.Base.IsZero())

	d, err = svc.RemoveEnvironment(ctx, d.DraftID, lineID)
	require.NoError(t, err)
	assert.Empty(t, d.Lines)

	_, err = svc.RemoveEnvironment(ctx, d.DraftID, lineID)
	assert.ErrorIs(t, err, core.ErrEnvironmentNotFound)
}

func TestAppService_SortDetailToggles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	draftID, lineID := importKitchen(t, svc)

	res, err := svc.SortDetail(ctx, draftID, lineID, core.SortByTotal)
	require.NoError(t, err)
	assert.False(t, res.Sort.Descending)
	assert.True(t, dec("500").Equal(res.Items[0].TotalPrice))

	res, err = svc.SortDetail(ctx, draftID, lineID, core.SortByTotal)
	require.NoError(t, err)
	assert.True(t, res.Sort.Descending)
	assert.True(t, dec("1000").Equal(res.Items[0].TotalPrice))

	res, err = svc.SortDetail(ctx, draftID, lineID, core.SortByQuantity)
	require.NoError(t, err)
	assert.False(t, res.Sort.Descending)

	_, err = svc.SortDetail(ctx, draftID, lineID, "price")
	assert.True(t, core.IsConfigurationError(err))
	_, err = svc.SortDetail(ctx, draftID, "missing", core.SortByTotal)
	assert.ErrorIs(t, err, core.ErrEnvironmentNotFound)
}

func TestAppService_CreateDraftUsesCompanySettings(t *testing.T) {
	ctx := context.Background()
	settings := &fakeSettings{markup: "50"}
	svc := newTestService(t, nil, settings, nil)

	d, err := svc.CreateDraft(ctx, CreateDraftRequest{CompanyCode: "2000", OperatorID: "bia"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2000"}, settings.calls)
	assert.Equal(t, "2000", d.CompanyCode)
	assert.Equal(t, "bia", d.OperatorID)
	assert.True(t, dec("50").Equal(d.Config.MarkupPercent))

	settings.err = errors.New("db down")
	_, err = svc.CreateDraft(ctx, CreateDraftRequest{})
	assert.Error(t, err)
}

func TestAppService_PaymentPlan(t *testing.T) {
	ctx := context.Background()
	agent := &fakeAgent{resp: &core.PaymentPlanResponse{
		Plan: &core.PaymentPlan{
			Entries: []core.PaymentPlanEntry{
				{Method: "PIX", Amount: "600.00", Installments: 1, FirstDueDate: "2025-03-10"},
				{Method: "CREDIT_CARD", Amount: "1200.00", Installments: 4, FirstDueDate: "2025-04-10"},
			},
			Reasoning: "one third now, rest on the card",
		},
	}}
	svc := newTestService(t, nil, nil, agent)
	draftID, _ := importKitchen(t, svc)

	plan, err := svc.InterpretPaymentPlan(ctx, draftID, "1/3 no pix, resto em 4x no cartão")
	require.NoError(t, err)
	assert.False(t, plan.IsClarification)
	assert.Equal(t, "1800.00", plan.FinalValue)
	assert.Equal(t, "1800.00", plan.PlannedTotal)
	require.Len(t, plan.Payments, 2)

	d, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Empty(t, d.Schedule, "interpreting must not touch the draft")

	d, err = svc.ApplyPaymentPlan(ctx, draftID, plan.Payments)
	require.NoError(t, err)
	assert.Len(t, d.Schedule, 5)
	assert.True(t, d.Summary.IsBalanced)

	agent.resp = &core.PaymentPlanResponse{
		IsClarificationRequest: true,
		Clarification:          &core.ClarificationRequest{Message: "How many installments?"},
	}
	plan, err = svc.InterpretPaymentPlan(ctx, draftID, "no cartão")
	require.NoError(t, err)
	assert.True(t, plan.IsClarification)
	assert.Equal(t, "How many installments?", plan.ClarificationMessage)

	_, err = svc.InterpretPaymentPlan(ctx, draftID, "  ")
	assert.True(t, core.IsConfigurationError(err))
}

func TestAppService_ApplyPaymentPlanIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	draftID, _ := importKitchen(t, svc)

	_, err := svc.ApplyPaymentPlan(ctx, draftID, []core.PlannedPayment{
		{Method: core.PaymentPix, Amount: dec("900"), Installments: 1, FirstDue: today},
		{Method: core.PaymentBoleto, Amount: dec("900"), Installments: 0, FirstDue: today},
	})
	assert.ErrorIs(t, err, core.ErrInvalidInstallment)

	d, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Empty(t, d.Schedule)

	_, err = svc.ApplyPaymentPlan(ctx, draftID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInstallment)
}

func TestAppService_DisabledDependencies(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	draftID, _ := importKitchen(t, svc)

	_, err := svc.Finalize(ctx, FinalizeRequest{DraftID: draftID})
	assert.ErrorIs(t, err, ErrContractsDisabled)
	_, err = svc.ListContracts(ctx, "")
	assert.ErrorIs(t, err, ErrContractsDisabled)
	_, err = svc.InterpretPaymentPlan(ctx, draftID, "à vista")
	assert.ErrorIs(t, err, ErrAIDisabled)
}

func TestAppService_UnknownDraft(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeContracts{}, nil, nil)

	_, err := svc.GetDraft(ctx, "nope")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	_, err = svc.AddEnvironment(ctx, "nope", "Kitchen")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	_, err = svc.Finalize(ctx, FinalizeRequest{DraftID: "nope"})
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.ErrorIs(t, svc.DiscardDraft(ctx, "nope"), ErrDraftNotFound)
}

func TestAppService_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, nil, nil)
	draftID, _ := importKitchen(t, svc)

	d, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	d.Lines[0].Detail[0].Description = "tampered"
	d.Lines[0].Selected = false

	again, err := svc.GetDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, "Panel", again.Lines[0].Detail[0].Description)
	assert.True(t, again.Lines[0].Selected)
}

func TestAppService_ExportWorkbook(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	draftID, _ := importKitchen(t, svc)

	out, err := svc.ExportWorkbook(context.Background(), draftID)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestDraftStore_Expiry(t *testing.T) {
	now := today
	store := newDraftStore(time.Hour, func() time.Time { return now })

	draft, err := core.NewDraft(core.DefaultPricingConfig())
	require.NoError(t, err)
	store.put(&draftSession{draft: draft})

	now = now.Add(59 * time.Minute)
	_, ok := store.get(draft.ID)
	assert.True(t, ok, "get refreshes the idle timer")

	now = now.Add(59 * time.Minute)
	assert.Equal(t, 0, store.purge())

	now = now.Add(61 * time.Minute)
	assert.Equal(t, 1, store.purge())
	_, ok = store.get(draft.ID)
	assert.False(t, ok)
}
