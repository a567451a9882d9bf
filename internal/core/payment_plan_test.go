package core_test

import (
	"errors"
	"testing"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"
)

func TestPaymentPlan_NormalizeRepairsModelOutput(t *testing.T) {
	p := core.PaymentPlan{
		Entries: []core.PaymentPlanEntry{
			{Method: " credit card ", Amount: "1500,50", Installments: 0, FirstDueDate: " 2025-04-10 "},
		},
	}

	p.Normalize()
	planned, err := p.Validate()
	if err != nil {
		t.Fatalf("unexpected error after normalization: %v", err)
	}
	if planned[0].Method != core.PaymentCreditCard {
		t.Errorf("method = %s, want %s", planned[0].Method, core.PaymentCreditCard)
	}
	if planned[0].Amount.String() != "1500.5" {
		t.Errorf("amount = %s, want 1500.5", planned[0].Amount)
	}
	if planned[0].Installments != 1 {
		t.Errorf("installments = %d, want 1", planned[0].Installments)
	}
}

func TestPaymentPlan_NormalizationAndValidation(t *testing.T) {
	tests := []struct {
		name      string
		entries   []core.PaymentPlanEntry
		expectErr bool
	}{
		{
			name: "Happy Path (down payment plus boletos)",
			entries: []core.PaymentPlanEntry{
				{Method: "PIX", Amount: "3000.00", Installments: 1, FirstDueDate: "2025-03-10"},
				{Method: "BOLETO", Amount: "7000.00", Installments: 10, FirstDueDate: "2025-04-10"},
			},
			expectErr: false,
		},
		{
			name:      "No entries",
			entries:   nil,
			expectErr: true,
		},
		{
			name: "Blank amount",
			entries: []core.PaymentPlanEntry{
				{Method: "PIX", Amount: "", Installments: 1, FirstDueDate: "2025-03-10"},
			},
			expectErr: true, // normalizes to 0.00, fails > 0 check
		},
		{
			name: "Negative amount",
			entries: []core.PaymentPlanEntry{
				{Method: "CASH", Amount: "-100.00", Installments: 1, FirstDueDate: "2025-03-10"},
			},
			expectErr: true,
		},
		{
			name: "Unknown method",
			entries: []core.PaymentPlanEntry{
				{Method: "CRYPTO", Amount: "100.00", Installments: 1, FirstDueDate: "2025-03-10"},
			},
			expectErr: true,
		},
		{
			name: "Negative installments",
			entries: []core.PaymentPlanEntry{
				{Method: "BOLETO", Amount: "100.00", Installments: -3, FirstDueDate: "2025-03-10"},
			},
			expectErr: true,
		},
		{
			name: "Bad date",
			entries: []core.PaymentPlanEntry{
				{Method: "BOLETO", Amount: "100.00", Installments: 2, FirstDueDate: "10/03/2025"},
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := core.PaymentPlan{Entries: tt.entries}
			p.Normalize()
			planned, err := p.Validate()

			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v, plan: %+v", err, p)
			}
			if got := core.PlannedTotal(planned).String(); got != "10000" {
				t.Errorf("planned total = %s, want 10000", got)
			}
		})
	}
}

func TestPaymentPlan_ValidateWrapsInvalidInstallment(t *testing.T) {
	p := core.PaymentPlan{Entries: []core.PaymentPlanEntry{{Method: "BARTER", Amount: "1", Installments: 1, FirstDueDate: "2025-01-01"}}}
	_, err := p.Validate()
	if !errors.Is(err, core.ErrInvalidInstallment) {
		t.Errorf("expected ErrInvalidInstallment, got %v", err)
	}
}
