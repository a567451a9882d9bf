package repl

import (
	"fmt"
	"io"
	"strings"

	"github.com/Marcoscjr/temporipro2-sub000/internal/app"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"
)

func printEnvironments(w io.Writer, d *app.DraftResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  ENVIRONMENTS  (markup %s%%)\n", d.Config.MarkupPercent.String())
	fmt.Fprintln(w, strings.Repeat("=", 72))
	if len(d.Lines) == 0 {
		fmt.Fprintln(w, "  No environments. Use /import <file> or /add-env <name>.")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(w, "  %-3s %-3s %-30s %6s %12s %12s\n", "#", "SEL", "ENVIRONMENT", "ITEMS", "COST", "SALE")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for i, l := range d.Lines {
		sel := "[ ]"
		if l.Selected {
			sel = "[x]"
		}
		fmt.Fprintf(w, "  %-3d %-3s %-30s %6d %12s %12s\n",
			i+1, sel, truncate(l.EnvironmentName, 30), len(l.Detail), l.CostTotal.StringFixed(2), l.SaleValue.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printDetail(w io.Writer, env string, sort core.SortState, items []core.AggregatedItem) {
	order := "as imported"
	if sort.Key != "" {
		order = string(sort.Key) + " ascending"
		if sort.Descending {
			order = string(sort.Key) + " descending"
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "  %s  (%s)\n", env, order)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "  %-3s %-32s %-14s %8s %10s %10s\n", "#", "DESCRIPTION", "CATEGORY", "QTY", "UNIT", "TOTAL")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for i, it := range items {
		fmt.Fprintf(w, "  %-3d %-32s %-14s %8s %10s %10s\n",
			i+1, truncate(it.Description, 32), truncate(it.Category, 14),
			it.Quantity.String(), it.UnitPrice.StringFixed(2), it.TotalPrice.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func printSchedule(w io.Writer, d *app.DraftResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintln(w, "  PAYMENT SCHEDULE")
	fmt.Fprintln(w, strings.Repeat("=", 62))
	if len(d.Schedule) == 0 {
		fmt.Fprintln(w, "  No installments. Use /pay or describe the payment in plain words.")
	} else {
		fmt.Fprintf(w, "  %-3s %-12s %-10s %-14s %14s\n", "#", "DUE", "SEQ", "METHOD", "AMOUNT")
		fmt.Fprintln(w, strings.Repeat("-", 62))
		for i, inst := range d.Schedule {
			fmt.Fprintf(w, "  %-3d %-12s %-10s %-14s %14s\n",
				i+1, inst.DueDate.Format("02/01/2006"), inst.Sequence, inst.Method, inst.Amount.StringFixed(2))
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 62))
	printTotals(w, d.Summary)
}

// printTotals is the one-line status shown after every accepted command.
func printTotals(w io.Writer, s core.QuoteSummary) {
	status := "OPEN"
	if s.IsBalanced {
		status = "BALANCED"
	}
	fmt.Fprintf(w, "  Final %s | Scheduled %s | Remainder %s | %s\n",
		s.FinalValue.StringFixed(2), s.ScheduleTotal.StringFixed(2), s.Remainder.StringFixed(2), status)
}

func printSummary(w io.Writer, s core.QuoteSummary) {
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-28s %18s\n", label, value)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w, "  PROPOSAL SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	row("Selected environments", fmt.Sprintf("%d", s.SelectedLines))
	row("Cost", s.CostTotal.StringFixed(2))
	row("Base (sale value)", s.Base.StringFixed(2))
	row(fmt.Sprintf("Referral (%s%%)", s.ReferralPercent.StringFixed(2)), s.ReferralPayout.StringFixed(2))
	row("Proposal total", s.ProposalTotal.StringFixed(2))
	row(fmt.Sprintf("Discount (%s%%)", s.DiscountPercent.StringFixed(2)), s.DiscountValue.StringFixed(2))
	row("Final value", s.FinalValue.StringFixed(2))
	fmt.Fprintln(w, strings.Repeat("-", 50))
	row("Scheduled", s.ScheduleTotal.StringFixed(2))
	row("Remainder", s.Remainder.StringFixed(2))
	row(fmt.Sprintf("Present value (%s%% a.m.)", s.InterestRate.StringFixed(2)), s.PresentValue.StringFixed(2))
	row("Financing cost", s.FinancingCost.StringFixed(2))
	row("Net commission base", s.NetCommissionBase.StringFixed(2))
	fmt.Fprintln(w, strings.Repeat("=", 50))
	switch {
	case s.IsBalanced:
		fmt.Fprintln(w, "  Balanced. Ready to /finalize.")
	case s.CanApplyRemainder:
		fmt.Fprintln(w, "  Not balanced. Add payments or /remainder to absorb it as discount.")
	default:
		fmt.Fprintln(w, "  Over-allocated. Remove or reduce installments.")
	}
}

func printPlan(w io.Writer, p *app.PaymentPlanResult) {
	fmt.Fprintf(w, "\nREASONING:  %s\n", p.Reasoning)
	fmt.Fprintln(w, "PAYMENTS:")
	for _, pay := range p.Payments {
		fmt.Fprintf(w, "  %-14s %12s  x%-3d first due %s\n",
			pay.Method, pay.Amount.StringFixed(2), pay.Installments, pay.FirstDue.Format("02/01/2006"))
	}
	fmt.Fprintf(w, "PLANNED:    %s of %s\n", p.PlannedTotal, p.FinalValue)
}

func printContract(w io.Writer, c *core.Contract) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Contract %s saved.\n", c.ContractNumber)
	fmt.Fprintf(w, "  Final value : %s\n", c.FinalValue.StringFixed(2))
	fmt.Fprintf(w, "  Installments: %d\n", len(c.Schedule))
	if c.ReferralPartyID != "" {
		fmt.Fprintf(w, "  Referral    : %s (%s)\n", c.ReferralPartyID, c.ReferralPayout.StringFixed(2))
	}
}

func printContracts(w io.Writer, result *app.ContractListResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  CONTRACTS  Company %s\n", result.CompanyCode)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	if len(result.Contracts) == 0 {
		fmt.Fprintln(w, "  No contracts found.")
		fmt.Fprintln(w, strings.Repeat("=", 62))
		return
	}
	fmt.Fprintf(w, "  %-10s %-12s %-18s %14s\n", "NUMBER", "DATE", "CLIENT", "FINAL VALUE")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, c := range result.Contracts {
		fmt.Fprintf(w, "  %-10s %-12s %-18s %14s\n",
			c.ContractNumber, c.CreatedAt.Format("02/01/2006"), truncate(c.ClientID, 18), c.FinalValue.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `
Quote lines
  /import <file>                  Import a vendor BOM document (XML)
  /envs                           List environments
  /detail <env#>                  Show an environment's items
  /sort <env#> <key>              Sort items by quantity, description or total (repeat to flip)
  /select <env#>                  Include an environment in the proposal
  /deselect <env#>                Exclude an environment from the proposal
  /add-env <name>                 Create an empty environment
  /rm-env <env#>                  Remove an environment
  /item <env#> <qty> <unit> <desc> Add an item by hand
  /rm-item <env#> <item#>         Remove an item

Pricing
  /referral <pct> [party-id]      Referral commission absorbed into the price
  /discount <pct>                 Discount as a percentage
  /discount-value <amount>        Discount as a value
  /rate <pct>                     Monthly interest rate for present value

Payments
  /pay <method> <amount> [n] [YYYY-MM-DD]
  /rm <installment#>              Remove an installment
  /schedule                       Show the payment schedule
  /remainder                      Absorb a positive remainder as discount
  /plan <description>             Ask the assistant for a payment plan
  (any text without a slash is sent to the assistant)

Proposal
  /summary                        Show all totals
  /finalize [client-id]           Save the contract (schedule must balance)
  /export <path.xlsx>             Write the proposal workbook
  /contracts                      List saved contracts
  /help, /exit`)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
