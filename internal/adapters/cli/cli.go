package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/app"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
)

const usage = "Available: import <file>, pv <monthly-rate> <amount>@<YYYY-MM-DD>..., contracts [company]"

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "import", "imp":
		if len(args) < 2 {
			return fmt.Errorf("usage: app import <file>")
		}
		return runImport(ctx, svc, args[1], out)

	case "pv":
		if len(args) < 3 {
			return fmt.Errorf("usage: app pv <monthly-rate> <amount>@<YYYY-MM-DD>...")
		}
		return runPresentValue(args[1], args[2:], time.Now(), out)

	case "contracts":
		company := ""
		if len(args) > 1 {
			company = args[1]
		}
		result, err := svc.ListContracts(ctx, company)
		if err != nil {
			return err
		}
		return writeJSON(out, result)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

// runImport parses a vendor document in a throwaway draft and prints the
// priced environments.
func runImport(ctx context.Context, svc app.ApplicationService, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	draft, err := svc.CreateDraft(ctx, app.CreateDraftRequest{})
	if err != nil {
		return err
	}
	defer svc.DiscardDraft(ctx, draft.DraftID)

	result, err := svc.ImportDocument(ctx, draft.DraftID, data)
	if err != nil {
		return err
	}

	type report struct {
		Environments []core.EnvironmentQuoteLine `json:"environments"`
		CostTotal    decimal.Decimal             `json:"cost_total"`
		SaleTotal    decimal.Decimal             `json:"sale_total"`
	}
	return writeJSON(out, report{
		Environments: result.Imported,
		CostTotal:    result.Draft.Summary.CostTotal,
		SaleTotal:    result.Draft.Summary.Base,
	})
}

// runPresentValue discounts an ad-hoc schedule given as amount@date pairs.
func runPresentValue(rateArg string, entries []string, now time.Time, out io.Writer) error {
	rate, err := decimal.NewFromString(rateArg)
	if err != nil || rate.IsNegative() {
		return fmt.Errorf("invalid monthly rate %q", rateArg)
	}

	var schedule core.PaymentSchedule
	for _, e := range entries {
		amountArg, dateArg, ok := strings.Cut(e, "@")
		if !ok {
			return fmt.Errorf("invalid installment %q, use <amount>@<YYYY-MM-DD>", e)
		}
		amount, err := decimal.NewFromString(amountArg)
		if err != nil || !amount.IsPositive() {
			return fmt.Errorf("invalid amount in %q", e)
		}
		due, err := time.Parse("2006-01-02", dateArg)
		if err != nil {
			return fmt.Errorf("invalid date in %q", e)
		}
		schedule = append(schedule, core.Installment{Method: core.PaymentBoleto, DueDate: due, Amount: amount})
	}

	pv := core.PresentValue(schedule, rate, now)
	fmt.Fprintf(out, "Schedule total : %s\n", pv.ScheduleTotal.StringFixed(2))
	fmt.Fprintf(out, "Present value  : %s\n", pv.PresentValue.StringFixed(2))
	fmt.Fprintf(out, "Financing cost : %s\n", pv.FinancingCost.StringFixed(2))
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
