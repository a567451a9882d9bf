package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/app"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
)

var errExit = errors.New("exit")

// session is the console's view of the single draft it works on.
type session struct {
	ctx    context.Context
	svc    app.ApplicationService
	reader *bufio.Reader
	out    io.Writer
	draft  *app.DraftResult
}

// Run starts the interactive operator console over a fresh draft.
// It reads commands from reader, dispatches slash commands deterministically,
// and routes any other input to the payment plan assistant.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer, req app.CreateDraftRequest) error {
	draft, err := svc.CreateDraft(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to open draft: %w", err)
	}
	s := &session{ctx: ctx, svc: svc, reader: reader, out: out, draft: draft}

	fmt.Fprintln(out, "Quote Console")
	fmt.Fprintf(out, "Company: %s  Operator: %s  Draft: %s\n", draft.CompanyCode, draft.OperatorID, draft.DraftID)
	fmt.Fprintln(out, "Import a vendor document with /import <file>, describe the payment in plain words, or use /help.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, readErr := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if readErr != nil {
				return nil
			}
			continue
		}

		if strings.HasPrefix(input, "/") {
			if err := s.dispatch(input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return nil
				}
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		} else if err := s.plan(input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}

		if readErr != nil {
			return nil
		}
	}
}

func (s *session) dispatch(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]
	id := s.draft.DraftID

	switch cmd {
	case "import", "i":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /import <file>")
			return nil
		}
		data, err := os.ReadFile(strings.Join(args, " "))
		if err != nil {
			return err
		}
		result, err := s.svc.ImportDocument(s.ctx, id, data)
		if err != nil {
			return err
		}
		s.draft = result.Draft
		fmt.Fprintf(s.out, "Imported %d environment(s).\n", len(result.Imported))
		printEnvironments(s.out, s.draft)

	case "envs", "ls":
		printEnvironments(s.out, s.draft)

	case "detail", "d":
		line, err := s.lineArg(args, "Usage: /detail <env#>")
		if err != nil || line == nil {
			return err
		}
		result, err := s.svc.GetDetail(s.ctx, id, line.ID)
		if err != nil {
			return err
		}
		printDetail(s.out, result.EnvironmentName, result.Sort, result.Items)

	case "sort":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: /sort <env#> <quantity|description|total>")
			return nil
		}
		line, err := s.lineArg(args, "")
		if err != nil || line == nil {
			return err
		}
		result, err := s.svc.SortDetail(s.ctx, id, line.ID, core.SortKey(strings.ToLower(args[1])))
		if err != nil {
			return err
		}
		printDetail(s.out, result.EnvironmentName, result.Sort, result.Items)

	case "select", "deselect":
		line, err := s.lineArg(args, "Usage: /"+cmd+" <env#>")
		if err != nil || line == nil {
			return err
		}
		return s.apply(s.svc.SetSelected(s.ctx, id, line.ID, cmd == "select"))

	case "add-env":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /add-env <name>")
			return nil
		}
		if err := s.apply(s.svc.AddEnvironment(s.ctx, id, strings.Join(args, " "))); err != nil {
			return err
		}
		printEnvironments(s.out, s.draft)
		return nil

	case "rm-env":
		line, err := s.lineArg(args, "Usage: /rm-env <env#>")
		if err != nil || line == nil {
			return err
		}
		return s.apply(s.svc.RemoveEnvironment(s.ctx, id, line.ID))

	case "item":
		// /item <env#> <qty> <unit-price> <description...>
		if len(args) < 4 {
			fmt.Fprintln(s.out, "Usage: /item <env#> <qty> <unit-price> <description>")
			return nil
		}
		line, err := s.lineArg(args, "")
		if err != nil || line == nil {
			return err
		}
		qty, err := parseDecimalArg("quantity", args[1])
		if err != nil {
			return err
		}
		price, err := parseDecimalArg("unit price", args[2])
		if err != nil {
			return err
		}
		return s.apply(s.svc.AddItem(s.ctx, app.AddItemRequest{
			DraftID:     id,
			LineID:      line.ID,
			Description: strings.Join(args[3:], " "),
			Quantity:    qty,
			UnitPrice:   price,
		}))

	case "rm-item":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: /rm-item <env#> <item#>")
			return nil
		}
		line, err := s.lineArg(args, "")
		if err != nil || line == nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid item number %q", args[1])
		}
		return s.apply(s.svc.RemoveItem(s.ctx, id, line.ID, n-1))

	case "referral", "ref":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /referral <percent> [party-id]")
			return nil
		}
		pct, err := parseDecimalArg("referral percent", args[0])
		if err != nil {
			return err
		}
		party := ""
		if len(args) > 1 {
			party = args[1]
		}
		return s.apply(s.svc.SetReferral(s.ctx, app.SetReferralRequest{DraftID: id, PartyID: party, Percent: pct}))

	case "discount", "discount-value":
		if len(args) < 1 {
			fmt.Fprintf(s.out, "Usage: /%s <amount>\n", cmd)
			return nil
		}
		amount, err := parseDecimalArg("discount", args[0])
		if err != nil {
			return err
		}
		source := core.DiscountByPercent
		if cmd == "discount-value" {
			source = core.DiscountByValue
		}
		return s.apply(s.svc.SetDiscount(s.ctx, app.SetDiscountRequest{DraftID: id, Source: source, Amount: amount}))

	case "rate":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /rate <monthly-percent>")
			return nil
		}
		rate, err := parseDecimalArg("interest rate", args[0])
		if err != nil {
			return err
		}
		return s.apply(s.svc.SetInterestRate(s.ctx, id, rate))

	case "pay":
		// /pay <method> <amount> [installments] [YYYY-MM-DD]
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: /pay <method> <amount> [installments] [first-due YYYY-MM-DD]")
			fmt.Fprintf(s.out, "  Methods: %s\n", methodList())
			return nil
		}
		amount, err := parseDecimalArg("amount", args[1])
		if err != nil {
			return err
		}
		n := 1
		if len(args) > 2 {
			if n, err = strconv.Atoi(args[2]); err != nil {
				return fmt.Errorf("invalid installment count %q", args[2])
			}
		}
		var due time.Time
		if len(args) > 3 {
			if due, err = time.Parse("2006-01-02", args[3]); err != nil {
				return fmt.Errorf("invalid date %q, use YYYY-MM-DD", args[3])
			}
		}
		if err := s.apply(s.svc.AddPayment(s.ctx, app.AddPaymentRequest{
			DraftID:      id,
			Method:       core.PaymentMethod(strings.ToUpper(args[0])),
			Amount:       amount,
			Installments: n,
			FirstDue:     due,
		})); err != nil {
			return err
		}
		printSchedule(s.out, s.draft)
		return nil

	case "rm":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /rm <installment#>")
			return nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(s.draft.Schedule) {
			return fmt.Errorf("no installment #%s (schedule has %d)", args[0], len(s.draft.Schedule))
		}
		if err := s.apply(s.svc.RemoveInstallment(s.ctx, id, s.draft.Schedule[n-1].ID)); err != nil {
			return err
		}
		printSchedule(s.out, s.draft)
		return nil

	case "schedule", "sched":
		printSchedule(s.out, s.draft)

	case "remainder":
		return s.apply(s.svc.ApplyRemainder(s.ctx, id))

	case "summary", "sum", "s":
		printSummary(s.out, s.draft.Summary)

	case "plan":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /plan <payment description>")
			return nil
		}
		return s.plan(strings.Join(args, " "))

	case "finalize":
		client := ""
		if len(args) > 0 {
			client = args[0]
		}
		result, err := s.svc.Finalize(s.ctx, app.FinalizeRequest{DraftID: id, ClientID: client})
		if err != nil {
			return err
		}
		s.draft = result.Draft
		printContract(s.out, result.Contract)

	case "export":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /export <path.xlsx>")
			return nil
		}
		data, err := s.svc.ExportWorkbook(s.ctx, id)
		if err != nil {
			return err
		}
		path := strings.Join(args, " ")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Workbook written to %s (%d bytes).\n", path, len(data))

	case "contracts":
		result, err := s.svc.ListContracts(s.ctx, s.draft.CompanyCode)
		if err != nil {
			return err
		}
		printContracts(s.out, result)

	case "help", "h":
		printHelp(s.out)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(s.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

// apply records the draft returned by a command and prints the totals.
func (s *session) apply(result *app.DraftResult, err error) error {
	if err != nil {
		return err
	}
	s.draft = result
	printTotals(s.out, result.Summary)
	return nil
}

// lineArg resolves the 1-based environment number in args[0]. A nil line with
// a nil error means usage was printed.
func (s *session) lineArg(args []string, usage string) (*core.EnvironmentQuoteLine, error) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, usage)
		return nil, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.draft.Lines) {
		return nil, fmt.Errorf("no environment #%s (draft has %d)", args[0], len(s.draft.Lines))
	}
	return &s.draft.Lines[n-1], nil
}

// plan sends a payment description to the assistant, handles up to three
// rounds of clarification and applies the plan once the operator approves it.
func (s *session) plan(text string) error {
	fmt.Fprintln(s.out, "[AI] Processing...")
	accumulated := text

	for round := 1; ; round++ {
		if round > 3 {
			fmt.Fprintln(s.out, "Could not produce a plan. Use /pay instead (see /help).")
			return nil
		}

		result, err := s.svc.InterpretPaymentPlan(s.ctx, s.draft.DraftID, accumulated)
		if err != nil {
			return err
		}

		if result.IsClarification {
			fmt.Fprintf(s.out, "\n[AI]: %s\n", result.ClarificationMessage)
			fmt.Fprint(s.out, "> ")
			followUp, _ := s.reader.ReadString('\n')
			followUp = strings.TrimSpace(followUp)

			// Slash command during clarification cancels the assistant.
			if strings.HasPrefix(followUp, "/") {
				fmt.Fprintln(s.out, "(AI session cancelled)")
				return s.dispatch(followUp)
			}
			if followUp == "" || strings.EqualFold(followUp, "cancel") {
				fmt.Fprintln(s.out, "Cancelled.")
				return nil
			}
			accumulated = fmt.Sprintf("Original description: %s\nClarification requested: %s\nOperator response: %s",
				accumulated, result.ClarificationMessage, followUp)
			fmt.Fprintln(s.out, "[AI] Thinking...")
			continue
		}

		printPlan(s.out, result)
		fmt.Fprint(s.out, "\nApply this plan? (y/n): ")
		choice, _ := s.reader.ReadString('\n')
		choice = strings.TrimSpace(strings.ToLower(choice))
		if choice != "y" && choice != "yes" {
			fmt.Fprintln(s.out, "Plan discarded.")
			return nil
		}
		if err := s.apply(s.svc.ApplyPaymentPlan(s.ctx, s.draft.DraftID, result.Payments)); err != nil {
			return err
		}
		printSchedule(s.out, s.draft)
		return nil
	}
}

func parseDecimalArg(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", field, raw)
	}
	return v, nil
}

func methodList() string {
	methods := core.PaymentMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
