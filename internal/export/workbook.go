package export

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet  = "Resumo"
	PaymentsSheet = "Pagamentos"

	maxSheetName = 31
	moneyFormat  = 4 // #,##0.00
)

type styles struct {
	title  int
	header int
	cell   int
	money  int
	label  int
	total  int
}

// WriteProposalWorkbook renders the proposal as an xlsx file: a summary sheet,
// one itemized sheet per selected environment and the payment schedule.
func WriteProposalWorkbook(summary core.QuoteSummary, lines []core.EnvironmentQuoteLine, schedule core.PaymentSchedule) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	if err := writeSummary(f, st, summary, lines); err != nil {
		return nil, err
	}

	used := map[string]bool{
		strings.ToLower(SummarySheet):  true,
		strings.ToLower(PaymentsSheet): true,
	}
	for _, line := range lines {
		if !line.Selected {
			continue
		}
		name := uniqueSheetName(line.EnvironmentName, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeEnvironment(f, st, name, line); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(PaymentsSheet); err != nil {
		return nil, fmt.Errorf("create sheet %q: %w", PaymentsSheet, err)
	}
	if err := writeSchedule(f, st, schedule, summary); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	if st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	}); err != nil {
		return st, fmt.Errorf("create title style: %w", err)
	}

	if st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: thinBorders(),
	}); err != nil {
		return st, fmt.Errorf("create header style: %w", err)
	}

	if st.cell, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
	}); err != nil {
		return st, fmt.Errorf("create cell style: %w", err)
	}

	if st.money, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
		NumFmt: moneyFormat,
	}); err != nil {
		return st, fmt.Errorf("create money style: %w", err)
	}

	if st.label, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	}); err != nil {
		return st, fmt.Errorf("create label style: %w", err)
	}

	if st.total, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		NumFmt: moneyFormat,
	}); err != nil {
		return st, fmt.Errorf("create total style: %w", err)
	}
	return st, nil
}

// ── Resumo ──────────────────────────────────────────────────────────────

func writeSummary(f *excelize.File, st styles, s core.QuoteSummary, lines []core.EnvironmentQuoteLine) error {
	sheet := SummarySheet
	for col, w := range map[string]float64{"A": 36, "B": 18, "C": 18} {
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	if err := f.MergeCell(sheet, "A1", "C1"); err != nil {
		return fmt.Errorf("merge title: %w", err)
	}
	f.SetCellValue(sheet, "A1", "Proposta")
	f.SetCellStyle(sheet, "A1", "C1", st.title)

	for i, h := range []string{"Ambiente", "Custo", "Valor de venda"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellStyle(sheet, "A3", "C3", st.header)

	row := 4
	for _, l := range lines {
		if !l.Selected {
			continue
		}
		r := fmt.Sprintf("%d", row)
		f.SetCellValue(sheet, "A"+r, sanitizeExcelCell(l.EnvironmentName))
		f.SetCellValue(sheet, "B"+r, money(l.CostTotal))
		f.SetCellValue(sheet, "C"+r, money(l.SaleValue))
		f.SetCellStyle(sheet, "A"+r, "A"+r, st.cell)
		f.SetCellStyle(sheet, "B"+r, "C"+r, st.money)
		row++
	}

	row++
	totals := []struct {
		label string
		value decimal.Decimal
	}{
		{"Custo total:", s.CostTotal},
		{"Base:", s.Base},
		{fmt.Sprintf("Indicação (%s%%):", s.ReferralPercent.StringFixed(2)), s.ReferralPayout},
		{"Total da proposta:", s.ProposalTotal},
		{fmt.Sprintf("Desconto (%s%%):", s.DiscountPercent.StringFixed(2)), s.DiscountValue},
		{"Valor final:", s.FinalValue},
		{"Total programado:", s.ScheduleTotal},
		{"Saldo:", s.Remainder},
		{fmt.Sprintf("Valor presente (%s%% a.m.):", s.InterestRate.StringFixed(2)), s.PresentValue},
		{"Custo financeiro:", s.FinancingCost},
		{"Base de comissão:", s.NetCommissionBase},
	}
	for _, t := range totals {
		r := fmt.Sprintf("%d", row)
		f.SetCellValue(sheet, "B"+r, t.label)
		f.SetCellStyle(sheet, "B"+r, "B"+r, st.label)
		f.SetCellValue(sheet, "C"+r, money(t.value))
		f.SetCellStyle(sheet, "C"+r, "C"+r, st.total)
		row++
	}
	return nil
}

// ── Environments ────────────────────────────────────────────────────────

func writeEnvironment(f *excelize.File, st styles, sheet string, line core.EnvironmentQuoteLine) error {
	columns := []string{"A", "B", "C", "D", "E"}
	widths := []float64{40, 20, 10, 16, 16}
	for i, col := range columns {
		if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
			return fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	if err := f.MergeCell(sheet, "A1", "E1"); err != nil {
		return fmt.Errorf("merge title: %w", err)
	}
	f.SetCellValue(sheet, "A1", sanitizeExcelCell(line.EnvironmentName))
	f.SetCellStyle(sheet, "A1", "E1", st.title)

	for i, h := range []string{"Descrição", "Categoria", "Qtd", "Preço unitário", "Total"} {
		f.SetCellValue(sheet, columns[i]+"3", h)
	}
	f.SetCellStyle(sheet, "A3", "E3", st.header)

	row := 4
	for _, it := range line.Detail {
		r := fmt.Sprintf("%d", row)
		f.SetCellValue(sheet, "A"+r, sanitizeExcelCell(it.Description))
		f.SetCellValue(sheet, "B"+r, sanitizeExcelCell(it.Category))
		f.SetCellValue(sheet, "C"+r, it.Quantity.InexactFloat64())
		f.SetCellValue(sheet, "D"+r, money(it.UnitPrice))
		f.SetCellValue(sheet, "E"+r, money(it.TotalPrice))
		f.SetCellStyle(sheet, "A"+r, "C"+r, st.cell)
		f.SetCellStyle(sheet, "D"+r, "E"+r, st.money)
		row++
	}

	row++
	r := fmt.Sprintf("%d", row)
	f.SetCellValue(sheet, "D"+r, "Custo:")
	f.SetCellStyle(sheet, "D"+r, "D"+r, st.label)
	f.SetCellValue(sheet, "E"+r, money(line.CostTotal))
	f.SetCellStyle(sheet, "E"+r, "E"+r, st.total)

	r = fmt.Sprintf("%d", row+1)
	f.SetCellValue(sheet, "D"+r, "Venda:")
	f.SetCellStyle(sheet, "D"+r, "D"+r, st.label)
	f.SetCellValue(sheet, "E"+r, money(line.SaleValue))
	f.SetCellStyle(sheet, "E"+r, "E"+r, st.total)
	return nil
}

// ── Pagamentos ──────────────────────────────────────────────────────────

func writeSchedule(f *excelize.File, st styles, schedule core.PaymentSchedule, s core.QuoteSummary) error {
	sheet := PaymentsSheet
	columns := []string{"A", "B", "C", "D"}
	widths := []float64{14, 12, 18, 16}
	for i, col := range columns {
		if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
			return fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	for i, h := range []string{"Vencimento", "Parcela", "Forma", "Valor"} {
		f.SetCellValue(sheet, columns[i]+"1", h)
	}
	f.SetCellStyle(sheet, "A1", "D1", st.header)

	row := 2
	for _, inst := range schedule {
		r := fmt.Sprintf("%d", row)
		f.SetCellValue(sheet, "A"+r, inst.DueDate.Format("02/01/2006"))
		f.SetCellValue(sheet, "B"+r, inst.Sequence)
		f.SetCellValue(sheet, "C"+r, string(inst.Method))
		f.SetCellValue(sheet, "D"+r, money(inst.Amount))
		f.SetCellStyle(sheet, "A"+r, "C"+r, st.cell)
		f.SetCellStyle(sheet, "D"+r, "D"+r, st.money)
		row++
	}

	row++
	r := fmt.Sprintf("%d", row)
	f.SetCellValue(sheet, "C"+r, "Total:")
	f.SetCellStyle(sheet, "C"+r, "C"+r, st.label)
	f.SetCellValue(sheet, "D"+r, money(schedule.Total()))
	f.SetCellStyle(sheet, "D"+r, "D"+r, st.total)

	r = fmt.Sprintf("%d", row+1)
	f.SetCellValue(sheet, "C"+r, "Saldo:")
	f.SetCellStyle(sheet, "C"+r, "C"+r, st.label)
	f.SetCellValue(sheet, "D"+r, money(s.Remainder))
	f.SetCellStyle(sheet, "D"+r, "D"+r, st.total)
	return nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// uniqueSheetName makes an environment name usable as a sheet name: forbidden
// characters replaced, at most 31 characters, unique ignoring case.
func uniqueSheetName(name string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	base = strings.Trim(base, "'")
	if base == "" {
		base = "Ambiente"
	}
	base = truncateRunes(base, maxSheetName)

	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns a slice of excelize.Border for thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
