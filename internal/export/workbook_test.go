package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleLines() []core.EnvironmentQuoteLine {
	return []core.EnvironmentQuoteLine{
		{
			ID:              "l1",
			EnvironmentName: "Kitchen",
			CostTotal:       d("1500"),
			SaleValue:       d("1800"),
			Selected:        true,
			Detail: []core.AggregatedItem{
				{Description: "Panel", Category: "Doors", Quantity: d("2"), UnitPrice: d("500"), TotalPrice: d("1000")},
				{Description: "=HYPERLINK(\"x\")", Category: "Shelves", Quantity: d("1"), UnitPrice: d("500"), TotalPrice: d("500")},
			},
		},
		{ID: "l2", EnvironmentName: "Garage", CostTotal: d("100"), SaleValue: d("120"), Selected: false},
		{ID: "l3", EnvironmentName: "kitchen", CostTotal: d("10"), SaleValue: d("12"), Selected: true},
	}
}

func TestWriteProposalWorkbook(t *testing.T) {
	due := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	schedule := core.PaymentSchedule{
		{ID: "i1", Method: core.PaymentPix, DueDate: due, Amount: d("1000"), Sequence: core.SingleInstallmentLabel},
		{ID: "i2", Method: core.PaymentBoleto, DueDate: due.AddDate(0, 1, 0), Amount: d("812"), Sequence: "1/1"},
	}
	summary := core.QuoteSummary{
		CostTotal:     d("1510"),
		Base:          d("1812"),
		ProposalTotal: d("1812"),
		FinalValue:    d("1812"),
		ScheduleTotal: d("1812"),
		Remainder:     decimal.Zero,
	}

	out, err := WriteProposalWorkbook(summary, sampleLines(), schedule)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, "Kitchen", "kitchen (2)", PaymentsSheet}, f.GetSheetList())

	env, err := f.GetCellValue(SummarySheet, "A4")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", env)

	sale, err := f.GetCellValue(SummarySheet, "C4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1800", sale)

	injected, err := f.GetCellValue("Kitchen", "A5")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(injected, "'="), "formula must be neutralized, got %q", injected)

	method, err := f.GetCellValue(PaymentsSheet, "C3")
	require.NoError(t, err)
	assert.Equal(t, "BOLETO", method)

	dueCell, err := f.GetCellValue(PaymentsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "10/04/2025", dueCell)
}

func TestWriteProposalWorkbook_EmptyDraft(t *testing.T) {
	out, err := WriteProposalWorkbook(core.QuoteSummary{}, nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SummarySheet, PaymentsSheet}, f.GetSheetList())
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{"resumo": true}

	long := uniqueSheetName("Suite master with walk-in closet and vanity", used)
	assert.Equal(t, 31, len([]rune(long)))

	again := uniqueSheetName("Suite master with walk-in closet and vanity", used)
	assert.NotEqual(t, long, again)
	assert.LessOrEqual(t, len([]rune(again)), 31)
	assert.True(t, strings.HasSuffix(again, " (2)"))

	assert.Equal(t, "Resumo (2)", uniqueSheetName("Resumo", used))
	assert.Equal(t, "Sala_Jantar", uniqueSheetName("Sala/Jantar", used))
	assert.Equal(t, "Ambiente", uniqueSheetName("  ", used))
}
