package core_test

import (
	"testing"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(env, desc, cat, qty, total string) core.RawLineItem {
	q, tp := dec(qty), dec(total)
	return core.RawLineItem{
		Description:     desc,
		Category:        cat,
		Quantity:        q,
		UnitPrice:       tp.Div(q),
		TotalPrice:      tp,
		EnvironmentName: env,
	}
}

func TestAggregateItems_GroupsByDescriptionCategoryAndUnitPrice(t *testing.T) {
	items := []core.RawLineItem{
		raw("Kitchen", "Hinge", "Hardware", "4", "40"),
		raw("Kitchen", "Hinge", "Hardware", "6", "60"),
		raw("Kitchen", "Hinge", "Hardware", "1", "12"),
		raw("Kitchen", "Hinge", "Other", "2", "20"),
	}

	lines := core.AggregateItems(items)
	require.Len(t, lines, 1)
	detail := lines[0].Detail
	require.Len(t, detail, 3)

	assertDecimal(t, "10", detail[0].Quantity)
	assertDecimal(t, "100", detail[0].TotalPrice)
	assertDecimal(t, "10", detail[0].UnitPrice)
	assertDecimal(t, "12", detail[1].UnitPrice)
	assert.Equal(t, "Other", detail[2].Category)
	assertDecimal(t, "132", lines[0].CostTotal)
}

func TestAggregateItems_UnitPriceKeyRoundsToFourPlaces(t *testing.T) {
	a := core.RawLineItem{Description: "Edge", Quantity: dec("1"), UnitPrice: dec("10.00001"), TotalPrice: dec("10.00001"), EnvironmentName: "Bath"}
	b := core.RawLineItem{Description: "Edge", Quantity: dec("1"), UnitPrice: dec("10.00002"), TotalPrice: dec("10.00002"), EnvironmentName: "Bath"}
	c := core.RawLineItem{Description: "Edge", Quantity: dec("1"), UnitPrice: dec("10.001"), TotalPrice: dec("10.001"), EnvironmentName: "Bath"}

	lines := core.AggregateItems([]core.RawLineItem{a, b, c})
	require.Len(t, lines, 1)
	require.Len(t, lines[0].Detail, 2)
	assertDecimal(t, "2", lines[0].Detail[0].Quantity)
	assertDecimal(t, "20.00003", lines[0].Detail[0].TotalPrice)
}

func TestAggregateItems_EnvironmentsInFirstAppearanceOrder(t *testing.T) {
	items := []core.RawLineItem{
		raw("Office", "Desk", "", "1", "800"),
		raw("Kitchen", "Sink", "", "1", "300"),
		raw("Office", "Chair", "", "2", "400"),
		raw(core.DefaultEnvironmentName, "Hinge", "", "1", "5"),
	}

	lines := core.AggregateItems(items)
	require.Len(t, lines, 3)

	var names []string
	for _, l := range lines {
		names = append(names, l.EnvironmentName)
		assert.True(t, l.Selected)
		assert.NotEmpty(t, l.ID)
		assert.True(t, l.SaleValue.IsZero())
	}
	assert.Equal(t, []string{"Office", "Kitchen", core.DefaultEnvironmentName}, names)
	assertDecimal(t, "1200", lines[0].CostTotal)
}

func TestAggregateItems_ConservesTotals(t *testing.T) {
	items, err := core.ParseBOM([]byte(`<PROJECT>
  <AMBIENT DESCRIPTION="Kitchen">
    <ITEM DESCRIPTION="Door" CATEGORY="Front" QUANTITY="2"><BUDGET TOTALPRICE="333.33"/></ITEM>
    <ITEM DESCRIPTION="Door" CATEGORY="Front" QUANTITY="1"><BUDGET TOTALPRICE="166.665"/></ITEM>
    <ITEM DESCRIPTION="Shelf" QUANTITY="3"><BUDGET TOTALPRICE="100"/></ITEM>
  </AMBIENT>
  <AMBIENT DESCRIPTION="Bath">
    <ITEM DESCRIPTION="Mirror" QUANTITY="7"><BUDGET UNITPRICE="14,29"/></ITEM>
  </AMBIENT>
</PROJECT>`))
	require.NoError(t, err)

	rawTotals := map[string]decimal.Decimal{}
	rawQty := map[string]decimal.Decimal{}
	for _, it := range items {
		rawTotals[it.EnvironmentName] = rawTotals[it.EnvironmentName].Add(it.TotalPrice)
		rawQty[it.EnvironmentName] = rawQty[it.EnvironmentName].Add(it.Quantity)
	}

	lines := core.AggregateItems(items)
	require.Len(t, lines, 2)
	for _, l := range lines {
		qty := decimal.Zero
		for _, d := range l.Detail {
			qty = qty.Add(d.Quantity)
		}
		assert.True(t, rawTotals[l.EnvironmentName].Equal(l.CostTotal), "%s cost", l.EnvironmentName)
		assert.True(t, rawQty[l.EnvironmentName].Equal(qty), "%s quantity", l.EnvironmentName)
	}
	assert.Len(t, lines[0].Detail, 2, "the two doors share a unit price")
}

func TestAggregateItems_Empty(t *testing.T) {
	assert.Empty(t, core.AggregateItems(nil))
}

func TestSortState_Toggle(t *testing.T) {
	var s core.SortState

	s = s.Toggle(core.SortByTotal)
	assert.Equal(t, core.SortState{Key: core.SortByTotal}, s)

	s = s.Toggle(core.SortByTotal)
	assert.Equal(t, core.SortState{Key: core.SortByTotal, Descending: true}, s)

	s = s.Toggle(core.SortByDescription)
	assert.Equal(t, core.SortState{Key: core.SortByDescription}, s)
}

func TestSortDetail(t *testing.T) {
	detail := []core.AggregatedItem{
		{Description: "banco", Quantity: dec("2"), TotalPrice: dec("50")},
		{Description: "Armário", Quantity: dec("1"), TotalPrice: dec("900")},
		{Description: "cadeira", Quantity: dec("4"), TotalPrice: dec("200")},
	}

	descriptions := func(items []core.AggregatedItem) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Description)
		}
		return out
	}

	tests := []struct {
		name  string
		state core.SortState
		want  []string
	}{
		{"unsorted keeps input order", core.SortState{}, []string{"banco", "Armário", "cadeira"}},
		{"quantity ascending", core.SortState{Key: core.SortByQuantity}, []string{"Armário", "banco", "cadeira"}},
		{"quantity descending", core.SortState{Key: core.SortByQuantity, Descending: true}, []string{"cadeira", "banco", "Armário"}},
		{"description ignores case", core.SortState{Key: core.SortByDescription}, []string{"Armário", "banco", "cadeira"}},
		{"total descending", core.SortState{Key: core.SortByTotal, Descending: true}, []string{"Armário", "cadeira", "banco"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, descriptions(core.SortDetail(detail, tt.state)))
		})
	}

	assert.Equal(t, "banco", detail[0].Description, "input must not be reordered")
}
