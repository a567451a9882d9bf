package core

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// unitPriceKeyPlaces is the rounding applied to unit prices when grouping, so that
// float noise from the CAD tool does not split one material into several groups.
const unitPriceKeyPlaces = 4

type groupKey struct {
	description string
	category    string
	unitPrice   string
}

// AggregateItems partitions raw items by environment and consolidates each
// partition by (description, category, unit price rounded to 4 places).
// Environments come out in order of first appearance and are selected by default.
// SaleValue is left zero; run the lines through ApplyMarkup.
func AggregateItems(items []RawLineItem) []EnvironmentQuoteLine {
	var envOrder []string
	byEnv := make(map[string][]RawLineItem)
	for _, it := range items {
		if _, seen := byEnv[it.EnvironmentName]; !seen {
			envOrder = append(envOrder, it.EnvironmentName)
		}
		byEnv[it.EnvironmentName] = append(byEnv[it.EnvironmentName], it)
	}

	lines := make([]EnvironmentQuoteLine, 0, len(envOrder))
	for _, env := range envOrder {
		line := EnvironmentQuoteLine{
			ID:              uuid.NewString(),
			EnvironmentName: env,
			Detail:          groupItems(byEnv[env]),
			Selected:        true,
		}
		line.CostTotal = detailTotal(line.Detail)
		lines = append(lines, line)
	}
	return lines
}

func groupItems(items []RawLineItem) []AggregatedItem {
	var order []groupKey
	groups := make(map[groupKey]*AggregatedItem)

	for _, it := range items {
		k := groupKey{
			description: it.Description,
			category:    it.Category,
			unitPrice:   it.UnitPrice.Round(unitPriceKeyPlaces).String(),
		}
		g, ok := groups[k]
		if !ok {
			g = &AggregatedItem{
				Description: it.Description,
				Category:    it.Category,
				Quantity:    decimal.Zero,
				UnitPrice:   it.UnitPrice,
				TotalPrice:  decimal.Zero,
			}
			groups[k] = g
			order = append(order, k)
		}
		g.Quantity = g.Quantity.Add(it.Quantity)
		g.TotalPrice = g.TotalPrice.Add(it.TotalPrice)
	}

	out := make([]AggregatedItem, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

// detailTotal sums the grouped totals, not the raw items.
func detailTotal(detail []AggregatedItem) decimal.Decimal {
	total := decimal.Zero
	for _, d := range detail {
		total = total.Add(d.TotalPrice)
	}
	return total
}

// SortKey selects the column used to order an environment's detail for display.
type SortKey string

const (
	SortByQuantity    SortKey = "quantity"
	SortByDescription SortKey = "description"
	SortByTotal       SortKey = "total"
)

// SortState is the current display ordering. Selecting the same key again
// flips the direction; a new key starts ascending.
type SortState struct {
	Key        SortKey `json:"key"`
	Descending bool    `json:"descending"`
}

// Toggle returns the state after the operator selects key.
func (s SortState) Toggle(key SortKey) SortState {
	if s.Key == key {
		return SortState{Key: key, Descending: !s.Descending}
	}
	return SortState{Key: key}
}

// SortDetail returns a sorted copy of detail. An empty key keeps the input order.
func SortDetail(detail []AggregatedItem, state SortState) []AggregatedItem {
	out := make([]AggregatedItem, len(detail))
	copy(out, detail)

	var compare func(a, b AggregatedItem) int
	switch state.Key {
	case SortByQuantity:
		compare = func(a, b AggregatedItem) int { return a.Quantity.Cmp(b.Quantity) }
	case SortByDescription:
		compare = func(a, b AggregatedItem) int {
			return strings.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description))
		}
	case SortByTotal:
		compare = func(a, b AggregatedItem) int { return a.TotalPrice.Cmp(b.TotalPrice) }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j])
		if state.Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}
