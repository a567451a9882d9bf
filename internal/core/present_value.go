package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// daysPerMonth converts the monthly interest rate into the daily compounding rate.
var daysPerMonth = decimal.NewFromInt(30)

// PresentValueResult is the outcome of discounting a schedule back to asOf.
type PresentValueResult struct {
	ScheduleTotal decimal.Decimal `json:"schedule_total"`
	PresentValue  decimal.Decimal `json:"present_value"`
	FinancingCost decimal.Decimal `json:"financing_cost"`
}

// PresentValue discounts every installment with a daily rate derived from the
// monthly rate (percent):
//
//	pv = Σ amount / (1 + rate/100/30)^max(0, days(asOf, due))
//
// Installments due on or before asOf are not discounted.
func PresentValue(schedule PaymentSchedule, monthlyRatePercent decimal.Decimal, asOf time.Time) PresentValueResult {
	daily := one.Add(monthlyRatePercent.Div(hundred).Div(daysPerMonth))

	total := decimal.Zero
	pv := decimal.Zero
	for _, inst := range schedule {
		total = total.Add(inst.Amount)

		days := DaysBetween(asOf, inst.DueDate)
		if days <= 0 || monthlyRatePercent.IsZero() {
			pv = pv.Add(inst.Amount)
			continue
		}
		factor := daily.Pow(decimal.NewFromInt(int64(days)))
		pv = pv.Add(inst.Amount.Div(factor))
	}

	return PresentValueResult{
		ScheduleTotal: total,
		PresentValue:  pv,
		FinancingCost: total.Sub(pv),
	}
}

// NetCommissionBase is what commission is computed on once the referral payout
// and the financing cost embedded in the schedule are taken out.
func NetCommissionBase(finalValue, referralPayout, financingCost decimal.Decimal) decimal.Decimal {
	return finalValue.Sub(referralPayout).Sub(financingCost)
}

// DaysBetween counts calendar days from from to to, ignoring time of day.
// The result is negative when to is before from.
func DaysBetween(from, to time.Time) int {
	f := civilDate(from)
	t := civilDate(to)
	return int(t.Sub(f).Hours() / 24)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
