// Package pricing computes a policy quote from a tariff catalog: day
// banding, per-traveller age and sports loads, group discount tiering, tax
// and fees, and final rounding. All arithmetic is fixed-point decimal.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"travelguard/internal/tariff"
)

// ErrInvalidDays is returned when the trip length falls outside any band.
var ErrInvalidDays = errors.New("pricing: days outside valid range [1,92]")

// ErrNoTariff is returned when no tariff row matches scope/plan/band.
var ErrNoTariff = errors.New("pricing: no tariff row for scope/plan/band")

// Traveller is one priced passenger.
type Traveller struct {
	AgeAtTravel int
	IsSenior    bool
}

// TravellerBreakdown is the per-traveller pricing detail.
type TravellerBreakdown struct {
	Base          decimal.Decimal
	AgeLoad       decimal.Decimal
	SportsLoad    decimal.Decimal
	TravellerTotal decimal.Decimal
}

// Quote is the full pricing result for an ingest.
type Quote struct {
	Currency       string
	CoverageLimit  string
	Subtotal       decimal.Decimal
	GroupDiscount  decimal.Decimal
	Net            decimal.Decimal
	Tax            decimal.Decimal
	Fees           decimal.Decimal
	Total          decimal.Decimal
	Travellers     []TravellerBreakdown
}

// Engine prices quotes against a loaded tariff catalog.
type Engine struct {
	Catalog tariff.Catalog
}

// NewEngine builds a pricing Engine over the given catalog.
func NewEngine(cat tariff.Catalog) Engine {
	return Engine{Catalog: cat}
}

var bands = [][2]int{{1, 7}, {8, 15}, {16, 31}, {32, 45}, {46, 92}}

func validDays(days int) bool {
	for _, b := range bands {
		if days >= b[0] && days <= b[1] {
			return true
		}
	}
	return false
}

// Price computes a quote for scope/plan/days over travellers, applying the
// sports surcharge to every traveller when sportsFlag is set.
func (e Engine) Price(scope, plan string, days int, travellers []Traveller, sportsFlag bool) (Quote, error) {
	if !validDays(days) {
		return Quote{}, ErrInvalidDays
	}

	row, ok := e.Catalog.Lookup(scope, plan, days)
	if !ok {
		return Quote{}, ErrNoTariff
	}

	rules := e.Catalog.Rules
	breakdowns := make([]TravellerBreakdown, 0, len(travellers))
	subtotal := decimal.Zero

	for _, tvl := range travellers {
		base := row.PremiumUSD

		ageLoad := decimal.Zero
		if tvl.AgeAtTravel >= rules.AgeLoad.SeniorAgeMin && tvl.AgeAtTravel <= rules.AgeLoad.SeniorAgeMax {
			ageLoad = base.Mul(rules.AgeLoad.SeniorMultiplier)
		}

		sportsLoad := decimal.Zero
		if sportsFlag {
			sportsLoad = base.Add(ageLoad).Mul(rules.SportsLoad.Multiplier)
		}

		travellerTotal := base.Add(ageLoad).Add(sportsLoad)
		subtotal = subtotal.Add(travellerTotal)

		breakdowns = append(breakdowns, TravellerBreakdown{
			Base:           base,
			AgeLoad:        ageLoad,
			SportsLoad:     sportsLoad,
			TravellerTotal: travellerTotal,
		})
	}

	discountRate := e.Catalog.GroupDiscountRate(len(travellers))
	groupDiscount := subtotal.Mul(discountRate)
	net := subtotal.Sub(groupDiscount)
	tax := net.Mul(rules.DefaultTaxRate)
	fees := rules.Fees.IssueFeeUSD.Add(rules.Fees.PaymentFeeUSD)
	gross := net.Add(tax).Add(fees)

	total := round(gross, rules.RoundingRule)

	return Quote{
		Currency:      row.Currency,
		CoverageLimit: row.CoverageLimit,
		Subtotal:      subtotal,
		GroupDiscount: groupDiscount,
		Net:           net,
		Tax:           tax,
		Fees:          fees,
		Total:         total,
		Travellers:    breakdowns,
	}, nil
}

func round(d decimal.Decimal, rule string) decimal.Decimal {
	if rule == "bankers" || rule == "banker" || rule == "banker's" {
		return d.RoundBank(2)
	}
	return d.Round(2)
}
