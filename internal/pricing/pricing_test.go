package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"travelguard/internal/tariff"
)

func loadTestCatalog(t *testing.T) tariff.Catalog {
	t.Helper()
	cat, err := tariff.Load("../../configs/tariffs.csv", "../../configs/rules.yaml")
	require.NoError(t, err)
	return cat
}

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestScenario1SilverWorldwide7DaysOneTravellerNoSports(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	q, err := e.Price("WORLDWIDE", "Silver", 7, []Traveller{{AgeAtTravel: 30}}, false)
	require.NoError(t, err)
	require.True(t, q.Subtotal.Equal(d("30.00")), "subtotal %s", q.Subtotal)
	require.True(t, q.GroupDiscount.Equal(d("0.00")))
	require.True(t, q.Net.Equal(d("30.00")))
	require.True(t, q.Tax.Equal(d("0.00")))
	require.True(t, q.Fees.Equal(d("0.00")))
	require.True(t, q.Total.Equal(d("30.00")), "total %s", q.Total)
}

func TestScenario2SeniorAgeLoad(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	q, err := e.Price("WORLDWIDE", "Silver", 7, []Traveller{{AgeAtTravel: 80, IsSenior: true}}, false)
	require.NoError(t, err)
	require.True(t, q.Travellers[0].AgeLoad.Equal(d("22.50")), "age_load %s", q.Travellers[0].AgeLoad)
	require.True(t, q.Total.Equal(d("52.50")), "total %s", q.Total)
}

func TestScenario3SportsLoad(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	q, err := e.Price("WORLDWIDE", "Silver", 7, []Traveller{{AgeAtTravel: 30}}, true)
	require.NoError(t, err)
	require.True(t, q.Travellers[0].SportsLoad.Equal(d("15.00")), "sports_load %s", q.Travellers[0].SportsLoad)
	require.True(t, q.Total.Equal(d("45.00")), "total %s", q.Total)
}

func TestScenario4GroupDiscountTier(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	travellers := make([]Traveller, 15)
	for i := range travellers {
		travellers[i] = Traveller{AgeAtTravel: 30}
	}
	q, err := e.Price("WORLDWIDE", "Silver", 7, travellers, false)
	require.NoError(t, err)
	require.True(t, q.Subtotal.Equal(d("450.00")), "subtotal %s", q.Subtotal)
	require.True(t, q.GroupDiscount.Equal(d("22.50")), "group_discount %s", q.GroupDiscount)
	require.True(t, q.Total.Equal(d("427.50")), "total %s", q.Total)
}

func TestScenario5ExclUSCAScope(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	q, err := e.Price("WW_EXCL_US_CA", "Silver", 7, []Traveller{{AgeAtTravel: 30}}, false)
	require.NoError(t, err)
	require.True(t, q.Total.Equal(d("25.00")), "total %s", q.Total)
}

func TestInvalidDaysOutOfRange(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	_, err := e.Price("WORLDWIDE", "Silver", 93, []Traveller{{AgeAtTravel: 30}}, false)
	require.ErrorIs(t, err, ErrInvalidDays)

	_, err = e.Price("WORLDWIDE", "Silver", 0, []Traveller{{AgeAtTravel: 30}}, false)
	require.ErrorIs(t, err, ErrInvalidDays)
}

func TestNoTariffForUnknownPlan(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	_, err := e.Price("WORLDWIDE", "Bronze", 7, []Traveller{{AgeAtTravel: 30}}, false)
	require.ErrorIs(t, err, ErrNoTariff)
}

// Property: total = round((subtotal - group_discount) * (1+tax_rate) + fees, 2)
func TestPropertyPricingIdentity(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))
	q, err := e.Price("WORLDWIDE", "Gold Plus", 20, []Traveller{{AgeAtTravel: 40}, {AgeAtTravel: 81, IsSenior: true}}, true)
	require.NoError(t, err)

	rate := e.Catalog.Rules.DefaultTaxRate
	expectedGross := q.Net.Add(q.Net.Mul(rate)).Add(q.Fees)
	expected := expectedGross.Round(2)
	require.True(t, q.Total.Equal(expected), "got %s want %s", q.Total, expected)
}

// Property: increasing days across a band boundary strictly changes the
// base premium; within a band it stays the same.
func TestPropertyMonotonicityAcrossBands(t *testing.T) {
	e := NewEngine(loadTestCatalog(t))

	withinBand1, err := e.Price("WORLDWIDE", "Silver", 1, []Traveller{{AgeAtTravel: 30}}, false)
	require.NoError(t, err)
	withinBand2, err := e.Price("WORLDWIDE", "Silver", 7, []Traveller{{AgeAtTravel: 30}}, false)
	require.NoError(t, err)
	require.True(t, withinBand1.Travellers[0].Base.Equal(withinBand2.Travellers[0].Base), "same band should have equal base")

	acrossBand, err := e.Price("WORLDWIDE", "Silver", 8, []Traveller{{AgeAtTravel: 30}}, false)
	require.NoError(t, err)
	require.False(t, withinBand2.Travellers[0].Base.Equal(acrossBand.Travellers[0].Base), "crossing a band boundary should change base premium")
}
