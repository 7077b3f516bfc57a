// Package tariff loads the immutable pricing catalog: a CSV tariff table
// keyed by scope/plan/day-band, and a YAML rules document carrying age and
// sports loads, group discount tiers, tax rate, fees, and the rounding
// rule. Both are read once at process startup.
package tariff

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Row is one tariff table entry: the base premium for a given scope, plan,
// and day band.
type Row struct {
	Scope         string
	Plan          string
	BandMin       int
	BandMax       int
	PremiumUSD    decimal.Decimal
	Currency      string
	CoverageLimit string
}

// AgeLoad describes the senior surcharge window and multiplier.
type AgeLoad struct {
	SeniorAgeMin     int
	SeniorAgeMax     int
	SeniorMultiplier decimal.Decimal
}

// SportsLoad describes the sports-coverage surcharge multiplier.
type SportsLoad struct {
	Multiplier decimal.Decimal
}

// GroupDiscountTier is one inclusive band on traveller count. MaxTravellers
// is nil for the last, unbounded tier.
type GroupDiscountTier struct {
	MinTravellers int
	MaxTravellers *int
	DiscountRate  decimal.Decimal
}

// Fees holds the flat per-policy fees.
type Fees struct {
	IssueFeeUSD   decimal.Decimal
	PaymentFeeUSD decimal.Decimal
}

// Rules is the pricing configuration loaded from YAML. Its fields hold
// decimal.Decimal, but decimal.Decimal implements neither yaml.Unmarshaler
// nor encoding.TextUnmarshaler, so yaml.v3 cannot decode a scalar node
// straight into one; loadRules decodes into the string-fielded rulesYAML
// shadow below and converts with decimal.NewFromString, the same way
// loadCSV already handles premium_usd.
type Rules struct {
	KBVersion          string
	AgeLoad            AgeLoad
	SportsLoad         SportsLoad
	GroupDiscountTiers []GroupDiscountTier
	DefaultTaxRate     decimal.Decimal
	Fees               Fees
	RoundingRule       string
}

type ageLoadYAML struct {
	SeniorAgeMin     int    `yaml:"senior_age_min"`
	SeniorAgeMax     int    `yaml:"senior_age_max"`
	SeniorMultiplier string `yaml:"senior_multiplier"`
}

type sportsLoadYAML struct {
	Multiplier string `yaml:"multiplier"`
}

type groupDiscountTierYAML struct {
	MinTravellers int    `yaml:"min_travellers"`
	MaxTravellers *int   `yaml:"max_travellers,omitempty"`
	DiscountRate  string `yaml:"discount_rate"`
}

type feesYAML struct {
	IssueFeeUSD   string `yaml:"issue_fee_usd"`
	PaymentFeeUSD string `yaml:"payment_fee_usd"`
}

type rulesYAML struct {
	KBVersion          string                  `yaml:"kb_version"`
	AgeLoad            ageLoadYAML             `yaml:"age_load"`
	SportsLoad         sportsLoadYAML          `yaml:"sports_load"`
	GroupDiscountTiers []groupDiscountTierYAML `yaml:"group_discount_tiers"`
	DefaultTaxRate     string                  `yaml:"default_tax_rate"`
	Fees               feesYAML                `yaml:"fees"`
	RoundingRule       string                  `yaml:"rounding_rule"`
}

// Catalog bundles the tariff table and rules document as loaded at
// startup. It is read-only for the lifetime of the process.
type Catalog struct {
	Rows  []Row
	Rules Rules
}

// Lookup finds the tariff row for scope/plan whose band contains days. It
// returns ok=false if no row matches.
func (c Catalog) Lookup(scope, plan string, days int) (Row, bool) {
	for _, r := range c.Rows {
		if r.Scope == scope && r.Plan == plan && days >= r.BandMin && days <= r.BandMax {
			return r, true
		}
	}
	return Row{}, false
}

// GroupDiscountRate returns the discount rate for n travellers, or zero if
// no tier matches.
func (c Catalog) GroupDiscountRate(n int) decimal.Decimal {
	for _, t := range c.Rules.GroupDiscountTiers {
		if n < t.MinTravellers {
			continue
		}
		if t.MaxTravellers != nil && n > *t.MaxTravellers {
			continue
		}
		return t.DiscountRate
	}
	return decimal.Zero
}

// Load reads the CSV tariff table and YAML rules document from disk.
func Load(csvPath, yamlPath string) (Catalog, error) {
	rows, err := loadCSV(csvPath)
	if err != nil {
		return Catalog{}, fmt.Errorf("tariff: load csv %s: %w", csvPath, err)
	}

	rules, err := loadRules(yamlPath)
	if err != nil {
		return Catalog{}, fmt.Errorf("tariff: load rules %s: %w", yamlPath, err)
	}

	return Catalog{Rows: rows, Rules: rules}, nil
}

func loadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty tariff file")
	}

	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"scope", "plan", "band_min", "band_max", "premium_usd", "currency", "coverage_limit"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("tariff csv missing column %q", required)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 0 || (len(rec) == 1 && rec[0] == "") {
			continue
		}
		bandMin, err := parseInt(rec[col["band_min"]])
		if err != nil {
			return nil, fmt.Errorf("band_min: %w", err)
		}
		bandMax, err := parseInt(rec[col["band_max"]])
		if err != nil {
			return nil, fmt.Errorf("band_max: %w", err)
		}
		premium, err := decimal.NewFromString(rec[col["premium_usd"]])
		if err != nil {
			return nil, fmt.Errorf("premium_usd: %w", err)
		}
		rows = append(rows, Row{
			Scope:         rec[col["scope"]],
			Plan:          rec[col["plan"]],
			BandMin:       bandMin,
			BandMax:       bandMax,
			PremiumUSD:    premium,
			Currency:      rec[col["currency"]],
			CoverageLimit: rec[col["coverage_limit"]],
		})
	}
	return rows, nil
}

func loadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, err
	}
	var raw rulesYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Rules{}, err
	}
	return convertRules(raw)
}

func convertRules(raw rulesYAML) (Rules, error) {
	seniorMultiplier, err := decimalField("age_load.senior_multiplier", raw.AgeLoad.SeniorMultiplier)
	if err != nil {
		return Rules{}, err
	}
	sportsMultiplier, err := decimalField("sports_load.multiplier", raw.SportsLoad.Multiplier)
	if err != nil {
		return Rules{}, err
	}
	taxRate, err := decimalField("default_tax_rate", raw.DefaultTaxRate)
	if err != nil {
		return Rules{}, err
	}
	issueFee, err := decimalField("fees.issue_fee_usd", raw.Fees.IssueFeeUSD)
	if err != nil {
		return Rules{}, err
	}
	paymentFee, err := decimalField("fees.payment_fee_usd", raw.Fees.PaymentFeeUSD)
	if err != nil {
		return Rules{}, err
	}

	tiers := make([]GroupDiscountTier, len(raw.GroupDiscountTiers))
	for i, t := range raw.GroupDiscountTiers {
		rate, err := decimalField(fmt.Sprintf("group_discount_tiers[%d].discount_rate", i), t.DiscountRate)
		if err != nil {
			return Rules{}, err
		}
		tiers[i] = GroupDiscountTier{
			MinTravellers: t.MinTravellers,
			MaxTravellers: t.MaxTravellers,
			DiscountRate:  rate,
		}
	}

	return Rules{
		KBVersion: raw.KBVersion,
		AgeLoad: AgeLoad{
			SeniorAgeMin:     raw.AgeLoad.SeniorAgeMin,
			SeniorAgeMax:     raw.AgeLoad.SeniorAgeMax,
			SeniorMultiplier: seniorMultiplier,
		},
		SportsLoad:         SportsLoad{Multiplier: sportsMultiplier},
		GroupDiscountTiers: tiers,
		DefaultTaxRate:     taxRate,
		Fees: Fees{
			IssueFeeUSD:   issueFee,
			PaymentFeeUSD: paymentFee,
		},
		RoundingRule: raw.RoundingRule,
	}, nil
}

func decimalField(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
