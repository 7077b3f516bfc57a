package tariff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadPackagedDefaults(t *testing.T) {
	cat, err := Load("../../configs/tariffs.csv", "../../configs/rules.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Rows) == 0 {
		t.Fatalf("expected tariff rows")
	}
	if cat.Rules.KBVersion != "v1.0" {
		t.Fatalf("kb_version = %q", cat.Rules.KBVersion)
	}

	row, ok := cat.Lookup("WORLDWIDE", "Silver", 7)
	if !ok {
		t.Fatalf("expected lookup hit for WORLDWIDE/Silver/7")
	}
	if !row.PremiumUSD.Equal(decimal.NewFromFloat(30.00)) {
		t.Errorf("premium = %s, want 30.00", row.PremiumUSD)
	}
}

func TestLookupMissingRow(t *testing.T) {
	cat, err := Load("../../configs/tariffs.csv", "../../configs/rules.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := cat.Lookup("WORLDWIDE", "Bronze", 7); ok {
		t.Fatalf("expected no lookup hit for unknown plan")
	}
}

func TestGroupDiscountRateTiers(t *testing.T) {
	cat, err := Load("../../configs/tariffs.csv", "../../configs/rules.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := []struct {
		n    int
		want string
	}{
		{1, "0"},
		{3, "0.02"},
		{8, "0.03"},
		{15, "0.05"},
		{100, "0.05"},
	}
	for _, c := range cases {
		got := cat.GroupDiscountRate(c.n)
		want, _ := decimal.NewFromString(c.want)
		if !got.Equal(want) {
			t.Errorf("GroupDiscountRate(%d) = %s, want %s", c.n, got, want)
		}
	}
}

func TestLoadMissingCSVColumn(t *testing.T) {
	dir := t.TempDir()
	badCSV := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(badCSV, []byte("scope,plan\nWORLDWIDE,Silver\n"), 0o644); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	if _, err := Load(badCSV, "../../configs/rules.yaml"); err == nil {
		t.Fatalf("expected error for csv missing required columns")
	}
}
