package httpapi

import (
	"travelguard/internal/extract"
	"travelguard/internal/ingest"
	"travelguard/internal/pricing"
)

func extractedJSON(ex extract.Extraction) map[string]any {
	return map[string]any{
		"intent_ok":       ex.IntentOK,
		"direction":       ex.Direction,
		"scope":           ex.Scope,
		"plan":            ex.Plan,
		"coverage_limit":  ex.CoverageLimit,
		"days":            ex.Days,
		"start_date":      ex.StartDate,
		"end_date":        ex.EndDate,
		"sports_coverage": ex.SportsCoverage,
	}
}

func pricingJSON(q pricing.Quote) map[string]any {
	return map[string]any{
		"currency":       q.Currency,
		"coverage_limit": q.CoverageLimit,
		"subtotal":       formatMoney(q.Subtotal),
		"group_discount": formatMoney(q.GroupDiscount),
		"net":            formatMoney(q.Net),
		"tax":            formatMoney(q.Tax),
		"fees":           formatMoney(q.Fees),
		"total":          formatMoney(q.Total),
	}
}

func travellersJSON(views []ingest.TravellerView) []map[string]any {
	out := make([]map[string]any, 0, len(views))
	for _, v := range views {
		out = append(out, map[string]any{
			"name":      v.Name,
			"passport":  v.Passport,
			"age":       v.Age,
			"is_senior": v.IsSenior,
		})
	}
	return out
}

func formatMoney(d interface{ StringFixed(int32) string }) string {
	return d.StringFixed(2)
}
