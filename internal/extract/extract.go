// Package extract pulls policy-request fields out of free-text email
// bodies with a fixed set of regular expressions. The rules are
// deliberately shallow — this mirrors how the inbound mail actually reads
// and is not meant to be a general-purpose NLP layer.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Extraction is the set of fields pulled from one email body. Every field
// is nullable; a zero value plus its companion "ok" flag mean "not found"
// except where a string's emptiness already means that (Direction, Scope,
// Plan, StartDate, EndDate).
type Extraction struct {
	IntentOK       bool
	Direction      string
	Scope          string
	Plan           string
	CoverageLimit  string
	Days           int
	HasDays        bool
	StartDate      string
	EndDate        string
	SportsCoverage bool
}

var (
	intentRe = regexp.MustCompile(`travel\s+insurance|insurance|polic(?:y|ies)|cover(?:age)?|issue|arrange|provide|insure|quote`)

	inboundRe  = regexp.MustCompile(`\binbound\b`)
	outboundRe = regexp.MustCompile(`\boutbound\b`)

	wwExclRe    = regexp.MustCompile(`worldwide excluding|world except|excl\.?\s*us\/usa\/canada|excluding us\/usa\/canada|excluding country of residence`)
	worldwideRe = regexp.MustCompile(`worldwide`)
	europeRe    = regexp.MustCompile(`europe|greece`)

	platinumRe  = regexp.MustCompile(`platinum`)
	goldPlusRe  = regexp.MustCompile(`gold plus`)
	goldRe      = regexp.MustCompile(`gold`)
	silverRe    = regexp.MustCompile(`silver`)
	coverageRe  = regexp.MustCompile(`\$?(\d{2,3}),(\d{3})\b`)

	daysRe   = regexp.MustCompile(`(\d+)\s*days?`)
	weeksRe  = regexp.MustCompile(`(\d+)\s*weeks?`)
	monthsRe = regexp.MustCompile(`(\d+)\s*months?`)

	isoDateRe  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dmyDateRe  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{4}`)
	ymdSlashRe = regexp.MustCompile(`\d{4}[/-]\d{1,2}[/-]\d{1,2}`)

	sportsRe = regexp.MustCompile(`sports?\s+coverage|sports?\s+activit\w*|motorcycle`)
)

// Extract scans body (case-folded) and returns whatever fields the rules
// recognize. It never returns an error; absent fields are simply zero.
func Extract(body string) Extraction {
	lower := strings.ToLower(body)

	var ex Extraction
	ex.IntentOK = intentRe.MatchString(lower)

	switch {
	case inboundRe.MatchString(lower):
		ex.Direction = "INBOUND"
		ex.Scope = "INBOUND"
	case outboundRe.MatchString(lower):
		ex.Direction = "OUTBOUND"
		ex.Scope = detectScope(lower)
	}

	ex.Plan = detectPlan(lower)
	ex.CoverageLimit = ""

	if ex.Plan == "" {
		if m := coverageRe.FindStringSubmatch(lower); m != nil {
			limit := m[1] + m[2]
			ex.CoverageLimit = limit
			switch limit {
			case "50000":
				ex.Plan = "Silver"
			case "100000":
				ex.Plan = "Gold"
			case "300000":
				ex.Plan = "Gold Plus"
			case "500000":
				ex.Plan = "Platinum"
			}
		}
	}

	if m := daysRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			ex.Days = n
			ex.HasDays = true
		}
	} else if m := weeksRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			ex.Days = n * 7
			ex.HasDays = true
		}
	} else if m := monthsRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			ex.Days = n * 30
			ex.HasDays = true
		}
	}

	start, end := detectDates(body)
	ex.StartDate = start
	ex.EndDate = end

	ex.SportsCoverage = sportsRe.MatchString(lower)

	return ex
}

func detectScope(lower string) string {
	switch {
	case wwExclRe.MatchString(lower):
		return "WW_EXCL_US_CA"
	case worldwideRe.MatchString(lower):
		return "WORLDWIDE"
	case europeRe.MatchString(lower):
		return "WW_EXCL_US_CA"
	default:
		return ""
	}
}

func detectPlan(lower string) string {
	switch {
	case platinumRe.MatchString(lower):
		return "Platinum"
	case goldPlusRe.MatchString(lower):
		return "Gold Plus"
	case goldRe.MatchString(lower):
		return "Gold"
	case silverRe.MatchString(lower):
		return "Silver"
	default:
		return ""
	}
}

func detectDates(body string) (start, end string) {
	if iso := isoDateRe.FindAllString(body, -1); len(iso) >= 2 {
		return iso[0], iso[1]
	}

	if dmy := dmyDateRe.FindAllString(body, -1); len(dmy) >= 2 {
		return dmy[0], dmy[1]
	}

	if ymd := ymdSlashRe.FindAllString(body, -1); len(ymd) >= 2 {
		return ymd[0], ymd[1]
	}

	return "", ""
}
