// Package ingest implements the webhook contract: idempotent persistence,
// field extraction, MRZ parsing, completeness gating, age derivation, and
// pricing, in the order the routing decision depends on.
package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"travelguard/internal/emailaddr"
	"travelguard/internal/extract"
	"travelguard/internal/mrz"
	"travelguard/internal/pricing"
	"travelguard/internal/queue"
	"travelguard/internal/store"
)

const idempotencyLookasideTTL = 10 * time.Minute

// Kind discriminates the shape of a Result.
type Kind string

const (
	KindDuplicate    Kind = "duplicate"
	KindIgnore       Kind = "ignore"
	KindMissing      Kind = "missing"
	KindSuccess      Kind = "success"
	KindPricingError Kind = "pricing_error"
)

// Request is the decoded POST /ingest body.
type Request struct {
	MessageID  string
	ThreadID   string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
	OCRResults []string
}

// TravellerView is one priced traveller in a success response.
type TravellerView struct {
	Name     string
	Passport string
	Age      int
	IsSenior bool
}

// Result is the outcome of one Ingest call. Which fields are populated
// depends on Kind.
type Result struct {
	Kind            Kind
	CaseID          string
	IdempotencyKey  string
	IntentOK        bool
	To              string
	Missing         []string
	OriginalSubject string
	ThreadID        string
	Extracted       extract.Extraction
	Pricing         pricing.Quote
	Travellers      []TravellerView
	Error           string
}

// Controller orchestrates one ingest end to end. Queue is optional: when
// set, a fast Redis lookaside is consulted before the Postgres read and
// populated after a successful insert. Postgres's unique constraint on
// idempotency_key remains the only thing correctness depends on.
type Controller struct {
	Store  *store.Store
	Engine pricing.Engine
	Queue  *queue.Queue
}

// NewController builds a Controller over the given store and pricing
// engine.
func NewController(st *store.Store, engine pricing.Engine) Controller {
	return Controller{Store: st, Engine: engine}
}

// Ingest runs the full contract for req and returns the routing result.
// Only unexpected failures (store errors) are returned as error; the
// documented dispositions (duplicate, ignore, missing, pricing failure)
// are all returned as a Result with no error.
func (c Controller) Ingest(ctx context.Context, req Request) (Result, error) {
	key := idempotencyKey(req.MessageID, req.Body)

	if c.Queue != nil {
		if caseID, hit, err := c.Queue.LookupIdempotencyKey(ctx, key); err == nil && hit {
			return Result{Kind: KindDuplicate, CaseID: caseID, IdempotencyKey: key}, nil
		}
	}

	if existing, found, err := c.Store.FindByIdempotencyKey(ctx, key); err != nil {
		return Result{}, err
	} else if found {
		return Result{Kind: KindDuplicate, CaseID: existing.ID, IdempotencyKey: key}, nil
	}

	ex := extract.Extract(req.Body)
	if !ex.IntentOK {
		return Result{Kind: KindIgnore, IntentOK: false}, nil
	}

	fromAddr := req.From
	if canonical, _, _, err := emailaddr.Canonicalize(req.From); err == nil {
		fromAddr = canonical
	}

	travellers := parseTravellers(req.OCRResults)

	missing := requiredFieldGaps(ex, len(travellers))

	traceID := uuid.NewString()
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	base := store.Case{
		TraceID:         traceID,
		IdempotencyKey:  key,
		MessageID:       req.MessageID,
		ThreadID:        req.ThreadID,
		OriginalSubject: req.Subject,
		To:              fromAddr,
		ReceivedAt:      receivedAt,
		IntentOK:        true,
		Direction:       ex.Direction,
		Scope:           ex.Scope,
		Plan:            ex.Plan,
		CoverageLimit:   ex.CoverageLimit,
		Days:            ex.Days,
		SportsCoverage:  ex.SportsCoverage,
		Currency:        "USD",
		KBVersion:       c.Engine.Catalog.Rules.KBVersion,
	}
	if ex.StartDate != "" {
		base.StartDate = sql.NullString{String: ex.StartDate, Valid: true}
	}
	if ex.EndDate != "" {
		base.EndDate = sql.NullString{String: ex.EndDate, Valid: true}
	}

	if len(missing) > 0 {
		base.Route = "missing"
		base.MissingFields = missing

		caseID, err := c.persist(ctx, base, travellers, nil)
		if err != nil {
			return Result{}, err
		}
		if caseID == "" {
			return c.reReadDuplicate(ctx, key)
		}

		return Result{
			Kind:            KindMissing,
			CaseID:          caseID,
			To:              fromAddr,
			Missing:         missing,
			OriginalSubject: req.Subject,
			ThreadID:        req.ThreadID,
		}, nil
	}

	priced := deriveAges(travellers, ex.StartDate)

	ageInputs := make([]pricing.Traveller, len(priced))
	for i, tv := range priced {
		ageInputs[i] = pricing.Traveller{AgeAtTravel: tv.age, IsSenior: tv.isSenior}
	}

	quote, err := c.Engine.Price(ex.Scope, ex.Plan, ex.Days, ageInputs, ex.SportsCoverage)
	if err != nil {
		base.Route = "missing"
		base.MissingFields = []string{"pricing_error"}

		caseID, perr := c.persist(ctx, base, travellers, nil)
		if perr != nil {
			return Result{}, perr
		}
		if caseID == "" {
			return c.reReadDuplicate(ctx, key)
		}

		return Result{Kind: KindPricingError, CaseID: caseID, Error: err.Error()}, nil
	}

	base.Route = "success"
	if len(quote.Travellers) > 0 {
		base.PremiumBase = quote.Travellers[0].Base
	}
	base.Subtotal = quote.Subtotal
	base.GroupDiscount = quote.GroupDiscount
	base.Net = quote.Net
	base.Tax = quote.Tax
	base.Fees = quote.Fees
	base.Total = quote.Total
	base.Currency = quote.Currency
	base.CoverageLimit = quote.CoverageLimit

	caseID, err := c.persist(ctx, base, travellers, priced)
	if err != nil {
		return Result{}, err
	}
	if caseID == "" {
		return c.reReadDuplicate(ctx, key)
	}

	views := make([]TravellerView, len(priced))
	for i, tv := range priced {
		views[i] = TravellerView{
			Name:     tv.traveller.FullName,
			Passport: tv.traveller.PassportNumber,
			Age:      tv.age,
			IsSenior: tv.isSenior,
		}
	}

	return Result{
		Kind:       KindSuccess,
		CaseID:     caseID,
		Extracted:  ex,
		Pricing:    quote,
		Travellers: views,
	}, nil
}

func (c Controller) reReadDuplicate(ctx context.Context, key string) (Result, error) {
	existing, found, err := c.Store.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, errors.New("ingest: idempotency race lost but no existing row found")
	}
	return Result{Kind: KindDuplicate, CaseID: existing.ID, IdempotencyKey: key}, nil
}

func (c Controller) persist(ctx context.Context, base store.Case, parsed []mrz.Record, priced []agedTraveller) (string, error) {
	var caseID string
	err := c.Store.WithTx(ctx, func(tx *sql.Tx) error {
		id, created, err := c.Store.InsertCase(ctx, tx, base)
		if err != nil {
			return err
		}
		if !created {
			caseID = ""
			return nil
		}
		caseID = id

		if priced != nil {
			for _, tv := range priced {
				if err := insertTravellerRecord(ctx, c.Store, tx, id, tv.traveller, tv.hasAge, tv.age); err != nil {
					return err
				}
			}
			return nil
		}

		for _, rec := range parsed {
			if err := insertTravellerRecord(ctx, c.Store, tx, id, rec, false, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if caseID != "" && c.Queue != nil {
		_ = c.Queue.SetIdempotencyKey(ctx, base.IdempotencyKey, caseID, idempotencyLookasideTTL)
	}
	return caseID, nil
}

func insertTravellerRecord(ctx context.Context, st *store.Store, tx *sql.Tx, caseID string, rec mrz.Record, hasAge bool, age int) error {
	mrzJSON, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	t := store.Traveller{
		FullName:       rec.FullName,
		PassportNumber: rec.PassportNumber,
		MRZData:        mrzJSON,
	}
	if rec.DateOfBirth != "" {
		t.DateOfBirth = sql.NullString{String: rec.DateOfBirth, Valid: true}
	}
	if hasAge {
		t.AgeAtTravel = sql.NullInt64{Int64: int64(age), Valid: true}
		t.IsSenior = 76 <= age && age <= 86
	}
	return st.InsertTraveller(ctx, tx, caseID, t)
}

type agedTraveller struct {
	traveller mrz.Record
	hasAge    bool
	age       int
	isSenior  bool
}

func parseTravellers(ocrResults []string) []mrz.Record {
	var out []mrz.Record
	for _, block := range ocrResults {
		if rec, ok := mrz.Parse(block); ok {
			out = append(out, rec)
		}
	}
	return out
}

// requiredFieldGaps implements the completeness check in the order the
// contract names: direction, (scope unless INBOUND), plan, days,
// start_date, then the traveller-identity fields when no traveller
// parsed.
func requiredFieldGaps(ex extract.Extraction, travellerCount int) []string {
	var missing []string

	if ex.Direction == "" {
		missing = append(missing, "direction")
	}
	if ex.Direction != "INBOUND" {
		if ex.Scope == "" {
			missing = append(missing, "scope")
		}
	}
	if ex.Plan == "" {
		missing = append(missing, "plan")
	}
	if !ex.HasDays {
		missing = append(missing, "days")
	}
	if ex.StartDate == "" {
		missing = append(missing, "start_date")
	}

	if travellerCount == 0 {
		missing = append(missing, "passport_numbers", "traveller_names")
	}

	return missing
}

// deriveAges computes age_at_travel for each traveller from the case
// start_date, using the leap-year-ignorant (days // 365) arithmetic the
// source system uses.
func deriveAges(travellers []mrz.Record, startDate string) []agedTraveller {
	out := make([]agedTraveller, len(travellers))
	start, startOK := parseISODate(startDate)

	for i, t := range travellers {
		out[i] = agedTraveller{traveller: t}
		if !startOK {
			continue
		}
		dob, dobOK := parseISODate(t.DateOfBirth)
		if !dobOK {
			continue
		}
		days := int(math.Floor(start.Sub(dob).Hours() / 24))
		age := days / 365
		out[i].hasAge = true
		out[i].age = age
		out[i].isSenior = 76 <= age && age <= 86
	}
	return out
}

func parseISODate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func idempotencyKey(messageID, body string) string {
	sum := sha256.Sum256([]byte(messageID + "|" + body))
	return hex.EncodeToString(sum[:])
}
