package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestInsertCaseAndTraveller(t *testing.T) {
	withTempDatabase(t, func(ctx context.Context, db *sql.DB) {
		migrateToLatest(t, ctx, db)
		s := &Store{db: db}

		c := Case{
			TraceID:        uuid.NewString(),
			IdempotencyKey: "key-abc",
			MessageID:      "msg-1",
			ReceivedAt:     time.Now().UTC(),
			Route:          "success",
			IntentOK:       true,
			Direction:      "OUTBOUND",
			Scope:          "WORLDWIDE",
			Plan:           "Silver",
			Days:           7,
			PremiumBase:    decimal.NewFromFloat(30.00),
			Subtotal:       decimal.NewFromFloat(30.00),
			Total:          decimal.NewFromFloat(30.00),
			Currency:       "USD",
			KBVersion:      "v1.0",
		}

		var caseID string
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			id, created, err := s.InsertCase(ctx, tx, c)
			if err != nil {
				return err
			}
			if !created {
				t.Fatalf("expected case to be created")
			}
			caseID = id
			return s.InsertTraveller(ctx, tx, id, Traveller{
				FullName:       "ALI ALHAJ",
				PassportNumber: "AB1234567",
				IsSenior:       false,
			})
		})
		if err != nil {
			t.Fatalf("insert case+traveller: %v", err)
		}

		got, err := s.GetCase(ctx, caseID)
		if err != nil {
			t.Fatalf("get case: %v", err)
		}
		if got.IdempotencyKey != "key-abc" {
			t.Errorf("idempotency key = %q", got.IdempotencyKey)
		}
		if !got.Total.Equal(decimal.NewFromFloat(30.00)) {
			t.Errorf("total = %s", got.Total)
		}

		travellers, err := s.ListTravellers(ctx, caseID)
		if err != nil {
			t.Fatalf("list travellers: %v", err)
		}
		if len(travellers) != 1 || travellers[0].FullName != "ALI ALHAJ" {
			t.Fatalf("unexpected travellers: %+v", travellers)
		}
	})
}

func TestInsertCaseIdempotentReplay(t *testing.T) {
	withTempDatabase(t, func(ctx context.Context, db *sql.DB) {
		migrateToLatest(t, ctx, db)
		s := &Store{db: db}

		c := Case{
			TraceID:        uuid.NewString(),
			IdempotencyKey: "replay-key",
			MessageID:      "msg-2",
			ReceivedAt:     time.Now().UTC(),
			Route:          "success",
			Currency:       "USD",
			KBVersion:      "v1.0",
		}

		var firstID string
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			id, created, err := s.InsertCase(ctx, tx, c)
			if err != nil {
				return err
			}
			if !created {
				t.Fatalf("expected first insert to create a case")
			}
			firstID = id
			return nil
		})
		if err != nil {
			t.Fatalf("first insert: %v", err)
		}

		existing, found, err := s.FindByIdempotencyKey(ctx, "replay-key")
		if err != nil {
			t.Fatalf("find by idempotency key: %v", err)
		}
		if !found {
			t.Fatalf("expected to find existing case by idempotency key")
		}
		if existing.ID != firstID {
			t.Fatalf("expected existing case id %q, got %q", firstID, existing.ID)
		}

		err = s.WithTx(ctx, func(tx *sql.Tx) error {
			id, created, err := s.InsertCase(ctx, tx, Case{
				TraceID:        uuid.NewString(),
				IdempotencyKey: "replay-key",
				MessageID:      "msg-2-retry",
				ReceivedAt:     time.Now().UTC(),
				Route:          "success",
				Currency:       "USD",
				KBVersion:      "v1.0",
			})
			if err != nil {
				return err
			}
			if created {
				t.Fatalf("expected replay insert to be rejected by the unique constraint")
			}
			if id != "" {
				t.Fatalf("expected empty id for rejected replay, got %q", id)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("replay insert: %v", err)
		}
	})
}
