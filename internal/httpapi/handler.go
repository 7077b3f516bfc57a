// Package httpapi is the thin HTTP transport over the Ingest Controller
// and Issuance Stub: decode JSON, call the domain logic, translate the
// typed result into the documented response shapes.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"travelguard/internal/ingest"
	"travelguard/internal/issuance"
	"travelguard/internal/store"
)

// Handler wires the Ingest Controller and Issuance Stub to chi routes.
type Handler struct {
	Controller    ingest.Controller
	Issuance      issuance.Stub
	Store         *store.Store
	WebhookSecret string
	Logger        zerolog.Logger
}

// Router builds the chi router for the service's two domain endpoints
// plus liveness/readiness probes.
func (h Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(h.logRequests)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)

	r.Group(func(r chi.Router) {
		r.Use(h.requireWebhookSecret)
		r.Post("/ingest", h.handleIngest)
		r.Post("/simulate-issuance", h.handleSimulateIssuance)
	})

	return r
}

func (h Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.Info().
			Str("trace_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
}

func (h Handler) requireWebhookSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Webhook-Secret") != h.WebhookSecret {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type ingestRequest struct {
	MessageID  string   `json:"message_id"`
	ThreadID   string   `json:"thread_id"`
	From       string   `json:"from"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	ReceivedAt string   `json:"received_at"`
	OCRResults []string `json:"ocr_results"`
}

func (h Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var in ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req := ingest.Request{
		MessageID:  in.MessageID,
		ThreadID:   in.ThreadID,
		From:       in.From,
		Subject:    in.Subject,
		Body:       in.Body,
		OCRResults: in.OCRResults,
	}
	if in.ReceivedAt != "" {
		if t, err := time.Parse(time.RFC3339, in.ReceivedAt); err == nil {
			req.ReceivedAt = t
		}
	}

	res, err := h.Controller.Ingest(r.Context(), req)
	if err != nil {
		h.Logger.Error().Err(err).Str("message_id", in.MessageID).Msg("ingest failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	switch res.Kind {
	case ingest.KindDuplicate:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "duplicate",
			"case_id":         res.CaseID,
			"idempotency_key": res.IdempotencyKey,
		})
	case ingest.KindIgnore:
		writeJSON(w, http.StatusOK, map[string]any{
			"route":     "ignore",
			"intent_ok": false,
		})
	case ingest.KindMissing:
		writeJSON(w, http.StatusOK, map[string]any{
			"route":            "missing",
			"case_id":          res.CaseID,
			"to":               res.To,
			"missing":          res.Missing,
			"original_subject": res.OriginalSubject,
			"thread_id":        res.ThreadID,
		})
	case ingest.KindPricingError:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"route":   "missing",
			"case_id": res.CaseID,
			"error":   res.Error,
		})
	case ingest.KindSuccess:
		writeJSON(w, http.StatusOK, map[string]any{
			"route":      "success",
			"case_id":    res.CaseID,
			"extracted":  extractedJSON(res.Extracted),
			"pricing":    pricingJSON(res.Pricing),
			"travellers": travellersJSON(res.Travellers),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unknown routing outcome"})
	}
}

type simulateIssuanceRequest struct {
	CaseID string `json:"case_id"`
}

func (h Handler) handleSimulateIssuance(w http.ResponseWriter, r *http.Request) {
	var in simulateIssuanceRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.CaseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	c, err := h.Store.GetCase(r.Context(), in.CaseID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "case not found"})
		return
	}

	result, err := h.Issuance.Simulate(r.Context(), issuance.CaseSnapshot{
		CaseID: c.ID,
		Plan:   c.Plan,
		Scope:  c.Scope,
		Days:   c.Days,
	})
	if err != nil {
		h.Logger.Error().Err(err).Str("case_id", in.CaseID).Msg("issuance simulation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "issuance simulation failed"})
		return
	}

	_ = h.Store.SetPolicyArtifacts(r.Context(), c.ID, result.ScreenshotPath, "")

	writeJSON(w, http.StatusOK, map[string]any{
		"screenshot_url":       result.ScreenshotPath,
		"policy_number":        result.PolicyNumber,
		"simulation_timestamp": result.Timestamp.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
