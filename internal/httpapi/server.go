// Package httpapi is the HTTP webhook ingress: signature verification,
// body-size limiting, and translating orchestrator.Result into the
// ACK/retry status code Stripe expects. Grounded on
// webhook_http.go (WebhookHTTPServer), generalized from a single
// ProcessStripeWebhook call to dispatch through internal/orchestrator.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/orchestrator"
)

const maxBodyBytes = 65536

// Server exposes /webhooks/stripe and /health.
type Server struct {
	orch *orchestrator.Orchestrator
	webhookSecret string
	requestTimeout time.Duration
	log *zap.Logger
	server *http.Server
}

func New(orch *orchestrator.Orchestrator, webhookSecret, addr string, requestTimeout time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{orch: orch, webhookSecret: webhookSecret, requestTimeout: requestTimeout, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/stripe", s.handleStripeWebhook)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr: addr,
		Handler: mux,
		ReadTimeout: 10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info("webhook http server starting", zap.String("addr", s.server.Addr))
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.Warn("webhook body too large or unreadable", zap.Error(err))
		http.Error(w, "request body too large", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.log.Warn("webhook signature verification failed", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	objectID := extractObjectID(event)
	res := s.orch.ProcessEvent(ctx, event.ID, string(event.Type), objectID, event.Data.Raw)

	if res.Err != nil {
		s.log.Warn("webhook processing returned a structured failure",
			zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)),
			zap.String("error_code", res.Err.Code), zap.Bool("terminal", res.Err.Terminal), zap.Error(res.Err.Err))
	}

	if !res.Ack {
		http.Error(w, "processing failed, retry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// extractObjectID pulls a best-effort object id out of the raw event data
// for ledger dedupe-key purposes; unmarshal
// failure just yields an empty id; the ledger still uses the event id as
// the primary key.
func extractObjectID(event stripe.Event) string {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return ""
	}
	return obj.ID
}
