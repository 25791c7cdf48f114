package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleStripeWebhook_MissingSignatureIsBadRequest(t *testing.T) {
	s := New(nil, "whsec_test", ":0", time.Second, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
	rec := httptest.NewRecorder()

	s.handleStripeWebhook(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStripeWebhook_RejectsNonPost(t *testing.T) {
	s := New(nil, "whsec_test", ":0", time.Second, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil)
	rec := httptest.NewRecorder()

	s.handleStripeWebhook(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := New(nil, "whsec_test", ":0", time.Second, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
