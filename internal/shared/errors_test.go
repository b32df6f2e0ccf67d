package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestProviderError(t *testing.T) {
	t.Run("matches ErrAPIRequest", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", &ProviderError{Op: "currently playing", StatusCode: http.StatusBadGateway})
		if !errors.Is(err, ErrAPIRequest) {
			t.Error("expected provider error to match ErrAPIRequest")
		}
	})

	t.Run("AsProviderError", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", &ProviderError{Op: "token", StatusCode: http.StatusBadRequest, Body: []byte(`{"error":"invalid_grant"}`)})
		pe, ok := AsProviderError(err)
		if !ok {
			t.Fatal("expected AsProviderError to succeed")
		}
		if pe.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", pe.StatusCode)
		}
		if !strings.Contains(pe.Error(), "invalid_grant") {
			t.Errorf("expected body in message, got %q", pe.Error())
		}

		if _, ok := AsProviderError(ErrNotAuthenticated); ok {
			t.Error("plain sentinel should not be a provider error")
		}
	})

	t.Run("message without body", func(t *testing.T) {
		err := &ProviderError{Op: "me", StatusCode: http.StatusUnauthorized}
		if !strings.Contains(err.Error(), "Unauthorized") {
			t.Errorf("expected status text in message, got %q", err.Error())
		}
	})
}
