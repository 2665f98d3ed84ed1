package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// mockPinger はrepository.Pingerのモック実装。
type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func TestHealthHandler_OK(t *testing.T) {
	h := NewHealthHandler(&mockPinger{}, nil)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(&mockPinger{
		pingFn: func(ctx context.Context) error { return errors.New("dial tcp: connection refused") },
	}, nil)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("ping error must not leak into the response")
	}
}

func TestHealthHandler_PingHasDeadline(t *testing.T) {
	var hasDeadline bool
	h := NewHealthHandler(&mockPinger{
		pingFn: func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		},
	}, nil)

	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if !hasDeadline {
		t.Error("ping context should carry a timeout")
	}
}
