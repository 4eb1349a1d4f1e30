package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingPassesThroughStatus(t *testing.T) {
	handler := Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestStatusRecorderCapturesWrites(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.WriteHeader(http.StatusTeapot)
	if rec.status != http.StatusTeapot {
		t.Fatalf("expected recorded status %d got %d", http.StatusTeapot, rec.status)
	}

	implicit := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, err := implicit.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if implicit.status != 0 {
		t.Fatalf("implicit write should leave status unset, got %d", implicit.status)
	}
}
