package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"image-drop/internal/gallery"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantCode    int
		wantAllowed string
	}{
		{"no origin passes through", []string{"http://a.example"}, http.MethodGet, "", false, http.StatusOK, ""},
		{"wildcard", []string{"*"}, http.MethodGet, "http://any.example", false, http.StatusOK, "*"},
		{"listed origin", []string{"http://a.example/"}, http.MethodGet, "http://a.example", false, http.StatusOK, "http://a.example"},
		{"unlisted origin gets no header", []string{"http://a.example"}, http.MethodGet, "http://b.example", false, http.StatusOK, ""},
		{"preflight allowed", []string{"*"}, http.MethodOptions, "http://any.example", true, http.StatusNoContent, "*"},
		{"preflight rejected", []string{"http://a.example"}, http.MethodOptions, "http://b.example", true, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := corsMiddleware(tt.allowed)(okHandler())
			req := httptest.NewRequest(tt.method, "/upload", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Fatalf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	securityHeadersMiddleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "Referrer-Policy", "X-Frame-Options", "Content-Security-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad.gif", gallery.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: eof", gallery.ErrTransport), http.StatusBadRequest},
		{fmt.Errorf("%w: disk full", gallery.ErrStorageFailure), http.StatusInternalServerError},
		{fmt.Errorf("%w: gone", gallery.ErrStorageUnavailable), http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wrapped: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestLoggingResponseWriter_Unwrap(t *testing.T) {
	rr := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rr, status: http.StatusOK}

	// http.ResponseController reaches the recorder's Flush through Unwrap.
	if err := http.NewResponseController(lrw).Flush(); err != nil {
		t.Fatalf("flush through wrapper: %v", err)
	}
	if !rr.Flushed {
		t.Fatal("expected recorder to be flushed")
	}
}
