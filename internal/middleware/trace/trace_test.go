package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware()
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	tests := []struct {
		name     string
		path     string
		incoming string
		wantSame bool
	}{
		{name: "generated", path: "/"},
		{name: "kept", path: "/", incoming: "client-42_a", wantSame: true},
		{name: "rejected chars", path: "/", incoming: "bad id;drop"},
		{name: "too long", path: "/", incoming: strings.Repeat("a", maxIncomingIDLen+1)},
		{name: "failure", path: "/boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			got := rr.Header().Get(HeaderRequestID)
			if got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if tt.wantSame {
				if got != tt.incoming {
					t.Errorf("got %q, want incoming %q", got, tt.incoming)
				}
			} else if !strings.HasPrefix(got, "req_") || len(got) != 20 {
				t.Errorf("generated id %q has wrong shape", got)
			}
		})
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 5 || metrics.FailedRequests != 1 {
		t.Errorf("metrics = %+v, want 5 total 1 failed", metrics)
	}
}
