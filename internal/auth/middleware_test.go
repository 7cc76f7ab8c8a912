package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuth(t *testing.T) {
	v, _ := NewVerifier(testSecret)
	m := NewMiddleware(v)
	token, _ := IssueToken(testSecret, "panel", []string{ScopeRead}, time.Hour)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"valid bearer", "Bearer " + token, "", http.StatusOK},
		{"query token", "", "?access_token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", "", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", "", http.StatusUnauthorized},
		{"invalid", "Bearer invalid-token", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			m.RequireAuth(okHandler)(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireScope(t *testing.T) {
	v, _ := NewVerifier(testSecret)
	m := NewMiddleware(v)
	readToken, _ := IssueToken(testSecret, "dashboard", []string{ScopeRead}, time.Hour)
	controlToken, _ := IssueToken(testSecret, "panel", []string{ScopeControl}, time.Hour)

	handler := m.RequireAuth(m.RequireScope(ScopeControl)(okHandler))

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"read token", readToken, http.StatusForbidden},
		{"control token", controlToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rr := httptest.NewRecorder()
			handler(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestDisabledMiddleware(t *testing.T) {
	m := NewMiddleware(nil)
	if m.Enabled() {
		t.Fatal("expected auth to be disabled")
	}

	req := httptest.NewRequest("POST", "/api", nil)
	rr := httptest.NewRecorder()
	m.RequireAuth(m.RequireScope(ScopeControl)(okHandler))(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}

	if err := m.CheckScope(req.Context(), ScopeControl); err != nil {
		t.Errorf("CheckScope() error = %v", err)
	}
}

func TestCheckScopeWithoutClaims(t *testing.T) {
	v, _ := NewVerifier(testSecret)
	m := NewMiddleware(v)

	req := httptest.NewRequest("POST", "/api", nil)
	if err := m.CheckScope(req.Context(), ScopeRead); !errors.Is(err, ErrForbidden) {
		t.Errorf("CheckScope() error = %v, want ErrForbidden", err)
	}
}
