package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/gympro/internal/app/system/auth"
	"github.com/dalemusser/gympro/internal/app/system/token"
	"go.uber.org/zap"
)

const testSecret = "test-secret-that-is-long-enough-1234"

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[jti], nil
}

func newIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	iss, err := token.New(testSecret, "gympro", time.Hour)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return iss
}

func issue(t *testing.T, iss *token.Issuer, role string) (string, *token.Claims) {
	t.Helper()
	raw, claims, err := iss.Issue("65a1b2c3d4e5f60718293a4b", role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return raw, claims
}

// okHandler records whether it ran and which principal it saw.
func okHandler(ran *bool, seen **auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*ran = true
		if p, ok := auth.CurrentPrincipal(r); ok {
			*seen = p
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Message
}

func TestRequireToken_NoHeader_Returns401(t *testing.T) {
	a := auth.New(newIssuer(t), nil, zap.NewNop())
	var ran bool
	var seen *auth.Principal

	rec := httptest.NewRecorder()
	a.RequireToken(okHandler(&ran, &seen)).ServeHTTP(rec, httptest.NewRequest("GET", "/api/users", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != auth.MsgNoToken {
		t.Errorf("expected %q, got %q", auth.MsgNoToken, msg)
	}
	if ran {
		t.Error("handler must not run")
	}
}

func TestRequireToken_EmptyBearer_Returns401NoToken(t *testing.T) {
	a := auth.New(newIssuer(t), nil, zap.NewNop())
	var ran bool
	var seen *auth.Principal

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	a.RequireToken(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || decodeMessage(t, rec) != auth.MsgNoToken {
		t.Errorf("expected 401 %q, got %d", auth.MsgNoToken, rec.Code)
	}
}

func TestRequireToken_Garbage_Returns401Invalid(t *testing.T) {
	a := auth.New(newIssuer(t), nil, zap.NewNop())
	var ran bool
	var seen *auth.Principal

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	a.RequireToken(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != auth.MsgInvalidToken {
		t.Errorf("expected %q, got %q", auth.MsgInvalidToken, msg)
	}
	if ran {
		t.Error("handler must not run")
	}
}

func TestRequireToken_Expired_Returns401Invalid(t *testing.T) {
	short, err := token.New(testSecret, "gympro", time.Nanosecond)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	raw, _ := issue(t, short, "admin")
	time.Sleep(1100 * time.Millisecond)

	a := auth.New(newIssuer(t), nil, zap.NewNop())
	var ran bool
	var seen *auth.Principal

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	a.RequireToken(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || decodeMessage(t, rec) != auth.MsgInvalidToken {
		t.Errorf("expected 401 %q, got %d", auth.MsgInvalidToken, rec.Code)
	}
}

func TestRequireToken_Valid_AttachesPrincipal(t *testing.T) {
	iss := newIssuer(t)
	raw, claims := issue(t, iss, "admin")
	a := auth.New(iss, nil, zap.NewNop())
	var ran bool
	var seen *auth.Principal

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	a.RequireToken(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !ran {
		t.Fatalf("expected handler to run, got status %d", rec.Code)
	}
	if seen == nil {
		t.Fatal("expected principal in context")
	}
	if seen.SubjectID != claims.SubjectID() || seen.Role != "admin" || seen.TokenID != claims.TokenID() {
		t.Errorf("unexpected principal %+v", seen)
	}
	if !seen.IsAdmin() {
		t.Error("expected admin principal")
	}
}

func TestRequireToken_Revoked_Returns401Invalid(t *testing.T) {
	iss := newIssuer(t)
	raw, claims := issue(t, iss, "admin")
	a := auth.New(iss, &fakeRevocations{revoked: map[string]bool{claims.TokenID(): true}}, zap.NewNop())
	var ran bool
	var seen *auth.Principal

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	a.RequireToken(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || decodeMessage(t, rec) != auth.MsgInvalidToken {
		t.Errorf("expected 401 %q, got %d", auth.MsgInvalidToken, rec.Code)
	}
	if ran {
		t.Error("handler must not run")
	}
}

func TestRequireToken_DenylistDown_FailsClosed(t *testing.T) {
	iss := newIssuer(t)
	raw, _ := issue(t, iss, "admin")
	a := auth.New(iss, &fakeRevocations{err: errors.New("connection refused")}, zap.NewNop())
	var ran bool
	var seen *auth.Principal

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	a.RequireToken(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	if ran {
		t.Error("handler must not run")
	}
}

func TestOptionalToken(t *testing.T) {
	iss := newIssuer(t)
	raw, _ := issue(t, iss, "admin")
	a := auth.New(iss, nil, zap.NewNop())

	tests := []struct {
		name      string
		header    string
		wantAdmin bool
	}{
		{"no header", "", false},
		{"garbage", "Bearer nope", false},
		{"valid", "Bearer " + raw, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ran bool
			var seen *auth.Principal
			req := httptest.NewRequest("POST", "/api/auth/register", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			a.OptionalToken(okHandler(&ran, &seen)).ServeHTTP(rec, req)

			if !ran {
				t.Fatal("handler must always run")
			}
			if got := seen.IsAdmin(); got != tt.wantAdmin {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.wantAdmin)
			}
		})
	}
}

func TestRequireRole_NoPrincipal_Returns403(t *testing.T) {
	var ran bool
	var seen *auth.Principal
	rec := httptest.NewRecorder()
	auth.RequireRole("admin")(okHandler(&ran, &seen)).ServeHTTP(rec, httptest.NewRequest("GET", "/api/users", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if ran {
		t.Error("handler must not run")
	}
}

func TestRequireRole_WrongRole_Returns403(t *testing.T) {
	var ran bool
	var seen *auth.Principal
	req := auth.WithTestPrincipal(httptest.NewRequest("GET", "/api/users", nil), &auth.Principal{SubjectID: "u1", Role: "user"})
	rec := httptest.NewRecorder()
	auth.RequireRole("admin")(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != auth.MsgAdminOnly {
		t.Errorf("expected %q, got %q", auth.MsgAdminOnly, msg)
	}
	if ran {
		t.Error("handler must not run")
	}
}

func TestRequireRole_CaseInsensitive(t *testing.T) {
	var ran bool
	var seen *auth.Principal
	req := auth.WithTestPrincipal(httptest.NewRequest("GET", "/api/users", nil), &auth.Principal{SubjectID: "u1", Role: "ADMIN"})
	rec := httptest.NewRecorder()
	auth.RequireRole(" Admin ")(okHandler(&ran, &seen)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !ran {
		t.Errorf("expected handler to run, got status %d", rec.Code)
	}
}

func TestCurrentPrincipal_None(t *testing.T) {
	if _, ok := auth.CurrentPrincipal(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("expected no principal")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"abc", "abc", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := auth.BearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
