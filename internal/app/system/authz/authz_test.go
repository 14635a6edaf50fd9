package authz_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/gympro/internal/app/system/auth"
	"github.com/dalemusser/gympro/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func reqAs(id, role string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	return auth.WithTestPrincipal(req, &auth.Principal{SubjectID: id, Role: role})
}

func TestPrincipalCtx_NoPrincipal(t *testing.T) {
	role, id, ok := authz.PrincipalCtx(httptest.NewRequest("GET", "/test", nil))
	if ok || role != "anonymous" || id != primitive.NilObjectID {
		t.Errorf("got %q, %v, %v; want anonymous, nil id, false", role, id, ok)
	}
}

func TestPrincipalCtx_MalformedID_FailsClosed(t *testing.T) {
	_, _, ok := authz.PrincipalCtx(reqAs("not-an-object-id", "admin"))
	if ok {
		t.Error("expected ok=false for malformed subject id")
	}
}

func TestPrincipalCtx_LowercasesRole(t *testing.T) {
	id := primitive.NewObjectID()
	role, got, ok := authz.PrincipalCtx(reqAs(id.Hex(), "Admin"))
	if !ok || role != "admin" || got != id {
		t.Errorf("got %q, %v, %v; want admin, %v, true", role, got, ok, id)
	}
}
