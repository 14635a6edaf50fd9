// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/gympro/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PrincipalCtx returns the caller's role (lowercased), Mongo ObjectID and a
// found flag. Without a principal, or with a malformed subject id, it returns
// "anonymous", NilObjectID, false so ok=true always means a usable id.
func PrincipalCtx(r *http.Request) (role string, userID primitive.ObjectID, ok bool) {
	p, ok := auth.CurrentPrincipal(r)
	if !ok {
		return "anonymous", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(p.SubjectID)
	if err != nil {
		// Token signed by us with a bad subject; fail closed.
		return "anonymous", primitive.NilObjectID, false
	}
	return strings.ToLower(p.Role), userID, true
}
