// internal/app/features/users/handler.go
package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	userstore "github.com/dalemusser/gympro/internal/app/store/users"
	"github.com/dalemusser/gympro/internal/app/system/auditlog"
	"github.com/dalemusser/gympro/internal/app/system/authz"
	"github.com/dalemusser/gympro/internal/app/system/httpjson"
	"github.com/dalemusser/gympro/internal/app/system/timeouts"
	"github.com/dalemusser/gympro/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	msgNotFound       = "User not found"
	msgDeleted        = "User deleted successfully"
	msgAdminProtected = "Cannot delete admin user"
	msgDuplicateEmail = "User already exists"
	msgBadBody        = "Invalid request body"
	msgServerError    = "Server error"

	maxListLimit = 500
)

type Handler struct {
	Users    *userstore.Store
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(store *userstore.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Users: store, AuditLog: audit, Log: logger}
}

// updateRequest lists the editable fields. Password and role are not
// editable here and are dropped by the decoder.
type updateRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	MembershipType *string `json:"membershipType"`
	Status         *string `json:"status"`
	IsActive       *bool   `json:"isActive"`
}

func (u updateRequest) changed() []string {
	var f []string
	if u.Name != nil {
		f = append(f, "name")
	}
	if u.Email != nil {
		f = append(f, "email")
	}
	if u.MembershipType != nil {
		f = append(f, "membershipType")
	}
	if u.Status != nil {
		f = append(f, "status")
	}
	if u.IsActive != nil {
		f = append(f, "isActive")
	}
	return f
}

// ServeList handles GET /. Optional ?q= matches name or email prefixes;
// ?limit= caps the result size.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	opts := userstore.ListOptions{Query: query.Search(r, "q")}
	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > maxListLimit {
			httpjson.Error(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		opts.Limit = n
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	list, err := h.Users.List(ctx, opts)
	if err != nil {
		h.serverError(w, "list users", err)
		return
	}

	views := make([]models.UserView, 0, len(list))
	for _, u := range list {
		views = append(views, u.View())
	}
	httpjson.JSON(w, http.StatusOK, views)
}

// ServeGet handles GET /{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	u, err := h.Users.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, "get user", err)
		return
	}
	httpjson.JSON(w, http.StatusOK, u.View())
}

// HandleUpdate handles PUT /{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, msgBadBody)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	u, err := h.Users.Update(ctx, chi.URLParam(r, "id"), userstore.Update{
		Name:           req.Name,
		Email:          req.Email,
		MembershipType: req.MembershipType,
		Status:         req.Status,
		IsActive:       req.IsActive,
	})
	if err != nil {
		h.writeStoreError(w, "update user", err)
		return
	}

	if _, actorID, ok := authz.PrincipalCtx(r); ok {
		h.AuditLog.UserUpdated(r.Context(), actorID, u.ID, strings.Join(req.changed(), ","))
	}
	httpjson.JSON(w, http.StatusOK, u.View())
}

// HandleDelete handles DELETE /{id}. Admin accounts are refused.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		h.writeStoreError(w, "delete user", err)
		return
	}

	if _, actorID, ok := authz.PrincipalCtx(r); ok {
		if target, err := primitive.ObjectIDFromHex(id); err == nil {
			h.AuditLog.UserDeleted(r.Context(), actorID, target)
		}
	}
	httpjson.JSON(w, http.StatusOK, httpjson.Message{Message: msgDeleted})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, userstore.ErrAdminProtected):
		httpjson.Error(w, http.StatusBadRequest, msgAdminProtected)
	case errors.Is(err, userstore.ErrDuplicateEmail):
		httpjson.Error(w, http.StatusBadRequest, msgDuplicateEmail)
	case errors.Is(err, userstore.ErrInvalidField):
		httpjson.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), userstore.ErrInvalidField.Error()+": "))
	default:
		h.serverError(w, op, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.Error(op+" failed", zap.Error(err))
	httpjson.Error(w, http.StatusInternalServerError, msgServerError)
}
