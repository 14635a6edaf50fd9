// internal/app/features/authapi/handler.go
package authapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/gympro/internal/app/system/auditlog"
	"github.com/dalemusser/gympro/internal/app/system/auth"
	"github.com/dalemusser/gympro/internal/app/system/authn"
	"github.com/dalemusser/gympro/internal/app/system/httpjson"
	"github.com/dalemusser/gympro/internal/app/system/ratelimit"
	"github.com/dalemusser/gympro/internal/app/system/timeouts"
	"github.com/dalemusser/gympro/internal/domain/models"
	"go.uber.org/zap"
)

const (
	msgRegistered     = "User created successfully"
	msgLoggedIn       = "Login successful"
	msgLoggedOut      = "Logged out successfully"
	msgBadBody        = "Invalid request body"
	msgTooManyLogins  = "Too many login attempts. Please try again later."
	msgDuplicateEmail = "User already exists"
	msgBadCredentials = "Invalid credentials"
	msgDeactivated    = "Account is deactivated"
	msgNotDashboard   = "Access denied. Only admin users can login to dashboard."
	msgRoleNotAllowed = "Only admins can assign the admin role"
	msgServerError    = "Server error"
)

type Handler struct {
	Auth     *authn.Service
	Limiter  *ratelimit.LoginLimiter // nil disables login throttling
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(svc *authn.Service, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:     svc,
		Limiter:  limiter,
		AuditLog: audit,
		Log:      logger,
	}
}

type registerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	MembershipType string `json:"membershipType"`
	Status         string `json:"status"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    models.UserView `json:"user"`
}

type meResponse struct {
	User models.UserView `json:"user"`
}

// HandleRegister serves POST /register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, msgBadBody)
		return
	}

	var actor *authn.Actor
	if p, ok := auth.CurrentPrincipal(r); ok {
		actor = &authn.Actor{ID: p.SubjectID, Role: p.Role}
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	res, err := h.Auth.Register(ctx, authn.RegisterInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Role:           req.Role,
		MembershipType: req.MembershipType,
		Status:         req.Status,
	}, actor)
	if err != nil {
		h.writeServiceError(w, "register", err)
		return
	}

	httpjson.JSON(w, http.StatusCreated, tokenResponse{
		Message: msgRegistered,
		Token:   res.Token,
		User:    res.User,
	})
}

// HandleLogin serves POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, msgBadBody)
		return
	}

	if h.Limiter != nil {
		if ok, wait := h.Limiter.Check(r, req.Email); !ok {
			h.AuditLog.LoginFailedRateLimit(r.Context(), req.Email)
			w.Header().Set("Retry-After", retryAfterSeconds(wait))
			httpjson.Error(w, http.StatusTooManyRequests, msgTooManyLogins)
			return
		}
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, "login", err)
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(req.Email)
	}

	httpjson.JSON(w, http.StatusOK, tokenResponse{
		Message: msgLoggedIn,
		Token:   res.Token,
		User:    res.User,
	})
}

// HandleLogout serves POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.CurrentPrincipal(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, auth.MsgNoToken)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	if err := h.Auth.Logout(ctx, p.SubjectID, p.TokenID, p.ExpiresAt); err != nil {
		h.writeServiceError(w, "logout", err)
		return
	}
	httpjson.JSON(w, http.StatusOK, httpjson.Message{Message: msgLoggedOut})
}

// ServeMe serves GET /me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.CurrentPrincipal(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, auth.MsgNoToken)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	view, err := h.Auth.Me(ctx, p.SubjectID)
	if err != nil {
		h.writeServiceError(w, "me", err)
		return
	}
	httpjson.JSON(w, http.StatusOK, meResponse{User: view})
}

// writeServiceError maps authn errors onto status codes and client
// messages. Anything unrecognized is logged and reported as a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var ve *authn.ValidationError
	switch {
	case errors.As(err, &ve):
		httpjson.Error(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, authn.ErrDuplicateEmail):
		httpjson.Error(w, http.StatusBadRequest, msgDuplicateEmail)
	case errors.Is(err, authn.ErrInvalidCredentials):
		httpjson.Error(w, http.StatusUnauthorized, msgBadCredentials)
	case errors.Is(err, authn.ErrAccountDeactivated):
		httpjson.Error(w, http.StatusUnauthorized, msgDeactivated)
	case errors.Is(err, authn.ErrAccessDenied):
		httpjson.Error(w, http.StatusForbidden, msgNotDashboard)
	case errors.Is(err, authn.ErrRoleNotAllowed):
		httpjson.Error(w, http.StatusForbidden, msgRoleNotAllowed)
	default:
		h.Log.Error("auth request failed", zap.String("op", op), zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, msgServerError)
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
