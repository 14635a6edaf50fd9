// Package authn implements account registration, credential login,
// logout and identity lookup on top of the user store, the password
// hasher and the token issuer.
package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	userstore "github.com/dalemusser/gympro/internal/app/store/users"
	"github.com/dalemusser/gympro/internal/app/system/auditlog"
	"github.com/dalemusser/gympro/internal/app/system/normalize"
	"github.com/dalemusser/gympro/internal/app/system/password"
	"github.com/dalemusser/gympro/internal/app/system/token"
	"github.com/dalemusser/gympro/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = userstore.ErrDuplicateEmail
	// ErrInvalidInput is matched by every *ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials covers both an unknown email and a wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated is returned at login for inactive accounts.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrAccessDenied is returned when a non-admin logs in to the dashboard.
	ErrAccessDenied = errors.New("only admin users can log in")
	// ErrRoleNotAllowed is returned when a non-admin requests the admin role.
	ErrRoleNotAllowed = errors.New("only admins can assign the admin role")
)

// ValidationError carries a client-facing description of bad input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Store is the subset of the user store the service needs.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, in userstore.NewUser) (models.User, error)
	TouchLastVisit(ctx context.Context, id string) error
}

// PasswordVerifier checks secrets against stored hashes.
type PasswordVerifier interface {
	Verify(plain, hash string) (bool, error)
	Burn(plain string)
}

// TokenIssuer mints bearer tokens.
type TokenIssuer interface {
	Issue(subjectID, role string) (string, *token.Claims, error)
}

// Revoker records logged-out token ids.
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
}

// Deps wires a Service. Revoker and Audit are optional.
type Deps struct {
	Store   Store
	Hasher  PasswordVerifier
	Tokens  TokenIssuer
	Revoker Revoker
	Audit   *auditlog.Logger
	Log     *zap.Logger
}

type Service struct {
	store   Store
	hasher  PasswordVerifier
	tokens  TokenIssuer
	revoker Revoker
	audit   *auditlog.Logger
	log     *zap.Logger
}

func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   d.Store,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		revoker: d.Revoker,
		audit:   d.Audit,
		log:     log,
	}
}

// Actor is an already-authenticated caller.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor holds the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && strings.EqualFold(a.Role, models.RoleAdmin)
}

// RegisterInput is a registration request.
type RegisterInput struct {
	Name           string
	Email          string
	Password       string
	Role           string
	MembershipType string
	Status         string
}

// Result is returned by Register and Login.
type Result struct {
	User   models.UserView
	Token  string
	Claims *token.Claims
}

// Register creates an account and signs a token for it. Public callers
// always get the user role; the admin role requires an admin actor.
func (s *Service) Register(ctx context.Context, in RegisterInput, actor *Actor) (*Result, error) {
	name := normalize.Name(in.Name)
	email := normalize.Email(in.Email)
	switch {
	case name == "":
		return nil, invalid("Name is required")
	case email == "":
		return nil, invalid("Email is required")
	case !normalize.ValidEmail(email):
		return nil, invalid("Email is invalid")
	case len(in.Password) < password.MinLength:
		return nil, invalid("Password must be at least %d characters", password.MinLength)
	}

	_, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, userstore.ErrNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	role := normalize.Role(in.Role)
	switch role {
	case "", models.RoleUser:
		role = models.RoleUser
	case models.RoleAdmin:
		if !actor.IsAdmin() {
			return nil, ErrRoleNotAllowed
		}
	default:
		return nil, invalid(`Role must be "admin" or "user"`)
	}

	u, err := s.store.Create(ctx, userstore.NewUser{
		Name:           name,
		Email:          email,
		Password:       in.Password,
		Role:           role,
		MembershipType: in.MembershipType,
		Status:         in.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, userstore.ErrDuplicateEmail):
			return nil, ErrDuplicateEmail
		case errors.Is(err, userstore.ErrInvalidField):
			return nil, invalid("%s", strings.TrimPrefix(err.Error(), userstore.ErrInvalidField.Error()+": "))
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}

	raw, claims, err := s.tokens.Issue(u.ID.Hex(), u.Role)
	if err != nil {
		return nil, err
	}

	var actorID *primitive.ObjectID
	if actor != nil {
		if id, err := primitive.ObjectIDFromHex(actor.ID); err == nil {
			actorID = &id
		}
	}
	s.audit.UserRegistered(ctx, u.ID, actorID, u.Email, u.Role)

	return &Result{User: u.View(), Token: raw, Claims: claims}, nil
}

// Login checks credentials and signs a token. Unknown email and wrong
// secret fail identically; deactivated and non-admin accounts fail with
// their own errors.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			s.hasher.Burn(password)
			s.audit.LoginFailedUserNotFound(ctx, email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if !u.IsActive {
		s.audit.LoginFailedDeactivated(ctx, u.ID, email)
		return nil, ErrAccountDeactivated
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.audit.LoginFailedWrongPassword(ctx, u.ID, email)
		return nil, ErrInvalidCredentials
	}

	if !u.IsAdmin() {
		s.audit.LoginFailedNotAdmin(ctx, u.ID, email)
		return nil, ErrAccessDenied
	}

	if err := s.store.TouchLastVisit(ctx, u.ID.Hex()); err != nil {
		s.log.Warn("last visit update failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	} else {
		u.LastVisit = time.Now().UTC()
	}

	raw, claims, err := s.tokens.Issue(u.ID.Hex(), u.Role)
	if err != nil {
		return nil, err
	}
	s.audit.LoginSuccess(ctx, u.ID, email)

	return &Result{User: u.View(), Token: raw, Claims: claims}, nil
}

// Logout revokes the token id until its expiry when a revoker is
// configured. Without one, tokens stay valid until they expire.
func (s *Service) Logout(ctx context.Context, subjectID, tokenID string, expiresAt time.Time) error {
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, tokenID, expiresAt); err != nil {
			return err
		}
	}
	s.audit.Logout(ctx, subjectID)
	return nil
}

// Revokes reports whether Logout actually invalidates tokens.
func (s *Service) Revokes() bool { return s.revoker != nil }

// Me returns the account a token was issued to.
func (s *Service) Me(ctx context.Context, subjectID string) (models.UserView, error) {
	u, err := s.store.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return models.UserView{}, ErrInvalidCredentials
		}
		return models.UserView{}, err
	}
	return u.View(), nil
}
