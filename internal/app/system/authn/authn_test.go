package authn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	userstore "github.com/dalemusser/gympro/internal/app/store/users"
	"github.com/dalemusser/gympro/internal/app/system/normalize"
	"github.com/dalemusser/gympro/internal/app/system/password"
	"github.com/dalemusser/gympro/internal/app/system/token"
	"github.com/dalemusser/gympro/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory user store with the same uniqueness guarantee
// as the unique email index.
type memStore struct {
	mu      sync.Mutex
	byEmail map[string]models.User
	hasher  *password.Hasher
	touched int
}

func newMemStore(h *password.Hasher) *memStore {
	return &memStore{byEmail: map[string]models.User{}, hasher: h}
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[normalize.Email(email)]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID.Hex() == id {
			u := u
			return &u, nil
		}
	}
	return nil, userstore.ErrNotFound
}

func (m *memStore) Create(_ context.Context, in userstore.NewUser) (models.User, error) {
	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, err
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	now := time.Now().UTC()
	u := models.User{
		ID:             primitive.NewObjectID(),
		Name:           in.Name,
		Email:          normalize.Email(in.Email),
		PasswordHash:   hash,
		Role:           role,
		MembershipType: models.MembershipBasic,
		Status:         models.StatusActive,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastVisit:      now,
	}
	if in.MembershipType != "" {
		if !models.IsValidMembershipType(in.MembershipType) {
			return models.User{}, fmt.Errorf("%w: membershipType must be one of Basic|Premium|VIP", userstore.ErrInvalidField)
		}
		u.MembershipType = in.MembershipType
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return models.User{}, userstore.ErrDuplicateEmail
	}
	m.byEmail[u.Email] = u
	return u, nil
}

func (m *memStore) TouchLastVisit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched++
	return nil
}

func (m *memStore) put(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEmail[u.Email] = u
}

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (r *memRevoker) Revoke(_ context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = until
	return nil
}

type fixture struct {
	svc    *Service
	store  *memStore
	hasher *password.Hasher
	tokens *token.Issuer
}

func newFixture(t *testing.T, revoker Revoker) *fixture {
	t.Helper()
	h := password.NewHasher(bcrypt.MinCost)
	iss, err := token.New("test-secret-that-is-long-enough-1234", "gympro", time.Hour)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	store := newMemStore(h)
	svc := New(Deps{Store: store, Hasher: h, Tokens: iss, Revoker: revoker})
	return &fixture{svc: svc, store: store, hasher: h, tokens: iss}
}

func (f *fixture) seed(t *testing.T, email, role string, active bool) models.User {
	t.Helper()
	hash, err := f.hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := models.User{
		ID:           primitive.NewObjectID(),
		Name:         "Seeded",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	f.store.put(u)
	return u
}

func adminActor() *Actor {
	return &Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin}
}

func TestRegister_PublicGetsUserRole(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "Jane", Email: "  Jane@Example.com ", Password: "secret1",
	}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Role != models.RoleUser {
		t.Errorf("expected role user, got %q", res.User.Role)
	}
	if res.User.Email != "jane@example.com" {
		t.Errorf("expected normalized email, got %q", res.User.Email)
	}

	claims, err := f.tokens.Verify(res.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.SubjectID() != res.User.ID || claims.Role != models.RoleUser {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestRegister_AdminRoleRequiresAdminActor(t *testing.T) {
	f := newFixture(t, nil)
	in := RegisterInput{Name: "Boss", Email: "boss@example.com", Password: "secret1", Role: "admin"}

	if _, err := f.svc.Register(context.Background(), in, nil); !errors.Is(err, ErrRoleNotAllowed) {
		t.Errorf("anonymous: expected ErrRoleNotAllowed, got %v", err)
	}
	member := &Actor{ID: primitive.NewObjectID().Hex(), Role: models.RoleUser}
	if _, err := f.svc.Register(context.Background(), in, member); !errors.Is(err, ErrRoleNotAllowed) {
		t.Errorf("member: expected ErrRoleNotAllowed, got %v", err)
	}

	res, err := f.svc.Register(context.Background(), in, adminActor())
	if err != nil {
		t.Fatalf("admin actor: %v", err)
	}
	if res.User.Role != models.RoleAdmin {
		t.Errorf("expected admin role, got %q", res.User.Role)
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"no name", RegisterInput{Email: "a@example.com", Password: "secret1"}},
		{"no email", RegisterInput{Name: "A", Password: "secret1"}},
		{"bad email", RegisterInput{Name: "A", Email: "nope", Password: "secret1"}},
		{"email without domain", RegisterInput{Name: "A", Email: "a@", Password: "secret1"}},
		{"bare at sign", RegisterInput{Name: "A", Email: "@", Password: "secret1"}},
		{"email with space", RegisterInput{Name: "A", Email: "a b@x.com", Password: "secret1"}},
		{"domain without dot", RegisterInput{Name: "A", Email: "x@y", Password: "secret1"}},
		{"two at signs", RegisterInput{Name: "A", Email: "a@b@x.com", Password: "secret1"}},
		{"short password", RegisterInput{Name: "A", Email: "a@example.com", Password: "12345"}},
		{"unknown role", RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1", Role: "owner"}},
		{"bad membership", RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1", MembershipType: "Gold"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.in, nil)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Msg == "" {
				t.Errorf("expected a ValidationError with a message, got %v", err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1"}, nil); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := f.svc.Register(ctx, RegisterInput{Name: "B", Email: "A@EXAMPLE.COM", Password: "secret2"}, nil)
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t, nil)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), RegisterInput{
				Name: fmt.Sprintf("R%d", i), Email: "race@example.com", Password: "secret1",
			}, nil)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateEmail):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one successful registration, got %d", ok)
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.seed(t, "admin@example.com", models.RoleAdmin, true)

	res, err := f.svc.Login(context.Background(), " ADMIN@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.ID != admin.ID.Hex() {
		t.Errorf("unexpected user %+v", res.User)
	}
	if res.Token == "" || res.Claims == nil || res.Claims.Role != models.RoleAdmin {
		t.Errorf("expected admin token, got %+v", res.Claims)
	}
	if f.store.touched != 1 {
		t.Errorf("expected last visit refresh, got %d", f.store.touched)
	}
}

func TestLogin_UnknownAndWrongPasswordAreIndistinguishable(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "admin@example.com", models.RoleAdmin, true)

	_, errUnknown := f.svc.Login(context.Background(), "ghost@example.com", "secret1")
	_, errWrong := f.svc.Login(context.Background(), "admin@example.com", "wrongpass")

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestLogin_Deactivated(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "admin@example.com", models.RoleAdmin, false)

	if _, err := f.svc.Login(context.Background(), "admin@example.com", "secret1"); !errors.Is(err, ErrAccountDeactivated) {
		t.Errorf("expected ErrAccountDeactivated, got %v", err)
	}
}

func TestLogin_NonAdminDenied(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "member@example.com", models.RoleUser, true)

	res, err := f.svc.Login(context.Background(), "member@example.com", "secret1")
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
	if res != nil {
		t.Error("no token may be issued to a non-admin")
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.Login(context.Background(), "", "secret1"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "a@example.com", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLogin_CorruptHashIsServerError(t *testing.T) {
	f := newFixture(t, nil)
	f.store.put(models.User{ID: primitive.NewObjectID(), Email: "bad@example.com", PasswordHash: "garbage", Role: models.RoleAdmin, IsActive: true})

	_, err := f.svc.Login(context.Background(), "bad@example.com", "secret1")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected an internal error, got %v", err)
	}
}

func TestLogout_RevokesUntilExpiry(t *testing.T) {
	rev := &memRevoker{revoked: map[string]time.Time{}}
	f := newFixture(t, rev)
	exp := time.Now().Add(time.Hour)

	if err := f.svc.Logout(context.Background(), primitive.NewObjectID().Hex(), "jti-1", exp); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got, ok := rev.revoked["jti-1"]; !ok || !got.Equal(exp) {
		t.Errorf("expected jti-1 revoked until %v, got %v (%v)", exp, got, ok)
	}
	if !f.svc.Revokes() {
		t.Error("expected Revokes() to be true")
	}
}

func TestLogout_WithoutRevokerIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.svc.Logout(context.Background(), "x", "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Errorf("Logout: %v", err)
	}
	if f.svc.Revokes() {
		t.Error("expected Revokes() to be false")
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t, nil)
	u := f.seed(t, "admin@example.com", models.RoleAdmin, true)

	view, err := f.svc.Me(context.Background(), u.ID.Hex())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if view.Email != "admin@example.com" {
		t.Errorf("unexpected view %+v", view)
	}

	if _, err := f.svc.Me(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for a vanished account, got %v", err)
	}
}
