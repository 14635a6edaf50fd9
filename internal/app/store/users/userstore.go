package userstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dalemusser/gympro/internal/app/system/normalize"
	"github.com/dalemusser/gympro/internal/app/system/password"
	"github.com/dalemusser/gympro/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrAdminProtected is returned when deleting an admin account.
	ErrAdminProtected = errors.New("admin accounts cannot be deleted")
	// ErrInvalidField wraps every validation failure.
	ErrInvalidField = errors.New("invalid field")

	errBadRole       = fmt.Errorf(`%w: role must be "admin"|"user"`, ErrInvalidField)
	errBadMembership = fmt.Errorf(`%w: membershipType must be "Basic"|"Premium"|"VIP"`, ErrInvalidField)
	errBadStatus     = fmt.Errorf(`%w: status must be "Active"|"Inactive"|"Suspended"`, ErrInvalidField)
	errNameRequired  = fmt.Errorf("%w: name is required", ErrInvalidField)
	errEmailRequired = fmt.Errorf("%w: email is required", ErrInvalidField)
	errBadEmail      = fmt.Errorf("%w: email is invalid", ErrInvalidField)
	errShortPassword = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidField, password.MinLength)
)

// Hasher produces the stored form of a secret.
type Hasher interface {
	Hash(plain string) (string, error)
}

type Store struct {
	c      *mongo.Collection
	hasher Hasher
	now    func() time.Time
}

func New(db *mongo.Database, hasher Hasher) *Store {
	return &Store{c: db.Collection("users"), hasher: hasher, now: func() time.Time { return time.Now().UTC() }}
}

// NewUser holds the fields accepted when creating an account. Empty
// optional fields take their defaults: role user, Basic, Active, active.
type NewUser struct {
	Name           string
	Email          string
	Password       string
	Role           string
	MembershipType string
	Status         string
	IsActive       *bool
}

// Update holds the profile fields an administrator may change. Nil fields
// are left alone. Role and secret are deliberately absent.
type Update struct {
	Name           *string
	Email          *string
	MembershipType *string
	Status         *string
	IsActive       *bool
}

// ListOptions filters List.
type ListOptions struct {
	// Query matches a prefix of the folded name or of the email.
	Query string
	Limit int64
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by hex ObjectID. A malformed id reads as not found.
func (s *Store) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// GetByEmail looks up a user by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// Create normalizes and validates in, hashes the secret and inserts the
// record. A unique-index violation on email is reported as ErrDuplicateEmail.
func (s *Store) Create(ctx context.Context, in NewUser) (models.User, error) {
	u := models.User{
		ID:             primitive.NewObjectID(),
		Name:           normalize.Name(in.Name),
		Email:          normalize.Email(in.Email),
		Role:           normalize.Role(in.Role),
		MembershipType: normalize.MembershipType(in.MembershipType),
		Status:         normalize.Status(in.Status),
		IsActive:       true,
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.MembershipType == "" {
		u.MembershipType = models.MembershipBasic
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}

	switch {
	case u.Name == "":
		return models.User{}, errNameRequired
	case u.Email == "":
		return models.User{}, errEmailRequired
	case !normalize.ValidEmail(u.Email):
		return models.User{}, errBadEmail
	case len(in.Password) < password.MinLength:
		return models.User{}, errShortPassword
	case !models.IsValidRole(u.Role):
		return models.User{}, errBadRole
	case !models.IsValidMembershipType(u.MembershipType):
		return models.User{}, errBadMembership
	case !models.IsValidStatus(u.Status):
		return models.User{}, errBadStatus
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = hash
	u.NameCI = text.Fold(u.Name)

	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.LastVisit = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// List returns users newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.User, error) {
	filter := bson.M{}
	if opts.Query != "" {
		filter["$or"] = bson.A{
			bson.M{"name_ci": bson.M{"$regex": "^" + regexp.QuoteMeta(text.Fold(opts.Query))}},
			bson.M{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(normalize.Email(opts.Query))}},
		}
	}

	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		find.SetLimit(opts.Limit)
	}

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Update applies upd and returns the updated record.
func (s *Store) Update(ctx context.Context, id string, upd Update) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": s.now()}
	if upd.Name != nil {
		name := normalize.Name(*upd.Name)
		if name == "" {
			return nil, errNameRequired
		}
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if upd.Email != nil {
		email := normalize.Email(*upd.Email)
		if email == "" {
			return nil, errEmailRequired
		}
		if !normalize.ValidEmail(email) {
			return nil, errBadEmail
		}
		set["email"] = email
	}
	if upd.MembershipType != nil {
		mt := normalize.MembershipType(*upd.MembershipType)
		if !models.IsValidMembershipType(mt) {
			return nil, errBadMembership
		}
		set["membership_type"] = mt
	}
	if upd.Status != nil {
		st := normalize.Status(*upd.Status)
		if !models.IsValidStatus(st) {
			return nil, errBadStatus
		}
		set["status"] = st
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}

	var u models.User
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	switch {
	case err == nil:
		return &u, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case wafflemongo.IsDup(err):
		return nil, ErrDuplicateEmail
	default:
		return nil, err
	}
}

// SetPassword replaces the stored hash with one for secret.
func (s *Store) SetPassword(ctx context.Context, id, secret string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if len(secret) < password.MinLength {
		return errShortPassword
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return err
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    s.now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a non-admin user. The filter itself excludes admins so an
// account promoted concurrently is never removed.
func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": oid, "role": bson.M{"$ne": models.RoleAdmin}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 1 {
		return nil
	}

	n, err := s.c.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrAdminProtected
	}
	return ErrNotFound
}

// AdminExists reports whether any admin account exists.
func (s *Store) AdminExists(ctx context.Context) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"role": models.RoleAdmin}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TouchLastVisit records a visit by id at the current time.
func (s *Store) TouchLastVisit(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"last_visit": s.now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
