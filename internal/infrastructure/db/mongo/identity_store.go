package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

const (
	organizationsCollection = "organizations"
	usersCollection         = "users"

	indexOrganizationSlug = "organizations_slug_key"
	indexUserEmail        = "users_email_key"
	indexUserOrganization = "users_organization_id"
)

// notDeleted matches documents without a tombstone.
var notDeleted = bson.E{Key: "deleted_at", Value: nil}

// IdentityStore implements ports.IdentityStore using MongoDB.
//
// With transactions enabled (requires a replica set) registration runs in a
// multi-document transaction. Without them the organization insert is undone
// by a compensating delete when the owner insert fails.
type IdentityStore struct {
	client        *mongo.Client
	orgs          *mongo.Collection
	users         *mongo.Collection
	transactional bool
}

var _ ports.IdentityStore = (*IdentityStore)(nil)

func NewIdentityStore(db *mongo.Database, transactional bool) *IdentityStore {
	return &IdentityStore{
		client:        db.Client(),
		orgs:          db.Collection(organizationsCollection),
		users:         db.Collection(usersCollection),
		transactional: transactional,
	}
}

type mongoOrganization struct {
	ID                 string     `bson:"_id"`
	Name               string     `bson:"name"`
	Slug               string     `bson:"slug"`
	Description        string     `bson:"description,omitempty"`
	Email              string     `bson:"email,omitempty"`
	Phone              string     `bson:"phone,omitempty"`
	SubscriptionStatus string     `bson:"subscription_status"`
	TrialEndsAt        *time.Time `bson:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `bson:"subscription_ends_at,omitempty"`
	IsActive           bool       `bson:"is_active"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
	DeletedAt          *time.Time `bson:"deleted_at"`
	Version            int        `bson:"version"`
}

type mongoIdentity struct {
	ID              string     `bson:"_id"`
	OrganizationID  string     `bson:"organization_id"`
	FirstName       string     `bson:"first_name"`
	LastName        string     `bson:"last_name"`
	Email           string     `bson:"email"`
	PasswordHash    string     `bson:"password_hash"`
	Role            string     `bson:"role"`
	Status          string     `bson:"status"`
	Phone           string     `bson:"phone,omitempty"`
	LastLoginAt     *time.Time `bson:"last_login_at,omitempty"`
	EmailVerifiedAt *time.Time `bson:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
	DeletedAt       *time.Time `bson:"deleted_at"`
	Version         int        `bson:"version"`
}

// EnsureIndexes creates the unique and lookup indexes. Safe to call on every start.
func (s *IdentityStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.orgs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(indexOrganizationSlug),
	}); err != nil {
		return fmt.Errorf("create organizations index: %w", err)
	}

	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUserEmail),
		},
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}},
			Options: options.Index().SetName(indexUserOrganization),
		},
	}); err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}
	return nil
}

func (s *IdentityStore) FindIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return s.findIdentity(ctx, bson.D{{Key: "email", Value: email}, notDeleted})
}

func (s *IdentityStore) FindIdentityByID(ctx context.Context, id string) (*domain.Identity, error) {
	return s.findIdentity(ctx, bson.D{{Key: "_id", Value: id}, notDeleted})
}

func (s *IdentityStore) findIdentity(ctx context.Context, filter bson.D) (*domain.Identity, error) {
	var mi mongoIdentity
	if err := s.users.FindOne(ctx, filter).Decode(&mi); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	identity := mi.toDomain()

	var mo mongoOrganization
	err := s.orgs.FindOne(ctx, bson.D{{Key: "_id", Value: mi.OrganizationID}, notDeleted}).Decode(&mo)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		// Tombstoned tenant; callers treat a nil organization as inactive.
	case err != nil:
		return nil, fmt.Errorf("find identity organization: %w", err)
	default:
		identity.Organization = mo.toDomain()
	}
	return identity, nil
}

func (s *IdentityStore) FindOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var mo mongoOrganization
	if err := s.orgs.FindOne(ctx, bson.D{{Key: "slug", Value: slug}, notDeleted}).Decode(&mo); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return mo.toDomain(), nil
}

func (s *IdentityStore) CreateOrganizationAndOwner(ctx context.Context, org *domain.Organization, owner *domain.Identity) error {
	orgDoc := organizationFromDomain(org)
	ownerDoc := identityFromDomain(owner)

	if s.transactional {
		return s.createInTransaction(ctx, orgDoc, ownerDoc)
	}

	if _, err := s.orgs.InsertOne(ctx, orgDoc); err != nil {
		return mapWriteError("insert organization", err)
	}
	if _, err := s.users.InsertOne(ctx, ownerDoc); err != nil {
		if _, delErr := s.orgs.DeleteOne(ctx, bson.D{{Key: "_id", Value: orgDoc.ID}}); delErr != nil {
			return errors.Join(mapWriteError("insert owner", err), fmt.Errorf("undo organization insert: %w", delErr))
		}
		return mapWriteError("insert owner", err)
	}
	return nil
}

func (s *IdentityStore) createInTransaction(ctx context.Context, orgDoc mongoOrganization, ownerDoc mongoIdentity) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.orgs.InsertOne(sc, orgDoc); err != nil {
			return nil, mapWriteError("insert organization", err)
		}
		if _, err := s.users.InsertOne(sc, ownerDoc); err != nil {
			return nil, mapWriteError("insert owner", err)
		}
		return nil, nil
	})
	return err
}

func (s *IdentityStore) UpdateLastLogin(ctx context.Context, identityID string, at time.Time) error {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: identityID}, notDeleted},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "last_login_at", Value: at.UTC()}, {Key: "updated_at", Value: at.UTC()}}},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
		},
	)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (s *IdentityStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// mapWriteError turns unique index violations into domain conflicts.
func mapWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, indexOrganizationSlug):
			return domain.ErrDuplicateSlug
		case strings.Contains(msg, indexUserEmail):
			return domain.ErrDuplicateEmail
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func organizationFromDomain(o *domain.Organization) mongoOrganization {
	return mongoOrganization{
		ID:                 o.ID,
		Name:               o.Name,
		Slug:               o.Slug,
		Description:        o.Description,
		Email:              o.Email,
		Phone:              o.Phone,
		SubscriptionStatus: string(o.SubscriptionStatus),
		TrialEndsAt:        o.TrialEndsAt,
		SubscriptionEndsAt: o.SubscriptionEndsAt,
		IsActive:           o.IsActive,
		CreatedAt:          o.CreatedAt.UTC(),
		UpdatedAt:          o.UpdatedAt.UTC(),
		DeletedAt:          o.DeletedAt,
		Version:            o.Version,
	}
}

func (m mongoOrganization) toDomain() *domain.Organization {
	return &domain.Organization{
		ID:                 m.ID,
		Name:               m.Name,
		Slug:               m.Slug,
		Description:        m.Description,
		Email:              m.Email,
		Phone:              m.Phone,
		SubscriptionStatus: domain.SubscriptionStatus(m.SubscriptionStatus),
		TrialEndsAt:        m.TrialEndsAt,
		SubscriptionEndsAt: m.SubscriptionEndsAt,
		IsActive:           m.IsActive,
		Audit: domain.Audit{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			DeletedAt: m.DeletedAt,
			Version:   m.Version,
		},
	}
}

func identityFromDomain(i *domain.Identity) mongoIdentity {
	return mongoIdentity{
		ID:              i.ID,
		OrganizationID:  i.OrganizationID,
		FirstName:       i.FirstName,
		LastName:        i.LastName,
		Email:           i.Email,
		PasswordHash:    i.PasswordHash,
		Role:            string(i.Role),
		Status:          string(i.Status),
		Phone:           i.Phone,
		LastLoginAt:     i.LastLoginAt,
		EmailVerifiedAt: i.EmailVerifiedAt,
		CreatedAt:       i.CreatedAt.UTC(),
		UpdatedAt:       i.UpdatedAt.UTC(),
		DeletedAt:       i.DeletedAt,
		Version:         i.Version,
	}
}

func (m mongoIdentity) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:              m.ID,
		OrganizationID:  m.OrganizationID,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Email:           m.Email,
		PasswordHash:    m.PasswordHash,
		Role:            domain.Role(m.Role),
		Status:          domain.Status(m.Status),
		Phone:           m.Phone,
		LastLoginAt:     m.LastLoginAt,
		EmailVerifiedAt: m.EmailVerifiedAt,
		Audit: domain.Audit{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			DeletedAt: m.DeletedAt,
			Version:   m.Version,
		},
	}
}
