package mongobackend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/tokens"
	"github.com/google/uuid"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collections owned by the auth service.
const (
	UsersCollection       = "auth_users"
	RevocationsCollection = "auth_revocations"
)

type authUser struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"password_hash"`
	CreatedAt    time.Time  `bson:"created_at"`
	LastSignIn   *time.Time `bson:"last_sign_in_at,omitempty"`
}

type revocation struct {
	ID        string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Auth implements backend.AuthService with bcrypt hashes in auth_users and
// revoked token ids in auth_revocations.
type Auth struct {
	users   *mongo.Collection
	revoked *mongo.Collection
	issuer  *tokens.Issuer
	cost    int
}

// NewAuth builds the auth service. A zero cost uses bcrypt.DefaultCost.
func NewAuth(db *mongo.Database, issuer *tokens.Issuer, cost int) *Auth {
	return &Auth{
		users:   db.Collection(UsersCollection),
		revoked: db.Collection(RevocationsCollection),
		issuer:  issuer,
		cost:    cost,
	}
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := tokens.HashPassword(password, a.cost)
	if err != nil {
		return nil, err
	}
	u := authUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := a.users.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, backend.ErrEmailTaken
		}
		return nil, err
	}
	return a.session(u)
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u authUser
	if err := a.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, backend.ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := tokens.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, backend.ErrInvalidCredentials
	}
	now := time.Now().UTC()
	if _, err := a.users.UpdateByID(ctx, u.ID, bson.M{"$set": bson.M{"last_sign_in_at": now}}); err != nil {
		return nil, err
	}
	return a.session(u)
}

func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	claims, err := a.issuer.Verify(accessToken)
	if err != nil {
		return backend.ErrInvalidToken
	}
	rev := revocation{ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}
	if _, err := a.revoked.InsertOne(ctx, rev); err != nil && !wafflemongo.IsDup(err) {
		return err
	}
	return nil
}

func (a *Auth) User(ctx context.Context, accessToken string) (backend.AuthUser, error) {
	claims, err := a.issuer.Verify(accessToken)
	if err != nil {
		return backend.AuthUser{}, backend.ErrInvalidToken
	}
	n, err := a.revoked.CountDocuments(ctx, bson.M{"_id": claims.ID})
	if err != nil {
		return backend.AuthUser{}, err
	}
	if n > 0 {
		return backend.AuthUser{}, backend.ErrInvalidToken
	}
	return backend.AuthUser{ID: claims.Subject, Email: claims.Email}, nil
}

func (a *Auth) session(u authUser) (*backend.Session, error) {
	tok, _, exp, err := a.issuer.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &backend.Session{AccessToken: tok, ExpiresAt: exp, User: backend.AuthUser{ID: u.ID, Email: u.Email}}, nil
}
