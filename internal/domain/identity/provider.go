package identity

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength matches the identity service's weak-password rule.
const MinPasswordLength = 6

// Credentials verifies and registers email/password accounts.
type Credentials interface {
	VerifyPassword(ctx context.Context, email, password string) (*Session, error)
	CreateUser(ctx context.Context, email, password, displayName string) (*Session, error)
}

// Federated runs the provider sign-in round trip (the "popup").
type Federated interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Session, error)
}

// UserStore persists password accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// PasswordProvider implements Credentials over a UserStore with bcrypt hashes.
type PasswordProvider struct {
	store    UserStore
	cost     int
	validate *validator.Validate
	// dummyHash keeps unknown-email lookups as slow as wrong passwords.
	dummyHash []byte
}

func NewPasswordProvider(store UserStore, cost int) *PasswordProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("dashboard-placeholder"), cost)
	return &PasswordProvider{
		store:     store,
		cost:      cost,
		validate:  validator.New(),
		dummyHash: dummy,
	}
}

type signUpInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func (p *PasswordProvider) VerifyPassword(ctx context.Context, email, password string) (*Session, error) {
	u, err := p.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
		return nil, newAuthError(CodeInvalidCredential, "Invalid email or password.")
	}
	if err != nil {
		return nil, internalError("Sign in", err)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, newAuthError(CodeInvalidCredential, "Invalid email or password.")
	}
	return u.session(), nil
}

func (p *PasswordProvider) CreateUser(ctx context.Context, email, password, displayName string) (*Session, error) {
	in := signUpInput{Email: normalizeEmail(email), Password: password}
	if err := p.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Password" {
			return nil, newAuthError(CodeWeakPassword, "Password should be at least 6 characters.")
		}
		return nil, newAuthError(CodeInvalidEmail, "The email address is badly formatted.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, internalError("Sign up", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.store.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, newAuthError(CodeEmailInUse, "The email address is already in use by another account.")
		}
		return nil, internalError("Sign up", err)
	}
	return u.session(), nil
}
