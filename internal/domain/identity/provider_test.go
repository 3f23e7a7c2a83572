package identity

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestProvider() *PasswordProvider {
	return NewPasswordProvider(NewMemoryUserStore(), bcrypt.MinCost)
}

func TestPasswordProvider_CreateAndVerify(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	s, err := p.CreateUser(ctx, " Jane.Doe@Example.com ", "secret1", "Jane Doe")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if s.Email != "jane.doe@example.com" || s.DisplayName != "Jane Doe" || s.UserID == "" {
		t.Errorf("unexpected session %+v", s)
	}

	got, err := p.VerifyPassword(ctx, "JANE.DOE@example.com", "secret1")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if got.UserID != s.UserID {
		t.Errorf("expected same user, got %s vs %s", got.UserID, s.UserID)
	}
}

func TestPasswordProvider_Errors(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()
	if _, err := p.CreateUser(ctx, "a@example.com", "secret1", "A B"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		code string
	}{
		{"wrong password", func() error {
			_, err := p.VerifyPassword(ctx, "a@example.com", "nope")
			return err
		}, CodeInvalidCredential},
		{"unknown email", func() error {
			_, err := p.VerifyPassword(ctx, "b@example.com", "secret1")
			return err
		}, CodeInvalidCredential},
		{"weak password", func() error {
			_, err := p.CreateUser(ctx, "c@example.com", "12345", "C D")
			return err
		}, CodeWeakPassword},
		{"invalid email", func() error {
			_, err := p.CreateUser(ctx, "not-an-email", "secret1", "C D")
			return err
		}, CodeInvalidEmail},
		{"email in use", func() error {
			_, err := p.CreateUser(ctx, "A@example.com", "secret1", "A B")
			return err
		}, CodeEmailInUse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var ae *AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("expected AuthError, got %T %v", err, err)
			}
			if ae.Code != tt.code {
				t.Errorf("code = %s, want %s", ae.Code, tt.code)
			}
			if ae.Message == "" {
				t.Error("expected a user-facing message")
			}
		})
	}
}

type failingStore struct{}

func (failingStore) Create(context.Context, *User) error { return errors.New("db down") }
func (failingStore) GetByEmail(context.Context, string) (*User, error) {
	return nil, errors.New("db down")
}

func TestPasswordProvider_StoreFailureIsInternal(t *testing.T) {
	p := NewPasswordProvider(failingStore{}, bcrypt.MinCost)
	_, err := p.VerifyPassword(context.Background(), "a@example.com", "secret1")
	if AuthErrorCode(err) != CodeInternal {
		t.Errorf("expected internal error code, got %q (%v)", AuthErrorCode(err), err)
	}
}
