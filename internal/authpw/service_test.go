package authpw

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assettrack/api/internal/store"
)

type resetEntry struct {
	userID    string
	expiresAt time.Time
	used      bool
}

// memUserStore keeps accounts and reset tokens in maps.
type memUserStore struct {
	byID    map[string]store.User
	byEmail map[string]string
	resets  map[string]resetEntry
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byID:    map[string]store.User{},
		byEmail: map[string]string{},
		resets:  map[string]resetEntry{},
	}
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	id, ok := m.byEmail[email]
	if !ok {
		return store.User{}, errors.New("user not found")
	}
	return m.byID[id], nil
}

func (m *memUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return store.User{}, errors.New("user not found")
	}
	return user, nil
}

func (m *memUserStore) CreateUser(_ context.Context, user store.User) error {
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *memUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	user, ok := m.byID[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.PasswordHash = passwordHash
	m.byID[userID] = user
	return nil
}

func (m *memUserStore) CreatePasswordReset(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = resetEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memUserStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	entry, ok := m.resets[token]
	if !ok || entry.used || time.Now().After(entry.expiresAt) {
		return "", errors.New("invalid or expired token")
	}
	return entry.userID, nil
}

func (m *memUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	entry, ok := m.resets[token]
	if ok {
		entry.used = true
		m.resets[token] = entry
	}
	return nil
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("successful sign up", func(t *testing.T) {
		svc := NewService(newMemUserStore())
		user, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "ana@example.com",
			Password:    "senha123",
			DisplayName: "Ana",
		})
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if user.ID == "" || user.Email != "ana@example.com" || user.DisplayName != "Ana" {
			t.Fatalf("unexpected user: %+v", user)
		}
		if user.PasswordHash == "senha123" {
			t.Fatal("password stored in plain text")
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		svc := NewService(newMemUserStore())
		req := SignUpRequest{Email: "ana@example.com", Password: "senha123", DisplayName: "Ana"}
		if _, err := svc.SignUp(ctx, req); err != nil {
			t.Fatalf("first SignUp failed: %v", err)
		}
		if _, err := svc.SignUp(ctx, req); !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("invalid fields rejected", func(t *testing.T) {
		svc := NewService(newMemUserStore())
		cases := []SignUpRequest{
			{Email: "", Password: "senha123", DisplayName: "Ana"},
			{Email: "not-an-email", Password: "senha123", DisplayName: "Ana"},
			{Email: strings.Repeat("a", 250) + "@example.com", Password: "senha123", DisplayName: "Ana"},
			{Email: "ana@example.com", Password: "curta", DisplayName: "Ana"},
			{Email: "ana@example.com", Password: strings.Repeat("p", 101), DisplayName: "Ana"},
			{Email: "ana@example.com", Password: "senha123", DisplayName: ""},
			{Email: "ana@example.com", Password: "senha123", DisplayName: strings.Repeat("n", 201)},
		}
		for i, req := range cases {
			if _, err := svc.SignUp(ctx, req); err == nil {
				t.Fatalf("case %d: expected validation error", i)
			}
		}
	})
}

func TestSignUpBoundsCountCharacters(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemUserStore())

	// 200 accented characters is 400 bytes but still within the name bound.
	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "ana@example.com",
		Password:    strings.Repeat("ç", 100),
		DisplayName: strings.Repeat("ã", 200),
	})
	if err != nil {
		t.Fatalf("SignUp with accented name/password failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected a created user")
	}

	// Three accented characters is six bytes but too short a password.
	if _, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "bia@example.com",
		Password:    strings.Repeat("ç", 3),
		DisplayName: "Bia",
	}); err == nil {
		t.Fatal("expected short accented password to be rejected")
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemUserStore())

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "ana@example.com", Password: "senha123", DisplayName: "Ana"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "ana@example.com", Password: "senha123"}); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "ana@example.com", Password: "errada"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "ninguem@example.com", Password: "senha123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemUserStore())

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "ana@example.com", Password: "senha123", DisplayName: "Ana"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	token, err := svc.RequestPasswordReset(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token for a known email")
	}

	// Unknown email must not reveal anything
	unknown, err := svc.RequestPasswordReset(ctx, "ninguem@example.com")
	if err != nil || unknown != "" {
		t.Fatalf("expected empty token without error for unknown email, got %q, %v", unknown, err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "novasenha"}); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "ana@example.com", Password: "novasenha"}); err != nil {
		t.Fatalf("SignIn with new password failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "ana@example.com", Password: "senha123"}); err == nil {
		t.Fatal("expected old password to stop working")
	}

	// Token is single-use
	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "outrasenha"}); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for reused token, got %v", err)
	}
}
