// Package authpw implements email/password authentication with bcrypt
// hashes and single-use password reset tokens.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"assettrack/api/internal/store"
)

var (
	// ErrEmailTaken signals that an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so responses never reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidResetToken signals an unknown, used or expired reset token.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

const resetTokenTTL = time.Hour

// UserStore is the persistence the service needs from the caller.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetPasswordReset(ctx context.Context, token string) (string, error)
	MarkPasswordResetUsed(ctx context.Context, token string) error
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// SignUp registers a new account. Validation messages are user-facing
// and localized; sentinel errors stay in English for callers to match.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.DisplayName)

	if err := validateCredentials(email, req.Password); err != nil {
		return store.User{}, err
	}
	switch {
	case name == "":
		return store.User{}, errors.New("Nome é obrigatório")
	case utf8.RuneCountInString(name) > 200:
		return store.User{}, errors.New("Nome muito longo")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           uuid.NewString(),
		DisplayName:  name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

type SignInRequest struct {
	Email    string
	Password string
}

func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset mints a reset token valid for one hour. Unknown
// emails yield an empty token and no error, so the endpoint cannot be
// used to probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", nil
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	if err := s.store.CreatePasswordReset(ctx, user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// UserByEmail looks the account up for notification purposes.
func (s *Service) UserByEmail(ctx context.Context, email string) (store.User, error) {
	return s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
}

type ResetPasswordRequest struct {
	Token       string
	NewPassword string
}

// ResetPassword exchanges a live reset token for a new password hash.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Token == "" {
		return ErrInvalidResetToken
	}
	switch {
	case utf8.RuneCountInString(req.NewPassword) < 6:
		return errors.New("Senha deve ter no mínimo 6 caracteres")
	case utf8.RuneCountInString(req.NewPassword) > 100:
		return errors.New("Senha muito longa")
	}

	userID, err := s.store.GetPasswordReset(ctx, req.Token)
	if err != nil {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	// The password is already changed at this point, so a failure to burn
	// the token is not surfaced to the user.
	_ = s.store.MarkPasswordResetUsed(ctx, req.Token)
	return nil
}

func validateCredentials(email, password string) error {
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return errors.New("Email inválido")
	case utf8.RuneCountInString(email) > 255:
		return errors.New("Email muito longo")
	case utf8.RuneCountInString(password) < 6:
		return errors.New("Senha deve ter no mínimo 6 caracteres")
	case utf8.RuneCountInString(password) > 100:
		return errors.New("Senha muito longa")
	}
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
