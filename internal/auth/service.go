package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

type Service struct {
	users       UserStore
	tokens      *Authenticator
	adminEmails []string
}

// NewService creates the account service. Accounts registered with one of
// adminEmails get the admin flag.
func NewService(users UserStore, tokens *Authenticator, adminEmails []string) *Service {
	normalized := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(e)))
	}
	return &Service{users: users, tokens: tokens, adminEmails: normalized}
}

func (s *Service) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		IsAdmin:      slices.Contains(s.adminEmails, email),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login checks credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(u)
}

func (s *Service) Me(ctx context.Context, id *domain.Identity) (*domain.User, error) {
	if id == nil {
		return nil, ErrInvalidToken
	}
	u, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Service) Verify(raw string) (*domain.Identity, error) {
	return s.tokens.Verify(raw)
}
