package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/backoffice/backoffice/internal/shared"
)

// WelcomeMailer queues the welcome mail for a new account.
type WelcomeMailer interface {
	EnqueueWelcome(ctx context.Context, email, name string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	tokens     *TokenIssuer
	mailer     WelcomeMailer
	identities IdentityVerifier
	logger     *slog.Logger
	cost       int
}

// NewService constructs a new Service. mailer may be nil.
func NewService(repo Repository, tokens *TokenIssuer, mailer WelcomeMailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, mailer: mailer, logger: logger, cost: bcrypt.DefaultCost}
}

// WithIdentityVerifier enables external sign-in through verifier.
func (s *Service) WithIdentityVerifier(verifier IdentityVerifier) *Service {
	s.identities = verifier
	return s
}

// ExternalLoginEnabled reports whether an identity verifier is configured.
func (s *Service) ExternalLoginEnabled() bool {
	return s.identities != nil
}

// Register creates a password account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := normalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("a user with email %s already exists: %w", email, shared.ErrConflict)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
	})
	if err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.EnqueueWelcome(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn("enqueue welcome mail", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	return user, nil
}

// Login validates email/password credentials and issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("no user with that email: %w", shared.ErrNotFound)
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return s.loginResult(ctx, user)
}

// LoginWithExternal verifies a provider ID token and signs in the identity
// it asserts, creating the account on first use.
func (s *Service) LoginWithExternal(ctx context.Context, in ExternalLoginInput) (*LoginResult, error) {
	if s.identities == nil {
		return nil, fmt.Errorf("external sign-in is not configured: %w", shared.ErrUnauthorized)
	}
	raw := strings.TrimSpace(in.IDToken)
	if raw == "" {
		return nil, fmt.Errorf("id token is required: %w", shared.ErrUnauthorized)
	}
	identity, err := s.identities.Verify(ctx, raw)
	if err != nil {
		s.logger.Warn("reject external sign-in", slog.Any("error", err))
		return nil, fmt.Errorf("id token rejected: %w", shared.ErrUnauthorized)
	}
	if identity.Email == "" || !identity.EmailVerified {
		return nil, fmt.Errorf("id token has no verified email: %w", shared.ErrUnauthorized)
	}

	email := normalizeEmail(identity.Email)
	name := identity.Name
	if name == "" {
		name = email
	}
	user, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		user, err = s.repo.Create(ctx, User{Email: email, Name: name, Avatar: identity.Picture})
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.Avatar == "" && identity.Picture != "":
		user, err = s.repo.UpdateProfile(ctx, user.ID, user.Name, identity.Picture)
		if err != nil {
			return nil, err
		}
	}
	return s.loginResult(ctx, user)
}

// Profile returns the user with their memberships.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, user)
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, avatar := user.Name, user.Avatar
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if in.Avatar != nil {
		avatar = strings.TrimSpace(*in.Avatar)
	}
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", shared.ErrValidation)
	}
	updated, err := s.repo.UpdateProfile(ctx, userID, name, avatar)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, updated)
}

func (s *Service) loginResult(ctx context.Context, user *User) (*LoginResult, error) {
	token, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, err
	}
	profile, err := s.profile(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: token, UserData: *profile}, nil
}

func (s *Service) profile(ctx context.Context, user *User) (*Profile, error) {
	memberships, err := s.repo.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if memberships == nil {
		memberships = []Membership{}
	}
	return &Profile{User: *user, Organizations: memberships}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
