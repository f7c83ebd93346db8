package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"familybudget/internal/database"
	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/security"
	"familybudget/internal/validation"
)

// Profile is what /me returns: the account plus its family standing, if any
type Profile struct {
	User   *models.User          `json:"user"`
	Family *models.CurrentFamily `json:"family,omitempty"`
}

// AuthService handles registration, credential checks and token issuance
type AuthService struct {
	db          *database.DB
	users       *repository.UserRepository
	memberships *repository.MembershipRepository
	families    *repository.FamilyRepository
	tokens      *security.TokenManager
	logger      *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(db *database.DB, tokens *security.TokenManager, logger *logrus.Logger) *AuthService {
	return &AuthService{
		db:          db,
		users:       repository.NewUserRepository(db),
		memberships: repository.NewMembershipRepository(db),
		families:    repository.NewFamilyRepository(db),
		tokens:      tokens,
		logger:      logger,
	}
}

// Register creates a new password-based account
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validation.ValidateUsername(username); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, invalid(err)
	}

	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, email, passwordHash)
	if err != nil {
		return nil, conflictOnUnique(s.db.Dialect, err, ErrUsernameTaken)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Login checks a username and password and issues a token pair
func (s *AuthService) Login(ctx context.Context, username, password string) (*security.TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user.ID)
}

// Refresh exchanges a valid refresh token for a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*security.TokenPair, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	return s.issue(user.ID)
}

// Authenticate resolves a bearer access token to a user id
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (int64, error) {
	userID, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return 0, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrInvalidToken
	}
	return user.ID, nil
}

// Me returns the caller's account and family standing
func (s *AuthService) Me(ctx context.Context, callerID int64) (*Profile, error) {
	user, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	profile := &Profile{User: user}

	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return profile, nil
	}

	family, err := s.families.GetFamilyByID(ctx, membership.FamilyID)
	if err != nil {
		return nil, err
	}
	if family != nil {
		profile.Family = &models.CurrentFamily{
			Family:       *family,
			MembershipID: membership.ID,
			Role:         membership.Role,
		}
	}
	return profile, nil
}

// OAuthLogin authenticates or creates a user using an OAuth provider
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*security.TokenPair, error) {
	if provider == "" || subject == "" {
		return nil, fmt.Errorf("%w: missing oauth provider information", ErrUnauthenticated)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid(err)
	}

	user, err := s.users.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, err
	}

	if user == nil {
		existing, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
				return nil, fmt.Errorf("%w: email is linked to another provider", ErrConflict)
			}
			if err := s.users.LinkOAuth(ctx, existing.ID, provider, subject); err != nil {
				return nil, err
			}
			user = existing
		} else {
			user, err = s.createOAuthUser(ctx, provider, subject, email, name)
			if err != nil {
				return nil, err
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"provider": provider,
	}).Info("oauth login")

	return s.issue(user.ID)
}

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.@+\-]+`)

func (s *AuthService) createOAuthUser(ctx context.Context, provider, subject, email, name string) (*models.User, error) {
	base := usernameUnsafe.ReplaceAllString(strings.Split(email, "@")[0], "")
	if base == "" && validation.ValidateName(name) == nil {
		base = usernameUnsafe.ReplaceAllString(name, "")
	}
	if base == "" {
		base = provider
	}

	username := base
	for attempt := 0; attempt < 5; attempt++ {
		user, err := s.users.CreateOAuthUser(ctx, username, email, provider, subject)
		if err == nil {
			return user, nil
		}
		if !s.db.Dialect.IsUniqueViolation(err) {
			return nil, err
		}
		username = base + "-" + uuid.NewString()[:8]
	}
	return nil, errors.New("failed to allocate a username for oauth user")
}

func (s *AuthService) issue(userID int64) (*security.TokenPair, error) {
	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, nil
}
