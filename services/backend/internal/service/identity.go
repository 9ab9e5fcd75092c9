package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	api "github.com/Skotchmaster/storefront/internal/models"
	pkghash "github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/Skotchmaster/storefront/services/backend/internal/events"
	"github.com/Skotchmaster/storefront/services/backend/internal/models"
	"github.com/Skotchmaster/storefront/services/backend/internal/repo"
)

const minPasswordLen = 6

type IdentityService struct {
	Repo      *repo.GormRepo
	Events    events.Publisher
	JWTSecret []byte
	AccessTTL time.Duration
}

type LoginResult struct {
	AccessToken string
	AccessExp   time.Time
	Role        string
}

// Register creates an account. The first account becomes admin.
func (s *IdentityService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "identity.register")

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	pwHash, err := pkghash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	user := &models.User{Username: username, PasswordHash: pwHash, Role: string(api.RoleUser)}
	if err := s.Repo.CreateUser(ctx, user, string(api.RoleAdmin)); err != nil {
		if errors.Is(err, repo.ErrUserExists) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, err
	}

	publish(ctx, s.Events, events.TopicUsers, user.ID, events.New("user_registered",
		"userID", user.ID, "username", user.Username, "role", user.Role))
	return user, nil
}

func (s *IdentityService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.Repo.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
		}
		return nil, err
	}
	if !pkghash.CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	}

	exp := time.Now().Add(s.AccessTTL)
	tok, err := tokens.CreateAccessToken(s.JWTSecret, user.Role, user.ID, exp)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.TopicUsers, user.ID, events.New("user_logged_in",
		"userID", user.ID, "username", user.Username))
	return &LoginResult{AccessToken: tok, AccessExp: exp, Role: user.Role}, nil
}

// RoleOf satisfies the auth middleware lookup.
func (s *IdentityService) RoleOf(ctx context.Context, userID string) (string, error) {
	role, err := s.Repo.UserRole(ctx, userID)
	if err != nil {
		return "", notFound(err, middleware.ErrUnknownUser)
	}
	return role, nil
}

// AssignRole sets the role of the user named by id or username.
func (s *IdentityService) AssignRole(ctx context.Context, userRef string, role api.UserRole) error {
	if strings.TrimSpace(userRef) == "" {
		return fmt.Errorf("%w: user is required", ErrValidation)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	u, err := s.Repo.FindUser(ctx, userRef)
	if err != nil {
		return notFound(err, fmt.Errorf("%w: user %s", ErrNotFound, userRef))
	}
	if err := s.Repo.SetUserRole(ctx, u.ID, string(role)); err != nil {
		return err
	}
	publish(ctx, s.Events, events.TopicUsers, u.ID, events.New("role_assigned",
		"userID", u.ID, "role", string(role)))
	return nil
}

func (s *IdentityService) GetProfile(ctx context.Context, userID string) (api.Option[api.UserProfile], error) {
	p, err := s.Repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return api.None[api.UserProfile](), nil
		}
		return api.None[api.UserProfile](), err
	}
	return api.Some(p.API()), nil
}

// GetUserProfile reads another user's profile. Only the user and admins may.
func (s *IdentityService) GetUserProfile(ctx context.Context, callerID string, admin bool, userRef string) (api.Option[api.UserProfile], error) {
	u, err := s.Repo.FindUser(ctx, userRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if admin {
				return api.None[api.UserProfile](), nil
			}
			return api.None[api.UserProfile](), fmt.Errorf("%w: profile of another user", ErrForbidden)
		}
		return api.None[api.UserProfile](), err
	}
	if u.ID != callerID && !admin {
		return api.None[api.UserProfile](), fmt.Errorf("%w: profile of another user", ErrForbidden)
	}
	return s.GetProfile(ctx, u.ID)
}

func (s *IdentityService) SaveProfile(ctx context.Context, userID string, p api.UserProfile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	row := &models.Profile{UserID: userID, Name: p.Name, Address: p.Address, Phone: p.Phone}
	if err := s.Repo.SaveProfile(ctx, row); err != nil {
		return err
	}
	publish(ctx, s.Events, events.TopicUsers, userID, events.New("profile_saved", "userID", userID))
	return nil
}
