package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// GetUser retrieves a user by username.
func (s *GORMStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "username", username, models.ErrUserNotFound)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *GORMStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", models.CanonicalEmail(email)).
		First(&user).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// ListUsers returns all users.
func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return listAll[models.User](s.db, ctx)
}

// CreateUser creates a user, generating an ID when absent.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	user.CreatedAt = time.Now()
	return createWithID(s.db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUser)
}

// EnsureUser looks up a user by email and provisions one when absent, using
// the identity string as both username and email. This is the implicit
// user-provisioning side effect of granting access: a grant to someone who
// has never authenticated still creates their account.
func (s *GORMStore) EnsureUser(ctx context.Context, email string) (*models.User, bool, error) {
	email = models.CanonicalEmail(email)

	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, false, err
	}

	user = &models.User{
		ID:       uuid.New().String(),
		Username: email,
		Email:    email,
		Enabled:  true,
		Role:     string(models.RoleUser),
	}
	if _, err := s.CreateUser(ctx, user); err != nil {
		// Concurrent identical provisioning lost the race; fetch the winner.
		if errors.Is(err, models.ErrDuplicateUser) {
			existing, gerr := s.GetUserByEmail(ctx, email)
			if gerr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return user, true, nil
}

// UpdateLastLogin stamps the user's last login time.
func (s *GORMStore) UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Update("last_login", timestamp)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// ValidateCredentials checks a username/password pair against the stored
// bcrypt hash. Users provisioned implicitly by grants have no hash and can
// never authenticate locally.
func (s *GORMStore) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Enabled {
		return nil, models.ErrUserDisabled
	}

	if user.PasswordHash == "" || !models.VerifyPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}

// SetPassword replaces the user's password hash.
func (s *GORMStore) SetPassword(ctx context.Context, username, passwordHash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Update("password_hash", passwordHash)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// SetUserEnabled enables or disables a user account. Disabled users cannot
// authenticate but keep their permission records.
func (s *GORMStore) SetUserEnabled(ctx context.Context, username string, enabled bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Update("enabled", enabled)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user account. Permission records are intentionally
// left in place: they are keyed by email and re-attach if the user returns.
func (s *GORMStore) DeleteUser(ctx context.Context, username string) error {
	result := s.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&models.User{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// EnsureAdminUser creates the bootstrap admin account if it does not exist.
// Username, email and password hash come from configuration when set; a
// pre-configured hash takes precedence over password generation. Returns
// the generated password on first creation, empty string otherwise.
func (s *GORMStore) EnsureAdminUser(ctx context.Context, username, email, passwordHash string) (string, error) {
	if username == "" {
		username = models.AdminUsername
	}

	_, err := s.GetUser(ctx, username)
	if err == nil {
		return "", nil // Admin already exists
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return "", err
	}

	var password string
	if passwordHash == "" {
		password, err = models.GetOrGenerateAdminPassword()
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		passwordHash, err = models.HashPassword(password)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
	}

	admin := models.DefaultAdminUser(passwordHash)
	admin.Username = username
	if email != "" {
		admin.Email = models.CanonicalEmail(email)
	}
	if _, err := s.CreateUser(ctx, admin); err != nil {
		return "", fmt.Errorf("failed to create admin user: %w", err)
	}

	// Only report the password when it was generated here; an operator-set
	// password from the environment or config is already known to them.
	if password == "" || os.Getenv(models.EnvAdminInitialPassword) != "" {
		return "", nil
	}
	return password, nil
}
