package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	providerGoogle    = "google"
	minPasswordLength = 8
)

var (
	// ErrInvalidEmail indicates the supplied email address cannot be parsed.
	ErrInvalidEmail = errors.New("users: invalid email address")
	// ErrWeakPassword indicates the password does not meet the minimum length.
	ErrWeakPassword = errors.New("users: password too short")
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials indicates the email/password pair did not match.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrInvalidIdentity indicates provider claims without a usable subject.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrAccountNotFound indicates no account exists for the id.
	ErrAccountNotFound = errors.New("users: account not found")

	errMissingDatabase   = errors.New("users: database connection required")
	errMissingIDProvider = errors.New("users: id provider required")
)

// IDProvider issues identifiers for newly created accounts.
type IDProvider interface {
	NewID() (string, error)
}

// GoogleProfile carries the verified claim data needed to resolve an account.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Service manages accounts and provider-specific identities.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
	}, nil
}

// Register creates a password-based account. The email is unique across all
// accounts; a second registration for the same address fails with
// ErrEmailTaken.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (Account, error) {
	normalized := normalizeEmail(email)
	if _, err := mail.ParseAddress(normalized); err != nil {
		return Account{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Account{}, fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	accountID, err := s.idProvider.NewID()
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:           accountID,
		Email:        normalized,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, err
	}
	return account, nil
}

// Authenticate checks an email/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if account.PasswordHash == "" {
		return Account{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// GetAccount returns the account for an authenticated id.
func (s *Service) GetAccount(ctx context.Context, accountID string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("id = ?", accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// ProfileUpdate carries the editable account fields.
type ProfileUpdate struct {
	Email       string
	DisplayName string
}

// UpdateProfile rewrites the account's email and display name. Moving onto an
// email another account already uses fails with ErrEmailTaken.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, update ProfileUpdate) (Account, error) {
	email := normalizeEmail(update.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Account{}, ErrInvalidEmail
	}
	displayName := strings.TrimSpace(update.DisplayName)

	var account Account
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", accountID).Take(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		account.Email = email
		account.DisplayName = displayName
		return tx.Model(&Account{}).Where("id = ?", accountID).Updates(map[string]interface{}{
			"email":        email,
			"display_name": displayName,
		}).Error
	})
	if txErr != nil {
		if isUniqueViolation(txErr) {
			return Account{}, ErrEmailTaken
		}
		return Account{}, txErr
	}
	return account, nil
}

// ResolveGoogleAccount returns the account behind a verified Google login,
// creating the identity mapping on first sign-in. When the Google email
// matches an existing password account the identity is linked to it instead
// of creating a second account.
func (s *Service) ResolveGoogleAccount(ctx context.Context, profile GoogleProfile) (Account, error) {
	subject := strings.TrimSpace(profile.Subject)
	if subject == "" {
		return Account{}, ErrInvalidIdentity
	}

	var account Account
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var identity Identity
		err := tx.Where("provider = ? AND subject = ?", providerGoogle, subject).
			Take(&identity).Error
		if err == nil {
			if err := tx.Where("id = ?", identity.AccountID).Take(&account).Error; err != nil {
				return err
			}
			return tx.Model(&Identity{}).
				Where("provider = ? AND subject = ?", providerGoogle, subject).
				Update("last_seen_at", s.now().UTC()).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		email := normalizeEmail(profile.Email)
		if email != "" {
			lookupErr := tx.Where("email = ?", email).Take(&account).Error
			if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return lookupErr
			}
			if lookupErr == nil {
				return s.createIdentity(tx, subject, account.ID)
			}
		}
		if email == "" {
			return ErrInvalidIdentity
		}

		accountID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		account = Account{
			ID:          accountID,
			Email:       email,
			DisplayName: strings.TrimSpace(profile.Name),
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		return s.createIdentity(tx, subject, account.ID)
	})
	if txErr != nil {
		return Account{}, txErr
	}
	return account, nil
}

func (s *Service) createIdentity(tx *gorm.DB, subject, accountID string) error {
	identity := Identity{
		Provider:   providerGoogle,
		Subject:    subject,
		AccountID:  accountID,
		LastSeenAt: s.now().UTC(),
	}
	return tx.Create(&identity).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
