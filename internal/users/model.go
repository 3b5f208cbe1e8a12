package users

import (
	"strings"
	"time"
)

// Account is a registered user. Password-based accounts carry a bcrypt hash;
// accounts created through an OAuth provider may leave it empty.
type Account struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;size:190;not null;default:''"`
	DisplayName  string    `gorm:"column:display_name;size:320"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

// Identity maps a provider-specific login onto an account.
type Identity struct {
	Provider   string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject    string    `gorm:"column:subject;primaryKey;size:190;not null"`
	AccountID  string    `gorm:"column:account_id;size:190;not null;index"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing provider identities.
func (Identity) TableName() string {
	return "account_identities"
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
