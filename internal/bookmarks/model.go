package bookmarks

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	maxIdentifierLength = 190
	maxNameLength       = 190
	maxTagNameLength    = 50
)

// VirtualUncategorizedID is the folder id the UI uses to address pages with
// zero folder associations. It never exists as a row and folder mutations
// against it are rejected.
const VirtualUncategorizedID = "uncategorized"

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("bookmarks: invalid user id")
	// ErrInvalidEntityID indicates that an entity identifier is empty or exceeds storage bounds.
	ErrInvalidEntityID = errors.New("bookmarks: invalid entity id")
)

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// EntityID represents a validated page, tag, or folder identifier.
type EntityID string

// NewEntityID validates raw input and returns an EntityID.
func NewEntityID(rawInput string) (EntityID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEntityID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidEntityID, maxIdentifierLength)
	}
	return EntityID(trimmed), nil
}

// String returns the underlying string identifier.
func (id EntityID) String() string {
	return string(id)
}

func validateName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrInvalidArgument)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidArgument, maxNameLength)
	}
	return trimmed, nil
}

func validateTagName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: tag name must not be empty", ErrInvalidArgument)
	}
	if len(trimmed) > maxTagNameLength {
		return "", fmt.Errorf("%w: tag name exceeds %d characters", ErrInvalidArgument, maxTagNameLength)
	}
	return trimmed, nil
}

func validatePageURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: url must not be empty", ErrInvalidArgument)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: malformed url", ErrInvalidArgument)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: url must be absolute http or https", ErrInvalidArgument)
	}
	return trimmed, nil
}

// ScopeKind discriminates folder scoping for bookmark queries.
type ScopeKind int

const (
	// ScopeKindAll applies no folder restriction.
	ScopeKindAll ScopeKind = iota
	// ScopeKindUnfoldered restricts to pages with zero folder associations.
	ScopeKindUnfoldered
	// ScopeKindFolder restricts to pages associated with one concrete folder.
	ScopeKindFolder
)

// FolderScope is the query-time representation of folder scoping. The virtual
// "uncategorized" folder exists only as the ScopeKindUnfoldered variant, never
// as stored data.
type FolderScope struct {
	Kind     ScopeKind
	FolderID string
}

// ScopeAll returns the unrestricted folder scope.
func ScopeAll() FolderScope {
	return FolderScope{Kind: ScopeKindAll}
}

// ScopeUnfoldered returns the scope matching pages without folder rows.
func ScopeUnfoldered() FolderScope {
	return FolderScope{Kind: ScopeKindUnfoldered}
}

// ScopeFolder returns the scope matching pages associated with folderID.
func ScopeFolder(folderID EntityID) FolderScope {
	return FolderScope{Kind: ScopeKindFolder, FolderID: folderID.String()}
}

// ParseFolderScope maps the raw folder request parameter onto a scope. An
// empty value means no restriction; the literal uncategorized id selects the
// virtual folder.
func ParseFolderScope(raw string) (FolderScope, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ScopeAll(), nil
	}
	if trimmed == VirtualUncategorizedID {
		return ScopeUnfoldered(), nil
	}
	folderID, err := NewEntityID(trimmed)
	if err != nil {
		return FolderScope{}, err
	}
	return ScopeFolder(folderID), nil
}

// Page models a stored bookmark.
type Page struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index;uniqueIndex:idx_pages_url_user,priority:2"`
	Title     string    `gorm:"column:title;size:512;not null"`
	URL       string    `gorm:"column:url;size:2048;not null;uniqueIndex:idx_pages_url_user,priority:1"`
	Memo      string    `gorm:"column:memo;type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Page) TableName() string {
	return "pages"
}

// Tag models a per-user free-form label.
type Tag struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index;uniqueIndex:idx_tags_name_user,priority:2"`
	Name      string    `gorm:"column:name;size:50;not null;uniqueIndex:idx_tags_name_user,priority:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Tag) TableName() string {
	return "tags"
}

// Folder models one node of a user's folder forest. A nil ParentID marks a
// root-level folder.
type Folder struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index"`
	Name      string    `gorm:"column:name;size:190;not null"`
	ParentID  *string   `gorm:"column:parent_id;size:190;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Folder) TableName() string {
	return "folders"
}

// PageFolder is the page/folder association row. A page may live in several
// folders at once, or in none.
type PageFolder struct {
	PageID   string `gorm:"column:page_id;primaryKey;size:190;not null"`
	FolderID string `gorm:"column:folder_id;primaryKey;size:190;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (PageFolder) TableName() string {
	return "page_folders"
}

// PageTag is the page/tag association row.
type PageTag struct {
	PageID string `gorm:"column:page_id;primaryKey;size:190;not null"`
	TagID  string `gorm:"column:tag_id;primaryKey;size:190;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (PageTag) TableName() string {
	return "page_tags"
}
