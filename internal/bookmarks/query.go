package bookmarks

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MatchMode selects how multiple include tags combine.
type MatchMode string

const (
	// MatchAll requires every include tag to be present (AND).
	MatchAll MatchMode = "AND"
	// MatchAny requires at least one include tag to be present (OR).
	MatchAny MatchMode = "OR"
)

// ParseMatchMode maps the raw mode parameter onto a MatchMode; anything other
// than an explicit OR means AND.
func ParseMatchMode(raw string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(raw), string(MatchAny)) {
		return MatchAny
	}
	return MatchAll
}

// Filter describes one bookmark query. Zero-valued fields apply no
// restriction; an empty filter returns all of the user's bookmarks.
type Filter struct {
	Scope       FolderScope
	Query       string
	IncludeTags []string
	ExcludeTags []string
	Mode        MatchMode
}

// TagView is the denormalized tag entry attached to query results.
type TagView struct {
	ID   string
	Name string
}

// FolderView is the denormalized folder entry attached to query results.
type FolderView struct {
	ID   string
	Name string
}

// Bookmark is a page together with its flattened tag and folder views.
type Bookmark struct {
	ID        string
	Title     string
	URL       string
	Memo      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Tags      []TagView
	Folders   []FolderView
}

const (
	opQueryServiceNew = "bookmarks.query_service.new"
	opQueryList       = "bookmarks.query_list"
	opQueryCount      = "bookmarks.query_count"
)

// QueryServiceConfig bundles the dependencies of the bookmark query engine.
type QueryServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// QueryService resolves composite bookmark queries over folder scope,
// free-text match, and boolean tag sets.
type QueryService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewQueryService constructs the bookmark query engine.
func NewQueryService(cfg QueryServiceConfig) (*QueryService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opQueryServiceNew, "missing_database", errMissingDatabase)
	}
	return &QueryService{
		db:     cfg.Database,
		logger: loggerOrDefault(cfg.Logger),
	}, nil
}

// List returns the user's bookmarks matching the filter, newest first.
//
// Predicates are applied conjunctively in a fixed order: user scope, folder
// scope, keyword match, excluded tags, included tags. Exclusion wins over
// inclusion: a page carrying any excluded tag never appears, even when it
// would match the include set. AND mode issues one existence condition per
// include tag, since a single set-membership test cannot express conjunction
// over a many-to-many relation.
func (s *QueryService) List(ctx context.Context, userID UserID, filter Filter) ([]Bookmark, error) {
	query := s.db.WithContext(ctx).Model(&Page{}).Where("pages.user_id = ?", userID.String())

	switch filter.Scope.Kind {
	case ScopeKindFolder:
		query = query.Where(
			"EXISTS (SELECT 1 FROM page_folders WHERE page_folders.page_id = pages.id AND page_folders.folder_id = ?)",
			filter.Scope.FolderID)
	case ScopeKindUnfoldered:
		query = query.Where("NOT EXISTS (SELECT 1 FROM page_folders WHERE page_folders.page_id = pages.id)")
	}

	if keyword := strings.TrimSpace(filter.Query); keyword != "" {
		pattern := "%" + strings.ToLower(keyword) + "%"
		query = query.Where(
			"(LOWER(pages.title) LIKE ? OR LOWER(pages.memo) LIKE ? OR LOWER(pages.url) LIKE ?)",
			pattern, pattern, pattern)
	}

	excludeTags := dedupeTrimmed(filter.ExcludeTags)
	if len(excludeTags) > 0 {
		query = query.Where(
			"NOT EXISTS (SELECT 1 FROM page_tags JOIN tags ON tags.id = page_tags.tag_id WHERE page_tags.page_id = pages.id AND tags.name IN ?)",
			excludeTags)
	}

	includeTags := dedupeTrimmed(filter.IncludeTags)
	if len(includeTags) > 0 {
		if filter.Mode == MatchAny {
			query = query.Where(
				"EXISTS (SELECT 1 FROM page_tags JOIN tags ON tags.id = page_tags.tag_id WHERE page_tags.page_id = pages.id AND tags.name IN ?)",
				includeTags)
		} else {
			for _, tagName := range includeTags {
				query = query.Where(
					"EXISTS (SELECT 1 FROM page_tags JOIN tags ON tags.id = page_tags.tag_id WHERE page_tags.page_id = pages.id AND tags.name = ?)",
					tagName)
			}
		}
	}

	var pages []Page
	if err := query.Order("pages.created_at DESC").Find(&pages).Error; err != nil {
		logServiceError(s.logger, opQueryList, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opQueryList, "query_failed", err)
	}

	bookmarks, err := decoratePages(s.db.WithContext(ctx), pages)
	if err != nil {
		logServiceError(s.logger, opQueryList, "decorate_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opQueryList, "decorate_failed", err)
	}
	return bookmarks, nil
}

// Count returns how many pages the user has stored.
func (s *QueryService) Count(ctx context.Context, userID UserID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Page{}).Where("user_id = ?", userID.String()).Count(&count).Error
	if err != nil {
		logServiceError(s.logger, opQueryCount, "count_failed", err, zap.String("user_id", userID.String()))
		return 0, newServiceError(opQueryCount, "count_failed", err)
	}
	return count, nil
}

// decoratePages flattens join rows into per-page tag and folder views.
func decoratePages(tx *gorm.DB, pages []Page) ([]Bookmark, error) {
	pageIDs := make([]string, 0, len(pages))
	for _, page := range pages {
		pageIDs = append(pageIDs, page.ID)
	}

	tagViews, err := loadTagViews(tx, pageIDs)
	if err != nil {
		return nil, err
	}
	folderViews, err := loadFolderViews(tx, pageIDs)
	if err != nil {
		return nil, err
	}

	bookmarks := make([]Bookmark, 0, len(pages))
	for _, page := range pages {
		bookmarks = append(bookmarks, Bookmark{
			ID:        page.ID,
			Title:     page.Title,
			URL:       page.URL,
			Memo:      page.Memo,
			CreatedAt: page.CreatedAt,
			UpdatedAt: page.UpdatedAt,
			Tags:      tagViews[page.ID],
			Folders:   folderViews[page.ID],
		})
	}
	return bookmarks, nil
}

// dedupeTrimmed drops empty entries and duplicates while preserving order.
func dedupeTrimmed(names []string) []string {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
