package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opPageServiceNew = "bookmarks.page_service.new"
	opPageCreate     = "bookmarks.page_create"
	opPageGet        = "bookmarks.page_get"
	opPageUpdate     = "bookmarks.page_update"
	opPageDelete     = "bookmarks.page_delete"
	opPageAttach     = "bookmarks.page_attach_folder"
	opPageDetach     = "bookmarks.page_detach_folder"
)

// PageInput carries the caller-editable fields of a bookmark.
type PageInput struct {
	Title string
	URL   string
	Memo  string
	Tags  []string
}

// PageServiceConfig bundles the dependencies of the page service.
type PageServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// PageService owns the bookmark lifecycle: creation with tag resolution,
// edits with tag-set replacement, deletion, and per-page folder membership.
type PageService struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewPageService constructs the page service.
func NewPageService(cfg PageServiceConfig) (*PageService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opPageServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opPageServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PageService{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     loggerOrDefault(cfg.Logger),
	}, nil
}

// Create stores a new bookmark, resolving its tag names inside the same
// transaction. Re-adding a url the user already saved fails with ErrConflict.
func (s *PageService) Create(ctx context.Context, userID UserID, input PageInput) (Bookmark, error) {
	title, pageURL, err := validatePageInput(input)
	if err != nil {
		return Bookmark{}, err
	}

	newID, err := s.idProvider.NewID()
	if err != nil {
		logServiceError(s.logger, opPageCreate, "id_generation_failed", err)
		return Bookmark{}, newServiceError(opPageCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	page := Page{
		ID:        newID,
		UserID:    userID.String(),
		Title:     title,
		URL:       pageURL,
		Memo:      input.Memo,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var bookmark Bookmark
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&page).Error; err != nil {
			return err
		}
		if err := attachTags(tx, s.idProvider, userID, page.ID, input.Tags); err != nil {
			return err
		}
		var err error
		bookmark, err = decoratePage(tx, page)
		return err
	})
	if txErr != nil {
		return Bookmark{}, s.wrapPageError(opPageCreate, txErr, userID, page.ID)
	}
	return bookmark, nil
}

// Get returns one bookmark with its denormalized tag and folder views.
func (s *PageService) Get(ctx context.Context, userID UserID, pageID EntityID) (Bookmark, error) {
	tx := s.db.WithContext(ctx)
	page, err := loadOwnedPage(tx, userID, pageID)
	if err != nil {
		return Bookmark{}, s.wrapPageError(opPageGet, err, userID, pageID.String())
	}
	bookmark, err := decoratePage(tx, page)
	if err != nil {
		return Bookmark{}, s.wrapPageError(opPageGet, err, userID, pageID.String())
	}
	return bookmark, nil
}

// Update rewrites the bookmark's fields and replaces its tag set: existing
// associations are dropped and the supplied names re-resolved, all in one
// transaction.
func (s *PageService) Update(ctx context.Context, userID UserID, pageID EntityID, input PageInput) (Bookmark, error) {
	title, pageURL, err := validatePageInput(input)
	if err != nil {
		return Bookmark{}, err
	}

	var bookmark Bookmark
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page, err := loadOwnedPage(tx, userID, pageID)
		if err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", page.ID).Delete(&PageTag{}).Error; err != nil {
			return err
		}
		if err := attachTags(tx, s.idProvider, userID, page.ID, input.Tags); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"title":      title,
			"url":        pageURL,
			"memo":       input.Memo,
			"updated_at": s.clock().UTC(),
		}
		if err := tx.Model(&Page{}).Where("id = ?", page.ID).Updates(updates).Error; err != nil {
			return err
		}
		var reloaded Page
		if err := tx.Where("id = ?", page.ID).Take(&reloaded).Error; err != nil {
			return err
		}
		bookmark, err = decoratePage(tx, reloaded)
		return err
	})
	if txErr != nil {
		return Bookmark{}, s.wrapPageError(opPageUpdate, txErr, userID, pageID.String())
	}
	return bookmark, nil
}

// Delete removes the bookmark along with its tag and folder association rows.
func (s *PageService) Delete(ctx context.Context, userID UserID, pageID EntityID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page, err := loadOwnedPage(tx, userID, pageID)
		if err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", page.ID).Delete(&PageTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", page.ID).Delete(&PageFolder{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", page.ID).Delete(&Page{}).Error
	})
	if txErr != nil {
		return s.wrapPageError(opPageDelete, txErr, userID, pageID.String())
	}
	return nil
}

// AttachFolder adds the page to one folder; attaching again is a no-op.
// Other folder memberships are untouched.
func (s *PageService) AttachFolder(ctx context.Context, userID UserID, pageID, folderID EntityID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page, err := loadOwnedPage(tx, userID, pageID)
		if err != nil {
			return err
		}
		folder, err := loadOwnedFolder(tx, userID, folderID)
		if err != nil {
			return err
		}
		association := PageFolder{PageID: page.ID, FolderID: folder.ID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&association).Error
	})
	if txErr != nil {
		return s.wrapPageError(opPageAttach, txErr, userID, pageID.String())
	}
	return nil
}

// DetachFolder removes exactly the (page, folder) association, leaving the
// page and its other memberships intact.
func (s *PageService) DetachFolder(ctx context.Context, userID UserID, pageID, folderID EntityID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page, err := loadOwnedPage(tx, userID, pageID)
		if err != nil {
			return err
		}
		return tx.Where("page_id = ? AND folder_id = ?", page.ID, folderID.String()).Delete(&PageFolder{}).Error
	})
	if txErr != nil {
		return s.wrapPageError(opPageDetach, txErr, userID, pageID.String())
	}
	return nil
}

// attachTags resolves each name and writes the association rows, skipping
// duplicates in the input.
func attachTags(tx *gorm.DB, ids IDProvider, userID UserID, pageID string, tagNames []string) error {
	names := dedupeTrimmed(tagNames)
	if len(names) == 0 {
		return nil
	}
	associations := make([]PageTag, 0, len(names))
	for _, name := range names {
		tag, err := resolveTag(tx, ids, userID, name)
		if err != nil {
			return err
		}
		associations = append(associations, PageTag{PageID: pageID, TagID: tag.ID})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&associations).Error
}

func decoratePage(tx *gorm.DB, page Page) (Bookmark, error) {
	bookmarks, err := decoratePages(tx, []Page{page})
	if err != nil {
		return Bookmark{}, err
	}
	return bookmarks[0], nil
}

func validatePageInput(input PageInput) (string, string, error) {
	title, err := validateName(input.Title)
	if err != nil {
		return "", "", fmt.Errorf("%w: title", ErrInvalidArgument)
	}
	pageURL, err := validatePageURL(input.URL)
	if err != nil {
		return "", "", err
	}
	return title, pageURL, nil
}

func (s *PageService) wrapPageError(operation string, err error, userID UserID, pageID string) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidEntityID):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%w: url already saved", ErrConflict)
	}
	logServiceError(s.logger, operation, "transaction_failed", err,
		zap.String("user_id", userID.String()),
		zap.String("page_id", pageID))
	return newServiceError(operation, "transaction_failed", err)
}
