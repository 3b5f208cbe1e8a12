package bookmarks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opTagServiceNew = "bookmarks.tag_service.new"
	opTagResolve    = "bookmarks.tag_resolve"
	opTagRename     = "bookmarks.tag_rename"
	opTagDelete     = "bookmarks.tag_delete"
	opTagList       = "bookmarks.tag_list"
)

// TagServiceConfig bundles the dependencies of the tag resolution service.
type TagServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Logger     *zap.Logger
}

// TagService maps free-form tag names onto stable per-user tag identities.
type TagService struct {
	db         *gorm.DB
	idProvider IDProvider
	logger     *zap.Logger
}

// NewTagService constructs the tag resolution service.
func NewTagService(cfg TagServiceConfig) (*TagService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opTagServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opTagServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	return &TagService{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		logger:     loggerOrDefault(cfg.Logger),
	}, nil
}

// Resolve returns the tag row for (name, user), creating it when absent.
// Resolution is idempotent and duplicate-safe under concurrent first use.
func (s *TagService) Resolve(ctx context.Context, userID UserID, name string) (Tag, error) {
	tag, err := resolveTag(s.db.WithContext(ctx), s.idProvider, userID, name)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			return Tag{}, err
		}
		logServiceError(s.logger, opTagResolve, "resolve_failed", err, zap.String("user_id", userID.String()))
		return Tag{}, newServiceError(opTagResolve, "resolve_failed", err)
	}
	return tag, nil
}

// Rename changes a tag's name in place, affecting every page referencing it.
// Renaming onto an existing name of the same user fails with ErrConflict.
func (s *TagService) Rename(ctx context.Context, userID UserID, tagID EntityID, rawName string) (Tag, error) {
	name, err := validateTagName(rawName)
	if err != nil {
		return Tag{}, err
	}

	var tag Tag
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tag, err = loadOwnedTag(tx, userID, tagID)
		if err != nil {
			return err
		}
		tag.Name = name
		return tx.Model(&Tag{}).Where("id = ?", tag.ID).Update("name", name).Error
	})
	if txErr != nil {
		if errors.Is(txErr, ErrNotFound) || errors.Is(txErr, ErrForbidden) {
			return Tag{}, txErr
		}
		if isUniqueViolation(txErr) {
			return Tag{}, fmt.Errorf("%w: tag name already in use", ErrConflict)
		}
		logServiceError(s.logger, opTagRename, "transaction_failed", txErr,
			zap.String("user_id", userID.String()),
			zap.String("tag_id", tagID.String()))
		return Tag{}, newServiceError(opTagRename, "transaction_failed", txErr)
	}
	return tag, nil
}

// Delete removes a tag and its association rows. Pages are never deleted.
func (s *TagService) Delete(ctx context.Context, userID UserID, tagID EntityID) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := loadOwnedTag(tx, userID, tagID)
		if err != nil {
			return err
		}
		if err := tx.Where("tag_id = ?", tag.ID).Delete(&PageTag{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", tag.ID).Delete(&Tag{}).Error
	})
	if txErr != nil {
		if errors.Is(txErr, ErrNotFound) || errors.Is(txErr, ErrForbidden) {
			return txErr
		}
		logServiceError(s.logger, opTagDelete, "transaction_failed", txErr,
			zap.String("user_id", userID.String()),
			zap.String("tag_id", tagID.String()))
		return newServiceError(opTagDelete, "transaction_failed", txErr)
	}
	return nil
}

// List returns the user's tags in ascending name order.
func (s *TagService) List(ctx context.Context, userID UserID) ([]Tag, error) {
	var tags []Tag
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("name ASC").
		Find(&tags).Error; err != nil {
		logServiceError(s.logger, opTagList, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opTagList, "query_failed", err)
	}
	return tags, nil
}
