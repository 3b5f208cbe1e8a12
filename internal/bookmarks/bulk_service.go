package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BulkAction names one multi-item mutation.
type BulkAction string

const (
	// BulkMove adds every page to one folder, keeping existing memberships.
	BulkMove BulkAction = "move"
	// BulkTag applies one tag to every page.
	BulkTag BulkAction = "tag"
	// BulkDelete removes the pages and their association rows.
	BulkDelete BulkAction = "delete"
	// BulkUnfolder detaches every page from one specific folder.
	BulkUnfolder BulkAction = "unfolder"
)

// ParseBulkAction validates the raw action parameter.
func ParseBulkAction(raw string) (BulkAction, error) {
	switch BulkAction(strings.ToLower(strings.TrimSpace(raw))) {
	case BulkMove:
		return BulkMove, nil
	case BulkTag:
		return BulkTag, nil
	case BulkDelete:
		return BulkDelete, nil
	case BulkUnfolder:
		return BulkUnfolder, nil
	default:
		return "", fmt.Errorf("%w: unknown bulk action", ErrInvalidArgument)
	}
}

// BulkRequest describes one bulk mutation over a set of page ids.
type BulkRequest struct {
	IDs      []string
	Action   BulkAction
	FolderID string
	TagID    string
}

// BulkResult reports how many rows a bulk action touched. Affected counts
// actual writes, so re-applying an identical request yields zero.
type BulkResult struct {
	Action    BulkAction
	Requested int
	Matched   int
	Affected  int64
}

const (
	opBulkServiceNew = "bookmarks.bulk_service.new"
	opBulkApply      = "bookmarks.bulk_apply"
)

// BulkServiceConfig bundles the dependencies of the bulk mutation coordinator.
type BulkServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// BulkService applies one action atomically across a set of bookmarks. Ids
// not owned by the acting user are silently skipped; the same policy holds
// for all four actions.
type BulkService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBulkService constructs the bulk mutation coordinator.
func NewBulkService(cfg BulkServiceConfig) (*BulkService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opBulkServiceNew, "missing_database", errMissingDatabase)
	}
	return &BulkService{
		db:     cfg.Database,
		logger: loggerOrDefault(cfg.Logger),
	}, nil
}

// Apply runs one bulk action as a single transaction. Every action is
// idempotent: duplicate associations are skipped, not errors.
func (s *BulkService) Apply(ctx context.Context, userID UserID, request BulkRequest) (BulkResult, error) {
	ids := dedupeTrimmed(request.IDs)
	if len(ids) == 0 {
		return BulkResult{}, fmt.Errorf("%w: id list must not be empty", ErrInvalidArgument)
	}
	if err := validateBulkTarget(request); err != nil {
		return BulkResult{}, err
	}

	result := BulkResult{Action: request.Action, Requested: len(ids)}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ownedIDs []string
		if err := tx.Model(&Page{}).
			Where("user_id = ? AND id IN ?", userID.String(), ids).
			Pluck("id", &ownedIDs).Error; err != nil {
			return err
		}
		result.Matched = len(ownedIDs)
		if len(ownedIDs) == 0 {
			return nil
		}

		switch request.Action {
		case BulkMove:
			return s.applyMove(tx, userID, request, ownedIDs, &result)
		case BulkTag:
			return s.applyTag(tx, userID, request, ownedIDs, &result)
		case BulkDelete:
			return s.applyDelete(tx, userID, ownedIDs, &result)
		case BulkUnfolder:
			return s.applyUnfolder(tx, userID, request, ownedIDs, &result)
		default:
			return fmt.Errorf("%w: unknown bulk action", ErrInvalidArgument)
		}
	})
	if txErr != nil {
		if errors.Is(txErr, ErrNotFound) || errors.Is(txErr, ErrForbidden) ||
			errors.Is(txErr, ErrInvalidArgument) || errors.Is(txErr, ErrInvalidEntityID) {
			return BulkResult{}, txErr
		}
		logServiceError(s.logger, opBulkApply, "transaction_failed", txErr,
			zap.String("user_id", userID.String()),
			zap.String("action", string(request.Action)))
		return BulkResult{}, newServiceError(opBulkApply, "transaction_failed", txErr)
	}
	return result, nil
}

func (s *BulkService) applyMove(tx *gorm.DB, userID UserID, request BulkRequest, ownedIDs []string, result *BulkResult) error {
	folderID, err := NewEntityID(request.FolderID)
	if err != nil {
		return err
	}
	folder, err := loadOwnedFolder(tx, userID, folderID)
	if err != nil {
		return err
	}
	associations := make([]PageFolder, 0, len(ownedIDs))
	for _, pageID := range ownedIDs {
		associations = append(associations, PageFolder{PageID: pageID, FolderID: folder.ID})
	}
	insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&associations)
	result.Affected = insert.RowsAffected
	return insert.Error
}

func (s *BulkService) applyTag(tx *gorm.DB, userID UserID, request BulkRequest, ownedIDs []string, result *BulkResult) error {
	tagID, err := NewEntityID(request.TagID)
	if err != nil {
		return err
	}
	tag, err := loadOwnedTag(tx, userID, tagID)
	if err != nil {
		return err
	}
	associations := make([]PageTag, 0, len(ownedIDs))
	for _, pageID := range ownedIDs {
		associations = append(associations, PageTag{PageID: pageID, TagID: tag.ID})
	}
	insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&associations)
	result.Affected = insert.RowsAffected
	return insert.Error
}

func (s *BulkService) applyDelete(tx *gorm.DB, userID UserID, ownedIDs []string, result *BulkResult) error {
	if err := tx.Where("page_id IN ?", ownedIDs).Delete(&PageTag{}).Error; err != nil {
		return err
	}
	if err := tx.Where("page_id IN ?", ownedIDs).Delete(&PageFolder{}).Error; err != nil {
		return err
	}
	remove := tx.Where("user_id = ? AND id IN ?", userID.String(), ownedIDs).Delete(&Page{})
	result.Affected = remove.RowsAffected
	return remove.Error
}

func (s *BulkService) applyUnfolder(tx *gorm.DB, userID UserID, request BulkRequest, ownedIDs []string, result *BulkResult) error {
	folderID, err := NewEntityID(request.FolderID)
	if err != nil {
		return err
	}
	folder, err := loadOwnedFolder(tx, userID, folderID)
	if err != nil {
		return err
	}
	remove := tx.Where("folder_id = ? AND page_id IN ?", folder.ID, ownedIDs).Delete(&PageFolder{})
	result.Affected = remove.RowsAffected
	return remove.Error
}

func validateBulkTarget(request BulkRequest) error {
	switch request.Action {
	case BulkMove, BulkUnfolder:
		if strings.TrimSpace(request.FolderID) == "" {
			return fmt.Errorf("%w: folder id required for %s", ErrInvalidArgument, request.Action)
		}
		if strings.TrimSpace(request.FolderID) == VirtualUncategorizedID {
			return fmt.Errorf("%w: the uncategorized folder is virtual", ErrInvalidArgument)
		}
	case BulkTag:
		if strings.TrimSpace(request.TagID) == "" {
			return fmt.Errorf("%w: tag id required for %s", ErrInvalidArgument, request.Action)
		}
	case BulkDelete:
	default:
		return fmt.Errorf("%w: unknown bulk action", ErrInvalidArgument)
	}
	return nil
}
