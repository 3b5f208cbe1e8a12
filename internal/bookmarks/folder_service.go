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

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opFolderServiceNew = "bookmarks.folder_service.new"
	opFolderCreate     = "bookmarks.folder_create"
	opFolderUpdate     = "bookmarks.folder_update"
	opFolderDelete     = "bookmarks.folder_delete"
	opFolderList       = "bookmarks.folder_list"
)

// FolderServiceConfig bundles the dependencies of the folder hierarchy manager.
type FolderServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// FolderService maintains a user's folder forest: creation under an optional
// parent, renames, moves, and deletion with reparenting.
type FolderService struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewFolderService constructs the folder hierarchy manager.
func NewFolderService(cfg FolderServiceConfig) (*FolderService, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opFolderServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opFolderServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &FolderService{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     loggerOrDefault(cfg.Logger),
	}, nil
}

// Create inserts a folder, optionally nested under a parent owned by the same
// user. Cross-user parenting fails with ErrForbidden.
func (s *FolderService) Create(ctx context.Context, userID UserID, rawName string, parentID *string) (Folder, error) {
	name, err := validateName(rawName)
	if err != nil {
		return Folder{}, err
	}
	parent, err := normalizeParentID(parentID)
	if err != nil {
		return Folder{}, err
	}

	newID, err := s.idProvider.NewID()
	if err != nil {
		logServiceError(s.logger, opFolderCreate, "id_generation_failed", err)
		return Folder{}, newServiceError(opFolderCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	folder := Folder{ID: newID, UserID: userID.String(), Name: name, ParentID: parent, CreatedAt: now, UpdatedAt: now}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parent != nil {
			parentFolderID, err := NewEntityID(*parent)
			if err != nil {
				return err
			}
			if _, err := loadOwnedFolder(tx, userID, parentFolderID); err != nil {
				return err
			}
		}
		return tx.Create(&folder).Error
	})
	if txErr != nil {
		return Folder{}, s.wrapFolderError(opFolderCreate, txErr, userID, folder.ID)
	}
	return folder, nil
}

// FolderUpdate describes one folder patch. A nil Name leaves the name alone;
// Move marks whether the parent changes, with a nil ParentID detaching the
// folder to root level.
type FolderUpdate struct {
	Name     *string
	Move     bool
	ParentID *string
}

// Update applies a rename, a move, or both as one transaction, so a failing
// move never leaves a committed rename behind. A move that would make the
// folder its own ancestor is rejected.
func (s *FolderService) Update(ctx context.Context, userID UserID, folderID EntityID, update FolderUpdate) (Folder, error) {
	if update.Name == nil && !update.Move {
		return Folder{}, fmt.Errorf("%w: nothing to update", ErrInvalidArgument)
	}
	if folderID.String() == VirtualUncategorizedID {
		return Folder{}, fmt.Errorf("%w: the uncategorized folder is virtual", ErrInvalidArgument)
	}

	var name string
	if update.Name != nil {
		validated, err := validateName(*update.Name)
		if err != nil {
			return Folder{}, err
		}
		name = validated
	}
	var parent *string
	if update.Move {
		normalized, err := normalizeParentID(update.ParentID)
		if err != nil {
			return Folder{}, err
		}
		parent = normalized
	}

	var folder Folder
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		folder, err = loadOwnedFolder(tx, userID, folderID)
		if err != nil {
			return err
		}
		changes := map[string]interface{}{}
		if update.Name != nil {
			folder.Name = name
			changes["name"] = name
		}
		if update.Move {
			if parent != nil {
				parentFolderID, err := NewEntityID(*parent)
				if err != nil {
					return err
				}
				parentFolder, err := loadOwnedFolder(tx, userID, parentFolderID)
				if err != nil {
					return err
				}
				if err := ensureNotDescendant(tx, userID, folderID.String(), parentFolder); err != nil {
					return err
				}
			}
			folder.ParentID = parent
			changes["parent_id"] = parent
		}
		return tx.Model(&Folder{}).Where("id = ?", folder.ID).Updates(changes).Error
	})
	if txErr != nil {
		return Folder{}, s.wrapFolderError(opFolderUpdate, txErr, userID, folderID.String())
	}
	return folder, nil
}

// Rename changes a folder's name in place.
func (s *FolderService) Rename(ctx context.Context, userID UserID, folderID EntityID, rawName string) (Folder, error) {
	return s.Update(ctx, userID, folderID, FolderUpdate{Name: &rawName})
}

// Move re-hangs a folder under a new parent (nil detaches it to root level).
func (s *FolderService) Move(ctx context.Context, userID UserID, folderID EntityID, newParentID *string) (Folder, error) {
	return s.Update(ctx, userID, folderID, FolderUpdate{Move: true, ParentID: newParentID})
}

// DeletedFolder reports what a delete removed, for caller-side messaging.
type DeletedFolder struct {
	ID       string
	Name     string
	ParentID *string
}

// Delete removes a folder and reparents everything under it in one
// transaction: child folders move up to the deleted folder's parent, and page
// associations are rewritten against the parent (skipping pairs that already
// exist). With no parent, children become roots and affected pages lose only
// this one association.
func (s *FolderService) Delete(ctx context.Context, userID UserID, folderID EntityID) (DeletedFolder, error) {
	if folderID.String() == VirtualUncategorizedID {
		return DeletedFolder{}, fmt.Errorf("%w: the uncategorized folder is virtual", ErrInvalidArgument)
	}

	var deleted DeletedFolder
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		folder, err := loadOwnedFolder(tx, userID, folderID)
		if err != nil {
			return err
		}
		deleted = DeletedFolder{ID: folder.ID, Name: folder.Name, ParentID: folder.ParentID}

		if err := tx.Model(&Folder{}).
			Where("parent_id = ? AND user_id = ?", folder.ID, userID.String()).
			Update("parent_id", folder.ParentID).Error; err != nil {
			return fmt.Errorf("reparent children: %w", err)
		}

		if folder.ParentID != nil {
			var associations []PageFolder
			if err := tx.Where("folder_id = ?", folder.ID).Find(&associations).Error; err != nil {
				return fmt.Errorf("load page associations: %w", err)
			}
			if len(associations) > 0 {
				promoted := make([]PageFolder, 0, len(associations))
				for _, association := range associations {
					promoted = append(promoted, PageFolder{PageID: association.PageID, FolderID: *folder.ParentID})
				}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&promoted).Error; err != nil {
					return fmt.Errorf("promote page associations: %w", err)
				}
			}
		}

		if err := tx.Where("folder_id = ?", folder.ID).Delete(&PageFolder{}).Error; err != nil {
			return fmt.Errorf("remove stale associations: %w", err)
		}
		return tx.Where("id = ?", folder.ID).Delete(&Folder{}).Error
	})
	if txErr != nil {
		return DeletedFolder{}, s.wrapFolderError(opFolderDelete, txErr, userID, folderID.String())
	}
	return deleted, nil
}

// FolderInfo is one entry of the folder listing.
type FolderInfo struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	PageCount int64
}

// FolderList is the full folder listing plus the virtual-folder count.
type FolderList struct {
	Folders            []FolderInfo
	UncategorizedCount int64
}

// List returns the user's folders newest first, each with its page association
// count, plus the number of pages without any folder association.
func (s *FolderService) List(ctx context.Context, userID UserID) (FolderList, error) {
	var folders []Folder
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC").
		Find(&folders).Error; err != nil {
		logServiceError(s.logger, opFolderList, "query_failed", err, zap.String("user_id", userID.String()))
		return FolderList{}, newServiceError(opFolderList, "query_failed", err)
	}

	counts := make(map[string]int64, len(folders))
	if len(folders) > 0 {
		folderIDs := make([]string, 0, len(folders))
		for _, folder := range folders {
			folderIDs = append(folderIDs, folder.ID)
		}
		type folderCount struct {
			FolderID  string
			PageCount int64
		}
		var rows []folderCount
		if err := s.db.WithContext(ctx).Model(&PageFolder{}).
			Select("folder_id, COUNT(*) AS page_count").
			Where("folder_id IN ?", folderIDs).
			Group("folder_id").
			Scan(&rows).Error; err != nil {
			logServiceError(s.logger, opFolderList, "count_failed", err, zap.String("user_id", userID.String()))
			return FolderList{}, newServiceError(opFolderList, "count_failed", err)
		}
		for _, row := range rows {
			counts[row.FolderID] = row.PageCount
		}
	}

	var uncategorized int64
	if err := s.db.WithContext(ctx).Model(&Page{}).
		Where("user_id = ?", userID.String()).
		Where("NOT EXISTS (SELECT 1 FROM page_folders WHERE page_folders.page_id = pages.id)").
		Count(&uncategorized).Error; err != nil {
		logServiceError(s.logger, opFolderList, "uncategorized_count_failed", err, zap.String("user_id", userID.String()))
		return FolderList{}, newServiceError(opFolderList, "uncategorized_count_failed", err)
	}

	result := FolderList{
		Folders:            make([]FolderInfo, 0, len(folders)),
		UncategorizedCount: uncategorized,
	}
	for _, folder := range folders {
		result.Folders = append(result.Folders, FolderInfo{
			ID:        folder.ID,
			Name:      folder.Name,
			ParentID:  folder.ParentID,
			CreatedAt: folder.CreatedAt,
			PageCount: counts[folder.ID],
		})
	}
	return result, nil
}

// ensureNotDescendant walks the candidate parent's ancestor chain and rejects
// the move when folderID appears in it.
func ensureNotDescendant(tx *gorm.DB, userID UserID, folderID string, candidate Folder) error {
	current := candidate
	for {
		if current.ID == folderID {
			return fmt.Errorf("%w: folder cannot become its own descendant", ErrInvalidArgument)
		}
		if current.ParentID == nil {
			return nil
		}
		var next Folder
		err := tx.Where("id = ? AND user_id = ?", *current.ParentID, userID.String()).Take(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current = next
	}
}

func normalizeParentID(parentID *string) (*string, error) {
	if parentID == nil {
		return nil, nil
	}
	trimmed, err := NewEntityID(*parentID)
	if err != nil {
		return nil, fmt.Errorf("%w: parent id", ErrInvalidArgument)
	}
	if trimmed.String() == VirtualUncategorizedID {
		return nil, fmt.Errorf("%w: the uncategorized folder is virtual", ErrInvalidArgument)
	}
	value := trimmed.String()
	return &value, nil
}

func (s *FolderService) wrapFolderError(operation string, err error, userID UserID, folderID string) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrInvalidEntityID) {
		return err
	}
	logServiceError(s.logger, operation, "transaction_failed", err,
		zap.String("user_id", userID.String()),
		zap.String("folder_id", folderID))
	return newServiceError(operation, "transaction_failed", err)
}
