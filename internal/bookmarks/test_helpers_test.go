package bookmarks

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:marcador_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Page{}, &Tag{}, &Folder{}, &PageFolder{}, &PageTag{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustEntityID(t *testing.T, value string) EntityID {
	t.Helper()
	id, err := NewEntityID(value)
	if err != nil {
		t.Fatalf("unexpected entity id error: %v", err)
	}
	return id
}

func newFolderServiceForTest(t *testing.T, db *gorm.DB) *FolderService {
	t.Helper()
	service, err := NewFolderService(FolderServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1750000000, 0).UTC() },
		IDProvider: NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct folder service: %v", err)
	}
	return service
}

func newTagServiceForTest(t *testing.T, db *gorm.DB) *TagService {
	t.Helper()
	service, err := NewTagService(TagServiceConfig{
		Database:   db,
		IDProvider: NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct tag service: %v", err)
	}
	return service
}

func newQueryServiceForTest(t *testing.T, db *gorm.DB) *QueryService {
	t.Helper()
	service, err := NewQueryService(QueryServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct query service: %v", err)
	}
	return service
}

func newPageServiceForTest(t *testing.T, db *gorm.DB) *PageService {
	t.Helper()
	tick := int64(0)
	service, err := NewPageService(PageServiceConfig{
		Database: db,
		Clock: func() time.Time {
			tick++
			return time.Unix(1750000000+tick, 0).UTC()
		},
		IDProvider: NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct page service: %v", err)
	}
	return service
}

func newBulkServiceForTest(t *testing.T, db *gorm.DB) *BulkService {
	t.Helper()
	service, err := NewBulkService(BulkServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct bulk service: %v", err)
	}
	return service
}

func createTestPage(t *testing.T, pages *PageService, userID UserID, title, pageURL string, tags ...string) Bookmark {
	t.Helper()
	bookmark, err := pages.Create(context.Background(), userID, PageInput{
		Title: title,
		URL:   pageURL,
		Tags:  tags,
	})
	if err != nil {
		t.Fatalf("failed to create page %q: %v", title, err)
	}
	return bookmark
}

func createTestFolder(t *testing.T, folders *FolderService, userID UserID, name string, parentID *string) Folder {
	t.Helper()
	folder, err := folders.Create(context.Background(), userID, name, parentID)
	if err != nil {
		t.Fatalf("failed to create folder %q: %v", name, err)
	}
	return folder
}

func attachTestFolder(t *testing.T, pages *PageService, userID UserID, pageID, folderID string) {
	t.Helper()
	err := pages.AttachFolder(context.Background(), userID, mustEntityID(t, pageID), mustEntityID(t, folderID))
	if err != nil {
		t.Fatalf("failed to attach page %s to folder %s: %v", pageID, folderID, err)
	}
}
