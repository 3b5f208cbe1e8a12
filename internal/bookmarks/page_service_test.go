package bookmarks

import (
	"context"
	"errors"
	"testing"
)

func TestPageCreateResolvesTags(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	bookmark, err := pages.Create(context.Background(), userID, PageInput{
		Title: "Go Blog",
		URL:   "https://go.dev/blog",
		Memo:  "release notes",
		Tags:  []string{"golang", "reading", " golang "},
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if bookmark.Memo != "release notes" {
		t.Fatalf("expected memo persisted, got %q", bookmark.Memo)
	}
	if len(bookmark.Tags) != 2 {
		t.Fatalf("expected duplicate input collapsed to 2 tags, got %d", len(bookmark.Tags))
	}
	if bookmark.Tags[0].Name != "golang" || bookmark.Tags[1].Name != "reading" {
		t.Fatalf("expected name-sorted tags, got %v", bookmark.Tags)
	}
}

func TestPageCreateDuplicateURLConflicts(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	createTestPage(t, pages, userID, "First", "https://example.com/article")
	_, err := pages.Create(context.Background(), userID, PageInput{
		Title: "Second",
		URL:   "https://example.com/article",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate url, got %v", err)
	}

	otherUser := mustUserID(t, "user-2")
	if _, err := pages.Create(context.Background(), otherUser, PageInput{
		Title: "Theirs",
		URL:   "https://example.com/article",
	}); err != nil {
		t.Fatalf("expected other user to save the same url, got %v", err)
	}
}

func TestPageCreateRejectsInvalidURL(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	for _, badURL := range []string{"", "ftp://example.com/file", "not a url", "https://"} {
		if _, err := pages.Create(context.Background(), userID, PageInput{Title: "X", URL: badURL}); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for url %q, got %v", badURL, err)
		}
	}
}

func TestPageUpdateReplacesTagSet(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	bookmark := createTestPage(t, pages, userID, "Article", "https://example.com/article", "old", "keep")
	updated, err := pages.Update(context.Background(), userID, mustEntityID(t, bookmark.ID), PageInput{
		Title: "Article v2",
		URL:   "https://example.com/article",
		Memo:  "revised",
		Tags:  []string{"keep", "new"},
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Title != "Article v2" || updated.Memo != "revised" {
		t.Fatalf("expected fields updated, got %+v", updated)
	}
	if len(updated.Tags) != 2 || updated.Tags[0].Name != "keep" || updated.Tags[1].Name != "new" {
		t.Fatalf("expected tag set replaced with keep,new, got %v", updated.Tags)
	}

	var joinRows int64
	if err := db.Model(&PageTag{}).Where("page_id = ?", bookmark.ID).Count(&joinRows).Error; err != nil {
		t.Fatalf("failed to count join rows: %v", err)
	}
	if joinRows != 2 {
		t.Fatalf("expected 2 association rows, got %d", joinRows)
	}
}

func TestPageUpdateForeignPageFails(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	owner := mustUserID(t, "user-1")
	intruder := mustUserID(t, "user-2")

	bookmark := createTestPage(t, pages, owner, "Mine", "https://example.com/mine")
	_, err := pages.Update(context.Background(), intruder, mustEntityID(t, bookmark.ID), PageInput{
		Title: "Hijacked",
		URL:   "https://example.com/mine",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPageDeleteRemovesAssociations(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	folder := createTestFolder(t, folders, userID, "Inbox", nil)
	bookmark := createTestPage(t, pages, userID, "Article", "https://example.com/article", "reading")
	attachTestFolder(t, pages, userID, bookmark.ID, folder.ID)

	if err := pages.Delete(context.Background(), userID, mustEntityID(t, bookmark.ID)); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	if _, err := pages.Get(context.Background(), userID, mustEntityID(t, bookmark.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	var tagJoins, folderJoins int64
	if err := db.Model(&PageTag{}).Where("page_id = ?", bookmark.ID).Count(&tagJoins).Error; err != nil {
		t.Fatalf("failed to count tag joins: %v", err)
	}
	if err := db.Model(&PageFolder{}).Where("page_id = ?", bookmark.ID).Count(&folderJoins).Error; err != nil {
		t.Fatalf("failed to count folder joins: %v", err)
	}
	if tagJoins != 0 || folderJoins != 0 {
		t.Fatalf("expected association rows removed, got %d tag rows and %d folder rows", tagJoins, folderJoins)
	}

	var tagCount int64
	if err := db.Model(&Tag{}).Where("user_id = ?", userID.String()).Count(&tagCount).Error; err != nil {
		t.Fatalf("failed to count tags: %v", err)
	}
	if tagCount != 1 {
		t.Fatalf("expected tag row to survive page deletion, got %d", tagCount)
	}
}

func TestPageAttachFolderIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	folder := createTestFolder(t, folders, userID, "Inbox", nil)
	bookmark := createTestPage(t, pages, userID, "Article", "https://example.com/article")

	attachTestFolder(t, pages, userID, bookmark.ID, folder.ID)
	attachTestFolder(t, pages, userID, bookmark.ID, folder.ID)

	var rows int64
	if err := db.Model(&PageFolder{}).Where("page_id = ?", bookmark.ID).Count(&rows).Error; err != nil {
		t.Fatalf("failed to count associations: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 association after repeated attach, got %d", rows)
	}
}

func TestPageDetachFolderLeavesOtherMemberships(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	first := createTestFolder(t, folders, userID, "Inbox", nil)
	second := createTestFolder(t, folders, userID, "Archive", nil)
	bookmark := createTestPage(t, pages, userID, "Article", "https://example.com/article")
	attachTestFolder(t, pages, userID, bookmark.ID, first.ID)
	attachTestFolder(t, pages, userID, bookmark.ID, second.ID)

	err := pages.DetachFolder(context.Background(), userID, mustEntityID(t, bookmark.ID), mustEntityID(t, first.ID))
	if err != nil {
		t.Fatalf("unexpected detach error: %v", err)
	}

	var remaining []PageFolder
	if err := db.Where("page_id = ?", bookmark.ID).Find(&remaining).Error; err != nil {
		t.Fatalf("failed to load associations: %v", err)
	}
	if len(remaining) != 1 || remaining[0].FolderID != second.ID {
		t.Fatalf("expected only the second membership to remain, got %v", remaining)
	}
}

func TestPageAttachForeignFolderFails(t *testing.T) {
	db := newTestDB(t)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	owner := mustUserID(t, "user-1")
	intruder := mustUserID(t, "user-2")

	folder := createTestFolder(t, folders, owner, "Private", nil)
	bookmark := createTestPage(t, pages, intruder, "Mine", "https://example.com/mine")

	err := pages.AttachFolder(context.Background(), intruder, mustEntityID(t, bookmark.ID), mustEntityID(t, folder.ID))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
