package bookmarks

import (
	"context"
	"errors"
	"testing"
)

func TestBulkMoveIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	folder := createTestFolder(t, folders, userID, "Inbox", nil)
	first := createTestPage(t, pages, userID, "One", "https://example.com/one")
	second := createTestPage(t, pages, userID, "Two", "https://example.com/two")
	request := BulkRequest{
		IDs:      []string{first.ID, second.ID},
		Action:   BulkMove,
		FolderID: folder.ID,
	}

	result, err := bulk.Apply(context.Background(), userID, request)
	if err != nil {
		t.Fatalf("unexpected bulk error: %v", err)
	}
	if result.Requested != 2 || result.Matched != 2 || result.Affected != 2 {
		t.Fatalf("unexpected first result: %+v", result)
	}

	repeat, err := bulk.Apply(context.Background(), userID, request)
	if err != nil {
		t.Fatalf("unexpected repeated bulk error: %v", err)
	}
	if repeat.Affected != 0 {
		t.Fatalf("expected repeated move to affect 0 rows, got %d", repeat.Affected)
	}

	var rows int64
	if err := db.Model(&PageFolder{}).Where("folder_id = ?", folder.ID).Count(&rows).Error; err != nil {
		t.Fatalf("failed to count associations: %v", err)
	}
	if rows != 2 {
		t.Fatalf("expected 2 association rows, got %d", rows)
	}
}

func TestBulkTagAppliesOneTagToAll(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	pages := newPageServiceForTest(t, db)
	tags := newTagServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	tag, err := tags.Resolve(context.Background(), userID, "later")
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	already := createTestPage(t, pages, userID, "Tagged", "https://example.com/tagged", "later")
	fresh := createTestPage(t, pages, userID, "Fresh", "https://example.com/fresh")

	result, err := bulk.Apply(context.Background(), userID, BulkRequest{
		IDs:    []string{already.ID, fresh.ID},
		Action: BulkTag,
		TagID:  tag.ID,
	})
	if err != nil {
		t.Fatalf("unexpected bulk error: %v", err)
	}
	if result.Matched != 2 {
		t.Fatalf("expected 2 matched, got %d", result.Matched)
	}
	if result.Affected != 1 {
		t.Fatalf("expected only the untagged page to gain a row, got %d", result.Affected)
	}
}

func TestBulkDeleteRemovesPagesAndAssociations(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	folder := createTestFolder(t, folders, userID, "Inbox", nil)
	doomed := createTestPage(t, pages, userID, "Doomed", "https://example.com/doomed", "junk")
	survivor := createTestPage(t, pages, userID, "Survivor", "https://example.com/survivor")
	attachTestFolder(t, pages, userID, doomed.ID, folder.ID)

	result, err := bulk.Apply(context.Background(), userID, BulkRequest{
		IDs:    []string{doomed.ID},
		Action: BulkDelete,
	})
	if err != nil {
		t.Fatalf("unexpected bulk error: %v", err)
	}
	if result.Affected != 1 {
		t.Fatalf("expected 1 page deleted, got %d", result.Affected)
	}

	var pageCount, tagJoins, folderJoins int64
	if err := db.Model(&Page{}).Count(&pageCount).Error; err != nil {
		t.Fatalf("failed to count pages: %v", err)
	}
	if err := db.Model(&PageTag{}).Where("page_id = ?", doomed.ID).Count(&tagJoins).Error; err != nil {
		t.Fatalf("failed to count tag joins: %v", err)
	}
	if err := db.Model(&PageFolder{}).Where("page_id = ?", doomed.ID).Count(&folderJoins).Error; err != nil {
		t.Fatalf("failed to count folder joins: %v", err)
	}
	if pageCount != 1 || tagJoins != 0 || folderJoins != 0 {
		t.Fatalf("expected only the survivor to remain, got pages=%d tagJoins=%d folderJoins=%d", pageCount, tagJoins, folderJoins)
	}
	if _, err := pages.Get(context.Background(), userID, mustEntityID(t, survivor.ID)); err != nil {
		t.Fatalf("expected survivor to remain readable, got %v", err)
	}
}

func TestBulkUnfolderDetachesOnlyTargetFolder(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	inbox := createTestFolder(t, folders, userID, "Inbox", nil)
	archive := createTestFolder(t, folders, userID, "Archive", nil)
	page := createTestPage(t, pages, userID, "Article", "https://example.com/article")
	attachTestFolder(t, pages, userID, page.ID, inbox.ID)
	attachTestFolder(t, pages, userID, page.ID, archive.ID)

	result, err := bulk.Apply(context.Background(), userID, BulkRequest{
		IDs:      []string{page.ID},
		Action:   BulkUnfolder,
		FolderID: inbox.ID,
	})
	if err != nil {
		t.Fatalf("unexpected bulk error: %v", err)
	}
	if result.Affected != 1 {
		t.Fatalf("expected 1 detached row, got %d", result.Affected)
	}

	var remaining []PageFolder
	if err := db.Where("page_id = ?", page.ID).Find(&remaining).Error; err != nil {
		t.Fatalf("failed to load associations: %v", err)
	}
	if len(remaining) != 1 || remaining[0].FolderID != archive.ID {
		t.Fatalf("expected only the archive membership to remain, got %v", remaining)
	}
}

func TestBulkSkipsForeignAndUnknownIDs(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	pages := newPageServiceForTest(t, db)
	folders := newFolderServiceForTest(t, db)
	owner := mustUserID(t, "user-1")
	other := mustUserID(t, "user-2")

	folder := createTestFolder(t, folders, owner, "Inbox", nil)
	mine := createTestPage(t, pages, owner, "Mine", "https://example.com/mine")
	theirs := createTestPage(t, pages, other, "Theirs", "https://example.com/theirs")

	result, err := bulk.Apply(context.Background(), owner, BulkRequest{
		IDs:      []string{mine.ID, theirs.ID, "no-such-page"},
		Action:   BulkMove,
		FolderID: folder.ID,
	})
	if err != nil {
		t.Fatalf("unexpected bulk error: %v", err)
	}
	if result.Requested != 3 || result.Matched != 1 || result.Affected != 1 {
		t.Fatalf("expected foreign and unknown ids skipped, got %+v", result)
	}

	var foreignRows int64
	if err := db.Model(&PageFolder{}).Where("page_id = ?", theirs.ID).Count(&foreignRows).Error; err != nil {
		t.Fatalf("failed to count foreign associations: %v", err)
	}
	if foreignRows != 0 {
		t.Fatalf("expected foreign page untouched, got %d rows", foreignRows)
	}
}

func TestBulkRejectsEmptyIDList(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	_, err := bulk.Apply(context.Background(), userID, BulkRequest{
		IDs:    []string{"  ", ""},
		Action: BulkDelete,
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestBulkRejectsVirtualFolderTarget(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	for _, action := range []BulkAction{BulkMove, BulkUnfolder} {
		_, err := bulk.Apply(context.Background(), userID, BulkRequest{
			IDs:      []string{"page-1"},
			Action:   action,
			FolderID: VirtualUncategorizedID,
		})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for %s against virtual folder, got %v", action, err)
		}
	}
}

func TestBulkMissingTargetFails(t *testing.T) {
	db := newTestDB(t)
	bulk := newBulkServiceForTest(t, db)
	userID := mustUserID(t, "user-1")

	if _, err := bulk.Apply(context.Background(), userID, BulkRequest{
		IDs:    []string{"page-1"},
		Action: BulkMove,
	}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument without folder id, got %v", err)
	}
	if _, err := bulk.Apply(context.Background(), userID, BulkRequest{
		IDs:    []string{"page-1"},
		Action: BulkTag,
	}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument without tag id, got %v", err)
	}
}

func TestParseBulkAction(t *testing.T) {
	for raw, expected := range map[string]BulkAction{
		"move":     BulkMove,
		" TAG ":    BulkTag,
		"Delete":   BulkDelete,
		"unfolder": BulkUnfolder,
	} {
		action, err := ParseBulkAction(raw)
		if err != nil {
			t.Fatalf("unexpected parse error for %q: %v", raw, err)
		}
		if action != expected {
			t.Fatalf("expected %q to parse as %s, got %s", raw, expected, action)
		}
	}
	if _, err := ParseBulkAction("archive"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown action, got %v", err)
	}
}
