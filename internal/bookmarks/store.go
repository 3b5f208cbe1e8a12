package bookmarks

import (
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loadOwnedFolder fetches a folder and enforces per-user ownership.
func loadOwnedFolder(tx *gorm.DB, userID UserID, folderID EntityID) (Folder, error) {
	var folder Folder
	err := tx.Where("id = ?", folderID.String()).Take(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Folder{}, ErrNotFound
	}
	if err != nil {
		return Folder{}, err
	}
	if folder.UserID != userID.String() {
		return Folder{}, ErrForbidden
	}
	return folder, nil
}

// loadOwnedPage fetches a page and enforces per-user ownership.
func loadOwnedPage(tx *gorm.DB, userID UserID, pageID EntityID) (Page, error) {
	var page Page
	err := tx.Where("id = ?", pageID.String()).Take(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, err
	}
	if page.UserID != userID.String() {
		return Page{}, ErrForbidden
	}
	return page, nil
}

// loadOwnedTag fetches a tag and enforces per-user ownership.
func loadOwnedTag(tx *gorm.DB, userID UserID, tagID EntityID) (Tag, error) {
	var tag Tag
	err := tx.Where("id = ?", tagID.String()).Take(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		return Tag{}, err
	}
	if tag.UserID != userID.String() {
		return Tag{}, ErrForbidden
	}
	return tag, nil
}

// resolveTag maps (name, user) onto a stable tag row, creating it when
// missing. The insert goes through the unique constraint with a do-nothing
// conflict clause, so concurrent first use of the same name cannot produce
// duplicate rows; whichever insert lost the race is picked up by the re-fetch.
func resolveTag(tx *gorm.DB, ids IDProvider, userID UserID, rawName string) (Tag, error) {
	name, err := validateTagName(rawName)
	if err != nil {
		return Tag{}, err
	}

	newID, err := ids.NewID()
	if err != nil {
		return Tag{}, err
	}
	candidate := Tag{ID: newID, UserID: userID.String(), Name: name}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return Tag{}, err
	}

	var tag Tag
	if err := tx.Where("name = ? AND user_id = ?", name, userID.String()).Take(&tag).Error; err != nil {
		return Tag{}, err
	}
	return tag, nil
}

// loadTagViews returns the denormalized tag view per page, name-sorted.
func loadTagViews(tx *gorm.DB, pageIDs []string) (map[string][]TagView, error) {
	views := make(map[string][]TagView, len(pageIDs))
	if len(pageIDs) == 0 {
		return views, nil
	}

	var joins []PageTag
	if err := tx.Where("page_id IN ?", pageIDs).Find(&joins).Error; err != nil {
		return nil, err
	}
	if len(joins) == 0 {
		return views, nil
	}

	tagIDs := make([]string, 0, len(joins))
	for _, join := range joins {
		tagIDs = append(tagIDs, join.TagID)
	}
	var tags []Tag
	if err := tx.Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
		return nil, err
	}
	tagsByID := make(map[string]Tag, len(tags))
	for _, tag := range tags {
		tagsByID[tag.ID] = tag
	}

	for _, join := range joins {
		tag, ok := tagsByID[join.TagID]
		if !ok {
			continue
		}
		views[join.PageID] = append(views[join.PageID], TagView{ID: tag.ID, Name: tag.Name})
	}
	for pageID := range views {
		pageTags := views[pageID]
		sort.Slice(pageTags, func(i, j int) bool { return pageTags[i].Name < pageTags[j].Name })
	}
	return views, nil
}

// loadFolderViews returns the denormalized folder view per page, name-sorted.
func loadFolderViews(tx *gorm.DB, pageIDs []string) (map[string][]FolderView, error) {
	views := make(map[string][]FolderView, len(pageIDs))
	if len(pageIDs) == 0 {
		return views, nil
	}

	var joins []PageFolder
	if err := tx.Where("page_id IN ?", pageIDs).Find(&joins).Error; err != nil {
		return nil, err
	}
	if len(joins) == 0 {
		return views, nil
	}

	folderIDs := make([]string, 0, len(joins))
	for _, join := range joins {
		folderIDs = append(folderIDs, join.FolderID)
	}
	var folders []Folder
	if err := tx.Where("id IN ?", folderIDs).Find(&folders).Error; err != nil {
		return nil, err
	}
	foldersByID := make(map[string]Folder, len(folders))
	for _, folder := range folders {
		foldersByID[folder.ID] = folder
	}

	for _, join := range joins {
		folder, ok := foldersByID[join.FolderID]
		if !ok {
			continue
		}
		views[join.PageID] = append(views[join.PageID], FolderView{ID: folder.ID, Name: folder.Name})
	}
	for pageID := range views {
		pageFolders := views[pageID]
		sort.Slice(pageFolders, func(i, j int) bool { return pageFolders[i].Name < pageFolders[j].Name })
	}
	return views, nil
}
