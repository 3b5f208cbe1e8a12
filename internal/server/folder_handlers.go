package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/marcador/backend/internal/bookmarks"
	"github.com/gin-gonic/gin"
)

type folderRequestPayload struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type folderPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
	Count     int64     `json:"count"`
}

type folderListPayload struct {
	Folders            []folderPayload `json:"folders"`
	UncategorizedCount int64           `json:"uncategorized_count"`
}

func (h *httpHandler) handleListFolders(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	listing, err := h.folders.List(c.Request.Context(), userID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	payload := folderListPayload{
		Folders:            make([]folderPayload, 0, len(listing.Folders)),
		UncategorizedCount: listing.UncategorizedCount,
	}
	for _, folder := range listing.Folders {
		payload.Folders = append(payload.Folders, folderPayload{
			ID:        folder.ID,
			Name:      folder.Name,
			ParentID:  folder.ParentID,
			CreatedAt: folder.CreatedAt,
			Count:     folder.PageCount,
		})
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleCreateFolder(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	var request folderRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	folder, err := h.folders.Create(c.Request.Context(), userID, request.Name, request.ParentID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, folderPayload{
		ID:        folder.ID,
		Name:      folder.Name,
		ParentID:  folder.ParentID,
		CreatedAt: folder.CreatedAt,
	})
}

// handleUpdateFolder renames a folder, moves it under a new parent, or both.
// A "parent_id": null in the body detaches the folder to root level, so the
// move only happens when the key is present.
func (h *httpHandler) handleUpdateFolder(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	folderID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	raw := map[string]interface{}{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var update bookmarks.FolderUpdate
	if nameValue, present := raw["name"]; present {
		name, isString := nameValue.(string)
		if !isString {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		update.Name = &name
	}
	if parentValue, present := raw["parent_id"]; present {
		update.Move = true
		switch parent := parentValue.(type) {
		case string:
			update.ParentID = &parent
		case nil:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	if update.Name == nil && !update.Move {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	folder, err := h.folders.Update(c.Request.Context(), userID, folderID, update)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, folderPayload{
		ID:        folder.ID,
		Name:      folder.Name,
		ParentID:  folder.ParentID,
		CreatedAt: folder.CreatedAt,
	})
}

func (h *httpHandler) handleDeleteFolder(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	folderID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	deleted, err := h.folders.Delete(c.Request.Context(), userID, folderID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted":   deleted.ID,
		"name":      deleted.Name,
		"parent_id": deleted.ParentID,
	})
}
