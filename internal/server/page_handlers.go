package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/marcador/backend/internal/bookmarks"
	"github.com/gin-gonic/gin"
)

type tagViewPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type folderViewPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bookmarkPayload struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	URL       string              `json:"url"`
	Memo      string              `json:"memo"`
	Tags      []tagViewPayload    `json:"tags"`
	Folders   []folderViewPayload `json:"folders"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type pageRequestPayload struct {
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Memo  string   `json:"memo"`
	Tags  []string `json:"tags"`
}

type bulkRequestPayload struct {
	IDs      []string `json:"ids"`
	Action   string   `json:"action"`
	FolderID string   `json:"folder_id"`
	TagID    string   `json:"tag_id"`
}

type bulkResponsePayload struct {
	Action    string `json:"action"`
	Requested int    `json:"requested"`
	Matched   int    `json:"matched"`
	Affected  int64  `json:"affected"`
}

type attachFolderPayload struct {
	FolderID string `json:"folder_id"`
}

// handleListPages resolves the composite bookmark query: folder scope,
// keyword, and include/exclude tag sets. The legacy single-tag parameter is
// folded into the include set.
func (h *httpHandler) handleListPages(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}

	scope, err := bookmarks.ParseFolderScope(c.Query("folder"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	includeTags := splitList(c.Query("inc"))
	excludeTags := splitList(c.Query("exc"))
	if legacy := strings.TrimSpace(c.Query("tag")); legacy != "" && !containsString(includeTags, legacy) {
		includeTags = append(includeTags, legacy)
	}

	filter := bookmarks.Filter{
		Scope:       scope,
		Query:       c.Query("q"),
		IncludeTags: includeTags,
		ExcludeTags: excludeTags,
		Mode:        bookmarks.ParseMatchMode(c.Query("mode")),
	}

	results, err := h.queries.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	payload := make([]bookmarkPayload, 0, len(results))
	for _, bookmark := range results {
		payload = append(payload, toBookmarkPayload(bookmark))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleCreatePage(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	var request pageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	bookmark, err := h.pages.Create(c.Request.Context(), userID, bookmarks.PageInput{
		Title: request.Title,
		URL:   request.URL,
		Memo:  request.Memo,
		Tags:  request.Tags,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookmarkPayload(bookmark))
}

func (h *httpHandler) handleGetPage(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	pageID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	bookmark, err := h.pages.Get(c.Request.Context(), userID, pageID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookmarkPayload(bookmark))
}

func (h *httpHandler) handleUpdatePage(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	pageID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	var request pageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	bookmark, err := h.pages.Update(c.Request.Context(), userID, pageID, bookmarks.PageInput{
		Title: request.Title,
		URL:   request.URL,
		Memo:  request.Memo,
		Tags:  request.Tags,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookmarkPayload(bookmark))
}

func (h *httpHandler) handleDeletePage(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	pageID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	if err := h.pages.Delete(c.Request.Context(), userID, pageID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": pageID.String()})
}

func (h *httpHandler) handleAttachPageFolder(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	pageID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	var request attachFolderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	folderID, err := bookmarks.NewEntityID(request.FolderID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	if err := h.pages.AttachFolder(c.Request.Context(), userID, pageID, folderID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attached": folderID.String()})
}

func (h *httpHandler) handleDetachPageFolder(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	pageID, err := bookmarks.NewEntityID(c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	folderID, err := bookmarks.NewEntityID(c.Query("folderId"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	if err := h.pages.DetachFolder(c.Request.Context(), userID, pageID, folderID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detached": folderID.String()})
}

func (h *httpHandler) handleBulkAction(c *gin.Context) {
	userID, ok := h.actingUser(c)
	if !ok {
		return
	}
	var request bulkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	action, err := bookmarks.ParseBulkAction(request.Action)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	result, err := h.bulk.Apply(c.Request.Context(), userID, bookmarks.BulkRequest{
		IDs:      request.IDs,
		Action:   action,
		FolderID: request.FolderID,
		TagID:    request.TagID,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, bulkResponsePayload{
		Action:    string(result.Action),
		Requested: result.Requested,
		Matched:   result.Matched,
		Affected:  result.Affected,
	})
}

func toBookmarkPayload(bookmark bookmarks.Bookmark) bookmarkPayload {
	tags := make([]tagViewPayload, 0, len(bookmark.Tags))
	for _, tag := range bookmark.Tags {
		tags = append(tags, tagViewPayload{ID: tag.ID, Name: tag.Name})
	}
	folders := make([]folderViewPayload, 0, len(bookmark.Folders))
	for _, folder := range bookmark.Folders {
		folders = append(folders, folderViewPayload{ID: folder.ID, Name: folder.Name})
	}
	return bookmarkPayload{
		ID:        bookmark.ID,
		Title:     bookmark.Title,
		URL:       bookmark.URL,
		Memo:      bookmark.Memo,
		Tags:      tags,
		Folders:   folders,
		CreatedAt: bookmark.CreatedAt,
		UpdatedAt: bookmark.UpdatedAt,
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func containsString(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
