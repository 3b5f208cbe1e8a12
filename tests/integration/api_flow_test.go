package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/marcador/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/marcador/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/marcador/backend/internal/server"
	"github.com/MarcoPoloResearchLab/marcador/backend/internal/users"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jsonContentType = "application/json"

type apiClient struct {
	t       *testing.T
	baseURL string
	token   string
	client  *http.Client
}

func (c *apiClient) call(method, path string, body interface{}) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", jsonContentType)
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	response, err := c.client.Do(request)
	if err != nil {
		c.t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}
	return response.StatusCode, payload
}

func (c *apiClient) callJSON(method, path string, body interface{}, expectStatus int, target interface{}) {
	c.t.Helper()
	status, payload := c.call(method, path, body)
	if status != expectStatus {
		c.t.Fatalf("%s %s returned %d, expected %d: %s", method, path, status, expectStatus, payload)
	}
	if target != nil {
		if err := json.Unmarshal(payload, target); err != nil {
			c.t.Fatalf("failed to decode %s %s response %q: %v", method, path, payload, err)
		}
	}
}

func startAPIServer(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:marcador_integration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&users.Account{}, &users.Identity{},
		&bookmarks.Page{}, &bookmarks.Tag{}, &bookmarks.Folder{},
		&bookmarks.PageFolder{}, &bookmarks.PageTag{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	idProvider := bookmarks.NewUUIDProvider()
	usersService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	folderService, err := bookmarks.NewFolderService(bookmarks.FolderServiceConfig{Database: db, IDProvider: idProvider, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build folder service: %v", err)
	}
	tagService, err := bookmarks.NewTagService(bookmarks.TagServiceConfig{Database: db, IDProvider: idProvider, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build tag service: %v", err)
	}
	queryService, err := bookmarks.NewQueryService(bookmarks.QueryServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build query service: %v", err)
	}
	pageService, err := bookmarks.NewPageService(bookmarks.PageServiceConfig{Database: db, IDProvider: idProvider, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build page service: %v", err)
	}
	bulkService, err := bookmarks.NewBulkService(bookmarks.BulkServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build bulk service: %v", err)
	}
	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("integration-secret"),
		Issuer:        "marcador-auth",
		Audience:      "marcador-api",
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{Audience: "integration-client"})
	if err != nil {
		t.Fatalf("failed to build google verifier: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier: googleVerifier,
		TokenManager:   tokenManager,
		UsersService:   usersService,
		FolderService:  folderService,
		TagService:     tagService,
		QueryService:   queryService,
		PageService:    pageService,
		BulkService:    bulkService,
		Logger:         zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)

	return &apiClient{t: t, baseURL: testServer.URL, client: testServer.Client()}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type bookmarkResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Tags    []struct{ ID, Name string }
	Folders []struct{ ID, Name string }
}

type folderResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type folderListResponse struct {
	Folders            []folderResponse `json:"folders"`
	UncategorizedCount int64            `json:"uncategorized_count"`
}

type bulkResponse struct {
	Matched  int   `json:"matched"`
	Affected int64 `json:"affected"`
}

func TestBookmarkLifecycleFlow(t *testing.T) {
	client := startAPIServer(t)

	var token tokenResponse
	client.callJSON(http.MethodPost, "/auth/register", map[string]any{
		"email":    "reader@example.com",
		"password": "correct horse",
	}, http.StatusCreated, &token)
	client.token = token.AccessToken

	var work folderResponse
	client.callJSON(http.MethodPost, "/folders", map[string]any{"name": "Work"}, http.StatusCreated, &work)
	var projects folderResponse
	client.callJSON(http.MethodPost, "/folders", map[string]any{"name": "Projects", "parent_id": work.ID}, http.StatusCreated, &projects)

	var roadmap bookmarkResponse
	client.callJSON(http.MethodPost, "/pages", map[string]any{
		"title": "Roadmap",
		"url":   "https://example.com/roadmap",
		"tags":  []string{"planning", "go"},
	}, http.StatusCreated, &roadmap)
	var blog bookmarkResponse
	client.callJSON(http.MethodPost, "/pages", map[string]any{
		"title": "Go blog",
		"url":   "https://go.dev/blog",
		"tags":  []string{"go"},
	}, http.StatusCreated, &blog)

	client.callJSON(http.MethodPost, "/pages/"+roadmap.ID+"/folders", map[string]any{"folder_id": projects.ID}, http.StatusOK, nil)

	var filtered []bookmarkResponse
	client.callJSON(http.MethodGet, "/pages?inc=go&exc=planning", nil, http.StatusOK, &filtered)
	if len(filtered) != 1 || filtered[0].ID != blog.ID {
		t.Fatalf("expected exclusion to leave only the blog page, got %v", filtered)
	}

	var scoped []bookmarkResponse
	client.callJSON(http.MethodGet, "/pages?folder="+projects.ID, nil, http.StatusOK, &scoped)
	if len(scoped) != 1 || scoped[0].ID != roadmap.ID {
		t.Fatalf("expected the roadmap page in the projects folder, got %v", scoped)
	}

	var moved bulkResponse
	client.callJSON(http.MethodPost, "/pages/bulk", map[string]any{
		"ids":       []string{roadmap.ID, blog.ID},
		"action":    "move",
		"folder_id": work.ID,
	}, http.StatusOK, &moved)
	if moved.Matched != 2 || moved.Affected != 2 {
		t.Fatalf("unexpected bulk move result: %+v", moved)
	}

	client.callJSON(http.MethodDelete, "/folders/"+projects.ID, nil, http.StatusOK, nil)

	var listing folderListResponse
	client.callJSON(http.MethodGet, "/folders", nil, http.StatusOK, &listing)
	if len(listing.Folders) != 1 || listing.Folders[0].ID != work.ID {
		t.Fatalf("expected only the work folder to remain, got %v", listing.Folders)
	}
	if listing.UncategorizedCount != 0 {
		t.Fatalf("expected no uncategorized pages after reparenting, got %d", listing.UncategorizedCount)
	}

	var inWork []bookmarkResponse
	client.callJSON(http.MethodGet, "/pages?folder="+work.ID, nil, http.StatusOK, &inWork)
	if len(inWork) != 2 {
		t.Fatalf("expected both pages promoted into work, got %d", len(inWork))
	}

	var deleted bulkResponse
	client.callJSON(http.MethodPost, "/pages/bulk", map[string]any{
		"ids":    []string{roadmap.ID, blog.ID},
		"action": "delete",
	}, http.StatusOK, &deleted)
	if deleted.Affected != 2 {
		t.Fatalf("expected 2 pages deleted, got %d", deleted.Affected)
	}

	var remaining []bookmarkResponse
	client.callJSON(http.MethodGet, "/pages", nil, http.StatusOK, &remaining)
	if len(remaining) != 0 {
		t.Fatalf("expected no pages after bulk delete, got %d", len(remaining))
	}
}
