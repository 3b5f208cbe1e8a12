package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/marcador/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/marcador/backend/internal/bookmarks"
	"github.com/MarcoPoloResearchLab/marcador/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accountIDContextKey = "marcador_account_id"

var (
	errMissingGoogleVerifier = errors.New("google verifier dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingUsersService   = errors.New("users service dependency required")
	errMissingFolderService  = errors.New("folder service dependency required")
	errMissingTagService     = errors.New("tag service dependency required")
	errMissingQueryService   = errors.New("query service dependency required")
	errMissingPageService    = errors.New("page service dependency required")
	errMissingBulkService    = errors.New("bulk service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// GoogleVerifier validates Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// BackendTokenManager issues and validates the API's own bearer tokens.
type BackendTokenManager interface {
	IssueToken(ctx context.Context, accountID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to its collaborators.
type Dependencies struct {
	GoogleVerifier GoogleVerifier
	TokenManager   BackendTokenManager
	UsersService   *users.Service
	FolderService  *bookmarks.FolderService
	TagService     *bookmarks.TagService
	QueryService   *bookmarks.QueryService
	PageService    *bookmarks.PageService
	BulkService    *bookmarks.BulkService
	Logger         *zap.Logger
}

// NewHTTPHandler builds the Gin router for the bookmark API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.FolderService == nil {
		return nil, errMissingFolderService
	}
	if deps.TagService == nil {
		return nil, errMissingTagService
	}
	if deps.QueryService == nil {
		return nil, errMissingQueryService
	}
	if deps.PageService == nil {
		return nil, errMissingPageService
	}
	if deps.BulkService == nil {
		return nil, errMissingBulkService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier: deps.GoogleVerifier,
		tokens:   deps.TokenManager,
		users:    deps.UsersService,
		folders:  deps.FolderService,
		tags:     deps.TagService,
		queries:  deps.QueryService,
		pages:    deps.PageService,
		bulk:     deps.BulkService,
		logger:   logger,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/google", handler.handleGoogleAuth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile", handler.handleUpdateProfile)

	protected.GET("/pages", handler.handleListPages)
	protected.POST("/pages", handler.handleCreatePage)
	protected.GET("/pages/:id", handler.handleGetPage)
	protected.PUT("/pages/:id", handler.handleUpdatePage)
	protected.DELETE("/pages/:id", handler.handleDeletePage)
	protected.POST("/pages/:id/folders", handler.handleAttachPageFolder)
	protected.DELETE("/pages/:id/folders", handler.handleDetachPageFolder)
	protected.POST("/pages/bulk", handler.handleBulkAction)

	protected.GET("/folders", handler.handleListFolders)
	protected.POST("/folders", handler.handleCreateFolder)
	protected.PATCH("/folders/:id", handler.handleUpdateFolder)
	protected.DELETE("/folders/:id", handler.handleDeleteFolder)

	protected.GET("/tags", handler.handleListTags)
	protected.POST("/tags", handler.handleCreateTag)
	protected.PUT("/tags/:id", handler.handleRenameTag)
	protected.DELETE("/tags/:id", handler.handleDeleteTag)

	return router, nil
}

type httpHandler struct {
	verifier GoogleVerifier
	tokens   BackendTokenManager
	users    *users.Service
	folders  *bookmarks.FolderService
	tags     *bookmarks.TagService
	queries  *bookmarks.QueryService
	pages    *bookmarks.PageService
	bulk     *bookmarks.BulkService
	logger   *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(accountIDContextKey, subject)
	c.Next()
}

// actingUser resolves the authenticated account id into the core's user type.
func (h *httpHandler) actingUser(c *gin.Context) (bookmarks.UserID, bool) {
	userID, err := bookmarks.NewUserID(c.GetString(accountIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

// respondDomainError maps core errors onto HTTP statuses without leaking
// store detail.
func (h *httpHandler) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bookmarks.ErrInvalidArgument),
		errors.Is(err, bookmarks.ErrInvalidEntityID),
		errors.Is(err, bookmarks.ErrInvalidUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, bookmarks.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, bookmarks.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, bookmarks.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
