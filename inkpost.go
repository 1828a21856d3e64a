// Package inkpost is a small blogging backend built with Go and Echo.
// It provides user registration and login with JWT sessions carried in an
// httpOnly cookie or a bearer header, owner-scoped post CRUD, category
// linkage, and image uploads stored on disk or in an S3-compatible bucket.
package inkpost

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/model"
	"github.com/eringen/inkpost/service"
	"github.com/eringen/inkpost/storage/local"
	"github.com/eringen/inkpost/storage/minio"
	"github.com/eringen/inkpost/store"
	"github.com/eringen/inkpost/token"
)

// App is the central inkpost application. It wires together the store,
// upload storage, services, middleware, and routes.
type App struct {
	Config Config
	Echo   *echo.Echo
	Store  *store.Store
	Auth   *service.Auth
	Posts  *service.Posts
	Images *service.Images

	log     *logger.Logger
	storage model.Storage
	tokens  model.TokenManager
}

// New creates a new inkpost App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.New(cfg.LogLevel)
	}

	return a
}

// Setup opens the database, prepares upload storage, builds the services,
// and registers middleware and routes. It must be called once before Start.
func (a *App) Setup(ctx context.Context) error {
	if err := a.Config.validate(); err != nil {
		return err
	}

	st, err := store.New(a.Config.Database.Path)
	if err != nil {
		return fmt.Errorf("inkpost: init store: %w", err)
	}
	a.Store = st

	if a.storage == nil {
		storage, err := a.openStorage(ctx)
		if err != nil {
			a.Store.Close()
			return fmt.Errorf("inkpost: init uploads: %w", err)
		}
		a.storage = storage
	}

	a.tokens = token.NewJWT(a.Config.JWT.Secret, a.Config.JWT.TTL)
	a.Images = service.NewImages(a.storage, a.log)
	a.Auth = service.NewAuth(a.Store, a.tokens, a.log, a.Config.BcryptCost)
	a.Posts = service.NewPosts(a.Store, a.Store, a.Images, a.log)

	a.setupMiddleware()
	a.setupRoutes()
	return nil
}

func (a *App) openStorage(ctx context.Context) (model.Storage, error) {
	switch a.Config.Uploads.Backend {
	case "minio":
		s := a.Config.Storage
		return minio.Dial(ctx, minio.Options{
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Bucket:    s.Bucket,
			UseSSL:    s.UseSSL,
		})
	default:
		return local.New(a.Config.Uploads.Dir)
	}
}

// Start listens on Config.HTTP.Addr and blocks until the server stops.
func (a *App) Start() error {
	a.log.Info("Starting server", "address", a.Config.HTTP.Addr, "uploads", a.Config.Uploads.Backend)
	if err := a.Echo.Start(a.Config.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/healthz", a.handleHealth)
	e.GET("/uploads/:filename", a.handleUpload)

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", a.handleRegister)
	auth.POST("/login", a.handleLogin)
	auth.POST("/logout", a.handleLogout, a.requireSession)
	auth.GET("/me", a.handleMe, a.requireSession)

	api.GET("/categories", a.handleListCategories, a.requireSession)

	posts := api.Group("/posts", a.requireSession)
	posts.GET("", a.handleListPosts)
	posts.GET("/:id", a.handleGetPost)
	posts.POST("", a.handleCreatePost)
	posts.PATCH("/:id", a.handleUpdatePost)
	posts.DELETE("/:id", a.handleDeletePost)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
