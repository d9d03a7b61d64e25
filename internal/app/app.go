package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/db"
	"github.com/marianozunino/ezyshare/internal/expiration"
	"github.com/marianozunino/ezyshare/internal/gateway"
	"github.com/marianozunino/ezyshare/internal/handler"
	"github.com/marianozunino/ezyshare/internal/logger"
	middie "github.com/marianozunino/ezyshare/internal/middleware"
	"github.com/marianozunino/ezyshare/internal/share"
	"github.com/marianozunino/ezyshare/internal/storage"
)

// multipartSlack covers multipart boundaries and headers on top of the
// largest accepted payload.
const multipartSlack = 1 << 20

// App represents the application
type App struct {
	server            *echo.Echo
	expirationManager *expiration.ExpirationManager
	config            *config.Config
	db                *db.DB
}

// New creates a new application instance from defaults, the optional file
// named by CONFIG_PATH and EZYSHARE_* environment overrides.
func New() (*App, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig wires every component for cfg.
func NewWithConfig(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(cfg.Log, cfg.SentryDSN)

	slog.Info("configuration loaded",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"max_size_mib", cfg.MaxSize,
		"retention_hours", cfg.RetentionHours,
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Backend,
		"pin_max_failures", cfg.PinAttempt.MaxFailures,
	)

	conn, err := db.NewDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := storage.New(ctx, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	shares := share.NewService(gateway.New(conn, store, cfg.SignedURLTTL()), share.OptionsFromConfig(cfg))

	// Only the local backend serves its own signed links.
	var blobs handler.BlobOpener
	if local, ok := store.(*storage.LocalStore); ok {
		blobs = local
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	// Configure timeouts for large file uploads
	e.Server.ReadTimeout = 10 * time.Minute
	e.Server.WriteTimeout = 10 * time.Minute
	e.Server.IdleTimeout = 15 * time.Minute
	e.Server.ReadHeaderTimeout = 30 * time.Second

	app := &App{
		server:            e,
		expirationManager: expiration.NewExpirationManager(cfg.Expiration, conn, store),
		config:            cfg,
		db:                conn,
	}

	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middie.SecurityHeaders())
	e.Use(middie.Metrics())
	e.Use(middleware.BodyLimit(bodyLimit(cfg.MaxSizeToBytes())))

	registerRoutes(e, handler.NewHandler(shares, cfg, conn, blobs))
	return app, nil
}

// bodyLimit renders the request body cap in the KiB notation BodyLimit expects.
func bodyLimit(maxSize int64) string {
	return fmt.Sprintf("%dK", (maxSize+multipartSlack+1023)/1024)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURIPath:   true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			// The path only: query strings may carry a PIN.
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				slog.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	})
}

// Start starts the application
func (a *App) Start() {
	a.expirationManager.Start()

	serverAddr := fmt.Sprintf(":%d", a.config.Port)

	go func() {
		if err := a.server.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
		}
	}()

	slog.Info("server started", "addr", serverAddr)
}

// Stop stops all application services
func (a *App) Stop() {
	a.expirationManager.Stop()
	if err := a.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// Shutdown gracefully shuts down the server
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// registerRoutes registers all HTTP routes
func registerRoutes(e *echo.Echo, h *handler.Handler) {
	noStore := middie.NoStore()

	e.GET("/", h.HandleHome)
	e.GET("/healthz", h.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/shares", h.HandleShareFile, noStore)
	api.POST("/shares/text", h.HandleShareText, noStore)
	api.GET("/shares/:id", h.HandleGetShare)
	api.POST("/shares/:id/verify", h.HandleVerify, noStore)
	api.POST("/pin", h.HandleFindByPin, noStore)

	e.GET("/download/:id", h.HandleDownloadPage, noStore)
	e.POST("/download/:id", h.HandleDownloadSubmit, noStore)
	e.GET("/receive", h.HandleReceivePage)
	e.POST("/receive", h.HandleReceiveSubmit, noStore)
	e.GET("/blob/:token", h.HandleBlob, noStore)
}
