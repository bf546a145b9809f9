package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"flulance/database"
	"flulance/internal/auth"
	"flulance/internal/clock"
	"flulance/internal/config"
	"flulance/internal/delivery"
	"flulance/internal/handlers"
	"flulance/internal/logger"
	"flulance/internal/middleware"
	"flulance/internal/routes"
	"flulance/internal/services"
	"flulance/internal/storage"
	"flulance/internal/validator"
	"flulance/internal/workers"
	"flulance/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// tokenTTL only matters for tokens minted locally (tests, the CLI's dev
// login); production tokens come from the identity provider.
const tokenTTL = 24 * time.Hour

// App is the assembled server: database, services, router and workers.
type App struct {
	cfg    *config.Config
	db     *gorm.DB
	router *gin.Engine
	worker *workers.DeliveryWorker
}

// Run loads the configuration, starts the server and blocks until SIGINT or
// SIGTERM.
func Run() {
	cfg := config.LoadConfig()
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.SetDebug(cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}
	if err := a.Serve(ctx); err != nil {
		logger.Fatal("Server error", "error", err)
	}
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	db, err := database.Open(database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Debug:           cfg.IsDevelopment(),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate || cfg.Database.Driver != "postgres" {
		if err := database.Migrate(db, cfg.Database.Driver); err != nil {
			return nil, err
		}
	}
	logger.Info("Database connected")

	store, err := storage.NewStorage(ctx, storage.Config{
		Type:       cfg.Storage.Type,
		BasePath:   cfg.Storage.BasePath,
		BaseURL:    cfg.Storage.BaseURL,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		PublicRead: cfg.Storage.PublicRead,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type)

	clk := clock.Real{}
	repos := services.NewRepositoryContainer()
	chatCfg := services.ChatConfig{
		MaxAttachmentSize:    cfg.Upload.MaxAttachmentSize,
		AllowedTypes:         cfg.Upload.AllowedTypes,
		AllowAfterCompletion: cfg.Chat.AllowAfterCompletion,
		DefaultPageSize:      cfg.Chat.DefaultPageSize,
		MaxPageSize:          cfg.Chat.MaxPageSize,
		PublicURLs:           cfg.Storage.PublicRead,
	}
	svc := services.NewServiceContainer(repos, store, clk, chatCfg)
	tokens := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, tokenTTL)

	a := &App{
		cfg:    cfg,
		db:     db,
		router: NewRouter(db, tokens, svc, cfg.Upload.MaxAttachmentSize),
	}

	if cfg.Delivery.Enabled {
		senders, err := buildSenders(cfg)
		if err != nil {
			return nil, err
		}
		a.worker = workers.NewDeliveryWorker(db, repos.Notifications, repos.Contacts, senders, clk, workers.DeliveryConfig{
			Interval:  cfg.Delivery.Interval,
			BatchSize: cfg.Delivery.BatchSize,
			PublicURL: cfg.Delivery.PublicURL,
		})
	}
	return a, nil
}

// NewRouter builds the gin engine with the middleware chain and all routes.
func NewRouter(db *gorm.DB, tokens *auth.JWTManager, svc *services.ServiceContainer, maxAttachmentSize int64) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.DBMiddleware(db))

	base := handlers.NewBaseHandler(validator.New(), middleware.AuthMiddleware(tokens))
	appHandlers := &handlers.AppHandlers{
		HealthHandler:       handlers.NewHealthHandler(db),
		JobHandler:          handlers.NewJobHandler(base, svc.JobService),
		ApplicationHandler:  handlers.NewApplicationHandler(base, svc.ApplicationService),
		MatchHandler:        handlers.NewMatchHandler(base, svc.MatchService),
		ChatHandler:         handlers.NewChatHandler(base, svc.ChatService, maxAttachmentSize),
		NotificationHandler: handlers.NewNotificationHandler(base, svc.NotificationService),
		ReviewHandler:       handlers.NewReviewHandler(base, svc.ReviewService),
		ContactHandler:      handlers.NewContactHandler(base, svc.ContactService),
	}
	routes.RegisterRoutes(router, appHandlers)
	return router
}

func buildSenders(cfg *config.Config) ([]delivery.Sender, error) {
	var senders []delivery.Sender
	if cfg.Delivery.SMTP.Host != "" {
		s, err := delivery.NewEmailSender(delivery.SMTPConfig{
			Host:      cfg.Delivery.SMTP.Host,
			Port:      cfg.Delivery.SMTP.Port,
			Username:  cfg.Delivery.SMTP.Username,
			Password:  cfg.Delivery.SMTP.Password,
			FromEmail: cfg.Delivery.SMTP.FromEmail,
			FromName:  cfg.Delivery.SMTP.FromName,
		})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if cfg.Delivery.Telegram.BotToken != "" {
		s, err := delivery.NewTelegramSender(cfg.Delivery.Telegram.BotToken, "")
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if cfg.Delivery.LogOnly || len(senders) == 0 {
		senders = append(senders, delivery.LogSender{})
	}
	return senders, nil
}

// Serve runs the HTTP server and the delivery worker until ctx is done, then
// drains in-flight requests within the shutdown timeout.
func (a *App) Serve(ctx context.Context) error {
	defer func() {
		if err := database.Close(a.db); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	var workerDone <-chan struct{}
	if a.worker != nil {
		workerDone = a.worker.Start(workerCtx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	cancelWorkers()
	if workerDone != nil {
		<-workerDone
	}
	logger.Info("Server stopped")
	return nil
}
