package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"servimatt/chat/internal/api"
	"servimatt/chat/internal/config"
	"servimatt/chat/internal/database"
	"servimatt/chat/internal/drafts"
	"servimatt/chat/internal/llm"
	"servimatt/chat/internal/model"
	"servimatt/chat/internal/repository"
	"servimatt/chat/internal/service"
	"servimatt/chat/internal/store"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

// App holds every long-lived component. Exactly one of DB and Redis is set,
// depending on the configured storage driver.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Drafts   *drafts.Store
	Store    *store.Store
	Chat     *service.ChatService
	Settings *service.SettingsService
	Models   *service.ModelService

	Server *http.Server
}

// Run is the entry point of the HTTP server binary. It returns the process
// exit code.
func Run() int {
	a, err := Open(os.Stdout)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.Chat.Refresh(ctx); err != nil {
		slog.Warn("Initial conversation load failed", "error", err)
	}

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		slog.Error("Failed to listen", "addr", a.Server.Addr, "error", err)
		return 1
	}
	if err := a.Serve(ctx, ln); err != nil {
		slog.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

// Open loads the configuration, sends logs to logOut and builds the App.
func Open(logOut io.Writer) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.LogLevel, logOut)

	logConfigSource()

	return NewApp(cfg)
}

// NewApp opens the configured backend and wires the services and the HTTP
// server on top of it.
func NewApp(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.DraftsPath != "" {
		a.Drafts, err = drafts.Open(cfg.DraftsPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		slog.Info("Drafts are persisted locally", "path", cfg.DraftsPath)
	} else {
		a.Drafts = drafts.NewStore()
	}

	provider := llm.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; sends will fail until it is configured")
	}

	a.Settings = service.NewSettingsService(repo, model.Settings{
		SystemPrompt: cfg.SystemPrompt,
		Model:        cfg.OpenAIModel,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	appSettings, err := a.Settings.InitAndGet(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize application settings: %w", err)
	}
	slog.Info("Loaded application settings", "model", appSettings.Model)

	a.Store = store.New(repo, store.WithErrorDismissDelay(cfg.ErrorDismissDelay))
	a.Chat = service.NewChatService(a.Store, a.Drafts, provider, a.Settings,
		service.WithCancelOnNavigate(cfg.CancelOnNavigate))
	a.Models = service.NewModelService(provider)

	chatHandler := api.NewChatHandler(a.Chat, a.Settings)
	modelHandler := api.NewModelHandler(a.Models)
	router := api.NewRouter(chatHandler, modelHandler)

	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for the event stream
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

func (a *App) openRepository(ctx context.Context) (repository.Repository, error) {
	switch a.Config.StorageDriver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.RedisAddr, err)
		}
		a.Redis = rdb
		slog.Info("Successfully connected to Redis.", "addr", a.Config.RedisAddr)
		return repository.NewRedisRepository(rdb), nil
	case config.DriverSQLite, "":
		db, err := database.InitDB(a.Config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.DB = db
		slog.Info("Successfully connected to SQLite database.", "path", a.Config.DatabasePath)
		return repository.NewSQLiteRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.Config.StorageDriver)
	}
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts it down
// gracefully. Open event streams are ended when shutdown begins.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()
	a.Server.BaseContext = func(net.Listener) context.Context { return connCtx }
	a.Server.RegisterOnShutdown(cancelConns)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting server", "addr", ln.Addr().String())
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close stops background sends and releases every resource NewApp opened.
// It is safe to call on a partially initialized App.
func (a *App) Close() {
	if a.Chat != nil {
		a.Chat.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Drafts != nil {
		if err := a.Drafts.Close(); err != nil {
			slog.Error("Failed to close drafts file", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Error("Failed to close redis connection", "error", err)
		}
	}
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string, w io.Writer) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
