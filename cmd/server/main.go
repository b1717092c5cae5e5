package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mapsmith/handlers"
	"mapsmith/internal/logging"
	"mapsmith/persistence"
)

func main() {
	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), "")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := openStorage(logger)
	if err != nil {
		logger.Fatal("failed to initialize persistence", zap.Error(err))
	}
	defer db.Close()

	logger.Info("persistence initialized successfully")

	clientManager := handlers.NewClientManager()
	server := handlers.NewServer(db, clientManager, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	clientManager.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// openStorage picks the backend from DB_TYPE: postgres, sqlite, or the JSON
// file store by default
func openStorage(logger *zap.Logger) (persistence.Storage, error) {
	switch os.Getenv("DB_TYPE") {
	case "postgres":
		dbConnectionString := os.Getenv("DATABASE_URL")
		if dbConnectionString == "" {
			dbConnectionString = "host=localhost user=mapsmith password=mapsmith dbname=mapsmith sslmode=disable"
		}
		logger.Info("using PostgreSQL persistence")
		return persistence.NewPostgresStore(dbConnectionString, logger)
	case "sqlite":
		dbFile := envOr("DB_FILE", "mapsmith.db")
		logger.Info("using SQLite persistence", zap.String("file", dbFile))
		return persistence.NewSQLiteStore(dbFile, logger)
	default:
		dbFile := envOr("DB_FILE", "db.json")
		logger.Info("using JSON persistence", zap.String("file", dbFile))
		return persistence.NewJSONStore(dbFile)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
