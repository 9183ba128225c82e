package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rohits-web03/meetingvault/internal/api"
	"github.com/rohits-web03/meetingvault/internal/api/handlers"
	"github.com/rohits-web03/meetingvault/internal/api/services"
	"github.com/rohits-web03/meetingvault/internal/config"
	"github.com/rohits-web03/meetingvault/internal/logger"
	"github.com/rohits-web03/meetingvault/internal/repositories"
)

// @title Meetingvault API
// @version 1.0
// @description Stores meeting recordings and transcripts in S3 with their metadata in a relational database.
// @BasePath /
func main() {
	app := fx.New(
		fx.Provide(
			loadConfig,
			logger.New,
			openDatabase,
			repositories.NewMeetingRepository,
			newObjectStore,
			newMeetingService,
			newMeetingHandler,
			api.NewRouter,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(runHTTP),
	)
	app.Run()
}

func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openDatabase(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := repositories.OpenDatabase(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return repositories.CloseDatabase(db)
		},
	})
	return db, nil
}

func newObjectStore(cfg config.Config) *repositories.ObjectStore {
	return repositories.NewObjectStoreFromConfig(cfg.S3)
}

func newMeetingService(objects *repositories.ObjectStore, store *repositories.MeetingRepository, cfg config.Config, log *zap.Logger) *services.MeetingService {
	return services.NewMeetingService(objects, store, log, services.Options{
		CompensateOnFailure:  cfg.CompensateOnFailure,
		DeleteAllConcurrency: cfg.DeleteAllConcurrency,
	})
}

func newMeetingHandler(svc *services.MeetingService, cfg config.Config, log *zap.Logger) *handlers.MeetingHandler {
	return handlers.NewMeetingHandler(svc, log, cfg.UploadMaxBytes)
}

func runHTTP(lc fx.Lifecycle, shutdowner fx.Shutdowner, handler http.Handler, cfg config.Config, log *zap.Logger) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: handler,
		// uploads of up to UPLOAD_MAX_BYTES must fit in the read timeout
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
			}
			log.Info("starting meetingvault server", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
			go func() {
				if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			log.Info("shutting down http server")
			err := server.Shutdown(shutdownCtx)
			_ = log.Sync()
			return err
		},
	})
}
