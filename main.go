package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/catalog"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/nudge"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/occupancy"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/prediction"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/jobs"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
	"github.com/YongWoo-8933/Cafejari-Server/internal/server"
	"github.com/YongWoo-8933/Cafejari-Server/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	// Initialize logger
	if err := logger.Init(zapcore.InfoLevel, zap.String("service", "cafejari-server")); err != nil {
		return err
	}
	zlog := logger.Log
	defer zlog.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize observability
	otelShutdown, err := server.InitObservability("cafejari-server", ":9092", zlog)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			zlog.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	// Create server
	srv, err := server.New(cfg, zlog)
	if err != nil {
		return err
	}
	defer srv.Close()

	// Setup router
	router := server.SetupRouter(srv.GetDBPool(), cfg, zlog)
	srv.SetRouter(router)

	// Start background jobs
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	scheduler := setupJobs(srv, cfg, zlog)
	scheduler.Start(jobsCtx)

	// Start pprof server (on separate port, not exposed publicly)
	server.StartPprofServer(":6060")

	// Create HTTP server
	httpServer := srv.HTTPServer()

	// Setup graceful shutdown
	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, zlog, done)

	// Start server
	zlog.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil {
		zlog.Error("Server error", zap.Error(err))
	}

	// Wait for graceful shutdown to complete, then stop the jobs
	<-done
	stopJobs()
	scheduler.Wait()
	zlog.Info("Graceful shutdown complete")

	return nil
}

// setupJobs registers the prediction engine, the activity nudger and the
// congestion refresher on one scheduler.
func setupJobs(srv *server.Server, cfg *config.Config, logger *zap.Logger) *jobs.Scheduler {
	dbPool := srv.GetDBPool()

	catalogRepo := catalog.NewRepository(dbPool, logger)
	occupancyRepo := occupancy.NewRepository(dbPool, logger)
	predictionRepo := prediction.NewRepository(dbPool, cfg.Timezone, logger)
	nudgeRepo := nudge.NewRepository(dbPool, logger)

	scheduler := jobs.NewScheduler(logger)

	engine := prediction.NewEngine(predictionRepo, catalogRepo, cfg.Prediction, cfg.Timezone, logger)
	scheduler.Register(engine, cfg.Prediction.Interval)

	if cfg.Nudge.PushURL != "" {
		sender := nudge.NewHTTPSender(cfg.Nudge.PushURL, cfg.Nudge.PushTimeout, logger)
		nudger := nudge.NewNudger(nudgeRepo, occupancyRepo, sender, cfg.Occupancy, cfg.Nudge, logger)
		scheduler.Register(nudger, cfg.Nudge.Interval)
	} else {
		logger.Warn("NUDGE_PUSH_URL not set, activity nudger disabled")
	}

	if cfg.Congestion.APIKey != "" {
		refresher := catalog.NewCongestionRefresher(catalogRepo, cfg.Congestion, logger)
		scheduler.Register(refresher, cfg.Congestion.Interval)
	} else {
		logger.Warn("SEOUL_CITY_DATA_API_KEY not set, congestion refresher disabled")
	}

	return scheduler
}
