package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/calmwave/calmwave/config"
	"github.com/calmwave/calmwave/internal/api/handlers"
	"github.com/calmwave/calmwave/internal/api/middleware"
	"github.com/calmwave/calmwave/internal/api/routes"
	"github.com/calmwave/calmwave/internal/audiostore"
	"github.com/calmwave/calmwave/internal/cache"
	"github.com/calmwave/calmwave/internal/denoise"
	"github.com/calmwave/calmwave/internal/events"
	"github.com/calmwave/calmwave/internal/logger"
	mongorepo "github.com/calmwave/calmwave/internal/repositories/mongo"
	pgrepo "github.com/calmwave/calmwave/internal/repositories/postgres"
	"github.com/calmwave/calmwave/internal/services"
	"github.com/calmwave/calmwave/internal/storage"
	"github.com/calmwave/calmwave/internal/workers"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New()

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	logg.Info("MongoDB connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	logg.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	logg.Info("Redis connected")

	pipe := config.LoadPipeline()

	payloads, err := audiostore.New(pipe.UploadDir)
	if err != nil {
		log.Fatalf("upload dir error: %v", err)
	}

	var artifacts storage.Store
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		gcs, err := storage.NewGCSStore(context.Background(), bucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		artifacts = gcs
	} else {
		local, err := storage.NewLocalStore(pipe.ProcessedDir)
		if err != nil {
			log.Fatalf("processed dir error: %v", err)
		}
		artifacts = local
	}

	db := config.MongoDatabase()
	sessions := mongorepo.NewSessionRepo(db)
	chunks := mongorepo.NewChunkRepo(db)

	users := pgrepo.NewUserRepo(config.PostgresDB)
	presets := pgrepo.NewNoisePresetRepo(config.PostgresDB)
	tickets := pgrepo.NewSupportTicketRepo(config.PostgresDB)

	locks := services.NewSessionLocks()
	pub := events.NewRedisPublisher(config.RedisClient)
	rc := cache.NewRedisCache(config.RedisClient)
	trigger := workers.NewRedisTrigger(config.RedisClient)
	enhancer := denoise.NewHTTPEnhancer(pipe.DenoiseURL, pipe.DenoiseTimeout)

	ingestSvc := services.NewIngestService(sessions, chunks, payloads, trigger, locks, pub, rc, logg)
	processingSvc := services.NewProcessingService(sessions, chunks, payloads, enhancer, artifacts, locks, pub, rc, logg, pipe.DenoiseTimeout)
	sessionSvc := services.NewSessionService(sessions, chunks, payloads, artifacts, locks, pub, rc, logg)
	userSvc := services.NewUserService(users, logg)
	noiseSvc := services.NewNoisePresetService(presets)
	supportSvc := services.NewSupportTicketService(tickets)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := &workers.ProcessingWorkerPool{
		Redis:      config.RedisClient,
		Processor:  processingSvc,
		NumWorkers: pipe.WorkerCount,
		Logger:     logg,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("worker pool error: %v", err)
	}
	logg.WithField("workers", pipe.WorkerCount).Info("processing workers started")

	r := gin.New()
	r.Use(middleware.RequestLogger(logg), gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Ingest:  handlers.NewIngestHandler(ingestSvc),
		Audio:   handlers.NewAudioHandler(sessionSvc),
		User:    handlers.NewUserHandler(userSvc),
		Noise:   handlers.NewNoiseHandler(noiseSvc),
		Support: handlers.NewSupportHandler(supportSvc),
		WS:      handlers.NewWSHandler(sessionSvc, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
