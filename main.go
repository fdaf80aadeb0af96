package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"human-or-ai-backend/handlers"
	"human-or-ai-backend/middleware"
	"human-or-ai-backend/models"
	"human-or-ai-backend/services"
	"human-or-ai-backend/utils"
	"human-or-ai-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "human-or-ai-backend",
	})

	// Gateway auth first, everything behind it when a token is set.
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Rate limiting: shared counters in Redis so every instance draws
	// from one budget; in-process fallback for single-node setups.
	var counterStore middleware.CounterStore
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL:", err)
		}
		counterStore = &middleware.RedisCounterStore{Client: redis.NewClient(opts)}
		log.Println("✅ Rate limiting backed by Redis")
	} else {
		log.Println("⚠️  REDIS_URL not set, rate-limit counters are process-local")
		counterStore = middleware.NewMemoryCounterStore()
	}
	app.Use(middleware.RateLimit(counterStore, envInt64("RATE_LIMIT_MAX", 120), time.Minute))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Category{},
		&models.Passage{},
		&models.GameSession{},
		&models.Guess{},
		&models.UserStats{},
		&models.SeedImport{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// One canonical lifecycle implementation; the auth policy is a
	// constructor parameter, not a per-request fork.
	policy := services.AuthAnonymousAllowed
	if os.Getenv("AUTH_POLICY") == "required" {
		policy = services.AuthRequired
	}
	sessionService := services.NewSessionService(db, policy)
	statsService := services.NewStatsService(db)

	sessionMaxAge := time.Duration(envInt64("SESSION_MAX_AGE_MINUTES", 120)) * time.Minute
	sessionService.StartSessionJanitor(sessionMaxAge)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if utils.R2Configured() {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		importer := workers.NewSeedImporter(db, utils.R2PackSource{})
		go workers.PollSeedPacks(ctx, importer, 5*time.Minute)
		log.Println("✅ Seed-pack importer polling R2 (every 5m)")
	} else {
		log.Println("⚠️  R2 not configured, passage seed import disabled")
	}

	handlers.SetupSessionRoutes(app, sessionService, statsService)
	handlers.SetupStatsRoutes(app, statsService)
	handlers.SetupHealthRoutes(app, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Auth policy: %s", policy)
	log.Printf("✅ Session janitor closing sessions idle > %s", sessionMaxAge)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		log.Printf("⚠️  %s is not a number, using default %d", key, fallback)
	}
	return fallback
}
