package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"game-match-system/handlers"
	"game-match-system/middleware"
	"game-match-system/models"
	"game-match-system/services"
	"game-match-system/utils"
	"game-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		ReadBufferSize: 16 * 1024, // websocket handshakes carry long query tokens
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		// Replays fall back to local disk without R2.
		log.Printf("⚠️  R2 not initialized, replay archive will use local storage: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ArenaUser{},
		&models.RatingRecord{},
		&models.Match{},
		&models.WalletMirror{},
		&models.StakeSettlement{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// --- External service clients ---
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	ledgerServiceURL := os.Getenv("LEDGER_SERVICE_URL")
	if ledgerServiceURL == "" {
		log.Fatal("LEDGER_SERVICE_URL environment variable not set")
	}
	matchServiceToken := os.Getenv("MATCH_SERVICE_TOKEN")
	if matchServiceToken == "" {
		log.Fatal("MATCH_SERVICE_TOKEN environment variable not set")
	}
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}

	authClient := services.NewAuthServiceClient(authServiceURL, matchServiceToken)
	ledgerClient := services.NewSettlementClient(ledgerServiceURL, matchServiceToken)

	// --- Core orchestration wiring ---
	registry := services.NewMatchRegistry()
	broadcaster := services.NewBroadcaster()
	userService := services.NewUserService(db)
	ratingService := services.NewRatingService(db)
	replayArchiver := services.NewReplayArchiver()
	loopService := services.NewLoopService(db, registry, broadcaster, ratingService, replayArchiver)
	coordinator := services.NewConnectionCoordinator(userService, loopService, broadcaster)
	matchmakingService := services.NewMatchmakingService(db, registry, loopService, broadcaster, coordinator, ledgerClient)
	queryService := services.NewMatchQueryService(db, registry)

	// --- Background workers ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identitySyncWorker := workers.NewIdentitySyncWorker(db, syncServiceURL, "/api/v1/public/profiles", matchServiceToken)
	identitySyncWorker.Start(ctx)

	walletSyncClient := workers.NewWalletSyncClient(db)
	go workers.PollWallets(ctx, walletSyncClient, 10*time.Second)

	settlementWorker := workers.NewSettlementWorker(db, ledgerClient)
	settlementWorker.Start(ctx)

	loopService.StartJanitor()

	// ✅ Setup routes — enforced Gateway auth + websocket arena
	handlers.SetupMatchRoutes(app, queryService, ratingService)
	handlers.SetupRealtimeRoutes(app, authClient, coordinator, matchmakingService, loopService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Identity Sync Worker running")
	log.Println("✅ Wallet polling running (every 10s)")
	log.Println("✅ Settlement Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
