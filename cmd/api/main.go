package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/maercaestro/poc-data/internal/annotation"
	"github.com/maercaestro/poc-data/internal/catalog"
	"github.com/maercaestro/poc-data/internal/chat"
	"github.com/maercaestro/poc-data/internal/db"
	"github.com/maercaestro/poc-data/internal/gateway"
	"github.com/maercaestro/poc-data/internal/handoff"
	"github.com/maercaestro/poc-data/internal/storage"
	"github.com/maercaestro/poc-data/internal/vision"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {

	// ───────────────────────── ENV ─────────────────────────
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	required := []string{
		"DATABASE_URL",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"R2_ACCESS_KEY",
		"R2_SECRET_KEY",
		"R2_BUCKET_NAME",
		"R2_ENDPOINT",
		"R2_PUBLIC_BASE_URL",
	}

	for _, k := range required {
		if os.Getenv(k) == "" {
			log.Fatalf("❌ Missing env var: %s", k)
		}
	}

	catalogBase := os.Getenv("CATALOG_API_BASE")
	if catalogBase == "" {
		catalogBase = "http://localhost:8000"
	}

	// ───────────────────────── DB ─────────────────────────
	pgDB := db.ConnectPostgres()
	defer pgDB.Close()

	// ───────────────────────── GIN ─────────────────────────
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// ───────────────────────── STORAGE ─────────────────────────
	r2Client, err := storage.NewR2Client(context.Background())
	if err != nil {
		log.Fatal("❌ R2 init failed:", err)
	}

	// ───────────────────────── CATALOG SERVICE ─────────────────────────
	catalogRepo := catalog.NewPostgresRepository(pgDB)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(catalogService)

	api := r.Group("/api")
	{
		api.GET("/catalog/:source_id/page/:page", catalogHandler.GetPage)
		api.POST("/catalog/:source_id/page/:page/items", catalogHandler.CreateItem)
		api.PATCH("/item/:id", catalogHandler.UpdateItem)
		api.POST("/export/:source_id", catalogHandler.Export)
	}

	// ───────────────────────── VISION ─────────────────────────
	visionClient := vision.NewOpenAIClient()
	visionHandler := vision.NewHandler(visionClient, r2Client)

	api.POST("/vision/detect-items", visionHandler.DetectItems)

	// ───────────────────────── CHAT ─────────────────────────
	chatRepo := chat.NewPostgresRepository(pgDB)
	chatModel := chat.NewOpenAIClient()
	chatService := chat.NewService(chatRepo, chatModel)
	chatHandler := chat.NewHandler(chatService)

	api.POST("/chat/session", chatHandler.CreateSession)
	api.GET("/chat/session/:id/history", chatHandler.History)
	api.POST("/chat", chatHandler.Send)
	api.POST("/chat/menu", chatHandler.AttachMenu)

	// ───────────────────────── REVIEW SESSIONS ─────────────────────────
	gw := gateway.NewClient(catalogBase)
	manager := annotation.NewManager(gw)

	contextCache := handoff.NewPostgresCache(pgDB)
	handoffService := handoff.NewService(contextCache, chatService)

	reviewHandler := annotation.NewHandler(manager, handoffService)

	review := api.Group("/review/:source_id/page/:page")
	{
		review.POST("/start", reviewHandler.Start)
		review.GET("", reviewHandler.List)
		review.POST("/items", reviewHandler.AddManual)
		review.PATCH("/items/:id", reviewHandler.Save)
		review.POST("/items/:id/verify", reviewHandler.Verify)
		review.POST("/bulk-verify", reviewHandler.BulkVerify)
		review.POST("/export", reviewHandler.Export)
		review.POST("/handoff", reviewHandler.Handoff)
	}

	// ───────────────────────── HEALTH ─────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ───────────────────────── START ─────────────────────────
	log.Println("🚀 API running at http://localhost:8000")
	r.Run(":8000")
}
