package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "costing-service/internal/adapters/web"
	"costing-service/internal/ai"
	"costing-service/internal/app"
	"costing-service/internal/core"
	"costing-service/internal/costing"
	"costing-service/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	numberService := core.NewSheetNumberService(pool)
	rateCard := core.NewRateCard(pool)
	sheetService := core.NewCostSheetService(pool, numberService, rateCard)
	orderService := core.NewProductionOrderService(pool)
	reportingService := core.NewReportingService(pool)
	userService := core.NewUserService(pool)
	engine := costing.NewEngine(costing.DefaultPolicy())

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set")
	}
	agent := ai.NewAgent(apiKey)

	svc := app.NewAppService(pool, sheetService, orderService, reportingService, userService, engine, agent)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
