package main

import (
	"context"
	"log"
	"os"

	"costing-service/internal/core"
	"costing-service/internal/costing"
	"costing-service/internal/db"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a demo company with an admin user, a rate card, one costed polo
// style, and a production run with actuals. Safe to run once against an
// empty, migrated database.
func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	var companyID int
	err = pool.QueryRow(ctx, `
		INSERT INTO companies (company_code, name, base_currency)
		VALUES ('1000', 'Demo Garments Ltd', 'USD')
		ON CONFLICT (company_code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`).Scan(&companyID)
	if err != nil {
		log.Fatalf("seed company: %v", err)
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
		log.Println("SEED_ADMIN_PASSWORD not set, using default 'admin'")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (company_id, username, email, password_hash, role)
		VALUES ($1, 'admin', 'admin@example.com', $2, 'admin')
		ON CONFLICT (username) DO NOTHING
	`, companyID, string(hash))
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO rate_cards (company_id, section, default_rate, default_waste_percent, priority) VALUES
		($1, 'labor', 1.80, 0, 10),
		($1, 'packaging', 0.30, 2, 10),
		($1, 'trims', 0.05, 3, 10)
	`, companyID)
	if err != nil {
		log.Fatalf("seed rate cards: %v", err)
	}

	sheets := core.NewCostSheetService(pool, core.NewSheetNumberService(pool), core.NewRateCard(pool))
	orders := core.NewProductionOrderService(pool)

	sheet, err := sheets.CreateSheet(ctx, "1000", core.SheetInput{
		Style:               "POLO-CLASSIC-01",
		Description:         "Classic pique polo, 220gsm",
		TargetQuantity:      500,
		OverheadMethod:      costing.OverheadPercentOfLabor,
		TargetMarginPercent: decimal.RequireFromString("25"),
		Currency:            "USD",
	}, []core.LineInput{
		{Section: costing.SectionFabric, Name: "Pique 220gsm", ConsumptionPerPiece: decimal.RequireFromString("0.35"),
			Unit: "kg", WastePercent: decimal.RequireFromString("8"), Rate: decimal.RequireFromString("6.20")},
		{Section: costing.SectionTrims, Name: "Buttons", ConsumptionPerPiece: decimal.RequireFromString("3"), Unit: "pcs"},
		{Section: costing.SectionLabor, Name: "Cutting & sewing", ConsumptionPerPiece: decimal.RequireFromString("1"), Unit: "pcs"},
		{Section: costing.SectionOverhead, Name: "Factory overhead", ConsumptionPerPiece: decimal.RequireFromString("1"),
			Unit: "pcs", Rate: decimal.RequireFromString("40")},
		{Section: costing.SectionPackaging, Name: "Polybag & carton", ConsumptionPerPiece: decimal.RequireFromString("1"), Unit: "pcs"},
		{Section: costing.SectionOther, Name: "Embroidery setup", ConsumptionPerPiece: decimal.RequireFromString("0"),
			Unit: "lot", SetupCost: decimal.RequireFromString("150")},
	})
	if err != nil {
		log.Fatalf("seed cost sheet: %v", err)
	}
	if _, err := sheets.Approve(ctx, sheet.ID); err != nil {
		log.Fatalf("approve cost sheet: %v", err)
	}

	order, err := orders.CreateOrder(ctx, "1000", "POLO-CLASSIC-01", &sheet.ID, 500, "")
	if err != nil {
		log.Fatalf("seed production order: %v", err)
	}
	if _, err := orders.StartOrder(ctx, order.ID); err != nil {
		log.Fatalf("start production order: %v", err)
	}
	for _, in := range []core.ActualCostInput{
		{Section: costing.SectionFabric, Description: "Fabric mill invoice", ActualTotalCost: decimal.RequireFromString("1240.00")},
		{Section: costing.SectionTrims, Description: "Button supplier", ActualTotalCost: decimal.RequireFromString("82.50")},
		{Section: costing.SectionLabor, Description: "Line wages week 1", ActualTotalCost: decimal.RequireFromString("960.00")},
	} {
		if _, err := orders.RecordActualCost(ctx, order.ID, in); err != nil {
			log.Fatalf("seed actual cost: %v", err)
		}
	}

	log.Printf("seeded company 1000, cost sheet %d, production order %d", sheet.ID, order.ID)
	log.Println("login: admin /", password)
}
