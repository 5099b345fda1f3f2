package core_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"costing-service/internal/core"
	"costing-service/internal/costing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE actual_cost_entries, production_orders, cost_sheet_lines, cost_sheets,
			sheet_sequences, rate_cards, users, companies CASCADE;
		ALTER SEQUENCE production_order_number_seq RESTART WITH 1;

		INSERT INTO companies (id, company_code, name, base_currency) VALUES (1, '1000', 'Test Garments', 'USD');

		INSERT INTO rate_cards (company_id, section, default_rate, default_waste_percent, priority) VALUES
		(1, 'labor', '0.05', '0', 10),
		(1, 'packaging', '0.30', '2', 10);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func newSheetService(pool *pgxpool.Pool) core.CostSheetService {
	return core.NewCostSheetService(pool, core.NewSheetNumberService(pool), core.NewRateCard(pool))
}

func poloHeader() core.SheetInput {
	return core.SheetInput{
		Style:               "POLO-CLASSIC-01",
		Description:         "Classic pique polo",
		TargetQuantity:      100,
		OverheadMethod:      costing.OverheadPercentOfLabor,
		TargetMarginPercent: decimal.RequireFromString("25"),
		Currency:            "USD",
	}
}

func poloLines() []core.LineInput {
	return []core.LineInput{
		{Section: costing.SectionFabric, Name: "Pique 220gsm", ConsumptionPerPiece: decimal.RequireFromString("1.0"),
			Unit: "kg", WastePercent: decimal.RequireFromString("10"), Rate: decimal.RequireFromString("5.00")},
		{Section: costing.SectionLabor, Name: "Sewing", ConsumptionPerPiece: decimal.RequireFromString("1"),
			Unit: "pcs", Rate: decimal.RequireFromString("2.00")},
		{Section: costing.SectionOverhead, Name: "Factory overhead", ConsumptionPerPiece: decimal.RequireFromString("1"),
			Unit: "pcs", Rate: decimal.RequireFromString("50")},
	}
}

func TestCostSheetService_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newSheetService(pool)
	ctx := context.Background()

	// 1. Create a draft sheet with lines
	sheet, err := svc.CreateSheet(ctx, "1000", poloHeader(), poloLines())
	if err != nil {
		t.Fatalf("CreateSheet failed: %v", err)
	}
	if sheet.Status != costing.SheetStatusDraft || sheet.Version != 1 {
		t.Fatalf("expected DRAFT v1, got %s v%d", sheet.Status, sheet.Version)
	}
	if sheet.SheetNumber != nil {
		t.Fatalf("draft sheet must not carry a sheet number, got %q", *sheet.SheetNumber)
	}

	// 2. Approve assigns the gapless number and freezes the sheet
	approved, err := svc.Approve(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	wantNumber := fmt.Sprintf("CS-%d-00001", time.Now().Year())
	if approved.SheetNumber == nil || *approved.SheetNumber != wantNumber {
		t.Errorf("expected sheet number %s, got %v", wantNumber, approved.SheetNumber)
	}
	if approved.ApprovedAt == nil {
		t.Error("expected approved_at to be set")
	}

	// 3. All mutations on a frozen sheet must be rejected
	if _, err := svc.UpdateHeader(ctx, sheet.ID, poloHeader()); err == nil {
		t.Error("expected UpdateHeader on approved sheet to fail")
	}
	if _, err := svc.AddLine(ctx, sheet.ID, poloLines()[0]); err == nil {
		t.Error("expected AddLine on approved sheet to fail")
	}
	_, lines, err := svc.GetSheet(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("GetSheet failed: %v", err)
	}
	if _, err := svc.UpdateLine(ctx, sheet.ID, lines[0].ID, poloLines()[0]); err == nil {
		t.Error("expected UpdateLine on approved sheet to fail")
	}
	if err := svc.DeleteLine(ctx, sheet.ID, lines[0].ID); err == nil {
		t.Error("expected DeleteLine on approved sheet to fail")
	}

	// 4. Lock is terminal and only valid from APPROVED
	locked, err := svc.Lock(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if locked.Status != costing.SheetStatusLocked || locked.LockedAt == nil {
		t.Errorf("expected LOCKED with locked_at, got %s", locked.Status)
	}
	if _, err := svc.Lock(ctx, sheet.ID); err == nil {
		t.Error("expected second Lock to fail")
	}

	// 5. NewVersion duplicates header and lines into a fresh draft
	v2, err := svc.NewVersion(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("NewVersion failed: %v", err)
	}
	if v2.Version != 2 || v2.Status != costing.SheetStatusDraft {
		t.Errorf("expected DRAFT v2, got %s v%d", v2.Status, v2.Version)
	}
	if v2.ParentSheetID == nil || *v2.ParentSheetID != sheet.ID {
		t.Errorf("expected parent_sheet_id %d, got %v", sheet.ID, v2.ParentSheetID)
	}
	if v2.SheetNumber != nil {
		t.Error("new version must start without a sheet number")
	}
	_, v2Lines, err := svc.GetSheet(ctx, v2.ID)
	if err != nil {
		t.Fatalf("GetSheet(v2) failed: %v", err)
	}
	if len(v2Lines) != len(lines) {
		t.Fatalf("expected %d copied lines, got %d", len(lines), len(v2Lines))
	}
	for i := range lines {
		if v2Lines[i].Name != lines[i].Name || !v2Lines[i].Rate.Equal(lines[i].Rate) {
			t.Errorf("line %d not copied faithfully: got %s/%s, want %s/%s",
				i+1, v2Lines[i].Name, v2Lines[i].Rate, lines[i].Name, lines[i].Rate)
		}
	}

	// 6. The new draft is editable again
	if _, err := svc.AddLine(ctx, v2.ID, core.LineInput{
		Section: costing.SectionPackaging, Name: "Polybag",
		ConsumptionPerPiece: decimal.RequireFromString("1"), Unit: "pcs",
		Rate: decimal.RequireFromString("0.10"),
	}); err != nil {
		t.Errorf("AddLine on new draft failed: %v", err)
	}

	// 7. A draft sheet cannot spawn versions
	if _, err := svc.NewVersion(ctx, v2.ID); err == nil {
		t.Error("expected NewVersion on draft sheet to fail")
	}
}

func TestCostSheetService_ApproveRequiresLines(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newSheetService(pool)
	ctx := context.Background()

	sheet, err := svc.CreateSheet(ctx, "1000", poloHeader(), nil)
	if err != nil {
		t.Fatalf("CreateSheet failed: %v", err)
	}
	if _, err := svc.Approve(ctx, sheet.ID); err == nil {
		t.Error("expected approval of an empty sheet to fail")
	}
}

func TestCostSheetService_RateCardDefaults(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newSheetService(pool)
	ctx := context.Background()

	sheet, err := svc.CreateSheet(ctx, "1000", poloHeader(), nil)
	if err != nil {
		t.Fatalf("CreateSheet failed: %v", err)
	}

	// Zero rate on a section with a card entry gets the default filled in.
	line, err := svc.AddLine(ctx, sheet.ID, core.LineInput{
		Section: costing.SectionPackaging, Name: "Carton",
		ConsumptionPerPiece: decimal.RequireFromString("0.05"), Unit: "pcs",
	})
	if err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	if !line.Rate.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("expected rate 0.30 from rate card, got %s", line.Rate)
	}
	if !line.WastePercent.Equal(decimal.RequireFromString("2")) {
		t.Errorf("expected waste 2 from rate card, got %s", line.WastePercent)
	}

	// An explicit rate wins over the card.
	line, err = svc.AddLine(ctx, sheet.ID, core.LineInput{
		Section: costing.SectionPackaging, Name: "Premium carton",
		ConsumptionPerPiece: decimal.RequireFromString("0.05"), Unit: "pcs",
		Rate: decimal.RequireFromString("0.80"),
	})
	if err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	if !line.Rate.Equal(decimal.RequireFromString("0.80")) {
		t.Errorf("expected explicit rate 0.80, got %s", line.Rate)
	}

	// No card entry for the section: the zero rate stands.
	line, err = svc.AddLine(ctx, sheet.ID, core.LineInput{
		Section: costing.SectionTrims, Name: "Buttons",
		ConsumptionPerPiece: decimal.RequireFromString("3"), Unit: "pcs",
	})
	if err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}
	if !line.Rate.IsZero() {
		t.Errorf("expected zero rate without card entry, got %s", line.Rate)
	}
}

func TestSheetNumberService_ConcurrentApprovalsAreGapless(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newSheetService(pool)
	ctx := context.Background()

	// 1. Create 10 draft sheets
	var sheetIDs []int
	for i := 0; i < 10; i++ {
		header := poloHeader()
		header.Style = fmt.Sprintf("STYLE-%02d", i)
		sheet, err := svc.CreateSheet(ctx, "1000", header, poloLines())
		if err != nil {
			t.Fatalf("failed to create draft sheet: %v", err)
		}
		sheetIDs = append(sheetIDs, sheet.ID)
	}

	// 2. Approve them all concurrently
	var wg sync.WaitGroup
	errCh := make(chan error, len(sheetIDs))
	for _, id := range sheetIDs {
		wg.Add(1)
		go func(sheetID int) {
			defer wg.Done()
			if _, err := svc.Approve(ctx, sheetID); err != nil {
				errCh <- err
			}
		}(id)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent approve error: %v", err)
	}

	// 3. Numbers must be unique and contiguous 1..10
	rows, err := pool.Query(ctx,
		"SELECT sheet_number FROM cost_sheets WHERE sheet_number IS NOT NULL ORDER BY sheet_number")
	if err != nil {
		t.Fatalf("failed to query sheet numbers: %v", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if seen[n] {
			t.Errorf("duplicate sheet number %s", n)
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	if len(numbers) != 10 {
		t.Fatalf("expected 10 numbered sheets, got %d", len(numbers))
	}
	prefix := fmt.Sprintf("CS-%d-", time.Now().Year())
	for i, n := range numbers {
		want := fmt.Sprintf("%s%05d", prefix, i+1)
		if n != want {
			t.Errorf("gap in sequence: position %d has %s, want %s", i, n, want)
		}
	}
	if !strings.HasPrefix(numbers[0], prefix) {
		t.Errorf("unexpected number format %s", numbers[0])
	}
}
