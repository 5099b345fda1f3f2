package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"costing-service/internal/costing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductionOrder is a manufacturing run for one style.
// Status progresses through the state machine:
//
//	DRAFT → IN_PROGRESS → COMPLETED
//	DRAFT → CANCELLED
type ProductionOrder struct {
	ID          int        `json:"id"`
	CompanyID   int        `json:"company_id"`
	OrderNumber string     `json:"order_number"`
	Style       string     `json:"style"`
	CostSheetID *int       `json:"cost_sheet_id,omitempty"` // the standard this run is costed against
	PlannedQty  int64      `json:"planned_qty"`
	ProducedQty int64      `json:"produced_qty"`
	Status      string     `json:"status"`
	StartDate   string     `json:"start_date"` // YYYY-MM-DD
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Run returns the engine-facing snapshot of this order.
func (o *ProductionOrder) Run() costing.ProductionRun {
	return costing.ProductionRun{ID: o.ID, ProducedQty: o.ProducedQty}
}

// ActualCostInput carries one actual-cost ledger entry to record.
type ActualCostInput struct {
	Section         costing.Section
	Description     string
	ActualTotalCost decimal.Decimal
	EntryDate       string // YYYY-MM-DD, defaults to today
}

// ProductionOrderService manages production orders and their append-only
// actual-cost ledger. Actual cost entries are immutable history: this service
// only ever inserts them, never updates or deletes.
type ProductionOrderService interface {
	GetOrder(ctx context.Context, orderID int) (*ProductionOrder, error)
	ListOrders(ctx context.Context, companyCode string, status *string) ([]ProductionOrder, error)

	// CreateOrder creates a DRAFT production order, optionally bound to an
	// approved cost sheet.
	CreateOrder(ctx context.Context, companyCode, style string, costSheetID *int, plannedQty int64, startDate string) (*ProductionOrder, error)

	// StartOrder transitions a DRAFT order to IN_PROGRESS.
	StartOrder(ctx context.Context, orderID int) (*ProductionOrder, error)

	// RecordActualCost appends an actual-cost entry to an IN_PROGRESS or
	// COMPLETED order's ledger.
	RecordActualCost(ctx context.Context, orderID int, in ActualCostInput) (*costing.ActualCostEntry, error)

	// CompleteOrder transitions an IN_PROGRESS order to COMPLETED and records
	// its final produced quantity.
	CompleteOrder(ctx context.Context, orderID int, producedQty int64) (*ProductionOrder, error)

	// GetActualCosts returns the full actual-cost ledger for an order in
	// insertion order.
	GetActualCosts(ctx context.Context, orderID int) ([]costing.ActualCostEntry, error)
}

type productionOrderService struct {
	pool *pgxpool.Pool
}

// NewProductionOrderService constructs a ProductionOrderService backed by PostgreSQL.
func NewProductionOrderService(pool *pgxpool.Pool) ProductionOrderService {
	return &productionOrderService{pool: pool}
}

const orderColumns = `id, company_id, order_number, style, cost_sheet_id, planned_qty, produced_qty,
	status, start_date::text, created_at, completed_at`

func scanOrder(row pgx.Row) (*ProductionOrder, error) {
	o := &ProductionOrder{}
	err := row.Scan(
		&o.ID, &o.CompanyID, &o.OrderNumber, &o.Style, &o.CostSheetID, &o.PlannedQty, &o.ProducedQty,
		&o.Status, &o.StartDate, &o.CreatedAt, &o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *productionOrderService) GetOrder(ctx context.Context, orderID int) (*ProductionOrder, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM production_orders WHERE id = $1", orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("production order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to fetch production order %d: %w", orderID, err)
	}
	return o, nil
}

func (s *productionOrderService) ListOrders(ctx context.Context, companyCode string, status *string) ([]ProductionOrder, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + orderColumns + " FROM production_orders WHERE company_id = $1"
	args := []any{companyID}
	if status != nil && *status != "" {
		args = append(args, *status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query production orders: %w", err)
	}
	defer rows.Close()

	var orders []ProductionOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan production order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (s *productionOrderService) CreateOrder(ctx context.Context, companyCode, style string, costSheetID *int, plannedQty int64, startDate string) (*ProductionOrder, error) {
	if style == "" {
		return nil, errors.New("production order must have a style")
	}
	if plannedQty < 0 {
		plannedQty = 0
	}
	if startDate == "" {
		startDate = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", startDate); err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}

	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	// A bound cost sheet must belong to the same company and be frozen —
	// costing a run against a still-editable standard makes variance
	// meaningless.
	if costSheetID != nil {
		var sheetCompanyID int
		var sheetStatus string
		err := s.pool.QueryRow(ctx,
			"SELECT company_id, status FROM cost_sheets WHERE id = $1", *costSheetID,
		).Scan(&sheetCompanyID, &sheetStatus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("cost sheet %d not found", *costSheetID)
			}
			return nil, fmt.Errorf("failed to check cost sheet %d: %w", *costSheetID, err)
		}
		if sheetCompanyID != companyID {
			return nil, fmt.Errorf("cost sheet %d belongs to another company", *costSheetID)
		}
		if sheetStatus == string(costing.SheetStatusDraft) {
			return nil, fmt.Errorf("cost sheet %d is still a draft; approve it before costing a production run against it", *costSheetID)
		}
	}

	var orderID int
	err = s.pool.QueryRow(ctx, `
		INSERT INTO production_orders (company_id, order_number, style, cost_sheet_id, planned_qty, produced_qty, status, start_date)
		VALUES ($1, 'PO-' || to_char(NOW(), 'YYYY') || '-' || nextval('production_order_number_seq'), $2, $3, $4, 0, 'DRAFT', $5)
		RETURNING id
	`, companyID, style, costSheetID, plannedQty, startDate).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert production order: %w", err)
	}

	return s.GetOrder(ctx, orderID)
}

func (s *productionOrderService) StartOrder(ctx context.Context, orderID int) (*ProductionOrder, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE production_orders SET status = 'IN_PROGRESS' WHERE id = $1 AND status = 'DRAFT'", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to start production order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("production order %d must be DRAFT to start", orderID)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *productionOrderService) RecordActualCost(ctx context.Context, orderID int, in ActualCostInput) (*costing.ActualCostEntry, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != "IN_PROGRESS" && order.Status != "COMPLETED" {
		return nil, fmt.Errorf("production order %d is %s; actual costs can only be recorded once it is in progress",
			orderID, order.Status)
	}

	section := in.Section
	if !section.IsValid() {
		section = costing.SectionOther
	}
	amount := in.ActualTotalCost
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	entryDate := in.EntryDate
	if entryDate == "" {
		entryDate = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", entryDate); err != nil {
		return nil, fmt.Errorf("invalid entry date %q: %w", entryDate, err)
	}

	e := &costing.ActualCostEntry{}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO actual_cost_entries (company_id, production_order_id, cost_sheet_id, section, description, actual_total_cost, entry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, company_id, production_order_id, cost_sheet_id, section, description, actual_total_cost, entry_date::text, created_at
	`, order.CompanyID, orderID, order.CostSheetID, string(section), in.Description, amount, entryDate,
	).Scan(&e.ID, &e.CompanyID, &e.ProductionOrderID, &e.CostSheetID, &e.Section, &e.Description,
		&e.ActualTotalCost, &e.EntryDate, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert actual cost entry: %w", err)
	}
	return e, nil
}

func (s *productionOrderService) CompleteOrder(ctx context.Context, orderID int, producedQty int64) (*ProductionOrder, error) {
	if producedQty < 0 {
		producedQty = 0
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE production_orders SET status = 'COMPLETED', produced_qty = $1, completed_at = NOW()
		WHERE id = $2 AND status = 'IN_PROGRESS'
	`, producedQty, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete production order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("production order %d must be IN_PROGRESS to complete", orderID)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *productionOrderService) GetActualCosts(ctx context.Context, orderID int) ([]costing.ActualCostEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, production_order_id, cost_sheet_id, section, description, actual_total_cost, entry_date::text, created_at
		FROM actual_cost_entries
		WHERE production_order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actual costs for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var entries []costing.ActualCostEntry
	for rows.Next() {
		var e costing.ActualCostEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.ProductionOrderID, &e.CostSheetID, &e.Section,
			&e.Description, &e.ActualTotalCost, &e.EntryDate, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan actual cost entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
