package core

import (
	"context"
	"errors"
	"fmt"

	"costing-service/internal/costing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SheetInput carries the editable header fields of a cost sheet.
type SheetInput struct {
	Style               string
	Description         string
	TargetQuantity      int64
	OverheadMethod      costing.OverheadMethod
	TargetMarginPercent decimal.Decimal
	QuotePricePerPiece  decimal.Decimal
	Currency            string
}

// LineInput carries the editable fields of a cost line item.
// A zero Rate is filled from the company rate card when a default exists.
type LineInput struct {
	Section             costing.Section
	Name                string
	ConsumptionPerPiece decimal.Decimal
	Unit                string
	WastePercent        decimal.Decimal
	Rate                decimal.Decimal
	SetupCost           decimal.Decimal
}

// CostSheetService manages cost sheet and line item persistence.
//
// The no-edits-after-lock invariant is enforced here, at the data-access
// boundary: every mutation locks the sheet row and fails when the sheet is
// APPROVED or LOCKED. Frozen sheets change only by spawning a new version.
type CostSheetService interface {
	GetSheet(ctx context.Context, sheetID int) (*costing.CostSheet, []costing.CostLineItem, error)
	ListSheets(ctx context.Context, companyCode string, status *string) ([]costing.CostSheet, error)

	// CreateSheet creates a new DRAFT version-1 sheet with its lines in one
	// transaction. Lines without a rate are filled from the rate card.
	CreateSheet(ctx context.Context, companyCode string, header SheetInput, lines []LineInput) (*costing.CostSheet, error)

	// UpdateHeader replaces the editable header fields of a DRAFT sheet.
	UpdateHeader(ctx context.Context, sheetID int, header SheetInput) (*costing.CostSheet, error)

	AddLine(ctx context.Context, sheetID int, line LineInput) (*costing.CostLineItem, error)
	UpdateLine(ctx context.Context, sheetID, lineID int, line LineInput) (*costing.CostLineItem, error)
	DeleteLine(ctx context.Context, sheetID, lineID int) error

	// Approve freezes a DRAFT sheet and assigns its gapless sheet number.
	Approve(ctx context.Context, sheetID int) (*costing.CostSheet, error)

	// Lock transitions an APPROVED sheet to LOCKED (terminal).
	Lock(ctx context.Context, sheetID int) (*costing.CostSheet, error)

	// NewVersion duplicates a frozen sheet (header + lines) into a fresh
	// DRAFT with version+1, linked to its parent.
	NewVersion(ctx context.Context, sheetID int) (*costing.CostSheet, error)
}

type costSheetService struct {
	pool      *pgxpool.Pool
	numberSvc SheetNumberService
	rateCard  RateCard
}

// NewCostSheetService constructs a CostSheetService backed by PostgreSQL.
func NewCostSheetService(pool *pgxpool.Pool, numberSvc SheetNumberService, rateCard RateCard) CostSheetService {
	return &costSheetService{pool: pool, numberSvc: numberSvc, rateCard: rateCard}
}

const sheetColumns = `id, company_id, style, description, version, parent_sheet_id, sheet_number,
	status, target_quantity, overhead_method, target_margin_percent, quote_price_per_piece,
	currency, created_at, approved_at, locked_at`

const lineColumns = `id, sheet_id, line_number, section, name, consumption_per_piece, unit,
	waste_percent, rate, setup_cost, created_at`

func scanSheet(row pgx.Row) (*costing.CostSheet, error) {
	s := &costing.CostSheet{}
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.Style, &s.Description, &s.Version, &s.ParentSheetID, &s.SheetNumber,
		&s.Status, &s.TargetQuantity, &s.OverheadMethod, &s.TargetMarginPercent, &s.QuotePricePerPiece,
		&s.Currency, &s.CreatedAt, &s.ApprovedAt, &s.LockedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *costSheetService) GetSheet(ctx context.Context, sheetID int) (*costing.CostSheet, []costing.CostLineItem, error) {
	sheet, err := scanSheet(s.pool.QueryRow(ctx,
		"SELECT "+sheetColumns+" FROM cost_sheets WHERE id = $1", sheetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("cost sheet %d not found", sheetID)
		}
		return nil, nil, fmt.Errorf("failed to fetch cost sheet %d: %w", sheetID, err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+lineColumns+" FROM cost_sheet_lines WHERE sheet_id = $1 ORDER BY line_number, id", sheetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query lines for sheet %d: %w", sheetID, err)
	}
	defer rows.Close()

	var lines []costing.CostLineItem
	for rows.Next() {
		var l costing.CostLineItem
		if err := rows.Scan(
			&l.ID, &l.SheetID, &l.LineNumber, &l.Section, &l.Name, &l.ConsumptionPerPiece, &l.Unit,
			&l.WastePercent, &l.Rate, &l.SetupCost, &l.CreatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return sheet, lines, nil
}

func (s *costSheetService) ListSheets(ctx context.Context, companyCode string, status *string) ([]costing.CostSheet, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + sheetColumns + " FROM cost_sheets WHERE company_id = $1"
	args := []any{companyID}
	if status != nil && *status != "" {
		args = append(args, *status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY style, version DESC, id DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost sheets: %w", err)
	}
	defer rows.Close()

	var sheets []costing.CostSheet
	for rows.Next() {
		sheet, err := scanSheet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost sheet: %w", err)
		}
		sheets = append(sheets, *sheet)
	}
	return sheets, nil
}

// ── Writes ────────────────────────────────────────────────────────────────────

func (s *costSheetService) CreateSheet(ctx context.Context, companyCode string, header SheetInput, lines []LineInput) (*costing.CostSheet, error) {
	if header.Style == "" {
		return nil, errors.New("cost sheet must have a style")
	}

	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sheet := header.normalized()
	var sheetID int
	err = tx.QueryRow(ctx, `
		INSERT INTO cost_sheets (company_id, style, description, version, status, target_quantity,
			overhead_method, target_margin_percent, quote_price_per_piece, currency)
		VALUES ($1, $2, $3, 1, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, companyID, sheet.Style, sheet.Description, string(costing.SheetStatusDraft), sheet.TargetQuantity,
		string(sheet.OverheadMethod), sheet.TargetMarginPercent, sheet.QuotePricePerPiece, sheet.Currency,
	).Scan(&sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cost sheet: %w", err)
	}

	for i, in := range lines {
		if err := s.insertLine(ctx, tx, companyID, sheetID, i+1, in); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cost sheet: %w", err)
	}

	created, _, err := s.GetSheet(ctx, sheetID)
	return created, err
}

func (s *costSheetService) UpdateHeader(ctx context.Context, sheetID int, header SheetInput) (*costing.CostSheet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockDraftSheet(ctx, tx, sheetID); err != nil {
		return nil, err
	}

	sheet := header.normalized()
	_, err = tx.Exec(ctx, `
		UPDATE cost_sheets
		SET style = $1, description = $2, target_quantity = $3, overhead_method = $4,
		    target_margin_percent = $5, quote_price_per_piece = $6, currency = $7
		WHERE id = $8
	`, sheet.Style, sheet.Description, sheet.TargetQuantity, string(sheet.OverheadMethod),
		sheet.TargetMarginPercent, sheet.QuotePricePerPiece, sheet.Currency, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to update cost sheet %d: %w", sheetID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit header update: %w", err)
	}

	updated, _, err := s.GetSheet(ctx, sheetID)
	return updated, err
}

func (s *costSheetService) AddLine(ctx context.Context, sheetID int, line LineInput) (*costing.CostLineItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sheet, err := lockDraftSheet(ctx, tx, sheetID)
	if err != nil {
		return nil, err
	}

	var nextLine int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(line_number), 0) + 1 FROM cost_sheet_lines WHERE sheet_id = $1", sheetID,
	).Scan(&nextLine); err != nil {
		return nil, fmt.Errorf("failed to compute next line number: %w", err)
	}

	if err := s.insertLine(ctx, tx, sheet.CompanyID, sheetID, nextLine, line); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit line insert: %w", err)
	}
	return s.fetchLine(ctx, sheetID, nextLine)
}

func (s *costSheetService) UpdateLine(ctx context.Context, sheetID, lineID int, line LineInput) (*costing.CostLineItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockDraftSheet(ctx, tx, sheetID); err != nil {
		return nil, err
	}

	in := line.normalized()
	tag, err := tx.Exec(ctx, `
		UPDATE cost_sheet_lines
		SET section = $1, name = $2, consumption_per_piece = $3, unit = $4,
		    waste_percent = $5, rate = $6, setup_cost = $7
		WHERE id = $8 AND sheet_id = $9
	`, string(in.Section), in.Name, in.ConsumptionPerPiece, in.Unit,
		in.WastePercent, in.Rate, in.SetupCost, lineID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to update line %d: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("line %d not found on sheet %d", lineID, sheetID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit line update: %w", err)
	}

	l := &costing.CostLineItem{}
	err = s.pool.QueryRow(ctx,
		"SELECT "+lineColumns+" FROM cost_sheet_lines WHERE id = $1", lineID,
	).Scan(&l.ID, &l.SheetID, &l.LineNumber, &l.Section, &l.Name, &l.ConsumptionPerPiece, &l.Unit,
		&l.WastePercent, &l.Rate, &l.SetupCost, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch line %d: %w", lineID, err)
	}
	return l, nil
}

func (s *costSheetService) DeleteLine(ctx context.Context, sheetID, lineID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockDraftSheet(ctx, tx, sheetID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, "DELETE FROM cost_sheet_lines WHERE id = $1 AND sheet_id = $2", lineID, sheetID)
	if err != nil {
		return fmt.Errorf("failed to delete line %d: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line %d not found on sheet %d", lineID, sheetID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit line delete: %w", err)
	}
	return nil
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func (s *costSheetService) Approve(ctx context.Context, sheetID int) (*costing.CostSheet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sheet, err := lockDraftSheet(ctx, tx, sheetID)
	if err != nil {
		return nil, err
	}

	var lineCount int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM cost_sheet_lines WHERE sheet_id = $1", sheetID,
	).Scan(&lineCount); err != nil {
		return nil, fmt.Errorf("failed to count lines: %w", err)
	}
	if lineCount == 0 {
		return nil, fmt.Errorf("cost sheet %d has no line items to approve", sheetID)
	}

	number, err := s.numberSvc.NextSheetNumberTx(ctx, tx, sheet.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign sheet number: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE cost_sheets SET status = $1, sheet_number = $2, approved_at = NOW() WHERE id = $3
	`, string(costing.SheetStatusApproved), number, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to approve cost sheet %d: %w", sheetID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	approved, _, err := s.GetSheet(ctx, sheetID)
	return approved, err
}

func (s *costSheetService) Lock(ctx context.Context, sheetID int) (*costing.CostSheet, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cost_sheets SET status = $1, locked_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(costing.SheetStatusLocked), sheetID, string(costing.SheetStatusApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to lock cost sheet %d: %w", sheetID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("cost sheet %d must be APPROVED to be locked", sheetID)
	}

	locked, _, err := s.GetSheet(ctx, sheetID)
	return locked, err
}

func (s *costSheetService) NewVersion(ctx context.Context, sheetID int) (*costing.CostSheet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sheet, err := scanSheet(tx.QueryRow(ctx,
		"SELECT "+sheetColumns+" FROM cost_sheets WHERE id = $1 FOR UPDATE", sheetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cost sheet %d not found", sheetID)
		}
		return nil, fmt.Errorf("failed to fetch cost sheet %d: %w", sheetID, err)
	}
	if !sheet.IsFrozen() {
		return nil, fmt.Errorf("cost sheet %d is still editable; new versions spawn only from approved or locked sheets", sheetID)
	}

	var maxVersion int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM cost_sheets WHERE company_id = $1 AND style = $2",
		sheet.CompanyID, sheet.Style,
	).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("failed to resolve latest version: %w", err)
	}

	var newID int
	err = tx.QueryRow(ctx, `
		INSERT INTO cost_sheets (company_id, style, description, version, parent_sheet_id, status,
			target_quantity, overhead_method, target_margin_percent, quote_price_per_piece, currency)
		SELECT company_id, style, description, $1, id, $2,
			target_quantity, overhead_method, target_margin_percent, quote_price_per_piece, currency
		FROM cost_sheets WHERE id = $3
		RETURNING id
	`, maxVersion+1, string(costing.SheetStatusDraft), sheetID).Scan(&newID)
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate cost sheet %d: %w", sheetID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cost_sheet_lines (sheet_id, line_number, section, name, consumption_per_piece,
			unit, waste_percent, rate, setup_cost)
		SELECT $1, line_number, section, name, consumption_per_piece, unit, waste_percent, rate, setup_cost
		FROM cost_sheet_lines WHERE sheet_id = $2
	`, newID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate lines of sheet %d: %w", sheetID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit new version: %w", err)
	}

	version, _, err := s.GetSheet(ctx, newID)
	return version, err
}

// ── helpers ───────────────────────────────────────────────────────────────────

// lockDraftSheet locks the sheet row and rejects mutations on frozen sheets.
func lockDraftSheet(ctx context.Context, tx pgx.Tx, sheetID int) (*costing.CostSheet, error) {
	sheet, err := scanSheet(tx.QueryRow(ctx,
		"SELECT "+sheetColumns+" FROM cost_sheets WHERE id = $1 FOR UPDATE", sheetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cost sheet %d not found", sheetID)
		}
		return nil, fmt.Errorf("failed to lock cost sheet %d: %w", sheetID, err)
	}
	if sheet.IsFrozen() {
		return nil, fmt.Errorf("cost sheet %d is %s and cannot be edited; create a new version instead",
			sheetID, sheet.Status)
	}
	return sheet, nil
}

// insertLine normalizes a line, fills a missing rate from the rate card, and
// inserts it with the given line number.
func (s *costSheetService) insertLine(ctx context.Context, tx pgx.Tx, companyID, sheetID, lineNumber int, in LineInput) error {
	line := in.normalized()

	if line.Rate.IsZero() && s.rateCard != nil {
		if def, err := s.rateCard.ResolveDefaults(ctx, companyID, line.Section); err == nil {
			line.Rate = def.Rate
			if line.WastePercent.IsZero() {
				line.WastePercent = def.WastePercent
			}
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO cost_sheet_lines (sheet_id, line_number, section, name, consumption_per_piece,
			unit, waste_percent, rate, setup_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sheetID, lineNumber, string(line.Section), line.Name, line.ConsumptionPerPiece,
		line.Unit, line.WastePercent, line.Rate, line.SetupCost)
	if err != nil {
		return fmt.Errorf("failed to insert line %d on sheet %d: %w", lineNumber, sheetID, err)
	}
	return nil
}

func (s *costSheetService) fetchLine(ctx context.Context, sheetID, lineNumber int) (*costing.CostLineItem, error) {
	l := &costing.CostLineItem{}
	err := s.pool.QueryRow(ctx,
		"SELECT "+lineColumns+" FROM cost_sheet_lines WHERE sheet_id = $1 AND line_number = $2", sheetID, lineNumber,
	).Scan(&l.ID, &l.SheetID, &l.LineNumber, &l.Section, &l.Name, &l.ConsumptionPerPiece, &l.Unit,
		&l.WastePercent, &l.Rate, &l.SetupCost, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch line %d of sheet %d: %w", lineNumber, sheetID, err)
	}
	return l, nil
}

// normalized maps a header input onto a sheet with invalid numerics coerced.
func (in SheetInput) normalized() costing.CostSheet {
	sheet := costing.CostSheet{
		Style:               in.Style,
		Description:         in.Description,
		TargetQuantity:      in.TargetQuantity,
		OverheadMethod:      in.OverheadMethod,
		TargetMarginPercent: in.TargetMarginPercent,
		QuotePricePerPiece:  in.QuotePricePerPiece,
		Currency:            in.Currency,
	}
	sheet.Normalize()
	if sheet.Currency == "" {
		sheet.Currency = "USD"
	}
	return sheet
}

// normalized maps a line input onto a line item with invalid values coerced.
func (in LineInput) normalized() costing.CostLineItem {
	line := costing.CostLineItem{
		Section:             in.Section,
		Name:                in.Name,
		ConsumptionPerPiece: in.ConsumptionPerPiece,
		Unit:                in.Unit,
		WastePercent:        in.WastePercent,
		Rate:                in.Rate,
		SetupCost:           in.SetupCost,
	}
	line.Normalize()
	return line
}

// resolveCompanyID looks up the integer primary key for a company code.
func resolveCompanyID(ctx context.Context, pool *pgxpool.Pool, companyCode string) (int, error) {
	var id int
	if err := pool.QueryRow(ctx,
		"SELECT id FROM companies WHERE company_code = $1", companyCode,
	).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("company %s not found", companyCode)
		}
		return 0, fmt.Errorf("failed to resolve company: %w", err)
	}
	return id, nil
}
