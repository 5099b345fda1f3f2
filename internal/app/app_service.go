package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"costing-service/internal/ai"
	"costing-service/internal/core"
	"costing-service/internal/costing"
	"costing-service/internal/export"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type appService struct {
	pool         *pgxpool.Pool
	sheetService core.CostSheetService
	orderService core.ProductionOrderService
	reporting    core.ReportingService
	users        core.UserService
	engine       Engine
	agent        *ai.Agent
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	sheetService core.CostSheetService,
	orderService core.ProductionOrderService,
	reporting core.ReportingService,
	users core.UserService,
	engine Engine,
	agent *ai.Agent,
) ApplicationService {
	return &appService{
		pool:         pool,
		sheetService: sheetService,
		orderService: orderService,
		reporting:    reporting,
		users:        users,
		engine:       engine,
		agent:        agent,
	}
}

// ── Cost sheets ───────────────────────────────────────────────────────────────

func (s *appService) GetCostSheet(ctx context.Context, sheetID int) (*SheetResult, error) {
	return s.sheetResult(ctx, sheetID)
}

func (s *appService) ListCostSheets(ctx context.Context, companyCode string, status *string) (*SheetListResult, error) {
	sheets, err := s.sheetService.ListSheets(ctx, companyCode, status)
	if err != nil {
		return nil, err
	}
	return &SheetListResult{Sheets: sheets, CompanyCode: companyCode}, nil
}

func (s *appService) CreateCostSheet(ctx context.Context, req CreateSheetRequest) (*SheetResult, error) {
	lines := make([]core.LineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = l.toCore()
	}
	sheet, err := s.sheetService.CreateSheet(ctx, req.CompanyCode, req.Header.toCore(), lines)
	if err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheet.ID)
}

func (s *appService) UpdateCostSheetHeader(ctx context.Context, sheetID int, header SheetHeaderInput) (*SheetResult, error) {
	if _, err := s.sheetService.UpdateHeader(ctx, sheetID, header.toCore()); err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheetID)
}

func (s *appService) AddCostLine(ctx context.Context, sheetID int, line SheetLineInput) (*SheetResult, error) {
	if _, err := s.sheetService.AddLine(ctx, sheetID, line.toCore()); err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheetID)
}

func (s *appService) UpdateCostLine(ctx context.Context, sheetID, lineID int, line SheetLineInput) (*SheetResult, error) {
	if _, err := s.sheetService.UpdateLine(ctx, sheetID, lineID, line.toCore()); err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheetID)
}

func (s *appService) DeleteCostLine(ctx context.Context, sheetID, lineID int) (*SheetResult, error) {
	if err := s.sheetService.DeleteLine(ctx, sheetID, lineID); err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheetID)
}

func (s *appService) ApproveCostSheet(ctx context.Context, sheetID int) (*SheetResult, error) {
	if _, err := s.sheetService.Approve(ctx, sheetID); err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheetID)
}

func (s *appService) LockCostSheet(ctx context.Context, sheetID int) (*SheetResult, error) {
	if _, err := s.sheetService.Lock(ctx, sheetID); err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheetID)
}

func (s *appService) NewSheetVersion(ctx context.Context, sheetID int) (*SheetResult, error) {
	version, err := s.sheetService.NewVersion(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, version.ID)
}

func (s *appService) CalculateCostSheet(ctx context.Context, sheetID int, quantity int64) (*SheetResult, error) {
	sheet, lines, err := s.sheetService.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		quantity = sheet.TargetQuantity
	}
	result := s.engine.CalculateAt(*sheet, lines, quantity)
	return &SheetResult{Sheet: sheet, Lines: lines, Costing: result}, nil
}

func (s *appService) RunScenarios(ctx context.Context, sheetID int, quantities []int64) (*ScenarioListResult, error) {
	sheet, lines, err := s.sheetService.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if len(quantities) == 0 {
		quantities = []int64{sheet.TargetQuantity}
	}
	return &ScenarioListResult{
		SheetID:   sheetID,
		Scenarios: s.engine.Scenarios(*sheet, lines, quantities),
	}, nil
}

// exportScenarioQuantities is the volume ladder rendered into every exported
// workbook's what-if table.
var exportScenarioQuantities = []int64{50, 100, 200, 500, 1000}

// ExportCostSheet renders the sheet as an XLSX workbook and returns the bytes
// plus a suggested filename.
func (s *appService) ExportCostSheet(ctx context.Context, sheetID int) ([]byte, string, error) {
	res, err := s.sheetResult(ctx, sheetID)
	if err != nil {
		return nil, "", err
	}
	scenarios := s.engine.Scenarios(*res.Sheet, res.Lines, exportScenarioQuantities)
	data, err := export.SheetWorkbook(res.Sheet, res.Lines, res.Costing, scenarios)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build workbook: %w", err)
	}
	name := fmt.Sprintf("cost-sheet-%d-v%d.xlsx", res.Sheet.ID, res.Sheet.Version)
	if res.Sheet.SheetNumber != nil {
		name = fmt.Sprintf("%s.xlsx", strings.ToLower(*res.Sheet.SheetNumber))
	}
	return data, name, nil
}

// ── Production orders ─────────────────────────────────────────────────────────

func (s *appService) CreateProductionOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	order, err := s.orderService.CreateOrder(ctx, req.CompanyCode, req.Style, req.CostSheetID, req.PlannedQty, req.StartDate)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) StartProductionOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	order, err := s.orderService.StartOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orderResult(ctx, order)
}

func (s *appService) RecordActualCost(ctx context.Context, orderID int, req ActualCostRequest) (*OrderResult, error) {
	_, err := s.orderService.RecordActualCost(ctx, orderID, core.ActualCostInput{
		Section:         costing.Section(req.Section),
		Description:     req.Description,
		ActualTotalCost: req.ActualTotalCost,
		EntryDate:       req.EntryDate,
	})
	if err != nil {
		return nil, err
	}
	order, err := s.orderService.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orderResult(ctx, order)
}

func (s *appService) CompleteProductionOrder(ctx context.Context, orderID int, producedQty int64) (*OrderResult, error) {
	order, err := s.orderService.CompleteOrder(ctx, orderID, producedQty)
	if err != nil {
		return nil, err
	}
	return s.orderResult(ctx, order)
}

func (s *appService) GetProductionOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	order, err := s.orderService.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orderResult(ctx, order)
}

func (s *appService) ListProductionOrders(ctx context.Context, companyCode string, status *string) (*OrderListResult, error) {
	orders, err := s.orderService.ListOrders(ctx, companyCode, status)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders, CompanyCode: companyCode}, nil
}

func (s *appService) GetVariance(ctx context.Context, orderID int) (*VarianceResult, error) {
	order, err := s.orderService.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CostSheetID == nil {
		return nil, fmt.Errorf("production order %d is not bound to a cost sheet; variance needs a standard to compare against", orderID)
	}

	sheet, lines, err := s.sheetService.GetSheet(ctx, *order.CostSheetID)
	if err != nil {
		return nil, err
	}
	entries, err := s.orderService.GetActualCosts(ctx, orderID)
	if err != nil {
		return nil, err
	}

	run := order.Run()
	variance := s.engine.Variance(sheet, lines, &run, entries)
	return &VarianceResult{Order: order, Variance: variance}, nil
}

// ── Reporting ─────────────────────────────────────────────────────────────────

func (s *appService) GetStyleCostSummary(ctx context.Context, companyCode string) (*StyleSummaryResult, error) {
	rows, err := s.reporting.GetStyleCostSummary(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return &StyleSummaryResult{CompanyCode: companyCode, Rows: rows}, nil
}

func (s *appService) GetActualSpend(ctx context.Context, companyCode, fromDate, toDate string) (*core.SpendReport, error) {
	return s.reporting.GetActualSpend(ctx, companyCode, fromDate, toDate)
}

// ── AI ────────────────────────────────────────────────────────────────────────

// InterpretCostSheet sends a natural language costing brief to the AI agent
// and returns either a SheetProposal or a clarification request.
func (s *appService) InterpretCostSheet(ctx context.Context, text, companyCode string) (*AIResult, error) {
	rateCard, err := s.fetchRateCardSummary(ctx, companyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate card: %w", err)
	}

	company, err := s.fetchCompany(ctx, companyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch company: %w", err)
	}

	response, err := s.agent.InterpretCostSheet(ctx, text, rateCard, company)
	if err != nil {
		return nil, err
	}

	if response.IsClarificationRequest {
		return &AIResult{
			IsClarification:      true,
			ClarificationMessage: response.Clarification.Message,
		}, nil
	}

	return &AIResult{
		IsClarification: false,
		Proposal:        response.Proposal,
	}, nil
}

// CommitProposal validates an approved proposal and creates its DRAFT sheet.
func (s *appService) CommitProposal(ctx context.Context, proposal core.SheetProposal) (*SheetResult, error) {
	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, err
	}

	header, lines := proposal.ToSheetInput()
	sheet, err := s.sheetService.CreateSheet(ctx, proposal.CompanyCode, header, lines)
	if err != nil {
		return nil, err
	}
	return s.sheetResult(ctx, sheet.ID)
}

// ValidateProposal validates a proposal without creating anything.
func (s *appService) ValidateProposal(ctx context.Context, proposal core.SheetProposal) error {
	proposal.Normalize()
	return proposal.Validate()
}

// ── Session ───────────────────────────────────────────────────────────────────

// LoadDefaultCompany loads the active company, using COMPANY_CODE env var if set.
func (s *appService) LoadDefaultCompany(ctx context.Context) (*core.Company, error) {
	if code := os.Getenv("COMPANY_CODE"); code != "" {
		return s.fetchCompany(ctx, code)
	}

	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM companies").Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count companies: %w", err)
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple companies found; set COMPANY_CODE env var (e.g. COMPANY_CODE=1000)")
	}

	c := &core.Company{}
	if err := s.pool.QueryRow(ctx,
		"SELECT id, company_code, name, base_currency FROM companies LIMIT 1",
	).Scan(&c.ID, &c.CompanyCode, &c.Name, &c.BaseCurrency); err != nil {
		return nil, fmt.Errorf("no default company found, have migrations run?: %w", err)
	}
	return c, nil
}

// AuthenticateUser verifies credentials against the bcrypt password hash.
func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return &UserSession{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Username:  user.Username,
		Role:      user.Role,
	}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{User: user}, nil
}

// ── private helpers ───────────────────────────────────────────────────────────

// sheetResult fetches a sheet with its lines and computes the costing result.
func (s *appService) sheetResult(ctx context.Context, sheetID int) (*SheetResult, error) {
	sheet, lines, err := s.sheetService.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return &SheetResult{
		Sheet:   sheet,
		Lines:   lines,
		Costing: s.engine.Calculate(*sheet, lines),
	}, nil
}

// orderResult attaches the actual-cost ledger to an order.
func (s *appService) orderResult(ctx context.Context, order *core.ProductionOrder) (*OrderResult, error) {
	actuals, err := s.orderService.GetActualCosts(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order, Actuals: actuals}, nil
}

// fetchCompany retrieves a company record by code.
func (s *appService) fetchCompany(ctx context.Context, companyCode string) (*core.Company, error) {
	c := &core.Company{}
	if err := s.pool.QueryRow(ctx,
		"SELECT id, company_code, name, base_currency FROM companies WHERE company_code = $1", companyCode,
	).Scan(&c.ID, &c.CompanyCode, &c.Name, &c.BaseCurrency); err != nil {
		return nil, fmt.Errorf("company %s not found: %w", companyCode, err)
	}
	return c, nil
}

// fetchRateCardSummary returns the company's rate card as a formatted string
// for the AI prompt.
func (s *appService) fetchRateCardSummary(ctx context.Context, companyCode string) (string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.section, r.default_rate::text, r.default_waste_percent::text
		FROM rate_cards r
		JOIN companies c ON c.id = r.company_id
		WHERE c.company_code = $1
		  AND (r.effective_to IS NULL OR r.effective_to >= CURRENT_DATE)
		ORDER BY r.section, r.priority DESC
	`, companyCode)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var section, rate, waste string
		if err := rows.Scan(&section, &rate, &waste); err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("- %s: default rate %s, default waste %s%%", section, rate, waste))
	}
	if len(lines) == 0 {
		return "(no rate card entries)", nil
	}
	return strings.Join(lines, "\n"), nil
}
