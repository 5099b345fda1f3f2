package app

import (
	"context"

	"costing-service/internal/core"
	"costing-service/internal/costing"
)

// ApplicationService is the single interface all adapters (Web, CLI) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// GetCostSheet returns a sheet with its lines and the computed costing
	// result at the sheet's target quantity.
	GetCostSheet(ctx context.Context, sheetID int) (*SheetResult, error)

	// ListCostSheets returns sheets for a company, optionally filtered by status.
	ListCostSheets(ctx context.Context, companyCode string, status *string) (*SheetListResult, error)

	// CreateCostSheet creates a new DRAFT version-1 sheet with its lines.
	CreateCostSheet(ctx context.Context, req CreateSheetRequest) (*SheetResult, error)

	// UpdateCostSheetHeader replaces the editable header fields of a DRAFT sheet.
	UpdateCostSheetHeader(ctx context.Context, sheetID int, header SheetHeaderInput) (*SheetResult, error)

	// AddCostLine appends a line to a DRAFT sheet; rate-card defaults fill
	// missing rates.
	AddCostLine(ctx context.Context, sheetID int, line SheetLineInput) (*SheetResult, error)

	// UpdateCostLine replaces a line on a DRAFT sheet.
	UpdateCostLine(ctx context.Context, sheetID, lineID int, line SheetLineInput) (*SheetResult, error)

	// DeleteCostLine removes a line from a DRAFT sheet.
	DeleteCostLine(ctx context.Context, sheetID, lineID int) (*SheetResult, error)

	// ApproveCostSheet freezes a DRAFT sheet and assigns its gapless sheet number.
	ApproveCostSheet(ctx context.Context, sheetID int) (*SheetResult, error)

	// LockCostSheet transitions an APPROVED sheet to LOCKED (terminal).
	LockCostSheet(ctx context.Context, sheetID int) (*SheetResult, error)

	// NewSheetVersion duplicates a frozen sheet into a fresh DRAFT with version+1.
	NewSheetVersion(ctx context.Context, sheetID int) (*SheetResult, error)

	// CalculateCostSheet recomputes a sheet at an order quantity other than
	// the sheet's own target quantity. A quantity of zero uses the target.
	CalculateCostSheet(ctx context.Context, sheetID int, quantity int64) (*SheetResult, error)

	// RunScenarios recomputes a sheet at each of the given order quantities.
	// An empty list costs the sheet at its own target quantity.
	RunScenarios(ctx context.Context, sheetID int, quantities []int64) (*ScenarioListResult, error)

	// ExportCostSheet renders a sheet and its costing result as an XLSX workbook.
	ExportCostSheet(ctx context.Context, sheetID int) ([]byte, string, error)

	// CreateProductionOrder creates a DRAFT production run, optionally bound
	// to a frozen cost sheet.
	CreateProductionOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)

	// StartProductionOrder transitions a DRAFT run to IN_PROGRESS.
	StartProductionOrder(ctx context.Context, orderID int) (*OrderResult, error)

	// RecordActualCost appends an entry to the run's actual-cost ledger.
	RecordActualCost(ctx context.Context, orderID int, req ActualCostRequest) (*OrderResult, error)

	// CompleteProductionOrder transitions an IN_PROGRESS run to COMPLETED with
	// its final produced quantity.
	CompleteProductionOrder(ctx context.Context, orderID int, producedQty int64) (*OrderResult, error)

	// GetProductionOrder returns a run with its actual-cost ledger.
	GetProductionOrder(ctx context.Context, orderID int) (*OrderResult, error)

	// ListProductionOrders returns runs for a company, optionally filtered by status.
	ListProductionOrders(ctx context.Context, companyCode string, status *string) (*OrderListResult, error)

	// GetVariance compares the run's actual spend against its standard cost
	// sheet. Requires the run to be bound to a sheet.
	GetVariance(ctx context.Context, orderID int) (*VarianceResult, error)

	// GetStyleCostSummary returns the latest frozen sheet per style.
	GetStyleCostSummary(ctx context.Context, companyCode string) (*StyleSummaryResult, error)

	// GetActualSpend aggregates actual-cost entries by section within a date range.
	GetActualSpend(ctx context.Context, companyCode, fromDate, toDate string) (*core.SpendReport, error)

	// InterpretCostSheet sends a natural language costing brief to the AI agent
	// and returns either a SheetProposal or a clarification request.
	InterpretCostSheet(ctx context.Context, text, companyCode string) (*AIResult, error)

	// CommitProposal validates an AI-generated proposal and creates the DRAFT
	// sheet it describes. Must only be called after explicit user approval.
	CommitProposal(ctx context.Context, proposal core.SheetProposal) (*SheetResult, error)

	// ValidateProposal validates a proposal without creating anything.
	ValidateProposal(ctx context.Context, proposal core.SheetProposal) error

	// LoadDefaultCompany loads the active company. Uses COMPANY_CODE env var if set;
	// otherwise expects exactly one company in the database.
	LoadDefaultCompany(ctx context.Context) (*core.Company, error)

	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)
}

// UserSession is the authenticated identity returned by AuthenticateUser.
type UserSession struct {
	UserID    int
	CompanyID int
	Username  string
	Role      string
}

// UserResult is returned by GetUser.
type UserResult struct {
	User *core.User
}

// Engine is the calculation dependency of the app layer, satisfied by
// *costing.Engine. It exists so tests can substitute policies.
type Engine interface {
	Calculate(sheet costing.CostSheet, lines []costing.CostLineItem) costing.Result
	CalculateAt(sheet costing.CostSheet, lines []costing.CostLineItem, targetQty int64) costing.Result
	Scenarios(sheet costing.CostSheet, lines []costing.CostLineItem, quantities []int64) []costing.Scenario
	Variance(sheet *costing.CostSheet, lines []costing.CostLineItem, run *costing.ProductionRun, entries []costing.ActualCostEntry) *costing.VarianceResult
}
