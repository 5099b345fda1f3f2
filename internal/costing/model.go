package costing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Section is a fixed category of cost contributor. It determines both the
// computation rule applied to a line and the grouping used in reports.
type Section string

const (
	SectionFabric    Section = "fabric"
	SectionTrims     Section = "trims"
	SectionLabor     Section = "labor"
	SectionOverhead  Section = "overhead"
	SectionPackaging Section = "packaging"
	SectionOther     Section = "other"
)

// IsValid checks if the section is one of the defined constants.
func (s Section) IsValid() bool {
	switch s {
	case SectionFabric, SectionTrims, SectionLabor, SectionOverhead, SectionPackaging, SectionOther:
		return true
	}
	return false
}

// String returns the string representation of the section.
func (s Section) String() string {
	return string(s)
}

// OverheadMethod governs how overhead line items are computed.
type OverheadMethod string

const (
	// OverheadPerPiece treats overhead lines like any other line:
	// consumption × rate, waste-inflated, plus amortized setup.
	OverheadPerPiece OverheadMethod = "per_piece"
	// OverheadPercentOfLabor reinterprets an overhead line's rate as a
	// percentage of the sheet's total labor unit cost.
	OverheadPercentOfLabor OverheadMethod = "percent_of_labor"
)

// IsValid checks if the method is one of the defined constants.
func (m OverheadMethod) IsValid() bool {
	return m == OverheadPerPiece || m == OverheadPercentOfLabor
}

// SheetStatus is the lifecycle state of a cost sheet.
// Once a sheet is approved or locked, its header and lines are frozen;
// further changes require a new version.
type SheetStatus string

const (
	SheetStatusDraft    SheetStatus = "DRAFT"
	SheetStatusApproved SheetStatus = "APPROVED"
	SheetStatusLocked   SheetStatus = "LOCKED"
)

// CostSheet is a versioned, per-style costing definition header.
// SheetNumber is assigned at approval via SheetNumberService.
type CostSheet struct {
	ID                  int             `json:"id"`
	CompanyID           int             `json:"company_id"`
	Style               string          `json:"style"`
	Description         string          `json:"description"`
	Version             int             `json:"version"`
	ParentSheetID       *int            `json:"parent_sheet_id,omitempty"`
	SheetNumber         *string         `json:"sheet_number,omitempty"`
	Status              SheetStatus     `json:"status"`
	TargetQuantity      int64           `json:"target_quantity"`
	OverheadMethod      OverheadMethod  `json:"overhead_method"`
	TargetMarginPercent decimal.Decimal `json:"target_margin_percent"`
	QuotePricePerPiece  decimal.Decimal `json:"quote_price_per_piece"`
	Currency            string          `json:"currency"`
	CreatedAt           time.Time       `json:"created_at"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty"`
	LockedAt            *time.Time      `json:"locked_at,omitempty"`
}

// IsFrozen reports whether the sheet may no longer be edited.
func (s *CostSheet) IsFrozen() bool {
	return s.Status == SheetStatusApproved || s.Status == SheetStatusLocked
}

// CostLineItem is one cost contributor, owned by exactly one CostSheet.
// For overhead lines under OverheadPercentOfLabor, Rate is a percentage of
// the labor section total rather than a price per unit of consumption.
type CostLineItem struct {
	ID                  int             `json:"id"`
	SheetID             int             `json:"sheet_id"`
	LineNumber          int             `json:"line_number"`
	Section             Section         `json:"section"`
	Name                string          `json:"name"`
	ConsumptionPerPiece decimal.Decimal `json:"consumption_per_piece"`
	Unit                string          `json:"unit"` // "m", "pcs", "min", ...
	WastePercent        decimal.Decimal `json:"waste_percent"`
	Rate                decimal.Decimal `json:"rate"`
	SetupCost           decimal.Decimal `json:"setup_cost"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ActualCostEntry is an actual incurred cost for a production run, grouped by
// the same section enum as standard lines. Entries are append-only history:
// they are never updated or deleted once recorded.
type ActualCostEntry struct {
	ID                int             `json:"id"`
	CompanyID         int             `json:"company_id"`
	ProductionOrderID int             `json:"production_order_id"`
	CostSheetID       *int            `json:"cost_sheet_id,omitempty"`
	Section           Section         `json:"section"`
	Description       string          `json:"description"`
	ActualTotalCost   decimal.Decimal `json:"actual_total_cost"`
	EntryDate         string          `json:"entry_date"` // YYYY-MM-DD
	CreatedAt         time.Time       `json:"created_at"`
}

// ProductionRun is the minimal production-order snapshot the engine needs for
// actuals and variance. The full order record lives in the persistence layer.
type ProductionRun struct {
	ID          int   `json:"id"`
	ProducedQty int64 `json:"produced_qty"`
}

// Normalize coerces invalid header values to safe defaults. The engine never
// rejects input: a report is always produced, and upstream form validation is
// the place to complain about bad data.
func (s *CostSheet) Normalize() {
	if s.TargetQuantity < 0 {
		s.TargetQuantity = 0
	}
	if s.OverheadMethod != OverheadPercentOfLabor {
		s.OverheadMethod = OverheadPerPiece
	}
	if s.QuotePricePerPiece.IsNegative() {
		s.QuotePricePerPiece = decimal.Zero
	}
	if s.Status == "" {
		s.Status = SheetStatusDraft
	}
	if s.Version <= 0 {
		s.Version = 1
	}
}

// Normalize coerces invalid line values to zero and unknown sections to other.
func (l *CostLineItem) Normalize() {
	if !l.Section.IsValid() {
		l.Section = SectionOther
	}
	if l.ConsumptionPerPiece.IsNegative() {
		l.ConsumptionPerPiece = decimal.Zero
	}
	if l.WastePercent.IsNegative() {
		l.WastePercent = decimal.Zero
	}
	if l.Rate.IsNegative() {
		l.Rate = decimal.Zero
	}
	if l.SetupCost.IsNegative() {
		l.SetupCost = decimal.Zero
	}
}
