package app

import (
	"costing-service/internal/core"
	"costing-service/internal/costing"

	"github.com/shopspring/decimal"
)

// SheetHeaderInput is the editable header of a cost sheet.
type SheetHeaderInput struct {
	Style               string
	Description         string
	TargetQuantity      int64
	OverheadMethod      string // "per_piece" or "percent_of_labor"
	TargetMarginPercent decimal.Decimal
	QuotePricePerPiece  decimal.Decimal // non-zero fixes the quote, overriding the margin
	Currency            string
}

// SheetLineInput is a single cost line within a sheet request.
type SheetLineInput struct {
	Section             string
	Name                string
	ConsumptionPerPiece decimal.Decimal
	Unit                string
	WastePercent        decimal.Decimal
	Rate                decimal.Decimal // zero means "use rate card default"
	SetupCost           decimal.Decimal
}

// CreateSheetRequest is the input for creating a new cost sheet.
type CreateSheetRequest struct {
	CompanyCode string
	Header      SheetHeaderInput
	Lines       []SheetLineInput
}

// CreateOrderRequest is the input for creating a new production order.
type CreateOrderRequest struct {
	CompanyCode string
	Style       string
	CostSheetID *int
	PlannedQty  int64
	StartDate   string // YYYY-MM-DD, empty means today
}

// ActualCostRequest is the input for recording one actual-cost entry.
type ActualCostRequest struct {
	Section         string
	Description     string
	ActualTotalCost decimal.Decimal
	EntryDate       string // YYYY-MM-DD, empty means today
}

func (in SheetHeaderInput) toCore() core.SheetInput {
	return core.SheetInput{
		Style:               in.Style,
		Description:         in.Description,
		TargetQuantity:      in.TargetQuantity,
		OverheadMethod:      costing.OverheadMethod(in.OverheadMethod),
		TargetMarginPercent: in.TargetMarginPercent,
		QuotePricePerPiece:  in.QuotePricePerPiece,
		Currency:            in.Currency,
	}
}

func (in SheetLineInput) toCore() core.LineInput {
	return core.LineInput{
		Section:             costing.Section(in.Section),
		Name:                in.Name,
		ConsumptionPerPiece: in.ConsumptionPerPiece,
		Unit:                in.Unit,
		WastePercent:        in.WastePercent,
		Rate:                in.Rate,
		SetupCost:           in.SetupCost,
	}
}
