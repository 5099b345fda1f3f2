package app

import (
	"costing-service/internal/core"
	"costing-service/internal/costing"
)

// SheetResult is returned by sheet lifecycle operations. Costing is the
// engine result at the sheet's target quantity, always present: an empty
// sheet simply costs zero.
type SheetResult struct {
	Sheet   *costing.CostSheet
	Lines   []costing.CostLineItem
	Costing costing.Result
}

// SheetListResult is returned by ListCostSheets.
type SheetListResult struct {
	Sheets      []costing.CostSheet
	CompanyCode string
}

// ScenarioListResult is returned by RunScenarios.
type ScenarioListResult struct {
	SheetID   int
	Scenarios []costing.Scenario
}

// OrderResult is returned by production order operations.
type OrderResult struct {
	Order   *core.ProductionOrder
	Actuals []costing.ActualCostEntry
}

// OrderListResult is returned by ListProductionOrders.
type OrderListResult struct {
	Orders      []core.ProductionOrder
	CompanyCode string
}

// VarianceResult is returned by GetVariance.
type VarianceResult struct {
	Order    *core.ProductionOrder
	Variance *costing.VarianceResult
}

// StyleSummaryResult is returned by GetStyleCostSummary.
type StyleSummaryResult struct {
	CompanyCode string
	Rows        []core.StyleCostRow
}

// AIResult is returned by InterpretCostSheet.
type AIResult struct {
	Proposal             *core.SheetProposal
	ClarificationMessage string
	IsClarification      bool
}
