package costing

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Policy binds the rounding tiers and the canonical section order.
// Internal precision is applied to every intermediate per-piece figure;
// display precision is applied once, at the presentation boundary, and
// display figures are never fed back into arithmetic.
type Policy struct {
	InternalPlaces int32
	DisplayPlaces  int32
	SectionOrder   []Section
}

// DefaultPolicy returns the standard two-tier rounding policy (4dp internal,
// 2dp display, half-up) and the canonical section order.
func DefaultPolicy() Policy {
	return Policy{
		InternalPlaces: 4,
		DisplayPlaces:  2,
		SectionOrder: []Section{
			SectionFabric, SectionTrims, SectionLabor,
			SectionOverhead, SectionPackaging, SectionOther,
		},
	}
}

// Engine computes per-piece costs, quote prices, what-if scenarios, and
// actual-vs-standard variance for cost sheets. It is pure: no operation
// performs I/O, mutates its inputs, or returns an error. Invalid numeric
// inputs are coerced to zero and every division-by-zero site short-circuits
// to a defined zero result.
type Engine struct {
	policy Policy
}

// NewEngine constructs an Engine. Zero-valued policy fields fall back to
// DefaultPolicy so callers can override selectively.
func NewEngine(policy Policy) *Engine {
	def := DefaultPolicy()
	if policy.InternalPlaces <= 0 {
		policy.InternalPlaces = def.InternalPlaces
	}
	if policy.DisplayPlaces <= 0 {
		policy.DisplayPlaces = def.DisplayPlaces
	}
	if len(policy.SectionOrder) == 0 {
		policy.SectionOrder = def.SectionOrder
	}
	return &Engine{policy: policy}
}

// Policy returns the bound policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// roundInternal rounds half-up to the internal precision tier.
func (e *Engine) roundInternal(d decimal.Decimal) decimal.Decimal {
	return d.Round(e.policy.InternalPlaces)
}

// roundDisplay rounds half-up to the display precision tier.
func (e *Engine) roundDisplay(d decimal.Decimal) decimal.Decimal {
	return d.Round(e.policy.DisplayPlaces)
}

// nz coerces negative amounts to zero. Decimal zero values are already the
// type's natural default, so absent inputs need no further handling.
func nz(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ── Result types ──────────────────────────────────────────────────────────────

// SectionBreakdown is one section's unit-cost total and its percent share of
// the total cost per piece.
type SectionBreakdown struct {
	Section      Section         `json:"section"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SharePercent decimal.Decimal `json:"share_percent"`
}

// DisplayFigures carries the presentation-rounded view of a Result. These are
// derived strictly for rendering; the internal-precision figures on Result
// remain the source of truth for any further arithmetic.
type DisplayFigures struct {
	Sections           []SectionBreakdown `json:"sections"`
	TotalCostPerPiece  decimal.Decimal    `json:"total_cost_per_piece"`
	QuotePricePerPiece decimal.Decimal    `json:"quote_price_per_piece"`
	ProfitPerPiece     decimal.Decimal    `json:"profit_per_piece"`
	MarginPercent      decimal.Decimal    `json:"margin_percent"`
	TotalQuoteValue    decimal.Decimal    `json:"total_quote_value"`
}

// Result is the full standard-cost calculation for one sheet at one quantity.
// All monetary figures are at internal precision except those under Display.
type Result struct {
	SheetID            int                `json:"sheet_id"`
	EffectiveQty       int64              `json:"effective_qty"`
	OverheadMethod     OverheadMethod     `json:"overhead_method"`
	LaborUnitCost      decimal.Decimal    `json:"labor_unit_cost"`
	Sections           []SectionBreakdown `json:"sections"`
	TotalCostPerPiece  decimal.Decimal    `json:"total_cost_per_piece"`
	QuotePricePerPiece decimal.Decimal    `json:"quote_price_per_piece"`
	QuoteDerived       bool               `json:"quote_derived"` // true when back-derived from target margin
	ProfitPerPiece     decimal.Decimal    `json:"profit_per_piece"`
	MarginPercent      decimal.Decimal    `json:"margin_percent"`
	TotalQuoteValue    decimal.Decimal    `json:"total_quote_value"`
	Display            DisplayFigures     `json:"display"`
}

// SectionUnitCost returns the unit-cost total for a section, or zero when the
// sheet has no lines in that section.
func (r *Result) SectionUnitCost(section Section) decimal.Decimal {
	for _, sb := range r.Sections {
		if sb.Section == section {
			return sb.UnitCost
		}
	}
	return decimal.Zero
}

// Scenario is one row of a what-if table: the same sheet costed at a
// hypothetical quantity.
type Scenario struct {
	Quantity int64  `json:"quantity"`
	Result   Result `json:"result"`
}

// ── Line unit cost ────────────────────────────────────────────────────────────

// LineUnitCost computes the per-piece cost of one line item.
//
// Overhead lines under OverheadPercentOfLabor cost laborTotal × rate/100; all
// other lines cost consumption × rate × (1 + waste/100). Either form then adds
// setup/targetQty. A zero target quantity means "not yet costed for a
// quantity": the amortization term is zero, not an error. The result is
// rounded to internal precision.
func (e *Engine) LineUnitCost(line CostLineItem, targetQty int64, method OverheadMethod, laborTotal decimal.Decimal) decimal.Decimal {
	rate := nz(line.Rate)

	var unit decimal.Decimal
	if line.Section == SectionOverhead && method == OverheadPercentOfLabor {
		unit = laborTotal.Mul(rate).Div(hundred)
	} else {
		waste := one.Add(nz(line.WastePercent).Div(hundred))
		unit = nz(line.ConsumptionPerPiece).Mul(rate).Mul(waste)
	}

	if setup := nz(line.SetupCost); targetQty > 0 && !setup.IsZero() {
		unit = unit.Add(setup.Div(decimal.NewFromInt(targetQty)))
	}

	return e.roundInternal(unit)
}

// ── Standard cost calculation ─────────────────────────────────────────────────

// Calculate computes the full standard-cost result for a sheet at its own
// target quantity.
func (e *Engine) Calculate(sheet CostSheet, lines []CostLineItem) Result {
	return e.calculate(sheet, lines, sheet.TargetQuantity)
}

// CalculateAt computes the result at a caller-chosen quantity, leaving the
// sheet and its lines untouched. Re-invoking with different quantities is how
// callers build what-if comparisons.
func (e *Engine) CalculateAt(sheet CostSheet, lines []CostLineItem, targetQty int64) Result {
	return e.calculate(sheet, lines, targetQty)
}

func (e *Engine) calculate(sheet CostSheet, lines []CostLineItem, targetQty int64) Result {
	if targetQty < 0 {
		targetQty = 0
	}
	method := sheet.OverheadMethod
	if method != OverheadPercentOfLabor {
		method = OverheadPerPiece
	}

	// First pass: labor only. Labor lines never depend on any other section,
	// so the labor total is fully known before overhead is computed. One extra
	// pass suffices — no other cross-section dependency exists.
	laborTotal := decimal.Zero
	for _, line := range lines {
		if line.Section == SectionLabor {
			laborTotal = e.roundInternal(laborTotal.Add(e.LineUnitCost(line, targetQty, method, decimal.Zero)))
		}
	}

	// Second pass: every line, overhead now seeing the real labor total.
	// Section totals are internally-rounded running sums.
	sectionTotals := make(map[Section]decimal.Decimal, len(e.policy.SectionOrder))
	for _, line := range lines {
		section := line.Section
		if !section.IsValid() {
			section = SectionOther
		}
		unit := e.LineUnitCost(line, targetQty, method, laborTotal)
		sectionTotals[section] = e.roundInternal(sectionTotals[section].Add(unit))
	}

	total := decimal.Zero
	for _, t := range sectionTotals {
		total = total.Add(t)
	}
	total = e.roundInternal(total)

	// Per-section breakdown in canonical order, with percent share of total.
	var sections []SectionBreakdown
	for _, section := range e.policy.SectionOrder {
		t, ok := sectionTotals[section]
		if !ok {
			continue
		}
		share := decimal.Zero
		if !total.IsZero() {
			share = e.roundInternal(t.Div(total).Mul(hundred))
		}
		sections = append(sections, SectionBreakdown{Section: section, UnitCost: t, SharePercent: share})
	}

	// Quote price: as given when positive, else back-derived from the target
	// margin. margin >= 100 is degenerate (would divide by zero or go
	// negative) and yields a zero quote; margin <= 0 falls back to quote =
	// cost, i.e. zero profit.
	quote := nz(sheet.QuotePricePerPiece)
	derived := false
	if !quote.IsPositive() {
		derived = true
		margin := sheet.TargetMarginPercent
		switch {
		case margin.GreaterThanOrEqual(hundred):
			quote = decimal.Zero
		case margin.IsPositive():
			quote = e.roundInternal(total.Div(one.Sub(margin.Div(hundred))))
		default:
			quote = total
		}
	}

	profit := quote.Sub(total)
	marginPct := decimal.Zero
	if !quote.IsZero() {
		marginPct = e.roundInternal(profit.Div(quote).Mul(hundred))
	}
	quoteValue := e.roundInternal(quote.Mul(decimal.NewFromInt(targetQty)))

	r := Result{
		SheetID:            sheet.ID,
		EffectiveQty:       targetQty,
		OverheadMethod:     method,
		LaborUnitCost:      laborTotal,
		Sections:           sections,
		TotalCostPerPiece:  total,
		QuotePricePerPiece: quote,
		QuoteDerived:       derived,
		ProfitPerPiece:     profit,
		MarginPercent:      marginPct,
		TotalQuoteValue:    quoteValue,
	}
	r.Display = e.displayFigures(r)
	return r
}

// displayFigures re-rounds every externally visible figure to display
// precision.
func (e *Engine) displayFigures(r Result) DisplayFigures {
	sections := make([]SectionBreakdown, len(r.Sections))
	for i, sb := range r.Sections {
		sections[i] = SectionBreakdown{
			Section:      sb.Section,
			UnitCost:     e.roundDisplay(sb.UnitCost),
			SharePercent: e.roundDisplay(sb.SharePercent),
		}
	}
	return DisplayFigures{
		Sections:           sections,
		TotalCostPerPiece:  e.roundDisplay(r.TotalCostPerPiece),
		QuotePricePerPiece: e.roundDisplay(r.QuotePricePerPiece),
		ProfitPerPiece:     e.roundDisplay(r.ProfitPerPiece),
		MarginPercent:      e.roundDisplay(r.MarginPercent),
		TotalQuoteValue:    e.roundDisplay(r.TotalQuoteValue),
	}
}

// ── Scenarios ─────────────────────────────────────────────────────────────────

// Scenarios costs the same sheet at each hypothetical quantity, showing how
// per-piece cost and setup amortization shift with volume.
func (e *Engine) Scenarios(sheet CostSheet, lines []CostLineItem, quantities []int64) []Scenario {
	scenarios := make([]Scenario, 0, len(quantities))
	for _, qty := range quantities {
		scenarios = append(scenarios, Scenario{Quantity: qty, Result: e.CalculateAt(sheet, lines, qty)})
	}
	return scenarios
}
