package costing

import "github.com/shopspring/decimal"

// ── Actuals ───────────────────────────────────────────────────────────────────

// SectionActual is the incurred cost total for one section of a production run.
type SectionActual struct {
	Section   Section         `json:"section"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// ActualsResult aggregates the actual-cost ledger for one production run.
type ActualsResult struct {
	ProducedQty  int64           `json:"produced_qty"`
	Sections     []SectionActual `json:"sections"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	CostPerPiece decimal.Decimal `json:"cost_per_piece"`
}

// SectionTotal returns the actual total for a section, or zero when the run
// has no entries in that section.
func (r *ActualsResult) SectionTotal(section Section) decimal.Decimal {
	for _, sa := range r.Sections {
		if sa.Section == section {
			return sa.TotalCost
		}
	}
	return decimal.Zero
}

// Actuals sums the actual-cost ledger by section. When sheetID is positive the
// entries are filtered to those linked to that sheet; otherwise every entry
// for the run counts. A zero produced quantity yields a zero cost per piece,
// never a divide error.
func (e *Engine) Actuals(entries []ActualCostEntry, sheetID int, producedQty int64) ActualsResult {
	if producedQty < 0 {
		producedQty = 0
	}

	sectionTotals := make(map[Section]decimal.Decimal, len(e.policy.SectionOrder))
	for _, entry := range entries {
		if sheetID > 0 && (entry.CostSheetID == nil || *entry.CostSheetID != sheetID) {
			continue
		}
		section := entry.Section
		if !section.IsValid() {
			section = SectionOther
		}
		sectionTotals[section] = sectionTotals[section].Add(nz(entry.ActualTotalCost))
	}

	var sections []SectionActual
	total := decimal.Zero
	for _, section := range e.policy.SectionOrder {
		t, ok := sectionTotals[section]
		if !ok {
			continue
		}
		sections = append(sections, SectionActual{Section: section, TotalCost: t})
		total = total.Add(t)
	}

	perPiece := decimal.Zero
	if producedQty > 0 {
		perPiece = e.roundInternal(total.Div(decimal.NewFromInt(producedQty)))
	}

	return ActualsResult{
		ProducedQty:  producedQty,
		Sections:     sections,
		TotalCost:    total,
		CostPerPiece: perPiece,
	}
}

// ── Variance ──────────────────────────────────────────────────────────────────

// VarianceRow compares one section's standard cost (unit cost × produced qty)
// against its actual ledger total. Positive Difference means an overrun.
type VarianceRow struct {
	Section       Section         `json:"section"`
	StandardTotal decimal.Decimal `json:"standard_total"`
	ActualTotal   decimal.Decimal `json:"actual_total"`
	Difference    decimal.Decimal `json:"difference"`
}

// VarianceDisplay carries the presentation-rounded headline variance figures.
type VarianceDisplay struct {
	VariancePerPiece decimal.Decimal `json:"variance_per_piece"`
	TotalVariance    decimal.Decimal `json:"total_variance"`
	MarginBefore     decimal.Decimal `json:"margin_before"`
	MarginAfter      decimal.Decimal `json:"margin_after"`
}

// VarianceResult is the actual-vs-standard comparison for one completed run.
// MarginBefore uses standard cost against the quoted price; MarginAfter uses
// actual cost against the same quoted price.
type VarianceResult struct {
	Standard         Result          `json:"standard"`
	Actuals          ActualsResult   `json:"actuals"`
	VariancePerPiece decimal.Decimal `json:"variance_per_piece"`
	TotalVariance    decimal.Decimal `json:"total_variance"`
	MarginBefore     decimal.Decimal `json:"margin_before"`
	MarginAfter      decimal.Decimal `json:"margin_after"`
	Rows             []VarianceRow   `json:"rows"`
	Display          VarianceDisplay `json:"display"`
}

// Variance builds the variance report for a sheet against a production run.
// Returns nil when either the sheet or the run is missing: there is no
// variance without both a standard and an actual. Rows follow the canonical
// section order so reports stay comparable across sheets.
func (e *Engine) Variance(sheet *CostSheet, lines []CostLineItem, run *ProductionRun, entries []ActualCostEntry) *VarianceResult {
	if sheet == nil || run == nil {
		return nil
	}

	standard := e.Calculate(*sheet, lines)
	actuals := e.Actuals(entries, sheet.ID, run.ProducedQty)

	producedQty := decimal.NewFromInt(actuals.ProducedQty)
	variancePerPiece := actuals.CostPerPiece.Sub(standard.TotalCostPerPiece)
	totalVariance := e.roundInternal(variancePerPiece.Mul(producedQty))

	quote := standard.QuotePricePerPiece
	marginBefore := decimal.Zero
	marginAfter := decimal.Zero
	if !quote.IsZero() {
		marginBefore = e.roundInternal(quote.Sub(standard.TotalCostPerPiece).Div(quote).Mul(hundred))
		marginAfter = e.roundInternal(quote.Sub(actuals.CostPerPiece).Div(quote).Mul(hundred))
	}

	var rows []VarianceRow
	for _, section := range e.policy.SectionOrder {
		stdUnit := standard.SectionUnitCost(section)
		actTotal := actuals.SectionTotal(section)
		if stdUnit.IsZero() && actTotal.IsZero() {
			continue
		}
		stdTotal := e.roundInternal(stdUnit.Mul(producedQty))
		rows = append(rows, VarianceRow{
			Section:       section,
			StandardTotal: stdTotal,
			ActualTotal:   actTotal,
			Difference:    actTotal.Sub(stdTotal),
		})
	}

	return &VarianceResult{
		Standard:         standard,
		Actuals:          actuals,
		VariancePerPiece: variancePerPiece,
		TotalVariance:    totalVariance,
		MarginBefore:     marginBefore,
		MarginAfter:      marginAfter,
		Rows:             rows,
		Display: VarianceDisplay{
			VariancePerPiece: e.roundDisplay(variancePerPiece),
			TotalVariance:    e.roundDisplay(totalVariance),
			MarginBefore:     e.roundDisplay(marginBefore),
			MarginAfter:      e.roundDisplay(marginAfter),
		},
	}
}
