package costing_test

import (
	"testing"

	"costing-service/internal/costing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// poloSheet is the reference sheet used across tests: one fabric line with 10%
// waste, one labor line, one overhead line at 50% of labor, costed for 100
// pieces with a 25% target margin and no fixed quote price.
func poloSheet() (costing.CostSheet, []costing.CostLineItem) {
	sheet := costing.CostSheet{
		ID:                  1,
		Style:               "POLO-CLASSIC",
		TargetQuantity:      100,
		OverheadMethod:      costing.OverheadPercentOfLabor,
		TargetMarginPercent: dec("25"),
	}
	lines := []costing.CostLineItem{
		{SheetID: 1, Section: costing.SectionFabric, Name: "Pique knit", ConsumptionPerPiece: dec("1.0"), WastePercent: dec("10"), Rate: dec("5.00")},
		{SheetID: 1, Section: costing.SectionLabor, Name: "Sewing", ConsumptionPerPiece: dec("1"), Rate: dec("2.00")},
		{SheetID: 1, Section: costing.SectionOverhead, Name: "Factory overhead", Rate: dec("50")},
	}
	return sheet, lines
}

func TestLineUnitCost_StandardFormula(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())

	tests := []struct {
		name      string
		line      costing.CostLineItem
		targetQty int64
		want      string
	}{
		{
			name: "consumption times rate with waste",
			line: costing.CostLineItem{Section: costing.SectionFabric, ConsumptionPerPiece: dec("1.2"), WastePercent: dec("5"), Rate: dec("4.50")},
			// 1.2 × 4.50 × 1.05 = 5.67
			targetQty: 100,
			want:      "5.67",
		},
		{
			name:      "setup amortized over target quantity",
			line:      costing.CostLineItem{Section: costing.SectionTrims, ConsumptionPerPiece: dec("4"), Rate: dec("0.10"), SetupCost: dec("50")},
			targetQty: 200,
			// 4 × 0.10 + 50/200 = 0.65
			want: "0.65",
		},
		{
			name:      "zero target quantity drops the setup term",
			line:      costing.CostLineItem{Section: costing.SectionTrims, ConsumptionPerPiece: dec("4"), Rate: dec("0.10"), SetupCost: dec("50")},
			targetQty: 0,
			want:      "0.40",
		},
		{
			name:      "internal rounding at four places half-up",
			line:      costing.CostLineItem{Section: costing.SectionFabric, ConsumptionPerPiece: dec("0.3333"), Rate: dec("1"), WastePercent: dec("3.33")},
			targetQty: 100,
			// 0.3333 × 1.0333 = 0.34439889 → 0.3444
			want: "0.3444",
		},
		{
			name:      "negative inputs coerced to zero",
			line:      costing.CostLineItem{Section: costing.SectionOther, ConsumptionPerPiece: dec("-2"), Rate: dec("3"), SetupCost: dec("-10")},
			targetQty: 100,
			want:      "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.LineUnitCost(tt.line, tt.targetQty, costing.OverheadPerPiece, decimal.Zero)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("LineUnitCost = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLineUnitCost_OverheadPercentOfLabor(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())

	line := costing.CostLineItem{Section: costing.SectionOverhead, Rate: dec("35"), SetupCost: dec("20")}
	laborTotal := dec("4.80")

	// 4.80 × 35% + 20/100 = 1.68 + 0.20 = 1.88
	got := e.LineUnitCost(line, 100, costing.OverheadPercentOfLabor, laborTotal)
	if !got.Equal(dec("1.88")) {
		t.Errorf("percent-of-labor unit cost = %s, want 1.88", got)
	}

	// Under per_piece the rate is an ordinary price: consumption is zero here,
	// so only the setup term survives.
	got = e.LineUnitCost(line, 100, costing.OverheadPerPiece, laborTotal)
	if !got.Equal(dec("0.20")) {
		t.Errorf("per-piece unit cost = %s, want 0.20", got)
	}
}

func TestCalculate_ConcreteScenario(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet, lines := poloSheet()

	r := e.Calculate(sheet, lines)

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"fabric unit cost", r.SectionUnitCost(costing.SectionFabric), "5.50"},
		{"labor unit cost", r.SectionUnitCost(costing.SectionLabor), "2.00"},
		{"overhead unit cost", r.SectionUnitCost(costing.SectionOverhead), "1.00"},
		{"total cost per piece", r.TotalCostPerPiece, "8.50"},
		{"quote price (internal)", r.QuotePricePerPiece, "11.3333"},
		{"display quote price", r.Display.QuotePricePerPiece, "11.33"},
		{"display profit", r.Display.ProfitPerPiece, "2.83"},
		{"display margin", r.Display.MarginPercent, "25.00"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}

	if !r.QuoteDerived {
		t.Error("expected quote to be flagged as margin-derived")
	}
	if r.LaborUnitCost.Cmp(dec("2.00")) != 0 {
		t.Errorf("labor total = %s, want 2.00", r.LaborUnitCost)
	}
}

func TestCalculate_SectionShares(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet, lines := poloSheet()

	r := e.Calculate(sheet, lines)

	// 5.50/8.50, 2.00/8.50, 1.00/8.50 as percents, internally rounded.
	wantShares := map[costing.Section]string{
		costing.SectionFabric:   "64.7059",
		costing.SectionLabor:    "23.5294",
		costing.SectionOverhead: "11.7647",
	}
	if len(r.Sections) != 3 {
		t.Fatalf("expected 3 section rows, got %d", len(r.Sections))
	}
	// Canonical ordering: fabric before labor before overhead.
	order := []costing.Section{costing.SectionFabric, costing.SectionLabor, costing.SectionOverhead}
	for i, sb := range r.Sections {
		if sb.Section != order[i] {
			t.Errorf("section row %d = %s, want %s", i, sb.Section, order[i])
		}
		if !sb.SharePercent.Equal(dec(wantShares[sb.Section])) {
			t.Errorf("share for %s = %s, want %s", sb.Section, sb.SharePercent, wantShares[sb.Section])
		}
	}
}

func TestCalculate_QuoteDerivation(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())

	lines := []costing.CostLineItem{
		{Section: costing.SectionFabric, ConsumptionPerPiece: dec("2"), Rate: dec("4.25")}, // 8.50
	}

	tests := []struct {
		name        string
		margin      string
		fixedQuote  string
		wantQuote   string
		wantMargin  string
		wantDerived bool
	}{
		{"fixed quote wins over margin", "25", "12.00", "12.00", "29.1667", false},
		{"margin 50 doubles the cost", "50", "0", "17", "50", true},
		{"margin at 100 is degenerate", "100", "0", "0", "0", true},
		{"margin above 100 is degenerate", "150", "0", "0", "0", true},
		{"zero margin falls back to cost", "0", "0", "8.50", "0", true},
		{"negative margin falls back to cost", "-10", "0", "8.50", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := costing.CostSheet{
				TargetQuantity:      100,
				TargetMarginPercent: dec(tt.margin),
				QuotePricePerPiece:  dec(tt.fixedQuote),
			}
			r := e.Calculate(sheet, lines)
			if !r.QuotePricePerPiece.Equal(dec(tt.wantQuote)) {
				t.Errorf("quote = %s, want %s", r.QuotePricePerPiece, tt.wantQuote)
			}
			if !r.MarginPercent.Equal(dec(tt.wantMargin)) {
				t.Errorf("margin = %s, want %s", r.MarginPercent, tt.wantMargin)
			}
			if r.QuoteDerived != tt.wantDerived {
				t.Errorf("derived = %v, want %v", r.QuoteDerived, tt.wantDerived)
			}
		})
	}
}

func TestCalculate_MarginRoundTrip(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet := costing.CostSheet{TargetQuantity: 100, TargetMarginPercent: dec("50")}
	lines := []costing.CostLineItem{
		{Section: costing.SectionFabric, ConsumptionPerPiece: dec("2"), Rate: dec("4.25")},
	}

	r := e.Calculate(sheet, lines)

	// quote = cost / (1 − 0.5) = cost × 2; recomputing the margin from that
	// quote and the same cost must land back on 50.
	if !r.QuotePricePerPiece.Equal(r.TotalCostPerPiece.Mul(dec("2"))) {
		t.Errorf("quote = %s, want twice the cost %s", r.QuotePricePerPiece, r.TotalCostPerPiece)
	}
	if !r.MarginPercent.Equal(dec("50")) {
		t.Errorf("margin percent = %s, want 50", r.MarginPercent)
	}
}

func TestCalculate_ZeroGuards(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())

	// Zero target quantity: no panic, setup terms all zero.
	sheet := costing.CostSheet{TargetQuantity: 0}
	lines := []costing.CostLineItem{
		{Section: costing.SectionLabor, ConsumptionPerPiece: dec("1"), Rate: dec("3"), SetupCost: dec("500")},
	}
	r := e.Calculate(sheet, lines)
	if !r.TotalCostPerPiece.Equal(dec("3")) {
		t.Errorf("total at qty 0 = %s, want 3 (setup amortization dropped)", r.TotalCostPerPiece)
	}

	// Empty sheet: everything zero, margin zero, no divide errors.
	r = e.Calculate(costing.CostSheet{TargetQuantity: 100}, nil)
	if !r.TotalCostPerPiece.IsZero() || !r.MarginPercent.IsZero() || !r.TotalQuoteValue.IsZero() {
		t.Errorf("empty sheet produced non-zero figures: %+v", r)
	}
	if len(r.Sections) != 0 {
		t.Errorf("empty sheet produced %d section rows", len(r.Sections))
	}
}

func TestCalculateAt_DoesNotMutateInputs(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet, lines := poloSheet()

	base := e.Calculate(sheet, lines)
	_ = e.CalculateAt(sheet, lines, 500)
	_ = e.CalculateAt(sheet, lines, 0)
	again := e.Calculate(sheet, lines)

	// Bit-identical results after arbitrary overrides proves the inputs were
	// never touched.
	if !base.TotalCostPerPiece.Equal(again.TotalCostPerPiece) ||
		!base.QuotePricePerPiece.Equal(again.QuotePricePerPiece) ||
		!base.MarginPercent.Equal(again.MarginPercent) ||
		base.EffectiveQty != again.EffectiveQty {
		t.Errorf("repeat calculation diverged: first %+v, second %+v", base, again)
	}
	if sheet.TargetQuantity != 100 {
		t.Errorf("sheet target quantity mutated to %d", sheet.TargetQuantity)
	}
	for i, line := range lines {
		if line.Rate.IsNegative() || line.ConsumptionPerPiece.IsNegative() {
			t.Errorf("line %d mutated: %+v", i, line)
		}
	}
}

func TestScenarios_SetupAmortizationMonotonicity(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet := costing.CostSheet{TargetQuantity: 100, TargetMarginPercent: dec("20")}
	lines := []costing.CostLineItem{
		{Section: costing.SectionFabric, ConsumptionPerPiece: dec("1.5"), Rate: dec("3.20"), WastePercent: dec("8")},
		{Section: costing.SectionLabor, ConsumptionPerPiece: dec("1"), Rate: dec("2.10"), SetupCost: dec("240")},
	}

	scenarios := e.Scenarios(sheet, lines, []int64{50, 100, 200, 500, 1000})
	if len(scenarios) != 5 {
		t.Fatalf("expected 5 scenarios, got %d", len(scenarios))
	}

	// With a non-zero setup cost, per-piece cost strictly decreases as volume
	// spreads the amortization over more units.
	for i := 1; i < len(scenarios); i++ {
		prev := scenarios[i-1].Result.TotalCostPerPiece
		curr := scenarios[i].Result.TotalCostPerPiece
		if !curr.LessThan(prev) {
			t.Errorf("cost at qty %d (%s) not below cost at qty %d (%s)",
				scenarios[i].Quantity, curr, scenarios[i-1].Quantity, prev)
		}
	}
}

func TestLaborPass_IndependentOfOtherSections(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())

	laborOnly := []costing.CostLineItem{
		{Section: costing.SectionLabor, ConsumptionPerPiece: dec("0.5"), Rate: dec("6")},
		{Section: costing.SectionLabor, ConsumptionPerPiece: dec("0.25"), Rate: dec("8")},
	}
	full := append([]costing.CostLineItem{
		{Section: costing.SectionFabric, ConsumptionPerPiece: dec("2"), Rate: dec("9.99"), WastePercent: dec("15")},
		{Section: costing.SectionOverhead, Rate: dec("40")},
		{Section: costing.SectionPackaging, ConsumptionPerPiece: dec("1"), Rate: dec("0.35")},
	}, laborOnly...)

	sheet := costing.CostSheet{TargetQuantity: 100, OverheadMethod: costing.OverheadPercentOfLabor}

	isolated := e.Calculate(sheet, laborOnly)
	combined := e.Calculate(sheet, full)

	// The labor total must be identical whether or not other sections exist.
	if !isolated.LaborUnitCost.Equal(combined.LaborUnitCost) {
		t.Errorf("labor total changed with other sections present: %s vs %s",
			isolated.LaborUnitCost, combined.LaborUnitCost)
	}
	// Overhead equals laborTotal × 40%.
	wantOverhead := combined.LaborUnitCost.Mul(dec("0.4")).Round(4)
	if !combined.SectionUnitCost(costing.SectionOverhead).Equal(wantOverhead) {
		t.Errorf("overhead = %s, want %s", combined.SectionUnitCost(costing.SectionOverhead), wantOverhead)
	}
}

func TestActuals_FilterAndPerPiece(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheetID := 7
	otherSheet := 9

	entries := []costing.ActualCostEntry{
		{ProductionOrderID: 1, CostSheetID: &sheetID, Section: costing.SectionFabric, ActualTotalCost: dec("560.00")},
		{ProductionOrderID: 1, CostSheetID: &sheetID, Section: costing.SectionLabor, ActualTotalCost: dec("210.50")},
		{ProductionOrderID: 1, CostSheetID: &sheetID, Section: costing.SectionLabor, ActualTotalCost: dec("39.50")},
		{ProductionOrderID: 1, CostSheetID: &otherSheet, Section: costing.SectionOther, ActualTotalCost: dec("999")},
		{ProductionOrderID: 1, Section: costing.SectionOther, ActualTotalCost: dec("111")},
	}

	r := e.Actuals(entries, sheetID, 100)
	if !r.TotalCost.Equal(dec("810.00")) {
		t.Errorf("filtered total = %s, want 810.00", r.TotalCost)
	}
	if !r.SectionTotal(costing.SectionLabor).Equal(dec("250.00")) {
		t.Errorf("labor actual = %s, want 250.00", r.SectionTotal(costing.SectionLabor))
	}
	if !r.CostPerPiece.Equal(dec("8.10")) {
		t.Errorf("cost per piece = %s, want 8.10", r.CostPerPiece)
	}

	// Unfiltered: every entry for the run counts.
	r = e.Actuals(entries, 0, 100)
	if !r.TotalCost.Equal(dec("1920.00")) {
		t.Errorf("unfiltered total = %s, want 1920.00", r.TotalCost)
	}

	// Zero produced quantity short-circuits the per-piece division.
	r = e.Actuals(entries, sheetID, 0)
	if !r.CostPerPiece.IsZero() {
		t.Errorf("cost per piece at qty 0 = %s, want 0", r.CostPerPiece)
	}
}

func TestVariance_RequiresBothSides(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet, lines := poloSheet()
	run := costing.ProductionRun{ID: 1, ProducedQty: 100}

	if e.Variance(nil, lines, &run, nil) != nil {
		t.Error("expected nil variance without a sheet")
	}
	if e.Variance(&sheet, lines, nil, nil) != nil {
		t.Error("expected nil variance without a production run")
	}
}

func TestVariance_RoundTrip(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet, lines := poloSheet()
	run := costing.ProductionRun{ID: 1, ProducedQty: 100}

	standard := e.Calculate(sheet, lines)

	// Actuals that exactly match standard_unit_cost × produced_qty per section.
	var entries []costing.ActualCostEntry
	for _, sb := range standard.Sections {
		entries = append(entries, costing.ActualCostEntry{
			ProductionOrderID: run.ID,
			CostSheetID:       &sheet.ID,
			Section:           sb.Section,
			ActualTotalCost:   sb.UnitCost.Mul(dec("100")),
		})
	}

	v := e.Variance(&sheet, lines, &run, entries)
	if v == nil {
		t.Fatal("expected a variance report")
	}
	if !v.TotalVariance.IsZero() {
		t.Errorf("total variance = %s, want 0", v.TotalVariance)
	}
	if !v.MarginAfter.Equal(v.MarginBefore) {
		t.Errorf("margin after (%s) != margin before (%s)", v.MarginAfter, v.MarginBefore)
	}
	for _, row := range v.Rows {
		if !row.Difference.IsZero() {
			t.Errorf("section %s difference = %s, want 0", row.Section, row.Difference)
		}
	}
}

func TestVariance_Overrun(t *testing.T) {
	e := costing.NewEngine(costing.DefaultPolicy())
	sheet, lines := poloSheet()
	sheet.QuotePricePerPiece = dec("12.00")
	run := costing.ProductionRun{ID: 2, ProducedQty: 100}

	// Fabric came in 60 over standard (standard fabric total = 550).
	entries := []costing.ActualCostEntry{
		{ProductionOrderID: 2, CostSheetID: &sheet.ID, Section: costing.SectionFabric, ActualTotalCost: dec("610.00")},
		{ProductionOrderID: 2, CostSheetID: &sheet.ID, Section: costing.SectionLabor, ActualTotalCost: dec("200.00")},
		{ProductionOrderID: 2, CostSheetID: &sheet.ID, Section: costing.SectionOverhead, ActualTotalCost: dec("100.00")},
	}

	v := e.Variance(&sheet, lines, &run, entries)
	if v == nil {
		t.Fatal("expected a variance report")
	}

	// Actual cost/piece 9.10 vs standard 8.50 → +0.60/piece, +60 total.
	if !v.VariancePerPiece.Equal(dec("0.60")) {
		t.Errorf("variance per piece = %s, want 0.60", v.VariancePerPiece)
	}
	if !v.TotalVariance.Equal(dec("60.00")) {
		t.Errorf("total variance = %s, want 60.00", v.TotalVariance)
	}
	if !v.MarginAfter.LessThan(v.MarginBefore) {
		t.Errorf("margin after (%s) should be below margin before (%s)", v.MarginAfter, v.MarginBefore)
	}

	// Fabric row carries the whole overrun.
	for _, row := range v.Rows {
		want := "0"
		if row.Section == costing.SectionFabric {
			want = "60.00"
		}
		if !row.Difference.Equal(dec(want)) {
			t.Errorf("section %s difference = %s, want %s", row.Section, row.Difference, want)
		}
	}
}

func TestNormalize_CoercesBadInput(t *testing.T) {
	sheet := costing.CostSheet{
		TargetQuantity:     -5,
		OverheadMethod:     "bogus",
		QuotePricePerPiece: dec("-1"),
	}
	sheet.Normalize()
	if sheet.TargetQuantity != 0 || sheet.OverheadMethod != costing.OverheadPerPiece || !sheet.QuotePricePerPiece.IsZero() {
		t.Errorf("sheet not normalized: %+v", sheet)
	}
	if sheet.Status != costing.SheetStatusDraft || sheet.Version != 1 {
		t.Errorf("sheet defaults not applied: %+v", sheet)
	}

	line := costing.CostLineItem{Section: "mystery", Rate: dec("-3"), WastePercent: dec("-1")}
	line.Normalize()
	if line.Section != costing.SectionOther || !line.Rate.IsZero() || !line.WastePercent.IsZero() {
		t.Errorf("line not normalized: %+v", line)
	}
}
