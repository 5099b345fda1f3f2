package core

import (
	"strings"
	"testing"

	"costing-service/internal/costing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validProposal() SheetProposal {
	return SheetProposal{
		CompanyCode:         "1000",
		Style:               "POLO-CLASSIC-01",
		Description:         "Classic pique polo",
		Currency:            "usd",
		TargetQuantity:      "500",
		OverheadMethod:      "percent_of_labor",
		TargetMarginPercent: "25",
		Confidence:          0.9,
		Lines: []ProposalLine{
			{Section: "fabric", Name: "Pique 220gsm", ConsumptionPerPiece: "0.35", Unit: "kg", WastePercent: "8", Rate: "6.20", SetupCost: "0"},
			{Section: "labor", Name: "Sewing", ConsumptionPerPiece: "1", Unit: "pcs", WastePercent: "0", Rate: "1.80", SetupCost: "0"},
		},
	}
}

func TestSheetProposal_NormalizeCleansLLMOutput(t *testing.T) {
	p := validProposal()
	p.Currency = "  usd "
	p.Style = " POLO-CLASSIC-01 "
	p.OverheadMethod = ""
	p.TargetQuantity = "null"
	p.TargetMarginPercent = ""
	p.Lines[0].Section = " FABRIC "
	p.Lines[0].WastePercent = "null"
	p.Lines[1].SetupCost = ""

	p.Normalize()

	if p.Currency != "USD" {
		t.Errorf("expected currency USD, got %q", p.Currency)
	}
	if p.Style != "POLO-CLASSIC-01" {
		t.Errorf("expected trimmed style, got %q", p.Style)
	}
	if p.OverheadMethod != string(costing.OverheadPerPiece) {
		t.Errorf("expected default overhead method, got %q", p.OverheadMethod)
	}
	if p.TargetQuantity != "0" || p.TargetMarginPercent != "0" {
		t.Errorf("expected zero-filled numerics, got qty=%q margin=%q", p.TargetQuantity, p.TargetMarginPercent)
	}
	if p.Lines[0].Section != "fabric" {
		t.Errorf("expected lowercased section, got %q", p.Lines[0].Section)
	}
	if p.Lines[0].WastePercent != "0" || p.Lines[1].SetupCost != "0" {
		t.Errorf("expected zero-filled line fields, got waste=%q setup=%q", p.Lines[0].WastePercent, p.Lines[1].SetupCost)
	}
}

func TestSheetProposal_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SheetProposal)
		wantErr string
	}{
		{"valid", func(p *SheetProposal) {}, ""},
		{"missing company", func(p *SheetProposal) { p.CompanyCode = "" }, "company code"},
		{"missing style", func(p *SheetProposal) { p.Style = "" }, "style"},
		{"missing currency", func(p *SheetProposal) { p.Currency = "" }, "currency"},
		{"bad overhead method", func(p *SheetProposal) { p.OverheadMethod = "percent_of_fabric" }, "overhead method"},
		{"fractional quantity", func(p *SheetProposal) { p.TargetQuantity = "10.5" }, "non-negative integer"},
		{"negative margin", func(p *SheetProposal) { p.TargetMarginPercent = "-5" }, "margin"},
		{"no lines", func(p *SheetProposal) { p.Lines = nil }, "at least one"},
		{"unknown section", func(p *SheetProposal) { p.Lines[0].Section = "freight" }, "unknown section"},
		{"unnamed line", func(p *SheetProposal) { p.Lines[1].Name = "" }, "missing name"},
		{"garbage rate", func(p *SheetProposal) { p.Lines[0].Rate = "six dollars" }, "invalid rate"},
		{"negative rate", func(p *SheetProposal) { p.Lines[0].Rate = "-6.20" }, "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProposal()
			p.Normalize()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid proposal, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestSheetProposal_ToSheetInput(t *testing.T) {
	p := validProposal()
	p.Normalize()
	if err := p.Validate(); err != nil {
		t.Fatalf("fixture should be valid: %v", err)
	}

	sheet, lines := p.ToSheetInput()
	if sheet.Style != "POLO-CLASSIC-01" || sheet.Currency != "USD" {
		t.Errorf("unexpected header: %+v", sheet)
	}
	if sheet.TargetQuantity != 500 {
		t.Errorf("expected target quantity 500, got %d", sheet.TargetQuantity)
	}
	if sheet.OverheadMethod != costing.OverheadPercentOfLabor {
		t.Errorf("expected percent_of_labor, got %s", sheet.OverheadMethod)
	}
	if !sheet.TargetMarginPercent.Equal(dec("25")) {
		t.Errorf("expected margin 25, got %s", sheet.TargetMarginPercent)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Section != costing.SectionFabric || !lines[0].Rate.Equal(dec("6.20")) {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if !lines[0].WastePercent.Equal(dec("8")) {
		t.Errorf("expected waste 8, got %s", lines[0].WastePercent)
	}
}
