package core

import (
	"errors"
	"fmt"
	"strings"

	"costing-service/internal/costing"

	"github.com/shopspring/decimal"
)

// ProposalLine is a single cost line in an AI-generated sheet proposal.
// All monetary and quantity fields are decimal strings so the structured
// output schema stays language-neutral and lossless.
type ProposalLine struct {
	Section             string `json:"section" jsonschema_description:"Cost section, one of: fabric, trims, labor, overhead, packaging, other"`
	Name                string `json:"name" jsonschema_description:"Short human-readable name of the cost component (e.g. 'Single jersey 180gsm', 'Sewing')"`
	ConsumptionPerPiece string `json:"consumption_per_piece" jsonschema_description:"Quantity of this component consumed per finished piece, as a decimal string"`
	Unit                string `json:"unit" jsonschema_description:"Unit of measure for the consumption (e.g. 'kg', 'm', 'pcs', 'min')"`
	WastePercent        string `json:"waste_percent" jsonschema_description:"Expected wastage as a percentage (e.g. '10' for 10%). Use '0' if unknown."`
	Rate                string `json:"rate" jsonschema_description:"Cost per unit of consumption as a decimal string, in the sheet currency. For percent-of-labor overhead lines this is the percentage applied to labor cost."`
	SetupCost           string `json:"setup_cost" jsonschema_description:"One-time setup cost for this component, amortized over the order quantity. Use '0' if none."`
}

// SheetProposal is the AI-generated cost sheet draft.
type SheetProposal struct {
	CompanyCode         string         `json:"company_code" jsonschema_description:"The code identifying the company this cost sheet belongs to"`
	Style               string         `json:"style" jsonschema_description:"The style or article number this sheet costs (e.g. 'POLO-CLASSIC-01')"`
	Description         string         `json:"description" jsonschema_description:"A brief description of the garment being costed"`
	Currency            string         `json:"currency" jsonschema_description:"ISO currency code for all amounts on the sheet (e.g. 'USD')"`
	TargetQuantity      string         `json:"target_quantity" jsonschema_description:"The order quantity the sheet is costed at, as an integer string. Use '0' if unspecified."`
	OverheadMethod      string         `json:"overhead_method" jsonschema_description:"How overhead lines are computed: 'per_piece' or 'percent_of_labor'"`
	TargetMarginPercent string         `json:"target_margin_percent" jsonschema_description:"Desired profit margin as a percentage of the quote price (e.g. '25'). Use '0' if unspecified."`
	Confidence          float64        `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning           string         `json:"reasoning" jsonschema_description:"Explanation of how the lines were derived from the input"`
	Lines               []ProposalLine `json:"lines" jsonschema_description:"The cost lines of the sheet, grouped by section"`
}

// ClarificationRequest is returned by the AI when the input is ambiguous or
// missing critical information.
type ClarificationRequest struct {
	Message string `json:"message" jsonschema_description:"A message asking the user for missing details (e.g., 'Please specify the fabric consumption per piece and its rate.')."`
}

// AgentResponse wraps the AI output to handle branching between a valid
// SheetProposal or a ClarificationRequest. The AI must return exactly one.
type AgentResponse struct {
	IsClarificationRequest bool                  `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if you lack enough information to create a confident proposal."`
	Clarification          *ClarificationRequest `json:"clarification,omitempty" jsonschema_description:"Required if is_clarification_request is true."`
	Proposal               *SheetProposal        `json:"proposal,omitempty" jsonschema_description:"Required if is_clarification_request is false."`
}

// Normalize cleans up LLM output, dealing with common formatting issues.
func (p *SheetProposal) Normalize() {
	p.CompanyCode = strings.TrimSpace(p.CompanyCode)
	p.Style = strings.TrimSpace(p.Style)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.OverheadMethod = strings.ToLower(strings.TrimSpace(p.OverheadMethod))

	if p.OverheadMethod == "" {
		p.OverheadMethod = string(costing.OverheadPerPiece)
	}
	p.TargetQuantity = normalizeDecimalField(p.TargetQuantity, "0")
	p.TargetMarginPercent = normalizeDecimalField(p.TargetMarginPercent, "0")

	for i := range p.Lines {
		line := &p.Lines[i]
		line.Section = strings.ToLower(strings.TrimSpace(line.Section))
		line.Name = strings.TrimSpace(line.Name)
		line.ConsumptionPerPiece = normalizeDecimalField(line.ConsumptionPerPiece, "0")
		line.WastePercent = normalizeDecimalField(line.WastePercent, "0")
		line.Rate = normalizeDecimalField(line.Rate, "0")
		line.SetupCost = normalizeDecimalField(line.SetupCost, "0")
	}
}

func normalizeDecimalField(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ToLower(s) == "null" {
		return fallback
	}
	return s
}

// Validate enforces structural rules before a proposal is turned into a sheet.
// Negative numbers are rejected here rather than silently clamped: a negative
// rate from the model means it misread the input.
func (p *SheetProposal) Validate() error {
	if p.CompanyCode == "" {
		return errors.New("proposal must specify a company code")
	}
	if p.Style == "" {
		return errors.New("proposal must specify a style")
	}
	if p.Currency == "" {
		return errors.New("proposal must specify a currency")
	}
	if !costing.OverheadMethod(p.OverheadMethod).IsValid() {
		return fmt.Errorf("invalid overhead method %q", p.OverheadMethod)
	}

	qty, err := decimal.NewFromString(p.TargetQuantity)
	if err != nil {
		return fmt.Errorf("invalid target quantity %q: %v", p.TargetQuantity, err)
	}
	if qty.IsNegative() || !qty.IsInteger() {
		return fmt.Errorf("target quantity must be a non-negative integer, got %s", p.TargetQuantity)
	}

	margin, err := decimal.NewFromString(p.TargetMarginPercent)
	if err != nil {
		return fmt.Errorf("invalid target margin %q: %v", p.TargetMarginPercent, err)
	}
	if margin.IsNegative() {
		return fmt.Errorf("target margin cannot be negative, got %s", p.TargetMarginPercent)
	}

	if len(p.Lines) == 0 {
		return errors.New("proposal must have at least one cost line")
	}

	for i, line := range p.Lines {
		if !costing.Section(line.Section).IsValid() {
			return fmt.Errorf("line %d: unknown section %q", i+1, line.Section)
		}
		if line.Name == "" {
			return fmt.Errorf("line %d: missing name", i+1)
		}
		for _, f := range []struct {
			label string
			value string
		}{
			{"consumption_per_piece", line.ConsumptionPerPiece},
			{"waste_percent", line.WastePercent},
			{"rate", line.Rate},
			{"setup_cost", line.SetupCost},
		} {
			d, err := decimal.NewFromString(f.value)
			if err != nil {
				return fmt.Errorf("line %d: invalid %s %q: %v", i+1, f.label, f.value, err)
			}
			if d.IsNegative() {
				return fmt.Errorf("line %d: %s cannot be negative", i+1, f.label)
			}
		}
	}
	return nil
}

// ToSheetInput converts a validated proposal into the persistence-layer input
// types. Call Validate first; conversion assumes all decimal strings parse.
func (p *SheetProposal) ToSheetInput() (SheetInput, []LineInput) {
	qty, _ := decimal.NewFromString(p.TargetQuantity)
	margin, _ := decimal.NewFromString(p.TargetMarginPercent)

	sheet := SheetInput{
		Style:               p.Style,
		Description:         p.Description,
		Currency:            p.Currency,
		TargetQuantity:      qty.IntPart(),
		OverheadMethod:      costing.OverheadMethod(p.OverheadMethod),
		TargetMarginPercent: margin,
	}

	lines := make([]LineInput, 0, len(p.Lines))
	for _, pl := range p.Lines {
		consumption, _ := decimal.NewFromString(pl.ConsumptionPerPiece)
		waste, _ := decimal.NewFromString(pl.WastePercent)
		rate, _ := decimal.NewFromString(pl.Rate)
		setup, _ := decimal.NewFromString(pl.SetupCost)
		lines = append(lines, LineInput{
			Section:             costing.Section(pl.Section),
			Name:                pl.Name,
			ConsumptionPerPiece: consumption,
			Unit:                pl.Unit,
			WastePercent:        waste,
			Rate:                rate,
			SetupCost:           setup,
		})
	}
	return sheet, lines
}
