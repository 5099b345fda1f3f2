package core

import (
	"context"
	"errors"
	"fmt"

	"costing-service/internal/costing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SectionDefaults are the rate-card defaults for one section.
type SectionDefaults struct {
	Rate         decimal.Decimal
	WastePercent decimal.Decimal
}

// RateCard resolves per-company default rates from the rate_cards table.
// It replaces hardcoded rate constants in sheet-entry flows: lines entered
// (or AI-proposed) without a rate are filled from the card.
type RateCard interface {
	ResolveDefaults(ctx context.Context, companyID int, section costing.Section) (*SectionDefaults, error)
}

type rateCard struct {
	pool *pgxpool.Pool
}

// NewRateCard constructs a RateCard backed by the rate_cards table.
func NewRateCard(pool *pgxpool.Pool) RateCard {
	return &rateCard{pool: pool}
}

// ResolveDefaults returns the defaults for (companyID, section), highest
// priority first. Returns a descriptive error if no active entry exists.
func (r *rateCard) ResolveDefaults(ctx context.Context, companyID int, section costing.Section) (*SectionDefaults, error) {
	d := &SectionDefaults{}
	err := r.pool.QueryRow(ctx, `
		SELECT default_rate, default_waste_percent
		FROM rate_cards
		WHERE company_id = $1
		  AND section = $2
		  AND (effective_to IS NULL OR effective_to >= CURRENT_DATE)
		ORDER BY priority DESC
		LIMIT 1
	`, companyID, string(section)).Scan(&d.Rate, &d.WastePercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no rate card entry for company_id %d, section %q", companyID, section)
		}
		return nil, fmt.Errorf("failed to resolve rate card (company_id=%d, section=%q): %w", companyID, section, err)
	}
	return d, nil
}
