package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// StyleCostRow summarizes the latest frozen cost sheet for one style.
type StyleCostRow struct {
	Style          string
	SheetID        int
	SheetNumber    string
	Version        int
	Status         string
	TargetQuantity int64
	LineCount      int
}

// SectionSpendRow aggregates actual spend for one section over a date range.
type SectionSpendRow struct {
	Section    string
	EntryCount int
	TotalSpend decimal.Decimal
}

// SpendReport is the actual-spend-by-section report for one company.
type SpendReport struct {
	CompanyCode string
	FromDate    string
	ToDate      string
	Sections    []SectionSpendRow
	TotalSpend  decimal.Decimal
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only reporting queries over cost sheets and
// the actual-cost ledger.
type ReportingService interface {
	// GetStyleCostSummary returns, per style, the highest-version frozen
	// (approved or locked) cost sheet, ordered by style ASC. Styles with only
	// draft sheets are omitted.
	GetStyleCostSummary(ctx context.Context, companyCode string) ([]StyleCostRow, error)

	// GetActualSpend aggregates actual-cost entries by section within the
	// given date range. fromDate and toDate are optional, pass empty string
	// for no bound. If toDate is empty, today's date is reported.
	GetActualSpend(ctx context.Context, companyCode, fromDate, toDate string) (*SpendReport, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	pool *pgxpool.Pool
}

// NewReportingService constructs a ReportingService backed by the given pool.
func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

// ── GetStyleCostSummary ───────────────────────────────────────────────────────

func (s *reportingService) GetStyleCostSummary(ctx context.Context, companyCode string) ([]StyleCostRow, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (cs.style)
			cs.style, cs.id, COALESCE(cs.sheet_number, ''), cs.version, cs.status, cs.target_quantity,
			(SELECT COUNT(*) FROM cost_sheet_lines l WHERE l.sheet_id = cs.id)
		FROM cost_sheets cs
		WHERE cs.company_id = $1 AND cs.status IN ('APPROVED', 'LOCKED')
		ORDER BY cs.style ASC, cs.version DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query style cost summary: %w", err)
	}
	defer rows.Close()

	var result []StyleCostRow
	for rows.Next() {
		var r StyleCostRow
		if err := rows.Scan(&r.Style, &r.SheetID, &r.SheetNumber, &r.Version, &r.Status,
			&r.TargetQuantity, &r.LineCount); err != nil {
			return nil, fmt.Errorf("failed to scan style cost row: %w", err)
		}
		result = append(result, r)
	}
	return result, nil
}

// ── GetActualSpend ────────────────────────────────────────────────────────────

func (s *reportingService) GetActualSpend(ctx context.Context, companyCode, fromDate, toDate string) (*SpendReport, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT section, COUNT(*), COALESCE(SUM(actual_total_cost), 0)
		FROM actual_cost_entries
		WHERE company_id = $1`
	args := []any{companyID}
	if fromDate != "" {
		args = append(args, fromDate)
		q += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if toDate != "" {
		args = append(args, toDate)
		q += fmt.Sprintf(" AND entry_date <= $%d", len(args))
	}
	q += " GROUP BY section ORDER BY section"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actual spend: %w", err)
	}
	defer rows.Close()

	report := &SpendReport{
		CompanyCode: companyCode,
		FromDate:    fromDate,
		ToDate:      toDate,
		TotalSpend:  decimal.Zero,
	}
	if report.ToDate == "" {
		report.ToDate = time.Now().Format("2006-01-02")
	}

	for rows.Next() {
		var r SectionSpendRow
		if err := rows.Scan(&r.Section, &r.EntryCount, &r.TotalSpend); err != nil {
			return nil, fmt.Errorf("failed to scan section spend row: %w", err)
		}
		report.Sections = append(report.Sections, r)
		report.TotalSpend = report.TotalSpend.Add(r.TotalSpend)
	}
	return report, nil
}
