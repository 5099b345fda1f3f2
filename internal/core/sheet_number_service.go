package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SheetNumberService assigns gapless, per-company, per-year cost sheet
// numbers of the form CS-<year>-<seq>. Numbers are assigned once, at
// approval time, and never reused.
type SheetNumberService interface {
	// NextSheetNumber assigns a number in its own transaction.
	NextSheetNumber(ctx context.Context, companyID int) (string, error)
	// NextSheetNumberTx assigns a number inside the caller's transaction.
	// Use when the caller controls the transaction boundary (e.g. sheet
	// approval) so the number assignment and the status change are atomic.
	NextSheetNumberTx(ctx context.Context, tx pgx.Tx, companyID int) (string, error)
}

type sheetNumberService struct {
	pool *pgxpool.Pool
}

// NewSheetNumberService constructs a SheetNumberService backed by the
// sheet_sequences table.
func NewSheetNumberService(pool *pgxpool.Pool) SheetNumberService {
	return &sheetNumberService{pool: pool}
}

func (s *sheetNumberService) NextSheetNumber(ctx context.Context, companyID int) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	number, err := s.NextSheetNumberTx(ctx, tx, companyID)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit sequence: %w", err)
	}
	return number, nil
}

// NextSheetNumberTx generates the next gapless number via an upsert-increment
// on the sequence row. The row lock taken by the UPDATE serializes concurrent
// approvals for the same company and year.
func (s *sheetNumberService) NextSheetNumberTx(ctx context.Context, tx pgx.Tx, companyID int) (string, error) {
	year := time.Now().Year()

	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO sheet_sequences (company_id, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, year)
		DO UPDATE SET last_number = sheet_sequences.last_number + 1
		RETURNING last_number
	`, companyID, year).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate gapless sheet number: %w", err)
	}

	return fmt.Sprintf("CS-%d-%05d", year, lastNumber), nil
}
