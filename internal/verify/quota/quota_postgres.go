package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresCounter counts OCR usage in the ocr_usage table. The conditional
// upsert makes increment-and-check atomic across instances without an
// explicit transaction.
type PostgresCounter struct {
	db *sql.DB
}

func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

// Increment counts one call against the month unless the ceiling is already
// reached. The WHERE clause on the upsert keeps a month at the limit from
// moving past it; a rejected call returns the untouched total.
func (c *PostgresCounter) Increment(ctx context.Context, year int, month time.Month, ceiling int64) (int64, bool, error) {
	if ceiling < 1 {
		used, err := c.Used(ctx, year, month)
		return used, false, err
	}

	const q = `
		INSERT INTO ocr_usage (year, month, calls)
		VALUES ($1, $2, 1)
		ON CONFLICT (year, month) DO UPDATE SET calls = ocr_usage.calls + 1
		WHERE ocr_usage.calls < $3
		RETURNING calls`

	var used int64
	err := c.db.QueryRowContext(ctx, q, year, int(month), ceiling).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		used, err = c.Used(ctx, year, month)
		return used, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment ocr usage: %w", err)
	}
	return used, true, nil
}

// Used reports the recorded calls for a month without counting one.
func (c *PostgresCounter) Used(ctx context.Context, year int, month time.Month) (int64, error) {
	const q = `SELECT calls FROM ocr_usage WHERE year = $1 AND month = $2`

	var used int64
	err := c.db.QueryRowContext(ctx, q, year, int(month)).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ocr usage: %w", err)
	}
	return used, nil
}
