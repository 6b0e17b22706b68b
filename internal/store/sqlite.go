package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rgehrsitz/nestegg/internal/forecast"
	"github.com/rgehrsitz/nestegg/internal/logging"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder stores trial outcomes in a SQLite database
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logging.Logger
}

// NewSQLiteRecorder opens (or creates) the database and creates its tables
func NewSQLiteRecorder(dbPath string, logger logging.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logging.OrNop(logger)}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.logger.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trials (
			trial           INTEGER PRIMARY KEY,
			seed            INTEGER NOT NULL,
			months          INTEGER NOT NULL,
			final_net_worth INTEGER NOT NULL,
			lifetime_tax    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tax_years (
			trial            INTEGER NOT NULL REFERENCES trials(trial),
			year             INTEGER NOT NULL,
			agi              INTEGER NOT NULL,
			total_tax        INTEGER NOT NULL,
			premiums         INTEGER NOT NULL,
			roth_conversions INTEGER NOT NULL,
			net_worth        INTEGER NOT NULL,
			PRIMARY KEY (trial, year)
		)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordTrial replaces any earlier row for the same trial index
func (r *SQLiteRecorder) RecordTrial(ctx context.Context, trial int, res *forecast.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var final int64
	if row, ok := res.Final(); ok {
		final = row.NetWorth
	}
	netWorth := res.YearEndNetWorth()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tax_years WHERE trial = ?`, trial); err != nil {
		return fmt.Errorf("clear tax years: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO trials
		(trial, seed, months, final_net_worth, lifetime_tax) VALUES (?, ?, ?, ?, ?)`,
		trial, res.Seed, len(res.Rows), final, res.LifetimeTax()); err != nil {
		return fmt.Errorf("insert trial %d: %w", trial, err)
	}
	for _, t := range res.Taxes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tax_years
			(trial, year, agi, total_tax, premiums, roth_conversions, net_worth) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			trial, t.Year, t.AGI, t.TotalTax, t.Premiums, t.RothConversions, netWorth[t.Year]); err != nil {
			return fmt.Errorf("insert tax year %d of trial %d: %w", t.Year, trial, err)
		}
	}
	return tx.Commit()
}

// Trials returns every stored trial ordered by index
func (r *SQLiteRecorder) Trials(ctx context.Context) ([]TrialRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT trial, seed, months, final_net_worth, lifetime_tax
		FROM trials ORDER BY trial`)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var out []TrialRow
	for rows.Next() {
		var t TrialRow
		if err := rows.Scan(&t.Trial, &t.Seed, &t.Months, &t.FinalNetWorth, &t.LifetimeTax); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TaxYears returns the stored tax years of one trial in year order
func (r *SQLiteRecorder) TaxYears(ctx context.Context, trial int) ([]TaxYearRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT trial, year, agi, total_tax, premiums, roth_conversions, net_worth
		FROM tax_years WHERE trial = ? ORDER BY year`, trial)
	if err != nil {
		return nil, fmt.Errorf("query tax years: %w", err)
	}
	defer rows.Close()

	var out []TaxYearRow
	for rows.Next() {
		var t TaxYearRow
		if err := rows.Scan(&t.Trial, &t.Year, &t.AGI, &t.TotalTax, &t.Premiums, &t.RothConversions, &t.NetWorth); err != nil {
			return nil, fmt.Errorf("scan tax year: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
