package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"PriceOptimizer/internal/model"
)

// SQLRecorder persists records to SQLite or PostgreSQL.
type SQLRecorder struct {
	db       *sql.DB
	postgres bool
	mu       sync.Mutex
}

// NewSQLRecorder opens the database and runs migrations. driver is "sqlite"
// or "postgres".
func NewSQLRecorder(driver, dsn string) (*SQLRecorder, error) {
	var name string
	switch driver {
	case "sqlite":
		name = "sqlite"
	case "postgres":
		name = "pgx"
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	r := &SQLRecorder{db: db, postgres: driver == "postgres"}
	if !r.postgres {
		// WAL lets readers proceed while a request writes.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("recorder opened", "driver", driver)
	return r, nil
}

func (r *SQLRecorder) migrate() error {
	floatType := "REAL"
	if r.postgres {
		floatType = "DOUBLE PRECISION"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS optimizations (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			name            TEXT NOT NULL,
			cost_function   TEXT NOT NULL,
			demand_function TEXT NOT NULL,
			optimal_price   ` + floatType + ` NOT NULL,
			max_profit      ` + floatType + ` NOT NULL,
			profit_function TEXT NOT NULL,
			verified        BOOLEAN NOT NULL,
			chart_key       TEXT NOT NULL DEFAULT '',
			chart_url       TEXT NOT NULL DEFAULT '',
			created_at      BIGINT NOT NULL,
			updated_at      BIGINT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_optimizations_owner_name ON optimizations(owner_id, name)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (r *SQLRecorder) rebind(query string) string {
	if !r.postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

const recordColumns = `id, owner_id, name, cost_function, demand_function, optimal_price, max_profit,
	profit_function, verified, chart_key, chart_url, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.Record, error) {
	var rec model.Record
	var created, updated int64
	err := s.Scan(&rec.ID, &rec.OwnerID, &rec.Name, &rec.CostFunction, &rec.DemandFunction,
		&rec.OptimalPrice, &rec.MaxProfit, &rec.ProfitFunction, &rec.Verified,
		&rec.ChartKey, &rec.ChartURL, &created, &updated)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return &rec, nil
}

func (r *SQLRecorder) FindByNameAndOwner(ctx context.Context, name, ownerID string) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+recordColumns+`
		FROM optimizations WHERE owner_id = ? AND name = ?`), ownerID, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", ownerID, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", ownerID, name, err)
	}
	return rec, nil
}

func (r *SQLRecorder) Save(ctx context.Context, rec *model.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO optimizations
		(`+recordColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		rec.ID, rec.OwnerID, rec.Name, rec.CostFunction, rec.DemandFunction,
		rec.OptimalPrice, rec.MaxProfit, rec.ProfitFunction, rec.Verified,
		rec.ChartKey, rec.ChartURL, rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("save %s/%s: %w: %v", rec.OwnerID, rec.Name, ErrDuplicate, err)
	}
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", rec.OwnerID, rec.Name, err)
	}
	return nil
}

func (r *SQLRecorder) Update(ctx context.Context, rec *model.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE optimizations SET
		name = ?, cost_function = ?, demand_function = ?, optimal_price = ?, max_profit = ?,
		profit_function = ?, verified = ?, chart_key = ?, chart_url = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`),
		rec.Name, rec.CostFunction, rec.DemandFunction, rec.OptimalPrice, rec.MaxProfit,
		rec.ProfitFunction, rec.Verified, rec.ChartKey, rec.ChartURL, rec.UpdatedAt.UnixMilli(),
		rec.ID, rec.OwnerID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update %s to %q: %w: %v", rec.ID, rec.Name, ErrDuplicate, err)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLRecorder) ListByOwner(ctx context.Context, ownerID string) ([]model.Record, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+recordColumns+`
		FROM optimizations WHERE owner_id = ? ORDER BY created_at, name`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ownerID, err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *SQLRecorder) Delete(ctx context.Context, name, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM optimizations WHERE owner_id = ? AND name = ?`), ownerID, name)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", ownerID, name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s/%s: %w", ownerID, name, ErrNotFound)
	}
	return nil
}

func (r *SQLRecorder) ChartKeys(ctx context.Context) ([]ChartRef, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT owner_id, chart_key FROM optimizations WHERE chart_key <> ''`)
	if err != nil {
		return nil, fmt.Errorf("chart keys: %w", err)
	}
	defer rows.Close()

	var out []ChartRef
	for rows.Next() {
		var ref ChartRef
		if err := rows.Scan(&ref.OwnerID, &ref.Key); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (r *SQLRecorder) Close() error {
	slog.Info("closing recorder")
	return r.db.Close()
}

// pgUniqueViolation is the SQLSTATE of a unique constraint failure.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique or primary key
// constraint failure from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
		return false
	}
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == pgUniqueViolation
}
