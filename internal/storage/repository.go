// Package storage persists categories, transactions and auth state in
// SQLite. It is the concrete data store behind the HTTP API; everything
// above it only sees core types.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCategory means a category with the same name and type
	// already exists.
	ErrDuplicateCategory = errors.New("category with this name and type already exists")
	// ErrUnknownCategory means a write referenced a category id that does
	// not exist. Distinct from core.ErrDanglingCategory, which marks
	// integrity faults found at read time.
	ErrUnknownCategory = errors.New("unknown category")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateCategory inserts a new category and returns its id.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, color) VALUES (?, ?, ?)`,
		c.Name, string(c.Type), c.Color)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateCategory
		}
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}

	slog.InfoContext(ctx, "Category created", "id", id, "name", c.Name, "type", c.Type)
	return id, nil
}

// ListCategories returns active categories, optionally filtered by type,
// ordered by type then name.
func (r *SQLiteRepository) ListCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error) {
	query := `SELECT id, name, type, color, is_active, created_at FROM categories WHERE is_active = 1`
	args := []any{}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY type, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory returns one category by id, active or not.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, color, is_active, created_at FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	return c, err
}

// UpdateCategoryColor changes a category's color. Color is the only
// mutable category field; name and type are frozen at creation.
func (r *SQLiteRepository) UpdateCategoryColor(ctx context.Context, id int64, color string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET color = ? WHERE id = ?`, color, id)
	if err != nil {
		return fmt.Errorf("update category color: %w", err)
	}
	return requireRow(res)
}

// DeactivateCategory soft-deletes a category. Its transactions keep their
// reference so historical reports stay intact.
func (r *SQLiteRepository) DeactivateCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate category: %w", err)
	}
	return requireRow(res)
}

// CreateTransaction inserts a transaction after checking the category
// reference, returning ErrUnknownCategory for an unknown category.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM categories WHERE id = ?`, t.CategoryID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check category: %w", err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: category %d", ErrUnknownCategory, t.CategoryID)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (amount_cents, category_id, date, description) VALUES (?, ?, ?, ?)`,
		t.Amount.Cents, t.CategoryID, t.Date.String(), t.Description)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"category_id", t.CategoryID,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return id, nil
}

// TransactionUpdate carries a partial update; nil fields are left as-is.
type TransactionUpdate struct {
	Amount      *core.Money
	CategoryID  *int64
	Date        *core.Date
	Description *string
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, upd TransactionUpdate) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if upd.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, upd.Amount.Cents)
	}
	if upd.CategoryID != nil {
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM categories WHERE id = ?`, *upd.CategoryID).Scan(&exists); err != nil {
			return fmt.Errorf("check category: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: category %d", ErrUnknownCategory, *upd.CategoryID)
		}
		sets = append(sets, "category_id = ?")
		args = append(args, *upd.CategoryID)
	}
	if upd.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, upd.Date.String())
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

// GetTransaction returns one transaction joined with its category.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.ClassifiedTransaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT t.id, t.amount_cents, t.category_id, t.date, t.description, t.created_at,
		       c.name, c.type, c.color
		FROM transactions t
		JOIN categories c ON t.category_id = c.id
		WHERE t.id = ?`, id)

	ct, err := scanClassified(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ClassifiedTransaction{}, ErrNotFound
	}
	return ct, err
}

// ListTransactions returns the classified transactions of an inclusive date
// range, newest first. includeSavings controls whether savings-typed rows
// appear; general listings want them, primary-ledger analytics do not.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, start, end core.Date, includeSavings bool) ([]core.ClassifiedTransaction, error) {
	query := `
		SELECT t.id, t.amount_cents, t.category_id, t.date, t.description, t.created_at,
		       c.name, c.type, c.color
		FROM transactions t
		JOIN categories c ON t.category_id = c.id
		WHERE t.date >= ? AND t.date <= ?`
	args := []any{start.String(), end.String()}
	if !includeSavings {
		query += ` AND c.type NOT IN ('savings_income', 'savings_expense')`
	}
	query += ` ORDER BY t.date DESC, t.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.ClassifiedTransaction, 0)
	for rows.Next() {
		ct, err := scanClassified(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// AllCategories returns every category, deactivated ones included.
// Classification needs the full set: a soft-deleted category still owns
// its historical transactions.
func (r *SQLiteRepository) AllCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, color, is_active, created_at FROM categories ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("list all categories: %w", err)
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Categories implements analytics.CategorySource.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	return r.AllCategories(ctx)
}

// TransactionsInRange implements analytics.TransactionSource.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, rng analytics.Range, includeSavings bool) ([]core.Transaction, error) {
	classified, err := r.ListTransactions(ctx, rng.Start, rng.End, includeSavings)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, len(classified))
	for i, ct := range classified {
		out[i] = ct.Transaction
	}
	return out, nil
}

// GetPasswordHash returns the stored credential hash, or ErrNotFound when
// no password has been set up yet.
func (r *SQLiteRepository) GetPasswordHash(ctx context.Context) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM credentials WHERE id = 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash, nil
}

func (r *SQLiteRepository) SetPasswordHash(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, password_hash) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET password_hash = excluded.password_hash, updated_at = CURRENT_TIMESTAMP`,
		hash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SaveToken(ctx context.Context, value string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (value, expires_at) VALUES (?, ?)`, value, expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// TokenExpiry returns a token's expiry, or ErrNotFound for unknown tokens.
func (r *SQLiteRepository) TokenExpiry(ctx context.Context, value string) (time.Time, error) {
	var unix int64
	err := r.db.QueryRowContext(ctx, `SELECT expires_at FROM tokens WHERE value = ?`, value).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("token expiry: %w", err)
	}
	return time.Unix(unix, 0), nil
}

func (r *SQLiteRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return fmt.Errorf("delete expired tokens: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c         core.Category
		typ       string
		active    int
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Color, &active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, err
		}
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.Type = core.CategoryType(typ)
	c.IsActive = active != 0
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		c.CreatedAt = t
	}
	return c, nil
}

func scanClassified(row rowScanner) (core.ClassifiedTransaction, error) {
	var (
		ct        core.ClassifiedTransaction
		dateStr   string
		typ       string
		createdAt string
	)
	err := row.Scan(&ct.ID, &ct.Amount.Cents, &ct.CategoryID, &dateStr, &ct.Description, &createdAt,
		&ct.CategoryName, &typ, &ct.CategoryColor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ClassifiedTransaction{}, err
		}
		return core.ClassifiedTransaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	ct.CategoryType = core.CategoryType(typ)
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		ct.CreatedAt = t
	}
	ct.Date, err = core.ParseDate(dateStr)
	if err != nil {
		return core.ClassifiedTransaction{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	return ct, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
