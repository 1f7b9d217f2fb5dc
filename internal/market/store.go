package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Store indexes the current catalog snapshot in SQLite. Replace swaps the
// whole snapshot atomically; markets are never edited in place.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Replace discards the current snapshot and loads markets in their given order.
func (s *Store) Replace(ctx context.Context, source string, markets []Market) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning catalog replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM markets`); err != nil {
		return fmt.Errorf("clearing markets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markets (id, position, question, question_fold, category, yes_price, no_price,
			yes_percentage, no_percentage, volume, ends_in)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing market insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range markets {
		_, err := stmt.ExecContext(ctx,
			m.ID, i, m.Question, strings.ToLower(m.Question), m.Category,
			m.YesPrice, m.NoPrice, m.YesPercent, m.NoPercent, m.Volume, m.EndsIn,
		)
		if err != nil {
			return fmt.Errorf("inserting market %s: %w", m.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_refreshes (source, market_count) VALUES (?, ?)`,
		source, len(markets),
	); err != nil {
		return fmt.Errorf("recording refresh: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog replace: %w", err)
	}

	slog.Info("catalog replaced", "source", source, "count", len(markets))
	return nil
}

const selectColumns = `SELECT id, question, category, yes_price, no_price,
	yes_percentage, no_percentage, volume, ends_in FROM markets`

// List returns the markets matching f in catalog order.
func (s *Store) List(ctx context.Context, f Filter) ([]Market, error) {
	category := f.Category
	if category == AllCategories {
		category = ""
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE (? = '' OR category = ?)
		  AND instr(question_fold, ?) > 0
		ORDER BY position`,
		category, category, strings.ToLower(f.Search),
	)
	if err != nil {
		return nil, fmt.Errorf("querying markets: %w", err)
	}
	defer rows.Close()

	markets := make([]Market, 0)
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// Get returns a single market or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Market, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	m, err := scanMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Market{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

// Categories lists the distinct categories present in the snapshot.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category FROM markets GROUP BY category ORDER BY MIN(position)`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// Count returns the number of markets in the snapshot.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting markets: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarket(r rowScanner) (Market, error) {
	var m Market
	err := r.Scan(&m.ID, &m.Question, &m.Category, &m.YesPrice, &m.NoPrice,
		&m.YesPercent, &m.NoPercent, &m.Volume, &m.EndsIn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Market{}, err
		}
		return Market{}, fmt.Errorf("scanning market: %w", err)
	}
	return m, nil
}
