package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSheetNotFound is returned when no sheet matches the requested id.
var ErrSheetNotFound = errors.New("sheet not found")

// Store encapsulates access to the sheet database backing the demo service.
// It stands in for the remote grid API client at the same interface
// boundary: a synchronous fetch that may fail.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL using the provided DSN.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Init ensures the schema exists and seeds baseline data.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("store not initialized")
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS sheets (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS sheet_columns (
    sheet_id BIGINT NOT NULL REFERENCES sheets (id),
    position INTEGER NOT NULL,
    title    TEXT NOT NULL,
    col_type TEXT NOT NULL,
    PRIMARY KEY (sheet_id, position)
)`,
		`CREATE TABLE IF NOT EXISTS sheet_rows (
    sheet_id BIGINT NOT NULL REFERENCES sheets (id),
    row_num  INTEGER NOT NULL,
    cells    JSONB NOT NULL,
    PRIMARY KEY (sheet_id, row_num)
)`,
	}

	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}

	return s.seed(ctx)
}

func (s *Store) seed(ctx context.Context) error {
	sheets := []Sheet{
		{
			ID:   1,
			Name: "Project Tracker",
			Columns: []Column{
				{Title: "Task", Type: "TEXT_NUMBER"},
				{Title: "Status", Type: "PICKLIST"},
				{Title: "Owner", Type: "CONTACT_LIST"},
				{Title: "Due Date", Type: "DATE"},
			},
			Rows: []Row{
				{Number: 1, Cells: map[string]string{"Task": "Design schema", "Status": "Complete", "Owner": "Ada", "Due Date": "2025-01-10"}},
				{Number: 2, Cells: map[string]string{"Task": "Build importer", "Status": "In Progress", "Owner": "Grace", "Due Date": "2025-02-01"}},
				{Number: 3, Cells: map[string]string{"Task": "Write docs", "Status": "In Progress", "Owner": "Ada"}},
				{Number: 4, Cells: map[string]string{"Task": "Ship v1", "Status": "Not Started"}},
			},
		},
		{
			ID:   2,
			Name: "Job Log",
			Columns: []Column{
				{Title: "Job", Type: "TEXT_NUMBER"},
				{Title: "Status", Type: "PICKLIST"},
			},
			Rows: []Row{
				{Number: 1, Cells: map[string]string{"Job": "nightly-export", "Status": "Active"}},
				{Number: 2, Cells: map[string]string{"Job": "weekly-report", "Status": "Paused"}},
			},
		},
	}

	for _, sheet := range sheets {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO sheets (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			sheet.ID, sheet.Name); err != nil {
			return fmt.Errorf("seed sheet %d: %w", sheet.ID, err)
		}
		for i, col := range sheet.Columns {
			if _, err := s.pool.Exec(ctx,
				`INSERT INTO sheet_columns (sheet_id, position, title, col_type) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (sheet_id, position) DO NOTHING`,
				sheet.ID, i, col.Title, col.Type); err != nil {
				return fmt.Errorf("seed columns for sheet %d: %w", sheet.ID, err)
			}
		}
		for _, row := range sheet.Rows {
			cells, err := json.Marshal(row.Cells)
			if err != nil {
				return fmt.Errorf("encode cells for sheet %d: %w", sheet.ID, err)
			}
			if _, err := s.pool.Exec(ctx,
				`INSERT INTO sheet_rows (sheet_id, row_num, cells) VALUES ($1, $2, $3)
				 ON CONFLICT (sheet_id, row_num) DO NOTHING`,
				sheet.ID, row.Number, cells); err != nil {
				return fmt.Errorf("seed rows for sheet %d: %w", sheet.ID, err)
			}
		}
	}

	return nil
}

// ListSheets returns a formatted listing of every sheet.
func (s *Store) ListSheets(ctx context.Context) (string, error) {
	if s == nil || s.pool == nil {
		return "", errors.New("store not initialized")
	}

	rows, err := s.pool.Query(ctx, `SELECT id, name FROM sheets ORDER BY id`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	type sheetRef struct {
		id   int64
		name string
	}
	var refs []sheetRef
	for rows.Next() {
		var ref sheetRef
		if err := rows.Scan(&ref.id, &ref.name); err != nil {
			return "", err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d sheets:\n", len(refs))
	for _, ref := range refs {
		fmt.Fprintf(&b, "- %s (ID: %d)\n", ref.name, ref.id)
	}
	return b.String(), nil
}

// FetchSheet loads a complete sheet: name, columns in position order, rows
// in row order.
func (s *Store) FetchSheet(ctx context.Context, id int64) (*Sheet, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("store not initialized")
	}

	sheet := &Sheet{ID: id}
	if err := s.pool.QueryRow(ctx, `SELECT name FROM sheets WHERE id = $1`, id).Scan(&sheet.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSheetNotFound
		}
		return nil, err
	}

	colRows, err := s.pool.Query(ctx,
		`SELECT title, col_type FROM sheet_columns WHERE sheet_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer colRows.Close()
	for colRows.Next() {
		var col Column
		if err := colRows.Scan(&col.Title, &col.Type); err != nil {
			return nil, err
		}
		sheet.Columns = append(sheet.Columns, col)
	}
	if err := colRows.Err(); err != nil {
		return nil, err
	}

	dataRows, err := s.pool.Query(ctx,
		`SELECT row_num, cells FROM sheet_rows WHERE sheet_id = $1 ORDER BY row_num`, id)
	if err != nil {
		return nil, err
	}
	defer dataRows.Close()
	for dataRows.Next() {
		var (
			row   Row
			cells []byte
		)
		if err := dataRows.Scan(&row.Number, &cells); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cells, &row.Cells); err != nil {
			return nil, fmt.Errorf("decode cells for row %d: %w", row.Number, err)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	if err := dataRows.Err(); err != nil {
		return nil, err
	}

	return sheet, nil
}
