package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kalambet/partsbin/internal/catalog"
)

var componentColumns = []string{
	"id", "part_number", "type", "attributes", "quantity",
	"purchase_url", "datasheet_url", "location", "notes", "image_path",
	"created_at", "updated_at",
}

// UpdatableColumns are the component columns UpdateComponent accepts.
var UpdatableColumns = map[string]bool{
	"part_number":   true,
	"type":          true,
	"attributes":    true,
	"quantity":      true,
	"purchase_url":  true,
	"datasheet_url": true,
	"location":      true,
	"notes":         true,
	"image_path":    true,
}

// InventoryStore holds the components of one inventory file.
type InventoryStore struct {
	db   *sql.DB
	path string
}

// OpenInventory opens (or creates) the inventory database at path. Pass
// ":memory:" for an in-memory database.
func OpenInventory(path string) (*InventoryStore, error) {
	db, err := openDB(path, schemaInventory)
	if err != nil {
		return nil, err
	}
	return &InventoryStore{db: db, path: path}, nil
}

// Path returns the file the store was opened from.
func (s *InventoryStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *InventoryStore) Close() error {
	return s.db.Close()
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *InventoryStore) AppliedMigrations() ([]int, error) {
	return appliedMigrations(s.db)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertComponent(ctx context.Context, ex execer, c catalog.Component) error {
	attrs := c.Attributes
	if attrs == nil {
		attrs = catalog.Attributes{}
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO components (id, part_number, type, attributes, quantity, purchase_url, datasheet_url, location, notes, image_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PartNumber, c.Type, attrs, c.Quantity,
		c.PurchaseURL, c.DatasheetURL, c.Location, c.Notes, c.ImagePath,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: part number %q", ErrDuplicate, c.PartNumber)
	}
	return err
}

// InsertComponent stores a new component. A part number already in use
// returns ErrDuplicate.
func (s *InventoryStore) InsertComponent(ctx context.Context, c catalog.Component) error {
	return insertComponent(ctx, s.db, c)
}

func (s *InventoryStore) GetComponent(ctx context.Context, id string) (catalog.Component, error) {
	query, args, err := sq.Select(componentColumns...).From("components").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return catalog.Component{}, err
	}
	c, err := scanComponent(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Component{}, ErrNotFound
	}
	return c, err
}

// GetComponentByPartNumber looks up a component by part number, ignoring case.
func (s *InventoryStore) GetComponentByPartNumber(ctx context.Context, partNumber string) (catalog.Component, error) {
	query, args, err := sq.Select(componentColumns...).From("components").
		Where("part_number = ? COLLATE NOCASE", partNumber).ToSql()
	if err != nil {
		return catalog.Component{}, err
	}
	c, err := scanComponent(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Component{}, ErrNotFound
	}
	return c, err
}

// likeEscaper makes search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *InventoryStore) ListComponents(ctx context.Context, f ComponentFilter) ([]catalog.Component, error) {
	b := sq.Select(componentColumns...).From("components").OrderBy("type ASC", "part_number ASC")
	if f.Type != "" {
		b = b.Where(sq.Eq{"type": f.Type})
	}
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(f.Search) + "%"
		like := func(col string) sq.Sqlizer {
			return sq.Expr(col+` LIKE ? ESCAPE '\'`, pattern)
		}
		b = b.Where(sq.Or{like("part_number"), like("attributes"), like("location"), like("notes")})
	}
	if f.MaxQuantity != nil {
		b = b.Where(sq.LtOrEq{"quantity": *f.MaxQuantity})
	}
	// SQLite accepts OFFSET only together with LIMIT.
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
		if f.Offset > 0 {
			b = b.Offset(uint64(f.Offset))
		}
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateComponent sets the given columns on component id. Keys must be in
// UpdatableColumns.
func (s *InventoryStore) UpdateComponent(ctx context.Context, id string, fields map[string]any) error {
	set := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if !UpdatableColumns[k] {
			return fmt.Errorf("column %q cannot be updated", k)
		}
		set[k] = v
	}
	set["updated_at"] = formatTime(time.Now())

	query, args, err := sq.Update("components").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: part number %v", ErrDuplicate, fields["part_number"])
	}
	if err != nil {
		return err
	}
	return requireRows(res)
}

// AdjustQuantity adds delta to the quantity of component id and returns the
// new quantity. When the result would be negative nothing is written and the
// current quantity is returned with ErrInsufficientStock.
func (s *InventoryStore) AdjustQuantity(ctx context.Context, id string, delta int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT quantity FROM components WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	next := current + delta
	if next < 0 {
		return current, ErrInsufficientStock
	}
	if _, err := tx.ExecContext(ctx, `UPDATE components SET quantity = ?, updated_at = ? WHERE id = ?`,
		next, formatTime(time.Now()), id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *InventoryStore) DeleteComponent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// DeleteComponentsByType removes every component of a category and returns the count.
func (s *InventoryStore) DeleteComponentsByType(ctx context.Context, typeID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM components WHERE type = ?`, typeID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *InventoryStore) CountByType(ctx context.Context, typeID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM components WHERE type = ?`, typeID).Scan(&n)
	return n, err
}

// CountComponents returns the number of components and the sum of their quantities.
func (s *InventoryStore) CountComponents(ctx context.Context) (rows int, units int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM components`).Scan(&rows, &units)
	return rows, units, err
}

// ReplaceAll deletes every component and inserts cs in one transaction.
func (s *InventoryStore) ReplaceAll(ctx context.Context, cs []catalog.Component) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM components`); err != nil {
		return fmt.Errorf("clearing components: %w", err)
	}
	for _, c := range cs {
		if err := insertComponent(ctx, tx, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanComponent(row interface{ Scan(...any) error }) (catalog.Component, error) {
	var c catalog.Component
	var createdAt, updatedAt string
	err := row.Scan(
		&c.ID, &c.PartNumber, &c.Type, &c.Attributes, &c.Quantity,
		&c.PurchaseURL, &c.DatasheetURL, &c.Location, &c.Notes, &c.ImagePath,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return catalog.Component{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return catalog.Component{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return catalog.Component{}, err
	}
	return c, nil
}
