package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kalambet/partsbin/internal/catalog"
)

// SettingsFile is the name of the shared settings database in the data dir.
const SettingsFile = "settings.db"

// SettingsStore holds application settings, the inventory list and custom
// categories. It is shared by all inventories.
type SettingsStore struct {
	db *sql.DB
}

// OpenSettings opens the settings database in dataDir. Pass ":memory:" for
// an in-memory database.
func OpenSettings(dataDir string) (*SettingsStore, error) {
	path := dataDir
	if dataDir != ":memory:" {
		path = filepath.Join(dataDir, SettingsFile)
	}
	db, err := openDB(path, schemaSettings)
	if err != nil {
		return nil, err
	}
	return &SettingsStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SettingsStore) Close() error {
	return s.db.Close()
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *SettingsStore) AppliedMigrations() ([]int, error) {
	return appliedMigrations(s.db)
}

// --- Settings ---

func (s *SettingsStore) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *SettingsStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	)
	return err
}

func (s *SettingsStore) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

func (s *SettingsStore) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// --- Inventories ---

func (s *SettingsStore) CreateInventory(ctx context.Context, inv Inventory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventories (id, name, path, created_at) VALUES (?, ?, ?, ?)`,
		inv.ID, inv.Name, inv.Path, formatTime(inv.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: inventory %q", ErrDuplicate, inv.Name)
	}
	return err
}

func (s *SettingsStore) GetInventory(ctx context.Context, id string) (Inventory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, path, created_at FROM inventories WHERE id = ?`, id)
	inv, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Inventory{}, ErrNotFound
	}
	return inv, err
}

func (s *SettingsStore) ListInventories(ctx context.Context) ([]Inventory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, path, created_at FROM inventories ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *SettingsStore) DeleteInventory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func scanInventory(row interface{ Scan(...any) error }) (Inventory, error) {
	var inv Inventory
	var createdAt string
	if err := row.Scan(&inv.ID, &inv.Name, &inv.Path, &createdAt); err != nil {
		return Inventory{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Inventory{}, err
	}
	inv.CreatedAt = t
	return inv, nil
}

// --- Categories ---

// ListCategories returns the custom categories. It implements catalog.CategoryStore.
func (s *SettingsStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, attributes_json FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		var attrs string
		if err := rows.Scan(&c.ID, &c.Name, &attrs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &c.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes of category %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SettingsStore) SaveCategory(ctx context.Context, c catalog.Category) error {
	attrs, err := json.Marshal(c.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, attributes_json, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, string(attrs), formatTime(time.Now()),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: category %q", ErrDuplicate, c.Name)
	}
	return err
}

func (s *SettingsStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
