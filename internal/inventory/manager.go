package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/logging"
	"github.com/kalambet/partsbin/internal/metrics"
	"github.com/kalambet/partsbin/internal/storage"
)

const (
	// SettingStartupInventory names the inventory opened at startup.
	SettingStartupInventory = "startup_inventory"
	// DefaultInventoryName is created on first run.
	DefaultInventoryName = "default"
)

// Registrar persists the list of inventories and the startup setting.
// *storage.SettingsStore implements it.
type Registrar interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	ListInventories(ctx context.Context) ([]storage.Inventory, error)
	GetInventory(ctx context.Context, id string) (storage.Inventory, error)
	CreateInventory(ctx context.Context, inv storage.Inventory) error
	DeleteInventory(ctx context.Context, id string) error
}

// Manager owns the active inventory store. Switching opens the new store
// first, then waits for operations running through Do before closing the
// previous one.
type Manager struct {
	dataDir  string
	settings Registrar
	registry *catalog.Registry
	log      *logging.Logger

	// active is read without mu so Do callbacks can call Active.
	active atomic.Pointer[storage.Inventory]

	mu    sync.RWMutex
	store *storage.InventoryStore
	svc   *Service
}

func NewManager(dataDir string, settings Registrar, registry *catalog.Registry, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		dataDir:  dataDir,
		settings: settings,
		registry: registry,
		log:      log.WithComponent("inventory-manager"),
	}
}

// Open activates the startup inventory, creating the default one on first run.
func (m *Manager) Open(ctx context.Context) error {
	id, err := m.settings.GetSetting(ctx, SettingStartupInventory)
	switch {
	case err == nil:
		inv, err := m.settings.GetInventory(ctx, id)
		if err == nil {
			return m.activate(inv)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return apperror.Wrap(err)
		}
		m.log.Warnw("startup inventory no longer exists", "id", id)
	case !errors.Is(err, storage.ErrNotFound):
		return apperror.Wrap(err)
	}

	invs, err := m.settings.ListInventories(ctx)
	if err != nil {
		return apperror.Wrap(err)
	}
	if len(invs) == 0 {
		inv, err := m.Create(ctx, DefaultInventoryName)
		if err != nil {
			return err
		}
		invs = append(invs, inv)
	}
	if err := m.activate(invs[0]); err != nil {
		return err
	}
	return apperror.Wrap(m.settings.SetSetting(ctx, SettingStartupInventory, invs[0].ID))
}

// Close closes the active store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store, m.svc = nil, nil
	return err
}

// Active returns the active inventory.
func (m *Manager) Active() storage.Inventory {
	if inv := m.active.Load(); inv != nil {
		return *inv
	}
	return storage.Inventory{}
}

// Do runs fn against the service bound to the active inventory. The active
// store stays open and active until fn returns; fn must not call Switch,
// Close or DeleteCategory.
func (m *Manager) Do(ctx context.Context, fn func(*Service) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.svc == nil {
		return apperror.NewInvalidInput("no inventory is open")
	}
	return fn(m.svc)
}

func (m *Manager) List(ctx context.Context) ([]storage.Inventory, error) {
	invs, err := m.settings.ListInventories(ctx)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	return invs, nil
}

// Create registers a new inventory stored in <slug>.db under the data dir.
func (m *Manager) Create(ctx context.Context, name string) (storage.Inventory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.Inventory{}, apperror.NewInvalidInput("inventory name is required")
	}
	slug := catalog.Slugify(name)
	if slug == "" || slug == strings.TrimSuffix(storage.SettingsFile, ".db") {
		return storage.Inventory{}, apperror.NewInvalidInput("%q cannot be used as an inventory name", name)
	}

	inv := storage.Inventory{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      slug + ".db",
		CreatedAt: time.Now().UTC(),
	}
	if err := m.settings.CreateInventory(ctx, inv); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return storage.Inventory{}, apperror.NewDuplicate("inventory", "name", name)
		}
		return storage.Inventory{}, apperror.Wrap(err)
	}

	// Create the file now so a bad data dir fails here rather than on switch.
	store, err := storage.OpenInventory(m.pathOf(inv))
	if err != nil {
		_ = m.settings.DeleteInventory(ctx, inv.ID)
		return storage.Inventory{}, apperror.Wrap(fmt.Errorf("creating inventory file: %w", err))
	}
	store.Close()

	m.log.Infow("inventory created", "id", inv.ID, "name", inv.Name, "path", inv.Path)
	return inv, nil
}

// Switch makes inventory id active and remembers it for the next start. On
// any error the previously active inventory stays active.
func (m *Manager) Switch(ctx context.Context, id string) (storage.Inventory, error) {
	inv, err := m.settings.GetInventory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Inventory{}, apperror.NewNotFound("inventory", id)
	}
	if err != nil {
		return storage.Inventory{}, apperror.Wrap(err)
	}

	if err := m.activate(inv); err != nil {
		return storage.Inventory{}, err
	}
	if err := m.settings.SetSetting(ctx, SettingStartupInventory, inv.ID); err != nil {
		return inv, apperror.Wrap(err)
	}
	return inv, nil
}

// Resolve finds an inventory by ID or name (case-insensitive).
func (m *Manager) Resolve(ctx context.Context, idOrName string) (storage.Inventory, error) {
	invs, err := m.List(ctx)
	if err != nil {
		return storage.Inventory{}, err
	}
	for _, inv := range invs {
		if inv.ID == idOrName {
			return inv, nil
		}
	}
	for _, inv := range invs {
		if strings.EqualFold(inv.Name, strings.TrimSpace(idOrName)) {
			return inv, nil
		}
	}
	return storage.Inventory{}, apperror.NewNotFound("inventory", idOrName)
}

// Delete unregisters an inventory. The active inventory cannot be deleted.
// With removeFile the database file is deleted as well.
func (m *Manager) Delete(ctx context.Context, id string, removeFile bool) error {
	if m.Active().ID == id {
		return apperror.NewInvalidInput("cannot delete the active inventory; switch to another one first")
	}
	inv, err := m.settings.GetInventory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.NewNotFound("inventory", id)
	}
	if err != nil {
		return apperror.Wrap(err)
	}
	if err := m.settings.DeleteInventory(ctx, id); err != nil {
		return apperror.Wrap(err)
	}

	if removeFile {
		path := m.pathOf(inv)
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return apperror.Wrap(fmt.Errorf("removing %s: %w", p, err))
			}
		}
	}
	m.log.Infow("inventory deleted", "id", id, "name", inv.Name, "file_removed", removeFile)
	return nil
}

// DeleteCategory deletes a custom category together with its components in
// every inventory. Without confirm nothing is changed and the returned
// INVALID_INPUT error carries the number of affected components.
func (m *Manager) DeleteCategory(ctx context.Context, registry *catalog.Registry, nameOrID string, confirm bool) (int, error) {
	cat, err := registry.Resolve(nameOrID)
	if err != nil {
		return 0, apperror.NewNotFound("category", nameOrID)
	}
	if cat.BuiltIn {
		return 0, apperror.NewInvalidInput("built-in category %q cannot be deleted", cat.Name)
	}

	invs, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	if !confirm {
		total := 0
		for _, inv := range invs {
			n, err := m.withStore(inv, func(svc *Service) (int, error) {
				return svc.CountByType(ctx, cat.ID)
			})
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, apperror.NewInvalidInput(
			"deleting category %q also deletes %d component(s) across all inventories; confirmation required",
			cat.Name, total).
			WithDetail("category", cat.ID).
			WithDetail("components", total)
	}

	removed := 0
	for _, inv := range invs {
		n, err := m.withStore(inv, func(svc *Service) (int, error) {
			return svc.DeleteByType(ctx, cat.ID)
		})
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if err := registry.Delete(ctx, cat.ID); err != nil {
		return removed, err
	}
	m.log.Infow("category deleted", "category", cat.ID, "components_removed", removed)
	return removed, nil
}

// withStore runs fn against inv, reusing the active store when inv is active.
func (m *Manager) withStore(inv storage.Inventory, fn func(*Service) (int, error)) (int, error) {
	m.mu.RLock()
	if m.svc != nil && m.Active().ID == inv.ID {
		svc := m.svc
		defer m.mu.RUnlock()
		return fn(svc)
	}
	m.mu.RUnlock()

	store, err := storage.OpenInventory(m.pathOf(inv))
	if err != nil {
		return 0, apperror.Wrap(fmt.Errorf("opening inventory %s: %w", inv.Name, err))
	}
	defer store.Close()
	return fn(NewService(store, m.registry, m.log))
}

func (m *Manager) activate(inv storage.Inventory) error {
	store, err := storage.OpenInventory(m.pathOf(inv))
	if err != nil {
		return apperror.Wrap(fmt.Errorf("opening inventory %s: %w", inv.Name, err))
	}

	// Lock waits for in-flight Do calls on the previous store.
	m.mu.Lock()
	prev := m.store
	m.active.Store(&inv)
	m.store = store
	m.svc = NewService(store, m.registry, m.log)
	m.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			m.log.Warnw("closing previous inventory", "error", err)
		}
	}
	metrics.SetActiveInventory(inv.Name)
	m.log.Infow("inventory active", "id", inv.ID, "name", inv.Name)
	return nil
}

func (m *Manager) pathOf(inv storage.Inventory) string {
	if filepath.IsAbs(inv.Path) || m.dataDir == "" {
		return inv.Path
	}
	return filepath.Join(m.dataDir, inv.Path)
}
