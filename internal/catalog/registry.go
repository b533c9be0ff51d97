package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kalambet/partsbin/internal/apperror"
)

// CategoryStore persists user-defined categories.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]Category, error)
	SaveCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// Registry resolves component categories. It holds the built-in categories
// plus the custom ones loaded from a CategoryStore.
type Registry struct {
	store CategoryStore

	mu     sync.RWMutex
	byID   map[string]Category
	byName map[string]string // lowercased display name -> id
}

// NewRegistry returns a registry with the built-in categories. A nil store
// keeps the registry in memory only. Call Load to read custom categories.
func NewRegistry(store CategoryStore) *Registry {
	r := &Registry{store: store}
	r.reset(nil)
	return r
}

// Load replaces the registry contents with the built-ins overlaid with the
// custom categories from storage.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	custom, err := r.store.ListCategories(ctx)
	if err != nil {
		return apperror.Wrap(fmt.Errorf("loading categories: %w", err))
	}
	r.reset(custom)
	return nil
}

// Reload re-reads custom categories from storage.
func (r *Registry) Reload(ctx context.Context) error {
	return r.Load(ctx)
}

func (r *Registry) reset(custom []Category) {
	byID := make(map[string]Category)
	byName := make(map[string]string)
	for _, c := range Builtins() {
		byID[c.ID] = c
		byName[strings.ToLower(c.Name)] = c.ID
	}
	for _, c := range custom {
		if _, taken := byID[c.ID]; taken {
			continue
		}
		c.BuiltIn = false
		byID[c.ID] = c
		byName[strings.ToLower(c.Name)] = c.ID
	}

	r.mu.Lock()
	r.byID = byID
	r.byName = byName
	r.mu.Unlock()
}

// Add registers and persists a custom category.
func (r *Registry) Add(ctx context.Context, name string, attributes []string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, apperror.NewInvalidInput("category name is required")
	}

	var attrs []string
	seen := make(map[string]bool)
	for _, a := range attributes {
		a = strings.TrimSpace(a)
		if a == "" || seen[strings.ToLower(a)] {
			continue
		}
		if a == RawValueKey || strings.ContainsAny(a, ":,") {
			return Category{}, apperror.NewInvalidInput("attribute name %q must not contain ':' or ','", a)
		}
		seen[strings.ToLower(a)] = true
		attrs = append(attrs, a)
	}
	if len(attrs) == 0 {
		return Category{}, apperror.NewInvalidInput("category %q needs at least one attribute", name)
	}

	id := Slugify(name)
	if id == "" {
		return Category{}, apperror.NewInvalidInput("category name %q has no usable characters", name)
	}

	c := Category{ID: id, Name: name, Attributes: attrs}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return Category{}, apperror.NewDuplicate("category", "id", id)
	}
	if _, exists := r.byName[strings.ToLower(name)]; exists {
		return Category{}, apperror.NewDuplicate("category", "name", name)
	}
	if r.store != nil {
		if err := r.store.SaveCategory(ctx, c); err != nil {
			return Category{}, apperror.Wrap(fmt.Errorf("saving category %s: %w", id, err))
		}
	}
	r.byID[id] = c
	r.byName[strings.ToLower(name)] = id
	return c, nil
}

// Delete removes a custom category. Components of that category must be
// removed by the caller beforehand.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return apperror.NewNotFound("category", id)
	}
	if c.BuiltIn {
		return apperror.NewInvalidInput("built-in category %q cannot be deleted", c.Name)
	}
	if r.store != nil {
		if err := r.store.DeleteCategory(ctx, id); err != nil {
			return apperror.Wrap(fmt.Errorf("deleting category %s: %w", id, err))
		}
	}
	delete(r.byID, id)
	delete(r.byName, strings.ToLower(c.Name))
	return nil
}

// ByID returns the category with the given internal identifier.
func (r *Registry) ByID(id string) (Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// ByName looks up a category by display name, ignoring case.
func (r *Registry) ByName(name string) (Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Category{}, false
	}
	return r.byID[id], true
}

// Resolve accepts a display name, an internal ID or anything that slugifies to one.
func (r *Registry) Resolve(nameOrID string) (Category, error) {
	if c, ok := r.ByName(nameOrID); ok {
		return c, nil
	}
	if c, ok := r.ByID(strings.TrimSpace(nameOrID)); ok {
		return c, nil
	}
	if c, ok := r.ByID(Slugify(nameOrID)); ok {
		return c, nil
	}
	return Category{}, apperror.NewInvalidInput("unknown component type %q", nameOrID).
		WithDetail("field", "type")
}

// List returns all categories sorted by display name.
func (r *Registry) List() []Category {
	r.mu.RLock()
	out := make([]Category, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// AttributesOf returns the declared attribute names of a category, or nil.
func (r *Registry) AttributesOf(id string) []string {
	c, ok := r.ByID(id)
	if !ok {
		return nil
	}
	return append([]string(nil), c.Attributes...)
}

// DisplayName returns the category name for id, or id itself when unknown.
func (r *Registry) DisplayName(id string) string {
	if c, ok := r.ByID(id); ok {
		return c.Name
	}
	return id
}

// ValueOf flattens c's attributes in its category's schema order.
func (r *Registry) ValueOf(c Component) string {
	return c.Value(r.AttributesOf(c.Type))
}

// ParseValueFor parses value text against the schema of category id.
func (r *Registry) ParseValueFor(id, text string) Attributes {
	return ParseValue(text, r.AttributesOf(id))
}

// NewComponent builds a component of category typeID from fields. Attribute
// keys are normalized to the declared names, and a RawValueKey that
// disagrees with the structured attributes is dropped.
func (r *Registry) NewComponent(typeID string, fields Component) (Component, error) {
	c, ok := r.ByID(typeID)
	if !ok {
		return Component{}, apperror.NewInvalidInput("unknown component type %q", typeID).
			WithDetail("field", "type")
	}

	out := fields
	out.Type = c.ID
	out.PartNumber = strings.TrimSpace(fields.PartNumber)
	out.Attributes = Attributes{}
	for k, v := range fields.Attributes {
		if k == RawValueKey {
			out.Attributes[k] = v
			continue
		}
		out.Attributes[matchAttribute(strings.TrimSpace(k), c.Attributes)] = strings.TrimSpace(v)
	}
	reconcileRaw(out.Attributes, c.Attributes)
	return out, nil
}
