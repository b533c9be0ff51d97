// Package inventory implements component operations on the active inventory
// and switching between inventories.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/logging"
	"github.com/kalambet/partsbin/internal/metrics"
	"github.com/kalambet/partsbin/internal/storage"
)

// ComponentStore is the persistence used by Service. *storage.InventoryStore implements it.
type ComponentStore interface {
	InsertComponent(ctx context.Context, c catalog.Component) error
	GetComponent(ctx context.Context, id string) (catalog.Component, error)
	GetComponentByPartNumber(ctx context.Context, partNumber string) (catalog.Component, error)
	ListComponents(ctx context.Context, f storage.ComponentFilter) ([]catalog.Component, error)
	UpdateComponent(ctx context.Context, id string, fields map[string]any) error
	AdjustQuantity(ctx context.Context, id string, delta int) (int, error)
	DeleteComponent(ctx context.Context, id string) error
	DeleteComponentsByType(ctx context.Context, typeID string) (int, error)
	CountByType(ctx context.Context, typeID string) (int, error)
	CountComponents(ctx context.Context) (int, int, error)
	ReplaceAll(ctx context.Context, cs []catalog.Component) error
}

// Filter narrows List. Type accepts a category name or ID. LowStock, when
// set, keeps components with quantity at or below the threshold.
type Filter struct {
	Type     string
	Search   string
	LowStock *int
	Limit    int
	Offset   int
}

// Patch is a partial update. Nil fields are left unchanged. Value, when set,
// is parsed against the category schema and replaces Attributes.
type Patch struct {
	PartNumber   *string
	Type         *string
	Attributes   catalog.Attributes
	Value        *string
	Quantity     *int
	PurchaseURL  *string
	DatasheetURL *string
	Location     *string
	Notes        *string
	ImagePath    *string
}

// Summary describes the contents of an inventory.
type Summary struct {
	Components int            `json:"components"`
	Units      int            `json:"units"`
	ByType     map[string]int `json:"by_type"`
}

// Service performs component operations against one inventory store.
type Service struct {
	store    ComponentStore
	registry *catalog.Registry
	log      *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(store ComponentStore, registry *catalog.Registry, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Default()
	}
	return &Service{
		store:    store,
		registry: registry,
		log:      log.WithComponent("inventory"),
		tracer:   otel.Tracer("partsbin/inventory"),
		now:      time.Now,
	}
}

// begin starts a span for op. The returned function ends it, records
// metrics and converts err to an apperror.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error) error) {
	ctx, span := s.tracer.Start(ctx, "inventory."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) error {
		err = apperror.Wrap(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperror.UserMessage(err))
		}
		span.End()
		metrics.RecordOperation(op, start, err)
		return err
	}
}

func componentErr(err error, id string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperror.NewNotFound("component", id)
	case errors.Is(err, storage.ErrDuplicate):
		return apperror.NewDuplicate("component", "part number", id).WithCause(err)
	}
	return err
}

// prepare resolves the category and validates the fields shared by Add and ReplaceAll.
func (s *Service) prepare(c catalog.Component) (catalog.Component, error) {
	if strings.TrimSpace(c.Type) == "" {
		return catalog.Component{}, apperror.NewInvalidInput("component type is required").WithDetail("field", "type")
	}
	cat, err := s.registry.Resolve(c.Type)
	if err != nil {
		return catalog.Component{}, err
	}
	out, err := s.registry.NewComponent(cat.ID, c)
	if err != nil {
		return catalog.Component{}, err
	}
	if out.PartNumber == "" {
		return catalog.Component{}, apperror.NewInvalidInput("part number is required").WithDetail("field", "part_number")
	}
	if out.Quantity < 0 {
		return catalog.Component{}, apperror.NewInvalidQuantity(out.Quantity, "must not be negative")
	}
	now := s.now().UTC()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	return out, nil
}

// Add validates and stores a new component.
func (s *Service) Add(ctx context.Context, c catalog.Component) (catalog.Component, error) {
	ctx, done := s.begin(ctx, "add", attribute.String("component.part_number", c.PartNumber))

	c.ID = ""
	out, err := s.prepare(c)
	if err != nil {
		return catalog.Component{}, done(err)
	}
	if err := s.store.InsertComponent(ctx, out); err != nil {
		return catalog.Component{}, done(componentErr(err, out.PartNumber))
	}
	s.log.Debugw("component added", "id", out.ID, "part_number", out.PartNumber, "type", out.Type)
	return out, done(nil)
}

// AddFromValue is Add with the attributes parsed from flattened value text
// against the category schema. An empty value keeps c.Attributes.
func (s *Service) AddFromValue(ctx context.Context, c catalog.Component, value string) (catalog.Component, error) {
	if strings.TrimSpace(value) != "" {
		cat, err := s.registry.Resolve(c.Type)
		if err != nil {
			return catalog.Component{}, err
		}
		c.Type = cat.ID
		c.Attributes = s.registry.ParseValueFor(cat.ID, value)
	}
	return s.Add(ctx, c)
}

// Get returns the component with the given ID.
func (s *Service) Get(ctx context.Context, id string) (catalog.Component, error) {
	ctx, done := s.begin(ctx, "get", attribute.String("component.id", id))

	c, err := s.store.GetComponent(ctx, id)
	if err != nil {
		return catalog.Component{}, done(componentErr(err, id))
	}
	return c, done(nil)
}

// Lookup finds a component by ID or, failing that, by part number.
func (s *Service) Lookup(ctx context.Context, idOrPartNumber string) (catalog.Component, error) {
	ctx, done := s.begin(ctx, "lookup", attribute.String("component.ref", idOrPartNumber))

	c, err := s.store.GetComponent(ctx, idOrPartNumber)
	if errors.Is(err, storage.ErrNotFound) {
		c, err = s.store.GetComponentByPartNumber(ctx, idOrPartNumber)
	}
	if err != nil {
		return catalog.Component{}, done(componentErr(err, idOrPartNumber))
	}
	return c, done(nil)
}

func (s *Service) List(ctx context.Context, f Filter) ([]catalog.Component, error) {
	ctx, done := s.begin(ctx, "list",
		attribute.String("filter.type", f.Type),
		attribute.String("filter.search", f.Search),
	)

	if f.Limit < 0 || f.Offset < 0 {
		return nil, done(apperror.NewInvalidInput("limit and offset must not be negative"))
	}
	sf := storage.ComponentFilter{
		Search:      strings.TrimSpace(f.Search),
		MaxQuantity: f.LowStock,
		Limit:       f.Limit,
		Offset:      f.Offset,
	}
	if f.Type != "" {
		cat, err := s.registry.Resolve(f.Type)
		if err != nil {
			return nil, done(err)
		}
		sf.Type = cat.ID
	}

	cs, err := s.store.ListComponents(ctx, sf)
	if err != nil {
		return nil, done(err)
	}
	return cs, done(nil)
}

// Update applies a partial patch to component id.
func (s *Service) Update(ctx context.Context, id string, p Patch) (catalog.Component, error) {
	ctx, done := s.begin(ctx, "update", attribute.String("component.id", id))

	current, err := s.store.GetComponent(ctx, id)
	if err != nil {
		return catalog.Component{}, done(componentErr(err, id))
	}

	fields := make(map[string]any)
	typeID := current.Type
	if p.Type != nil {
		cat, err := s.registry.Resolve(*p.Type)
		if err != nil {
			return catalog.Component{}, done(err)
		}
		typeID = cat.ID
		fields["type"] = typeID
	}
	if p.PartNumber != nil {
		pn := strings.TrimSpace(*p.PartNumber)
		if pn == "" {
			return catalog.Component{}, done(apperror.NewInvalidInput("part number is required").WithDetail("field", "part_number"))
		}
		fields["part_number"] = pn
	}
	if p.Quantity != nil {
		if *p.Quantity < 0 {
			return catalog.Component{}, done(apperror.NewInvalidQuantity(*p.Quantity, "must not be negative"))
		}
		fields["quantity"] = *p.Quantity
	}

	switch {
	case p.Value != nil:
		fields["attributes"] = s.registry.ParseValueFor(typeID, *p.Value)
	case p.Attributes != nil:
		c, err := s.registry.NewComponent(typeID, catalog.Component{Attributes: p.Attributes})
		if err != nil {
			return catalog.Component{}, done(err)
		}
		fields["attributes"] = c.Attributes
	case typeID != current.Type:
		// Re-read the existing value against the new schema.
		if raw, ok := current.Attributes.Raw(); ok {
			fields["attributes"] = s.registry.ParseValueFor(typeID, raw)
			break
		}
		c, err := s.registry.NewComponent(typeID, catalog.Component{Attributes: current.Attributes})
		if err != nil {
			return catalog.Component{}, done(err)
		}
		fields["attributes"] = c.Attributes
	}

	for col, v := range map[string]*string{
		"purchase_url":  p.PurchaseURL,
		"datasheet_url": p.DatasheetURL,
		"location":      p.Location,
		"notes":         p.Notes,
		"image_path":    p.ImagePath,
	} {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}

	if len(fields) == 0 {
		return current, done(nil)
	}
	if err := s.store.UpdateComponent(ctx, id, fields); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return catalog.Component{}, done(apperror.NewDuplicate("component", "part number", fmt.Sprint(fields["part_number"])))
		}
		return catalog.Component{}, done(componentErr(err, id))
	}

	updated, err := s.store.GetComponent(ctx, id)
	if err != nil {
		return catalog.Component{}, done(componentErr(err, id))
	}
	return updated, done(nil)
}

// AddQuantity increases the stock of component id by n.
func (s *Service) AddQuantity(ctx context.Context, id string, n int) (catalog.Component, error) {
	ctx, done := s.begin(ctx, "add_quantity", attribute.String("component.id", id), attribute.Int("quantity", n))

	if n <= 0 {
		return catalog.Component{}, done(apperror.NewInvalidQuantity(n, "must be positive"))
	}
	if _, err := s.store.AdjustQuantity(ctx, id, n); err != nil {
		return catalog.Component{}, done(componentErr(err, id))
	}
	c, err := s.store.GetComponent(ctx, id)
	if err != nil {
		return catalog.Component{}, done(componentErr(err, id))
	}
	return c, done(nil)
}

// RemoveQuantity decreases the stock of component id by n. Removing more
// than is on hand fails with INSUFFICIENT_STOCK and changes nothing.
func (s *Service) RemoveQuantity(ctx context.Context, id string, n int) (catalog.Component, error) {
	ctx, done := s.begin(ctx, "remove_quantity", attribute.String("component.id", id), attribute.Int("quantity", n))

	if n <= 0 {
		return catalog.Component{}, done(apperror.NewInvalidQuantity(n, "must be positive"))
	}
	available, err := s.store.AdjustQuantity(ctx, id, -n)
	if errors.Is(err, storage.ErrInsufficientStock) {
		return catalog.Component{}, done(apperror.NewInsufficientStock(id, n, available))
	}
	if err != nil {
		return catalog.Component{}, done(componentErr(err, id))
	}
	c, err := s.store.GetComponent(ctx, id)
	if err != nil {
		return catalog.Component{}, done(componentErr(err, id))
	}
	return c, done(nil)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, done := s.begin(ctx, "delete", attribute.String("component.id", id))

	if err := s.store.DeleteComponent(ctx, id); err != nil {
		return done(componentErr(err, id))
	}
	s.log.Debugw("component deleted", "id", id)
	return done(nil)
}

// DeleteByType removes every component of a category and returns the count.
func (s *Service) DeleteByType(ctx context.Context, typeID string) (int, error) {
	ctx, done := s.begin(ctx, "delete_by_type", attribute.String("category.id", typeID))

	n, err := s.store.DeleteComponentsByType(ctx, typeID)
	if err != nil {
		return 0, done(err)
	}
	return n, done(nil)
}

// CountByType returns the number of components of a category.
func (s *Service) CountByType(ctx context.Context, typeID string) (int, error) {
	ctx, done := s.begin(ctx, "count_by_type", attribute.String("category.id", typeID))

	n, err := s.store.CountByType(ctx, typeID)
	return n, done(err)
}

// Summarize counts components overall and per category.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	ctx, done := s.begin(ctx, "summarize")

	rows, units, err := s.store.CountComponents(ctx)
	if err != nil {
		return Summary{}, done(err)
	}
	sum := Summary{Components: rows, Units: units, ByType: make(map[string]int)}
	for _, cat := range s.registry.List() {
		n, err := s.store.CountByType(ctx, cat.ID)
		if err != nil {
			return Summary{}, done(err)
		}
		if n > 0 {
			sum.ByType[cat.Name] = n
		}
	}
	return sum, done(nil)
}

// ReplaceAll validates cs and replaces the whole inventory with it in one
// transaction. Either every component is stored or none is.
func (s *Service) ReplaceAll(ctx context.Context, cs []catalog.Component) (int, error) {
	ctx, done := s.begin(ctx, "replace_all", attribute.Int("component.count", len(cs)))

	prepared := make([]catalog.Component, 0, len(cs))
	seen := make(map[string]bool, len(cs))
	for i, c := range cs {
		c.ID = ""
		out, err := s.prepare(c)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.WithDetail("index", i)
			}
			return 0, done(err)
		}
		key := strings.ToLower(out.PartNumber)
		if seen[key] {
			return 0, done(apperror.NewDuplicate("component", "part number", out.PartNumber).WithDetail("index", i))
		}
		seen[key] = true
		prepared = append(prepared, out)
	}

	if err := s.store.ReplaceAll(ctx, prepared); err != nil {
		return 0, done(err)
	}
	metrics.ComponentsImported.Add(float64(len(prepared)))
	s.log.Infow("inventory replaced", "components", len(prepared))
	return len(prepared), done(nil)
}
