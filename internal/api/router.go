package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/ideas"
	"github.com/kalambet/partsbin/internal/inventory"
	"github.com/kalambet/partsbin/internal/logging"
	"github.com/kalambet/partsbin/internal/spreadsheet"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxImportSize      = 32 << 20 // 32MB
)

// Deps holds the collaborators of the HTTP API and the MCP server.
type Deps struct {
	Manager  *inventory.Manager
	Registry *catalog.Registry
	Ideas    *ideas.Service
	Log      *logging.Logger
	// Token enables bearer authentication when non-empty.
	Token string
}

// NewRouter returns the HTTP API. /health and /metrics are never authenticated.
func NewRouter(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = logging.Default()
	}
	h := &handlers{Deps: deps, log: deps.Log.WithComponent("api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Route("/components", func(r chi.Router) {
			r.Get("/", h.listComponents)
			r.Post("/", h.createComponent)
			r.Get("/{id}", h.getComponent)
			r.Patch("/{id}", h.updateComponent)
			r.Delete("/{id}", h.deleteComponent)
			r.Post("/{id}/take", h.adjustQuantity(false))
			r.Post("/{id}/restock", h.adjustQuantity(true))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Post("/", h.createCategory)
			r.Delete("/{id}", h.deleteCategory)
		})

		r.Route("/inventories", func(r chi.Router) {
			r.Get("/", h.listInventories)
			r.Post("/", h.createInventory)
			r.Get("/active", h.activeInventory)
			r.Put("/active", h.switchInventory)
			r.Delete("/{id}", h.deleteInventory)
		})

		r.Get("/export", h.export)
		r.Post("/import", h.importSheet)
		r.Post("/ideas", h.ideas)
	})

	return r
}

type handlers struct {
	Deps
	log *logging.Logger
}

// requestLog stores a request-scoped logger in the context and logs each
// request at debug level.
func (h *handlers) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.log.With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logging.WithLogger(r.Context(), log))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// componentView adds the rendered value and category name to a component.
type componentView struct {
	catalog.Component
	TypeName string `json:"type_name"`
	Value    string `json:"value"`
}

func (h *handlers) view(c catalog.Component) componentView {
	return componentViews(h.Registry, []catalog.Component{c})[0]
}

func (h *handlers) views(cs []catalog.Component) []componentView {
	return componentViews(h.Registry, cs)
}

// withService runs fn while the active inventory is held open. A returned
// error is written as the response.
func (h *handlers) withService(w http.ResponseWriter, r *http.Request, fn func(*inventory.Service) error) {
	if err := h.Manager.Do(r.Context(), fn); err != nil {
		h.writeError(w, r, err)
	}
}

func (h *handlers) listComponents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inventory.Filter{
		Type:   q.Get("type"),
		Search: q.Get("search"),
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if v := q.Get("low_stock"); v != "" {
		n, err := intParam(v)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.LowStock = &n
	}

	h.withService(w, r, func(svc *inventory.Service) error {
		cs, err := svc.List(r.Context(), f)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"components": h.views(cs)})
		return nil
	})
}

type componentRequest struct {
	PartNumber   string             `json:"part_number"`
	Type         string             `json:"type"`
	Value        string             `json:"value"`
	Attributes   catalog.Attributes `json:"attributes"`
	Quantity     int                `json:"quantity"`
	PurchaseURL  string             `json:"purchase_url"`
	DatasheetURL string             `json:"datasheet_url"`
	Location     string             `json:"location"`
	Notes        string             `json:"notes"`
	ImagePath    string             `json:"image_path"`
}

func (h *handlers) createComponent(w http.ResponseWriter, r *http.Request) {
	var req componentRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withService(w, r, func(svc *inventory.Service) error {
		c, err := svc.AddFromValue(r.Context(), catalog.Component{
			PartNumber:   req.PartNumber,
			Type:         req.Type,
			Attributes:   req.Attributes,
			Quantity:     req.Quantity,
			PurchaseURL:  req.PurchaseURL,
			DatasheetURL: req.DatasheetURL,
			Location:     req.Location,
			Notes:        req.Notes,
			ImagePath:    req.ImagePath,
		}, req.Value)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusCreated, h.view(c))
		return nil
	})
}

func (h *handlers) getComponent(w http.ResponseWriter, r *http.Request) {
	h.withService(w, r, func(svc *inventory.Service) error {
		c, err := svc.Lookup(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, h.view(c))
		return nil
	})
}

type patchRequest struct {
	PartNumber   *string            `json:"part_number"`
	Type         *string            `json:"type"`
	Value        *string            `json:"value"`
	Attributes   catalog.Attributes `json:"attributes"`
	Quantity     *int               `json:"quantity"`
	PurchaseURL  *string            `json:"purchase_url"`
	DatasheetURL *string            `json:"datasheet_url"`
	Location     *string            `json:"location"`
	Notes        *string            `json:"notes"`
	ImagePath    *string            `json:"image_path"`
}

func (h *handlers) updateComponent(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withService(w, r, func(svc *inventory.Service) error {
		c, err := svc.Update(r.Context(), chi.URLParam(r, "id"), inventory.Patch{
			PartNumber:   req.PartNumber,
			Type:         req.Type,
			Value:        req.Value,
			Attributes:   req.Attributes,
			Quantity:     req.Quantity,
			PurchaseURL:  req.PurchaseURL,
			DatasheetURL: req.DatasheetURL,
			Location:     req.Location,
			Notes:        req.Notes,
			ImagePath:    req.ImagePath,
		})
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, h.view(c))
		return nil
	})
}

func (h *handlers) deleteComponent(w http.ResponseWriter, r *http.Request) {
	h.withService(w, r, func(svc *inventory.Service) error {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

func (h *handlers) adjustQuantity(restock bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Quantity int `json:"quantity"`
		}
		if !h.decode(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		h.withService(w, r, func(svc *inventory.Service) error {
			var (
				c   catalog.Component
				err error
			)
			if restock {
				c, err = svc.AddQuantity(r.Context(), id, req.Quantity)
			} else {
				c, err = svc.RemoveQuantity(r.Context(), id, req.Quantity)
			}
			if err != nil {
				return err
			}
			writeJSON(w, http.StatusOK, h.view(c))
			return nil
		})
	}
}

func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.Registry.List()})
}

func (h *handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string   `json:"name"`
		Attributes []string `json:"attributes"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Registry.Add(r.Context(), req.Name, req.Attributes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	n, err := h.Manager.DeleteCategory(r.Context(), h.Registry, chi.URLParam(r, "id"), confirm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components_removed": n})
}

func (h *handlers) listInventories(w http.ResponseWriter, r *http.Request) {
	invs, err := h.Manager.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inventories": invs,
		"active":      h.Manager.Active().ID,
	})
}

func (h *handlers) createInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.Manager.Create(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *handlers) activeInventory(w http.ResponseWriter, r *http.Request) {
	h.withService(w, r, func(svc *inventory.Service) error {
		sum, err := svc.Summarize(r.Context())
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"inventory": h.Manager.Active(),
			"summary":   sum,
		})
		return nil
	})
}

func (h *handlers) switchInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.Manager.Resolve(r.Context(), req.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if inv, err = h.Manager.Switch(r.Context(), inv.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handlers) deleteInventory(w http.ResponseWriter, r *http.Request) {
	removeFile, _ := strconv.ParseBool(r.URL.Query().Get("remove_file"))
	inv, err := h.Manager.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Manager.Delete(r.Context(), inv.ID, removeFile); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formatParam(r *http.Request) (spreadsheet.Format, error) {
	v := r.URL.Query().Get("format")
	if v == "" {
		return spreadsheet.FormatXLSX, nil
	}
	return spreadsheet.ParseFormat(v)
}

func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	format, err := formatParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var (
		buf  bytes.Buffer
		name string
	)
	err = h.Manager.Do(r.Context(), func(svc *inventory.Service) error {
		cs, err := svc.List(r.Context(), inventory.Filter{})
		if err != nil {
			return err
		}
		name = h.Manager.Active().Name
		return spreadsheet.Export(&buf, format, cs, h.Registry)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if name == "" {
		name = "inventory"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", catalog.Slugify(name)+"."+string(format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *handlers) importSheet(w http.ResponseWriter, r *http.Request) {
	format, err := formatParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		h.writeError(w, r, apperror.NewInvalidInput("reading upload: %v", err))
		return
	}
	cs, err := spreadsheet.Import(bytes.NewReader(body), format, h.Registry)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.withService(w, r, func(svc *inventory.Service) error {
		n, err := svc.ReplaceAll(r.Context(), cs)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"imported": n})
		return nil
	})
}

type ideasRequest struct {
	// ComponentIDs selects components by ID or part number. Empty selects all.
	ComponentIDs []string `json:"component_ids"`
}

func (h *handlers) ideas(w http.ResponseWriter, r *http.Request) {
	if h.Ideas == nil || !h.Ideas.Available() {
		h.writeError(w, r, apperror.NewInvalidInput("%s", ideas.UserMessage(ideas.ErrMissingAPIKey)))
		return
	}
	var req ideasRequest
	if !h.decode(w, r, &req) {
		return
	}
	// Only the lookup runs inside Do; Suggest runs after it returns.
	var cs []catalog.Component
	err := h.Manager.Do(r.Context(), func(svc *inventory.Service) error {
		var err error
		cs, err = selectComponents(r, svc, req.ComponentIDs)
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	text, err := h.Ideas.Suggest(r.Context(), cs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ideas": text, "components": len(cs)})
}

func selectComponents(r *http.Request, svc *inventory.Service, ids []string) ([]catalog.Component, error) {
	if len(ids) == 0 {
		return svc.List(r.Context(), inventory.Filter{})
	}
	out := make([]catalog.Component, 0, len(ids))
	for _, id := range ids {
		c, err := svc.Lookup(r.Context(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, apperror.NewInvalidInput("invalid number %q", v)
	}
	return n, nil
}

// decode reads a JSON body. An empty body leaves dst unchanged.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		httpError(w, http.StatusBadRequest, apperror.CodeInvalidInput, "invalid request body: %v", err)
		return false
	}
	return true
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	err = apperror.Wrap(err)
	status := apperror.GetHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Errorw("request failed", "path", r.URL.Path, "error", err)
	}
	ae, _ := apperror.AsAppError(err)
	writeJSON(w, status, map[string]any{"error": ae})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errCode string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    errCode,
			"message": fmt.Sprintf(format, args...),
		},
	})
}
