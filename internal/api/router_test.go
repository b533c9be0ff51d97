package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/ideas"
	"github.com/kalambet/partsbin/internal/inventory"
	"github.com/kalambet/partsbin/internal/logging"
	"github.com/kalambet/partsbin/internal/storage"
)

type stubGenerator struct {
	text   string
	prompt string
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(_ context.Context, _, prompt string) (string, error) {
	s.prompt = prompt
	return s.text, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	dir := t.TempDir()
	settings, err := storage.OpenSettings(dir)
	if err != nil {
		t.Fatalf("opening settings: %v", err)
	}
	t.Cleanup(func() { settings.Close() })

	reg := catalog.NewRegistry(settings)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	mgr := inventory.NewManager(dir, settings, reg, logging.Nop())
	if err := mgr.Open(context.Background()); err != nil {
		t.Fatalf("opening manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	gen := &stubGenerator{text: "1. LED chaser"}
	return Deps{
		Manager:  mgr,
		Registry: reg,
		Ideas:    ideas.NewService(gen, nil, reg, ideas.Options{}, logging.Nop()),
		Log:      logging.Nop(),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rr, &body)
	return body.Error.Code
}

func addComponent(t *testing.T, h http.Handler, body string) componentView {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/components", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var c componentView
	decodeBody(t, rr, &c)
	return c
}

func TestHealth(t *testing.T) {
	h := NewRouter(newTestDeps(t))

	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var body map[string]string
	decodeBody(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(newTestDeps(t))
	addComponent(t, h, `{"part_number":"R1","type":"Resistor","quantity":1}`)

	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "partsbin_operations_total") {
		t.Error("metrics output missing partsbin_operations_total")
	}
}

func TestComponentsCRUD(t *testing.T) {
	h := NewRouter(newTestDeps(t))

	c := addComponent(t, h, `{"part_number":"RC0805-10K","type":"Resistor","value":"Resistance: 10k, Tolerance: 1%","quantity":100}`)
	if c.ID == "" || c.Type != "resistor" || c.TypeName != "Resistor" {
		t.Fatalf("created = %+v", c)
	}
	if c.Value != "Resistance: 10k, Tolerance: 1%" {
		t.Errorf("value = %q", c.Value)
	}

	rr := do(t, h, http.MethodGet, "/components/RC0805-10K", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get by part number status = %d", rr.Code)
	}

	rr = do(t, h, http.MethodPatch, "/components/"+c.ID, `{"location":"Drawer 3","quantity":80}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var updated componentView
	decodeBody(t, rr, &updated)
	if updated.Location != "Drawer 3" || updated.Quantity != 80 {
		t.Errorf("updated = %+v", updated)
	}

	rr = do(t, h, http.MethodGet, "/components?type=resistor&search=drawer", "")
	var list struct {
		Components []componentView `json:"components"`
	}
	decodeBody(t, rr, &list)
	if len(list.Components) != 1 {
		t.Fatalf("list = %d components, want 1", len(list.Components))
	}

	rr = do(t, h, http.MethodDelete, "/components/"+c.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/components/"+c.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
	if code := errorCode(t, rr); code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", code)
	}
}

func TestCreateComponent_Errors(t *testing.T) {
	h := NewRouter(newTestDeps(t))
	addComponent(t, h, `{"part_number":"NE555","type":"IC","quantity":1}`)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"negative quantity", `{"part_number":"X1","type":"IC","quantity":-1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown type", `{"part_number":"X2","type":"Warp Core","quantity":1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"duplicate", `{"part_number":"ne555","type":"IC","quantity":1}`, http.StatusConflict, "DUPLICATE_ENTRY"},
		{"bad json", `{"part_number":`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/components", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestTakeAndRestock(t *testing.T) {
	h := NewRouter(newTestDeps(t))
	c := addComponent(t, h, `{"part_number":"LED-R","type":"LED","quantity":5}`)

	rr := do(t, h, http.MethodPost, "/components/"+c.ID+"/take", `{"quantity":6}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-take status = %d, want 422", rr.Code)
	}
	if code := errorCode(t, rr); code != "INSUFFICIENT_STOCK" {
		t.Errorf("code = %q", code)
	}

	rr = do(t, h, http.MethodPost, "/components/"+c.ID+"/take", `{"quantity":2}`)
	var got componentView
	decodeBody(t, rr, &got)
	if got.Quantity != 3 {
		t.Errorf("after take quantity = %d, want 3", got.Quantity)
	}

	rr = do(t, h, http.MethodPost, "/components/"+c.ID+"/restock", `{"quantity":10}`)
	decodeBody(t, rr, &got)
	if got.Quantity != 13 {
		t.Errorf("after restock quantity = %d, want 13", got.Quantity)
	}

	rr = do(t, h, http.MethodPost, "/components/"+c.ID+"/restock", `{"quantity":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("zero restock status = %d, want 400", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	h := NewRouter(newTestDeps(t))

	rr := do(t, h, http.MethodPost, "/categories", `{"name":"Op Amp","attributes":["Channels","GBW"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status = %d, body = %s", rr.Code, rr.Body.String())
	}
	addComponent(t, h, `{"part_number":"LM358","type":"Op Amp","value":"Channels: 2","quantity":4}`)

	rr = do(t, h, http.MethodDelete, "/categories/op_amp", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed delete status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodDelete, "/categories/op_amp?confirm=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("confirmed delete status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var res map[string]int
	decodeBody(t, rr, &res)
	if res["components_removed"] != 1 {
		t.Errorf("components_removed = %d, want 1", res["components_removed"])
	}

	rr = do(t, h, http.MethodGet, "/categories", "")
	if strings.Contains(rr.Body.String(), "op_amp") {
		t.Error("deleted category still listed")
	}
}

func TestInventories(t *testing.T) {
	deps := newTestDeps(t)
	h := NewRouter(deps)

	rr := do(t, h, http.MethodPost, "/inventories", `{"name":"Lab"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPut, "/inventories/active", `{"id":"lab"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("switch status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if deps.Manager.Active().Name != "Lab" {
		t.Errorf("active = %q, want Lab", deps.Manager.Active().Name)
	}

	rr = do(t, h, http.MethodPut, "/inventories/active", `{"id":"missing"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("switch to missing status = %d, want 404", rr.Code)
	}
	if deps.Manager.Active().Name != "Lab" {
		t.Error("failed switch changed the active inventory")
	}

	rr = do(t, h, http.MethodDelete, "/inventories/lab", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("delete active status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/inventories/active", "")
	var active struct {
		Inventory storage.Inventory `json:"inventory"`
		Summary   inventory.Summary `json:"summary"`
	}
	decodeBody(t, rr, &active)
	if active.Inventory.Name != "Lab" || active.Summary.Components != 0 {
		t.Errorf("active = %+v", active)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	h := NewRouter(newTestDeps(t))
	addComponent(t, h, `{"part_number":"C1","type":"Capacitor","value":"Capacitance: 100nF","quantity":7}`)
	addComponent(t, h, `{"part_number":"D1","type":"Diode","value":"1N4148 glass","quantity":3}`)

	rr := do(t, h, http.MethodGet, "/export?format=csv", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	exported := rr.Body.String()

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/import?format=csv", bytes.NewBufferString(exported)))
	if rr.Code != http.StatusOK {
		t.Fatalf("import status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/export?format=csv", "")
	if rr.Body.String() != exported {
		t.Errorf("round trip mismatch:\n%s\nvs\n%s", exported, rr.Body.String())
	}
}

func TestImport_BadHeader(t *testing.T) {
	h := NewRouter(newTestDeps(t))
	rr := do(t, h, http.MethodPost, "/import?format=csv", "Part Number,Type\nR1,Resistor\n")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestIdeas(t *testing.T) {
	deps := newTestDeps(t)
	h := NewRouter(deps)
	addComponent(t, h, `{"part_number":"NE555","type":"IC","quantity":2}`)

	rr := do(t, h, http.MethodPost, "/ideas", `{"component_ids":["NE555"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Ideas string `json:"ideas"`
	}
	decodeBody(t, rr, &res)
	if res.Ideas != "1. LED chaser" {
		t.Errorf("ideas = %q", res.Ideas)
	}
}

func TestIdeas_NotConfigured(t *testing.T) {
	deps := newTestDeps(t)
	deps.Ideas = ideas.NewService(nil, ideas.ErrMissingAPIKey, deps.Registry, ideas.Options{}, logging.Nop())
	h := NewRouter(deps)
	addComponent(t, h, `{"part_number":"NE555","type":"IC","quantity":2}`)

	rr := do(t, h, http.MethodPost, "/ideas", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	deps := newTestDeps(t)
	deps.Token = "s3cret"
	h := NewRouter(deps)

	rr := do(t, h, http.MethodGet, "/components", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rr.Code)
	}
	if code := errorCode(t, rr); code != apperror.CodeUnauthorized {
		t.Errorf("error code = %q, want %s", code, apperror.CodeUnauthorized)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	for _, tt := range []struct {
		header string
		want   int
	}{
		{"Bearer s3cret", http.StatusOK},
		{"bearer s3cret", http.StatusOK},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Basic s3cret", http.StatusUnauthorized},
	} {
		req := httptest.NewRequest(http.MethodGet, "/components", nil)
		req.Header.Set("Authorization", tt.header)
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tt.want {
			t.Errorf("Authorization %q: status = %d, want %d", tt.header, rr.Code, tt.want)
		}
	}

	rr = do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("health should not require auth, got %d", rr.Code)
	}
}

func TestRequestLoggerCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	deps := newTestDeps(t)
	deps.Log = &logging.Logger{SugaredLogger: zap.New(core).Sugar()}
	deps.Token = "s3cret"
	h := NewRouter(deps)

	do(t, h, http.MethodGet, "/components", "")

	denied := logs.FilterMessage("unauthorized request").All()
	if len(denied) != 1 {
		t.Fatalf("unauthorized log entries = %d, want 1", len(denied))
	}
	id, _ := denied[0].ContextMap()["request_id"].(string)
	if id == "" {
		t.Fatal("unauthorized entry has no request_id")
	}

	requests := logs.FilterMessage("request").All()
	if len(requests) != 1 {
		t.Fatalf("request log entries = %d, want 1", len(requests))
	}
	if got := requests[0].ContextMap()["request_id"]; got != id {
		t.Errorf("request entry request_id = %v, want %s", got, id)
	}
	if got := requests[0].ContextMap()["component"]; got != "api" {
		t.Errorf("component = %v, want api", got)
	}
}
