package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/witnz/landledger/internal/api"
	"github.com/witnz/landledger/internal/certificate"
	"github.com/witnz/landledger/internal/hash"
	"github.com/witnz/landledger/internal/ledger"
	"github.com/witnz/landledger/internal/registry"
)

type fakeHealth struct {
	result ledger.ValidationResult
}

func (f fakeHealth) LastResult() (ledger.ValidationResult, bool) {
	return f.result, true
}

type testEnv struct {
	router *gin.Engine
	reg    *registry.Registry
}

func setupRouter(t *testing.T, regOpts registry.Options, cfg api.RouterConfig, health api.HealthReporter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := ledger.New(
		ledger.WithIndexedFields(certificate.FieldLandID),
		ledger.WithLogger(logger),
	)
	if err != nil {
		t.Fatal(err)
	}
	regOpts.Logger = logger
	reg := registry.New(l, regOpts)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := api.NewHandler(reg, health, logger)
	return &testEnv{router: api.NewRouter(ctx, cfg, h, nil), reg: reg}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, _ := json.Marshal(b)
			reader = bytes.NewBuffer(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func certBody(landID, owner string) map[string]any {
	return map[string]any{
		"owner_name": owner,
		"land_id":    landID,
		"location":   "North Ridge",
		"area":       12.5,
	}
}

func TestRegisterCertificate_201(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)

	w := env.do(http.MethodPost, "/api/v1/certificates", certBody("A1", "Alice"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var rec ledger.RecordView
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if rec.Index != 1 {
		t.Errorf("expected index 1, got %d", rec.Index)
	}
	if owner, _ := rec.Payload.Get(certificate.FieldOwnerName); owner.String() != "Alice" {
		t.Errorf("expected owner Alice, got %q", owner.String())
	}
}

func TestRegisterCertificate_400_missingFields(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)

	w := env.do(http.MethodPost, "/api/v1/certificates", map[string]any{"land_id": "A1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Fields) != 3 {
		t.Errorf("expected 3 missing fields, got %v", resp.Fields)
	}
	if env.reg.Ledger().Len() != 1 {
		t.Error("expected nothing to be appended")
	}
}

func TestRegisterCertificate_400_malformedBody(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)

	w := env.do(http.MethodPost, "/api/v1/certificates", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRegisterCertificate_409_duplicate(t *testing.T) {
	env := setupRouter(t, registry.Options{UniqueLandIDs: true}, api.RouterConfig{}, nil)

	if w := env.do(http.MethodPost, "/api/v1/certificates", certBody("A1", "Alice")); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	w := env.do(http.MethodPost, "/api/v1/certificates", certBody("A1", "Mallory"))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVerifyCertificate(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)
	env.do(http.MethodPost, "/api/v1/certificates", certBody("A1", "Alice"))
	env.do(http.MethodPost, "/api/v1/certificates", certBody("B2", "Bob"))

	t.Run("found", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/certificates/B2", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var reg registry.Registration
		if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if reg.Certificate.OwnerName != "Bob" || reg.Record.Index != 2 {
			t.Errorf("unexpected registration %+v", reg)
		}
	})

	t.Run("not found", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/certificates/Z9", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestLedgerOverviewAndVerify(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)
	env.do(http.MethodPost, "/api/v1/certificates", certBody("A1", "Alice"))

	w := env.do(http.MethodGet, "/api/v1/ledger", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var overview map[string]any
	json.Unmarshal(w.Body.Bytes(), &overview)
	if int(overview["length"].(float64)) != 2 {
		t.Errorf("expected length 2, got %v", overview["length"])
	}
	if overview["tip"] != env.reg.Ledger().Tail().Hash {
		t.Errorf("unexpected tip %v", overview["tip"])
	}

	w = env.do(http.MethodGet, "/api/v1/ledger/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var result ledger.ValidationResult
	json.Unmarshal(w.Body.Bytes(), &result)
	if !result.Valid || result.Length != 2 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRecords(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)
	for _, id := range []string{"A1", "B2", "C3"} {
		env.do(http.MethodPost, "/api/v1/certificates", certBody(id, "Owner "+id))
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"list", "/api/v1/ledger/records", http.StatusOK},
		{"page", "/api/v1/ledger/records?offset=1&limit=2", http.StatusOK},
		{"bad limit", "/api/v1/ledger/records?limit=0", http.StatusBadRequest},
		{"genesis", "/api/v1/ledger/records/0", http.StatusOK},
		{"out of range", "/api/v1/ledger/records/999", http.StatusNotFound},
		{"invalid index", "/api/v1/ledger/records/abc", http.StatusBadRequest},
		{"proof out of range", "/api/v1/ledger/records/999/proof", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, tt.path, nil)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	t.Run("page contents", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/ledger/records?offset=1&limit=2", nil)
		var resp struct {
			Total   int                 `json:"total"`
			Records []ledger.RecordView `json:"records"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Total != 4 || len(resp.Records) != 2 || resp.Records[0].Index != 1 {
			t.Errorf("unexpected page %+v", resp)
		}
	})

	t.Run("proof verifies", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/ledger/records/2/proof", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var proof hash.MerkleProof
		if err := json.Unmarshal(w.Body.Bytes(), &proof); err != nil {
			t.Fatal(err)
		}
		root, _ := env.reg.Ledger().MerkleRoot()
		if !proof.Verify(env.reg.Ledger().Algorithm(), root) {
			t.Error("expected proof to verify against the ledger root")
		}
	})
}

func TestSearch(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)
	env.do(http.MethodPost, "/api/v1/certificates", certBody("A1", "Alice"))

	tests := []struct {
		name  string
		query url.Values
		want  int
	}{
		{"by owner", url.Values{"field": {"Owner Name"}, "value": {"Alice"}}, http.StatusOK},
		{"by area", url.Values{"field": {"Area (acres)"}, "value": {"12.50"}, "kind": {"number"}}, http.StatusOK},
		{"area as string misses", url.Values{"field": {"Area (acres)"}, "value": {"12.5"}}, http.StatusNotFound},
		{"no match", url.Values{"field": {"Owner Name"}, "value": {"Bob"}}, http.StatusNotFound},
		{"bad number", url.Values{"field": {"Area (acres)"}, "value": {"twelve"}, "kind": {"number"}}, http.StatusBadRequest},
		{"missing value", url.Values{"field": {"Owner Name"}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/v1/ledger/search?"+tt.query.Encode(), nil)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	health := fakeHealth{result: ledger.ValidationResult{
		Length:     3,
		Corruption: &ledger.Corruption{Index: 1, Kind: ledger.LinkageBroken},
		CheckedAt:  time.Now(),
	}}
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, health)

	w := env.do(http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "corrupted" {
		t.Errorf("expected status corrupted, got %v", resp["status"])
	}
}

func TestRateLimit(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{RateLimitRPS: 1, RateLimitBurst: 1}, nil)

	if w := env.do(http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w := env.do(http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Error("expected Retry-After header")
	}
}

func TestRequestID(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{}, nil)

	w := env.do(http.MethodGet, "/healthz", nil)
	if w.Header().Get(api.RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(api.RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get(api.RequestIDHeader); got != "req-123" {
		t.Errorf("expected propagated request id, got %q", got)
	}
}

func TestCORS(t *testing.T) {
	env := setupRouter(t, registry.Options{}, api.RouterConfig{CORSOrigins: []string{"https://registry.county.gov"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://registry.county.gov")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://registry.county.gov" {
		t.Errorf("expected CORS origin header, got %q", got)
	}
}
