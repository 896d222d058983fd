package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/api"
	"github.com/warp/stock-ledger/catalog"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/ledger/store"
	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	refs := catalog.NewMemory()
	ctx := context.Background()
	require.NoError(t, refs.SaveItem(ctx, catalog.Item{ID: "fe-tab", Name: "Tablet Tambah Darah", Category: "Suplemen", Unit: "tablet", IsDefault: true}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierRegional, ID: "pkm-01", Name: "Puskesmas 1"}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierInstitutional, ID: "sch-01", Name: "SMP 1", Parent: "pkm-01"}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierIndividual, ID: "stu-01", Name: "Siswa A", Parent: "sch-01"}))
	require.NoError(t, refs.SaveOwner(ctx, catalog.Owner{Tier: ledger.TierIndividual, ID: "stu-02", Name: "Siswa B", Parent: "sch-01"}))

	mem := store.NewTxMemory()
	engine := ledger.NewEngine(mem, refs, refs, nil)
	handler := api.NewHandler(engine, refs, refs, report.NewService(mem))

	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func deposit(t *testing.T, srv *httptest.Server, qty int64) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", map[string]any{
		"item_id":     "fe-tab",
		"destination": map[string]string{"tier": "central", "owner": "central"},
		"quantity":    qty,
		"date":        "2025-07-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[map[string]string](t, resp)["id"]
}

// =============================================================================
// TRANSFER ENDPOINTS
// =============================================================================

func TestCreateTransfer_EndToEnd(t *testing.T) {
	// GIVEN: A deposit at central
	// WHEN: Shipping 200 to a health center over HTTP
	// THEN: 201 with an id, and the balance endpoints reflect the move

	srv := newTestServer(t)
	deposit(t, srv, 1000)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", map[string]any{
		"item_id":     "fe-tab",
		"source":      map[string]string{"tier": "central", "owner": "central"},
		"destination": map[string]string{"tier": "regional", "owner": "pkm-01"},
		"quantity":    200,
		"date":        "2025-07-02",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]string](t, resp)
	assert.NotEmpty(t, created["id"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/balances/regional/pkm-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decode[[]map[string]any](t, resp)
	require.Len(t, balances, 1)
	assert.EqualValues(t, 200, balances[0]["quantity"])
}

func TestCreateTransfer_InsufficientStock_409(t *testing.T) {
	srv := newTestServer(t)
	deposit(t, srv, 100)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", map[string]any{
		"item_id":     "fe-tab",
		"source":      map[string]string{"tier": "central", "owner": "central"},
		"destination": map[string]string{"tier": "regional", "owner": "pkm-01"},
		"quantity":    500,
		"date":        "2025-07-02",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateTransfer_BadTierPair_400(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", map[string]any{
		"item_id":     "fe-tab",
		"destination": map[string]string{"tier": "institutional", "owner": "sch-01"},
		"quantity":    10,
		"date":        "2025-07-02",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateTransfer_UnknownOwner_400(t *testing.T) {
	srv := newTestServer(t)
	deposit(t, srv, 100)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", map[string]any{
		"item_id":     "fe-tab",
		"source":      map[string]string{"tier": "central", "owner": "central"},
		"destination": map[string]string{"tier": "regional", "owner": "ghost"},
		"quantity":    10,
		"date":        "2025-07-02",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// DISTRIBUTION AND LIFECYCLE ENDPOINTS
// =============================================================================

func TestDistribution_EditAndDelete_Lifecycle(t *testing.T) {
	// GIVEN: A school stocked through the API
	// WHEN: Distributing, editing the distribution, then deleting it
	// THEN: Each step is visible through the balance and transaction reads

	srv := newTestServer(t)
	deposit(t, srv, 1000)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", map[string]any{
		"item_id":     "fe-tab",
		"source":      map[string]string{"tier": "central", "owner": "central"},
		"destination": map[string]string{"tier": "institutional", "owner": "sch-01"},
		"quantity":    200,
		"date":        "2025-07-02",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/distributions", map[string]any{
		"item_id":       "fe-tab",
		"institution":   "sch-01",
		"recipients":    []string{"stu-01", "stu-02"},
		"per_recipient": 13,
		"date":          "2025-07-03",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	distID := decode[map[string]string](t, resp)["id"]

	// Edit down to 10 per student.
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/transactions/"+distID, map[string]any{
		"item_id":       "fe-tab",
		"source":        map[string]string{"tier": "institutional", "owner": "sch-01"},
		"recipients":    []string{"stu-01", "stu-02"},
		"per_recipient": 10,
		"date":          "2025-07-03",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	edited := decode[map[string]any](t, resp)
	assert.EqualValues(t, 20, edited["quantity"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/balances/individual/stu-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decode[[]map[string]any](t, resp)
	require.Len(t, balances, 1)
	assert.EqualValues(t, 10, balances[0]["quantity"])

	// Delete restores the school balance entirely.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/transactions/"+distID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/balances/institutional/sch-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances = decode[[]map[string]any](t, resp)
	require.Len(t, balances, 1)
	assert.EqualValues(t, 200, balances[0]["quantity"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/"+distID, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTransaction_DownstreamSpend_409(t *testing.T) {
	srv := newTestServer(t)
	shipID := deposit(t, srv, 1000)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", map[string]any{
		"item_id":     "fe-tab",
		"source":      map[string]string{"tier": "central", "owner": "central"},
		"destination": map[string]string{"tier": "regional", "owner": "pkm-01"},
		"quantity":    900,
		"date":        "2025-07-02",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Reverting the deposit must debit 1000 from central, which only holds
	// 100 after the shipment.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/transactions/"+shipID, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListTransactions_FilterByScope(t *testing.T) {
	srv := newTestServer(t)
	deposit(t, srv, 500)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/transactions?scope=central_deposit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	txs := decode[[]map[string]any](t, resp)
	require.Len(t, txs, 1)
	assert.Equal(t, "central_deposit", txs[0]["scope"])
}

// =============================================================================
// CATALOG AND REPORT ENDPOINTS
// =============================================================================

func TestItems_SaveAndList(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/items", map[string]any{
		"id":   "vit-a",
		"name": "Vitamin A",
		"unit": "kapsul",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]map[string]any](t, resp)
	require.Len(t, items, 2)
	// Default item sorts first.
	assert.Equal(t, "fe-tab", items[0]["id"])
}

func TestSaveOwner_RejectsCentralTier(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners", map[string]any{
		"tier": "central",
		"id":   "dinas-2",
		"name": "Dinas Lain",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReports_Conservation(t *testing.T) {
	srv := newTestServer(t)
	deposit(t, srv, 500)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/reports/conservation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reports := decode[[]map[string]any](t, resp)
	require.Len(t, reports, 1)
	assert.Equal(t, true, reports[0]["balanced"])
}
