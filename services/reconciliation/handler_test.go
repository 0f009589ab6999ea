package reconciliation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adagency-backoffice/pkg/accesscontrol"
	"adagency-backoffice/pkg/middleware"
)

func newTestRouter(t *testing.T, f *fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authz, err := accesscontrol.NewDefault()
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.OperatorContext(), middleware.Error())
	NewHandler(f.svc).Register(r, authz)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderOperatorID, "ops-1")
	req.Header.Set(middleware.HeaderOperatorRole, role)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerDetectAndConfigure(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")
	r := newTestRouter(t, f)

	w := doJSON(t, r, http.MethodPost, "/v1/reconciliations/detect", "operator", detectRequest{
		Snapshot: weekSnapshot("120200001"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var detected detectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detected))
	require.Equal(t, MatchExact, detected.MatchKind)
	require.Equal(t, OutcomeReconciled, detected.Outcome)
	id := detected.Reconciliation.ID

	w = doJSON(t, r, http.MethodPost, "/v1/reconciliations/"+id+"/configure-plan", "operator", map[string]any{
		"client_price": "43.00",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var txn struct {
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
		Profit  decimal.Decimal `json:"profit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txn))
	require.True(t, txn.Income.Equal(decimal.NewFromInt(43)))
	require.True(t, txn.Expense.Equal(decimal.NewFromInt(21)))
	require.True(t, txn.Profit.Equal(decimal.NewFromInt(22)))

	w = doJSON(t, r, http.MethodGet, "/v1/reconciliations/"+id, "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/reconciliations/"+id+"/pause", "operator", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerAccessControl(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")
	r := newTestRouter(t, f)

	w := doJSON(t, r, http.MethodGet, "/v1/reconciliations", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/reconciliations/detect", "viewer", detectRequest{
		Snapshot: weekSnapshot("120200001"),
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/reconciliations", "", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlerPurgeNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")
	r := newTestRouter(t, f)

	w := doJSON(t, r, http.MethodPost, "/v1/reconciliations/detect", "operator", detectRequest{
		Snapshot: weekSnapshot("120200001"),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var detected detectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detected))
	path := "/v1/reconciliations/" + detected.Reconciliation.ID

	w = doJSON(t, r, http.MethodDelete, path, "operator", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, path+"?confirm=true&reason=test", "operator", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var audit ReconciliationPurge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &audit))
	require.Equal(t, PurgeVerbDelete, audit.Verb)
	require.Equal(t, "test", audit.Reason)

	w = doJSON(t, r, http.MethodGet, path, "viewer", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerDetectWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")
	r := newTestRouter(t, f)

	w := doJSON(t, r, http.MethodPost, "/v1/reconciliations/detect", "operator", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerDetectBatch(t *testing.T) {
	f := newFixture(t)
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")
	r := newTestRouter(t, f)

	flagged := weekSnapshot("120200003")
	flagged.Campaign.DailyBudget = ""

	w := doJSON(t, r, http.MethodPost, "/v1/reconciliations/detect/batch", "operator", map[string]any{
		"detection_run_id": "run-7",
		"snapshots":        []any{weekSnapshot("120200001"), flagged},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Equal(t, "run-7", result.RunID)
	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 1, result.Flagged)
}
