package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentHandlerUsesPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/expenses/{yearMonth}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := InstrumentHandler(mux)

	counter := httpRequests.WithLabelValues("GET", "GET /api/expenses/{yearMonth}", "418")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/expenses/2024-01", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/expenses/2024-02", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(logins.WithLabelValues("failure"))
	RecordLogin(false)
	assert.Equal(t, before+1, testutil.ToFloat64(logins.WithLabelValues("failure")))

	hits := testutil.ToFloat64(summaryCache.WithLabelValues("hit"))
	RecordSummaryLookup(true)
	assert.Equal(t, hits+1, testutil.ToFloat64(summaryCache.WithLabelValues("hit")))

	limited := testutil.ToFloat64(rejectedRequests.WithLabelValues("rate_limited"))
	RecordRejected("rate_limited")
	assert.Equal(t, limited+1, testutil.ToFloat64(rejectedRequests.WithLabelValues("rate_limited")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordExpenseCreated("Rent")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "expensetracker_expenses_created_total"))
}
