package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"library-circulation-backend/internal/domain"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "borrow_limit_reached", Outcome(domain.ErrBorrowLimitReached))
	assert.Equal(t, "not_found", Outcome(fmt.Errorf("get: %w", domain.ErrNotFound)))
	assert.Equal(t, "error", Outcome(errors.New("connection reset")))
}

func TestCollector_RecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperation("checkout", nil, 10*time.Millisecond)
	c.RecordOperation("checkout", domain.ErrItemUnavailable, time.Millisecond)
	c.RecordOperation("checkout", domain.ErrItemUnavailable, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("checkout", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("checkout", "item_unavailable")))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus("circulation.checkout", http.StatusCreated)
	c.RecordDispatch("sent")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "library_http_responses_total")
	assert.Contains(t, string(body), "library_notifications_dispatched_total")
}
