package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DocumentDone("translated")
		m.ObserveDocument(time.Second)
		m.CacheLookup("hit")
		m.ProviderCall("ok", time.Second)
		m.PermitAcquired()
		m.PermitReleased()
		m.BatchItem("done")
		m.Purged(3)
		m.HTTPRequest("/api/health", 200)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.DocumentDone("cached")
	m.DocumentDone("cached")
	m.CacheLookup("miss")
	m.Purged(4)
	m.Purged(0)
	m.PermitAcquired()
	m.PermitAcquired()
	m.PermitReleased()
	m.HTTPRequest("/api/translate", 502)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.purged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.permitsInUse))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/translate", "5xx")))
}

func TestHandlerServesText(t *testing.T) {
	m := New()
	m.DocumentDone("translated")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `skill_translator_documents_total{outcome="translated"} 1`)
}
