package engine

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newIsolatedRegistry() prometheus.Registerer {
	return prometheus.NewRegistry()
}

func mustRequest(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/ws", nil)
}
