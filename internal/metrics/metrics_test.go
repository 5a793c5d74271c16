package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsShared(t *testing.T) {
	assert.Same(t, New(), New())
}

func TestObserversCountByLabel(t *testing.T) {
	m := New()

	before := testutil.ToFloat64(m.OwnerReconcileTotal.WithLabelValues("fallback_inserted"))
	m.ObserveOwnerReconcile("fallback_inserted")
	m.ObserveOwnerReconcile("fallback_inserted")
	assert.Equal(t, before+2, testutil.ToFloat64(m.OwnerReconcileTotal.WithLabelValues("fallback_inserted")))

	before = testutil.ToFloat64(m.PresenceTotal.WithLabelValues("throttled"))
	m.ObservePresence("throttled")
	assert.Equal(t, before+1, testutil.ToFloat64(m.PresenceTotal.WithLabelValues("throttled")))

	before = testutil.ToFloat64(m.InvitationsTotal.WithLabelValues("accepted"))
	m.ObserveInvitation("accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(m.InvitationsTotal.WithLabelValues("accepted")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/health", "200", 5*time.Millisecond)
	m.ObserveOwnerReconcile("confirmed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "eastask_workspace_owner_reconcile_total"))
	assert.True(t, strings.Contains(body, `route="/api/health"`))
}
