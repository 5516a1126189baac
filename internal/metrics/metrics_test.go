package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCommand(t *testing.T) {
	before := testutil.ToFloat64(commandsCounter.WithLabelValues("fps", ResultApplied))
	RecordCommand("fps", ResultApplied)
	after := testutil.ToFloat64(commandsCounter.WithLabelValues("fps", ResultApplied))

	assert.Equal(t, before+1, after)
}

func TestConnectionGauge(t *testing.T) {
	ConnectionOpened("ws")
	ConnectionOpened("ws")
	ConnectionClosed("ws")

	assert.Equal(t, float64(1), testutil.ToFloat64(connectionsGauge.WithLabelValues("ws")))
	ConnectionClosed("ws")
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordTick()
	RecordFramePublished()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "pointstream_ticks_total"))
	assert.True(t, strings.Contains(body, "pointstream_frames_published_total"))
}

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}
