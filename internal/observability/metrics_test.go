package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIncMergeLabelsOutcome(t *testing.T) {
	before := testutil.ToFloat64(messagesMergedTotal.WithLabelValues("socket", "duplicate"))

	IncMerge("socket", false)
	IncMerge("socket", false)

	after := testutil.ToFloat64(messagesMergedTotal.WithLabelValues("socket", "duplicate"))
	assert.Equal(t, before+2, after)
}

func TestObserveAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("fetch_page", "200"))

	ObserveAPIRequest("fetch_page", 200, 15*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(apiRequestsTotal.WithLabelValues("fetch_page", "200")))
}

func TestBuildHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"x-request-id": "r1"}, BuildHeaders("r1", ""))
	assert.Empty(t, BuildHeaders("", ""))
}

func TestDisabledMetricsServer(t *testing.T) {
	s := NewMetricsServer("", zap.NewNop().Sugar())
	s.Start()
	require.NoError(t, s.Stop(context.Background()))
}
