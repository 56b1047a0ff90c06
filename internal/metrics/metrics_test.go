package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSearchStarted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done := m.SearchStarted("plan_races")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchesRunning))

	done("succeeded", 42)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.searchesRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("plan_races", "succeeded")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.searchResults.WithLabelValues("plan_races")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.searchDuration))
}

func TestBoatOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.BoatOperation("balance", nil)
	m.BoatOperation("balance", errors.New("座位数量不足"))
	m.BoatOperation("balance", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.boatOperations.WithLabelValues("balance", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.boatOperations.WithLabelValues("balance", "error")))
}
