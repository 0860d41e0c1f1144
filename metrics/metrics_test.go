package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisteringTwiceReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := NewWithRegisterer(registry)
	second := NewWithRegisterer(registry)

	first.RecordCartMutation("add", "added")
	second.RecordCartMutation("add", "added")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.cartMutations.WithLabelValues("add", "added")))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordHTTPRequest("POST", "/cart/add-to-cart", "200", 15*time.Millisecond)
	m.RecordHTTPRequest("POST", "/cart/add-to-cart", "200", 5*time.Millisecond)
	m.IncInFlight()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/cart/add-to-cart", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
}

func TestCartFailuresAndDrops(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordCartFailure("remove", "NOT_FOUND")
	m.RecordEventDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartFailures.WithLabelValues("remove", "NOT_FOUND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped))
}
