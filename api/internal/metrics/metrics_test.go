package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Capture("slot", true)
	m.Capture("slot", true)
	m.Capture("single", false)
	m.Extraction(true)
	m.Extraction(false)
	m.Answer(true)
	m.BatchRun(3 * time.Second)
	m.Swept(4, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.captures.WithLabelValues("slot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.captures.WithLabelValues("single", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchRuns))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.swept))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessions))
}

func TestNilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Capture("slot", true)
		m.Extraction(true)
		m.Answer(false)
		m.BatchRun(time.Second)
		m.Swept(1, 1)
		m.Sessions(3)
	})
}
