package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"docpipe/internal/errs"
)

func TestStageMetrics_Observe(t *testing.T) {
	m := NewStageMetrics(prometheus.NewRegistry())
	start := time.Now()

	m.Observe("extraction", start, nil)
	m.Observe("extraction", start, errs.Validationf("missing data"))
	m.Observe("extraction", start, errors.New("timeout"))
	m.Observe("extraction", start, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Invocations.WithLabelValues("extraction", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("extraction", OutcomePermanent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("extraction", OutcomeError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Outcome(nil))
	assert.Equal(t, OutcomePermanent, Outcome(errs.NewParsingError("parsing failed", nil)))
	assert.Equal(t, OutcomeError, Outcome(errors.New("boom")))
}
