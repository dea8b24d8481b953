package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDecision(t *testing.T) {
	before := testutil.ToFloat64(decisions.WithLabelValues("mark", OutcomeAccepted))
	ObserveDecision("mark", OutcomeAccepted)
	ObserveDecision("mark", OutcomeAccepted)
	assert.Equal(t, before+2, testutil.ToFloat64(decisions.WithLabelValues("mark", OutcomeAccepted)))
}

func TestRecordsExcusedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(excusedRecords)
	RecordsExcused(0)
	RecordsExcused(3)
	assert.Equal(t, before+3, testutil.ToFloat64(excusedRecords))
}

func TestIdentityMismatch(t *testing.T) {
	before := testutil.ToFloat64(identityMismatches)
	IdentityMismatch()
	assert.Equal(t, before+1, testutil.ToFloat64(identityMismatches))
}
