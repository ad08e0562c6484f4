package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHelpersBeforeInitAreNoops(t *testing.T) {
	// Must not panic when nothing is registered yet.
	if loadTotal != nil {
		t.Skip("metrics already initialised by another test")
	}
	ObserveLoad("", time.Millisecond)
	CacheHit()
	CacheMiss()
	CacheInvalidated()
	AddRowsDropped("CMG-PDO", "value", 2)
	IncSchemaError("Hidro-ELP")
	SetRecordsLoaded("CMG-PDO", 10)
	ObserveExport(ResultError, time.Millisecond)
}

func TestCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(cacheRequests.WithLabelValues("hit"))
	CacheHit()
	CacheHit()
	if got := testutil.ToFloat64(cacheRequests.WithLabelValues("hit")) - before; got != 2 {
		t.Errorf("hit delta = %v, want 2", got)
	}

	before = testutil.ToFloat64(rowsDropped.WithLabelValues("CMG-COS", "date"))
	AddRowsDropped("CMG-COS", "date", 3)
	AddRowsDropped("CMG-COS", "date", 0)
	if got := testutil.ToFloat64(rowsDropped.WithLabelValues("CMG-COS", "date")) - before; got != 3 {
		t.Errorf("dropped delta = %v, want 3", got)
	}

	SetRecordsLoaded("Hidro-ELP", 42)
	if got := testutil.ToFloat64(recordsLoaded.WithLabelValues("Hidro-ELP")); got != 42 {
		t.Errorf("records gauge = %v, want 42", got)
	}

	before = testutil.ToFloat64(loadTotal.WithLabelValues(ResultSuccess))
	ObserveLoad("", 10*time.Millisecond)
	if got := testutil.ToFloat64(loadTotal.WithLabelValues(ResultSuccess)) - before; got != 1 {
		t.Errorf("load delta = %v, want 1", got)
	}
}
