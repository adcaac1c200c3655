package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFileOperation(t *testing.T) {
	okBefore := testutil.ToFloat64(FileOperations.WithLabelValues("store", ResultOK))
	errBefore := testutil.ToFloat64(FileOperations.WithLabelValues("store", ResultError))

	ObserveFileOperation("store", nil)
	ObserveFileOperation("store", nil)
	ObserveFileOperation("store", errors.New("boom"))

	assert.Equal(t, okBefore+2, testutil.ToFloat64(FileOperations.WithLabelValues("store", ResultOK)))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(FileOperations.WithLabelValues("store", ResultError)))
}
