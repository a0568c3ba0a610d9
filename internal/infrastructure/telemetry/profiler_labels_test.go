package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		"Operation":  "allocate_payment",
		"invoice_id": "3f2a",
		"route":      "",
		"policy":     strings.Repeat("x", MaxLabelValueLength+10),
		"!!":         "dropped",
	})

	require.Equal(t, []string{"operation", "allocate_payment", "policy", strings.Repeat("x", MaxLabelValueLength)}, pairs)
	assert.Nil(t, sanitizeLabels(nil))
}

func TestSanitizeLabelKey(t *testing.T) {
	assert.Equal(t, "weekly_report", sanitizeLabelKey("Weekly Report"))
	assert.Equal(t, "aging_report", sanitizeLabelKey("aging-report"))
	assert.Equal(t, "", sanitizeLabelKey("$$"))
}

func TestWithPprofLabels_AttachesLabels(t *testing.T) {
	var got string
	WithPprofLabels(context.Background(), OperationLabels(OperationAgingReport, nil), func(c context.Context) {
		got, _ = pprof.Label(c, ProfilingLabelOperation)
	})
	assert.Equal(t, OperationAgingReport, got)
}

func TestWithProfilingLabels_RunsFunction(t *testing.T) {
	calls := 0
	WithProfilingLabels(context.Background(), nil, func(context.Context) { calls++ })
	WithProfilingLabels(context.Background(), map[string]string{"payment_id": "x"}, func(context.Context) { calls++ })
	WithProfilingLabels(context.Background(), OperationLabels(OperationAllocatePayment, map[string]string{ProfilingLabelPolicy: "target_first"}), func(context.Context) { calls++ })
	assert.Equal(t, 3, calls)
}

func TestHTTPRequestLabels(t *testing.T) {
	labels := HTTPRequestLabels("PaymentHandler", "/api/v1/payments", "")
	assert.Equal(t, map[string]string{
		ProfilingLabelController: "PaymentHandler",
		ProfilingLabelRoute:      "/api/v1/payments",
	}, labels)
}
