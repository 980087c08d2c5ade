package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTool(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(toolCalls.WithLabelValues("list_templates", "success"))
	ObserveTool("list_templates", ResultLabel(true), 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(toolCalls.WithLabelValues("list_templates", "success")))

	IncConversion("pdf", ResultLabel(false))
	assert.Equal(t, 1.0, testutil.ToFloat64(conversions.WithLabelValues("pdf", "error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	ObservePDFPages(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "resumevision_pdf_pages"))
}
