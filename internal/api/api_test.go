package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kallpa-labs/viaticos-service/internal/extract"
	"github.com/kallpa-labs/viaticos-service/internal/ocr"
	"github.com/kallpa-labs/viaticos-service/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureProvider registra el documento que recibe el motor OCR
type captureProvider struct {
	doc   ocr.Document
	calls int
}

func (p *captureProvider) Name() string  { return "capture" }
func (p *captureProvider) Enabled() bool { return true }

func (p *captureProvider) ExtractText(ctx context.Context, doc ocr.Document) (*ocr.Result, error) {
	p.calls++
	p.doc = doc
	return &ocr.Result{
		Text:        "RUC: 20123456789 TOTAL S/ 118.00",
		Confidences: []float64{0.92},
		Pages:       1,
		Engine:      "capture",
	}, nil
}

func extractRouter(provider *captureProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	coordinator := ocr.NewCoordinator(4, logger, provider)
	voucherService := services.NewVoucherService(
		nil, nil, nil, coordinator, extract.NewExtractor(logger), nil, nil, 0.10, logger,
	)
	apiHandler := NewAPI(voucherService, nil, logger)

	router := gin.New()
	router.POST("/v1/vouchers/extract", apiHandler.ExtractVoucher)
	return router
}

func uploadRequest(t *testing.T, filename string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/vouchers/extract", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestExtractVoucherForwardsSegmentationMode(t *testing.T) {
	provider := &captureProvider{}
	router := extractRouter(provider)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, uploadRequest(t, "boleta.jpg", map[string]string{
		"language": "spa",
		"psm":      "6",
	}))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 1, provider.calls)
	assert.Equal(t, "spa", provider.doc.Language)
	assert.Equal(t, 6, provider.doc.PageSegMode)
}

func TestExtractVoucherDefaultSegmentationMode(t *testing.T) {
	provider := &captureProvider{}
	router := extractRouter(provider)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, uploadRequest(t, "boleta.jpg", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, provider.doc.PageSegMode)
}

func TestExtractVoucherRejectsInvalidSegmentationMode(t *testing.T) {
	provider := &captureProvider{}
	router := extractRouter(provider)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, uploadRequest(t, "boleta.jpg", map[string]string{
		"psm": "catorce",
	}))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, 0, provider.calls)
}
