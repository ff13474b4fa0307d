package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func azureConfig(endpoint string) *config.CloudOCRConfig {
	return &config.CloudOCRConfig{
		Enabled:         true,
		Endpoint:        endpoint,
		Key:             "test-key",
		APIVersion:      "2023-07-31",
		ModelID:         "prebuilt-invoice",
		Timeout:         5 * time.Second,
		PollingInterval: time.Millisecond,
		MaxPollAttempts: 5,
	}
}

func TestAzureSubmitAndPoll(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/documentModels/prebuilt-invoice:analyze", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload["base64Source"])

		w.Header().Set("Operation-Location", srv.URL+"/operations/123")
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/operations/123", func(w http.ResponseWriter, r *http.Request) {
		// La primera consulta sigue en proceso, la segunda termina
		if atomic.AddInt32(&polls, 1) == 1 {
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "running"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "succeeded",
			"analyzeResult": map[string]interface{}{
				"content": "FACTURA F001-00001234",
				"pages": []map[string]interface{}{
					{
						"pageNumber": 1,
						"words": []map[string]interface{}{
							{"content": "FACTURA", "confidence": 0.98},
							{"content": "F001-00001234", "confidence": 0.90},
						},
					},
				},
			},
		})
	})

	p := NewAzureProvider(azureConfig(srv.URL), testLogger())
	result, err := p.ExtractText(context.Background(), imageDoc())
	require.NoError(t, err)

	assert.Equal(t, "FACTURA F001-00001234", result.Text)
	assert.Equal(t, 1, result.Pages)
	require.Len(t, result.Confidences, 1)
	assert.InDelta(t, 0.94, result.Confidences[0], 0.001)
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestAzurePollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/documentModels/prebuilt-invoice:analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", srv.URL+"/operations/slow")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/slow", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "running"})
	})

	p := NewAzureProvider(azureConfig(srv.URL), testLogger())
	_, err := p.ExtractText(context.Background(), imageDoc())

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 5, timeoutErr.Attempts)
}

func TestAzureOperationFailed(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/documentModels/prebuilt-invoice:analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", srv.URL+"/operations/bad")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/bad", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "failed"})
	})

	p := NewAzureProvider(azureConfig(srv.URL), testLogger())
	_, err := p.ExtractText(context.Background(), imageDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestAzureSubmitMissingOperationLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewAzureProvider(azureConfig(srv.URL), testLogger())
	_, err := p.ExtractText(context.Background(), imageDoc())

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestAzureDisabledReturnsSentinel(t *testing.T) {
	p := NewAzureProvider(&config.CloudOCRConfig{}, testLogger())
	_, err := p.ExtractText(context.Background(), imageDoc())
	assert.ErrorIs(t, err, ErrCloudDisabled)
}
