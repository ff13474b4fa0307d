package sunat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testConfig(tokenURL, validateURL string) *config.SunatConfig {
	return &config.SunatConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Scope:        "https://api.sunat.gob.pe/v1/contribuyente/contribuyentes",
		TokenURL:     tokenURL,
		ValidateURL:  validateURL,
		RUC:          "20600000001",
		Timeout:      5 * time.Second,
	}
}

func testRequest() ValidationRequest {
	amount := 118.00
	return ValidationRequest{
		RUC:         "20123456789",
		TypeCode:    "1",
		Series:      "F001",
		Correlative: "00001234",
		IssueDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:      &amount,
	}
}

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
}

func TestCheckVoucherValid(t *testing.T) {
	tokenSrv := httptest.NewServer(tokenHandler(t))
	defer tokenSrv.Close()

	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/20600000001/validarcomprobante"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "01", payload["codComp"])
		assert.Equal(t, "15/03/2024", payload["fechaEmision"])
		assert.Equal(t, "118.00", payload["monto"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "",
			"data": map[string]interface{}{
				"estadoCp":    "1",
				"estadoRuc":   "00",
				"condDomiRuc": "00",
			},
		})
	}))
	defer validateSrv.Close()

	client := NewClient(testConfig(tokenSrv.URL, validateSrv.URL), nil, testLogger())

	result, err := client.CheckVoucher(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "1", result.EstadoCp)
	assert.NotEmpty(t, result.Raw)
}

func TestCheckVoucherRejectedOnHTTP200(t *testing.T) {
	tokenSrv := httptest.NewServer(tokenHandler(t))
	defer tokenSrv.Close()

	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "",
			"data": map[string]interface{}{
				"estadoCp": "0",
			},
		})
	}))
	defer validateSrv.Close()

	client := NewClient(testConfig(tokenSrv.URL, validateSrv.URL), nil, testLogger())

	result, err := client.CheckVoucher(context.Background(), testRequest())
	require.NoError(t, err)

	// HTTP 200 con estadoCp != "1" es un rechazo de negocio, no un error
	assert.False(t, result.Valid)
	assert.Equal(t, "0", result.EstadoCp)
	assert.NotEmpty(t, result.Message)
}

func TestCheckVoucherTokenFailureShortCircuits(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	var validateCalls int32
	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&validateCalls, 1)
	}))
	defer validateSrv.Close()

	client := NewClient(testConfig(tokenSrv.URL, validateSrv.URL), nil, testLogger())

	_, err := client.CheckVoucher(context.Background(), testRequest())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)

	// El endpoint de validación jamás se toca sin token
	assert.Equal(t, int32(0), atomic.LoadInt32(&validateCalls))
}

func TestFetchTokenDecodeFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no es json"))
	}))
	defer tokenSrv.Close()

	client := NewClient(testConfig(tokenSrv.URL, "http://unused"), nil, testLogger())

	_, err := client.FetchToken(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestFetchTokenMissingAccessToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"token_type": "Bearer"})
	}))
	defer tokenSrv.Close()

	client := NewClient(testConfig(tokenSrv.URL, "http://unused"), nil, testLogger())

	_, err := client.FetchToken(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestValidateVoucherMalformedBody(t *testing.T) {
	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>mantenimiento</html>"))
	}))
	defer validateSrv.Close()

	client := NewClient(testConfig("http://unused", validateSrv.URL), nil, testLogger())

	_, err := client.ValidateVoucher(context.Background(), "token", testRequest())
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestValidateVoucherServerErrorIsNotRejection(t *testing.T) {
	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "error interno",
			"data":    map[string]interface{}{"estadoCp": ""},
		})
	}))
	defer validateSrv.Close()

	client := NewClient(testConfig("http://unused", validateSrv.URL), nil, testLogger())

	// Un 5xx con cuerpo JSON decodificable sigue siendo falla del
	// sistema, nunca un comprobante inválido
	result, err := client.ValidateVoucher(context.Background(), "token", testRequest())
	require.Error(t, err)
	assert.Nil(t, result)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusInternalServerError, transportErr.Status)
}

func TestPadTypeCode(t *testing.T) {
	assert.Equal(t, "01", padTypeCode("1"))
	assert.Equal(t, "03", padTypeCode("3"))
	assert.Equal(t, "07", padTypeCode("07"))
	assert.Equal(t, "R1", padTypeCode("R1"))
}

// cacheSpy registra las interacciones con el caché de token
type cacheSpy struct {
	token string
	gets  int
	sets  int
}

func (c *cacheSpy) Get(ctx context.Context) (string, bool) {
	c.gets++
	return c.token, c.token != ""
}

func (c *cacheSpy) Set(ctx context.Context, token string, ttl time.Duration) {
	c.sets++
	c.token = token
}

func TestTokenCacheOptIn(t *testing.T) {
	var tokenCalls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh-token",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"estadoCp": "1"},
		})
	}))
	defer validateSrv.Close()

	cfg := testConfig(tokenSrv.URL, validateSrv.URL)
	cfg.TokenCache = true
	spy := &cacheSpy{}
	client := NewClient(cfg, spy, testLogger())

	_, err := client.CheckVoucher(context.Background(), testRequest())
	require.NoError(t, err)
	_, err = client.CheckVoucher(context.Background(), testRequest())
	require.NoError(t, err)

	// El segundo chequeo reutiliza el token cacheado
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
	assert.Equal(t, 1, spy.sets)
}

func TestTokenCacheDisabledByDefault(t *testing.T) {
	var tokenCalls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh-token",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	validateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"estadoCp": "1"},
		})
	}))
	defer validateSrv.Close()

	spy := &cacheSpy{}
	client := NewClient(testConfig(tokenSrv.URL, validateSrv.URL), spy, testLogger())

	_, err := client.CheckVoucher(context.Background(), testRequest())
	require.NoError(t, err)
	_, err = client.CheckVoucher(context.Background(), testRequest())
	require.NoError(t, err)

	// Sin opt-in cada chequeo intercambia credenciales de nuevo
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
	assert.Equal(t, 0, spy.gets)
	assert.Equal(t, 0, spy.sets)
}
