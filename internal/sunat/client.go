package sunat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/sirupsen/logrus"
)

// AuthError indica una falla en el intercambio de credenciales.
// No se reintenta automáticamente en esta capa.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("autenticación ante SUNAT falló (estado %d): %s", e.Status, e.Message)
}

// TransportError indica una falla de red o un estado HTTP de error
// hablando con SUNAT. Status es cero cuando nunca hubo respuesta.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("SUNAT respondió con estado HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("error de red consultando SUNAT: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError indica una respuesta malformada de SUNAT
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("respuesta malformada de SUNAT: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Token representa la credencial de corta vida emitida por SUNAT
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenCache es el caché opcional de tokens. El diseño base no cachea:
// cada validación solicita un token nuevo aunque SUNAT declare un
// expires_in. El caché existe detrás de SUNAT_TOKEN_CACHE para no
// cambiar ese comportamiento por defecto.
type TokenCache interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string, ttl time.Duration)
}

// ValidationRequest representa los datos de un comprobante a validar
type ValidationRequest struct {
	RUC         string
	TypeCode    string
	Series      string
	Correlative string
	IssueDate   time.Time
	Amount      *float64
}

// Result representa el desenlace decodificado de una validación.
// Valid=false es un resultado normal del negocio, no un error del sistema.
type Result struct {
	Valid         bool
	Message       string
	EstadoCp      string
	EstadoRuc     string
	CondDomiRuc   string
	Observaciones []string
	Raw           string
}

// Client consulta la API de SUNAT: intercambio de token por
// client-credentials y validación de comprobantes
type Client struct {
	cfg        *config.SunatConfig
	httpClient *http.Client
	cache      TokenCache
	logger     *logrus.Logger
}

// NewClient crea una nueva instancia del cliente. cache puede ser nil.
func NewClient(cfg *config.SunatConfig, cache TokenCache, logger *logrus.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cache,
		logger: logger,
	}
}

// FetchToken solicita un token de acceso con el grant client_credentials
func (c *Client) FetchToken(ctx context.Context) (*Token, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/token/", strings.TrimRight(c.cfg.TokenURL, "/"), c.cfg.ClientID)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", c.cfg.Scope)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Status: resp.StatusCode, Message: "intercambio de credenciales rechazado"}
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &AuthError{Status: resp.StatusCode, Message: fmt.Sprintf("token ilegible: %v", err)}
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Status: resp.StatusCode, Message: "respuesta sin access_token"}
	}

	return &token, nil
}

type validatePayload struct {
	NumRuc       string `json:"numRuc"`
	CodComp      string `json:"codComp"`
	NumeroSerie  string `json:"numeroSerie"`
	Numero       string `json:"numero"`
	FechaEmision string `json:"fechaEmision"`
	Monto        string `json:"monto,omitempty"`
}

type validateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		EstadoCp      string   `json:"estadoCp"`
		EstadoRuc     string   `json:"estadoRuc"`
		CondDomiRuc   string   `json:"condDomiRuc"`
		Observaciones []string `json:"observaciones"`
	} `json:"data"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// ValidateVoucher consulta el estado de un comprobante con el token dado.
// El único caso de éxito es estadoCp == "1"; cualquier otro estado
// decodificado, incluso con HTTP 200, es una validación fallida con el
// mensaje crudo de SUNAT.
func (c *Client) ValidateVoucher(ctx context.Context, token string, req ValidationRequest) (*Result, error) {
	endpoint := fmt.Sprintf("%s/%s/validarcomprobante", strings.TrimRight(c.cfg.ValidateURL, "/"), c.cfg.RUC)

	payload := validatePayload{
		NumRuc:       req.RUC,
		CodComp:      padTypeCode(req.TypeCode),
		NumeroSerie:  req.Series,
		Numero:       req.Correlative,
		FechaEmision: req.IssueDate.Format("02/01/2006"),
	}
	if req.Amount != nil {
		payload.Monto = fmt.Sprintf("%.2f", *req.Amount)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	// Un estado de error es una falla del sistema, no un comprobante
	// inválido: el cuerpo puede traer JSON decodificable igual
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("el servicio de validación rechazó la consulta"),
		}
	}

	var decoded validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &DecodeError{Err: err}
	}

	raw, _ := json.Marshal(decoded)
	result := &Result{
		Valid:         decoded.Data.EstadoCp == "1",
		Message:       decoded.Message,
		EstadoCp:      decoded.Data.EstadoCp,
		EstadoRuc:     decoded.Data.EstadoRuc,
		CondDomiRuc:   decoded.Data.CondDomiRuc,
		Observaciones: decoded.Data.Observaciones,
		Raw:           string(raw),
	}

	if !result.Valid && result.Message == "" {
		result.Message = fmt.Sprintf("comprobante en estado %s (%s)",
			result.EstadoCp, VoucherStateDescription(result.EstadoCp))
	}

	return result, nil
}

// CheckVoucher ejecuta la validación de punta a punta: token primero,
// consulta después. Una falla del intercambio de token corta el flujo
// sin tocar el endpoint de validación.
func (c *Client) CheckVoucher(ctx context.Context, req ValidationRequest) (*Result, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.ValidateVoucher(ctx, token, req)
}

// currentToken resuelve el token desde el caché opcional o solicita uno nuevo
func (c *Client) currentToken(ctx context.Context) (string, error) {
	if c.cfg.TokenCache && c.cache != nil {
		if cached, ok := c.cache.Get(ctx); ok {
			return cached, nil
		}
	}

	token, err := c.FetchToken(ctx)
	if err != nil {
		return "", err
	}

	if c.cfg.TokenCache && c.cache != nil && token.ExpiresIn > 0 {
		c.cache.Set(ctx, token.AccessToken, time.Duration(token.ExpiresIn)*time.Second)
	}

	return token.AccessToken, nil
}

// padTypeCode rellena el código de comprobante a dos caracteres por la izquierda
func padTypeCode(code string) string {
	if len(code) >= 2 {
		return code
	}
	return strings.Repeat("0", 2-len(code)) + code
}
