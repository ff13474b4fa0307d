package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/sirupsen/logrus"
)

// AzureProvider implementa Provider contra Azure Document Intelligence.
// El protocolo es asíncrono: el envío retorna un handle de operación
// (header Operation-Location) que se sondea hasta un estado terminal.
type AzureProvider struct {
	cfg        *config.CloudOCRConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewAzureProvider crea una nueva instancia del proveedor en la nube
func NewAzureProvider(cfg *config.CloudOCRConfig, logger *logrus.Logger) *AzureProvider {
	return &AzureProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Name retorna el nombre del proveedor
func (p *AzureProvider) Name() string {
	return "azure"
}

// Enabled retorna true si el proveedor está habilitado y configurado
func (p *AzureProvider) Enabled() bool {
	return p.cfg.Enabled && p.cfg.Endpoint != "" && p.cfg.Key != ""
}

type analyzeRequest struct {
	Base64Source string `json:"base64Source"`
}

type analyzeResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Content string `json:"content"`
		Pages   []struct {
			PageNumber int `json:"pageNumber"`
			Words      []struct {
				Content    string  `json:"content"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"pages"`
	} `json:"analyzeResult"`
}

// ExtractText envía el documento al servicio y sondea la operación hasta
// succeeded/failed o hasta agotar los intentos configurados
func (p *AzureProvider) ExtractText(ctx context.Context, doc Document) (*Result, error) {
	if !p.Enabled() {
		return nil, ErrCloudDisabled
	}

	operationURL, err := p.submit(ctx, doc)
	if err != nil {
		return nil, err
	}

	return p.poll(ctx, operationURL)
}

// submit envía el documento y retorna la URL de la operación
func (p *AzureProvider) submit(ctx context.Context, doc Document) (string, error) {
	url := fmt.Sprintf("%s/documentModels/%s:analyze?api-version=%s",
		p.cfg.Endpoint, p.cfg.ModelID, p.cfg.APIVersion)

	body, err := json.Marshal(analyzeRequest{
		Base64Source: base64.StdEncoding.EncodeToString(doc.Data),
	})
	if err != nil {
		return "", fmt.Errorf("error serializando request de análisis: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creando request de análisis: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error enviando documento al servicio OCR: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("servicio OCR respondió %d: %s", resp.StatusCode, string(payload))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", &DecodeError{Source: "azure", Err: fmt.Errorf("respuesta sin header Operation-Location")}
	}

	return operationURL, nil
}

// poll sondea la operación en el intervalo configurado. succeeded es
// éxito terminal, failed es falla terminal, cualquier otro estado
// continúa el sondeo. Agotar los intentos es un error de timeout.
func (p *AzureProvider) poll(ctx context.Context, operationURL string) (*Result, error) {
	for attempt := 1; attempt <= p.cfg.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.PollingInterval):
		}

		result, terminal, err := p.pollOnce(ctx, operationURL)
		if err != nil {
			return nil, err
		}
		if terminal {
			return result, nil
		}

		p.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     p.cfg.MaxPollAttempts,
		}).Debug("Operación OCR en la nube aún en proceso")
	}

	return nil, &TimeoutError{Attempts: p.cfg.MaxPollAttempts}
}

// pollOnce consulta el estado de la operación una vez
func (p *AzureProvider) pollOnce(ctx context.Context, operationURL string) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("error creando request de sondeo: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("error sondeando operación OCR: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("sondeo OCR respondió %d: %s", resp.StatusCode, string(payload))
	}

	var decoded analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, false, &DecodeError{Source: "azure", Err: err}
	}

	switch decoded.Status {
	case "succeeded":
		return buildAzureResult(&decoded), true, nil
	case "failed":
		return nil, false, fmt.Errorf("operación OCR en la nube terminó en estado failed")
	default:
		return nil, false, nil
	}
}

// buildAzureResult arma el resultado uniforme con confianza promedio por página
func buildAzureResult(decoded *analyzeResult) *Result {
	confidences := make([]float64, 0, len(decoded.AnalyzeResult.Pages))
	for _, page := range decoded.AnalyzeResult.Pages {
		if len(page.Words) == 0 {
			confidences = append(confidences, 0)
			continue
		}
		var sum float64
		for _, w := range page.Words {
			sum += w.Confidence
		}
		confidences = append(confidences, sum/float64(len(page.Words)))
	}

	return &Result{
		Text:        decoded.AnalyzeResult.Content,
		Confidences: confidences,
		Pages:       len(decoded.AnalyzeResult.Pages),
		Engine:      "azure",
	}
}
