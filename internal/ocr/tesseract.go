package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/sirupsen/logrus"
)

// TesseractProvider implementa Provider sobre el binario tesseract.
// El motor no es reentrante: las llamadas concurrentes se serializan
// con un mutex en lugar de corromper el estado compartido.
type TesseractProvider struct {
	cfg    *config.LocalOCRConfig
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewTesseractProvider crea una nueva instancia del motor local
func NewTesseractProvider(cfg *config.LocalOCRConfig, logger *logrus.Logger) *TesseractProvider {
	return &TesseractProvider{
		cfg:    cfg,
		logger: logger,
	}
}

// Name retorna el nombre del proveedor
func (p *TesseractProvider) Name() string {
	return "tesseract"
}

// Enabled retorna true; el motor local siempre está disponible
func (p *TesseractProvider) Enabled() bool {
	return true
}

// ExtractText reconoce el texto del documento. Para PDFs rasteriza las
// páginas primero; para imágenes aplica el preprocesamiento opcional.
func (p *TesseractProvider) ExtractText(ctx context.Context, doc Document) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxFileSize > 0 && int64(len(doc.Data)) > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("archivo de %d bytes excede el límite de %d", len(doc.Data), p.cfg.MaxFileSize)
	}

	language := doc.Language
	if language == "" {
		language = p.cfg.DefaultLanguage
	}

	if doc.FileType == FileTypePDF {
		return p.extractPDF(ctx, doc, language)
	}
	return p.extractImage(ctx, doc.Data, language, doc.PageSegMode)
}

// extractImage reconoce una sola imagen
func (p *TesseractProvider) extractImage(ctx context.Context, data []byte, language string, psm int) (*Result, error) {
	if p.cfg.Preprocess {
		processed, err := preprocessImage(data)
		if err != nil {
			p.logger.WithError(err).Warn("Preprocesamiento de imagen falló, usando original")
		} else {
			data = processed
		}
	}

	text, conf, err := p.recognize(ctx, data, language, psm)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:        text,
		Confidences: []float64{conf},
		Pages:       1,
		Engine:      "tesseract",
	}, nil
}

// extractPDF rasteriza el PDF y reconoce página por página. Las páginas
// que no producen texto quedan marcadas como pendientes de conversión.
func (p *TesseractProvider) extractPDF(ctx context.Context, doc Document, language string) (*Result, error) {
	pages, err := RenderPages(doc.Data, float64(p.cfg.DPI), p.cfg.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("error rasterizando PDF: %w", err)
	}

	result := &Result{Engine: "tesseract", Pages: len(pages)}
	var b strings.Builder
	for i, pageData := range pages {
		if p.cfg.Preprocess {
			if processed, err := preprocessImage(pageData); err == nil {
				pageData = processed
			}
		}

		text, conf, err := p.recognize(ctx, pageData, language, doc.PageSegMode)
		if err != nil {
			p.logger.WithError(err).Warnf("Reconocimiento de página %d falló", i+1)
			text = ""
			conf = 0
		}

		if strings.TrimSpace(text) == "" {
			// Frontera sin implementar: no hay conversión adicional que
			// intentar, la página se reporta como pendiente
			b.WriteString(fmt.Sprintf("[página %d requiere conversión]", i+1))
			result.RequiresConversion = true
			result.Confidences = append(result.Confidences, 0)
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(text)
		result.Confidences = append(result.Confidences, conf)
	}

	result.Text = b.String()
	return result, nil
}

// recognize escribe la imagen a un archivo temporal y ejecuta tesseract;
// la confianza sale de una segunda corrida en modo TSV
func (p *TesseractProvider) recognize(ctx context.Context, data []byte, language string, psm int) (string, float64, error) {
	tmpDir, err := os.MkdirTemp("", "viaticos-ocr-*")
	if err != nil {
		return "", 0, fmt.Errorf("error creando directorio temporal: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imagePath := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(imagePath, data, 0o600); err != nil {
		return "", 0, fmt.Errorf("error escribiendo imagen temporal: %w", err)
	}

	text, err := p.run(ctx, imagePath, language, psm, false)
	if err != nil {
		return "", 0, err
	}

	conf := 0.0
	if tsv, err := p.run(ctx, imagePath, language, psm, true); err == nil {
		conf = meanTSVConfidence(tsv)
	} else {
		p.logger.WithError(err).Debug("Corrida TSV de confianza falló")
	}

	return text, conf, nil
}

// run ejecuta el binario tesseract sobre un archivo
func (p *TesseractProvider) run(ctx context.Context, imagePath, language string, psm int, tsv bool) (string, error) {
	args := []string{imagePath, "stdout", "-l", language}
	if psm > 0 {
		args = append(args, "--psm", strconv.Itoa(psm))
	}
	if p.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", p.cfg.TessdataDir)
	}
	if tsv {
		args = append(args, "tsv")
	}

	cmd := exec.CommandContext(ctx, p.cfg.Binary, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// meanTSVConfidence calcula la confianza media de palabras a partir de
// la salida TSV de tesseract, en escala 0..1
func meanTSVConfidence(tsv string) float64 {
	lines := strings.Split(tsv, "\n")
	var sum, n float64
	for i, line := range lines {
		if i == 0 || line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n / 100.0
}
