package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ExtractionOutput es el resultado uniforme de la extracción,
// independiente del proveedor que atendió la solicitud
type ExtractionOutput struct {
	Text               string
	Confidences        []float64
	Pages              int
	Engine             string
	RequiresConversion bool
	Duration           time.Duration
}

// Coordinator ordena los proveedores (nube primero, motor local como
// fallback) y normaliza las fallas: un error del proveedor en la nube
// se registra y se absorbe, nunca llega al llamador salvo que todos
// los proveedores fallen.
type Coordinator struct {
	providers   []Provider
	maxPDFPages int
	logger      *logrus.Logger
}

// NewCoordinator crea el coordinador con la lista ordenada de proveedores
func NewCoordinator(maxPDFPages int, logger *logrus.Logger, providers ...Provider) *Coordinator {
	return &Coordinator{
		providers:   providers,
		maxPDFPages: maxPDFPages,
		logger:      logger,
	}
}

// Extract procesa el documento. Para PDFs intenta primero la capa de
// texto embebida; solo si ninguna página produce texto útil pasa al
// reconocimiento por imagen de los proveedores.
func (c *Coordinator) Extract(ctx context.Context, doc Document) (*ExtractionOutput, error) {
	start := time.Now()

	if doc.FileType == FileTypePDF {
		if output := c.tryNativeText(doc); output != nil {
			output.Duration = time.Since(start)
			return output, nil
		}
	}

	var lastErr error
	for _, provider := range c.providers {
		if !provider.Enabled() {
			c.logger.WithField("provider", provider.Name()).Debug("Proveedor OCR deshabilitado, omitido")
			continue
		}

		result, err := provider.ExtractText(ctx, doc)
		if err != nil {
			lastErr = err
			c.logger.WithError(err).WithField("provider", provider.Name()).
				Warn("Proveedor OCR falló, intentando el siguiente")
			continue
		}

		return &ExtractionOutput{
			Text:               result.Text,
			Confidences:        result.Confidences,
			Pages:              result.Pages,
			Engine:             result.Engine,
			RequiresConversion: result.RequiresConversion,
			Duration:           time.Since(start),
		}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("ningún proveedor OCR disponible")
	}
	return nil, fmt.Errorf("extracción de texto falló en todos los proveedores: %w", lastErr)
}

// tryNativeText intenta leer la capa de texto embebida de un PDF.
// Retorna nil cuando ninguna página tiene texto aprovechable.
func (c *Coordinator) tryNativeText(doc Document) *ExtractionOutput {
	native, err := ExtractNativeText(doc.Data, c.maxPDFPages)
	if err != nil {
		c.logger.WithError(err).Warn("Lectura de texto embebido del PDF falló")
		return nil
	}
	if native.PagesWithText == 0 {
		return nil
	}

	// Texto embebido: confianza 1.0 por página con texto, sin pasar
	// por reconocimiento de imagen
	confidences := make([]float64, native.PagesWithText)
	for i := range confidences {
		confidences[i] = 1.0
	}

	if len(native.EmptyPages) > 0 {
		c.logger.WithField("pages", native.EmptyPages).
			Warn("Páginas del PDF sin capa de texto, marcadas como pendientes de conversión")
	}

	return &ExtractionOutput{
		Text:               native.Text,
		Confidences:        confidences,
		Pages:              native.Pages,
		Engine:             "pdf-text",
		RequiresConversion: len(native.EmptyPages) > 0,
	}
}
