package ocr

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// NativeTextResult representa la lectura de las capas de texto embebidas
// de un PDF, página por página
type NativeTextResult struct {
	Text          string
	Pages         int
	PagesWithText int
	// EmptyPages lista las páginas (base 1) sin texto embebido
	EmptyPages []int
}

// minNativeTextLen es el mínimo de caracteres útiles para considerar
// que una página tiene capa de texto aprovechable
const minNativeTextLen = 20

// ExtractNativeText lee las capas de texto embebidas de un PDF sin
// reconocimiento por imagen. Las páginas sin texto se registran para
// que el pipeline decida el fallback.
func ExtractNativeText(data []byte, maxPages int) (*NativeTextResult, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("error abriendo PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	result := &NativeTextResult{Pages: pages}
	var b strings.Builder
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			result.EmptyPages = append(result.EmptyPages, i+1)
			continue
		}
		if len(strings.TrimSpace(text)) < minNativeTextLen {
			result.EmptyPages = append(result.EmptyPages, i+1)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(text)
		result.PagesWithText++
	}

	result.Text = b.String()
	return result, nil
}

// RenderPages rasteriza las páginas de un PDF a PNG para el
// reconocimiento por imagen
func RenderPages(data []byte, dpi float64, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("error abriendo PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	rendered := make([][]byte, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("error rasterizando página %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("error codificando página %d: %w", i+1, err)
		}
		rendered = append(rendered, buf.Bytes())
	}

	return rendered, nil
}
