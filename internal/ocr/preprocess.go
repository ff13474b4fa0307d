package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
)

// preprocessImage convierte la imagen a escala de grises y estira el
// contraste al rango completo antes del reconocimiento. Se aplica solo
// cuando la configuración lo habilita.
func preprocessImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decodificando imagen: %w", err)
	}

	bounds := src.Bounds()
	gray := image.NewGray(bounds)

	minLevel, maxLevel := uint8(255), uint8(0)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			level := color.GrayModel.Convert(src.At(x, y)).(color.Gray).Y
			gray.SetGray(x, y, color.Gray{Y: level})
			if level < minLevel {
				minLevel = level
			}
			if level > maxLevel {
				maxLevel = level
			}
		}
	}

	// Normalización de contraste: estirar [min, max] a [0, 255]
	if spread := int(maxLevel) - int(minLevel); spread > 0 && spread < 255 {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				level := gray.GrayAt(x, y).Y
				stretched := (int(level) - int(minLevel)) * 255 / spread
				gray.SetGray(x, y, color.Gray{Y: uint8(stretched)})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("error codificando imagen preprocesada: %w", err)
	}

	return buf.Bytes(), nil
}
