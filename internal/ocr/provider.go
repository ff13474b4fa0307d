package ocr

import (
	"context"
	"errors"
	"fmt"
)

// FileType representa el tipo de archivo declarado por el cliente
type FileType string

const (
	FileTypePDF  FileType = "PDF"
	FileTypeJPG  FileType = "JPG"
	FileTypeJPEG FileType = "JPEG"
	FileTypePNG  FileType = "PNG"
	FileTypeBMP  FileType = "BMP"
	FileTypeTIFF FileType = "TIFF"
)

// IsImage retorna true si el tipo corresponde a una imagen
func (t FileType) IsImage() bool {
	return t != FileTypePDF
}

// Document representa el archivo a procesar por un proveedor OCR
type Document struct {
	Data        []byte
	FileType    FileType
	Language    string
	PageSegMode int
}

// Result representa el texto reconocido por un proveedor
type Result struct {
	Text        string
	Confidences []float64
	Pages       int
	Engine      string
	// RequiresConversion marca páginas sin texto recuperable incluso
	// después del reconocimiento por imagen
	RequiresConversion bool
}

// Provider es la capacidad de extracción de texto. Existen dos
// implementaciones: el proveedor en la nube (Azure) y el motor local
// (Tesseract). El coordinador las ordena y aplica el fallback.
type Provider interface {
	Name() string
	Enabled() bool
	ExtractText(ctx context.Context, doc Document) (*Result, error)
}

// ErrCloudDisabled indica que el proveedor en la nube no está habilitado
// o le faltan credenciales
var ErrCloudDisabled = errors.New("proveedor OCR en la nube deshabilitado o sin credenciales")

// TimeoutError indica que el sondeo de la operación en la nube agotó
// el número máximo de intentos
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operación OCR en la nube sin resultado tras %d intentos de sondeo", e.Attempts)
}

// DecodeError indica una respuesta malformada de una fuente externa
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("respuesta malformada de %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
