package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseractAlwaysEnabled(t *testing.T) {
	p := NewTesseractProvider(&config.LocalOCRConfig{}, testLogger())
	assert.True(t, p.Enabled())
}

func TestTesseractRejectsOversizedFile(t *testing.T) {
	p := NewTesseractProvider(&config.LocalOCRConfig{MaxFileSize: 16}, testLogger())

	_, err := p.ExtractText(context.Background(), Document{
		Data:     make([]byte, 32),
		FileType: FileTypePNG,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excede el límite")
}

func TestMeanTSVConfidence(t *testing.T) {
	tsv := strings.Join([]string{
		"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t90\tFACTURA",
		"5\t1\t1\t1\t1\t2\t70\t10\t50\t20\t80\tF001",
		"4\t1\t1\t1\t1\t0\t10\t10\t110\t20\t-1\t",
		"",
	}, "\n")

	// Las filas con conf -1 no son palabras y no cuentan
	assert.InDelta(t, 0.85, meanTSVConfidence(tsv), 0.0001)
}

func TestMeanTSVConfidenceEmpty(t *testing.T) {
	assert.Equal(t, 0.0, meanTSVConfidence(""))
	assert.Equal(t, 0.0, meanTSVConfidence("header only\n"))
}

func TestPreprocessImageStretchesContrast(t *testing.T) {
	// Imagen gris de bajo contraste: niveles 100 y 150
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(0, 0, color.Gray{Y: 100})
	src.SetGray(1, 0, color.Gray{Y: 150})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	processed, err := preprocessImage(buf.Bytes())
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(processed))
	require.NoError(t, err)

	gray, ok := decoded.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(1, 0).Y)
}

func TestPreprocessImageRejectsGarbage(t *testing.T) {
	_, err := preprocessImage([]byte("no es una imagen"))
	require.Error(t, err)
}
