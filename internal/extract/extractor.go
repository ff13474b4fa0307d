package extract

import (
	"regexp"
	"strings"

	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Extractor reconoce campos estructurados en texto extraído o en
// payloads XML de facturas. Cada campo se resuelve con una lista
// ordenada de estrategias; la ausencia de coincidencias produce una
// lista vacía de candidatos, nunca un error.
type Extractor struct {
	logger *logrus.Logger
}

// NewExtractor crea una nueva instancia del extractor
func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{logger: logger}
}

var (
	// RUC peruano: 11 dígitos que inician en 10, 15, 17 o 20
	reRUC = regexp.MustCompile(`\b(?:10|15|17|20)\d{9}\b`)

	// Sufijos societarios que identifican una razón social
	reLegalSuffix = regexp.MustCompile(`(?i)\b(S\.?\s?A\.?\s?C|S\.?\s?R\.?\s?L|E\.?\s?I\.?\s?R\.?\s?L|S\.?\s?A\.?\s?A|S\.?\s?A)\b\.?`)

	reDateSlash = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	reDateISO   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

	reAmount     = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\.\d{2}\b|\b\d+\.\d{2}\b`)
	reTotalLabel = regexp.MustCompile(`(?i)\b(importe\s+total|total(\s+a\s+pagar)?|monto)\b`)

	// Identificador de comprobante tal como aparece en el documento
	reInvoiceID = regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d{2,3})[-\s](\d{1,8})\b`)

	// Estrategia 1: serie y correlativo en una sola pasada
	reSeriesCorrelative = regexp.MustCompile(`(?i)^([A-Za-z]+\d{0,3})[-\s]?(\d{1,8})$`)

	// Estrategia 2: barridos independientes sobre el mismo identificador
	reSeriesOnly      = regexp.MustCompile(`(?i)\b[A-Za-z]+\d{0,3}\b`)
	reCorrelativeOnly = regexp.MustCompile(`\b\d{1,8}\b`)
)

// FromText reconoce los campos candidatos en texto libre extraído
func (e *Extractor) FromText(text string) *models.FieldCandidates {
	candidates := &models.FieldCandidates{}
	if strings.TrimSpace(text) == "" {
		return candidates
	}

	candidates.RUCs = dedupe(reRUC.FindAllString(text, -1))
	candidates.LegalNames = e.legalNames(text)
	candidates.IssueDates = e.dates(text)
	candidates.Amounts = e.amounts(text)

	for _, match := range reInvoiceID.FindAllString(text, -1) {
		series, correlatives := e.SplitInvoiceNumber(match)
		candidates.Series = append(candidates.Series, series...)
		candidates.Correlatives = append(candidates.Correlatives, correlatives...)
	}
	candidates.Series = dedupe(candidates.Series)
	candidates.Correlatives = dedupe(candidates.Correlatives)

	return candidates
}

// SplitInvoiceNumber separa un identificador de comprobante en serie y
// correlativo. Primero intenta la separación en una sola pasada; si no
// calza, hace dos barridos independientes y acepta lo que cada uno
// encuentre, aunque sean inconsistentes entre sí.
func (e *Extractor) SplitInvoiceNumber(joined string) (series, correlatives []string) {
	joined = strings.TrimSpace(joined)
	if joined == "" {
		return nil, nil
	}

	if m := reSeriesCorrelative.FindStringSubmatch(joined); m != nil {
		return []string{strings.ToUpper(m[1])}, []string{m[2]}
	}

	for _, s := range reSeriesOnly.FindAllString(joined, -1) {
		// Un barrido de solo letras no es una serie válida
		if !strings.ContainsAny(s, "0123456789") {
			continue
		}
		series = append(series, strings.ToUpper(s))
	}
	for _, c := range reCorrelativeOnly.FindAllString(joined, -1) {
		correlatives = append(correlatives, c)
	}

	if len(series) != 1 || len(correlatives) != 1 {
		e.logger.WithFields(logrus.Fields{
			"identifier":   joined,
			"series":       len(series),
			"correlatives": len(correlatives),
		}).Warn("Identificador de comprobante con candidatos inconsistentes")
	}

	return series, correlatives
}

// legalNames toma las líneas que contienen un sufijo societario
func (e *Extractor) legalNames(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := reLegalSuffix.FindStringIndex(line); loc != nil {
			names = append(names, strings.TrimSpace(line[:loc[1]]))
		}
	}
	return dedupe(names)
}

// dates reconoce fechas en formato dd/MM/yyyy o yyyy-MM-dd
func (e *Extractor) dates(text string) []string {
	dates := reDateSlash.FindAllString(text, -1)
	dates = append(dates, reDateISO.FindAllString(text, -1)...)
	return dedupe(dates)
}

// amounts reconoce importes, priorizando las líneas con etiqueta de
// total; todos se normalizan a dos decimales
func (e *Extractor) amounts(text string) []string {
	var labeled, all []string
	for _, line := range strings.Split(text, "\n") {
		matches := reAmount.FindAllString(line, -1)
		if len(matches) == 0 {
			continue
		}
		if reTotalLabel.MatchString(line) {
			labeled = append(labeled, matches...)
		}
		all = append(all, matches...)
	}

	source := labeled
	if len(source) == 0 {
		source = all
	}

	var normalized []string
	for _, raw := range source {
		normalized = append(normalized, NormalizeAmount(raw))
	}
	return dedupe(normalized)
}

// NormalizeAmount formatea un importe como cadena de dos decimales fijos
func NormalizeAmount(raw string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return d.StringFixed(2)
}

// dedupe elimina duplicados preservando el orden de aparición
func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]bool, len(values))
	result := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
