package models

// FieldCandidates agrupa los valores candidatos reconocidos en el texto
// extraído. Cada campo puede producir cero o más candidatos; la ausencia
// de coincidencias es un resultado válido, no un error.
type FieldCandidates struct {
	RUCs         []string `json:"rucs"`
	LegalNames   []string `json:"legal_names"`
	IssueDates   []string `json:"issue_dates"`
	Amounts      []string `json:"amounts"`
	Series       []string `json:"series"`
	Correlatives []string `json:"correlatives"`
}

// ExtractionResponse representa el resultado de la extracción de texto
// de un archivo cargado
type ExtractionResponse struct {
	Text           string          `json:"text"`
	Confidences    []float64       `json:"confidences"`
	PagesProcessed int             `json:"pages_processed"`
	Engine         string          `json:"engine"`
	DurationMs     int64           `json:"duration_ms"`
	Fields         FieldCandidates `json:"fields"`
}
