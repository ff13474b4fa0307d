package extract

import (
	"encoding/xml"
	"fmt"

	"github.com/kallpa-labs/viaticos-service/internal/models"
)

// ublInvoice mapea los campos relevantes de una factura electrónica UBL.
// encoding/xml calza por nombre local, así que los prefijos de
// namespace (cbc:, cac:) no importan.
type ublInvoice struct {
	XMLName   xml.Name
	ID        string `xml:"ID"`
	IssueDate string `xml:"IssueDate"`
	Supplier  struct {
		Party struct {
			Identification struct {
				ID string `xml:"ID"`
			} `xml:"PartyIdentification"`
			LegalEntity struct {
				RegistrationName string `xml:"RegistrationName"`
			} `xml:"PartyLegalEntity"`
		} `xml:"Party"`
	} `xml:"AccountingSupplierParty"`
	MonetaryTotal struct {
		PayableAmount string `xml:"PayableAmount"`
	} `xml:"LegalMonetaryTotal"`
	Notes []string `xml:"Note"`
}

// FromXML reconoce los campos candidatos en un payload XML de factura.
// Es el punto de entrada alternativo a FromText; ambos son mutuamente
// excluyentes. Un payload malformado es un error de decodificación.
func (e *Extractor) FromXML(payload []byte) (*models.FieldCandidates, error) {
	var invoice ublInvoice
	if err := xml.Unmarshal(payload, &invoice); err != nil {
		return nil, fmt.Errorf("error decodificando XML de factura: %w", err)
	}

	candidates := &models.FieldCandidates{}

	if ruc := invoice.Supplier.Party.Identification.ID; ruc != "" {
		candidates.RUCs = append(candidates.RUCs, ruc)
	}
	if name := invoice.Supplier.Party.LegalEntity.RegistrationName; name != "" {
		candidates.LegalNames = append(candidates.LegalNames, name)
	}

	// Preferencia: campo de fecha estructurado primero, texto libre después
	if invoice.IssueDate != "" {
		candidates.IssueDates = append(candidates.IssueDates, invoice.IssueDate)
	}
	for _, note := range invoice.Notes {
		candidates.IssueDates = append(candidates.IssueDates, e.dates(note)...)
	}
	candidates.IssueDates = dedupe(candidates.IssueDates)

	if amount := invoice.MonetaryTotal.PayableAmount; amount != "" {
		candidates.Amounts = append(candidates.Amounts, NormalizeAmount(amount))
	}

	if invoice.ID != "" {
		series, correlatives := e.SplitInvoiceNumber(invoice.ID)
		candidates.Series = series
		candidates.Correlatives = correlatives
	}

	return candidates, nil
}
