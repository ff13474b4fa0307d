package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUBL = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2">
  <cbc:ID>F001-00001234</cbc:ID>
  <cbc:IssueDate>2024-03-15</cbc:IssueDate>
  <cbc:Note>CIENTO DIEZ Y OCHO CON 00/100 SOLES</cbc:Note>
  <cac:AccountingSupplierParty>
    <cac:Party>
      <cac:PartyIdentification>
        <cbc:ID schemeID="6">20123456789</cbc:ID>
      </cac:PartyIdentification>
      <cac:PartyLegalEntity>
        <cbc:RegistrationName>COMERCIAL LIMA S.A.C.</cbc:RegistrationName>
      </cac:PartyLegalEntity>
    </cac:Party>
  </cac:AccountingSupplierParty>
  <cac:LegalMonetaryTotal>
    <cbc:PayableAmount currencyID="PEN">118.00</cbc:PayableAmount>
  </cac:LegalMonetaryTotal>
</Invoice>`

func TestFromXMLSample(t *testing.T) {
	e := newTestExtractor()

	fields, err := e.FromXML([]byte(sampleUBL))
	require.NoError(t, err)

	assert.Equal(t, []string{"20123456789"}, fields.RUCs)
	assert.Equal(t, []string{"COMERCIAL LIMA S.A.C."}, fields.LegalNames)
	assert.Equal(t, []string{"2024-03-15"}, fields.IssueDates)
	assert.Equal(t, []string{"118.00"}, fields.Amounts)
	assert.Equal(t, []string{"F001"}, fields.Series)
	assert.Equal(t, []string{"00001234"}, fields.Correlatives)
}

func TestFromXMLMalformed(t *testing.T) {
	e := newTestExtractor()

	_, err := e.FromXML([]byte("<Invoice><cbc:ID>truncado"))
	require.Error(t, err)
}

func TestFromXMLEmptyFields(t *testing.T) {
	e := newTestExtractor()

	fields, err := e.FromXML([]byte(`<Invoice></Invoice>`))
	require.NoError(t, err)
	assert.Empty(t, fields.RUCs)
	assert.Empty(t, fields.Series)
	assert.Empty(t, fields.Amounts)
}
