package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateVoucher indica una colisión de (serie, correlativo) entre
// comprobantes activos de la misma solicitud. Se rechaza al crear, antes
// de entrar al pipeline de validación.
var ErrDuplicateVoucher = errors.New("comprobante duplicado: serie y correlativo ya registrados en la solicitud")

// VoucherType representa el código de tipo de comprobante de pago
type VoucherType string

const (
	VoucherTypeFactura          VoucherType = "01"
	VoucherTypeBoleta           VoucherType = "03"
	VoucherTypeNotaCredito      VoucherType = "07"
	VoucherTypeNotaDebito       VoucherType = "08"
	VoucherTypeReciboHonorarios VoucherType = "R1"
)

// ValidationStatus representa el estado de validación ante SUNAT.
// Un comprobante recién cargado queda en PENDIENTE hasta que el worker
// de la cola escriba el resultado.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "PENDIENTE"
	ValidationValid   ValidationStatus = "VALIDO"
	ValidationInvalid ValidationStatus = "INVALIDO"
)

// Voucher representa un comprobante de pago asociado a una solicitud de viáticos
type Voucher struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RequestID uuid.UUID `json:"request_id" db:"solicitud_id"`
	LineID    uuid.UUID `json:"line_id" db:"detalle_id"`

	// Datos del comprobante
	TypeCode    VoucherType `json:"type_code" db:"tipo_comprobante"`
	Series      string      `json:"series" db:"serie"`
	Correlative string      `json:"correlative" db:"correlativo"`
	IssueDate   time.Time   `json:"issue_date" db:"fecha_emision"`
	Amount      float64     `json:"amount" db:"importe"`

	// Contraparte (emisor del comprobante)
	RUC       string `json:"ruc" db:"ruc"`
	LegalName string `json:"legal_name" db:"razon_social"`

	// Archivo origen
	StoragePath *string `json:"storage_path,omitempty" db:"ruta_archivo"`

	// Resultado de la validación asíncrona
	Validated        ValidationStatus `json:"validated" db:"validado"`
	ValidationResult *string          `json:"validation_result,omitempty" db:"resultado_validacion"`

	// Acciones del revisor
	Observed        bool    `json:"observed" db:"observado"`
	ObservationNote *string `json:"observation_note,omitempty" db:"nota_observacion"`
	Approved        bool    `json:"approved" db:"aprobado"`

	// Tratamiento tributario
	Exempt      bool    `json:"exempt" db:"exonerado"`
	Unaffected  bool    `json:"unaffected" db:"inafecto"`
	SpecialRate bool    `json:"special_rate" db:"tasa_especial"`
	TaxRate     float64 `json:"tax_rate" db:"tasa_igv"`

	Active    bool      `json:"active" db:"activo"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultTaxRate es la tasa de IGV estándar
const DefaultTaxRate = 0.18

// DeriveTaxRate calcula la tasa según los flags de tratamiento tributario
func (v *Voucher) DeriveTaxRate(specialRate float64) float64 {
	switch {
	case v.Exempt, v.Unaffected:
		return 0
	case v.SpecialRate:
		return specialRate
	default:
		return DefaultTaxRate
	}
}

// CreateVoucherRequest representa los datos para registrar un comprobante
type CreateVoucherRequest struct {
	RequestID   uuid.UUID   `json:"request_id" binding:"required"`
	LineID      uuid.UUID   `json:"line_id" binding:"required"`
	TypeCode    VoucherType `json:"type_code" binding:"required"`
	Series      string      `json:"series" binding:"required"`
	Correlative string      `json:"correlative" binding:"required"`
	IssueDate   string      `json:"issue_date" binding:"required"`
	Amount      float64     `json:"amount" binding:"required"`
	RUC         string      `json:"ruc" binding:"required"`
	LegalName   string      `json:"legal_name"`
	StoragePath *string     `json:"storage_path,omitempty"`
	Exempt      bool        `json:"exempt"`
	Unaffected  bool        `json:"unaffected"`
	SpecialRate bool        `json:"special_rate"`
}

// ObserveVoucherRequest representa la observación de un comprobante por el revisor
type ObserveVoucherRequest struct {
	Note string `json:"note" binding:"required"`
}

// VoucherResponse representa la vista pública de un comprobante
type VoucherResponse struct {
	ID               uuid.UUID        `json:"id"`
	RequestID        uuid.UUID        `json:"request_id"`
	TypeCode         VoucherType      `json:"type_code"`
	Series           string           `json:"series"`
	Correlative      string           `json:"correlative"`
	IssueDate        string           `json:"issue_date"`
	Amount           float64          `json:"amount"`
	RUC              string           `json:"ruc"`
	LegalName        string           `json:"legal_name"`
	Validated        ValidationStatus `json:"validated"`
	ValidationResult *string          `json:"validation_result,omitempty"`
	Observed         bool             `json:"observed"`
	Approved         bool             `json:"approved"`
}
