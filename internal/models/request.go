package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestState representa el estado del ciclo de vida de una solicitud de viáticos
type RequestState int

const (
	StateSolicitado           RequestState = 1
	StateAperturado           RequestState = 2
	StateAprobado             RequestState = 3
	StateRechazado            RequestState = 4
	StatePagoRealizado        RequestState = 5
	StateObservado            RequestState = 6
	StateEnviadoLiquidacion   RequestState = 7
	StateLiquidacionObservada RequestState = 8
	StateLiquidacionCerrada   RequestState = 9
)

var stateNames = map[RequestState]string{
	StateSolicitado:           "Solicitado",
	StateAperturado:           "Aperturado",
	StateAprobado:             "Aprobado",
	StateRechazado:            "Rechazado",
	StatePagoRealizado:        "Pago Realizado",
	StateObservado:            "Observado",
	StateEnviadoLiquidacion:   "Enviado a Liquidación",
	StateLiquidacionObservada: "Liquidación Observada",
	StateLiquidacionCerrada:   "Liquidación Cerrada",
}

// validTransitions define las transiciones permitidas del ciclo de vida.
// Rechazado es terminal. Liquidación Cerrada solo se reabre cuando un
// comprobante queda observado (9 -> 8).
var validTransitions = map[RequestState][]RequestState{
	StateSolicitado:           {StateAperturado},
	StateAperturado:           {StateAprobado, StateRechazado, StateObservado},
	StateAprobado:             {StatePagoRealizado},
	StateRechazado:            {},
	StatePagoRealizado:        {StateObservado, StateEnviadoLiquidacion},
	StateObservado:            {StateSolicitado},
	StateEnviadoLiquidacion:   {StateLiquidacionObservada, StateLiquidacionCerrada},
	StateLiquidacionObservada: {StateEnviadoLiquidacion, StateLiquidacionCerrada},
	StateLiquidacionCerrada:   {StateLiquidacionObservada},
}

// String retorna el nombre legible del estado
func (s RequestState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Desconocido"
}

// IsValid retorna true si el estado pertenece al ciclo de vida
func (s RequestState) IsValid() bool {
	_, ok := stateNames[s]
	return ok
}

// IsTerminal retorna true si el estado no admite más transiciones de flujo normal.
// Liquidación Cerrada sigue siendo terminal para el flujo: solo una observación
// de comprobante la reabre.
func (s RequestState) IsTerminal() bool {
	return s == StateRechazado
}

// IsClosed retorna true si la solicitud está cerrada (rechazada o liquidada)
func (s RequestState) IsClosed() bool {
	return s == StateRechazado || s == StateLiquidacionCerrada
}

// LiquidationStarted retorna true si la solicitud ya entró a la fase de liquidación
func (s RequestState) LiquidationStarted() bool {
	return s >= StateEnviadoLiquidacion
}

// CanTransition retorna true si la transición s -> target está permitida
func (s RequestState) CanTransition(target RequestState) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ExpenseRequest representa la cabecera de una solicitud de viáticos
type ExpenseRequest struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	Number         string       `json:"number" db:"numero"`
	RequesterCode  string       `json:"requester_code" db:"codigo_solicitante"`
	RequesterEmail string       `json:"requester_email" db:"email_solicitante"`
	Description    string       `json:"description" db:"descripcion"`
	State          RequestState `json:"state" db:"estado"`
	TotalAmount    float64      `json:"total_amount" db:"importe_total"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// ChangeStateRequest representa una transición de estado iniciada por el revisor
type ChangeStateRequest struct {
	State  RequestState `json:"state" binding:"required"`
	Reason string       `json:"reason"`
}

// RequestResponse representa la vista pública de una solicitud
type RequestResponse struct {
	ID          uuid.UUID    `json:"id"`
	Number      string       `json:"number"`
	State       RequestState `json:"state"`
	StateName   string       `json:"state_name"`
	Description string       `json:"description"`
	TotalAmount float64      `json:"total_amount"`
	CreatedAt   time.Time    `json:"created_at"`
}
