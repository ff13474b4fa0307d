package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification representa un mensaje dirigido al solicitante por una
// transición de estado de su solicitud
type Notification struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	ReceiverCode string       `json:"receiver_code" db:"codigo_receptor"`
	Message      string       `json:"message" db:"mensaje"`
	Read         bool         `json:"read" db:"leido"`
	StateFlow    RequestState `json:"state_flow" db:"flujo_estado"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
