package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/sirupsen/logrus"
)

// RequestRepository maneja las operaciones de base de datos para solicitudes de viáticos
type RequestRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewRequestRepository crea una nueva instancia del repositorio
func NewRequestRepository(db *DB, logger *logrus.Logger) *RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID obtiene una solicitud por ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExpenseRequest, error) {
	query := `
		SELECT id, numero, codigo_solicitante, email_solicitante, descripcion,
		       estado, importe_total, created_at, updated_at
		FROM solicitudes
		WHERE id = $1
	`

	var req models.ExpenseRequest
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.Number, &req.RequesterCode, &req.RequesterEmail,
		&req.Description, &req.State, &req.TotalAmount, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("request not found: %s", id)
		}
		return nil, fmt.Errorf("error querying request: %w", err)
	}

	return &req, nil
}

// UpdateState persiste el nuevo estado de la solicitud. La validez de la
// transición se decide en la capa de servicio antes de llegar aquí.
func (r *RequestRepository) UpdateState(ctx context.Context, id uuid.UUID, state models.RequestState) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE solicitudes
		SET estado = $1, updated_at = $2
		WHERE id = $3
	`, state, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating request state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("request not found: %s", id)
	}

	r.logger.WithFields(logrus.Fields{
		"request_id": id,
		"state":      state.String(),
	}).Info("Estado de solicitud actualizado")

	return nil
}
