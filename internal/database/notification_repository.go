package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/sirupsen/logrus"
)

// NotificationRepository maneja las operaciones de base de datos para notificaciones
type NotificationRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewNotificationRepository crea una nueva instancia del repositorio
func NewNotificationRepository(db *DB, logger *logrus.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create registra una notificación generada por un cambio de estado
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notificaciones (id, codigo_receptor, mensaje, leido, flujo_estado, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.ReceiverCode, n.Message, n.Read, n.StateFlow, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting notification: %w", err)
	}
	return nil
}

// ListByReceiver obtiene las notificaciones de un receptor, más recientes primero
func (r *NotificationRepository) ListByReceiver(ctx context.Context, receiverCode string) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, codigo_receptor, mensaje, leido, flujo_estado, created_at
		FROM notificaciones
		WHERE codigo_receptor = $1
		ORDER BY created_at DESC
	`, receiverCode)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.ReceiverCode, &n.Message, &n.Read, &n.StateFlow, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkRead marca una notificación como leída
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notificaciones
		SET leido = true
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("error updating notification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}
	return nil
}
