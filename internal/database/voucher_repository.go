package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// VoucherRepository maneja las operaciones de base de datos para comprobantes
type VoucherRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewVoucherRepository crea una nueva instancia del repositorio
func NewVoucherRepository(db *DB, logger *logrus.Logger) *VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Create registra un nuevo comprobante. La unicidad de (serie,
// correlativo) entre comprobantes activos de la misma solicitud se
// verifica dentro de la transacción: una colisión es un error de
// creación, nunca una limpieza posterior.
func (r *VoucherRepository) Create(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		// Bloquea la fila de la solicitud padre: dos registros
		// concurrentes del mismo (serie, correlativo) se serializan
		// aquí, en vez de leer ambos un conteo en cero bajo READ
		// COMMITTED
		var requestID uuid.UUID
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM solicitudes WHERE id = $1 FOR UPDATE
		`, voucher.RequestID).Scan(&requestID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("request not found: %s", voucher.RequestID)
		}
		if err != nil {
			return fmt.Errorf("error locking request: %w", err)
		}

		var count int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM comprobantes
			WHERE solicitud_id = $1 AND serie = $2 AND correlativo = $3 AND activo = true
		`, voucher.RequestID, voucher.Series, voucher.Correlative).Scan(&count)
		if err != nil {
			return fmt.Errorf("error checking duplicate voucher: %w", err)
		}
		if count > 0 {
			return models.ErrDuplicateVoucher
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO comprobantes (
				id, solicitud_id, detalle_id, tipo_comprobante, serie, correlativo,
				fecha_emision, importe, ruc, razon_social, ruta_archivo,
				validado, resultado_validacion, observado, nota_observacion, aprobado,
				exonerado, inafecto, tasa_especial, tasa_igv, activo, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
				$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
			)
		`,
			voucher.ID, voucher.RequestID, voucher.LineID, voucher.TypeCode,
			voucher.Series, voucher.Correlative, voucher.IssueDate, voucher.Amount,
			voucher.RUC, voucher.LegalName, voucher.StoragePath,
			voucher.Validated, voucher.ValidationResult, voucher.Observed,
			voucher.ObservationNote, voucher.Approved, voucher.Exempt,
			voucher.Unaffected, voucher.SpecialRate, voucher.TaxRate,
			voucher.Active, voucher.CreatedAt, voucher.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrDuplicateVoucher
			}
			return fmt.Errorf("error inserting voucher: %w", err)
		}
		return nil
	})
}

// isUniqueViolation detecta la violación del índice único parcial
// (solicitud_id, serie, correlativo) WHERE activo sobre comprobantes
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const voucherColumns = `
	id, solicitud_id, detalle_id, tipo_comprobante, serie, correlativo,
	fecha_emision, importe, ruc, razon_social, ruta_archivo,
	validado, resultado_validacion, observado, nota_observacion, aprobado,
	exonerado, inafecto, tasa_especial, tasa_igv, activo, created_at, updated_at
`

// scanVoucher lee una fila de comprobante
func scanVoucher(row interface{ Scan(...interface{}) error }) (*models.Voucher, error) {
	var v models.Voucher
	err := row.Scan(
		&v.ID, &v.RequestID, &v.LineID, &v.TypeCode, &v.Series, &v.Correlative,
		&v.IssueDate, &v.Amount, &v.RUC, &v.LegalName, &v.StoragePath,
		&v.Validated, &v.ValidationResult, &v.Observed, &v.ObservationNote, &v.Approved,
		&v.Exempt, &v.Unaffected, &v.SpecialRate, &v.TaxRate,
		&v.Active, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByID obtiene un comprobante por ID
func (r *VoucherRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM comprobantes WHERE id = $1`

	voucher, err := scanVoucher(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("voucher not found: %s", id)
		}
		return nil, fmt.Errorf("error querying voucher: %w", err)
	}
	return voucher, nil
}

// ListByRequest obtiene los comprobantes activos de una solicitud
func (r *VoucherRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Voucher, error) {
	query := `SELECT ` + voucherColumns + `
		FROM comprobantes
		WHERE solicitud_id = $1 AND activo = true
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("error querying vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []models.Voucher
	for rows.Next() {
		voucher, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning voucher: %w", err)
		}
		vouchers = append(vouchers, *voucher)
	}

	return vouchers, rows.Err()
}

// UpdateValidation persiste el desenlace de la validación asíncrona
func (r *VoucherRepository) UpdateValidation(ctx context.Context, id uuid.UUID, status models.ValidationStatus, result string) error {
	return r.update(ctx, id, `
		UPDATE comprobantes
		SET validado = $1, resultado_validacion = $2, updated_at = $3
		WHERE id = $4
	`, status, result, time.Now(), id)
}

// UpdateObserved marca un comprobante como observado con la nota del revisor
func (r *VoucherRepository) UpdateObserved(ctx context.Context, id uuid.UUID, note string) error {
	return r.update(ctx, id, `
		UPDATE comprobantes
		SET observado = true, nota_observacion = $1, updated_at = $2
		WHERE id = $3
	`, note, time.Now(), id)
}

// UpdateApproved marca la aprobación a nivel de línea de un comprobante
func (r *VoucherRepository) UpdateApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	return r.update(ctx, id, `
		UPDATE comprobantes
		SET aprobado = $1, updated_at = $2
		WHERE id = $3
	`, approved, time.Now(), id)
}

// Deactivate desactiva un comprobante; nunca se elimina físicamente
func (r *VoucherRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, `
		UPDATE comprobantes
		SET activo = false, updated_at = $1
		WHERE id = $2
	`, time.Now(), id)
}

// update ejecuta una actualización y verifica que la fila exista
func (r *VoucherRepository) update(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating voucher: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("voucher not found: %s", id)
	}
	return nil
}
