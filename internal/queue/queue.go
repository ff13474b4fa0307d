package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/kallpa-labs/viaticos-service/internal/sunat"
	"github.com/sirupsen/logrus"
)

// VoucherStore es la vista mínima de persistencia que necesita el worker
type VoucherStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	UpdateValidation(ctx context.Context, id uuid.UUID, status models.ValidationStatus, result string) error
}

// Validator ejecuta la validación de un comprobante ante SUNAT de punta a punta
type Validator interface {
	CheckVoucher(ctx context.Context, req sunat.ValidationRequest) (*sunat.Result, error)
}

// ValidationQueue es la cola FIFO de comprobantes pendientes de
// validación. Un solo worker la drena: el latch draining, protegido
// por el mutex, garantiza que el borde vacío -> no-vacío arranque
// exactamente un worker aunque haya encolados concurrentes.
type ValidationQueue struct {
	mu       sync.Mutex
	pending  []uuid.UUID
	draining bool

	store     VoucherStore
	validator Validator
	delay     time.Duration
	logger    *logrus.Logger
	wg        sync.WaitGroup
}

// NewValidationQueue crea una nueva cola de validación
func NewValidationQueue(store VoucherStore, validator Validator, delay time.Duration, logger *logrus.Logger) *ValidationQueue {
	return &ValidationQueue{
		store:     store,
		validator: validator,
		delay:     delay,
		logger:    logger,
	}
}

// Enqueue agrega un comprobante a la cola. El llamador nunca espera la
// validación: si no hay worker activo se arranca uno nuevo en segundo plano.
func (q *ValidationQueue) Enqueue(voucherID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, voucherID)
	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
	}
}

// Draining retorna true si hay un worker activo
func (q *ValidationQueue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Wait bloquea hasta que la cola quede vacía y el worker termine
func (q *ValidationQueue) Wait() {
	q.wg.Wait()
}

// drain procesa elementos en orden FIFO hasta vaciar la cola. Una falla
// con un elemento se registra y no detiene el loop. El chequeo de cola
// vacía y la limpieza del latch son atómicos para no perder elementos
// encolados durante el drenado.
func (q *ValidationQueue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		voucherID := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.process(voucherID)

		// Cortesía de rate-limiting hacia SUNAT entre elementos
		if q.delay > 0 {
			time.Sleep(q.delay)
		}
	}
}

// process valida un comprobante y persiste el desenlace. Los errores
// del sistema dejan el comprobante sin validar con el motivo en el
// campo de resultado; una validación rechazada es un desenlace normal.
func (q *ValidationQueue) process(voucherID uuid.UUID) {
	ctx := context.Background()

	voucher, err := q.store.GetByID(ctx, voucherID)
	if err != nil {
		q.logger.WithError(err).WithField("voucher_id", voucherID).
			Error("No se pudo cargar el comprobante encolado")
		return
	}

	if !voucher.Active {
		q.logger.WithField("voucher_id", voucherID).Debug("Comprobante inactivo, omitido")
		return
	}

	amount := voucher.Amount
	result, err := q.validator.CheckVoucher(ctx, sunat.ValidationRequest{
		RUC:         voucher.RUC,
		TypeCode:    string(voucher.TypeCode),
		Series:      voucher.Series,
		Correlative: voucher.Correlative,
		IssueDate:   voucher.IssueDate,
		Amount:      &amount,
	})
	if err != nil {
		q.logger.WithError(err).WithField("voucher_id", voucherID).
			Warn("Validación ante SUNAT falló, el comprobante queda sin validar")
		if updateErr := q.store.UpdateValidation(ctx, voucherID, models.ValidationPending, err.Error()); updateErr != nil {
			q.logger.WithError(updateErr).WithField("voucher_id", voucherID).
				Error("No se pudo persistir el motivo de la falla")
		}
		return
	}

	status := models.ValidationInvalid
	if result.Valid {
		status = models.ValidationValid
	}

	if err := q.store.UpdateValidation(ctx, voucherID, status, result.Raw); err != nil {
		q.logger.WithError(err).WithField("voucher_id", voucherID).
			Error("No se pudo persistir el resultado de la validación")
		return
	}

	q.logger.WithFields(logrus.Fields{
		"voucher_id": voucherID,
		"status":     status,
		"estado_cp":  result.EstadoCp,
	}).Info("Comprobante validado")
}
