package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/kallpa-labs/viaticos-service/internal/sunat"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implementa VoucherStore en memoria
type fakeStore struct {
	mu       sync.Mutex
	vouchers map[uuid.UUID]*models.Voucher
	updates  []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{vouchers: make(map[uuid.UUID]*models.Voucher)}
}

func (s *fakeStore) add(active bool) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.vouchers[id] = &models.Voucher{
		ID:          id,
		TypeCode:    models.VoucherTypeFactura,
		Series:      "F001",
		Correlative: "00000001",
		RUC:         "20123456789",
		Amount:      118.00,
		Validated:   models.ValidationPending,
		Active:      active,
	}
	return id
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return nil, fmt.Errorf("voucher not found: %s", id)
	}
	clone := *v
	return &clone, nil
}

func (s *fakeStore) UpdateValidation(ctx context.Context, id uuid.UUID, status models.ValidationStatus, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return fmt.Errorf("voucher not found: %s", id)
	}
	v.Validated = status
	v.ValidationResult = &result
	s.updates = append(s.updates, id)
	return nil
}

func (s *fakeStore) status(id uuid.UUID) models.ValidationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vouchers[id].Validated
}

func (s *fakeStore) updateOrder() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.updates...)
}

// fakeValidator implementa Validator con un desenlace fijo por serie
type fakeValidator struct {
	mu       sync.Mutex
	calls    int
	valid    bool
	failWith error
}

func (v *fakeValidator) CheckVoucher(ctx context.Context, req sunat.ValidationRequest) (*sunat.Result, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.failWith != nil {
		return nil, v.failWith
	}
	return &sunat.Result{Valid: v.valid, Raw: `{"success":true}`}, nil
}

func (v *fakeValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestEnqueueProcessesVoucher(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: true}
	q := NewValidationQueue(store, validator, 0, testLogger())

	id := store.add(true)
	q.Enqueue(id)
	q.Wait()

	assert.Equal(t, models.ValidationValid, store.status(id))
	assert.Equal(t, 1, validator.callCount())
	assert.False(t, q.Draining())
}

func TestEnqueueInvalidOutcome(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: false}
	q := NewValidationQueue(store, validator, 0, testLogger())

	id := store.add(true)
	q.Enqueue(id)
	q.Wait()

	assert.Equal(t, models.ValidationInvalid, store.status(id))
}

func TestFIFOOrder(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: true}
	q := NewValidationQueue(store, validator, 0, testLogger())

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, store.add(true))
	}
	for _, id := range ids {
		q.Enqueue(id)
	}
	q.Wait()

	require.Equal(t, ids, store.updateOrder())
}

func TestSystemErrorLeavesVoucherPending(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{failWith: fmt.Errorf("conexión rechazada")}
	q := NewValidationQueue(store, validator, 0, testLogger())

	first := store.add(true)
	second := store.add(true)
	q.Enqueue(first)
	q.Enqueue(second)
	q.Wait()

	// La falla con un elemento no detiene el drenado del resto
	assert.Equal(t, models.ValidationPending, store.status(first))
	assert.Equal(t, models.ValidationPending, store.status(second))
	assert.Equal(t, 2, validator.callCount())
}

func TestInactiveVoucherSkipped(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: true}
	q := NewValidationQueue(store, validator, 0, testLogger())

	id := store.add(false)
	q.Enqueue(id)
	q.Wait()

	assert.Equal(t, models.ValidationPending, store.status(id))
	assert.Equal(t, 0, validator.callCount())
}

func TestUnknownVoucherDoesNotStopDrain(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: true}
	q := NewValidationQueue(store, validator, 0, testLogger())

	q.Enqueue(uuid.New())
	id := store.add(true)
	q.Enqueue(id)
	q.Wait()

	assert.Equal(t, models.ValidationValid, store.status(id))
}

func TestEnqueueIdempotentReprocessing(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: true}
	q := NewValidationQueue(store, validator, 0, testLogger())

	id := store.add(true)
	q.Enqueue(id)
	q.Enqueue(id)
	q.Wait()

	// Reprocesar el mismo comprobante converge al mismo desenlace
	assert.Equal(t, models.ValidationValid, store.status(id))
	assert.Equal(t, 2, validator.callCount())
}

func TestDrainingClearsWhenEmpty(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: true}
	q := NewValidationQueue(store, validator, 0, testLogger())

	assert.False(t, q.Draining())

	id := store.add(true)
	q.Enqueue(id)
	q.Wait()
	assert.False(t, q.Draining())

	// Un nuevo borde vacío -> no-vacío arranca otro worker
	q.Enqueue(id)
	q.Wait()
	assert.False(t, q.Draining())
	assert.Equal(t, 2, validator.callCount())
}

func TestConcurrentEnqueues(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{valid: true}
	q := NewValidationQueue(store, validator, time.Millisecond, testLogger())

	const n = 20
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = store.add(true)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			q.Enqueue(id)
		}(id)
	}
	wg.Wait()
	q.Wait()

	assert.Equal(t, n, validator.callCount())
	for _, id := range ids {
		assert.Equal(t, models.ValidationValid, store.status(id))
	}
}
