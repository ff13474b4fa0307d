package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/email"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/sirupsen/logrus"
)

// RequestStore es la persistencia de solicitudes que necesita el servicio
type RequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExpenseRequest, error)
	UpdateState(ctx context.Context, id uuid.UUID, state models.RequestState) error
}

// NotificationStore es la persistencia de notificaciones
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByReceiver(ctx context.Context, receiverCode string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

// RequestService maneja el ciclo de vida de las solicitudes de viáticos
type RequestService struct {
	requestRepo      RequestStore
	notificationRepo NotificationStore
	emailService     *email.ResendService
	logger           *logrus.Logger
}

// NewRequestService crea una nueva instancia del servicio. emailService
// puede ser nil cuando el envío de correos está deshabilitado.
func NewRequestService(
	requestRepo RequestStore,
	notificationRepo NotificationStore,
	emailService *email.ResendService,
	logger *logrus.Logger,
) *RequestService {
	return &RequestService{
		requestRepo:      requestRepo,
		notificationRepo: notificationRepo,
		emailService:     emailService,
		logger:           logger,
	}
}

// GetByID obtiene una solicitud por ID
func (s *RequestService) GetByID(ctx context.Context, id uuid.UUID) (*models.ExpenseRequest, error) {
	return s.requestRepo.GetByID(ctx, id)
}

// Transition aplica una transición de estado iniciada por el revisor.
// Solo se permiten las transiciones del ciclo de vida.
func (s *RequestService) Transition(ctx context.Context, id uuid.UUID, target models.RequestState, reason string) (*models.ExpenseRequest, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("estado desconocido: %d", target)
	}

	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !request.State.CanTransition(target) {
		return nil, fmt.Errorf("transición no permitida: %s -> %s", request.State, target)
	}

	return s.applyTransition(ctx, request, target, reason)
}

// forceTransition aplica una transición forzada por la observación de
// un comprobante. No consulta la tabla de transiciones: la observación
// saca a la solicitud de cualquier estado, incluida una liquidación
// cerrada.
func (s *RequestService) forceTransition(ctx context.Context, request *models.ExpenseRequest, target models.RequestState, reason string) error {
	_, err := s.applyTransition(ctx, request, target, reason)
	return err
}

// applyTransition persiste el nuevo estado y emite exactamente una
// notificación al solicitante original
func (s *RequestService) applyTransition(ctx context.Context, request *models.ExpenseRequest, target models.RequestState, reason string) (*models.ExpenseRequest, error) {
	previous := request.State

	if err := s.requestRepo.UpdateState(ctx, request.ID, target); err != nil {
		return nil, err
	}
	request.State = target

	s.notify(ctx, request, previous, reason)

	return request, nil
}

// notify registra la notificación y envía el correo. El correo es
// best-effort: su fallo no revierte la transición ya persistida.
func (s *RequestService) notify(ctx context.Context, request *models.ExpenseRequest, previous models.RequestState, reason string) {
	message := fmt.Sprintf("Tu solicitud %s pasó de %s a %s", request.Number, previous, request.State)
	if reason != "" {
		message = fmt.Sprintf("%s. Motivo: %s", message, reason)
	}

	notification := &models.Notification{
		ID:           uuid.New(),
		ReceiverCode: request.RequesterCode,
		Message:      message,
		Read:         false,
		StateFlow:    request.State,
		CreatedAt:    time.Now(),
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.WithError(err).WithField("request_id", request.ID).
			Error("Error registrando notificación de cambio de estado")
		return
	}

	if s.emailService != nil && request.RequesterEmail != "" {
		if err := s.emailService.SendStateChangeEmail(request.RequesterEmail, request, previous, reason); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"request_id": request.ID,
				"to":         request.RequesterEmail,
			}).Warn("Error enviando correo de cambio de estado")
		}
	}
}

// Notifications obtiene las notificaciones de un receptor
func (s *RequestService) Notifications(ctx context.Context, receiverCode string) ([]models.Notification, error) {
	return s.notificationRepo.ListByReceiver(ctx, receiverCode)
}

// MarkNotificationRead marca una notificación como leída
func (s *RequestService) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return s.notificationRepo.MarkRead(ctx, id)
}

// ToRequestResponse convierte la solicitud a su vista pública
func ToRequestResponse(r *models.ExpenseRequest) *models.RequestResponse {
	return &models.RequestResponse{
		ID:          r.ID,
		Number:      r.Number,
		State:       r.State,
		StateName:   r.State.String(),
		Description: r.Description,
		TotalAmount: r.TotalAmount,
		CreatedAt:   r.CreatedAt,
	}
}
