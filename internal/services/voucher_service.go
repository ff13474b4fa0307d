package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/database"
	"github.com/kallpa-labs/viaticos-service/internal/extract"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/kallpa-labs/viaticos-service/internal/ocr"
	"github.com/sirupsen/logrus"
)

// VoucherStore es la persistencia de comprobantes que necesita el servicio
type VoucherStore interface {
	Create(ctx context.Context, voucher *models.Voucher) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Voucher, error)
	UpdateValidation(ctx context.Context, id uuid.UUID, status models.ValidationStatus, result string) error
	UpdateObserved(ctx context.Context, id uuid.UUID, note string) error
	UpdateApproved(ctx context.Context, id uuid.UUID, approved bool) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Enqueuer encola comprobantes para validación asíncrona
type Enqueuer interface {
	Enqueue(voucherID uuid.UUID)
}

// VoucherService orquesta el pipeline de comprobantes: extracción de
// texto, registro y encolado para validación asíncrona
type VoucherService struct {
	voucherRepo VoucherStore
	requestRepo RequestStore
	requestSvc  *RequestService
	coordinator *ocr.Coordinator
	extractor   *extract.Extractor
	storage     *database.ObjectStorage
	queue       Enqueuer
	specialRate float64
	logger      *logrus.Logger
}

// NewVoucherService crea una nueva instancia del servicio
func NewVoucherService(
	voucherRepo VoucherStore,
	requestRepo RequestStore,
	requestSvc *RequestService,
	coordinator *ocr.Coordinator,
	extractor *extract.Extractor,
	storage *database.ObjectStorage,
	validationQueue Enqueuer,
	specialRate float64,
	logger *logrus.Logger,
) *VoucherService {
	return &VoucherService{
		voucherRepo: voucherRepo,
		requestRepo: requestRepo,
		requestSvc:  requestSvc,
		coordinator: coordinator,
		extractor:   extractor,
		storage:     storage,
		queue:       validationQueue,
		specialRate: specialRate,
		logger:      logger,
	}
}

// fileTypeFromName deduce el tipo de archivo a partir de la extensión
func fileTypeFromName(filename string) (ocr.FileType, error) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "", fmt.Errorf("archivo sin extensión: %s", filename)
	}
	switch strings.ToUpper(filename[idx+1:]) {
	case "PDF":
		return ocr.FileTypePDF, nil
	case "JPG":
		return ocr.FileTypeJPG, nil
	case "JPEG":
		return ocr.FileTypeJPEG, nil
	case "PNG":
		return ocr.FileTypePNG, nil
	case "BMP":
		return ocr.FileTypeBMP, nil
	case "TIF", "TIFF":
		return ocr.FileTypeTIFF, nil
	case "XML":
		return "", errUseXMLPath
	default:
		return "", fmt.Errorf("tipo de archivo no soportado: %s", filename)
	}
}

var errUseXMLPath = fmt.Errorf("xml")

// ExtractFromFile procesa el archivo cargado y retorna el texto
// reconocido junto con los campos candidatos. Los XML UBL no pasan por
// OCR: se leen directamente del documento estructurado. pageSegMode
// ajusta la segmentación del motor local; cero usa el modo por defecto.
func (s *VoucherService) ExtractFromFile(ctx context.Context, filename string, data []byte, language string, pageSegMode int) (*models.ExtractionResponse, error) {
	fileType, err := fileTypeFromName(filename)
	if err == errUseXMLPath {
		return s.extractFromXML(data)
	}
	if err != nil {
		return nil, err
	}

	doc := ocr.Document{
		Data:        data,
		FileType:    fileType,
		Language:    language,
		PageSegMode: pageSegMode,
	}

	output, err := s.coordinator.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("error extracting text: %w", err)
	}

	fields := s.extractor.FromText(output.Text)

	return &models.ExtractionResponse{
		Text:           output.Text,
		Confidences:    output.Confidences,
		PagesProcessed: output.Pages,
		Engine:         output.Engine,
		DurationMs:     output.Duration.Milliseconds(),
		Fields:         *fields,
	}, nil
}

// extractFromXML lee los campos directamente de un comprobante UBL
func (s *VoucherService) extractFromXML(data []byte) (*models.ExtractionResponse, error) {
	start := time.Now()

	fields, err := s.extractor.FromXML(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing XML voucher: %w", err)
	}

	return &models.ExtractionResponse{
		Text:           string(data),
		Confidences:    []float64{1.0},
		PagesProcessed: 1,
		Engine:         "ubl-xml",
		DurationMs:     time.Since(start).Milliseconds(),
		Fields:         *fields,
	}, nil
}

// UploadFile guarda el archivo original del comprobante en el storage
// y retorna la ruta. Requiere storage configurado.
func (s *VoucherService) UploadFile(ctx context.Context, requestID uuid.UUID, filename string, data []byte, contentType string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("object storage no configurado")
	}
	key := fmt.Sprintf("%s/%s_%s", requestID, uuid.New(), filename)
	return s.storage.UploadVoucherFile(ctx, key, data, contentType)
}

// Create registra el comprobante con los campos elegidos por el usuario
// y lo encola para validación. El llamador recibe el comprobante en
// PENDIENTE de inmediato; el resultado llega por el worker de la cola.
func (s *VoucherService) Create(ctx context.Context, req *models.CreateVoucherRequest) (*models.Voucher, error) {
	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("fecha de emisión inválida %q: %w", req.IssueDate, err)
	}

	// La solicitud debe existir y admitir comprobantes
	request, err := s.requestRepo.GetByID(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if request.State == models.StateRechazado {
		return nil, fmt.Errorf("la solicitud %s está rechazada", request.Number)
	}

	now := time.Now()
	voucher := &models.Voucher{
		ID:          uuid.New(),
		RequestID:   req.RequestID,
		LineID:      req.LineID,
		TypeCode:    req.TypeCode,
		Series:      req.Series,
		Correlative: req.Correlative,
		IssueDate:   issueDate,
		Amount:      req.Amount,
		RUC:         req.RUC,
		LegalName:   req.LegalName,
		StoragePath: req.StoragePath,
		Validated:   models.ValidationPending,
		Exempt:      req.Exempt,
		Unaffected:  req.Unaffected,
		SpecialRate: req.SpecialRate,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	voucher.TaxRate = voucher.DeriveTaxRate(s.specialRate)

	// El duplicado se rechaza aquí: un comprobante duplicado jamás
	// entra a la cola de validación
	if err := s.voucherRepo.Create(ctx, voucher); err != nil {
		return nil, err
	}

	s.queue.Enqueue(voucher.ID)

	s.logger.WithFields(logrus.Fields{
		"voucher_id": voucher.ID,
		"request_id": voucher.RequestID,
		"series":     voucher.Series,
	}).Info("Comprobante registrado y encolado para validación")

	return voucher, nil
}

// GetByID obtiene un comprobante por ID
func (s *VoucherService) GetByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	return s.voucherRepo.GetByID(ctx, id)
}

// ListByRequest obtiene los comprobantes activos de una solicitud
func (s *VoucherService) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Voucher, error) {
	return s.voucherRepo.ListByRequest(ctx, requestID)
}

// Observe marca el comprobante como observado y fuerza la transición de
// la solicitud padre: a Observado si aún no entró a liquidación, a
// Liquidación Observada si ya entró, incluso reabriendo una liquidación
// cerrada.
func (s *VoucherService) Observe(ctx context.Context, id uuid.UUID, note string) error {
	voucher, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.voucherRepo.UpdateObserved(ctx, id, note); err != nil {
		return err
	}

	request, err := s.requestRepo.GetByID(ctx, voucher.RequestID)
	if err != nil {
		return err
	}

	target := models.StateObservado
	if request.State.LiquidationStarted() {
		target = models.StateLiquidacionObservada
	}
	if request.State == target {
		return nil
	}

	reason := fmt.Sprintf("Comprobante %s-%s observado: %s", voucher.Series, voucher.Correlative, note)
	return s.requestSvc.forceTransition(ctx, request, target, reason)
}

// Approve marca la aprobación a nivel de línea. No altera el estado de
// la solicitud padre.
func (s *VoucherService) Approve(ctx context.Context, id uuid.UUID, approved bool) error {
	return s.voucherRepo.UpdateApproved(ctx, id, approved)
}

// Deactivate desactiva un comprobante (borrado lógico)
func (s *VoucherService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.voucherRepo.Deactivate(ctx, id)
}

// Revalidate reencola un comprobante para una nueva validación. Las
// solicitudes cerradas o rechazadas no se revalidan.
func (s *VoucherService) Revalidate(ctx context.Context, id uuid.UUID) error {
	voucher, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !voucher.Active {
		return fmt.Errorf("el comprobante %s está desactivado", id)
	}

	request, err := s.requestRepo.GetByID(ctx, voucher.RequestID)
	if err != nil {
		return err
	}
	if request.State.IsClosed() {
		return fmt.Errorf("la solicitud %s está cerrada, no admite revalidación", request.Number)
	}

	if err := s.voucherRepo.UpdateValidation(ctx, id, models.ValidationPending, ""); err != nil {
		return err
	}
	s.queue.Enqueue(id)

	s.logger.WithField("voucher_id", id).Info("Comprobante reencolado para validación")
	return nil
}

// ToResponse convierte el comprobante a su vista pública
func ToResponse(v *models.Voucher) *models.VoucherResponse {
	return &models.VoucherResponse{
		ID:               v.ID,
		RequestID:        v.RequestID,
		TypeCode:         v.TypeCode,
		Series:           v.Series,
		Correlative:      v.Correlative,
		IssueDate:        v.IssueDate.Format("2006-01-02"),
		Amount:           v.Amount,
		RUC:              v.RUC,
		LegalName:        v.LegalName,
		Validated:        v.Validated,
		ValidationResult: v.ValidationResult,
		Observed:         v.Observed,
		Approved:         v.Approved,
	}
}
