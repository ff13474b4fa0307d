package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/kallpa-labs/viaticos-service/internal/services"
	"github.com/sirupsen/logrus"
)

// maxUploadSize limita el tamaño del archivo cargado para extracción
const maxUploadSize = 10 * 1024 * 1024

// API maneja todos los endpoints del servicio de viáticos
type API struct {
	voucherService *services.VoucherService
	requestService *services.RequestService
	logger         *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(
	voucherService *services.VoucherService,
	requestService *services.RequestService,
	logger *logrus.Logger,
) *API {
	return &API{
		voucherService: voucherService,
		requestService: requestService,
		logger:         logger,
	}
}

// ExtractVoucher procesa un archivo cargado y retorna el texto
// reconocido con los campos candidatos. No persiste nada.
func (api *API) ExtractVoucher(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Archivo requerido", []models.ErrorDetail{
			{Field: "file", Issue: "Debe adjuntar un archivo en el campo 'file'"},
		}))
		return
	}

	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.NewValidationError("Archivo demasiado grande", []models.ErrorDetail{
			{Field: "file", Issue: "El tamaño máximo es 10 MB"},
		}))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		api.logger.WithError(err).Error("Error abriendo archivo cargado")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error leyendo archivo"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.logger.WithError(err).Error("Error leyendo archivo cargado")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error leyendo archivo"))
		return
	}

	language := c.DefaultPostForm("language", "")

	// Modo de segmentación de página opcional para el motor local
	pageSegMode := 0
	if raw := c.PostForm("psm"); raw != "" {
		pageSegMode, err = strconv.Atoi(raw)
		if err != nil || pageSegMode < 0 || pageSegMode > 13 {
			c.JSON(http.StatusBadRequest, models.NewValidationError("Modo de segmentación inválido", []models.ErrorDetail{
				{Field: "psm", Issue: "Debe ser un entero entre 0 y 13"},
			}))
			return
		}
	}

	response, err := api.voucherService.ExtractFromFile(c.Request.Context(), fileHeader.Filename, data, language, pageSegMode)
	if err != nil {
		if strings.Contains(err.Error(), "no soportado") || strings.Contains(err.Error(), "sin extensión") {
			c.JSON(http.StatusBadRequest, models.NewValidationError("Archivo no soportado", []models.ErrorDetail{
				{Field: "file", Issue: err.Error()},
			}))
			return
		}
		api.logger.WithError(err).Error("Error extrayendo texto del comprobante")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error procesando el archivo"))
		return
	}

	c.JSON(http.StatusOK, response)
}

// CreateVoucher registra un comprobante y lo encola para validación
func (api *API) CreateVoucher(c *gin.Context) {
	var req models.CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.logger.WithError(err).Error("Error binding create voucher request")
		c.JSON(http.StatusBadRequest, models.NewValidationError("Formato de request inválido", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	voucher, err := api.voucherService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateVoucher) {
			c.JSON(http.StatusConflict, models.NewConflictError("Ya existe un comprobante activo con esa serie y correlativo en la solicitud"))
			return
		}
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Solicitud no encontrada"))
			return
		}
		if strings.Contains(err.Error(), "inválida") || strings.Contains(err.Error(), "rechazada") {
			c.JSON(http.StatusBadRequest, models.NewValidationError("Request inválido", []models.ErrorDetail{
				{Field: "body", Issue: err.Error()},
			}))
			return
		}
		api.logger.WithError(err).Error("Error creando comprobante")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error registrando el comprobante"))
		return
	}

	c.JSON(http.StatusCreated, services.ToResponse(voucher))
}

// GetVoucher obtiene un comprobante por ID
func (api *API) GetVoucher(c *gin.Context) {
	id, ok := api.parseID(c)
	if !ok {
		return
	}

	voucher, err := api.voucherService.GetByID(c.Request.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Comprobante no encontrado"))
			return
		}
		api.logger.WithError(err).Error("Error obteniendo comprobante")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error consultando el comprobante"))
		return
	}

	c.JSON(http.StatusOK, services.ToResponse(voucher))
}

// ObserveVoucher marca un comprobante como observado
func (api *API) ObserveVoucher(c *gin.Context) {
	id, ok := api.parseID(c)
	if !ok {
		return
	}

	var req models.ObserveVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Formato de request inválido", []models.ErrorDetail{
			{Field: "note", Issue: "La nota de observación es obligatoria"},
		}))
		return
	}

	if err := api.voucherService.Observe(c.Request.Context(), id, req.Note); err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Comprobante no encontrado"))
			return
		}
		api.logger.WithError(err).Error("Error observando comprobante")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error observando el comprobante"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "observed"})
}

// ApproveVoucher marca la aprobación a nivel de línea de un comprobante
func (api *API) ApproveVoucher(c *gin.Context) {
	id, ok := api.parseID(c)
	if !ok {
		return
	}

	if err := api.voucherService.Approve(c.Request.Context(), id, true); err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Comprobante no encontrado"))
			return
		}
		api.logger.WithError(err).Error("Error aprobando comprobante")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error aprobando el comprobante"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

// RevalidateVoucher reencola un comprobante para validación
func (api *API) RevalidateVoucher(c *gin.Context) {
	id, ok := api.parseID(c)
	if !ok {
		return
	}

	if err := api.voucherService.Revalidate(c.Request.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Comprobante no encontrado"))
			return
		}
		if strings.Contains(err.Error(), "cerrada") || strings.Contains(err.Error(), "desactivado") {
			c.JSON(http.StatusConflict, models.NewConflictError(err.Error()))
			return
		}
		api.logger.WithError(err).Error("Error revalidando comprobante")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error revalidando el comprobante"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// GetRequest obtiene una solicitud con sus comprobantes
func (api *API) GetRequest(c *gin.Context) {
	id, ok := api.parseID(c)
	if !ok {
		return
	}

	request, err := api.requestService.GetByID(c.Request.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Solicitud no encontrada"))
			return
		}
		api.logger.WithError(err).Error("Error obteniendo solicitud")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error consultando la solicitud"))
		return
	}

	vouchers, err := api.voucherService.ListByRequest(c.Request.Context(), id)
	if err != nil {
		api.logger.WithError(err).Error("Error listando comprobantes de la solicitud")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error consultando la solicitud"))
		return
	}

	voucherViews := make([]models.VoucherResponse, 0, len(vouchers))
	for i := range vouchers {
		voucherViews = append(voucherViews, *services.ToResponse(&vouchers[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"request":  services.ToRequestResponse(request),
		"vouchers": voucherViews,
	})
}

// ChangeRequestState aplica una transición de estado a la solicitud
func (api *API) ChangeRequestState(c *gin.Context) {
	id, ok := api.parseID(c)
	if !ok {
		return
	}

	var req models.ChangeStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Formato de request inválido", []models.ErrorDetail{
			{Field: "state", Issue: err.Error()},
		}))
		return
	}

	request, err := api.requestService.Transition(c.Request.Context(), id, req.State, req.Reason)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Solicitud no encontrada"))
			return
		}
		if strings.Contains(err.Error(), "no permitida") || strings.Contains(err.Error(), "desconocido") {
			c.JSON(http.StatusConflict, models.NewConflictError(err.Error()))
			return
		}
		api.logger.WithError(err).Error("Error cambiando estado de solicitud")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error cambiando el estado"))
		return
	}

	c.JSON(http.StatusOK, services.ToRequestResponse(request))
}

// parseID parsea el parámetro :id como UUID
func (api *API) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("ID inválido", []models.ErrorDetail{
			{Field: "id", Issue: "Debe ser un UUID válido"},
		}))
		return uuid.Nil, false
	}
	return id, true
}
