package email

import (
	"fmt"

	"github.com/kallpa-labs/viaticos-service/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ResendService maneja el envío de correos electrónicos usando Resend API
type ResendService struct {
	client    *resend.Client
	fromEmail string
	baseURL   string
	logger    *logrus.Logger
}

// NewResendService crea una nueva instancia de ResendService
func NewResendService(apiKey string, fromEmail string, baseURL string, logger *logrus.Logger) *ResendService {
	return &ResendService{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// SendStateChangeEmail notifica al solicitante la transición de estado de
// su solicitud. El envío es best-effort: un fallo se registra y no
// revierte la transición ya persistida.
func (s *ResendService) SendStateChangeEmail(toEmail string, request *models.ExpenseRequest, previous models.RequestState, reason string) error {
	subject := fmt.Sprintf("Solicitud %s - %s", request.Number, request.State.String())

	reasonBlock := ""
	if reason != "" {
		reasonBlock = fmt.Sprintf(`<p><strong>Motivo:</strong> %s</p>`, reason)
	}

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Solicitud de Viáticos</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 8px; }
        .content { padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background-color: #007bff; color: white; text-decoration: none; border-radius: 5px; margin: 10px 5px; }
        .footer { margin-top: 30px; padding: 20px; background-color: #f8f9fa; border-radius: 8px; font-size: 14px; color: #666; }
        .state { font-size: 18px; font-weight: bold; color: #007bff; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Solicitud de Viáticos</h1>
            <p>Número: %s</p>
        </div>

        <div class="content">
            <p>Tu solicitud cambió de estado:</p>

            <ul>
                <li><strong>Estado anterior:</strong> %s</li>
                <li><strong>Estado actual:</strong> <span class="state">%s</span></li>
                <li><strong>Importe total:</strong> S/ %.2f</li>
            </ul>
            %s
            <div style="text-align: center; margin: 20px 0;">
                <a href="%s/v1/requests/%s" class="button">Ver solicitud</a>
            </div>
        </div>

        <div class="footer">
            <p>Este es un email automático del sistema de viáticos.</p>
            <p>Si tienes alguna pregunta, por favor contacta a tu administrador.</p>
        </div>
    </div>
</body>
</html>`,
		request.Number,
		previous.String(),
		request.State.String(),
		request.TotalAmount,
		reasonBlock,
		s.baseURL,
		request.ID)

	sendReq := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{toEmail},
		Subject: subject,
		Html:    htmlContent,
	}

	result, err := s.client.Emails.Send(sendReq)
	if err != nil {
		return fmt.Errorf("error sending email via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id": result.Id,
		"to":       toEmail,
		"subject":  subject,
	}).Info("Email sent successfully via Resend")

	return nil
}
