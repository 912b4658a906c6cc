package handlers

import (
	"context"
	"errors"
	"hoursrelay/internal/logger"
	"hoursrelay/internal/services"
	helpers "hoursrelay/internal/utils/helpres"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Notifier - то, что хендлерам нужно от services.NotificationService.
type Notifier interface {
	SendVerificationRequest(ctx context.Context, hoursID, verifierEmail, studentID string) (*services.VerificationRequestResult, error)
	RedeemVerification(ctx context.Context, token, action, hoursID, verifierEmail, notes string) (*services.RedeemResult, error)
	SendStatusNotification(ctx context.Context, hoursID, studentEmail, status, verifierEmail, notes string) (*services.StatusNotificationResult, error)
	SendHoursNotification(ctx context.Context, hoursID, studentEmail, status, adminID, notes string) (*services.StatusNotificationResult, error)
	SendHoursUpdateNotification(ctx context.Context, hoursID, verifierEmail, status, notes, adminEmail string) (*services.HoursUpdateResult, error)
	SendOpportunityRegistration(ctx context.Context, registrationID, studentEmail string) (*services.OpportunityResult, error)
	SendOpportunityReminder(ctx context.Context, registrationID, studentEmail string) (*services.OpportunityResult, error)
	SendOpportunityUnregistration(ctx context.Context, registrationID, studentEmail string) (*services.OpportunityResult, error)
}

type EmailHandler struct {
	notifier    Notifier
	frontendURL string
}

func NewEmailHandler(notifier Notifier, frontendURL string) *EmailHandler {
	return &EmailHandler{notifier: notifier, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// ActionResponse - тело успешного ответа.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

type verificationEmailRequest struct {
	HoursID       string `json:"hours_id" validate:"required"`
	VerifierEmail string `json:"verifier_email" validate:"required,email"`
	StudentID     string `json:"student_id" validate:"required"`
}

type notificationRequest struct {
	HoursID       string `json:"hours_id" validate:"required"`
	StudentEmail  string `json:"student_email" validate:"required,email"`
	Status        string `json:"status" validate:"required,oneof=approved denied"`
	VerifierEmail string `json:"verifier_email" validate:"omitempty,email"`
	Notes         string `json:"notes"`
}

type hoursNotificationRequest struct {
	HoursID      string `json:"hours_id" validate:"required"`
	StudentEmail string `json:"student_email" validate:"required,email"`
	Status       string `json:"status" validate:"required,oneof=approved denied"`
	AdminID      string `json:"admin_id" validate:"required"`
	Notes        string `json:"notes"`
}

type hoursUpdateRequest struct {
	HoursID       string `json:"hours_id" validate:"required"`
	VerifierEmail string `json:"verifier_email" validate:"required,email"`
	Status        string `json:"status" validate:"required,oneof=approved denied"`
	Notes         string `json:"notes"`
	AdminEmail    string `json:"admin_email" validate:"omitempty,email"`
}

type opportunityRequest struct {
	RegistrationID string `json:"registration_id" validate:"required"`
	StudentEmail   string `json:"student_email" validate:"required,email"`
}

type verifyQuery struct {
	Token   string `validate:"required"`
	Action  string `validate:"required"`
	HoursID string `validate:"required"`
	Email   string `validate:"required"`
}

// writeServiceError переводит ошибки сервиса в HTTP-ответ.
// sendFailedMsg - текст для ErrSendFailed, он свой у каждого эндпоинта.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, sendFailedMsg string) {
	status, msg := errorStatus(err, sendFailedMsg)
	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error("Ошибка обработки запроса", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		logger.WithCtx(r.Context()).Warn("Запрос отклонён", zap.String("path", r.URL.Path), zap.Error(err))
	}
	helpers.Error(w, status, msg)
}

func errorStatus(err error, sendFailedMsg string) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid or expired verification token"
	case errors.Is(err, services.ErrInvalidStatus):
		return http.StatusBadRequest, "Status must be approved or denied"
	case errors.Is(err, services.ErrHoursNotFound):
		return http.StatusNotFound, "Hours record not found"
	case errors.Is(err, services.ErrStudentNotFound):
		return http.StatusNotFound, "Student profile not found"
	case errors.Is(err, services.ErrAdminNotFound):
		return http.StatusNotFound, "Admin profile not found"
	case errors.Is(err, services.ErrRegistrationNotFound):
		return http.StatusNotFound, "Registration not found"
	case errors.Is(err, services.ErrOpportunityNotFound):
		return http.StatusNotFound, "Opportunity not found"
	case errors.Is(err, services.ErrUpdateFailed):
		return http.StatusInternalServerError, "Failed to update hours status"
	case errors.Is(err, services.ErrSendFailed):
		return http.StatusInternalServerError, sendFailedMsg
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// SendVerificationEmail godoc
// @Summary Отправить запрос на подтверждение часов
// @Description Отправляет проверяющему письмо со ссылками approve/deny
// @Tags email
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body verificationEmailRequest true "Часы, проверяющий и студент"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/send-verification-email [post]
func (h *EmailHandler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req verificationEmailRequest
	if msg := decodeAndValidate(w, r, &req); msg != "" {
		helpers.Error(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.notifier.SendVerificationRequest(r.Context(), req.HoursID, req.VerifierEmail, req.StudentID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to send verification email")
		return
	}
	helpers.JSON(w, http.StatusOK, ActionResponse{Success: true, Message: "Verification email sent successfully", Result: res})
}

// VerifyHours godoc
// @Summary Погасить ссылку approve/deny
// @Description Проверяет подписанный токен из письма и меняет статус часов. Повторное погашение ничего не меняет.
// @Tags email
// @Produce json
// @Produce html
// @Param token query string true "Токен из ссылки"
// @Param action query string true "approve или deny"
// @Param hours_id query string true "ID записи часов"
// @Param email query string true "Email проверяющего"
// @Param notes query string false "Комментарий"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 429 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/verify-hours [get]
func (h *EmailHandler) VerifyHours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := verifyQuery{
		Token:   q.Get("token"),
		Action:  q.Get("action"),
		HoursID: q.Get("hours_id"),
		Email:   q.Get("email"),
	}
	wantHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	fail := func(status int, msg string) {
		if wantHTML {
			helpers.HTML(w, status, helpers.BuildVerifyErrorHTML(msg, h.frontendURL))
			return
		}
		helpers.Error(w, status, msg)
	}

	if validate.Struct(params) != nil {
		fail(http.StatusBadRequest, "Missing required parameters")
		return
	}

	res, err := h.notifier.RedeemVerification(r.Context(), params.Token, params.Action, params.HoursID, params.Email, q.Get("notes"))
	if err != nil {
		status, msg := errorStatus(err, "Internal server error")
		if status >= http.StatusInternalServerError {
			logger.WithCtx(r.Context()).Error("Ошибка погашения ссылки", zap.String("hours_id", params.HoursID), zap.Error(err))
		} else {
			logger.WithCtx(r.Context()).Warn("Ссылка отклонена", zap.String("hours_id", params.HoursID), zap.Error(err))
		}
		fail(status, msg)
		return
	}

	msg := "Hours " + res.Status + " successfully"
	if res.AlreadyProcessed {
		msg = "This link has already been used"
	}
	if wantHTML {
		page := helpers.BuildVerifySuccessHTML(res.Status, h.frontendURL)
		if res.AlreadyProcessed {
			page = helpers.BuildVerifyAlreadyUsedHTML(res.Status, h.frontendURL)
		}
		helpers.HTML(w, http.StatusOK, page)
		return
	}
	helpers.JSON(w, http.StatusOK, ActionResponse{Success: true, Message: msg, Result: res})
}

// SendNotification godoc
// @Summary Уведомить студента о решении проверяющего
// @Tags email
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body notificationRequest true "Часы, студент, статус"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/send-notification [post]
func (h *EmailHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if msg := decodeAndValidate(w, r, &req); msg != "" {
		helpers.Error(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.notifier.SendStatusNotification(r.Context(), req.HoursID, req.StudentEmail, req.Status, req.VerifierEmail, req.Notes)
	if err != nil {
		writeServiceError(w, r, err, "Failed to send notification email")
		return
	}
	helpers.JSON(w, http.StatusOK, ActionResponse{Success: true, Message: "Notification email sent successfully", Result: res})
}

// SendHoursNotification godoc
// @Summary Уведомить студента о решении администратора
// @Description Также пишет запись в admin_activity_logs
// @Tags email
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body hoursNotificationRequest true "Часы, студент, статус, администратор"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/send-hours-notification [post]
func (h *EmailHandler) SendHoursNotification(w http.ResponseWriter, r *http.Request) {
	var req hoursNotificationRequest
	if msg := decodeAndValidate(w, r, &req); msg != "" {
		helpers.Error(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.notifier.SendHoursNotification(r.Context(), req.HoursID, req.StudentEmail, req.Status, req.AdminID, req.Notes)
	if err != nil {
		writeServiceError(w, r, err, "Failed to send hours notification email")
		return
	}
	helpers.JSON(w, http.StatusOK, ActionResponse{Success: true, Message: "Hours notification email sent successfully", Result: res})
}

// HoursUpdateNotification godoc
// @Summary Сообщить проверяющему, что администратор изменил статус
// @Tags email
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body hoursUpdateRequest true "Часы, проверяющий, статус"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/hours-update-notification [post]
func (h *EmailHandler) HoursUpdateNotification(w http.ResponseWriter, r *http.Request) {
	var req hoursUpdateRequest
	if msg := decodeAndValidate(w, r, &req); msg != "" {
		helpers.Error(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.notifier.SendHoursUpdateNotification(r.Context(), req.HoursID, req.VerifierEmail, req.Status, req.Notes, req.AdminEmail)
	if err != nil {
		writeServiceError(w, r, err, "Failed to send hours update email")
		return
	}
	helpers.JSON(w, http.StatusOK, ActionResponse{Success: true, Message: "Hours update email sent successfully", Result: res})
}

func (h *EmailHandler) opportunity(
	send func(ctx context.Context, registrationID, studentEmail string) (*services.OpportunityResult, error),
	okMsg, failMsg string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req opportunityRequest
		if msg := decodeAndValidate(w, r, &req); msg != "" {
			helpers.Error(w, http.StatusBadRequest, msg)
			return
		}

		res, err := send(r.Context(), req.RegistrationID, req.StudentEmail)
		if err != nil {
			writeServiceError(w, r, err, failMsg)
			return
		}
		helpers.JSON(w, http.StatusOK, ActionResponse{Success: true, Message: okMsg, Result: res})
	}
}

// SendOpportunityRegistration godoc
// @Summary Подтверждение записи на мероприятие
// @Tags email
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body opportunityRequest true "Запись и email студента"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/send-opportunity-registration [post]
func (h *EmailHandler) SendOpportunityRegistration(w http.ResponseWriter, r *http.Request) {
	h.opportunity(h.notifier.SendOpportunityRegistration,
		"Registration confirmation email sent successfully", "Failed to send registration email")(w, r)
}

// SendOpportunityReminder godoc
// @Summary Напоминание о мероприятии
// @Tags email
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body opportunityRequest true "Запись и email студента"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/send-opportunity-reminder [post]
func (h *EmailHandler) SendOpportunityReminder(w http.ResponseWriter, r *http.Request) {
	h.opportunity(h.notifier.SendOpportunityReminder,
		"Reminder email sent successfully", "Failed to send reminder email")(w, r)
}

// SendOpportunityUnregistration godoc
// @Summary Подтверждение отмены записи
// @Tags email
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param input body opportunityRequest true "Запись и email студента"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} helpers.Response
// @Failure 404 {object} helpers.Response
// @Failure 500 {object} helpers.Response
// @Router /api/email/send-opportunity-unregistration [post]
func (h *EmailHandler) SendOpportunityUnregistration(w http.ResponseWriter, r *http.Request) {
	h.opportunity(h.notifier.SendOpportunityUnregistration,
		"Unregistration confirmation email sent successfully", "Failed to send unregistration email")(w, r)
}
