package services

import (
	"context"
	"errors"
	"fmt"
	"hoursrelay/internal/actiontoken"
	"hoursrelay/internal/logger"
	"hoursrelay/internal/metrics"
	"hoursrelay/internal/models"
	"hoursrelay/internal/repository"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrHoursNotFound        = errors.New("hours record not found")
	ErrStudentNotFound      = errors.New("student profile not found")
	ErrAdminNotFound        = errors.New("admin profile not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrOpportunityNotFound  = errors.New("opportunity not found")
	ErrInvalidToken         = errors.New("invalid or expired verification token")
	ErrInvalidStatus        = errors.New("status must be approved or denied")
	ErrSendFailed           = errors.New("failed to send email")
	ErrUpdateFailed         = errors.New("failed to update hours status")
)

const dateLayout = "2006-01-02 15:04 UTC"

// Enqueuer - очередь писем "по возможности".
type Enqueuer interface {
	Enqueue(msg Message) bool
}

// NotificationService собирает данные из хранилища, рендерит шаблон и отправляет письмо.
// Все варианты уведомлений различаются только шаблоном и набором полей.
type NotificationService struct {
	store       repository.RecordStore
	consumed    repository.ConsumedStore
	codec       *actiontoken.Codec
	sender      Sender
	queue       Enqueuer
	templates   *TemplateService
	frontendURL string
	now         func() time.Time
}

func NewNotificationService(
	store repository.RecordStore,
	consumed repository.ConsumedStore,
	codec *actiontoken.Codec,
	sender Sender,
	queue Enqueuer,
	templates *TemplateService,
	frontendURL string,
) *NotificationService {
	return &NotificationService{
		store:       store,
		consumed:    consumed,
		codec:       codec,
		sender:      sender,
		queue:       queue,
		templates:   templates,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

func or(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func validStatus(status string) bool {
	return status == models.HoursStatusApproved || status == models.HoursStatusDenied
}

func (s *NotificationService) hoursDashboardURL() string {
	return s.frontendURL + "/student/hours"
}

func (s *NotificationService) opportunitiesURL() string {
	return s.frontendURL + "/student/opportunities"
}

// VerificationLink строит ссылку, по которой проверяющий подтверждает или отклоняет часы.
func VerificationLink(frontendURL, token, action, hoursID, email string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("action", action)
	q.Set("hours_id", hoursID)
	q.Set("email", email)
	return strings.TrimRight(frontendURL, "/") + "/verify-hours?" + q.Encode()
}

func (s *NotificationService) loadHours(ctx context.Context, hoursID string) (*models.VolunteerHours, error) {
	h, err := s.store.GetHours(ctx, hoursID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrHoursNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hours %s: %w", hoursID, err)
	}
	return h, nil
}

func (s *NotificationService) loadProfile(ctx context.Context, id string, notFound error) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return p, nil
}

// send рендерит и отправляет письмо синхронно, затем пишет email_logs.
// Ошибка журнала не считается ошибкой отправки.
func (s *NotificationService) send(ctx context.Context, to, subject, tmpl, logTemplate string, data map[string]any) error {
	html, err := s.templates.Render(tmpl, data)
	if err != nil {
		return err
	}
	msg := Message{To: to, Subject: subject, HTML: html, Template: tmpl}
	if text, ok := data["text_body"].(string); ok {
		msg.Text = text
	}

	err = s.sender.Send(ctx, msg)
	metrics.IncEmail(tmpl, err == nil)
	if err != nil {
		logger.WithCtx(ctx).Error("Не удалось отправить письмо",
			zap.String("template", tmpl), zap.String("to", to), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	logger.WithCtx(ctx).Info("Письмо отправлено", zap.String("template", tmpl), zap.String("to", to))

	s.logEmail(ctx, to, logTemplate, subject, "sent", data)
	return nil
}

// enqueue рендерит письмо и ставит его в очередь; ошибки только логируются.
func (s *NotificationService) enqueue(ctx context.Context, to, subject, tmpl string, data map[string]any) {
	html, err := s.templates.Render(tmpl, data)
	if err != nil {
		logger.WithCtx(ctx).Error("Не удалось отрендерить письмо", zap.String("template", tmpl), zap.Error(err))
		return
	}
	if s.queue.Enqueue(Message{To: to, Subject: subject, HTML: html, Template: tmpl}) {
		s.logEmail(ctx, to, tmpl, subject, "queued", data)
	}
}

func (s *NotificationService) logEmail(ctx context.Context, to, tmpl, subject, status string, data map[string]any) {
	logged := make(map[string]any, len(data))
	for k, v := range data {
		// ссылки с токенами в журнал не пишем
		if k == "approve_url" || k == "deny_url" || k == "text_body" {
			continue
		}
		logged[k] = v
	}
	err := s.store.LogEmailSent(context.WithoutCancel(ctx), models.EmailLog{
		Recipient: to,
		Template:  tmpl,
		Subject:   subject,
		Data:      logged,
		Status:    status,
		SentAt:    s.now().UTC(),
	})
	if err != nil {
		logger.WithCtx(ctx).Warn("Не удалось записать email_logs", zap.String("template", tmpl), zap.Error(err))
	}
}

// ==== ПОДТВЕРЖДЕНИЕ ЧАСОВ ====

type VerificationRequestResult struct {
	HoursID       string `json:"hours_id"`
	VerifierEmail string `json:"verifier_email"`
}

// SendVerificationRequest отправляет проверяющему письмо с двумя подписанными ссылками.
func (s *NotificationService) SendVerificationRequest(ctx context.Context, hoursID, verifierEmail, studentID string) (*VerificationRequestResult, error) {
	hours, err := s.loadHours(ctx, hoursID)
	if err != nil {
		return nil, err
	}
	student, err := s.loadProfile(ctx, studentID, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}

	approveURL := VerificationLink(s.frontendURL, s.codec.Generate(hoursID, actiontoken.ActionApprove, verifierEmail), actiontoken.ActionApprove, hoursID, verifierEmail)
	denyURL := VerificationLink(s.frontendURL, s.codec.Generate(hoursID, actiontoken.ActionDeny, verifierEmail), actiontoken.ActionDeny, hoursID, verifierEmail)

	submitted := "Unknown"
	if hours.CreatedAt != nil {
		submitted = hours.CreatedAt.UTC().Format(dateLayout)
	}

	studentName := or(student.FullName, "Unknown")
	data := map[string]any{
		"student_name":    studentName,
		"student_email":   or(student.Email, "Unknown"),
		"student_id":      or(student.StudentNumber, "Unknown"),
		"activity":        or(hours.Description, "Volunteer Activity"),
		"hours":           formatHours(hours.Hours),
		"date":            or(hours.Date, "Unknown"),
		"description":     or(hours.Description, "No description provided"),
		"submitted_date":  submitted,
		"approve_url":     approveURL,
		"deny_url":        denyURL,
		"expires_in_days": int(actiontoken.Validity / (24 * time.Hour)),
	}
	data["text_body"] = fmt.Sprintf(
		"%s submitted %s volunteer hours for %q on %s.\n\nApprove: %s\n\nDeny: %s\n",
		studentName, data["hours"], data["activity"], data["date"], approveURL, denyURL)

	subject := "Volunteer Hours Verification Request - " + studentName
	if err := s.send(ctx, verifierEmail, subject, "verification_request", "verification_request", data); err != nil {
		return nil, err
	}

	return &VerificationRequestResult{HoursID: hoursID, VerifierEmail: verifierEmail}, nil
}

type RedeemResult struct {
	HoursID          string `json:"hours_id"`
	Status           string `json:"status"`
	VerifierEmail    string `json:"verifier_email"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// RedeemVerification погашает ссылку approve/deny. Пока токен не проверен,
// никаких изменений во внешнем хранилище не делается.
func (s *NotificationService) RedeemVerification(ctx context.Context, token, action, hoursID, verifierEmail, notes string) (*RedeemResult, error) {
	if !actiontoken.ValidAction(action) || !s.codec.Verify(token, hoursID, action, verifierEmail) {
		metrics.IncRedemption(action, "rejected")
		return nil, ErrInvalidToken
	}

	status := models.StatusForAction(action)
	key := actiontoken.Signature(token)
	// +1 минута: отметка должна пережить сам токен
	claimed, err := s.consumed.Claim(ctx, key, s.codec.Remaining(token)+time.Minute)
	if err != nil {
		metrics.IncRedemption(action, "error")
		return nil, fmt.Errorf("claim token: %w", err)
	}
	if !claimed {
		metrics.IncRedemption(action, "replayed")
		logger.WithCtx(ctx).Info("Повторное погашение ссылки, ничего не делаем",
			zap.String("hours_id", hoursID), zap.String("action", action))
		return &RedeemResult{HoursID: hoursID, Status: status, VerifierEmail: verifierEmail, AlreadyProcessed: true}, nil
	}

	res, err := s.applyDecision(ctx, hoursID, status, verifierEmail, notes)
	if err != nil {
		if relErr := s.consumed.Release(context.WithoutCancel(ctx), key); relErr != nil {
			logger.WithCtx(ctx).Error("Не удалось снять отметку о погашении", zap.Error(relErr))
		}
		metrics.IncRedemption(action, "error")
		return nil, err
	}
	metrics.IncRedemption(action, "authorized")
	return res, nil
}

func (s *NotificationService) applyDecision(ctx context.Context, hoursID, status, verifierEmail, notes string) (*RedeemResult, error) {
	hours, err := s.loadHours(ctx, hoursID)
	if err != nil {
		return nil, err
	}
	student, err := s.loadProfile(ctx, hours.StudentID, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = s.store.UpdateHoursStatus(ctx, hoursID, models.HoursStatusUpdate{
		Status:            status,
		VerifiedBy:        verifierEmail,
		VerificationDate:  now,
		VerificationNotes: notes,
		UpdatedAt:         now,
	})
	if err != nil {
		logger.WithCtx(ctx).Error("Не удалось обновить статус часов", zap.String("hours_id", hoursID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	logger.WithCtx(ctx).Info("Статус часов обновлён по ссылке",
		zap.String("hours_id", hoursID), zap.String("status", status))

	studentName := or(student.FullName, "Unknown")
	data := map[string]any{
		"student_name":   studentName,
		"activity":       or(hours.Description, "Volunteer Activity"),
		"hours":          formatHours(hours.Hours),
		"date":           or(hours.Date, "Unknown"),
		"verifier_email": verifierEmail,
		"approval_date":  now.Format(dateLayout),
		"denial_date":    now.Format(dateLayout),
		"notes":          notes,
		"status":         status,
		"dashboard_url":  s.hoursDashboardURL(),
	}

	// подтверждение проверяющему и уведомление студенту - через очередь
	if status == models.HoursStatusApproved {
		s.enqueue(ctx, verifierEmail, "Hours Approved - "+studentName, "approval", data)
	} else {
		s.enqueue(ctx, verifierEmail, "Hours Denied - "+studentName, "denial", data)
	}
	if student.Email != "" {
		s.enqueue(ctx, student.Email, "Your Volunteer Hours Were "+titleCase(status), "student_notification", data)
	}

	return &RedeemResult{HoursID: hoursID, Status: status, VerifierEmail: verifierEmail}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ==== УВЕДОМЛЕНИЯ О СТАТУСЕ ====

type StatusNotificationResult struct {
	StudentEmail string `json:"student_email"`
	Status       string `json:"status"`
}

func (s *NotificationService) statusData(hours *models.VolunteerHours, student *models.Profile, notes string) map[string]any {
	return map[string]any{
		"student_name":      or(student.FullName, "Unknown"),
		"activity":          or(hours.Description, "Volunteer Activity"),
		"hours":             formatHours(hours.Hours),
		"date":              or(hours.Date, "Unknown"),
		"description":       or(hours.Description, "No description provided"),
		"verification_date": s.now().UTC().Format(dateLayout),
		"notes":             notes,
		"total_hours":       formatHours(hours.Hours),
		"dashboard_url":     s.hoursDashboardURL(),
	}
}

func statusTemplate(status, studentName string) (tmpl, subject string) {
	if status == models.HoursStatusApproved {
		return "hours_approved", "Your Volunteer Hours Have Been Approved! - " + studentName
	}
	return "hours_denied", "Volunteer Hours Update - " + studentName
}

// SendStatusNotification сообщает студенту о решении проверяющего.
func (s *NotificationService) SendStatusNotification(ctx context.Context, hoursID, studentEmail, status, verifierEmail, notes string) (*StatusNotificationResult, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	hours, err := s.loadHours(ctx, hoursID)
	if err != nil {
		return nil, err
	}
	student, err := s.loadProfile(ctx, hours.StudentID, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}

	data := s.statusData(hours, student, notes)
	data["verifier_email"] = or(verifierEmail, "Unknown")

	tmpl, subject := statusTemplate(status, data["student_name"].(string))
	if err := s.send(ctx, studentEmail, subject, tmpl, "student_"+status+"_notification", data); err != nil {
		return nil, err
	}
	return &StatusNotificationResult{StudentEmail: studentEmail, Status: status}, nil
}

// SendHoursNotification - решение администратора: письмо студенту и запись в admin_activity_logs.
func (s *NotificationService) SendHoursNotification(ctx context.Context, hoursID, studentEmail, status, adminID, notes string) (*StatusNotificationResult, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	hours, err := s.loadHours(ctx, hoursID)
	if err != nil {
		return nil, err
	}
	student, err := s.loadProfile(ctx, hours.StudentID, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}
	admin, err := s.loadProfile(ctx, adminID, ErrAdminNotFound)
	if err != nil {
		return nil, err
	}

	data := s.statusData(hours, student, notes)
	data["admin_name"] = or(admin.FullName, "Admin")

	tmpl, subject := statusTemplate(status, data["student_name"].(string))
	if err := s.send(ctx, studentEmail, subject, tmpl, "hours_"+status, data); err != nil {
		return nil, err
	}

	err = s.store.LogAdminActivity(context.WithoutCancel(ctx), models.AdminActivity{
		AdminID: adminID,
		Action:  "hours_" + status,
		Details: map[string]any{
			"hours_id":      hoursID,
			"student_id":    hours.StudentID,
			"student_email": studentEmail,
			"notes":         notes,
		},
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		logger.WithCtx(ctx).Warn("Не удалось записать admin_activity_logs", zap.String("admin_id", adminID), zap.Error(err))
	}

	return &StatusNotificationResult{StudentEmail: studentEmail, Status: status}, nil
}

type HoursUpdateResult struct {
	HoursID       string `json:"hours_id"`
	VerifierEmail string `json:"verifier_email"`
	Status        string `json:"status"`
}

// SendHoursUpdateNotification - администратор изменил статус: письмо проверяющему,
// студенту - через очередь.
func (s *NotificationService) SendHoursUpdateNotification(ctx context.Context, hoursID, verifierEmail, status, notes, adminEmail string) (*HoursUpdateResult, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	hours, err := s.loadHours(ctx, hoursID)
	if err != nil {
		return nil, err
	}
	student, err := s.loadProfile(ctx, hours.StudentID, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Format(dateLayout)
	studentName := or(student.FullName, "Student")
	data := map[string]any{
		"student_name":   or(student.FullName, "Unknown"),
		"student_email":  or(student.Email, "Unknown"),
		"student_id":     or(student.StudentNumber, "Unknown"),
		"activity":       or(hours.Description, "Volunteer Activity"),
		"hours":          formatHours(hours.Hours),
		"date":           or(hours.Date, "Unknown"),
		"description":    or(hours.Description, "No description provided"),
		"status":         status,
		"notes":          notes,
		"admin_email":    or(adminEmail, "Admin"),
		"verifier_email": verifierEmail,
		"dashboard_url":  s.hoursDashboardURL(),
	}

	tmpl, subject := "denial", "Volunteer Hours Denied - "+studentName
	if status == models.HoursStatusApproved {
		tmpl, subject = "approval", "Volunteer Hours Approved - "+studentName
		data["approval_date"] = now
	} else {
		data["denial_date"] = now
	}

	if err := s.send(ctx, verifierEmail, subject, tmpl, tmpl, data); err != nil {
		return nil, err
	}
	if student.Email != "" {
		s.enqueue(ctx, student.Email, "Your Volunteer Hours Were "+titleCase(status), "student_notification", data)
	}

	return &HoursUpdateResult{HoursID: hoursID, VerifierEmail: verifierEmail, Status: status}, nil
}

// ==== МЕРОПРИЯТИЯ ====

type OpportunityResult struct {
	StudentEmail     string `json:"student_email"`
	OpportunityTitle string `json:"opportunity_title"`
	DaysUntil        *int   `json:"days_until,omitempty"`
}

func (s *NotificationService) loadRegistration(ctx context.Context, registrationID string) (*models.Opportunity, *models.Profile, error) {
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get registration %s: %w", registrationID, err)
	}

	opp, err := s.store.GetOpportunity(ctx, reg.OpportunityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrOpportunityNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get opportunity %s: %w", reg.OpportunityID, err)
	}

	student, err := s.loadProfile(ctx, reg.StudentID, ErrStudentNotFound)
	if err != nil {
		return nil, nil, err
	}
	return opp, student, nil
}

func opportunityData(opp *models.Opportunity, student *models.Profile) map[string]any {
	return map[string]any{
		"student_name":             or(student.FullName, "Unknown"),
		"opportunity_title":        or(opp.Title, "Volunteer Opportunity"),
		"organization":             or(opp.Organization, "Community Organization"),
		"opportunity_date":         or(opp.Date, "TBD"),
		"opportunity_time":         or(opp.Time, "TBD"),
		"opportunity_location":     or(opp.Location, "TBD"),
		"opportunity_requirements": or(opp.Requirements, "None"),
	}
}

// SendOpportunityRegistration подтверждает запись на мероприятие.
func (s *NotificationService) SendOpportunityRegistration(ctx context.Context, registrationID, studentEmail string) (*OpportunityResult, error) {
	opp, student, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	data := opportunityData(opp, student)
	data["registration_status"] = "Confirmed"
	data["dashboard_url"] = s.opportunitiesURL()

	title := data["opportunity_title"].(string)
	if err := s.send(ctx, studentEmail, "Registration Confirmed - "+title, "opportunity_registration", "opportunity_registration", data); err != nil {
		return nil, err
	}
	return &OpportunityResult{StudentEmail: studentEmail, OpportunityTitle: title}, nil
}

// DaysUntil - сколько календарных дней (UTC) осталось до даты YYYY-MM-DD.
func DaysUntil(date string, now time.Time) (int, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, err
	}
	n := now.UTC()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(today).Hours() / 24), nil
}

// SendOpportunityReminder напоминает о предстоящем мероприятии.
func (s *NotificationService) SendOpportunityReminder(ctx context.Context, registrationID, studentEmail string) (*OpportunityResult, error) {
	opp, student, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	days, err := DaysUntil(opp.Date, s.now())
	if err != nil {
		return nil, fmt.Errorf("opportunity %s has bad date %q: %w", opp.ID, opp.Date, err)
	}

	data := opportunityData(opp, student)
	data["days_until"] = days
	data["view_details_url"] = s.opportunitiesURL()
	data["unregister_url"] = s.opportunitiesURL() + "/unregister/" + url.PathEscape(registrationID)

	title := data["opportunity_title"].(string)
	subject := fmt.Sprintf("Reminder: %s in %d days", title, days)
	if err := s.send(ctx, studentEmail, subject, "opportunity_reminder", "opportunity_reminder", data); err != nil {
		return nil, err
	}
	return &OpportunityResult{StudentEmail: studentEmail, OpportunityTitle: title, DaysUntil: &days}, nil
}

// SendOpportunityUnregistration подтверждает отмену записи.
func (s *NotificationService) SendOpportunityUnregistration(ctx context.Context, registrationID, studentEmail string) (*OpportunityResult, error) {
	opp, student, err := s.loadRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	data := opportunityData(opp, student)
	data["dashboard_url"] = s.opportunitiesURL()

	title := data["opportunity_title"].(string)
	if err := s.send(ctx, studentEmail, "Unregistration Confirmed - "+title, "opportunity_unregistration", "opportunity_unregistration", data); err != nil {
		return nil, err
	}
	return &OpportunityResult{StudentEmail: studentEmail, OpportunityTitle: title}, nil
}

// Ping проверяет хранилище записей (для /health).
func (s *NotificationService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
