package services

import (
	"context"
	"errors"
	"hoursrelay/internal/actiontoken"
	"hoursrelay/internal/models"
	"hoursrelay/internal/repository"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu            sync.Mutex
	hours         map[string]*models.VolunteerHours
	profiles      map[string]*models.Profile
	opportunities map[string]*models.Opportunity
	registrations map[string]*models.Registration
	updates       []models.HoursStatusUpdate
	emailLogs     []models.EmailLog
	adminLogs     []models.AdminActivity
	updateErr     error
}

func newFakeStore() *fakeStore {
	created := testNow.Add(-48 * time.Hour)
	return &fakeStore{
		hours: map[string]*models.VolunteerHours{
			"hrs-1": {ID: "hrs-1", StudentID: "stu-1", Hours: 2.5, Date: "2024-03-01", Description: "Food bank", Status: "pending", CreatedAt: &created},
		},
		profiles: map[string]*models.Profile{
			"stu-1": {ID: "stu-1", FullName: "Ana Lee", Email: "ana@school.org", StudentNumber: "S-42", Role: "student"},
			"adm-1": {ID: "adm-1", FullName: "Mr Admin", Email: "admin@school.org", Role: "admin"},
		},
		opportunities: map[string]*models.Opportunity{
			"opp-1": {ID: "opp-1", Title: "Beach Cleanup", Organization: "", Date: "2024-03-13", Location: "Pier 3"},
		},
		registrations: map[string]*models.Registration{
			"reg-1": {ID: "reg-1", OpportunityID: "opp-1", StudentID: "stu-1", Status: "registered"},
		},
	}
}

func (s *fakeStore) GetHours(_ context.Context, id string) (*models.VolunteerHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hours[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *fakeStore) UpdateHoursStatus(_ context.Context, id string, upd models.HoursStatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, upd)
	s.hours[id].Status = upd.Status
	return nil
}

func (s *fakeStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GetOpportunity(_ context.Context, id string) (*models.Opportunity, error) {
	o, ok := s.opportunities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (s *fakeStore) GetRegistration(_ context.Context, id string) (*models.Registration, error) {
	r, ok := s.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) LogEmailSent(_ context.Context, e models.EmailLog) error {
	s.mu.Lock()
	s.emailLogs = append(s.emailLogs, e)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) LogAdminActivity(_ context.Context, e models.AdminActivity) error {
	s.mu.Lock()
	s.adminLogs = append(s.adminLogs, e)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }

type fakeSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeQueue struct {
	queued []Message
}

func (q *fakeQueue) Enqueue(msg Message) bool {
	q.queued = append(q.queued, msg)
	return true
}

type failingConsumed struct{}

func (failingConsumed) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}
func (failingConsumed) Release(context.Context, string) error { return nil }

type fixture struct {
	svc    *NotificationService
	store  *fakeStore
	sender *fakeSender
	queue  *fakeQueue
	codec  *actiontoken.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := actiontoken.NewCodec(strings.Repeat("k", 40))
	require.NoError(t, err)
	codec = codec.WithClock(func() time.Time { return testNow })

	tmpl, err := NewTemplateService("")
	require.NoError(t, err)

	f := &fixture{store: newFakeStore(), sender: &fakeSender{}, queue: &fakeQueue{}, codec: codec}
	f.svc = NewNotificationService(f.store, repository.NewMemoryConsumedStore(), codec, f.sender, f.queue, tmpl, "https://app.example.org/")
	f.svc.now = func() time.Time { return testNow }
	return f
}

func linkParams(t *testing.T, html, action string) url.Values {
	t.Helper()
	i := strings.Index(html, "https://app.example.org/verify-hours?")
	require.GreaterOrEqual(t, i, 0)
	for i >= 0 {
		rest := html[i:]
		end := strings.IndexByte(rest, '"')
		raw := strings.ReplaceAll(rest[:end], "&amp;", "&")
		u, err := url.Parse(raw)
		require.NoError(t, err)
		if u.Query().Get("action") == action {
			return u.Query()
		}
		next := strings.Index(html[i+1:], "https://app.example.org/verify-hours?")
		if next < 0 {
			break
		}
		i += 1 + next
	}
	t.Fatalf("no %s link in email", action)
	return nil
}

func TestSendVerificationRequest(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SendVerificationRequest(context.Background(), "hrs-1", "verifier@org.com", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "hrs-1", res.HoursID)

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "verifier@org.com", msg.To)
	assert.Equal(t, "Volunteer Hours Verification Request - Ana Lee", msg.Subject)
	assert.Contains(t, msg.Text, "Approve: https://app.example.org/verify-hours?")

	for _, action := range []string{"approve", "deny"} {
		q := linkParams(t, msg.HTML, action)
		assert.Equal(t, "hrs-1", q.Get("hours_id"))
		assert.Equal(t, "verifier@org.com", q.Get("email"))
		assert.True(t, f.codec.Verify(q.Get("token"), "hrs-1", action, "verifier@org.com"))
	}

	require.Len(t, f.store.emailLogs, 1)
	assert.Equal(t, "verification_request", f.store.emailLogs[0].Template)
	assert.NotContains(t, f.store.emailLogs[0].Data, "approve_url")
}

func TestSendVerificationRequest_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendVerificationRequest(context.Background(), "missing", "v@org.com", "stu-1")
	assert.ErrorIs(t, err, ErrHoursNotFound)

	_, err = f.svc.SendVerificationRequest(context.Background(), "hrs-1", "v@org.com", "nobody")
	assert.ErrorIs(t, err, ErrStudentNotFound)
	assert.Empty(t, f.sender.sent)
}

func TestSendVerificationRequest_SendFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("smtp refused")

	_, err := f.svc.SendVerificationRequest(context.Background(), "hrs-1", "v@org.com", "stu-1")
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Empty(t, f.store.emailLogs)
}

func TestRedeemVerification_Approve(t *testing.T) {
	f := newFixture(t)
	token := f.codec.Generate("hrs-1", "approve", "verifier@org.com")

	res, err := f.svc.RedeemVerification(context.Background(), token, "approve", "hrs-1", "verifier@org.com", "great work")
	require.NoError(t, err)
	assert.Equal(t, "approved", res.Status)
	assert.False(t, res.AlreadyProcessed)

	require.Len(t, f.store.updates, 1)
	upd := f.store.updates[0]
	assert.Equal(t, "approved", upd.Status)
	assert.Equal(t, "verifier@org.com", upd.VerifiedBy)
	assert.Equal(t, "great work", upd.VerificationNotes)
	assert.Equal(t, testNow, upd.VerificationDate)

	require.Len(t, f.queue.queued, 2)
	assert.Equal(t, "approval", f.queue.queued[0].Template)
	assert.Equal(t, "verifier@org.com", f.queue.queued[0].To)
	assert.Equal(t, "student_notification", f.queue.queued[1].Template)
	assert.Equal(t, "ana@school.org", f.queue.queued[1].To)
	assert.Equal(t, "Your Volunteer Hours Were Approved", f.queue.queued[1].Subject)
}

func TestRedeemVerification_Deny(t *testing.T) {
	f := newFixture(t)
	token := f.codec.Generate("hrs-1", "deny", "verifier@org.com")

	res, err := f.svc.RedeemVerification(context.Background(), token, "deny", "hrs-1", "verifier@org.com", "")
	require.NoError(t, err)
	assert.Equal(t, "denied", res.Status)
	assert.Equal(t, "denial", f.queue.queued[0].Template)
}

func TestRedeemVerification_ReplayIsInert(t *testing.T) {
	f := newFixture(t)
	token := f.codec.Generate("hrs-1", "approve", "verifier@org.com")

	_, err := f.svc.RedeemVerification(context.Background(), token, "approve", "hrs-1", "verifier@org.com", "")
	require.NoError(t, err)

	res, err := f.svc.RedeemVerification(context.Background(), token, "approve", "hrs-1", "verifier@org.com", "")
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Len(t, f.store.updates, 1)
	assert.Len(t, f.queue.queued, 2)
}

func TestRedeemVerification_InvalidTokenNoMutation(t *testing.T) {
	f := newFixture(t)
	approve := f.codec.Generate("hrs-1", "approve", "verifier@org.com")

	cases := []struct {
		name, token, action, hoursID, email string
	}{
		{"wrong action", approve, "deny", "hrs-1", "verifier@org.com"},
		{"wrong record", approve, "approve", "hrs-2", "verifier@org.com"},
		{"wrong email", approve, "approve", "hrs-1", "attacker@org.com"},
		{"unknown action", approve, "escalate", "hrs-1", "verifier@org.com"},
		{"garbage", "not-a-token", "approve", "hrs-1", "verifier@org.com"},
		{"empty", "", "approve", "hrs-1", "verifier@org.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RedeemVerification(context.Background(), tc.token, tc.action, tc.hoursID, tc.email, "")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
	assert.Empty(t, f.store.updates)
	assert.Empty(t, f.queue.queued)
}

func TestRedeemVerification_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	old := f.codec.WithClock(func() time.Time { return testNow.Add(-actiontoken.Validity - time.Second) })
	token := old.Generate("hrs-1", "approve", "verifier@org.com")

	_, err := f.svc.RedeemVerification(context.Background(), token, "approve", "hrs-1", "verifier@org.com", "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, f.store.updates)
}

func TestRedeemVerification_ClaimStoreDownFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.svc.consumed = failingConsumed{}
	token := f.codec.Generate("hrs-1", "approve", "verifier@org.com")

	_, err := f.svc.RedeemVerification(context.Background(), token, "approve", "hrs-1", "verifier@org.com", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, f.store.updates)
}

func TestRedeemVerification_UpdateFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	f.store.updateErr = errors.New("db timeout")
	token := f.codec.Generate("hrs-1", "approve", "verifier@org.com")

	_, err := f.svc.RedeemVerification(context.Background(), token, "approve", "hrs-1", "verifier@org.com", "")
	assert.ErrorIs(t, err, ErrUpdateFailed)

	// после сбоя ссылку можно погасить ещё раз
	f.store.updateErr = nil
	res, err := f.svc.RedeemVerification(context.Background(), token, "approve", "hrs-1", "verifier@org.com", "")
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Len(t, f.store.updates, 1)
}

func TestRedeemVerification_HoursMissingReleasesClaim(t *testing.T) {
	f := newFixture(t)
	token := f.codec.Generate("hrs-9", "deny", "verifier@org.com")

	_, err := f.svc.RedeemVerification(context.Background(), token, "deny", "hrs-9", "verifier@org.com", "")
	assert.ErrorIs(t, err, ErrHoursNotFound)

	_, err = f.svc.RedeemVerification(context.Background(), token, "deny", "hrs-9", "verifier@org.com", "")
	assert.ErrorIs(t, err, ErrHoursNotFound)
}

func TestSendStatusNotification(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SendStatusNotification(context.Background(), "hrs-1", "ana@school.org", "approved", "verifier@org.com", "")
	require.NoError(t, err)
	assert.Equal(t, "approved", res.Status)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "hours_approved", f.sender.sent[0].Template)
	assert.Equal(t, "Your Volunteer Hours Have Been Approved! - Ana Lee", f.sender.sent[0].Subject)
	assert.Equal(t, "student_approved_notification", f.store.emailLogs[0].Template)

	_, err = f.svc.SendStatusNotification(context.Background(), "hrs-1", "ana@school.org", "denied", "", "missing signature")
	require.NoError(t, err)
	assert.Equal(t, "hours_denied", f.sender.sent[1].Template)
	assert.Equal(t, "Volunteer Hours Update - Ana Lee", f.sender.sent[1].Subject)
	assert.Contains(t, f.sender.sent[1].HTML, "missing signature")
}

func TestSendStatusNotification_BadStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendStatusNotification(context.Background(), "hrs-1", "ana@school.org", "pending", "", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Empty(t, f.sender.sent)
}

func TestSendHoursNotification_LogsAdminActivity(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendHoursNotification(context.Background(), "hrs-1", "ana@school.org", "denied", "adm-1", "duplicate entry")
	require.NoError(t, err)

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].HTML, "Mr Admin")

	require.Len(t, f.store.adminLogs, 1)
	entry := f.store.adminLogs[0]
	assert.Equal(t, "adm-1", entry.AdminID)
	assert.Equal(t, "hours_denied", entry.Action)
	assert.Equal(t, "hrs-1", entry.Details["hours_id"])

	_, err = f.svc.SendHoursNotification(context.Background(), "hrs-1", "ana@school.org", "denied", "adm-404", "")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestSendHoursUpdateNotification(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SendHoursUpdateNotification(context.Background(), "hrs-1", "verifier@org.com", "approved", "", "admin@school.org")
	require.NoError(t, err)
	assert.Equal(t, "verifier@org.com", res.VerifierEmail)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "approval", f.sender.sent[0].Template)
	assert.Equal(t, "Volunteer Hours Approved - Ana Lee", f.sender.sent[0].Subject)
	require.Len(t, f.queue.queued, 1)
	assert.Equal(t, "ana@school.org", f.queue.queued[0].To)
}

func TestOpportunityNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendOpportunityRegistration(ctx, "reg-1", "ana@school.org")
	require.NoError(t, err)
	assert.Equal(t, "Beach Cleanup", res.OpportunityTitle)
	assert.Equal(t, "Registration Confirmed - Beach Cleanup", f.sender.sent[0].Subject)
	assert.Contains(t, f.sender.sent[0].HTML, "Community Organization")

	res, err = f.svc.SendOpportunityReminder(ctx, "reg-1", "ana@school.org")
	require.NoError(t, err)
	require.NotNil(t, res.DaysUntil)
	assert.Equal(t, 3, *res.DaysUntil)
	assert.Equal(t, "Reminder: Beach Cleanup in 3 days", f.sender.sent[1].Subject)

	_, err = f.svc.SendOpportunityUnregistration(ctx, "reg-1", "ana@school.org")
	require.NoError(t, err)
	assert.Equal(t, "Unregistration Confirmed - Beach Cleanup", f.sender.sent[2].Subject)

	_, err = f.svc.SendOpportunityRegistration(ctx, "reg-404", "ana@school.org")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestDaysUntil(t *testing.T) {
	late := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)

	d, err := DaysUntil("2024-03-11", late)
	require.NoError(t, err)
	assert.Equal(t, 1, d)

	d, err = DaysUntil("2024-03-10", late)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	_, err = DaysUntil("next week", late)
	assert.Error(t, err)
}
