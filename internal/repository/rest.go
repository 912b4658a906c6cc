package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hoursrelay/internal/models"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// RESTStore ходит в PostgREST API Supabase с сервисным ключом.
type RESTStore struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

func NewRESTStore(baseURL, serviceKey string, client *http.Client) *RESTStore {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RESTStore{baseURL: baseURL, serviceKey: serviceKey, client: client}
}

func (s *RESTStore) tableURL(table string, id string) string {
	u := s.baseURL + "/rest/v1/" + table
	if id != "" {
		u += "?id=eq." + url.QueryEscape(id)
	}
	return u
}

func (s *RESTStore) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", method, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		if out != nil {
			req.Header.Set("Prefer", "return=representation")
		} else {
			req.Header.Set("Prefer", "return=minimal")
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getOne читает первую строку выборки ?id=eq.<id>.
func getOne[T any](ctx context.Context, s *RESTStore, table, id string) (*T, error) {
	var rows []T
	if err := s.do(ctx, http.MethodGet, s.tableURL(table, id), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *RESTStore) GetHours(ctx context.Context, id string) (*models.VolunteerHours, error) {
	return getOne[models.VolunteerHours](ctx, s, "volunteer_hours", id)
}

// UpdateHoursStatus просит PostgREST вернуть затронутые строки: пустой ответ значит, что записи нет.
func (s *RESTStore) UpdateHoursStatus(ctx context.Context, id string, upd models.HoursStatusUpdate) error {
	var rows []struct {
		ID string `json:"id"`
	}
	if err := s.do(ctx, http.MethodPatch, s.tableURL("volunteer_hours", id)+"&select=id", upd, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RESTStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return getOne[models.Profile](ctx, s, "profiles", id)
}

func (s *RESTStore) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	return getOne[models.Opportunity](ctx, s, "opportunities", id)
}

func (s *RESTStore) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	return getOne[models.Registration](ctx, s, "opportunity_registrations", id)
}

func (s *RESTStore) LogEmailSent(ctx context.Context, entry models.EmailLog) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return err
	}
	row := map[string]any{
		"id":        orNewID(entry.ID),
		"recipient": entry.Recipient,
		"template":  entry.Template,
		"subject":   entry.Subject,
		"data":      string(data),
		"status":    entry.Status,
		"sent_at":   entry.SentAt.UTC().Format(time.RFC3339),
	}
	return s.do(ctx, http.MethodPost, s.tableURL("email_logs", ""), row, nil)
}

func (s *RESTStore) LogAdminActivity(ctx context.Context, entry models.AdminActivity) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	row := map[string]any{
		"id":        orNewID(entry.ID),
		"admin_id":  entry.AdminID,
		"action":    entry.Action,
		"details":   string(details),
		"timestamp": entry.Timestamp.UTC().Format(time.RFC3339),
	}
	return s.do(ctx, http.MethodPost, s.tableURL("admin_activity_logs", ""), row, nil)
}

// Ping проверяет доступность API (для /health).
func (s *RESTStore) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, s.baseURL+"/rest/v1/volunteer_hours?select=id&limit=1", nil, nil)
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
