package repository

import (
	"context"
	"encoding/json"
	"errors"
	"hoursrelay/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore читает те же таблицы напрямую, минуя REST API.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// invalidTextRepresentation - код ошибки Postgres для строки, которая не является uuid.
const invalidTextRepresentation = "22P02"

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return ErrNotFound
	}
	return err
}

func (r *PostgresStore) GetHours(ctx context.Context, id string) (*models.VolunteerHours, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, student_id::text, hours, COALESCE(date::text, ''), COALESCE(description, ''),
		       COALESCE(status, ''), COALESCE(verifier_email, ''), COALESCE(verified_by, ''),
		       COALESCE(verification_notes, ''), verification_date, created_at, updated_at
		FROM volunteer_hours WHERE id = $1::uuid`, id)

	var h models.VolunteerHours
	err := row.Scan(&h.ID, &h.StudentID, &h.Hours, &h.Date, &h.Description,
		&h.Status, &h.VerifierEmail, &h.VerifiedBy,
		&h.VerificationNotes, &h.VerificationDate, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (r *PostgresStore) UpdateHoursStatus(ctx context.Context, id string, upd models.HoursStatusUpdate) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE volunteer_hours
		SET status = $2, verified_by = $3, verification_date = $4, verification_notes = $5, updated_at = $6
		WHERE id = $1::uuid`,
		id, upd.Status, upd.VerifiedBy, upd.VerificationDate, upd.VerificationNotes, upd.UpdatedAt)
	if err != nil {
		return notFound(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(student_id::text, ''), COALESCE(role, '')
		FROM profiles WHERE id = $1::uuid`, id)

	var p models.Profile
	if err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.StudentNumber, &p.Role); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PostgresStore) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, COALESCE(title, ''), COALESCE(organization, ''), COALESCE(date::text, ''),
		       COALESCE(time::text, ''), COALESCE(duration::text, ''), COALESCE(location, ''), COALESCE(requirements, '')
		FROM opportunities WHERE id = $1::uuid`, id)

	var o models.Opportunity
	if err := row.Scan(&o.ID, &o.Title, &o.Organization, &o.Date, &o.Time, &o.Duration, &o.Location, &o.Requirements); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *PostgresStore) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, opportunity_id::text, student_id::text, COALESCE(status, '')
		FROM opportunity_registrations WHERE id = $1::uuid`, id)

	var reg models.Registration
	if err := row.Scan(&reg.ID, &reg.OpportunityID, &reg.StudentID, &reg.Status); err != nil {
		return nil, notFound(err)
	}
	return &reg, nil
}

func (r *PostgresStore) LogEmailSent(ctx context.Context, entry models.EmailLog) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO email_logs (id, recipient, template, subject, data, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		orNewID(entry.ID), entry.Recipient, entry.Template, entry.Subject, string(data), entry.Status, entry.SentAt)
	return err
}

func (r *PostgresStore) LogAdminActivity(ctx context.Context, entry models.AdminActivity) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO admin_activity_logs (id, admin_id, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)`,
		orNewID(entry.ID), entry.AdminID, entry.Action, string(details), entry.Timestamp)
	return err
}

func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
