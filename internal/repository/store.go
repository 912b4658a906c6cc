package repository

import (
	"context"
	"errors"
	"hoursrelay/internal/models"
	"time"
)

var ErrNotFound = errors.New("запись не найдена")

// RecordStore - внешнее хранилище записей платформы (Supabase).
type RecordStore interface {
	GetHours(ctx context.Context, id string) (*models.VolunteerHours, error)
	UpdateHoursStatus(ctx context.Context, id string, upd models.HoursStatusUpdate) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error)
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)
	LogEmailSent(ctx context.Context, entry models.EmailLog) error
	LogAdminActivity(ctx context.Context, entry models.AdminActivity) error
	Ping(ctx context.Context) error
}

// ConsumedStore хранит отметки о погашенных токенах.
type ConsumedStore interface {
	// Claim ставит отметку, если её ещё нет. false - токен уже погашен.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release снимает отметку (если действие после Claim не удалось).
	Release(ctx context.Context, key string) error
}
