package models

import "time"

const (
	HoursStatusPending  = "pending"
	HoursStatusApproved = "approved"
	HoursStatusDenied   = "denied"
)

// VolunteerHours - строка таблицы volunteer_hours.
type VolunteerHours struct {
	ID                string     `json:"id"`
	StudentID         string     `json:"student_id"`
	Hours             float64    `json:"hours"`
	Date              string     `json:"date"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	VerifierEmail     string     `json:"verifier_email,omitempty"`
	VerifiedBy        string     `json:"verified_by,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	VerificationDate  *time.Time `json:"verification_date,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// HoursStatusUpdate - тело PATCH при смене статуса.
type HoursStatusUpdate struct {
	Status            string    `json:"status"`
	VerifiedBy        string    `json:"verified_by"`
	VerificationDate  time.Time `json:"verification_date"`
	VerificationNotes string    `json:"verification_notes"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StatusForAction переводит действие из ссылки в статус записи.
func StatusForAction(action string) string {
	if action == "approve" {
		return HoursStatusApproved
	}
	return HoursStatusDenied
}
