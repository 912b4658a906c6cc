package models

import "time"

// EmailLog - строка email_logs.
type EmailLog struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Subject   string         `json:"subject"`
	Data      map[string]any `json:"data"`
	Status    string         `json:"status"`
	SentAt    time.Time      `json:"sent_at"`
}

// AdminActivity - строка admin_activity_logs.
type AdminActivity struct {
	ID        string         `json:"id"`
	AdminID   string         `json:"admin_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}
