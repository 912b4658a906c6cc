package models

// Profile - строка таблицы profiles (и студенты, и администраторы).
type Profile struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	StudentNumber string `json:"student_id"`
	Role          string `json:"role"`
}
