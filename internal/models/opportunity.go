package models

// Opportunity - волонтёрское мероприятие.
type Opportunity struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Date         string `json:"date"` // YYYY-MM-DD
	Time         string `json:"time"`
	Duration     string `json:"duration"`
	Location     string `json:"location"`
	Requirements string `json:"requirements"`
}

// Registration - запись студента на мероприятие.
type Registration struct {
	ID            string `json:"id"`
	OpportunityID string `json:"opportunity_id"`
	StudentID     string `json:"student_id"`
	Status        string `json:"status"`
}
