package models

import (
	"time"
)

// Vacancy is the minimal vacancy entity needed by the orchestration core.
type Vacancy struct {
	ID           string         `json:"id"`
	WorkspaceID  string         `json:"workspace_id"`
	ExternalID   string         `json:"external_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Requirements map[string]any `json:"requirements"`
	Active       bool           `json:"active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Response is one candidate response to a vacancy.
type Response struct {
	ID              string     `json:"id"`
	VacancyID       string     `json:"vacancy_id"`
	ExternalID      string     `json:"external_id"`
	CandidateName   string     `json:"candidate_name"`
	ResumeText      string     `json:"resume_text"`
	ContactEmail    *string    `json:"contact_email,omitempty"`
	ContactPhone    *string    `json:"contact_phone,omitempty"`
	Score           *int       `json:"score,omitempty"`
	ScreenSummary   *string    `json:"screen_summary,omitempty"`
	ScreenedAt      *time.Time `json:"screened_at,omitempty"`
	ScreenedVersion int        `json:"screened_version"`
	WelcomedAt      *time.Time `json:"welcomed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Integration stores third-party HR board credentials as opaque ciphertext.
// Plaintext never touches the database.
type Integration struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Provider    string     `json:"provider"`
	Ciphertext  []byte     `json:"-"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
