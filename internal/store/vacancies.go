package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"interview-orchestrator/internal/models"
)

// ErrVacancyNotFound and friends signal missing domain rows.
var (
	ErrVacancyNotFound     = errors.New("vacancy not found")
	ErrResponseNotFound    = errors.New("response not found")
	ErrIntegrationNotFound = errors.New("integration not found")
)

// GetVacancy loads one vacancy.
func (s *Store) GetVacancy(ctx context.Context, id string) (models.Vacancy, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workspace_id, external_id, title, description, requirements, active, created_at, updated_at
		FROM vacancies WHERE id = $1
	`, id)
	return scanVacancy(row)
}

// ListActiveVacancies returns every vacancy flagged active.
func (s *Store) ListActiveVacancies(ctx context.Context) ([]models.Vacancy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, workspace_id, external_id, title, description, requirements, active, created_at, updated_at
		FROM vacancies WHERE active ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query vacancies: %w", err)
	}
	defer rows.Close()

	var out []models.Vacancy
	for rows.Next() {
		v, err := scanVacancy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVacancyDetails refreshes title/description/active from the external board.
func (s *Store) UpdateVacancyDetails(ctx context.Context, id, title, description string, active bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE vacancies SET title = $2, description = $3, active = $4, updated_at = NOW() WHERE id = $1
	`, id, title, description, active)
	return err
}

// SetVacancyRequirements stores extracted requirements.
func (s *Store) SetVacancyRequirements(ctx context.Context, id string, requirements map[string]any) error {
	raw, err := json.Marshal(requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE vacancies SET requirements = $2, updated_at = NOW() WHERE id = $1
	`, id, raw)
	return err
}

// GetResponse loads one response.
func (s *Store) GetResponse(ctx context.Context, id string) (models.Response, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, vacancy_id, external_id, candidate_name, resume_text, contact_email, contact_phone,
		       score, screen_summary, screened_at, screened_version, welcomed_at, created_at
		FROM responses WHERE id = $1
	`, id)
	return scanResponse(row)
}

// ListResponses returns responses for a vacancy, optionally only unscreened ones.
func (s *Store) ListResponses(ctx context.Context, vacancyID string, onlyUnscreened bool) ([]models.Response, error) {
	q := `
		SELECT id, vacancy_id, external_id, candidate_name, resume_text, contact_email, contact_phone,
		       score, screen_summary, screened_at, screened_version, welcomed_at, created_at
		FROM responses WHERE vacancy_id = $1`
	if onlyUnscreened {
		q += ` AND screened_at IS NULL`
	}
	q += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, vacancyID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListResponsesNotWelcomed returns responses that have not received the welcome message.
func (s *Store) ListResponsesNotWelcomed(ctx context.Context, vacancyID string) ([]models.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vacancy_id, external_id, candidate_name, resume_text, contact_email, contact_phone,
		       score, screen_summary, screened_at, screened_version, welcomed_at, created_at
		FROM responses WHERE vacancy_id = $1 AND welcomed_at IS NULL
		ORDER BY created_at
	`, vacancyID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListResponsesMissingContacts returns responses without parsed contact info.
func (s *Store) ListResponsesMissingContacts(ctx context.Context, vacancyID string) ([]models.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vacancy_id, external_id, candidate_name, resume_text, contact_email, contact_phone,
		       score, screen_summary, screened_at, screened_version, welcomed_at, created_at
		FROM responses WHERE vacancy_id = $1 AND contact_email IS NULL AND contact_phone IS NULL
		ORDER BY created_at
	`, vacancyID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertResponse inserts a response pulled from the external board, keyed on
// (vacancy_id, external_id). Returns true when a new row was created.
func (s *Store) UpsertResponse(ctx context.Context, vacancyID, externalID, candidateName, resumeText string) (models.Response, bool, error) {
	id := uuid.New().String()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO responses (id, vacancy_id, external_id, candidate_name, resume_text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (vacancy_id, external_id) DO UPDATE
		SET candidate_name = $4, resume_text = $5
		RETURNING id, vacancy_id, external_id, candidate_name, resume_text, contact_email, contact_phone,
		          score, screen_summary, screened_at, screened_version, welcomed_at, created_at,
		          (xmax = 0) AS inserted
	`, id, vacancyID, externalID, candidateName, resumeText)

	var resp models.Response
	var email, phone, summary pgtype.Text
	var score pgtype.Int4
	var screenedAt, welcomedAt pgtype.Timestamptz
	var inserted bool
	if err := row.Scan(&resp.ID, &resp.VacancyID, &resp.ExternalID, &resp.CandidateName, &resp.ResumeText,
		&email, &phone, &score, &summary, &screenedAt, &resp.ScreenedVersion, &welcomedAt, &resp.CreatedAt, &inserted); err != nil {
		return models.Response{}, false, fmt.Errorf("upsert response: %w", err)
	}
	resp.ContactEmail = textPtr(email)
	resp.ContactPhone = textPtr(phone)
	resp.ScreenSummary = textPtr(summary)
	if score.Valid {
		v := int(score.Int32)
		resp.Score = &v
	}
	if screenedAt.Valid {
		t := screenedAt.Time
		resp.ScreenedAt = &t
	}
	if welcomedAt.Valid {
		t := welcomedAt.Time
		resp.WelcomedAt = &t
	}
	return resp, inserted, nil
}

// RecordScreenResult writes a screening score using a version guard: a stale
// concurrent invocation (lower or equal base version) loses to the row already
// advanced past it. Last write with the highest version wins.
func (s *Store) RecordScreenResult(ctx context.Context, responseID string, baseVersion, score int, summary string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE responses
		SET score = $2, screen_summary = $3, screened_at = NOW(), screened_version = $4 + 1
		WHERE id = $1 AND screened_version <= $4
	`, responseID, score, summary, baseVersion)
	if err != nil {
		return false, fmt.Errorf("record screen result: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetResponseContacts stores parsed contact details.
func (s *Store) SetResponseContacts(ctx context.Context, responseID string, email, phone *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE responses SET contact_email = $2, contact_phone = $3 WHERE id = $1
	`, responseID, email, phone)
	return err
}

// MarkWelcomed stamps the response as having received the welcome message.
func (s *Store) MarkWelcomed(ctx context.Context, responseID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE responses SET welcomed_at = NOW() WHERE id = $1
	`, responseID)
	return err
}

// GetIntegration loads one integration credential record.
func (s *Store) GetIntegration(ctx context.Context, id string) (models.Integration, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workspace_id, provider, credentials, verified_at, last_error, created_at
		FROM integrations WHERE id = $1
	`, id)

	var in models.Integration
	var verifiedAt pgtype.Timestamptz
	var lastErr pgtype.Text
	if err := row.Scan(&in.ID, &in.WorkspaceID, &in.Provider, &in.Ciphertext, &verifiedAt, &lastErr, &in.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Integration{}, ErrIntegrationNotFound
		}
		return models.Integration{}, fmt.Errorf("scan integration: %w", err)
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		in.VerifiedAt = &t
	}
	in.LastError = textPtr(lastErr)
	return in, nil
}

// IntegrationForWorkspace returns the first integration configured for a workspace.
func (s *Store) IntegrationForWorkspace(ctx context.Context, workspaceID string) (models.Integration, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM integrations WHERE workspace_id = $1 ORDER BY created_at LIMIT 1
	`, workspaceID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Integration{}, ErrIntegrationNotFound
	}
	if err != nil {
		return models.Integration{}, fmt.Errorf("query integration: %w", err)
	}
	return s.GetIntegration(ctx, id)
}

// MarkIntegrationVerified records a successful (or failed) credential check.
func (s *Store) MarkIntegrationVerified(ctx context.Context, id string, verifyErr *string) error {
	if verifyErr != nil {
		_, err := s.pool.Exec(ctx, `
			UPDATE integrations SET last_error = $2 WHERE id = $1
		`, id, verifyErr)
		return err
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE integrations SET verified_at = NOW(), last_error = NULL WHERE id = $1
	`, id)
	return err
}

// WorkspaceOwnsVacancy checks authorization for realtime token minting.
func (s *Store) WorkspaceOwnsVacancy(ctx context.Context, workspaceID, vacancyID string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM vacancies WHERE id = $1 AND workspace_id = $2
	`, vacancyID, workspaceID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check vacancy ownership: %w", err)
	}
	return n > 0, nil
}

func scanVacancy(row rowScanner) (models.Vacancy, error) {
	var v models.Vacancy
	var reqJSON []byte
	if err := row.Scan(&v.ID, &v.WorkspaceID, &v.ExternalID, &v.Title, &v.Description, &reqJSON, &v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Vacancy{}, ErrVacancyNotFound
		}
		return models.Vacancy{}, fmt.Errorf("scan vacancy: %w", err)
	}
	if err := json.Unmarshal(reqJSON, &v.Requirements); err != nil {
		return models.Vacancy{}, fmt.Errorf("unmarshal requirements: %w", err)
	}
	return v, nil
}

func scanResponse(row rowScanner) (models.Response, error) {
	var r models.Response
	var email, phone, summary pgtype.Text
	var score pgtype.Int4
	var screenedAt, welcomedAt pgtype.Timestamptz

	if err := row.Scan(&r.ID, &r.VacancyID, &r.ExternalID, &r.CandidateName, &r.ResumeText, &email, &phone,
		&score, &summary, &screenedAt, &r.ScreenedVersion, &welcomedAt, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Response{}, ErrResponseNotFound
		}
		return models.Response{}, fmt.Errorf("scan response: %w", err)
	}
	r.ContactEmail = textPtr(email)
	r.ContactPhone = textPtr(phone)
	r.ScreenSummary = textPtr(summary)
	if score.Valid {
		v := int(score.Int32)
		r.Score = &v
	}
	if screenedAt.Valid {
		t := screenedAt.Time
		r.ScreenedAt = &t
	}
	if welcomedAt.Valid {
		t := welcomedAt.Time
		r.WelcomedAt = &t
	}
	return r, nil
}
