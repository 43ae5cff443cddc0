package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/models"
)

const (
	applicationColumns = `a.id,
			a.job_id,
			a.candidate_id,
			a.status,
			a.breakdown,
			a.score,
			a.decision,
			a.review_notes,
			a.qualified,
			a.created_at,
			a.updated_at`

	insertApplicationSQL = `INSERT INTO application (
			id,
			job_id,
			candidate_id,
			status,
			score,
			decision,
			review_notes,
			created_at,
			updated_at
		)
		VALUES (?, ?, ?, ?, 0, '', '', ?, ?)
	`

	selectApplicationSQL = `SELECT ` + applicationColumns + `
		FROM application a
		WHERE a.id = ?
	`

	listApplicantsSQL = `SELECT ` + applicationColumns + `,
			` + candidateJoinColumns + `
		FROM application a
		JOIN candidate c ON c.id = a.candidate_id
		WHERE a.job_id = ?
		ORDER BY a.created_at, a.id
	`

	candidateJoinColumns = `c.id,
			c.name,
			c.email,
			c.phone,
			c.resume_text,
			c.skills,
			c.years_experience,
			c.education,
			c.positions,
			c.demographics,
			c.created_at,
			c.updated_at`

	saveScreeningSQL = `UPDATE application SET
			status = ?,
			breakdown = ?,
			score = ?,
			decision = ?,
			review_notes = ?,
			updated_at = ?
		WHERE id = ?
	`

	setQualifiedSQL = `UPDATE application SET qualified = ?, updated_at = ? WHERE id = ?`

	deleteApplicationSQL = `DELETE FROM application WHERE id = ?`

	jobExistsSQL       = `SELECT COUNT(*) FROM job WHERE id = ?`
	candidateExistsSQL = `SELECT COUNT(*) FROM candidate WHERE id = ?`
)

// Applicant is an application joined with its candidate
type Applicant struct {
	Application *models.Application
	Candidate   *models.Candidate
}

// CreateApplication links a candidate to a job. Applying twice returns ErrConflict.
func (s *Store) CreateApplication(ctx context.Context, a *models.Application) error {
	if a.JobID == "" || a.CandidateID == "" {
		return errors.New("job id and candidate id are required")
	}
	if err := s.mustExist(ctx, jobExistsSQL, "job", a.JobID); err != nil {
		return err
	}
	if err := s.mustExist(ctx, candidateExistsSQL, "candidate", a.CandidateID); err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Status = models.StatusApplied
	a.Breakdown = nil
	a.Score = 0
	a.Decision = ""
	a.ReviewNotes = ""
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now

	if _, err := s.exec(ctx, insertApplicationSQL,
		a.ID, a.JobID, a.CandidateID, string(a.Status), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

func (s *Store) mustExist(ctx context.Context, query, kind, id string) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(&n); err != nil {
		return fmt.Errorf("failed to check %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// GetApplication returns an application by ID
func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	row := s.db.QueryRowContext(ctx, s.rebind(selectApplicationSQL), id)
	a, err := scanApplication(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get application %s: %w", id, mapError(err))
	}
	return a, nil
}

// ListApplicants returns every application for a job with its candidate
func (s *Store) ListApplicants(ctx context.Context, jobID string) ([]Applicant, error) {
	if err := s.mustExist(ctx, jobExistsSQL, "job", jobID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(listApplicantsSQL), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute application select statement: %w", err)
	}
	defer rows.Close()

	list := make([]Applicant, 0)
	for rows.Next() {
		a, c, err := scanApplicant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, Applicant{Application: a, Candidate: c})
	}
	return list, rows.Err()
}

// ListApplications returns the applications for a job
func (s *Store) ListApplications(ctx context.Context, jobID string) ([]*models.Application, error) {
	applicants, err := s.ListApplicants(ctx, jobID)
	if err != nil {
		return nil, err
	}
	list := make([]*models.Application, 0, len(applicants))
	for _, a := range applicants {
		list = append(list, a.Application)
	}
	return list, nil
}

// SaveScreening stores the score, decision and notes of each application in one transaction
func (s *Store) SaveScreening(ctx context.Context, apps []*models.Application) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	if len(apps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackTransaction(tx, s.logger)

	stmt, err := tx.PrepareContext(ctx, s.rebind(saveScreeningSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare sql statement: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, a := range apps {
		var breakdown sql.NullString
		if a.Breakdown != nil {
			v, err := marshalJSON(a.Breakdown)
			if err != nil {
				return err
			}
			breakdown = sql.NullString{String: v, Valid: true}
		}
		a.Status = models.StatusScreened
		a.UpdatedAt = now

		res, err := stmt.ExecContext(ctx, string(a.Status), breakdown, a.Score, string(a.Decision), a.ReviewNotes, formatTime(now), a.ID)
		if err != nil {
			return fmt.Errorf("failed to save screening for %s: %w", a.ID, err)
		}
		if err := expectOne(res); err != nil {
			return fmt.Errorf("application %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("screening saved", zap.Int("applications", len(apps)))
	return nil
}

// SetQualified records or clears (nil) the ground-truth label of an application
func (s *Store) SetQualified(ctx context.Context, id string, qualified *bool) error {
	var v sql.NullInt64
	if qualified != nil {
		v.Valid = true
		if *qualified {
			v.Int64 = 1
		}
	}
	res, err := s.exec(ctx, setQualifiedSQL, v, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to set qualified on %s: %w", id, err)
	}
	return expectOne(res)
}

// DeleteApplication withdraws an application
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	res, err := s.exec(ctx, deleteApplicationSQL, id)
	if err != nil {
		return fmt.Errorf("failed to delete application %s: %w", id, err)
	}
	return expectOne(res)
}

func applicationDest(a *models.Application, status, decision, createdAt, updatedAt *string, breakdown *sql.NullString, qualified *sql.NullInt64) []any {
	return []any{
		&a.ID, &a.JobID, &a.CandidateID, status, breakdown, &a.Score,
		decision, &a.ReviewNotes, qualified, createdAt, updatedAt,
	}
}

func fillApplication(a *models.Application, status, decision, createdAt, updatedAt string, breakdown sql.NullString, qualified sql.NullInt64) error {
	a.Status = models.ApplicationStatus(status)
	a.Decision = models.Decision(decision)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	if breakdown.Valid {
		a.Breakdown = &models.ScoreBreakdown{}
		if err := unmarshalJSON(breakdown.String, a.Breakdown); err != nil {
			return err
		}
	}
	if qualified.Valid {
		q := qualified.Int64 != 0
		a.Qualified = &q
	}
	return nil
}

func scanApplication(row scanner) (*models.Application, error) {
	var a models.Application
	var status, decision, createdAt, updatedAt string
	var breakdown sql.NullString
	var qualified sql.NullInt64

	if err := row.Scan(applicationDest(&a, &status, &decision, &createdAt, &updatedAt, &breakdown, &qualified)...); err != nil {
		return nil, err
	}
	if err := fillApplication(&a, status, decision, createdAt, updatedAt, breakdown, qualified); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanApplicant(row scanner) (*models.Application, *models.Candidate, error) {
	var a models.Application
	var status, decision, createdAt, updatedAt string
	var breakdown sql.NullString
	var qualified sql.NullInt64

	var c models.Candidate
	var education int
	var skills, positions, demographics, cCreatedAt, cUpdatedAt string

	dest := applicationDest(&a, &status, &decision, &createdAt, &updatedAt, &breakdown, &qualified)
	dest = append(dest,
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.ResumeText, &skills, &c.YearsExperience,
		&education, &positions, &demographics, &cCreatedAt, &cUpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, nil, err
	}
	if err := fillApplication(&a, status, decision, createdAt, updatedAt, breakdown, qualified); err != nil {
		return nil, nil, err
	}

	c.Education = models.EducationLevel(education)
	c.CreatedAt = parseTime(cCreatedAt)
	c.UpdatedAt = parseTime(cUpdatedAt)
	if err := unmarshalJSON(skills, &c.Skills); err != nil {
		return nil, nil, err
	}
	if err := unmarshalJSON(positions, &c.Positions); err != nil {
		return nil, nil, err
	}
	if err := unmarshalJSON(demographics, &c.Demographics); err != nil {
		return nil, nil, err
	}
	return &a, &c, nil
}
