package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fmuoria/fair-hire/internal/models"
)

const (
	jobColumns = `id,
			title,
			description,
			seniority,
			required_skills,
			preferred_skills,
			min_years,
			required_education,
			created_at,
			updated_at`

	insertJobSQL = `INSERT INTO job (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectJobSQL = `SELECT ` + jobColumns + `
		FROM job
		WHERE id = ?
	`

	listJobsSQL = `SELECT ` + jobColumns + `
		FROM job
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`

	updateJobSQL = `UPDATE job SET
			title = ?,
			description = ?,
			seniority = ?,
			required_skills = ?,
			preferred_skills = ?,
			min_years = ?,
			required_education = ?,
			updated_at = ?
		WHERE id = ?
	`

	deleteJobApplicationsSQL = `DELETE FROM application WHERE job_id = ?`
	deleteJobSQL             = `DELETE FROM job WHERE id = ?`
)

func encodeSkills(j *models.Job) (string, string, error) {
	if j.RequiredSkills == nil {
		j.RequiredSkills = []string{}
	}
	if j.PreferredSkills == nil {
		j.PreferredSkills = []string{}
	}
	req, err := marshalJSON(j.RequiredSkills)
	if err != nil {
		return "", "", err
	}
	pref, err := marshalJSON(j.PreferredSkills)
	if err != nil {
		return "", "", err
	}
	return req, pref, nil
}

// CreateJob inserts a job, assigning an ID and timestamps
func (s *Store) CreateJob(ctx context.Context, j *models.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := s.now()
	j.CreatedAt, j.UpdatedAt = now, now

	req, pref, err := encodeSkills(j)
	if err != nil {
		return err
	}

	if _, err := s.exec(ctx, insertJobSQL,
		j.ID, j.Title, j.Description, string(j.Seniority), req, pref, j.MinYears,
		int(j.RequiredEducation), formatTime(j.CreatedAt), formatTime(j.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob returns a job by ID
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	row := s.db.QueryRowContext(ctx, s.rebind(selectJobSQL), id)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, mapError(err))
	}
	return j, nil
}

// ListJobs returns jobs in creation order
func (s *Store) ListJobs(ctx context.Context, opts ListOptions) ([]*models.Job, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	opts = opts.normalize()

	rows, err := s.db.QueryContext(ctx, s.rebind(listJobsSQL), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute job select statement: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, j)
	}
	return list, rows.Err()
}

// UpdateJob replaces the mutable fields of a job
func (s *Store) UpdateJob(ctx context.Context, j *models.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	existing, err := s.GetJob(ctx, j.ID)
	if err != nil {
		return err
	}
	j.CreatedAt = existing.CreatedAt
	j.UpdatedAt = s.now()

	req, pref, err := encodeSkills(j)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, updateJobSQL,
		j.Title, j.Description, string(j.Seniority), req, pref, j.MinYears,
		int(j.RequiredEducation), formatTime(j.UpdatedAt), j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", j.ID, err)
	}
	return expectOne(res)
}

// DeleteJob removes a job and its applications
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.deleteWithApplications(ctx, deleteJobApplicationsSQL, deleteJobSQL, id)
}

func scanJob(row scanner) (*models.Job, error) {
	var j models.Job
	var seniority, required, preferred, createdAt, updatedAt string
	var education int
	if err := row.Scan(
		&j.ID, &j.Title, &j.Description, &seniority, &required, &preferred,
		&j.MinYears, &education, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	j.Seniority = models.Seniority(seniority)
	j.RequiredEducation = models.EducationLevel(education)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)

	if err := unmarshalJSON(required, &j.RequiredSkills); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(preferred, &j.PreferredSkills); err != nil {
		return nil, err
	}
	return &j, nil
}
