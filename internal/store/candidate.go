package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fmuoria/fair-hire/internal/models"
)

const (
	candidateColumns = `id,
			name,
			email,
			phone,
			resume_text,
			skills,
			years_experience,
			education,
			positions,
			demographics,
			created_at,
			updated_at`

	insertCandidateSQL = `INSERT INTO candidate (` + candidateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectCandidateSQL = `SELECT ` + candidateColumns + `
		FROM candidate
		WHERE id = ?
	`

	listCandidatesSQL = `SELECT ` + candidateColumns + `
		FROM candidate
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`

	updateCandidateSQL = `UPDATE candidate SET
			name = ?,
			email = ?,
			phone = ?,
			resume_text = ?,
			skills = ?,
			years_experience = ?,
			education = ?,
			positions = ?,
			demographics = ?,
			updated_at = ?
		WHERE id = ?
	`

	deleteCandidateApplicationsSQL = `DELETE FROM application WHERE candidate_id = ?`
	deleteCandidateSQL             = `DELETE FROM candidate WHERE id = ?`
)

type candidateColumnsValues struct {
	skills, positions, demographics string
}

func encodeCandidate(c *models.Candidate) (candidateColumnsValues, error) {
	var v candidateColumnsValues
	var err error
	if c.Skills == nil {
		c.Skills = []string{}
	}
	if v.skills, err = marshalJSON(c.Skills); err != nil {
		return v, err
	}
	if v.positions, err = marshalJSON(c.Positions); err != nil {
		return v, err
	}
	if v.demographics, err = marshalJSON(c.Demographics); err != nil {
		return v, err
	}
	return v, nil
}

// CreateCandidate inserts a candidate, assigning an ID and timestamps
func (s *Store) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now

	v, err := encodeCandidate(c)
	if err != nil {
		return err
	}

	if _, err := s.exec(ctx, insertCandidateSQL,
		c.ID, c.Name, c.Email, c.Phone, c.ResumeText, v.skills, c.YearsExperience,
		int(c.Education), v.positions, v.demographics, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

// GetCandidate returns a candidate by ID
func (s *Store) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	row := s.db.QueryRowContext(ctx, s.rebind(selectCandidateSQL), id)
	c, err := scanCandidate(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate %s: %w", id, mapError(err))
	}
	return c, nil
}

// ListCandidates returns candidates in creation order
func (s *Store) ListCandidates(ctx context.Context, opts ListOptions) ([]*models.Candidate, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}
	opts = opts.normalize()

	rows, err := s.db.QueryContext(ctx, s.rebind(listCandidatesSQL), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute candidate select statement: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Candidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// UpdateCandidate replaces the mutable fields of a candidate
func (s *Store) UpdateCandidate(ctx context.Context, c *models.Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	existing, err := s.GetCandidate(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()

	v, err := encodeCandidate(c)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, updateCandidateSQL,
		c.Name, c.Email, c.Phone, c.ResumeText, v.skills, c.YearsExperience,
		int(c.Education), v.positions, v.demographics, formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate %s: %w", c.ID, err)
	}
	return expectOne(res)
}

// DeleteCandidate removes a candidate and their applications
func (s *Store) DeleteCandidate(ctx context.Context, id string) error {
	return s.deleteWithApplications(ctx, deleteCandidateApplicationsSQL, deleteCandidateSQL, id)
}

func (s *Store) deleteWithApplications(ctx context.Context, childSQL, parentSQL, id string) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackTransaction(tx, s.logger)

	if _, err := s.execOn(ctx, tx, childSQL, id); err != nil {
		return fmt.Errorf("failed to delete applications: %w", err)
	}
	res, err := s.execOn(ctx, tx, parentSQL, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanCandidate(row scanner) (*models.Candidate, error) {
	var c models.Candidate
	var education int
	var skills, positions, demographics, createdAt, updatedAt string
	if err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.ResumeText, &skills, &c.YearsExperience,
		&education, &positions, &demographics, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	c.Education = models.EducationLevel(education)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	if err := unmarshalJSON(skills, &c.Skills); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(positions, &c.Positions); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(demographics, &c.Demographics); err != nil {
		return nil, err
	}
	if c.Skills == nil {
		c.Skills = []string{}
	}
	return &c, nil
}
