package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/store"
)

// ErrNameRequired is returned when no name was given and none could be detected in the resume
var ErrNameRequired = errors.New("could not detect a candidate name, provide one explicitly")

// ResumeFetcher downloads resumes into the uploads directory
type ResumeFetcher interface {
	FetchResumes(ctx context.Context, subject string) ([]string, error)
}

// IntakeResult lists what an intake run created and what it skipped
type IntakeResult struct {
	JobID      string   `json:"job_id" yaml:"jobId"`
	Candidates []string `json:"candidates" yaml:"candidates"` // created candidate IDs
	Skipped    []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// ParseResume parses resume text with the agent's skill taxonomy
func (a *ScreeningAgent) ParseResume(text string) (*ingestion.ParsedResume, error) {
	return a.parser.Parse(text)
}

// AddResume parses a resume, stores the candidate and, when jobID is set, applies them to the job
func (a *ScreeningAgent) AddResume(ctx context.Context, text, name, jobID string) (*models.Candidate, error) {
	parsed, err := a.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	candidate := parsed.Candidate()
	if name != "" {
		candidate.Name = name
	}
	if candidate.Name == "" {
		return nil, ErrNameRequired
	}

	if jobID != "" {
		if _, err := a.repo.GetJob(ctx, jobID); err != nil {
			return nil, err
		}
	}
	if err := a.repo.CreateCandidate(ctx, &candidate); err != nil {
		return nil, err
	}
	if jobID != "" {
		app := &models.Application{JobID: jobID, CandidateID: candidate.ID}
		if err := a.repo.CreateApplication(ctx, app); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", candidate.Name, err)
		}
	}
	return &candidate, nil
}

// IntakeFromUploads turns every resume in the uploads directory into a candidate applied to the job
func (a *ScreeningAgent) IntakeFromUploads(ctx context.Context, jobID string) (*IntakeResult, error) {
	if a.files == nil {
		return nil, errors.New("uploads directory not configured")
	}
	if _, err := a.repo.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	a.reportProgress(0, 100, "Loading resumes...")
	resumes, err := a.files.LoadResumes()
	if err != nil {
		return nil, fmt.Errorf("failed to load resumes: %w", err)
	}
	if len(resumes) == 0 {
		return nil, fmt.Errorf("no resumes found in %s", a.files.Dir())
	}

	result := &IntakeResult{JobID: jobID, Candidates: []string{}}
	for i, r := range resumes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		a.reportProgress(100*i/len(resumes), 100, fmt.Sprintf("Parsing %s (%d/%d)", r.Applicant, i+1, len(resumes)))

		c, err := a.AddResume(ctx, r.Text, r.Applicant, jobID)
		if err != nil {
			if errors.Is(err, store.ErrConflict) || errors.Is(err, ingestion.ErrEmptyResume) || errors.Is(err, ingestion.ErrBinaryResume) {
				a.logger.Warn("skipping resume", zap.String("path", r.Path), zap.Error(err))
				result.Skipped = append(result.Skipped, r.Path)
				continue
			}
			return result, err
		}
		result.Candidates = append(result.Candidates, c.ID)
	}

	a.reportProgress(100, 100, "Intake complete!")
	a.logger.Info("intake complete",
		zap.String("job_id", jobID),
		zap.Int("created", len(result.Candidates)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// IntakeFromGmail fetches resume attachments matching subject, then runs the uploads intake
func (a *ScreeningAgent) IntakeFromGmail(ctx context.Context, fetcher ResumeFetcher, subject, jobID string) (*IntakeResult, error) {
	if a.files == nil {
		return nil, errors.New("uploads directory not configured")
	}
	if _, err := a.repo.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	if err := a.files.ClearUploads(); err != nil {
		return nil, fmt.Errorf("failed to clear uploads: %w", err)
	}

	a.reportProgress(0, 100, "Fetching emails from Gmail...")
	saved, err := fetcher.FetchResumes(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Gmail attachments: %w", err)
	}
	a.logger.Info("gmail fetch complete", zap.String("subject", subject), zap.Int("files", len(saved)))

	return a.IntakeFromUploads(ctx, jobID)
}
