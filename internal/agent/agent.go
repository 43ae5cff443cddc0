package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fmuoria/fair-hire/internal/fairness"
	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/scoring"
	"github.com/fmuoria/fair-hire/internal/store"
)

const (
	defaultWorkers = 4
	maxRetries     = 3
	retryBackoff   = 10 * time.Second
)

// ErrNotScreened is returned when a report is requested before any application was screened
var ErrNotScreened = errors.New("no screened applications, run screening first")

// ProgressCallback is called to report progress during processing
type ProgressCallback func(current, total int, message string)

// Repository is the persistence the agent needs
type Repository interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	CreateApplication(ctx context.Context, a *models.Application) error
	ListApplicants(ctx context.Context, jobID string) ([]store.Applicant, error)
	SaveScreening(ctx context.Context, apps []*models.Application) error
}

// Options configures optional collaborators of the agent
type Options struct {
	Workers  int               // concurrent scorers, defaults to 4
	Reviewer *scoring.Reviewer // nil disables review notes
	Parser   *ingestion.Parser
	Files    *ingestion.FileHandler
	Logger   *zap.Logger
}

// ScreeningAgent orchestrates scoring, ranking and auditing of a job's applications
type ScreeningAgent struct {
	repo     Repository
	scorer   *scoring.Scorer
	auditor  *fairness.Auditor
	reviewer *scoring.Reviewer
	parser   *ingestion.Parser
	files    *ingestion.FileHandler
	logger   *zap.Logger
	workers  int

	mu         sync.RWMutex
	progressCb ProgressCallback
	progressMu sync.Mutex

	backoff time.Duration
	now     func() time.Time
}

// NewScreeningAgent creates a new screening agent
func NewScreeningAgent(repo Repository, scorer *scoring.Scorer, auditor *fairness.Auditor, opts Options) *ScreeningAgent {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Parser == nil {
		opts.Parser = ingestion.NewParser(nil)
	}
	return &ScreeningAgent{
		repo:     repo,
		scorer:   scorer,
		auditor:  auditor,
		reviewer: opts.Reviewer,
		parser:   opts.Parser,
		files:    opts.Files,
		logger:   opts.Logger,
		workers:  opts.Workers,
		backoff:  retryBackoff,
		now:      time.Now,
	}
}

// SetProgressCallback sets the progress callback function
func (a *ScreeningAgent) SetProgressCallback(cb ProgressCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressCb = cb
}

// reportProgress calls the progress callback if set. Calls are serialized.
func (a *ScreeningAgent) reportProgress(current, total int, message string) {
	a.mu.RLock()
	cb := a.progressCb
	a.mu.RUnlock()

	if cb != nil {
		a.progressMu.Lock()
		defer a.progressMu.Unlock()
		cb(current, total, message)
	}
}

// Job returns a stored job
func (a *ScreeningAgent) Job(ctx context.Context, id string) (*models.Job, error) {
	return a.repo.GetJob(ctx, id)
}

// Evaluate scores a candidate against a job without persisting anything
func (a *ScreeningAgent) Evaluate(candidate models.Candidate, job models.Job) (models.ScoreBreakdown, models.Decision, error) {
	return a.scorer.Score(candidate, job)
}

// ScreenJob scores every application of a job, stores the results and returns the ranking.
// Screening is repeatable: scores are recomputed and overwritten each time.
func (a *ScreeningAgent) ScreenJob(ctx context.Context, jobID string) (*models.ScreeningReport, error) {
	job, err := a.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	applicants, err := a.repo.ListApplicants(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}

	total := len(applicants)
	a.logger.Info("screening job",
		zap.String("job_id", job.ID),
		zap.String("title", job.Title),
		zap.Int("applications", total),
	)
	a.reportProgress(0, total, fmt.Sprintf("Screening %d applications...", total))

	var (
		done int
		mu   sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, ap := range applicants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := a.screenOne(gctx, *job, ap); err != nil {
				return err
			}

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			a.reportProgress(current, total, fmt.Sprintf("Scored %s (%d/%d)", ap.Candidate.Name, current, total))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	apps := make([]*models.Application, 0, total)
	for _, ap := range applicants {
		apps = append(apps, ap.Application)
	}
	if err := a.repo.SaveScreening(ctx, apps); err != nil {
		return nil, fmt.Errorf("failed to save screening: %w", err)
	}

	report := a.buildReport(*job, applicants)
	a.logger.Info("screening complete",
		zap.String("job_id", job.ID),
		zap.Int("hire", report.Counts[models.DecisionHire]),
		zap.Int("review", report.Counts[models.DecisionReview]),
		zap.Int("reject", report.Counts[models.DecisionReject]),
	)
	return report, nil
}

// screenOne scores one application in place and attaches review notes when a reviewer is configured
func (a *ScreeningAgent) screenOne(ctx context.Context, job models.Job, ap store.Applicant) error {
	breakdown, decision, err := a.scorer.Score(*ap.Candidate, job)
	if err != nil {
		return fmt.Errorf("failed to score %s: %w", ap.Candidate.Name, err)
	}
	app := ap.Application
	app.Breakdown = &breakdown
	app.Score = breakdown.Total
	app.Decision = decision
	app.ReviewNotes = ""

	if a.reviewer == nil {
		return nil
	}
	var review scoring.Review
	err = a.withRetry(ctx, func() error {
		var rerr error
		review, rerr = a.reviewer.Review(ctx, *ap.Candidate, job, breakdown, decision)
		return rerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn("review notes unavailable",
			zap.String("candidate", ap.Candidate.Name),
			zap.Error(err),
		)
		return nil
	}
	app.ReviewNotes = review.Notes()
	return nil
}

// withRetry retries fn while it fails with a rate limit error
func (a *ScreeningAgent) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := a.backoff * time.Duration(attempt)
			a.logger.Debug("rate limited, retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err = fn(); err == nil || !isRateLimitError(err) {
			return err
		}
	}
	return err
}

// isRateLimitError reports whether err looks like an LLM quota or throttling error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"resourceexhausted", "resource exhausted", "429", "rate limit", "quota"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Report returns the ranking built from stored screening results
func (a *ScreeningAgent) Report(ctx context.Context, jobID string) (*models.ScreeningReport, error) {
	job, err := a.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	applicants, err := a.screened(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(applicants) == 0 {
		return nil, ErrNotScreened
	}
	return a.buildReport(*job, applicants), nil
}

// Audit computes the fairness report of a job's screened applications for one protected attribute
func (a *ScreeningAgent) Audit(ctx context.Context, jobID, attribute string) (*fairness.AuditReport, error) {
	attribute = strings.ToLower(strings.TrimSpace(attribute))
	if attribute == "" {
		return nil, errors.New("protected attribute is required")
	}
	job, err := a.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	applicants, err := a.screened(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(applicants) == 0 {
		return nil, ErrNotScreened
	}

	outcomes := make([]fairness.Outcome, 0, len(applicants))
	for _, ap := range applicants {
		outcomes = append(outcomes, fairness.Outcome{
			CandidateID: ap.Candidate.ID,
			Group:       fairness.GroupOf(ap.Candidate.Demographics, attribute),
			Selected:    ap.Application.Decision == models.DecisionHire,
			Qualified:   ap.Application.Qualified,
		})
	}

	report := a.auditor.Audit(attribute, outcomes)
	report.JobID = job.ID
	report.JobTitle = job.Title
	if report.ParityViolation {
		a.logger.Warn("disparate impact detected",
			zap.String("job_id", job.ID),
			zap.String("attribute", attribute),
			zap.Float64("ratio", report.DemographicParityRatio),
		)
	}
	return &report, nil
}

func (a *ScreeningAgent) screened(ctx context.Context, jobID string) ([]store.Applicant, error) {
	applicants, err := a.repo.ListApplicants(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}
	out := applicants[:0]
	for _, ap := range applicants {
		if ap.Application.Status == models.StatusScreened && ap.Application.Breakdown != nil {
			out = append(out, ap)
		}
	}
	return out, nil
}

func (a *ScreeningAgent) buildReport(job models.Job, applicants []store.Applicant) *models.ScreeningReport {
	ranked := make([]models.RankedApplication, 0, len(applicants))
	counts := map[models.Decision]int{
		models.DecisionHire:   0,
		models.DecisionReview: 0,
		models.DecisionReject: 0,
	}
	for _, ap := range applicants {
		ranked = append(ranked, models.RankedApplication{
			CandidateName: ap.Candidate.Name,
			Application:   *ap.Application,
		})
		counts[ap.Application.Decision]++
	}
	rankApplications(ranked)

	return &models.ScreeningReport{
		Job:          job,
		Applications: ranked,
		Counts:       counts,
		Timestamp:    a.now().Format(time.RFC3339),
	}
}

// rankApplications sorts by total score and assigns ranks 1..n.
// Ties fall back to skills, experience, CCI, education and finally the candidate name.
func rankApplications(ranked []models.RankedApplication) {
	sort.SliceStable(ranked, func(i, j int) bool {
		bi, bj := breakdownOf(ranked[i]), breakdownOf(ranked[j])

		if ranked[i].Application.Score != ranked[j].Application.Score {
			return ranked[i].Application.Score > ranked[j].Application.Score
		}
		if bi.SkillMatch != bj.SkillMatch {
			return bi.SkillMatch > bj.SkillMatch
		}
		if bi.Experience != bj.Experience {
			return bi.Experience > bj.Experience
		}
		if bi.CCI != bj.CCI {
			return bi.CCI > bj.CCI
		}
		if bi.Education != bj.Education {
			return bi.Education > bj.Education
		}
		if ranked[i].CandidateName != ranked[j].CandidateName {
			return ranked[i].CandidateName < ranked[j].CandidateName
		}
		return ranked[i].Application.ID < ranked[j].Application.ID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
}

func breakdownOf(r models.RankedApplication) models.ScoreBreakdown {
	if r.Application.Breakdown == nil {
		return models.ScoreBreakdown{}
	}
	return *r.Application.Breakdown
}
