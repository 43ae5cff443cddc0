package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/fairness"
	"github.com/fmuoria/fair-hire/internal/ingestion"
	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/scoring"
	"github.com/fmuoria/fair-hire/internal/store"
)

// TestIsRateLimitError tests the rate limit error detection
func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "ResourceExhausted error",
			err:      errors.New("rpc error: code = ResourceExhausted desc = Resource exhausted"),
			expected: true,
		},
		{
			name:     "HTTP 429 error",
			err:      errors.New("HTTP 429: Too Many Requests"),
			expected: true,
		},
		{
			name:     "Rate limit error",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "Quota error",
			err:      errors.New("quota exceeded for this project"),
			expected: true,
		},
		{
			name:     "Other error",
			err:      errors.New("connection timeout"),
			expected: false,
		},
		{
			name:     "Invalid JSON error",
			err:      errors.New("failed to parse JSON"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRateLimitError(tt.err)
			if result != tt.expected {
				t.Errorf("isRateLimitError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func ranked(name string, total float64, b models.ScoreBreakdown) models.RankedApplication {
	b.Total = total
	return models.RankedApplication{
		CandidateName: name,
		Application:   models.Application{ID: name, Score: total, Breakdown: &b},
	}
}

// TestRankApplications tests the tie-breaking logic for equal total scores
func TestRankApplications(t *testing.T) {
	tests := []struct {
		name     string
		results  []models.RankedApplication
		expected []string
	}{
		{
			name: "Sort by total score (no ties)",
			results: []models.RankedApplication{
				ranked("Alice", 70, models.ScoreBreakdown{}),
				ranked("Bob", 90, models.ScoreBreakdown{}),
				ranked("Carol", 80, models.ScoreBreakdown{}),
			},
			expected: []string{"Bob", "Carol", "Alice"},
		},
		{
			name: "Tie on total, broken by skill match",
			results: []models.RankedApplication{
				ranked("Alice", 80, models.ScoreBreakdown{SkillMatch: 0.5}),
				ranked("Bob", 80, models.ScoreBreakdown{SkillMatch: 0.75}),
				ranked("Carol", 90, models.ScoreBreakdown{}),
			},
			expected: []string{"Carol", "Bob", "Alice"},
		},
		{
			name: "Tie on total and skills, broken by experience",
			results: []models.RankedApplication{
				ranked("Alice", 80, models.ScoreBreakdown{SkillMatch: 0.5, Experience: 0.6}),
				ranked("Bob", 80, models.ScoreBreakdown{SkillMatch: 0.5, Experience: 0.9}),
			},
			expected: []string{"Bob", "Alice"},
		},
		{
			name: "Tie on skills and experience, broken by CCI",
			results: []models.RankedApplication{
				ranked("Alice", 80, models.ScoreBreakdown{SkillMatch: 0.5, Experience: 0.6, CCI: 0.4}),
				ranked("Bob", 80, models.ScoreBreakdown{SkillMatch: 0.5, Experience: 0.6, CCI: 0.7}),
			},
			expected: []string{"Bob", "Alice"},
		},
		{
			name: "Tie on everything but education",
			results: []models.RankedApplication{
				ranked("Alice", 80, models.ScoreBreakdown{SkillMatch: 0.5, Experience: 0.6, CCI: 0.4, Education: 0.5}),
				ranked("Bob", 80, models.ScoreBreakdown{SkillMatch: 0.5, Experience: 0.6, CCI: 0.4, Education: 1}),
			},
			expected: []string{"Bob", "Alice"},
		},
		{
			name: "Complete tie falls back to name",
			results: []models.RankedApplication{
				ranked("Zoe", 80, models.ScoreBreakdown{SkillMatch: 1}),
				ranked("Adam", 80, models.ScoreBreakdown{SkillMatch: 1}),
			},
			expected: []string{"Adam", "Zoe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]models.RankedApplication, len(tt.results))
			copy(results, tt.results)

			rankApplications(results)

			for i, name := range tt.expected {
				if results[i].CandidateName != name {
					t.Errorf("Position %d: got %s, want %s", i, results[i].CandidateName, name)
				}
				if results[i].Rank != i+1 {
					t.Errorf("Position %d: rank %d, want %d", i, results[i].Rank, i+1)
				}
			}
		})
	}
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	failures int // leading calls that fail with err
	err      error
	response string
}

func (g *fakeGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls <= g.failures {
		return "", g.err
	}
	return g.response, nil
}

type fixture struct {
	store *store.Store
	agent *ScreeningAgent
	job   *models.Job
}

func setupAgent(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "agent.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	scorer, err := scoring.NewScorer(scoring.DefaultPolicy(), nil)
	require.NoError(t, err)
	auditor, err := fairness.NewAuditor(fairness.DefaultOptions())
	require.NoError(t, err)

	a := NewScreeningAgent(s, scorer, auditor, opts)
	a.backoff = time.Millisecond
	a.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	job := &models.Job{
		Title:             "Backend Engineer",
		Seniority:         models.SenioritySenior,
		RequiredSkills:    []string{"go", "kubernetes"},
		RequiredEducation: models.EducationBachelor,
	}
	require.NoError(t, s.CreateJob(ctx, job))

	return &fixture{store: s, agent: a, job: job}
}

func (f *fixture) apply(t *testing.T, c *models.Candidate) *models.Application {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateCandidate(ctx, c))
	app := &models.Application{JobID: f.job.ID, CandidateID: c.ID}
	require.NoError(t, f.store.CreateApplication(ctx, app))
	return app
}

// applyPool adds three candidates that land on HIRE (92.5), REVIEW (67) and REJECT (15.5)
func (f *fixture) applyPool(t *testing.T) {
	f.apply(t, &models.Candidate{
		Name: "Strong", Skills: []string{"Golang", "k8s"}, YearsExperience: 10,
		Education: models.EducationMaster, Demographics: map[string]string{"gender": "male"},
	})
	f.apply(t, &models.Candidate{
		Name: "Partial", Skills: []string{"go"}, YearsExperience: 4,
		Education: models.EducationBachelor, Demographics: map[string]string{"gender": "female"},
	})
	f.apply(t, &models.Candidate{
		Name: "Weak", YearsExperience: 1, Demographics: map[string]string{"gender": "female"},
	})
}

func TestScreenJob(t *testing.T) {
	f := setupAgent(t, Options{Workers: 2})
	f.applyPool(t)
	ctx := context.Background()

	var calls []int
	f.agent.SetProgressCallback(func(current, total int, message string) {
		assert.Equal(t, 3, total)
		calls = append(calls, current)
	})

	report, err := f.agent.ScreenJob(ctx, f.job.ID)
	require.NoError(t, err)
	require.Len(t, report.Applications, 3)
	assert.Len(t, calls, 4)

	want := []struct {
		name     string
		score    float64
		decision models.Decision
	}{
		{"Strong", 92.5, models.DecisionHire},
		{"Partial", 67, models.DecisionReview},
		{"Weak", 15.5, models.DecisionReject},
	}
	for i, w := range want {
		got := report.Applications[i]
		assert.Equal(t, i+1, got.Rank)
		assert.Equal(t, w.name, got.CandidateName)
		assert.Equal(t, w.score, got.Application.Score)
		assert.Equal(t, w.decision, got.Application.Decision)
		assert.Equal(t, models.StatusScreened, got.Application.Status)
	}
	assert.Equal(t, map[models.Decision]int{
		models.DecisionHire: 1, models.DecisionReview: 1, models.DecisionReject: 1,
	}, report.Counts)
	assert.Equal(t, "2024-03-01T12:00:00Z", report.Timestamp)

	// the stored ranking matches
	stored, err := f.agent.Report(ctx, f.job.ID)
	require.NoError(t, err)
	require.Len(t, stored.Applications, 3)
	for i, r := range stored.Applications {
		assert.Equal(t, report.Applications[i].CandidateName, r.CandidateName)
		assert.Equal(t, report.Applications[i].Rank, r.Rank)
		assert.Equal(t, report.Applications[i].Application.Breakdown, r.Application.Breakdown)
	}
}

func TestScreenJobUnknownJob(t *testing.T) {
	f := setupAgent(t, Options{})
	_, err := f.agent.ScreenJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestScreenJobWithoutApplications(t *testing.T) {
	f := setupAgent(t, Options{})
	report, err := f.agent.ScreenJob(context.Background(), f.job.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Applications)
}

func TestReviewNotes(t *testing.T) {
	tests := []struct {
		name      string
		gen       *fakeGenerator
		wantNotes string
		wantCalls int
	}{
		{
			name:      "Notes stored",
			gen:       &fakeGenerator{response: `{"summary": "Strong match.", "strengths": ["Go"], "concerns": []}`},
			wantNotes: "Strong match.\nStrengths: Go",
			wantCalls: 1,
		},
		{
			name: "Rate limit retried",
			gen: &fakeGenerator{
				failures: 2,
				err:      errors.New("rpc error: code = ResourceExhausted"),
				response: `{"summary": "Retried."}`,
			},
			wantNotes: "Retried.",
			wantCalls: 3,
		},
		{
			name:      "Reviewer failure is not fatal",
			gen:       &fakeGenerator{failures: 1, err: errors.New("connection refused")},
			wantNotes: "",
			wantCalls: 1,
		},
		{
			name:      "Unparseable response ignored",
			gen:       &fakeGenerator{response: "I cannot help with that."},
			wantNotes: "",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupAgent(t, Options{Reviewer: scoring.NewReviewer(tt.gen)})
			f.apply(t, &models.Candidate{Name: "Jane", Skills: []string{"go"}, YearsExperience: 5})

			report, err := f.agent.ScreenJob(context.Background(), f.job.ID)
			require.NoError(t, err)
			require.Len(t, report.Applications, 1)
			assert.Equal(t, tt.wantNotes, report.Applications[0].Application.ReviewNotes)
			assert.Equal(t, tt.wantCalls, tt.gen.calls)
		})
	}
}

func TestReportBeforeScreening(t *testing.T) {
	f := setupAgent(t, Options{})
	f.applyPool(t)

	_, err := f.agent.Report(context.Background(), f.job.ID)
	assert.ErrorIs(t, err, ErrNotScreened)
	_, err = f.agent.Audit(context.Background(), f.job.ID, "gender")
	assert.ErrorIs(t, err, ErrNotScreened)
}

func TestAudit(t *testing.T) {
	f := setupAgent(t, Options{})
	f.applyPool(t)
	ctx := context.Background()

	_, err := f.agent.ScreenJob(ctx, f.job.ID)
	require.NoError(t, err)

	report, err := f.agent.Audit(ctx, f.job.ID, " Gender ")
	require.NoError(t, err)
	assert.Equal(t, f.job.ID, report.JobID)
	assert.Equal(t, "Backend Engineer", report.JobTitle)
	assert.Equal(t, "gender", report.Attribute)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Selected)
	assert.Equal(t, map[string]float64{"female": 0, "male": 1}, report.SelectionRates)
	assert.Equal(t, 1.0, report.DemographicParityDifference)
	assert.Equal(t, 0.0, report.DemographicParityRatio)
	assert.True(t, report.ParityViolation)
	assert.True(t, report.InsufficientOpportunityData)

	missing, err := f.agent.Audit(ctx, f.job.ID, "ethnicity")
	require.NoError(t, err)
	assert.True(t, missing.InsufficientData)
	assert.InDelta(t, 0.3333, missing.SelectionRates[fairness.UnknownGroup], 1e-4)

	_, err = f.agent.Audit(ctx, f.job.ID, "")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	f := setupAgent(t, Options{})
	b, decision, err := f.agent.Evaluate(models.Candidate{Name: "X", Skills: []string{"go", "kubernetes"}, YearsExperience: 10, Education: models.EducationMaster}, *f.job)
	require.NoError(t, err)
	assert.Equal(t, 92.5, b.Total)
	assert.Equal(t, models.DecisionHire, decision)

	_, _, err = f.agent.Evaluate(models.Candidate{Name: "X"}, models.Job{Title: "Y", Seniority: "boss"})
	assert.ErrorIs(t, err, models.ErrUnknownSeniority)
}

func TestIntakeFromUploads(t *testing.T) {
	dir := t.TempDir()
	f := setupAgent(t, Options{Files: ingestion.NewFileHandler(dir)})
	ctx := context.Background()

	resume := "Jane Doe\njane@example.com\n\nSkills: Go, Kubernetes, Docker\nBachelor of Science in Computer Science\n8 years of experience\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Jane_Doe_CV.txt"), []byte(resume), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Jane_Doe_CoverLetter.txt"), []byte("Dear hiring manager, please consider me."), 0644))
	dup := "John Roe\njane@example.com\nSkills: Python and SQL for many years.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "John_Roe_CV.txt"), []byte(dup), 0644))

	result, err := f.agent.IntakeFromUploads(ctx, f.job.ID)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	require.Len(t, result.Skipped, 1, "duplicate email is skipped")

	applicants, err := f.store.ListApplicants(ctx, f.job.ID)
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	c := applicants[0].Candidate
	assert.Equal(t, "Jane Doe", c.Name)
	assert.Equal(t, "jane@example.com", c.Email)
	assert.Equal(t, []string{"docker", "go", "kubernetes"}, c.Skills)
	assert.Equal(t, models.EducationBachelor, c.Education)
	assert.Equal(t, 8.0, c.YearsExperience)
}

func TestIntakeWithoutUploads(t *testing.T) {
	f := setupAgent(t, Options{})
	_, err := f.agent.IntakeFromUploads(context.Background(), f.job.ID)
	assert.Error(t, err)

	f = setupAgent(t, Options{Files: ingestion.NewFileHandler(t.TempDir())})
	_, err = f.agent.IntakeFromUploads(context.Background(), f.job.ID)
	assert.ErrorContains(t, err, "no resumes found")
}

type fakeFetcher struct {
	files *ingestion.FileHandler
	text  string
}

func (f fakeFetcher) FetchResumes(_ context.Context, _ string) ([]string, error) {
	p, err := f.files.SaveUploadedFile("Sam_Lee_CV.txt", strings.NewReader(f.text))
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func TestIntakeFromGmail(t *testing.T) {
	files := ingestion.NewFileHandler(t.TempDir())
	f := setupAgent(t, Options{Files: files})

	fetcher := fakeFetcher{files: files, text: "Sam Lee\nSkills: Go and PostgreSQL, 3 years of experience\n"}
	result, err := f.agent.IntakeFromGmail(context.Background(), fetcher, "Application", f.job.ID)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c, err := f.store.GetCandidate(context.Background(), result.Candidates[0])
	require.NoError(t, err)
	assert.Equal(t, "Sam Lee", c.Name)
}

func TestAddResume(t *testing.T) {
	f := setupAgent(t, Options{})
	ctx := context.Background()

	_, err := f.agent.AddResume(ctx, "%PDF-1.4 binary stream follows", "", "")
	assert.ErrorIs(t, err, ingestion.ErrBinaryResume)

	c, err := f.agent.AddResume(ctx, "Experienced engineer with Go skills and 5 years of experience.", "Ann Bell", f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Bell", c.Name)

	_, err = f.agent.AddResume(ctx, "Some resume text long enough to parse.", "X", "missing-job")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
