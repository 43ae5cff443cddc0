package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/agent"
	"github.com/fmuoria/fair-hire/internal/fairness"
	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/scoring"
	"github.com/fmuoria/fair-hire/internal/store"
)

const sampleResume = `Jane Doe
jane.doe@example.com
+1 555 123 4567

Summary
Backend engineer with 6 years of experience building Go services on Kubernetes.

Experience
Senior Engineer, Acme Corp  Jan 2020 - Present
Engineer, Initech  Mar 2017 - Dec 2019

Education
Bachelor of Science in Computer Science
`

type testServer struct {
	store   *store.Store
	handler http.Handler
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	scorer, err := scoring.NewScorer(scoring.DefaultPolicy(), nil)
	require.NoError(t, err)
	auditor, err := fairness.NewAuditor(fairness.DefaultOptions())
	require.NoError(t, err)

	ag := agent.NewScreeningAgent(s, scorer, auditor, agent.Options{Workers: 2})
	srv := NewServer(s, ag, zap.NewNop(), 1<<20)
	return &testServer{store: s, handler: srv.Router()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createJob(t *testing.T) models.Job {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/jobs", map[string]any{
		"title":              "Backend Engineer",
		"seniority":          "Senior",
		"required_skills":    []string{"go", "kubernetes"},
		"required_education": "bachelor",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Job](t, rec)
}

func (ts *testServer) createCandidate(t *testing.T, c map[string]any) models.Candidate {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/candidates", c)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Candidate](t, rec)
}

func TestHealthAndRoot(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	rec = ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = ts.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCandidateEndpoints(t *testing.T) {
	ts := setupServer(t)

	c := ts.createCandidate(t, map[string]any{
		"name":             "Ada",
		"email":            "Ada@Example.com",
		"skills":           []string{"go"},
		"years_experience": 3,
		"education":        "master",
	})
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, models.EducationMaster, c.Education)

	rec := ts.do(t, http.MethodGet, "/candidates/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[models.Candidate](t, rec).Name)

	rec = ts.do(t, http.MethodPut, "/candidates/"+c.ID, map[string]any{
		"name":   "Ada Lovelace",
		"skills": []string{"go", "python"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ada Lovelace", decode[models.Candidate](t, rec).Name)

	ts.createCandidate(t, map[string]any{"name": "Grace"})
	rec = ts.do(t, http.MethodGet, "/candidates?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Candidate](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/candidates/"+c.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/candidates/"+c.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCandidateErrors(t *testing.T) {
	ts := setupServer(t)
	ts.createCandidate(t, map[string]any{"name": "Ada", "email": "ada@example.com"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"Missing name", http.MethodPost, "/candidates", map[string]any{"email": "x@example.com"}, http.StatusBadRequest},
		{"Duplicate email", http.MethodPost, "/candidates", map[string]any{"name": "Other", "email": "ADA@example.com"}, http.StatusConflict},
		{"Unknown field", http.MethodPost, "/candidates", map[string]any{"name": "X", "salary": 1}, http.StatusBadRequest},
		{"Malformed JSON", http.MethodPost, "/candidates", "{", http.StatusBadRequest},
		{"Update missing", http.MethodPut, "/candidates/missing", map[string]any{"name": "X"}, http.StatusNotFound},
		{"Delete missing", http.MethodDelete, "/candidates/missing", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestJobEndpoints(t *testing.T) {
	ts := setupServer(t)

	job := ts.createJob(t)
	assert.Equal(t, models.SenioritySenior, job.Seniority)

	rec := ts.do(t, http.MethodPost, "/jobs", map[string]any{"title": "X", "seniority": "intern"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/jobs/"+job.ID, map[string]any{
		"title":           "Staff Engineer",
		"seniority":       "lead",
		"required_skills": []string{"go"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Job](t, rec)
	assert.Equal(t, models.SeniorityLead, updated.Seniority)
	assert.Equal(t, job.ID, updated.ID)

	rec = ts.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Job](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplications(t *testing.T) {
	ts := setupServer(t)
	job := ts.createJob(t)
	c := ts.createCandidate(t, map[string]any{"name": "Ada"})

	rec := ts.do(t, http.MethodPost, "/jobs/"+job.ID+"/applications", map[string]any{"candidate_id": c.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app := decode[models.Application](t, rec)
	assert.Equal(t, models.StatusApplied, app.Status)

	rec = ts.do(t, http.MethodPost, "/jobs/"+job.ID+"/applications", map[string]any{"candidate_id": c.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = ts.do(t, http.MethodPost, "/jobs/"+job.ID+"/applications", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, "/jobs/missing/applications", map[string]any{"candidate_id": c.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/applications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Application](t, rec), 1)

	rec = ts.do(t, http.MethodPut, "/applications/"+app.ID+"/qualified", map[string]any{"qualified": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.Application](t, rec)
	require.NotNil(t, got.Qualified)
	assert.True(t, *got.Qualified)

	rec = ts.do(t, http.MethodPut, "/applications/"+app.ID+"/qualified", map[string]any{"qualified": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[models.Application](t, rec).Qualified)

	rec = ts.do(t, http.MethodDelete, "/applications/"+app.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/applications/"+app.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScreeningFlow(t *testing.T) {
	ts := setupServer(t)
	job := ts.createJob(t)

	pool := []map[string]any{
		{"name": "Strong", "skills": []string{"Golang", "k8s"}, "years_experience": 10, "education": "master", "demographics": map[string]string{"gender": "male"}},
		{"name": "Partial", "skills": []string{"go"}, "years_experience": 4, "education": "bachelor", "demographics": map[string]string{"gender": "female"}},
		{"name": "Weak", "years_experience": 1, "demographics": map[string]string{"gender": "female"}},
	}
	for _, p := range pool {
		c := ts.createCandidate(t, p)
		rec := ts.do(t, http.MethodPost, "/jobs/"+job.ID+"/applications", map[string]any{"candidate_id": c.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/report", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "report before screening")
	rec = ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/audit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "audit before screening")

	rec = ts.do(t, http.MethodPost, "/jobs/"+job.ID+"/screen", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[models.ScreeningReport](t, rec)
	require.Len(t, report.Applications, 3)
	assert.Equal(t, "Strong", report.Applications[0].CandidateName)
	assert.Equal(t, 1, report.Applications[0].Rank)
	assert.Equal(t, models.DecisionHire, report.Applications[0].Application.Decision)
	assert.Equal(t, "Weak", report.Applications[2].CandidateName)
	assert.Equal(t, models.DecisionReject, report.Applications[2].Application.Decision)

	rec = ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.ScreeningReport](t, rec).Applications, 3)

	rec = ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	audit := decode[fairness.AuditReport](t, rec)
	assert.Equal(t, "gender", audit.Attribute)
	assert.Equal(t, job.ID, audit.JobID)
	assert.Equal(t, 3, audit.Total)
	assert.Equal(t, 1, audit.Selected)

	rec = ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "screening_backend_engineer.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 3)

	rec = ts.do(t, http.MethodPost, "/jobs/missing/screen", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeUpload(t *testing.T) {
	ts := setupServer(t)
	job := ts.createJob(t)

	t.Run("Plain text", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/candidates/resume?job_id="+job.ID, strings.NewReader(sampleResume))
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		c := decode[models.Candidate](t, rec)
		assert.Equal(t, "Jane Doe", c.Name)
		assert.Equal(t, "jane.doe@example.com", c.Email)
		assert.Contains(t, c.Skills, "go")
		assert.Contains(t, c.Skills, "kubernetes")

		apps, err := ts.store.ListApplications(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Len(t, apps, 1)
	})

	t.Run("Multipart", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("name", "John Smith"))
		fw, err := mw.CreateFormFile("resume", "john.txt")
		require.NoError(t, err)
		_, err = io.WriteString(fw, strings.Replace(sampleResume, "jane.doe@", "john@", 1))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/candidates/resume", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "John Smith", decode[models.Candidate](t, rec).Name)
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"Binary", "text/plain", "%PDF-1.7 binary content here", http.StatusBadRequest},
		{"Empty", "text/plain", "   ", http.StatusBadRequest},
		{"Unsupported type", "image/png", sampleResume, http.StatusBadRequest},
		{"Too large", "text/plain", strings.Repeat("a", 2<<20), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/candidates/resume", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestScore(t *testing.T) {
	ts := setupServer(t)
	job := map[string]any{
		"title":           "Backend Engineer",
		"seniority":       "mid",
		"required_skills": []string{"go", "kubernetes"},
	}

	rec := ts.do(t, http.MethodPost, "/score", map[string]any{"resume_text": sampleResume, "job": job})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[scoreResponse](t, rec)
	assert.Equal(t, "Jane Doe", resp.Candidate.Name)
	assert.Equal(t, 1.0, resp.Breakdown.SkillMatch)
	assert.NotEmpty(t, resp.Decision)

	rec = ts.do(t, http.MethodPost, "/score", map[string]any{
		"candidate": map[string]any{"name": "Nobody"},
		"job":       job,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[scoreResponse](t, rec)
	assert.Equal(t, 0.0, resp.Breakdown.SkillMatch)
	assert.Equal(t, models.DecisionReject, resp.Decision)

	rec = ts.do(t, http.MethodPost, "/score", map[string]any{"job": job})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, "/score", map[string]any{"resume_text": sampleResume, "job": map[string]any{"title": "X", "seniority": "intern"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	candidates, err := ts.store.ListCandidates(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, candidates, "scoring stores nothing")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrConflict, http.StatusConflict},
		{agent.ErrNotScreened, http.StatusConflict},
		{agent.ErrNameRequired, http.StatusBadRequest},
		{models.ErrUnknownSeniority, http.StatusBadRequest},
		{badRequest(assert.AnError), http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
