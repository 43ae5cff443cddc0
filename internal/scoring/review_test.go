package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/fmuoria/fair-hire/internal/models"
)

func TestSanitizeUTF8(t *testing.T) {
	for _, valid := range []string{"", "plain ascii", "José González, 5+ yrs Go", "工程师 / مهندس"} {
		assert.Equal(t, valid, sanitizeUTF8(valid))
	}

	got := sanitizeUTF8("Go" + string([]byte{0xC3, 0x28}) + "SQL" + string([]byte{0xFF}))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Go�(SQL�", got)
}

func TestPromptHelpers(t *testing.T) {
	truncateCases := []struct {
		in   string
		max  int
		want string
	}{
		{"kubernetes", 20, "kubernetes"},
		{"kubernetes", 10, "kubernetes"},
		{"kubernetes operator", 4, "kube..."},
		{"工程师简历", 3, "工程师..."},
		{"", 3, ""},
	}
	for _, tc := range truncateCases {
		assert.Equal(t, tc.want, truncate(tc.in, tc.max), "truncate(%q, %d)", tc.in, tc.max)
	}

	condenseCases := []struct {
		items []string
		want  string
	}{
		{nil, ""},
		{[]string{"terraform"}, "Matched: terraform\n"},
		{[]string{"go", "sql"}, "Matched: go; sql\n"},
		{[]string{"go", "sql", "aws", "gcp"}, "Matched: go; sql (+2 more)\n"},
	}
	for _, tc := range condenseCases {
		assert.Equal(t, tc.want, condenseRequirements("Matched", tc.items, 2))
	}
}

// TestBuildReviewPrompt_ContentTruncation tests that long resumes are truncated
func TestBuildReviewPrompt_ContentTruncation(t *testing.T) {
	candidate := models.Candidate{
		Name:       "John Doe",
		ResumeText: strings.Repeat("This is resume content. ", 500), // ~12,000 chars
	}
	job := models.Job{
		Title:          "Software Engineer",
		Seniority:      models.SeniorityMid,
		RequiredSkills: []string{"go", "python", "java"},
	}

	prompt := buildReviewPrompt(candidate, job, models.ScoreBreakdown{Total: 64.2}, models.DecisionReview)

	if !strings.Contains(prompt, "[Resume truncated for length]") {
		t.Error("Expected resume to be truncated but truncation message not found")
	}
	if len(prompt) > 12000 {
		t.Errorf("Prompt still too long: %d bytes", len(prompt))
	}
	if !strings.Contains(prompt, "Decision: REVIEW (total 64.20/100)") {
		t.Error("Prompt is missing the decision line")
	}
}

// TestBuildReviewPrompt_OmitsDemographics tests that protected attributes never reach the model
func TestBuildReviewPrompt_OmitsDemographics(t *testing.T) {
	candidate := models.Candidate{
		Name:         "Jane Smith",
		ResumeText:   "Short resume content",
		Demographics: map[string]string{"ethnicity": "zz-ethnicity-marker"},
	}
	job := models.Job{Title: "Data Analyst", Seniority: models.SeniorityJunior}

	prompt := buildReviewPrompt(candidate, job, models.ScoreBreakdown{}, models.DecisionHire)

	if strings.Contains(prompt, "zz-ethnicity-marker") {
		t.Error("Prompt leaked a demographic attribute")
	}
	if strings.Contains(prompt, "[Resume truncated for length]") {
		t.Error("Resume should not be truncated for short content")
	}
	if !strings.Contains(prompt, "Short resume content") {
		t.Error("Original resume content not found in prompt")
	}
}

// TestParseReview tests parsing of JSON with surrounding text
func TestParseReview(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantSummary string
		wantErr     bool
	}{
		{
			name:        "Direct JSON",
			response:    `{"summary": "Solid match.", "strengths": ["Go"], "concerns": []}`,
			wantSummary: "Solid match.",
		},
		{
			name:        "JSON with text before",
			response:    "Here are the notes:\n{\"summary\": \"Good fit.\", \"strengths\": [], \"concerns\": [\"No Kubernetes\"]}",
			wantSummary: "Good fit.",
		},
		{
			name:        "JSON with markdown code blocks",
			response:    "```json\n{\"summary\": \"Borderline.\"}\n```",
			wantSummary: "Borderline.",
		},
		{
			name:     "No JSON in response",
			response: "This response has no JSON object",
			wantErr:  true,
		},
		{
			name:     "Invalid JSON",
			response: "{ invalid json }",
			wantErr:  true,
		},
		{
			name:     "Empty summary",
			response: `{"summary": "  "}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review, err := parseReview(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseReview() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReview() failed: %v", err)
			}
			if review.Summary != tt.wantSummary {
				t.Errorf("Summary = %q, want %q", review.Summary, tt.wantSummary)
			}
		})
	}
}

type stubGenerator struct {
	response string
	err      error
	prompt   string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func TestReviewerReview(t *testing.T) {
	gen := &stubGenerator{response: `{"summary": "Meets the bar.", "strengths": ["Go", "SQL"], "concerns": ["No Kubernetes"]}`}
	r := NewReviewer(gen)

	review, err := r.Review(context.Background(), models.Candidate{Name: "Ada"}, models.Job{Title: "Backend"}, models.ScoreBreakdown{}, models.DecisionHire)
	if err != nil {
		t.Fatalf("Review() failed: %v", err)
	}

	want := "Meets the bar.\nStrengths: Go; SQL\nConcerns: No Kubernetes"
	if got := review.Notes(); got != want {
		t.Errorf("Notes() = %q, want %q", got, want)
	}
	if !strings.Contains(gen.prompt, "Title: Backend") {
		t.Errorf("prompt missing job title: %q", gen.prompt)
	}

	gen.err = errors.New("quota exceeded")
	if _, err := r.Review(context.Background(), models.Candidate{}, models.Job{}, models.ScoreBreakdown{}, models.DecisionReject); err == nil {
		t.Error("Review() should surface generator errors")
	}
}
