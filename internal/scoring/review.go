package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fmuoria/fair-hire/internal/models"
)

const (
	maxResumeChars      = 8000
	maxDescriptionChars = 1500
	maxRequirementItems = 10
)

// Generator produces text from a prompt, typically an LLM client
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Review is the narrative assessment returned by the reviewer
type Review struct {
	Summary   string   `json:"summary"`
	Strengths []string `json:"strengths"`
	Concerns  []string `json:"concerns"`
}

// Notes flattens the review into the text stored on the application
func (r Review) Notes() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(r.Summary))
	if len(r.Strengths) > 0 {
		sb.WriteString("\nStrengths: ")
		sb.WriteString(strings.Join(r.Strengths, "; "))
	}
	if len(r.Concerns) > 0 {
		sb.WriteString("\nConcerns: ")
		sb.WriteString(strings.Join(r.Concerns, "; "))
	}
	return strings.TrimSpace(sb.String())
}

// Reviewer writes review notes for a scored application. It never changes the score or decision.
type Reviewer struct {
	gen Generator
}

// NewReviewer creates a reviewer backed by a text generator
func NewReviewer(gen Generator) *Reviewer {
	return &Reviewer{gen: gen}
}

// Review asks the generator to explain an already computed result
func (r *Reviewer) Review(ctx context.Context, candidate models.Candidate, job models.Job, b models.ScoreBreakdown, decision models.Decision) (Review, error) {
	prompt := buildReviewPrompt(candidate, job, b, decision)

	response, err := r.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return Review{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	review, err := parseReview(response)
	if err != nil {
		return Review{}, fmt.Errorf("failed to parse review: %w", err)
	}
	return review, nil
}

// buildReviewPrompt creates the reviewer prompt. Demographic attributes are never included.
func buildReviewPrompt(candidate models.Candidate, job models.Job, b models.ScoreBreakdown, decision models.Decision) string {
	var sb strings.Builder

	sb.WriteString("You are an HR analyst writing review notes for a screening decision that has already been made by a scoring formula. ")
	sb.WriteString("Do not re-score the candidate and do not consider age, gender, ethnicity or any other protected attribute.\n\n")

	sb.WriteString("## JOB\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", sanitizeUTF8(job.Title)))
	sb.WriteString(fmt.Sprintf("Seniority: %s\n", job.Seniority))
	if job.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", truncate(sanitizeUTF8(job.Description), maxDescriptionChars)))
	}
	sb.WriteString(condenseRequirements("Required skills", job.RequiredSkills, maxRequirementItems))
	sb.WriteString(condenseRequirements("Preferred skills", job.PreferredSkills, maxRequirementItems))
	if job.RequiredEducation > models.EducationNone {
		sb.WriteString(fmt.Sprintf("Required education: %s\n", job.RequiredEducation))
	}

	sb.WriteString("\n## RESULT\n")
	sb.WriteString(fmt.Sprintf("Decision: %s (total %.2f/100)\n", decision, b.Total))
	sb.WriteString(fmt.Sprintf("Skill match %.2f, experience %.2f, education %.2f, career consistency %.2f\n",
		b.SkillMatch, b.Experience, b.Education, b.CCI))
	sb.WriteString(condenseRequirements("Matched", b.MatchedSkills, maxRequirementItems))
	sb.WriteString(condenseRequirements("Missing", b.MissingSkills, maxRequirementItems))

	sb.WriteString("\n## RESUME\n")
	resume := sanitizeUTF8(candidate.ResumeText)
	if utf8.RuneCountInString(resume) > maxResumeChars {
		resume = truncate(resume, maxResumeChars) + "\n[Resume truncated for length]"
	}
	if resume == "" {
		resume = fmt.Sprintf("Skills: %s\nYears of experience: %.1f\nEducation: %s",
			strings.Join(candidate.Skills, ", "), candidate.YearsExperience, candidate.Education)
	}
	sb.WriteString(resume)
	sb.WriteString("\n\n")

	sb.WriteString("Provide your notes in the following JSON format:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "summary": "<two sentences explaining the decision>",` + "\n")
	sb.WriteString(`  "strengths": ["<strength>", ...],` + "\n")
	sb.WriteString(`  "concerns": ["<concern>", ...]` + "\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Return ONLY the JSON object, no additional text.\n")

	return sb.String()
}

// parseReview extracts the review from an LLM response
func parseReview(response string) (Review, error) {
	// tolerate prose or code fences around the object
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return Review{}, fmt.Errorf("no JSON found in response")
	}

	var review Review
	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), &review); err != nil {
		return Review{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if strings.TrimSpace(review.Summary) == "" {
		return Review{}, fmt.Errorf("review has no summary")
	}
	return review, nil
}

// condenseRequirements renders at most maxItems entries on one line
func condenseRequirements(category string, items []string, maxItems int) string {
	if len(items) == 0 {
		return ""
	}
	shown := items
	if len(items) > maxItems {
		shown = items[:maxItems]
	}
	line := fmt.Sprintf("%s: %s", category, sanitizeUTF8(strings.Join(shown, "; ")))
	if extra := len(items) - len(shown); extra > 0 {
		line += fmt.Sprintf(" (+%d more)", extra)
	}
	return line + "\n"
}

// truncate cuts s to maxLen runes, appending an ellipsis
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// sanitizeUTF8 replaces invalid byte sequences so the request body is valid UTF-8
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
