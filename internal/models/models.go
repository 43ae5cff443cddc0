package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownSeniority is returned when a seniority tier cannot be parsed
var ErrUnknownSeniority = errors.New("unknown seniority")

// Seniority is the job level tier that selects scoring weights and decision thresholds
type Seniority string

const (
	SeniorityJunior Seniority = "junior"
	SeniorityMid    Seniority = "mid"
	SenioritySenior Seniority = "senior"
	SeniorityLead   Seniority = "lead"
)

// Seniorities lists the tiers from lowest to highest
var Seniorities = []Seniority{SeniorityJunior, SeniorityMid, SenioritySenior, SeniorityLead}

// ParseSeniority converts a user supplied tier name, accepting a few common aliases
func ParseSeniority(s string) (Seniority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "junior", "entry", "entry-level", "graduate":
		return SeniorityJunior, nil
	case "mid", "intermediate", "mid-level":
		return SeniorityMid, nil
	case "senior", "sr":
		return SenioritySenior, nil
	case "lead", "principal", "staff":
		return SeniorityLead, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSeniority, s)
	}
}

// Decision is the screening outcome for an application
type Decision string

const (
	DecisionHire   Decision = "HIRE"
	DecisionReview Decision = "REVIEW"
	DecisionReject Decision = "REJECT"
)

// EducationLevel is an ordinal ranking of the highest completed education
type EducationLevel int

const (
	EducationNone EducationLevel = iota
	EducationHighSchool
	EducationAssociate
	EducationBachelor
	EducationMaster
	EducationDoctorate
)

var educationNames = map[EducationLevel]string{
	EducationNone:       "none",
	EducationHighSchool: "high_school",
	EducationAssociate:  "associate",
	EducationBachelor:   "bachelor",
	EducationMaster:     "master",
	EducationDoctorate:  "doctorate",
}

func (e EducationLevel) String() string {
	if name, ok := educationNames[e]; ok {
		return name
	}
	return "none"
}

// ParseEducationLevel accepts the names produced by String plus a few aliases
func ParseEducationLevel(s string) (EducationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EducationNone, nil
	case "high_school", "highschool", "high school", "secondary":
		return EducationHighSchool, nil
	case "associate", "associates", "diploma":
		return EducationAssociate, nil
	case "bachelor", "bachelors", "bsc", "ba", "undergraduate":
		return EducationBachelor, nil
	case "master", "masters", "msc", "ma", "mba":
		return EducationMaster, nil
	case "doctorate", "phd", "doctoral":
		return EducationDoctorate, nil
	default:
		return EducationNone, fmt.Errorf("unknown education level: %q", s)
	}
}

// MarshalText encodes the level by name so JSON and YAML stay readable
func (e EducationLevel) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes a level name
func (e *EducationLevel) UnmarshalText(text []byte) error {
	level, err := ParseEducationLevel(string(text))
	if err != nil {
		return err
	}
	*e = level
	return nil
}

// Position is one entry of a candidate's job history
type Position struct {
	Title   string     `json:"title" yaml:"title"`
	Company string     `json:"company,omitempty" yaml:"company,omitempty"`
	Start   time.Time  `json:"start" yaml:"start"`
	End     *time.Time `json:"end,omitempty" yaml:"end,omitempty"` // nil means current
}

// Candidate is a person in the talent pool
type Candidate struct {
	ID              string            `json:"id" yaml:"id"`
	Name            string            `json:"name" yaml:"name"`
	Email           string            `json:"email,omitempty" yaml:"email,omitempty"`
	Phone           string            `json:"phone,omitempty" yaml:"phone,omitempty"`
	ResumeText      string            `json:"resume_text,omitempty" yaml:"resumeText,omitempty"`
	Skills          []string          `json:"skills" yaml:"skills"`
	YearsExperience float64           `json:"years_experience" yaml:"yearsExperience"`
	Education       EducationLevel    `json:"education" yaml:"education"`
	Positions       []Position        `json:"positions,omitempty" yaml:"positions,omitempty"`
	Demographics    map[string]string `json:"demographics,omitempty" yaml:"demographics,omitempty"` // protected attributes, never scored
	CreatedAt       time.Time         `json:"created_at" yaml:"createdAt"`
	UpdatedAt       time.Time         `json:"updated_at" yaml:"updatedAt"`
}

// Validate checks the fields required to store a candidate
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("candidate name is required")
	}
	if c.YearsExperience < 0 {
		return errors.New("years of experience cannot be negative")
	}
	return nil
}

// Job is an open position that candidates apply to
type Job struct {
	ID                string         `json:"id" yaml:"id"`
	Title             string         `json:"title" yaml:"title"`
	Description       string         `json:"description,omitempty" yaml:"description,omitempty"`
	Seniority         Seniority      `json:"seniority" yaml:"seniority"`
	RequiredSkills    []string       `json:"required_skills" yaml:"requiredSkills"`
	PreferredSkills   []string       `json:"preferred_skills" yaml:"preferredSkills"`
	MinYears          float64        `json:"min_years,omitempty" yaml:"minYears,omitempty"` // 0 uses the tier default
	RequiredEducation EducationLevel `json:"required_education" yaml:"requiredEducation"`
	CreatedAt         time.Time      `json:"created_at" yaml:"createdAt"`
	UpdatedAt         time.Time      `json:"updated_at" yaml:"updatedAt"`
}

// Validate checks the fields required to store a job and canonicalizes the tier
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return errors.New("job title is required")
	}
	tier, err := ParseSeniority(string(j.Seniority))
	if err != nil {
		return err
	}
	j.Seniority = tier
	if j.MinYears < 0 {
		return errors.New("min years cannot be negative")
	}
	return nil
}

// ApplicationStatus tracks whether an application has been scored
type ApplicationStatus string

const (
	StatusApplied  ApplicationStatus = "applied"
	StatusScreened ApplicationStatus = "screened"
)

// ScoreBreakdown holds the normalized components and the weighted total
type ScoreBreakdown struct {
	SkillMatch    float64  `json:"skill_match" yaml:"skillMatch"`   // 0-1
	Experience    float64  `json:"experience" yaml:"experience"`    // 0-1
	Education     float64  `json:"education" yaml:"education"`      // 0-1
	CCI           float64  `json:"cci" yaml:"cci"`                  // 0-1
	Weights       Weights  `json:"weights" yaml:"weights"`
	Total         float64  `json:"total" yaml:"total"` // 0-100
	MatchedSkills []string `json:"matched_skills" yaml:"matchedSkills"`
	MissingSkills []string `json:"missing_skills" yaml:"missingSkills"`
}

// Weights are the per-tier coefficients of the linear scoring formula
type Weights struct {
	Skills     float64 `json:"skills" yaml:"skills"`
	Experience float64 `json:"experience" yaml:"experience"`
	Education  float64 `json:"education" yaml:"education"`
	CCI        float64 `json:"cci" yaml:"cci"`
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Skills + w.Experience + w.Education + w.CCI
}

// Application links a candidate to a job and carries the screening result
type Application struct {
	ID          string            `json:"id" yaml:"id"`
	JobID       string            `json:"job_id" yaml:"jobId"`
	CandidateID string            `json:"candidate_id" yaml:"candidateId"`
	Status      ApplicationStatus `json:"status" yaml:"status"`
	Breakdown   *ScoreBreakdown   `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
	Score       float64           `json:"score" yaml:"score"`
	Decision    Decision          `json:"decision,omitempty" yaml:"decision,omitempty"`
	ReviewNotes string            `json:"review_notes,omitempty" yaml:"reviewNotes,omitempty"`
	Qualified   *bool             `json:"qualified,omitempty" yaml:"qualified,omitempty"` // ground truth for equal opportunity
	CreatedAt   time.Time         `json:"created_at" yaml:"createdAt"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"updatedAt"`
}

// RankedApplication is one row of a job's screening report
type RankedApplication struct {
	Rank          int         `json:"rank" yaml:"rank"`
	CandidateName string      `json:"candidate_name" yaml:"candidateName"`
	Application   Application `json:"application" yaml:"application"`
}

// ScreeningReport represents the ranked results for one job
type ScreeningReport struct {
	Job          Job                 `json:"job" yaml:"job"`
	Applications []RankedApplication `json:"applications" yaml:"applications"`
	Counts       map[Decision]int    `json:"counts" yaml:"counts"`
	Timestamp    string              `json:"timestamp" yaml:"timestamp"`
}
