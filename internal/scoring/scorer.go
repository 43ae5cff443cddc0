package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/skills"
)

const (
	requiredSkillShare  = 0.8
	preferredSkillShare = 0.2

	// CCI parameters
	neutralCCI       = 0.5
	tenureShare      = 0.6
	stabilityShare   = 0.4
	tenureCeilYears  = 3.0
	changesCeilPerYr = 1.0
	minCareerSpanYrs = 1.0
	hoursPerYear     = 24 * 365.25
)

// Scorer evaluates candidates against jobs with a linear weighted formula
type Scorer struct {
	policy    Policy
	extractor *skills.Extractor
	now       func() time.Time
}

// NewScorer creates a new scorer instance
func NewScorer(policy Policy, extractor *skills.Extractor) (*Scorer, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring policy: %w", err)
	}
	if extractor == nil {
		extractor = skills.NewExtractor(nil)
	}
	return &Scorer{
		policy:    policy,
		extractor: extractor,
		now:       time.Now,
	}, nil
}

// Policy returns the scorer's tier parameters
func (s *Scorer) Policy() Policy {
	return s.policy
}

// Score computes the breakdown and decision for a candidate. Demographics are never read.
func (s *Scorer) Score(candidate models.Candidate, job models.Job) (models.ScoreBreakdown, models.Decision, error) {
	seniority, err := models.ParseSeniority(string(job.Seniority))
	if err != nil {
		return models.ScoreBreakdown{}, "", err
	}
	tier, err := s.policy.Tier(seniority)
	if err != nil {
		return models.ScoreBreakdown{}, "", err
	}

	match := s.extractor.Match(candidate.Skills, job.RequiredSkills, job.PreferredSkills)

	requiredYears := job.MinYears
	if requiredYears <= 0 {
		requiredYears = tier.DefaultYears
	}

	skill := SkillMatch(match)
	experience := ExperienceScore(candidate.YearsExperience, requiredYears)
	education := EducationScore(candidate.Education, job.RequiredEducation)
	cci := CCI(candidate.Positions, s.now())

	b := models.ScoreBreakdown{
		SkillMatch:    toFixed(skill, 4),
		Experience:    toFixed(experience, 4),
		Education:     toFixed(education, 4),
		CCI:           cci,
		Weights:       tier.Weights,
		Total:         Total(tier.Weights, skill, experience, education, cci),
		MatchedSkills: nonNil(match.Matched()),
		MissingSkills: nonNil(match.Missing),
	}

	return b, Decide(b.Total, tier.Thresholds), nil
}

// Decide maps a total score onto HIRE, REVIEW or REJECT
func Decide(total float64, t Thresholds) models.Decision {
	switch {
	case total >= t.Hire:
		return models.DecisionHire
	case total >= t.Review:
		return models.DecisionReview
	default:
		return models.DecisionReject
	}
}

// Total is 100 times the weighted sum of the components, rounded to 2 decimals.
// Components must be unrounded; the breakdown only stores display values.
func Total(w models.Weights, skill, experience, education, cci float64) float64 {
	sum := w.Skills*skill + w.Experience*experience + w.Education*education + w.CCI*cci
	return toFixed(100*sum, 2)
}

// SkillMatch weighs required skills at 0.8 and preferred at 0.2.
// An empty list hands its share to the other; no skills asked for scores 1.
func SkillMatch(r skills.Result) float64 {
	req := len(r.Required)
	pref := len(r.Preferred)
	switch {
	case req == 0 && pref == 0:
		return 1
	case pref == 0:
		return float64(len(r.MatchedRequired)) / float64(req)
	case req == 0:
		return float64(len(r.MatchedPreferred)) / float64(pref)
	}
	return requiredSkillShare*float64(len(r.MatchedRequired))/float64(req) +
		preferredSkillShare*float64(len(r.MatchedPreferred))/float64(pref)
}

// ExperienceScore is min(years/required, 1); nothing required scores 1
func ExperienceScore(years, required float64) float64 {
	if required <= 0 {
		return 1
	}
	return clampedRatio(years, required)
}

// EducationScore is min(level/required, 1); no requirement scores 1
func EducationScore(level, required models.EducationLevel) float64 {
	if required <= models.EducationNone {
		return 1
	}
	return clampedRatio(float64(level), float64(required))
}

// CCI is the career consistency index: longer average tenure and fewer job
// changes per year score higher. Unknown history is neutral (0.5).
func CCI(positions []models.Position, now time.Time) float64 {
	// zero-length entries carry no tenure information
	sorted := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		if p.End == nil || p.End.After(p.Start) {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return neutralCCI
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	first := sorted[0].Start
	last := first
	var tenure float64
	for _, p := range sorted {
		end := now
		if p.End != nil {
			end = *p.End
		}
		if end.Before(p.Start) {
			end = p.Start
		}
		if end.After(last) {
			last = end
		}
		tenure += end.Sub(p.Start).Hours() / hoursPerYear
	}

	avgTenure := tenure / float64(len(sorted))
	span := math.Max(last.Sub(first).Hours()/hoursPerYear, minCareerSpanYrs)
	changesPerYear := float64(len(sorted)-1) / span

	cci := tenureShare*clampedRatio(avgTenure, tenureCeilYears) +
		stabilityShare*(1-clampedRatio(changesPerYear, changesCeilPerYr))
	return toFixed(cci, 4)
}

// clampedRatio maps val linearly into [0.0, 1.0] with ceil as the saturation point.
func clampedRatio(val, ceil float64) float64 {
	if ceil <= 0 || val <= 0 {
		return 0
	}
	if val >= ceil {
		return 1
	}
	return val / ceil
}

// toFixed rounds a float64 to the given precision.
func toFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Round(num*output) / output
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
