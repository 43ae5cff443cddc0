package scoring

import (
	"fmt"
	"math"

	"github.com/fmuoria/fair-hire/internal/models"
)

// weightTolerance is how far the weight sum may drift from 1.0
const weightTolerance = 0.001

// Thresholds are the minimum totals for HIRE and REVIEW decisions
type Thresholds struct {
	Hire   float64 `json:"hire" yaml:"hire"`
	Review float64 `json:"review" yaml:"review"`
}

// Validate checks the thresholds are ordered and inside the 0-100 range
func (t Thresholds) Validate() error {
	if t.Review < 0 || t.Hire > 100 {
		return fmt.Errorf("thresholds must be within 0-100, got hire=%.2f review=%.2f", t.Hire, t.Review)
	}
	if t.Hire < t.Review {
		return fmt.Errorf("hire threshold %.2f is below review threshold %.2f", t.Hire, t.Review)
	}
	return nil
}

// Tier bundles everything that varies by seniority
type Tier struct {
	Weights      models.Weights `json:"weights" yaml:"weights"`
	Thresholds   Thresholds     `json:"thresholds" yaml:"thresholds"`
	DefaultYears float64        `json:"default_years" yaml:"defaultYears"` // used when a job sets no minimum
}

// Policy maps each seniority tier to its scoring parameters
type Policy map[models.Seniority]Tier

// DefaultPolicy returns the standard weights and thresholds per tier
func DefaultPolicy() Policy {
	return Policy{
		models.SeniorityJunior: {
			Weights:      models.Weights{Skills: 0.40, Experience: 0.20, Education: 0.25, CCI: 0.15},
			Thresholds:   Thresholds{Hire: 70, Review: 50},
			DefaultYears: 0,
		},
		models.SeniorityMid: {
			Weights:      models.Weights{Skills: 0.40, Experience: 0.30, Education: 0.15, CCI: 0.15},
			Thresholds:   Thresholds{Hire: 72, Review: 55},
			DefaultYears: 3,
		},
		models.SenioritySenior: {
			Weights:      models.Weights{Skills: 0.35, Experience: 0.40, Education: 0.10, CCI: 0.15},
			Thresholds:   Thresholds{Hire: 75, Review: 60},
			DefaultYears: 5,
		},
		models.SeniorityLead: {
			Weights:      models.Weights{Skills: 0.30, Experience: 0.45, Education: 0.10, CCI: 0.15},
			Thresholds:   Thresholds{Hire: 80, Review: 65},
			DefaultYears: 8,
		},
	}
}

// Validate checks every tier is present and well formed
func (p Policy) Validate() error {
	for _, s := range models.Seniorities {
		tier, ok := p[s]
		if !ok {
			return fmt.Errorf("missing scoring tier %q", s)
		}
		if err := ValidateWeights(tier.Weights); err != nil {
			return fmt.Errorf("tier %s: %w", s, err)
		}
		if err := tier.Thresholds.Validate(); err != nil {
			return fmt.Errorf("tier %s: %w", s, err)
		}
		if tier.DefaultYears < 0 {
			return fmt.Errorf("tier %s: default years cannot be negative", s)
		}
	}
	return nil
}

// Tier returns the parameters for a seniority
func (p Policy) Tier(s models.Seniority) (Tier, error) {
	tier, ok := p[s]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", models.ErrUnknownSeniority, s)
	}
	return tier, nil
}

// ValidateWeights checks that weights sum to 1.0 and none are negative
func ValidateWeights(w models.Weights) error {
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{w.Skills, w.Experience, w.Education, w.CCI} {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}
