package fairness

import (
	"fmt"
	"time"
)

// Options tune which groups count and when a metric is flagged
type Options struct {
	MinGroupSize         int     `json:"min_group_size" yaml:"minGroupSize"`
	ParityThreshold      float64 `json:"parity_threshold" yaml:"parityThreshold"`           // 0.8 is the four-fifths rule
	OpportunityTolerance float64 `json:"opportunity_tolerance" yaml:"opportunityTolerance"` // largest acceptable TPR gap
}

// DefaultOptions returns the four-fifths rule with a 0.1 opportunity tolerance
func DefaultOptions() Options {
	return Options{
		MinGroupSize:         1,
		ParityThreshold:      0.8,
		OpportunityTolerance: 0.1,
	}
}

// Validate checks the options are usable
func (o Options) Validate() error {
	if o.MinGroupSize < 1 {
		return fmt.Errorf("min group size must be at least 1, got %d", o.MinGroupSize)
	}
	if o.ParityThreshold <= 0 || o.ParityThreshold > 1 {
		return fmt.Errorf("parity threshold must be in (0, 1], got %.3f", o.ParityThreshold)
	}
	if o.OpportunityTolerance < 0 || o.OpportunityTolerance > 1 {
		return fmt.Errorf("opportunity tolerance must be in [0, 1], got %.3f", o.OpportunityTolerance)
	}
	return nil
}

// AuditReport is the fairness summary for one job and one protected attribute
type AuditReport struct {
	JobID     string `json:"job_id,omitempty"`
	JobTitle  string `json:"job_title,omitempty"`
	Attribute string `json:"attribute"`

	Total    int          `json:"total"`
	Selected int          `json:"selected"`
	Groups   []GroupStats `json:"groups"`

	SelectionRates              map[string]float64 `json:"selection_rates"`
	DemographicParityDifference float64            `json:"demographic_parity_difference"`
	DemographicParityRatio      float64            `json:"demographic_parity_ratio"` // disparate impact ratio
	DisparateImpact             []GroupImpact      `json:"disparate_impact"`
	EqualOpportunityDifference  float64            `json:"equal_opportunity_difference"`

	InsufficientData            bool `json:"insufficient_data"`             // fewer than two eligible groups
	InsufficientOpportunityData bool `json:"insufficient_opportunity_data"` // fewer than two groups with qualified members
	ParityViolation             bool `json:"parity_violation"`
	OpportunityGap              bool `json:"opportunity_gap"`

	Options   Options `json:"options"`
	Timestamp string  `json:"timestamp"`
}

// Auditor computes audit reports with fixed options
type Auditor struct {
	opts Options
	now  func() time.Time
}

// NewAuditor creates an auditor
func NewAuditor(opts Options) (*Auditor, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fairness options: %w", err)
	}
	return &Auditor{opts: opts, now: time.Now}, nil
}

// Options returns the auditor's settings
func (a *Auditor) Options() Options {
	return a.opts
}

// Audit computes every metric for the outcomes of one attribute
func (a *Auditor) Audit(attribute string, outcomes []Outcome) AuditReport {
	stats := ComputeGroupStats(outcomes, a.opts.MinGroupSize)

	report := AuditReport{
		Attribute:                   attribute,
		Total:                       len(outcomes),
		Groups:                      stats,
		SelectionRates:              SelectionRates(stats),
		DemographicParityDifference: DemographicParityDifference(stats),
		DemographicParityRatio:      DemographicParityRatio(stats),
		DisparateImpact:             DisparateImpact(stats, a.opts.ParityThreshold),
		Options:                     a.opts,
		Timestamp:                   a.now().UTC().Format(time.RFC3339),
	}
	for _, o := range outcomes {
		if o.Selected {
			report.Selected++
		}
	}

	eligible := 0
	for _, gs := range stats {
		if gs.Eligible {
			eligible++
		}
	}
	report.InsufficientData = eligible < 2

	eod, ok := equalOpportunityDifference(stats)
	report.EqualOpportunityDifference = round(eod)
	report.InsufficientOpportunityData = !ok

	report.ParityViolation = !report.InsufficientData && parityRatio(stats) < a.opts.ParityThreshold
	report.OpportunityGap = ok && eod > a.opts.OpportunityTolerance

	return report
}
