// Package fairness computes group selection statistics and bias metrics over
// hiring decisions: demographic parity, disparate impact under the 80% rule,
// and equal opportunity.
//
// Only groups with at least MinGroupSize members take part in the metrics.
// Smaller groups are still reported so reviewers can see who was excluded.
package fairness

import (
	"math"
	"sort"
	"strings"
)

// UnknownGroup collects outcomes whose protected attribute was not recorded
const UnknownGroup = "unknown"

// Outcome is one screened application seen through a single protected attribute
type Outcome struct {
	CandidateID string `json:"candidate_id,omitempty"`
	Group       string `json:"group"`
	Selected    bool   `json:"selected"`
	Qualified   *bool  `json:"qualified,omitempty"` // ground truth, nil when not labelled
}

// GroupStats summarizes the outcomes of one group
type GroupStats struct {
	Group         string   `json:"group"`
	Count         int      `json:"count"`
	Selected      int      `json:"selected"`
	SelectionRate float64  `json:"selection_rate"`
	Qualified     int      `json:"qualified"`
	TruePositives int      `json:"true_positives"`
	TPR           *float64 `json:"tpr,omitempty"` // nil when no member is labelled qualified
	Eligible      bool     `json:"eligible"`      // large enough to enter the metrics
}

// GroupImpact is one group's selection rate relative to the most selected group
type GroupImpact struct {
	Group  string  `json:"group"`
	Rate   float64 `json:"rate"`
	Ratio  float64 `json:"ratio"`
	Passes bool    `json:"passes"`
}

// GroupOf returns the normalized group for an attribute, or UnknownGroup
func GroupOf(demographics map[string]string, attribute string) string {
	v := strings.ToLower(strings.TrimSpace(demographics[attribute]))
	if v == "" {
		return UnknownGroup
	}
	return v
}

// ComputeGroupStats aggregates outcomes per group, sorted by group name
func ComputeGroupStats(outcomes []Outcome, minGroupSize int) []GroupStats {
	if minGroupSize < 1 {
		minGroupSize = 1
	}

	byGroup := make(map[string]*GroupStats)
	for _, o := range outcomes {
		group := strings.TrimSpace(o.Group)
		if group == "" {
			group = UnknownGroup
		}
		gs, ok := byGroup[group]
		if !ok {
			gs = &GroupStats{Group: group}
			byGroup[group] = gs
		}
		gs.Count++
		if o.Selected {
			gs.Selected++
		}
		if o.Qualified != nil && *o.Qualified {
			gs.Qualified++
			if o.Selected {
				gs.TruePositives++
			}
		}
	}

	stats := make([]GroupStats, 0, len(byGroup))
	for _, gs := range byGroup {
		gs.SelectionRate = round(float64(gs.Selected) / float64(gs.Count))
		if gs.Qualified > 0 {
			tpr := round(float64(gs.TruePositives) / float64(gs.Qualified))
			gs.TPR = &tpr
		}
		gs.Eligible = gs.Count >= minGroupSize
		stats = append(stats, *gs)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Group < stats[j].Group })
	return stats
}

// SelectionRates returns the selection rate of every eligible group
func SelectionRates(stats []GroupStats) map[string]float64 {
	rates := make(map[string]float64)
	for _, gs := range stats {
		if gs.Eligible {
			rates[gs.Group] = gs.SelectionRate
		}
	}
	return rates
}

// DemographicParityDifference is the max minus the min selection rate across eligible groups.
// Fewer than two groups yields 0.
func DemographicParityDifference(stats []GroupStats) float64 {
	return round(parityDifference(stats))
}

// DemographicParityRatio is the min divided by the max selection rate, the disparate impact ratio.
// Fewer than two groups, or nobody selected at all, yields 1.
func DemographicParityRatio(stats []GroupStats) float64 {
	return round(parityRatio(stats))
}

// DisparateImpact compares every eligible group with the most selected one.
// A group passes when its ratio is at least threshold (0.8 for the 80% rule).
func DisparateImpact(stats []GroupStats, threshold float64) []GroupImpact {
	_, hi, _ := rateRange(stats)

	out := make([]GroupImpact, 0, len(stats))
	for _, gs := range stats {
		if !gs.Eligible {
			continue
		}
		ratio := 1.0
		if hi.Selected > 0 {
			ratio = float64(gs.Selected*hi.Count) / float64(gs.Count*hi.Selected)
		}
		out = append(out, GroupImpact{
			Group:  gs.Group,
			Rate:   gs.SelectionRate,
			Ratio:  round(ratio),
			Passes: ratio >= threshold,
		})
	}
	return out
}

// EqualOpportunityDifference is the max minus the min true positive rate across
// eligible groups that have qualified members. ok is false when fewer than two
// such groups exist, in which case the difference is 0.
func EqualOpportunityDifference(stats []GroupStats) (diff float64, ok bool) {
	diff, ok = equalOpportunityDifference(stats)
	return round(diff), ok
}

// Metrics below work on counts. Reported rates are rounded, so comparing
// them would move results across thresholds.

func parityDifference(stats []GroupStats) float64 {
	lo, hi, n := rateRange(stats)
	if n < 2 {
		return 0
	}
	return float64(hi.Selected*lo.Count-lo.Selected*hi.Count) / float64(hi.Count*lo.Count)
}

func parityRatio(stats []GroupStats) float64 {
	lo, hi, n := rateRange(stats)
	if n < 2 || hi.Selected == 0 {
		return 1
	}
	return float64(lo.Selected*hi.Count) / float64(lo.Count*hi.Selected)
}

func equalOpportunityDifference(stats []GroupStats) (float64, bool) {
	var lo, hi GroupStats
	n := 0
	for _, gs := range stats {
		if !gs.Eligible || gs.Qualified == 0 {
			continue
		}
		if n == 0 || gs.TruePositives*lo.Qualified < lo.TruePositives*gs.Qualified {
			lo = gs
		}
		if n == 0 || gs.TruePositives*hi.Qualified > hi.TruePositives*gs.Qualified {
			hi = gs
		}
		n++
	}
	if n < 2 {
		return 0, false
	}
	return float64(hi.TruePositives*lo.Qualified-lo.TruePositives*hi.Qualified) / float64(hi.Qualified*lo.Qualified), true
}

// rateRange returns the eligible groups with the lowest and highest selection rate
func rateRange(stats []GroupStats) (lo, hi GroupStats, n int) {
	for _, gs := range stats {
		if !gs.Eligible {
			continue
		}
		if n == 0 || gs.Selected*lo.Count < lo.Selected*gs.Count {
			lo = gs
		}
		if n == 0 || gs.Selected*hi.Count > hi.Selected*gs.Count {
			hi = gs
		}
		n++
	}
	return lo, hi, n
}

// round keeps four decimals
func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
