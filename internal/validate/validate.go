// Package validate filters dissolved features against geometric acceptance
// rules. Rules come from run configuration, never from constants baked into
// the pipeline.
package validate

import (
	"errors"
	"log/slog"

	"github.com/twpayne/go-geom"

	"github.com/dusk-indust/gridmerge/internal/dissolve"
)

// Rule names a specific acceptance check, reported per rejection.
type Rule string

const (
	RuleMinPoints Rule = "min_points"
	RuleMinArea   Rule = "min_area"
	RuleMaxArea   Rule = "max_area"
)

// Rules are the configured acceptance bounds. A zero bound disables its
// check.
type Rules struct {
	MinPoints int
	MinArea   float64
	MaxArea   float64
}

// Validate rejects impossible rule combinations.
func (r Rules) Validate() error {
	if r.MinPoints < 0 || r.MinArea < 0 || r.MaxArea < 0 {
		return errors.New("validate: bounds must be non-negative")
	}
	if r.MaxArea > 0 && r.MinArea > r.MaxArea {
		return errors.New("validate: min_area exceeds max_area")
	}
	return nil
}

// Report is the outcome of a validation pass.
type Report struct {
	// Accepted are the features that passed every rule.
	Accepted []dissolve.MergedFeature

	// Rejected counts dropped features by the rule that failed them.
	Rejected map[Rule]int
}

// RejectedTotal sums rejections across rules.
func (r Report) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// Apply runs every feature through the rules. Rejections are counted and
// logged with the failing rule; they never abort the pass.
func Apply(features []dissolve.MergedFeature, rules Rules, logger *slog.Logger) Report {
	if logger == nil {
		logger = slog.Default()
	}
	report := Report{Rejected: make(map[Rule]int)}

	for _, mf := range features {
		if rule, ok := check(mf, rules); !ok {
			report.Rejected[rule]++
			logger.Warn("feature rejected",
				"rule", string(rule),
				"grid_code", mf.GridCode,
				"area", mf.Area,
				"source_count", mf.SourceCount)
			continue
		}
		report.Accepted = append(report.Accepted, mf)
	}
	return report
}

func check(mf dissolve.MergedFeature, rules Rules) (Rule, bool) {
	if rules.MinPoints > 0 && vertexCount(mf.Geometry) < rules.MinPoints {
		return RuleMinPoints, false
	}
	if rules.MinArea > 0 && mf.Area < rules.MinArea {
		return RuleMinArea, false
	}
	if rules.MaxArea > 0 && mf.Area > rules.MaxArea {
		return RuleMaxArea, false
	}
	return "", true
}

func vertexCount(g geom.T) int {
	if g == nil {
		return 0
	}
	return len(g.FlatCoords()) / g.Stride()
}
