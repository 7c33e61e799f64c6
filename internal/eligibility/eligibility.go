// Package eligibility maps questionnaire answers to a result category using
// prioritized condition rules.
package eligibility

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Result categories produced by the default rule set.
const (
	ResultLikelyEligible       = "likely_eligible"
	ResultPossiblyEligible     = "possibly_eligible"
	ResultNeedsReview          = "needs_review"
	ResultContactForAssessment = "contact_for_assessment"
)

// Rule matches when every condition key is present in the answers with the
// exact required value. A rule without conditions always matches.
type Rule struct {
	Name       string            `json:"name"`
	ResultType string            `json:"result_type"`
	Conditions map[string]string `json:"conditions"`
	Priority   int               `json:"priority"`
}

// Matches reports whether all of r's conditions hold for answers.
func (r Rule) Matches(answers map[string]string) bool {
	for key, want := range r.Conditions {
		got, ok := answers[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Answers flattens submitted JSON answers to the strings rules compare
// against. Booleans become "true" or "false", numbers use their shortest
// form, and lists or objects keep their compact JSON. Null answers are
// dropped.
func Answers(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for key, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			out[key] = v.String()
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[key] = string(b)
		}
	}
	return out
}

// Evaluate returns the result type of the highest-priority matching rule.
// Rules with equal priority keep their slice order. The bool is false when
// no rule matches, which only happens for rule sets without a fallback.
func Evaluate(answers map[string]string, rules []Rule) (string, bool) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for _, r := range sorted {
		if r.Matches(answers) {
			return r.ResultType, true
		}
	}
	return "", false
}

// DefaultRules is the built-in rule set used when no rules are configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "criminal_record",
			ResultType: ResultNeedsReview,
			Conditions: map[string]string{"has_criminal_record": "yes"},
			Priority:   200,
		},
		{
			Name:       "spouse_of_brazilian",
			ResultType: ResultLikelyEligible,
			Conditions: map[string]string{"current_status": "married_to_brazilian"},
			Priority:   100,
		},
		{
			Name:       "stable_union_with_brazilian",
			ResultType: ResultLikelyEligible,
			Conditions: map[string]string{"current_status": "stable_union_brazilian"},
			Priority:   100,
		},
		{
			Name:       "parent_of_brazilian_child",
			ResultType: ResultLikelyEligible,
			Conditions: map[string]string{"current_status": "parent_of_brazilian"},
			Priority:   90,
		},
		{
			Name:       "retiree_with_income",
			ResultType: ResultLikelyEligible,
			Conditions: map[string]string{"current_status": "retiree", "income_proof": "yes"},
			Priority:   80,
		},
		{
			Name:       "investor",
			ResultType: ResultPossiblyEligible,
			Conditions: map[string]string{"current_status": "investor"},
			Priority:   80,
		},
		{
			Name:       "digital_nomad_with_income",
			ResultType: ResultPossiblyEligible,
			Conditions: map[string]string{"current_status": "digital_nomad", "income_proof": "yes"},
			Priority:   70,
		},
		{
			Name:       "student_with_enrollment",
			ResultType: ResultPossiblyEligible,
			Conditions: map[string]string{"current_status": "student", "has_enrollment": "yes"},
			Priority:   60,
		},
		{
			Name:       "default",
			ResultType: ResultContactForAssessment,
			Conditions: map[string]string{},
			Priority:   0,
		},
	}
}
