package naming

import "regexp"

// A Rule rewrites transaction names that match a pattern. An Ignore rule
// drops the whole transaction instead of renaming it.
type Rule struct {
	Match       *regexp.Regexp
	Replacement string
	Ignore      bool
}

// A RuleSet applies an ordered list of rules. The first matching rule wins.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet creates a RuleSet from rules in priority order.
func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// Add appends a rule with the lowest priority.
func (s *RuleSet) Add(rule Rule) {
	s.rules = append(s.rules, rule)
}

// Rename applies the first matching rule to name. The second return value
// is false when a matching rule says the transaction should be ignored.
// A name that matches no rule passes through unchanged.
func (s *RuleSet) Rename(name string) (string, bool) {
	if s == nil {
		return name, true
	}

	for _, rule := range s.rules {
		if !rule.Match.MatchString(name) {
			continue
		}

		if rule.Ignore {
			return "", false
		}

		return rule.Match.ReplaceAllString(name, rule.Replacement), true
	}

	return name, true
}
