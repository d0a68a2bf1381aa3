package reasoner

import (
	"smartfuel/internal/rules"
)

// MatchThemes returns the names of the themes with at least one true trigger,
// in rule pack declaration order.
func MatchThemes(signals SignalMap, cfg *rules.Config) []string {
	var matched []string
	for _, theme := range cfg.Themes {
		for _, trigger := range theme.Triggers {
			if trigger.Eval(signals) {
				matched = append(matched, theme.Name)
				break
			}
		}
	}
	return matched
}
