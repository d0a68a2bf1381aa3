package reasoner

import (
	"fmt"
	"strconv"

	"smartfuel/internal/rules"
)

var targetTemplates = map[string]string{
	rules.TargetSodiumMax:     "Keep sodium under %s mg/day",
	rules.TargetPotassiumMin:  "Aim for at least %s mg potassium/day",
	rules.TargetPotassiumMax:  "Keep potassium under %s mg/day",
	rules.TargetFiberMin:      "Get at least %s g fiber/day",
	rules.TargetSatFatPctMax:  "Keep saturated fat under %s%% of calories",
	rules.TargetAddedSugarMax: "Limit added sugar to %s g/day",
	rules.TargetProteinGPerKg: "Limit protein to %s g per kg body weight/day",
	rules.TargetProteinPctMin: "Get at least %s%% of calories from protein",
	rules.TargetCarbsPctMax:   "Keep carbohydrates under %s%% of calories",
	rules.TargetOmega3Min:     "Get at least %s g omega-3/day",
	rules.TargetPlantSterols:  "Include %s g plant sterols/day",
	rules.TargetPhosphorusMax: "Keep phosphorus under %s mg/day",
}

// BuildTargets formats the numeric targets of the matched themes. Each target
// key is emitted once; the first matched theme that declares it wins and
// later values are ignored.
func BuildTargets(cfg *rules.Config, matched []string) []string {
	seen := make(map[string]bool, len(rules.TargetKeys))
	targets := []string{}

	for _, name := range matched {
		theme, ok := cfg.Theme(name)
		if !ok {
			continue
		}
		for _, key := range rules.TargetKeys {
			value, declared := theme.Targets[key]
			if !declared || seen[key] {
				continue
			}
			seen[key] = true
			targets = append(targets, formatTarget(key, value))
		}
	}
	return targets
}

func formatTarget(key string, value float64) string {
	return fmt.Sprintf(targetTemplates[key], strconv.FormatFloat(value, 'f', -1, 64))
}
