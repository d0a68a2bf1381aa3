package reasoner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"smartfuel/internal/rules"
)

func TestBuildTargets_FirstMatchedThemeWins(t *testing.T) {
	cfg := loadTestRules(t)

	targets := BuildTargets(cfg, []string{"hypertension", "lipids"})
	assert.Equal(t, []string{
		"Keep sodium under 1500 mg/day",
		"Get at least 25 g fiber/day",
	}, targets)

	targets = BuildTargets(cfg, []string{"lipids", "hypertension"})
	assert.Equal(t, []string{
		"Keep sodium under 2000 mg/day",
		"Get at least 25 g fiber/day",
	}, targets)
}

func TestBuildTargets_OneEntryPerKey(t *testing.T) {
	cfg := loadDefaultRules(t)
	var all []string
	for _, theme := range cfg.Themes {
		all = append(all, theme.Name)
	}

	targets := BuildTargets(cfg, all)

	sodium := 0
	fiber := 0
	for _, target := range targets {
		if strings.Contains(target, "sodium") {
			sodium++
		}
		if strings.Contains(target, "fiber") {
			fiber++
		}
	}
	assert.Equal(t, 1, sodium)
	assert.Equal(t, 1, fiber)
	assert.Contains(t, targets, "Keep sodium under 1500 mg/day")
	assert.Contains(t, targets, "Get at least 30 g fiber/day")
	assert.Contains(t, targets, "Limit protein to 0.8 g per kg body weight/day")
}

func TestBuildTargets_NoTargets(t *testing.T) {
	cfg := loadTestRules(t)

	assert.Equal(t, []string{}, BuildTargets(cfg, []string{"untipped"}))
	assert.Equal(t, []string{}, BuildTargets(cfg, nil))
	assert.Equal(t, []string{}, BuildTargets(cfg, []string{"not_a_theme"}))
}

func TestTargetTemplates_CoverEveryKey(t *testing.T) {
	for _, key := range rules.TargetKeys {
		tmpl, ok := targetTemplates[key]
		assert.True(t, ok, key)
		assert.NotContains(t, formatTarget(key, 12.5), "%!", tmpl)
	}
	assert.Equal(t, "Keep saturated fat under 6% of calories", formatTarget(rules.TargetSatFatPctMax, 6))
}
