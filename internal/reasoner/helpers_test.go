package reasoner

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartfuel/internal/rules"
)

const testOntology = `
- id: salty
  label: Salty foods
  examples: [canned soup, chips, pretzels, deli meat]
- id: nuts
  label: Nuts
  examples: [almonds, walnuts, cashews]
- id: walnut_only
  label: Walnuts
  examples: [walnuts]
- id: omega3_fish_nuts
  label: Omega-3 sources
  examples: [salmon, walnuts, chia seeds, flaxseed]
- id: dairy
  label: Dairy
  examples: [milk, yogurt]
- id: empty
  label: Nothing
  examples: []
`

const testPack = `
hypertension:
  triggers: ["bp_systolic > 130", "bp_diastolic > 80"]
  avoid:
    - {category: salty, reason: sodium, evidence_tier: A}
  include:
    - {category: nuts, reason: magnesium, evidence_tier: B}
    - {category: missing_category, reason: nope, evidence_tier: C}
  targets:
    sodium_mg_max: 1500
  tips: [Use herbs instead of salt.]
lipids:
  triggers: ["ldl_cholesterol >= 130", "broken trigger"]
  avoid:
    - {category: salty, reason: duplicate, evidence_tier: B}
    - {category: empty, reason: nothing, evidence_tier: C}
  include:
    - {category: omega3_fish_nuts, reason: omega, evidence_tier: A}
    - {category: dairy, reason: calcium, evidence_tier: B}
  targets:
    fiber_g_min: 25
    sodium_mg_max: 2000
untipped:
  triggers: ["glucose > 100"]
  include:
    - {category: walnut_only, reason: w, evidence_tier: C}
diet_preferences:
  vegan:
    exclude_categories: [omega3_fish_nuts, dairy]
`

func loadTestRules(t *testing.T) *rules.Config {
	t.Helper()
	cfg, err := rules.Load([]byte(testPack), []byte(testOntology), zap.NewNop())
	require.NoError(t, err)
	return cfg
}

func loadDefaultRules(t *testing.T) *rules.Config {
	t.Helper()
	cfg, err := rules.LoadDefault(zap.NewNop())
	require.NoError(t, err)
	return cfg
}

func newTestReasoner(t *testing.T, cfg *rules.Config, logger *zap.Logger) *Reasoner {
	t.Helper()
	return New(rules.NewHolder(cfg), logger)
}
