package reasoner

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"smartfuel/internal/models"
)

func signalsWith(profile *models.NutritionProfile, readings ...models.Reading) models.HealthSignals {
	return models.HealthSignals{Biomarkers: readings, NutritionProfile: profile}
}

func TestGenerateGuidance_Hypertension(t *testing.T) {
	r := newTestReasoner(t, loadDefaultRules(t), zap.NewNop())

	g := r.GenerateGuidance(signalsWith(nil, reading("bp_systolic", 145, 0)))

	assert.Contains(t, g.ThemesDetected, "hypertension")
	assert.Contains(t, g.Targets, "Keep sodium under 1500 mg/day")
	assert.Equal(t, []string{"hypertension"}, g.RulesApplied)
	assert.Equal(t, "Cook at home more often and season with herbs, citrus or vinegar instead of salt.", g.Tip)
	assert.Equal(t, "Your biomarkers point to one focus area: healthy blood pressure. The foods below are chosen to support it.", g.Overview)
	assert.NotEmpty(t, g.Avoid)
	assert.NotEmpty(t, g.Include)
}

func TestGenerateGuidance_FallbackWhenNothingMatches(t *testing.T) {
	r := newTestReasoner(t, loadDefaultRules(t), zap.NewNop())

	for name, in := range map[string]models.HealthSignals{
		"no biomarkers":  {},
		"healthy values": signalsWith(nil, reading("bp_systolic", 115, 0), reading("ldl_cholesterol", 90, 0)),
		"unknown marker": signalsWith(nil, reading("omega3_index", 9, 0)),
	} {
		t.Run(name, func(t *testing.T) {
			g := r.GenerateGuidance(in)

			assert.Empty(t, g.ThemesDetected)
			assert.NotEmpty(t, g.Avoid)
			assert.NotEmpty(t, g.Include)
			assert.NotEmpty(t, g.Targets)
			assert.Equal(t, DefaultTip, g.Tip)

			g.EvidenceSource = models.EvidenceSource{}
			assert.Equal(t, DefaultGuidance(), g)
		})
	}
}

func TestGenerateGuidance_FallbackKeepsEvidence(t *testing.T) {
	r := newTestReasoner(t, loadDefaultRules(t), zap.NewNop())

	g := r.GenerateGuidance(models.HealthSignals{
		Biomarkers:       []models.Reading{reading("bp_systolic", 110, 0)},
		NutritionProfile: &models.NutritionProfile{DietaryPreferences: []string{"vegan", "keto"}, Allergies: []string{"peanut"}},
		Goals:            []string{"lose 5 kg"},
	})

	assert.Equal(t, models.EvidenceSource{
		Biomarkers: []models.BiomarkerValue{{Type: "bp_systolic", Value: 110}},
		Goals:      []string{"lose 5 kg"},
		DietType:   "vegan",
		Allergies:  []string{"peanut"},
	}, g.EvidenceSource)
}

func TestGenerateGuidance_DefaultGuidanceIsFresh(t *testing.T) {
	g := DefaultGuidance()
	g.Avoid[0].Examples[0] = "changed"
	g.Targets = append(g.Targets, "extra")

	assert.Equal(t, "soda", DefaultGuidance().Avoid[0].Examples[0])
	assert.Len(t, DefaultGuidance().Targets, 3)
}

func TestGenerateGuidance_ResolvesAndDeduplicatesItems(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := newTestReasoner(t, loadTestRules(t), zap.New(core))

	g := r.GenerateGuidance(signalsWith(nil,
		reading("bp_systolic", 150, 0),
		reading("ldl_cholesterol", 140, 0),
	))

	assert.Equal(t, []string{"hypertension", "lipids"}, g.ThemesDetected)
	assert.Equal(t, []string{"hypertension", "lipids"}, g.RulesApplied)

	require.Len(t, g.Avoid, 1)
	assert.Equal(t, models.GuidanceItem{
		Category:      "salty",
		CategoryLabel: "Salty foods",
		Examples:      []string{"canned soup", "chips", "pretzels"},
		Reason:        "sodium",
		EvidenceTier:  "A",
	}, g.Avoid[0])

	var categories []string
	for _, it := range g.Include {
		categories = append(categories, it.Category)
	}
	assert.Equal(t, []string{"nuts", "omega3_fish_nuts", "dairy"}, categories)

	skipped := logs.FilterMessage("Skipping unresolvable guidance category").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, "missing_category", skipped[0].ContextMap()["category"])
	assert.Equal(t, "empty", skipped[1].ContextMap()["category"])
}

func TestGenerateGuidance_PersonalizesInclude(t *testing.T) {
	r := newTestReasoner(t, loadTestRules(t), zap.NewNop())

	g := r.GenerateGuidance(models.HealthSignals{
		Biomarkers: []models.Reading{
			reading("bp_systolic", 150, 0),
			reading("ldl_cholesterol", 140, 0),
			reading("glucose", 120, 0),
		},
		NutritionProfile: &models.NutritionProfile{
			DietaryPreferences: []string{"vegan"},
			Allergies:          []string{"walnut"},
		},
	})

	assert.Equal(t, []models.GuidanceItem{
		{
			Category:      "nuts",
			CategoryLabel: "Nuts",
			Examples:      []string{"almonds", "cashews"},
			Reason:        "magnesium",
			EvidenceTier:  "B",
		},
		{
			Category:      "omega3_fish_nuts",
			CategoryLabel: "Omega-3 sources (plant-based)",
			Examples:      []string{"chia seeds"},
			Reason:        "omega",
			EvidenceTier:  "A",
		},
	}, g.Include)
	assert.Len(t, g.Avoid, 1)
	assert.Equal(t, "vegan", g.EvidenceSource.DietType)
}

func TestGenerateGuidance_AvoidCountUnchangedByPersonalization(t *testing.T) {
	r := newTestReasoner(t, loadDefaultRules(t), zap.NewNop())
	readings := []models.Reading{
		reading("bp_systolic", 150, 0),
		reading("triglycerides", 300, 0),
		reading("hdl_cholesterol", 35, 0),
		reading("uric_acid", 8, 0),
	}

	plain := r.GenerateGuidance(models.HealthSignals{Biomarkers: readings})
	personal := r.GenerateGuidance(models.HealthSignals{
		Biomarkers: readings,
		NutritionProfile: &models.NutritionProfile{
			DietaryPreferences: []string{"vegan"},
			Allergies:          []string{"salmon", "walnut", "chia", "flax", "beer", "soda"},
		},
	})

	assert.Equal(t, plain.Avoid, personal.Avoid)
	assert.Less(t, len(personal.Include), len(plain.Include))
}

func TestGenerateGuidance_ExampleCapAndNonEmpty(t *testing.T) {
	cfg := loadDefaultRules(t)
	r := newTestReasoner(t, cfg, zap.NewNop())

	everything := []models.Reading{
		reading("bp_systolic", 160, 0),
		reading("ldl_cholesterol", 190, 0),
		reading("hdl_cholesterol", 30, 0),
		reading("triglycerides", 400, 0),
		reading("hba1c", 6.8, 0),
		reading("egfr", 45, 0),
		reading("hs_crp", 6, 0),
		reading("vitamin_d", 18, 0),
		reading("uric_acid", 9, 0),
	}
	profiles := []*models.NutritionProfile{
		nil,
		{DietaryPreferences: []string{"vegan"}},
		{DietaryPreferences: []string{"vegetarian"}, Allergies: []string{"nut", "milk"}},
		{DietaryPreferences: []string{"keto"}, Allergies: []string{"a", "e", "i", "o", "u"}},
	}

	for _, profile := range profiles {
		g := r.GenerateGuidance(models.HealthSignals{Biomarkers: everything, NutritionProfile: profile})
		assert.Len(t, g.ThemesDetected, len(cfg.Themes))
		for _, it := range append(append([]models.GuidanceItem{}, g.Avoid...), g.Include...) {
			assert.NotEmpty(t, it.Examples, it.Category)
			assert.LessOrEqual(t, len(it.Examples), 3, it.Category)
		}
	}
}

func TestGenerateGuidance_VeganOmega3(t *testing.T) {
	r := newTestReasoner(t, loadDefaultRules(t), zap.NewNop())

	g := r.GenerateGuidance(models.HealthSignals{
		Biomarkers:       []models.Reading{reading("triglycerides", 250, 0)},
		NutritionProfile: &models.NutritionProfile{DietaryPreferences: []string{"vegan"}},
	})

	plant := map[string]bool{"walnuts": true, "chia seeds": true, "flaxseed": true}
	for _, it := range g.Include {
		if it.Category != "omega3_fish_nuts" {
			continue
		}
		assert.Equal(t, "Omega-3 sources (plant-based)", it.CategoryLabel)
		for _, ex := range it.Examples {
			assert.True(t, plant[ex], ex)
		}
	}
}

func TestGenerateGuidance_OverviewAndTip(t *testing.T) {
	r := newTestReasoner(t, loadDefaultRules(t), zap.NewNop())

	g := r.GenerateGuidance(signalsWith(nil,
		reading("hs_crp", 5, 0),
		reading("egfr", 50, 0),
		reading("bp_systolic", 150, 0),
	))
	assert.Equal(t, []string{"hypertension", "kidney_strain", "inflammation"}, g.ThemesDetected)
	assert.Equal(t, "Your biomarkers point to two focus areas: healthy blood pressure and kidney health. The foods below are chosen to support both.", g.Overview)

	testRules := newTestReasoner(t, loadTestRules(t), zap.NewNop())
	g = testRules.GenerateGuidance(signalsWith(nil, reading("glucose", 130, 0)))
	assert.Equal(t, []string{"untipped"}, g.ThemesDetected)
	assert.Equal(t, DefaultTip, g.Tip)
	assert.Equal(t, overviewGeneral, g.Overview)
	assert.Equal(t, []models.GuidanceItem{}, g.Avoid)
}

func TestOverview_OnlyFirstTwoThemesCount(t *testing.T) {
	assert.Equal(t, overviewGeneral, overview(nil))
	assert.Equal(t, overviewGeneral, overview([]string{"custom_a", "custom_b", "hypertension"}))
	assert.Equal(t,
		"Your biomarkers point to one focus area: kidney health. The foods below are chosen to support it.",
		overview([]string{"custom_a", "kidney_strain", "hypertension"}),
	)
}

func TestGenerateGuidance_Deterministic(t *testing.T) {
	r := newTestReasoner(t, loadDefaultRules(t), zap.NewNop())
	in := models.HealthSignals{
		Biomarkers: []models.Reading{
			reading("ldl_cholesterol", 165, 1),
			reading("hdl_cholesterol", 38, 1),
			reading("triglycerides", 210, 1),
			reading("bp_systolic", 138, 0),
			reading("bp_systolic", 128, 3),
			reading("vitamin_d", 22, 0),
		},
		NutritionProfile: &models.NutritionProfile{DietaryPreferences: []string{"vegetarian"}, Allergies: []string{"almond"}},
		Goals:            []string{"lower cholesterol"},
	}

	first, err := json.Marshal(r.GenerateGuidance(in))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := json.Marshal(r.GenerateGuidance(in))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(next))
	}
}

func TestGenerateGuidance_ConcurrentWithReload(t *testing.T) {
	defaultRules := loadDefaultRules(t)
	testRules := loadTestRules(t)
	r := newTestReasoner(t, defaultRules, zap.NewNop())
	in := signalsWith(nil, reading("bp_systolic", 150, 0))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i == 0 && j%10 == 0 {
					if j%20 == 0 {
						r.Reload(testRules)
					} else {
						r.Reload(defaultRules)
					}
				}
				g := r.GenerateGuidance(in)
				assert.Equal(t, []string{"hypertension"}, g.ThemesDetected)
				// Each result comes entirely from one snapshot.
				if g.Tip == "Use herbs instead of salt." {
					assert.Equal(t, []string{"Keep sodium under 1500 mg/day"}, g.Targets)
				} else {
					assert.Len(t, g.Targets, 3)
				}
			}
		}(i)
	}
	wg.Wait()
}
