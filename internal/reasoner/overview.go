package reasoner

import (
	"fmt"

	"smartfuel/internal/models"
	"smartfuel/internal/rules"
)

const DefaultTip = "Build each plate around vegetables, a lean protein and a whole grain."

var themeLabels = map[string]string{
	"hypertension":       "healthy blood pressure",
	"elevated_ldl":       "lower LDL cholesterol",
	"high_triglycerides": "lower triglycerides",
	"insulin_resistance": "steadier blood sugar",
	"low_hdl":            "higher HDL cholesterol",
	"kidney_strain":      "kidney health",
	"inflammation":       "lower inflammation",
	"low_vitamin_d":      "vitamin D status",
	"elevated_uric_acid": "healthy uric acid levels",
}

const (
	overviewGeneral = "Your guidance is based on your latest biomarkers. Small, consistent food swaps add up."
	overviewOne     = "Your biomarkers point to one focus area: %s. The foods below are chosen to support it."
	overviewTwo     = "Your biomarkers point to two focus areas: %s and %s. The foods below are chosen to support both."
)

// overview describes at most the first two matched themes.
func overview(matched []string) string {
	if len(matched) > 2 {
		matched = matched[:2]
	}
	var labels []string
	for _, name := range matched {
		if label, ok := themeLabels[name]; ok {
			labels = append(labels, label)
		}
	}

	switch len(labels) {
	case 0:
		return overviewGeneral
	case 1:
		return fmt.Sprintf(overviewOne, labels[0])
	default:
		return fmt.Sprintf(overviewTwo, labels[0], labels[1])
	}
}

func selectTip(cfg *rules.Config, matched []string) string {
	if len(matched) == 0 {
		return DefaultTip
	}
	theme, ok := cfg.Theme(matched[0])
	if !ok || len(theme.Tips) == 0 || theme.Tips[0] == "" {
		return DefaultTip
	}
	return theme.Tips[0]
}

// DefaultGuidance returns the general guidance used when no theme matches.
// Each call returns a new value.
func DefaultGuidance() models.SmartFuelGuidance {
	return models.SmartFuelGuidance{
		ThemesDetected: []string{},
		Overview:       "No biomarker patterns call for a specific focus right now, so here are general healthy-eating guidelines.",
		Avoid: []models.GuidanceItem{
			{
				Category:      "sugary_drinks",
				CategoryLabel: "Sugar-sweetened drinks",
				Examples:      []string{"soda", "sweetened iced tea", "energy drinks"},
				Reason:        "Added sugars provide calories without nutrients.",
				EvidenceTier:  "A",
			},
			{
				Category:      "ultra_processed_snacks",
				CategoryLabel: "Ultra-processed snacks",
				Examples:      []string{"chips", "packaged pastries", "candy"},
				Reason:        "Often high in sodium, refined starch and added sugar.",
				EvidenceTier:  "B",
			},
		},
		Include: []models.GuidanceItem{
			{
				Category:      "vegetables",
				CategoryLabel: "Vegetables",
				Examples:      []string{"broccoli", "carrots", "leafy greens"},
				Reason:        "Fiber, vitamins and minerals at low calorie cost.",
				EvidenceTier:  "A",
			},
			{
				Category:      "whole_grains",
				CategoryLabel: "Whole grains",
				Examples:      []string{"brown rice", "quinoa", "oats"},
				Reason:        "Whole grains support steady energy and digestive health.",
				EvidenceTier:  "A",
			},
		},
		Targets: []string{
			"Get at least 25 g fiber/day",
			"Limit added sugar to 25 g/day",
			"Keep sodium under 2300 mg/day",
		},
		Tip:          DefaultTip,
		RulesApplied: []string{},
	}
}
