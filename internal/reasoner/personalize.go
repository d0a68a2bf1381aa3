package reasoner

import (
	"strings"

	"smartfuel/internal/models"
	"smartfuel/internal/rules"
)

const (
	omega3Category   = "omega3_fish_nuts"
	plantOmega3Label = "Omega-3 sources (plant-based)"
)

var plantOmega3Examples = map[string]bool{
	"walnuts":    true,
	"chia seeds": true,
	"flaxseed":   true,
}

// Personalize filters the include list for the user's diet and allergies.
// The avoid list is returned as given. Include items left without examples
// are dropped. Neither input slice is modified.
func Personalize(
	cfg *rules.Config,
	avoid []models.GuidanceItem,
	include []models.GuidanceItem,
	dietType string,
	allergies []string,
) ([]models.GuidanceItem, []models.GuidanceItem) {
	diet, hasDiet := rules.DietPreference{}, false
	if dietType != "" {
		diet, hasDiet = cfg.Diet(dietType)
	}
	keywords := allergyKeywords(allergies)

	filtered := make([]models.GuidanceItem, 0, len(include))
	for _, item := range include {
		if hasDiet && diet.Excludes(item.Category) {
			if item.Category != omega3Category {
				continue
			}
			item = narrowToPlantOmega3(item)
		}
		item.Examples = withoutAllergens(item.Examples, keywords)
		if len(item.Examples) == 0 {
			continue
		}
		filtered = append(filtered, item)
	}

	return avoid, filtered
}

func narrowToPlantOmega3(item models.GuidanceItem) models.GuidanceItem {
	examples := make([]string, 0, len(item.Examples))
	for _, ex := range item.Examples {
		if plantOmega3Examples[strings.ToLower(ex)] {
			examples = append(examples, ex)
		}
	}
	item.CategoryLabel = plantOmega3Label
	item.Examples = examples
	return item
}

func allergyKeywords(allergies []string) []string {
	keywords := make([]string, 0, len(allergies))
	for _, a := range allergies {
		if k := strings.ToLower(strings.TrimSpace(a)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// withoutAllergens returns a new slice without examples containing any keyword.
func withoutAllergens(examples []string, keywords []string) []string {
	out := make([]string, 0, len(examples))
	for _, ex := range examples {
		lower := strings.ToLower(ex)
		allergen := false
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				allergen = true
				break
			}
		}
		if !allergen {
			out = append(out, ex)
		}
	}
	return out
}
