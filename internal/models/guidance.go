// internal/models/guidance.go
package models

import (
	"time"
)

// Reading is one biomarker measurement supplied by the health-data layer.
type Reading struct {
	Type       string    `json:"type"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

type NutritionProfile struct {
	DietaryPreferences []string `json:"dietary_preferences"`
	Allergies          []string `json:"allergies"`
}

// HealthSignals is the full input of one guidance request.
type HealthSignals struct {
	Biomarkers       []Reading         `json:"biomarkers"`
	NutritionProfile *NutritionProfile `json:"nutrition_profile,omitempty"`
	Goals            []string          `json:"goals,omitempty"`
}

// DietType returns the first dietary preference, or "" when none is set.
func (h HealthSignals) DietType() string {
	if h.NutritionProfile == nil || len(h.NutritionProfile.DietaryPreferences) == 0 {
		return ""
	}
	return h.NutritionProfile.DietaryPreferences[0]
}

func (h HealthSignals) Allergies() []string {
	if h.NutritionProfile == nil {
		return nil
	}
	return h.NutritionProfile.Allergies
}

type GuidanceItem struct {
	Category      string   `json:"category"`
	CategoryLabel string   `json:"categoryLabel"`
	Examples      []string `json:"examples"`
	Reason        string   `json:"reason"`
	EvidenceTier  string   `json:"evidenceTier"`
}

type BiomarkerValue struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// EvidenceSource echoes the inputs a guidance object was derived from.
type EvidenceSource struct {
	Biomarkers []BiomarkerValue `json:"biomarkers"`
	Goals      []string         `json:"goals"`
	DietType   string           `json:"dietType"`
	Allergies  []string         `json:"allergies"`
}

type SmartFuelGuidance struct {
	ThemesDetected []string       `json:"themesDetected"`
	Overview       string         `json:"overview"`
	Avoid          []GuidanceItem `json:"avoid"`
	Include        []GuidanceItem `json:"include"`
	Targets        []string       `json:"targets"`
	Tip            string         `json:"tip"`
	RulesApplied   []string       `json:"rulesApplied"`
	EvidenceSource EvidenceSource `json:"evidenceSource"`
}

// GuidanceRecord is a persisted guidance result.
type GuidanceRecord struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	RulesVersion string            `json:"rules_version"`
	Guidance     SmartFuelGuidance `json:"guidance"`
	CreatedAt    time.Time         `json:"created_at"`
}
