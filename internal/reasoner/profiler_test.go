package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchThemes(t *testing.T) {
	cfg := loadTestRules(t)

	tests := []struct {
		name    string
		signals SignalMap
		want    []string
	}{
		{"no signals", SignalMap{}, nil},
		{"below threshold", SignalMap{"bp_systolic": 130}, nil},
		{"first trigger", SignalMap{"bp_systolic": 145}, []string{"hypertension"}},
		{"second trigger", SignalMap{"bp_diastolic": 85}, []string{"hypertension"}},
		{"declaration order", SignalMap{"glucose": 120, "ldl_cholesterol": 160, "bp_systolic": 150}, []string{"hypertension", "lipids", "untipped"}},
		{"unrelated signal", SignalMap{"ferritin": 400}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchThemes(tt.signals, cfg))
		})
	}
}

func TestMatchThemes_Deterministic(t *testing.T) {
	cfg := loadDefaultRules(t)
	signals := SignalMap{"bp_systolic": 150, "hba1c": 6.0, "hs_crp": 4, "triglycerides": 220, "hdl_cholesterol": 35}

	first := MatchThemes(signals, cfg)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, MatchThemes(signals, cfg))
	}
	assert.Equal(t, []string{"hypertension", "high_triglycerides", "insulin_resistance", "low_hdl", "inflammation"}, first)
}
