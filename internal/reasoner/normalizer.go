package reasoner

import (
	"sort"
	"strings"

	"smartfuel/internal/models"
)

// SignalMap maps a canonical signal name to its most recent value.
type SignalMap map[string]float64

// signalNames maps lower-cased biomarker types to canonical signal names.
var signalNames = map[string]string{
	"ldl_cholesterol":          "ldl_cholesterol",
	"ldl":                      "ldl_cholesterol",
	"hdl_cholesterol":          "hdl_cholesterol",
	"hdl":                      "hdl_cholesterol",
	"triglycerides":            "triglycerides",
	"total_cholesterol":        "total_cholesterol",
	"hba1c":                    "hba1c",
	"glucose":                  "glucose",
	"fasting_glucose":          "glucose",
	"blood_glucose":            "glucose",
	"blood_pressure_systolic":  "bp_systolic",
	"systolic_bp":              "bp_systolic",
	"bp_systolic":              "bp_systolic",
	"blood_pressure_diastolic": "bp_diastolic",
	"diastolic_bp":             "bp_diastolic",
	"bp_diastolic":             "bp_diastolic",
	"egfr":                     "egfr",
	"creatinine":               "creatinine",
	"potassium":                "potassium",
	"crp":                      "hs_crp",
	"hs_crp":                   "hs_crp",
	"hscrp":                    "hs_crp",
	"vitamin_d":                "vitamin_d",
	"vitamin_d_25oh":           "vitamin_d",
	"ferritin":                 "ferritin",
	"uric_acid":                "uric_acid",
	"alt":                      "alt",
}

const (
	signalLDL          = "ldl_cholesterol"
	signalHDL          = "hdl_cholesterol"
	signalTriglyceride = "triglycerides"
	signalNonHDL       = "non_hdl"
	signalTrigHDLRatio = "trig_hdl_ratio"
)

// NormalizeSignals reduces readings to one value per signal and adds the
// derived lipid signals. The latest RecordedAt wins; on a tie the reading
// that appears last in the input wins.
func NormalizeSignals(readings []models.Reading) SignalMap {
	latest := make(map[string]models.Reading, len(readings))
	for _, r := range readings {
		name := signalName(r.Type)
		if prev, ok := latest[name]; ok && r.RecordedAt.Before(prev.RecordedAt) {
			continue
		}
		latest[name] = r
	}

	signals := make(SignalMap, len(latest)+2)
	for name, r := range latest {
		signals[name] = r.Value
	}

	ldl, hasLDL := signals[signalLDL]
	hdl, hasHDL := signals[signalHDL]
	trig, hasTrig := signals[signalTriglyceride]

	if hasLDL && hasHDL {
		signals[signalNonHDL] = ldl + trig/5 - hdl
	}
	if hasTrig && hasHDL && hdl != 0 {
		signals[signalTrigHDLRatio] = trig / hdl
	}

	return signals
}

// signalName resolves a biomarker type case-insensitively. Unknown types are
// returned unchanged.
func signalName(biomarkerType string) string {
	if name, ok := signalNames[strings.ToLower(strings.TrimSpace(biomarkerType))]; ok {
		return name
	}
	return biomarkerType
}

// Sorted returns the signals ordered by name.
func (s SignalMap) Sorted() []models.BiomarkerValue {
	out := make([]models.BiomarkerValue, 0, len(s))
	for name, v := range s {
		out = append(out, models.BiomarkerValue{Type: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
