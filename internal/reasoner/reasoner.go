// Package reasoner turns biomarker readings into SmartFuel nutrition guidance.
//
// A guidance request runs five stages in a single synchronous pass:
//
//	readings -> NormalizeSignals -> MatchThemes -> item resolution
//	         -> Personalize -> BuildTargets -> tip and overview
//
// The Reasoner holds no per-request state. Rules are read from a
// rules.Holder once per call, so a Reload never affects a request that is
// already running.
package reasoner

import (
	"go.uber.org/zap"

	"smartfuel/internal/models"
	"smartfuel/internal/rules"
)

const maxExamples = 3

type Reasoner struct {
	rules  *rules.Holder
	logger *zap.Logger
}

func New(holder *rules.Holder, logger *zap.Logger) *Reasoner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reasoner{
		rules:  holder,
		logger: logger,
	}
}

// Rules returns the configuration snapshot new requests will use.
func (r *Reasoner) Rules() *rules.Config {
	return r.rules.Load()
}

// Reload publishes a new configuration snapshot.
func (r *Reasoner) Reload(cfg *rules.Config) {
	r.rules.Store(cfg)
	r.logger.Info("SmartFuel rules reloaded", zap.String("version", cfg.Version))
}

// GenerateGuidance builds guidance for one set of health signals.
func (r *Reasoner) GenerateGuidance(in models.HealthSignals) models.SmartFuelGuidance {
	cfg := r.rules.Load()

	signals := NormalizeSignals(in.Biomarkers)
	evidence := models.EvidenceSource{
		Biomarkers: signals.Sorted(),
		Goals:      nonNil(in.Goals),
		DietType:   in.DietType(),
		Allergies:  nonNil(in.Allergies()),
	}

	matched := MatchThemes(signals, cfg)
	if len(matched) == 0 {
		r.logger.Debug("No SmartFuel themes matched, using default guidance",
			zap.Int("signals", len(signals)),
		)
		g := DefaultGuidance()
		g.EvidenceSource = evidence
		return g
	}

	var avoid, include []models.GuidanceItem
	seenAvoid := make(map[string]bool)
	seenInclude := make(map[string]bool)
	rulesApplied := make([]string, 0, len(matched))

	for _, name := range matched {
		theme, _ := cfg.Theme(name)
		avoid = append(avoid, r.resolveItems(cfg, theme.Name, "avoid", theme.Avoid, seenAvoid)...)
		include = append(include, r.resolveItems(cfg, theme.Name, "include", theme.Include, seenInclude)...)
		rulesApplied = append(rulesApplied, theme.Name)
	}

	avoid, include = Personalize(cfg, avoid, include, evidence.DietType, evidence.Allergies)

	r.logger.Debug("SmartFuel guidance generated",
		zap.Strings("themes", matched),
		zap.Int("avoid", len(avoid)),
		zap.Int("include", len(include)),
		zap.String("rules_version", cfg.Version),
	)

	return models.SmartFuelGuidance{
		ThemesDetected: matched,
		Overview:       overview(matched),
		Avoid:          nonNilItems(avoid),
		Include:        nonNilItems(include),
		Targets:        BuildTargets(cfg, matched),
		Tip:            selectTip(cfg, matched),
		RulesApplied:   rulesApplied,
		EvidenceSource: evidence,
	}
}

// resolveItems expands category references through the ontology. A category
// already emitted for the same list is skipped, as is a reference the
// ontology cannot resolve.
func (r *Reasoner) resolveItems(
	cfg *rules.Config,
	theme string,
	list string,
	refs []rules.ItemRef,
	seen map[string]bool,
) []models.GuidanceItem {
	items := make([]models.GuidanceItem, 0, len(refs))
	for _, ref := range refs {
		if seen[ref.Category] {
			continue
		}
		cat, ok := cfg.Category(ref.Category)
		if !ok || len(cat.Examples) == 0 {
			r.logger.Warn("Skipping unresolvable guidance category",
				zap.String("theme", theme),
				zap.String("list", list),
				zap.String("category", ref.Category),
				zap.Bool("known", ok),
			)
			continue
		}
		seen[ref.Category] = true

		n := len(cat.Examples)
		if n > maxExamples {
			n = maxExamples
		}
		examples := make([]string, n)
		copy(examples, cat.Examples[:n])

		items = append(items, models.GuidanceItem{
			Category:      cat.ID,
			CategoryLabel: cat.Label,
			Examples:      examples,
			Reason:        ref.Reason,
			EvidenceTier:  ref.EvidenceTier,
		})
	}
	return items
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func nonNilItems(items []models.GuidanceItem) []models.GuidanceItem {
	if items == nil {
		return []models.GuidanceItem{}
	}
	return items
}
