// Package rules loads the SmartFuel rule pack and food ontology.
//
// A rule pack is a YAML (or JSON) document keyed by theme name. Each theme
// carries triggers, avoid/include category references, numeric targets and
// tips. The reserved top-level key diet_preferences holds per-diet
// exclusions. Theme order in the document is the order themes are evaluated
// and reported in, so the pack is decoded through yaml.Node rather than a map.
//
// A loaded Config is never mutated. Reloading builds a new Config and
// publishes it through a Holder.
package rules

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every rule pack or ontology load failure.
var ErrInvalidConfig = errors.New("invalid smartfuel configuration")

const dietPreferencesKey = "diet_preferences"

//go:embed data/rulepack.yaml data/ontology.yaml
var defaults embed.FS

// Target keys in the order the target setter emits them within one theme.
const (
	TargetSodiumMax     = "sodium_mg_max"
	TargetPotassiumMin  = "potassium_mg_min"
	TargetPotassiumMax  = "potassium_mg_max"
	TargetFiberMin      = "fiber_g_min"
	TargetSatFatPctMax  = "sat_fat_pct_max"
	TargetAddedSugarMax = "added_sugar_g_max"
	TargetProteinGPerKg = "protein_g_per_kg_max"
	TargetProteinPctMin = "protein_pct_min"
	TargetCarbsPctMax   = "carbs_pct_max"
	TargetOmega3Min     = "omega3_g_min"
	TargetPlantSterols  = "plant_sterols_g"
	TargetPhosphorusMax = "phosphorus_mg_max"
)

// TargetKeys lists every accepted target key in emission order.
var TargetKeys = []string{
	TargetSodiumMax,
	TargetPotassiumMin,
	TargetPotassiumMax,
	TargetFiberMin,
	TargetSatFatPctMax,
	TargetAddedSugarMax,
	TargetProteinGPerKg,
	TargetProteinPctMin,
	TargetCarbsPctMax,
	TargetOmega3Min,
	TargetPlantSterols,
	TargetPhosphorusMax,
}

// ItemRef points a theme at an ontology category.
type ItemRef struct {
	Category     string `yaml:"category" json:"category"`
	Reason       string `yaml:"reason" json:"reason"`
	EvidenceTier string `yaml:"evidence_tier" json:"evidence_tier"`
}

type Theme struct {
	Name     string
	Triggers []Trigger
	Avoid    []ItemRef
	Include  []ItemRef
	Targets  map[string]float64
	Tips     []string
}

type DietPreference struct {
	ExcludeCategories []string `yaml:"exclude_categories"`
}

// Excludes reports whether category is excluded by the diet.
func (d DietPreference) Excludes(category string) bool {
	for _, c := range d.ExcludeCategories {
		if c == category {
			return true
		}
	}
	return false
}

type Category struct {
	ID       string   `yaml:"id" json:"id"`
	Label    string   `yaml:"label" json:"label"`
	Examples []string `yaml:"examples" json:"examples"`
}

// Config is an immutable snapshot of the rule pack and ontology.
type Config struct {
	// Version identifies the source documents (sha256 prefix).
	Version string
	Themes  []Theme

	themeIndex map[string]int
	diets      map[string]DietPreference
	ontology   map[string]Category
}

type rawTheme struct {
	Triggers []string           `yaml:"triggers"`
	Avoid    []ItemRef          `yaml:"avoid"`
	Include  []ItemRef          `yaml:"include"`
	Targets  map[string]float64 `yaml:"targets"`
	Tips     []string           `yaml:"tips"`
}

// Load parses a rule pack and an ontology. Malformed triggers are logged and
// dropped; every other problem is an ErrInvalidConfig.
func Load(rulePack, ontology []byte, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := &Config{
		themeIndex: make(map[string]int),
		diets:      make(map[string]DietPreference),
		ontology:   make(map[string]Category),
	}

	if err := cfg.parseOntology(ontology); err != nil {
		return nil, err
	}
	if err := cfg.parseRulePack(rulePack, logger); err != nil {
		return nil, err
	}

	sum := sha256.New()
	sum.Write(rulePack)
	sum.Write([]byte{0})
	sum.Write(ontology)
	cfg.Version = hex.EncodeToString(sum.Sum(nil))[:12]

	logger.Info("SmartFuel rules loaded",
		zap.String("version", cfg.Version),
		zap.Int("themes", len(cfg.Themes)),
		zap.Int("diet_preferences", len(cfg.diets)),
		zap.Int("categories", len(cfg.ontology)),
	)
	return cfg, nil
}

// LoadFiles reads the rule pack and ontology from disk. An empty path selects
// the embedded default document.
func LoadFiles(rulePackPath, ontologyPath string, logger *zap.Logger) (*Config, error) {
	rulePack, err := readSource(rulePackPath, "data/rulepack.yaml")
	if err != nil {
		return nil, err
	}
	ontology, err := readSource(ontologyPath, "data/ontology.yaml")
	if err != nil {
		return nil, err
	}
	return Load(rulePack, ontology, logger)
}

// LoadDefault loads the embedded rule pack and ontology.
func LoadDefault(logger *zap.Logger) (*Config, error) {
	return LoadFiles("", "", logger)
}

func readSource(path, embedded string) ([]byte, error) {
	if path == "" {
		data, err := defaults.ReadFile(embedded)
		if err != nil {
			return nil, fmt.Errorf("%w: read embedded %s: %v", ErrInvalidConfig, embedded, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	return data, nil
}

func (c *Config) parseOntology(data []byte) error {
	var categories []Category
	if err := yaml.Unmarshal(data, &categories); err != nil {
		return fmt.Errorf("%w: parse ontology: %v", ErrInvalidConfig, err)
	}
	if len(categories) == 0 {
		return fmt.Errorf("%w: ontology has no categories", ErrInvalidConfig)
	}
	for i, cat := range categories {
		if cat.ID == "" {
			return fmt.Errorf("%w: ontology entry %d has no id", ErrInvalidConfig, i)
		}
		if _, dup := c.ontology[cat.ID]; dup {
			return fmt.Errorf("%w: duplicate ontology category %q", ErrInvalidConfig, cat.ID)
		}
		c.ontology[cat.ID] = cat
	}
	return nil
}

func (c *Config) parseRulePack(data []byte, logger *zap.Logger) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parse rule pack: %v", ErrInvalidConfig, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: rule pack must be a mapping of theme name to theme", ErrInvalidConfig)
	}

	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		value := root.Content[i+1]

		if name == dietPreferencesKey {
			var diets map[string]DietPreference
			if err := value.Decode(&diets); err != nil {
				return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, dietPreferencesKey, err)
			}
			for diet, pref := range diets {
				c.diets[normalizeKey(diet)] = pref
			}
			continue
		}

		var raw rawTheme
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("%w: parse theme %q: %v", ErrInvalidConfig, name, err)
		}
		theme, err := buildTheme(name, raw, logger)
		if err != nil {
			return err
		}
		if _, dup := c.themeIndex[name]; dup {
			return fmt.Errorf("%w: duplicate theme %q", ErrInvalidConfig, name)
		}
		c.themeIndex[name] = len(c.Themes)
		c.Themes = append(c.Themes, theme)
	}

	if len(c.Themes) == 0 {
		return fmt.Errorf("%w: rule pack declares no themes", ErrInvalidConfig)
	}
	return nil
}

func buildTheme(name string, raw rawTheme, logger *zap.Logger) (Theme, error) {
	theme := Theme{
		Name:    name,
		Avoid:   raw.Avoid,
		Include: raw.Include,
		Targets: raw.Targets,
		Tips:    raw.Tips,
	}

	for _, expr := range raw.Triggers {
		t, err := ParseTrigger(expr)
		if err != nil {
			logger.Warn("Skipping malformed trigger",
				zap.String("theme", name),
				zap.String("trigger", expr),
				zap.Error(err),
			)
			continue
		}
		theme.Triggers = append(theme.Triggers, t)
	}
	if len(theme.Triggers) == 0 {
		logger.Warn("Theme has no usable triggers and will never match",
			zap.String("theme", name),
		)
	}

	for key := range raw.Targets {
		if !isTargetKey(key) {
			return Theme{}, fmt.Errorf("%w: theme %q: unknown target %q", ErrInvalidConfig, name, key)
		}
	}
	return theme, nil
}

func isTargetKey(key string) bool {
	for _, k := range TargetKeys {
		if k == key {
			return true
		}
	}
	return false
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Theme looks a theme up by name.
func (c *Config) Theme(name string) (*Theme, bool) {
	i, ok := c.themeIndex[name]
	if !ok {
		return nil, false
	}
	return &c.Themes[i], true
}

// Diet looks a diet preference up case-insensitively.
func (c *Config) Diet(name string) (DietPreference, bool) {
	d, ok := c.diets[normalizeKey(name)]
	return d, ok
}

func (c *Config) Category(id string) (Category, bool) {
	cat, ok := c.ontology[id]
	return cat, ok
}

// Holder publishes Config snapshots. Readers always see a complete Config.
type Holder struct {
	current atomic.Pointer[Config]
}

func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.current.Store(cfg)
	return h
}

func (h *Holder) Load() *Config {
	return h.current.Load()
}

func (h *Holder) Store(cfg *Config) {
	h.current.Store(cfg)
}
