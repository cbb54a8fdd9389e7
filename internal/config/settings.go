package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"beacon/internal/domain"
)

// Settings is the hierarchical part of the configuration: plan tiers,
// answer-engine providers and scoring/detection tuning. It is easier to manage
// in YAML than in env vars.
type Settings struct {
	DefaultPlan string                 `yaml:"default_plan"`
	Plans       map[string]domain.Plan `yaml:"plans"`
	Providers   []ProviderSettings     `yaml:"providers"`
	Detection   DetectionSettings      `yaml:"detection"`
	Scoring     ScoringSettings        `yaml:"scoring"`
}

// ProviderSettings describes one OpenAI-compatible answer engine.
type ProviderSettings struct {
	Name      string  `yaml:"name"`
	BaseURL   string  `yaml:"base_url"`
	Model     string  `yaml:"model"`
	APIKeyEnv string  `yaml:"api_key_env"`
	Weight    float64 `yaml:"weight"`
}

// APIKey resolves the provider key from the environment.
func (p ProviderSettings) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

type DetectionSettings struct {
	ShortNameThreshold float64 `yaml:"short_name_threshold"`
	LongNameThreshold  float64 `yaml:"long_name_threshold"`
	ShortNameMaxLen    int     `yaml:"short_name_max_len"`
	MinFuzzyLen        int     `yaml:"min_fuzzy_len"`
	LengthTolerance    float64 `yaml:"length_tolerance"`
}

type ScoringSettings struct {
	RankWeights   map[int]float64    `yaml:"rank_weights"`
	IntentWeights map[string]float64 `yaml:"intent_weights"`
}

// DefaultSettings mirrors configs shipped with the service.
func DefaultSettings() Settings {
	providers := []string{"openai", "anthropic", "gemini"}
	return Settings{
		DefaultPlan: "starter",
		Plans: map[string]domain.Plan{
			"starter": {Name: "starter", Concurrency: 5, PerClusterLimit: 3, QueryLimit: 15, Providers: providers[:2]},
			"growth":  {Name: "growth", Concurrency: 10, PerClusterLimit: 5, QueryLimit: 30, Providers: providers},
			"agency":  {Name: "agency", Concurrency: 15, PerClusterLimit: 8, QueryLimit: 50, Providers: providers},
		},
		Providers: []ProviderSettings{
			{Name: "openai", BaseURL: "https://api.openai.com/v1/", Model: "gpt-4.1-mini", APIKeyEnv: "OPENAI_API_KEY", Weight: 1.0},
			{Name: "anthropic", BaseURL: "https://api.anthropic.com/v1/", Model: "claude-sonnet-4-5", APIKeyEnv: "ANTHROPIC_API_KEY", Weight: 1.0},
			{Name: "gemini", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/", Model: "gemini-2.5-flash", APIKeyEnv: "GEMINI_API_KEY", Weight: 0.8},
		},
	}
}

// LoadSettings reads the YAML settings file at path over the defaults.
// A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	var file Settings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return settings, fmt.Errorf("parse %s: %w", path, err)
	}
	settings.merge(file)

	if _, ok := settings.Plans[settings.DefaultPlan]; !ok {
		return settings, fmt.Errorf("default plan %q is not defined", settings.DefaultPlan)
	}
	return settings, nil
}

func (s *Settings) merge(file Settings) {
	if file.DefaultPlan != "" {
		s.DefaultPlan = file.DefaultPlan
	}
	for name, plan := range file.Plans {
		if plan.Name == "" {
			plan.Name = name
		}
		s.Plans[name] = plan
	}
	if len(file.Providers) > 0 {
		s.Providers = file.Providers
	}
	if file.Detection != (DetectionSettings{}) {
		s.Detection = file.Detection
	}
	if len(file.Scoring.RankWeights) > 0 {
		s.Scoring.RankWeights = file.Scoring.RankWeights
	}
	if len(file.Scoring.IntentWeights) > 0 {
		s.Scoring.IntentWeights = file.Scoring.IntentWeights
	}
}

// Plan resolves a plan tier by name, falling back to the default tier.
func (s Settings) Plan(name string) domain.Plan {
	if p, ok := s.Plans[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return s.Plans[s.DefaultPlan]
}

// ProviderWeights returns the trust weight per provider name.
func (s Settings) ProviderWeights() map[string]float64 {
	out := make(map[string]float64, len(s.Providers))
	for _, p := range s.Providers {
		if p.Weight > 0 {
			out[p.Name] = p.Weight
		}
	}
	return out
}

// GetProvider finds a provider definition by name.
func (s Settings) GetProvider(name string) *ProviderSettings {
	for i := range s.Providers {
		if s.Providers[i].Name == name {
			return &s.Providers[i]
		}
	}
	return nil
}
