package main

import (
	"log/slog"

	"beacon/internal/config"
	"beacon/internal/domain"
	"beacon/internal/retry"
	"beacon/internal/services/detection"
	"beacon/internal/services/orchestrator"
	"beacon/internal/services/scoring"
)

// orchestratorConfig maps the settings file onto pipeline tuning. Zero
// values fall back to package defaults.
func orchestratorConfig(cfg config.Config) orchestrator.Config {
	d := cfg.Settings.Detection
	intents := make(map[domain.IntentCategory]float64, len(cfg.Settings.Scoring.IntentWeights))
	for k, v := range cfg.Settings.Scoring.IntentWeights {
		intents[domain.IntentCategory(k)] = v
	}
	return orchestrator.Config{
		Detection: detection.Config{
			ShortNameThreshold: d.ShortNameThreshold,
			LongNameThreshold:  d.LongNameThreshold,
			ShortNameMaxLen:    d.ShortNameMaxLen,
			MinFuzzyLen:        d.MinFuzzyLen,
			LengthTolerance:    d.LengthTolerance,
		},
		Scoring: scoring.Config{
			ProviderWeights: cfg.Settings.ProviderWeights(),
			RankWeights:     cfg.Settings.Scoring.RankWeights,
			IntentWeights:   intents,
		},
		Retry:                retry.DefaultPolicy,
		SemanticConfirmation: cfg.SemanticConfirmation,
		EnrichAliases:        cfg.EnrichAliases,
	}
}

// configuredProviders keeps the answer engines that have an API key.
func configuredProviders(s config.Settings, logger *slog.Logger) []config.ProviderSettings {
	var out []config.ProviderSettings
	for _, p := range s.Providers {
		if p.APIKey() == "" {
			logger.Warn("provider skipped, no api key", "provider", p.Name, "env", p.APIKeyEnv)
			continue
		}
		out = append(out, p)
	}
	return out
}
