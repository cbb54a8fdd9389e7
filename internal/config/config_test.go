package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Plan("starter").Concurrency != 5 {
		t.Errorf("starter concurrency = %d, want 5", s.Plan("starter").Concurrency)
	}
	if s.Plan("unknown-tier").Name != s.DefaultPlan {
		t.Errorf("unknown tier should fall back to %q", s.DefaultPlan)
	}
}

func TestLoadSettingsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
default_plan: agency
plans:
  enterprise:
    concurrency: 20
    per_cluster_limit: 10
    query_limit: 80
    providers: [openai]
providers:
  - name: openai
    base_url: http://localhost:9999/v1/
    model: test-model
    api_key_env: TEST_KEY
    weight: 0.9
detection:
  short_name_threshold: 0.85
  long_name_threshold: 0.7
  short_name_max_len: 6
  min_fuzzy_len: 4
  length_tolerance: 0.25
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.DefaultPlan != "agency" {
		t.Errorf("DefaultPlan = %q, want agency", s.DefaultPlan)
	}
	ent := s.Plan("Enterprise")
	if ent.Name != "enterprise" || ent.Concurrency != 20 {
		t.Errorf("enterprise plan = %+v", ent)
	}
	if _, ok := s.Plans["starter"]; !ok {
		t.Error("built-in plans should survive the overlay")
	}
	if len(s.Providers) != 1 || s.ProviderWeights()["openai"] != 0.9 {
		t.Errorf("providers = %+v", s.Providers)
	}
	if s.Detection.ShortNameThreshold != 0.85 {
		t.Errorf("detection = %+v", s.Detection)
	}
}

func TestLoadSettingsBadDefaultPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("default_plan: ghost\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("LoadSettings() should reject an undefined default plan")
	}
}

func TestGetenvHelpers(t *testing.T) {
	t.Setenv("BEACON_TEST_INT", "7")
	t.Setenv("BEACON_TEST_DUR", "90s")
	t.Setenv("BEACON_TEST_BOOL", "true")

	if got := getenvInt("BEACON_TEST_INT", 1); got != 7 {
		t.Errorf("getenvInt() = %d, want 7", got)
	}
	if got := getenvDuration("BEACON_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getenvDuration() = %v, want 90s", got)
	}
	if !getenvBool("BEACON_TEST_BOOL", false) {
		t.Error("getenvBool() = false, want true")
	}
	if got := splitList(" a, ,b "); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitList() = %v", got)
	}
}
